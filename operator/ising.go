// Package operator provides Hamiltonians in the sparse connected-
// configuration representation consumed by the local-value estimator:
// for a configuration s, an operator lists the configurations s' with
// non-zero matrix element <s|O|s'> together with those elements.
package operator

import (
	"errors"
	"fmt"
)

// ErrNoBonds is returned when an interacting operator is built without
// any bond.
var ErrNoBonds = errors.New("operator: bond list cannot be empty")

// Ising is the transverse-field Ising Hamiltonian over spin-1/2
// configurations (site values -1 and +1):
//
//	H = -h * sum_i sigma^x_i - J * sum_(i,j) sigma^z_i sigma^z_j
//
// where the second sum runs over the bond list. For a configuration s it
// connects s to itself (the diagonal term) and to every single-spin-flip
// of s (matrix element -h each).
type Ising struct {
	h     float64
	j     float64
	bonds [][2]int
}

// NewIsing builds a transverse-field Ising operator over the given bond
// list. Bond site indices are validated lazily against each configuration
// passed to ConnectedConfigurations.
func NewIsing(h, j float64, bonds [][2]int) (*Ising, error) {
	if len(bonds) == 0 {
		return nil, ErrNoBonds
	}
	bs := make([][2]int, len(bonds))
	copy(bs, bonds)
	for k, b := range bs {
		if b[0] < 0 || b[1] < 0 {
			return nil, fmt.Errorf("operator: bond %d has negative site index", k)
		}
		if b[0] == b[1] {
			return nil, fmt.Errorf("operator: bond %d connects site %d to itself", k, b[0])
		}
	}
	return &Ising{h: h, j: j, bonds: bs}, nil
}

// ConnectedConfigurations returns s itself carrying the diagonal element
// -J * sum_bonds s_i s_j, followed by one single-spin-flip configuration
// per site carrying -h.
func (o *Ising) ConnectedConfigurations(s []float64) ([][]float64, []complex128, error) {
	diag := 0.0
	for k, b := range o.bonds {
		if b[0] >= len(s) || b[1] >= len(s) {
			return nil, nil, fmt.Errorf("operator: bond %d (%d,%d) outside configuration of %d sites", k, b[0], b[1], len(s))
		}
		diag += s[b[0]] * s[b[1]]
	}

	configs := make([][]float64, 0, len(s)+1)
	elements := make([]complex128, 0, len(s)+1)

	self := make([]float64, len(s))
	copy(self, s)
	configs = append(configs, self)
	elements = append(elements, complex(-o.j*diag, 0))

	for i := range s {
		flipped := make([]float64, len(s))
		copy(flipped, s)
		flipped[i] = -flipped[i]
		configs = append(configs, flipped)
		elements = append(elements, complex(-o.h, 0))
	}
	return configs, elements, nil
}

// Chain returns the bond list of a one-dimensional chain of n sites.
// With periodic boundaries the last site is bonded back to the first
// (skipped for n == 2, where the wrap bond would duplicate the open one).
func Chain(n int, periodic bool) ([][2]int, error) {
	if n < 2 {
		return nil, fmt.Errorf("operator: chain needs at least 2 sites, got %d", n)
	}
	bonds := make([][2]int, 0, n)
	for i := 0; i+1 < n; i++ {
		bonds = append(bonds, [2]int{i, i + 1})
	}
	if periodic && n > 2 {
		bonds = append(bonds, [2]int{n - 1, 0})
	}
	return bonds, nil
}

// Grid returns the bond list of a width x height square lattice with
// sites indexed row-major (site = y*width + x). Periodic boundaries wrap
// each row and column, skipping wrap bonds that would duplicate an open
// one (dimensions of size 2).
func Grid(width, height int, periodic bool) ([][2]int, error) {
	if width < 1 || height < 1 {
		return nil, fmt.Errorf("operator: grid dimensions must be >= 1, got %dx%d", width, height)
	}
	if width*height < 2 {
		return nil, fmt.Errorf("operator: grid needs at least 2 sites, got %dx%d", width, height)
	}
	idx := func(x, y int) int { return y*width + x }
	var bonds [][2]int
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			if x+1 < width {
				bonds = append(bonds, [2]int{idx(x, y), idx(x + 1, y)})
			} else if periodic && width > 2 {
				bonds = append(bonds, [2]int{idx(x, y), idx(0, y)})
			}
			if y+1 < height {
				bonds = append(bonds, [2]int{idx(x, y), idx(x, y + 1)})
			} else if periodic && height > 2 {
				bonds = append(bonds, [2]int{idx(x, y), idx(x, 0)})
			}
		}
	}
	return bonds, nil
}
