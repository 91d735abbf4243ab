// Package hilbert describes the discrete local degrees of freedom of a
// many-body system: how many sites there are and which values each site
// may take. Samplers consult it to draw admissible proposal values and
// to validate externally supplied configurations.
package hilbert

import (
	"errors"
	"fmt"
)

var (
	// ErrNoSites is returned when a space is constructed with zero sites.
	ErrNoSites = errors.New("hilbert: number of sites must be >= 1")

	// ErrEmptyLocalValues is returned when a site has no admissible values.
	ErrEmptyLocalValues = errors.New("hilbert: local value set cannot be empty")
)

// Space is a finite Hilbert space: every site carries a finite set of
// admissible local values. The value sets are copied at construction and
// never mutated afterwards, so a Space is safe to share between samplers.
type Space struct {
	values [][]float64
}

// NewCustom builds a Space with an explicit value set per site.
// valuesPerSite must be non-empty and every per-site set must contain at
// least one value. Sites with a single value are allowed; they are
// degenerate (no local move can change them).
func NewCustom(valuesPerSite [][]float64) (*Space, error) {
	if len(valuesPerSite) == 0 {
		return nil, ErrNoSites
	}
	vals := make([][]float64, len(valuesPerSite))
	for i, vs := range valuesPerSite {
		if len(vs) == 0 {
			return nil, fmt.Errorf("site %d: %w", i, ErrEmptyLocalValues)
		}
		vals[i] = make([]float64, len(vs))
		copy(vals[i], vs)
	}
	return &Space{values: vals}, nil
}

// NewUniform builds a Space where every one of the sites shares the same
// admissible value set.
func NewUniform(sites int, values []float64) (*Space, error) {
	if sites < 1 {
		return nil, ErrNoSites
	}
	if len(values) == 0 {
		return nil, ErrEmptyLocalValues
	}
	vals := make([][]float64, sites)
	for i := range vals {
		vals[i] = make([]float64, len(values))
		copy(vals[i], values)
	}
	return &Space{values: vals}, nil
}

// NewSpin builds a spin-1/2 space: every site takes values -1 or +1.
func NewSpin(sites int) (*Space, error) {
	return NewUniform(sites, []float64{-1, 1})
}

// NumSites returns the number of sites in the space.
func (h *Space) NumSites() int { return len(h.values) }

// LocalSize returns the number of admissible values at site i.
func (h *Space) LocalSize(i int) int { return len(h.values[i]) }

// LocalValues returns the admissible values at site i. The returned slice
// is owned by the Space; callers must not modify it.
func (h *Space) LocalValues(i int) []float64 { return h.values[i] }

// Admissible reports whether v is an allowed value at site i.
func (h *Space) Admissible(i int, v float64) bool {
	for _, av := range h.values[i] {
		if av == v {
			return true
		}
	}
	return false
}

// CheckConfig validates a full configuration against the space: it must
// have exactly one value per site and every value must be admissible at
// its site.
func (h *Space) CheckConfig(config []float64) error {
	if len(config) != len(h.values) {
		return fmt.Errorf("hilbert: configuration has %d sites, space has %d", len(config), len(h.values))
	}
	for i, v := range config {
		if !h.Admissible(i, v) {
			return fmt.Errorf("hilbert: value %v not admissible at site %d", v, i)
		}
	}
	return nil
}
