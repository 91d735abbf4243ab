// Package machine provides a reference wavefunction evaluator: a
// restricted Boltzmann machine over spin-1/2 configurations with complex
// parameters. Samplers and estimators treat machines as opaque, so any
// type with the same LogVal/LogValGradient surface can stand in for it.
package machine

import (
	"fmt"
	"math/cmplx"
	"math/rand/v2"
)

// RBM is a restricted Boltzmann machine wavefunction:
//
//	logpsi(s) = sum_i a_i s_i + sum_j log(2 cosh(b_j + sum_i W_ji s_i))
//
// with complex visible biases a, hidden biases b and weights W. All
// evaluation methods are batched and leave the parameters untouched.
type RBM struct {
	nVisible int
	nHidden  int

	a []complex128
	b []complex128
	w []complex128 // row-major, w[j*nVisible+i]
}

// NewRBM builds an RBM with the given visible and hidden layer sizes,
// all parameters zero. A zero RBM has logpsi(s) = nHidden * log 2 for
// every configuration, which is a valid (constant) state.
func NewRBM(visible, hidden int) (*RBM, error) {
	if visible < 1 {
		return nil, fmt.Errorf("machine: visible units must be >= 1, got %d", visible)
	}
	if hidden < 1 {
		return nil, fmt.Errorf("machine: hidden units must be >= 1, got %d", hidden)
	}
	return &RBM{
		nVisible: visible,
		nHidden:  hidden,
		a:        make([]complex128, visible),
		b:        make([]complex128, hidden),
		w:        make([]complex128, visible*hidden),
	}, nil
}

// NumVisible returns the number of visible units.
func (r *RBM) NumVisible() int { return r.nVisible }

// NumHidden returns the number of hidden units.
func (r *RBM) NumHidden() int { return r.nHidden }

// NumPar returns the total parameter count: visible biases, hidden
// biases, then weights.
func (r *RBM) NumPar() int { return r.nVisible + r.nHidden + r.nVisible*r.nHidden }

// RandomizeParams draws every parameter from a centered complex normal
// distribution with standard deviation sigma per component. The same
// seed always produces the same parameters.
func (r *RBM) RandomizeParams(seed uint64, sigma float64) {
	rng := rand.New(rand.NewPCG(seed, seed^0xDEADBEEF))
	draw := func() complex128 {
		return complex(sigma*rng.NormFloat64(), sigma*rng.NormFloat64())
	}
	for i := range r.a {
		r.a[i] = draw()
	}
	for j := range r.b {
		r.b[j] = draw()
	}
	for k := range r.w {
		r.w[k] = draw()
	}
}

// Params returns a copy of the parameter vector in the order visible
// biases, hidden biases, weights (hidden-major).
func (r *RBM) Params() []complex128 {
	out := make([]complex128, 0, r.NumPar())
	out = append(out, r.a...)
	out = append(out, r.b...)
	out = append(out, r.w...)
	return out
}

// SetParams overwrites the parameter vector; the layout must match
// Params.
func (r *RBM) SetParams(p []complex128) error {
	if len(p) != r.NumPar() {
		return fmt.Errorf("machine: parameter vector has %d entries, want %d", len(p), r.NumPar())
	}
	copy(r.a, p[:r.nVisible])
	copy(r.b, p[r.nVisible:r.nVisible+r.nHidden])
	copy(r.w, p[r.nVisible+r.nHidden:])
	return nil
}

// LogVal returns the log-amplitude of every configuration in the batch.
func (r *RBM) LogVal(batch [][]float64) ([]complex128, error) {
	out := make([]complex128, len(batch))
	for bi, s := range batch {
		if len(s) != r.nVisible {
			return nil, fmt.Errorf("machine: configuration %d has %d sites, want %d", bi, len(s), r.nVisible)
		}
		var acc complex128
		for i, v := range s {
			acc += r.a[i] * complex(v, 0)
		}
		for j := 0; j < r.nHidden; j++ {
			acc += lncosh2(r.theta(j, s))
		}
		out[bi] = acc
	}
	return out, nil
}

// LogValGradient returns, per configuration, the partial derivatives of
// the log-amplitude with respect to the parameters, laid out like Params:
//
//	d/d a_i  = s_i
//	d/d b_j  = tanh(theta_j)
//	d/d W_ji = s_i * tanh(theta_j)
func (r *RBM) LogValGradient(batch [][]float64) ([][]complex128, error) {
	out := make([][]complex128, len(batch))
	for bi, s := range batch {
		if len(s) != r.nVisible {
			return nil, fmt.Errorf("machine: configuration %d has %d sites, want %d", bi, len(s), r.nVisible)
		}
		g := make([]complex128, r.NumPar())
		for i, v := range s {
			g[i] = complex(v, 0)
		}
		for j := 0; j < r.nHidden; j++ {
			th := cmplx.Tanh(r.theta(j, s))
			g[r.nVisible+j] = th
			base := r.nVisible + r.nHidden + j*r.nVisible
			for i, v := range s {
				g[base+i] = complex(v, 0) * th
			}
		}
		out[bi] = g
	}
	return out, nil
}

// theta computes the hidden unit activation b_j + sum_i W_ji s_i.
func (r *RBM) theta(j int, s []float64) complex128 {
	acc := r.b[j]
	row := r.w[j*r.nVisible : (j+1)*r.nVisible]
	for i, v := range s {
		acc += row[i] * complex(v, 0)
	}
	return acc
}

// lncosh2 computes log(2 cosh z) without overflowing for large |Re z|:
// log(2 cosh z) = z + log(1 + exp(-2z)) for Re z >= 0, and cosh is even.
func lncosh2(z complex128) complex128 {
	if real(z) < 0 {
		z = -z
	}
	return z + cmplx.Log(1+cmplx.Exp(-2*z))
}
