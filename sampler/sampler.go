// Package sampler implements Markov-chain Monte Carlo sampling of visible
// configurations from a parametrized wavefunction. A Sampler generates
// configurations distributed according to P(s) proportional to F(psi(s)),
// where F is a configurable weighting function and by default F(x)=|x|^2.
//
// The concrete sampler provided here, MetropolisLocal, runs a batch of
// independent Markov chains and advances all of them with a single
// wavefunction evaluation per move round, hiding the per-call latency of
// the machine behind the batch.
package sampler

import (
	"math"
	"math/cmplx"
)

// Machine is the minimal interface the sampler needs from a wavefunction
// evaluator. Implementations must be deterministic for fixed parameters
// and must preserve the order of the input batch in the returned values.
type Machine interface {
	// NumVisible returns the number of visible units (sites) the machine
	// expects in each configuration.
	NumVisible() int

	// LogVal returns the complex log-amplitude of every configuration in
	// the batch, one value per row, in input order.
	LogVal(batch [][]float64) ([]complex128, error)
}

// GradientMachine is implemented by machines that additionally expose the
// analytic gradient of the log-amplitude with respect to their parameters.
type GradientMachine interface {
	Machine

	// LogValGradient returns, for every configuration in the batch, the
	// vector of partial derivatives of the log-amplitude with respect to
	// the machine parameters.
	LogValGradient(batch [][]float64) ([][]complex128, error)
}

// HilbertSpace is the minimal interface the sampler needs from the
// Hilbert space describing the local degrees of freedom.
// hilbert.Space satisfies it.
type HilbertSpace interface {
	NumSites() int
	LocalSize(site int) int
	LocalValues(site int) []float64
	Admissible(site int, v float64) bool
}

// MachineFunc is the weighting function F applied to the wavefunction
// amplitude; the sampler targets P(s) proportional to F(psi(s)).
//
// Acceptance ratios are evaluated in the log domain as F(exp(logpsi' -
// logpsi)), which equals F(psi')/F(psi) only when F is multiplicative
// (F(xy) = F(x)F(y)). Both provided functions are; custom functions must
// be as well.
type MachineFunc func(x complex128) float64

// BornWeight is the default weighting function, |x|^2.
func BornWeight(x complex128) float64 {
	return real(x)*real(x) + imag(x)*imag(x)
}

// AbsWeight weights by the amplitude modulus, |x|.
func AbsWeight(x complex128) float64 {
	return cmplx.Abs(x)
}

// Sampler is the capability contract every concrete sampler satisfies.
// Alternative move strategies (exchange moves, Hamiltonian-guided moves,
// exact enumeration, tempered variants) are expressed as further
// implementations of this interface, not as subtypes of MetropolisLocal.
type Sampler interface {
	// Seed deterministically derives the per-chain RNG streams from
	// baseSeed. Chains never share a stream, and samplers constructed
	// with distinct worker indices derive disjoint streams from the same
	// base seed.
	Seed(baseSeed uint64)

	// Reset clears the acceptance statistics. If initRandom is true the
	// visible configurations are redrawn uniformly from the Hilbert
	// space; otherwise they are preserved. The log-amplitude cache is
	// recomputed either way.
	Reset(initRandom bool) error

	// Sweep advances every chain by one sweep.
	Sweep() error

	// Visible returns a copy of the current batch of configurations, one
	// row per chain.
	Visible() [][]float64

	// SetVisible overwrites the batch of configurations. The batch must
	// have one row per chain, each row matching the Hilbert space, and
	// every value must be admissible at its site. The log-amplitude
	// cache is refreshed immediately.
	SetVisible(batch [][]float64) error

	// LogValues returns a copy of the cached log-amplitudes, one per
	// chain, consistent with Visible at all times.
	LogValues() []complex128

	// Acceptance returns the per-chain ratio of accepted to proposed
	// moves since the last Reset. A chain with no proposed moves reports
	// zero. Rejection-free samplers report 1 identically.
	Acceptance() []float64

	// MeanAcceptance aggregates Acceptance as the arithmetic mean over
	// chains.
	MeanAcceptance() float64

	Hilbert() HilbertSpace
	Machine() Machine

	// MachineFunc returns the current weighting function.
	MachineFunc() MachineFunc

	// SetMachineFunc replaces the weighting function. The function must
	// be non-nil and multiplicative.
	SetMachineFunc(f MachineFunc) error
}

// finite reports whether a complex log-amplitude is usable in the
// acceptance test: both parts must be neither NaN nor infinite.
func finite(z complex128) bool {
	re, im := real(z), imag(z)
	if math.IsNaN(re) || math.IsInf(re, 0) {
		return false
	}
	if math.IsNaN(im) || math.IsInf(im, 0) {
		return false
	}
	return true
}
