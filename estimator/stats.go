package estimator

import (
	"errors"
	"fmt"
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/stat"
)

// ErrNoSamples is returned when statistics are requested over an empty
// ensemble.
var ErrNoSamples = errors.New("estimator: need at least one sample")

// Stats summarizes an ensemble of local values. Variance and
// StandardError describe the real part, which carries the physical
// observable for Hermitian operators; the imaginary part of Mean is a
// useful diagnostic of sampling noise.
type Stats struct {
	Mean          complex128
	Variance      float64
	StandardError float64
}

// Statistics computes the ensemble mean, variance and standard error of
// the mean over the local values.
func Statistics(locals []complex128) (Stats, error) {
	if len(locals) == 0 {
		return Stats{}, ErrNoSamples
	}
	re := make([]float64, len(locals))
	im := make([]float64, len(locals))
	for i, v := range locals {
		re[i] = real(v)
		im[i] = imag(v)
	}
	s := Stats{
		Mean: complex(stat.Mean(re, nil), stat.Mean(im, nil)),
	}
	if len(locals) > 1 {
		s.Variance = stat.Variance(re, nil)
		s.StandardError = math.Sqrt(s.Variance / float64(len(locals)))
	}
	return s, nil
}

// Gradient computes the stochastic force vector driving parameter
// updates:
//
//	f_k = < conj(d logpsi / d p_k) * (Oloc - <Oloc>) >
//
// where the average runs over the ensemble. ders[i] must be the
// log-derivative vector recorded for samples[i]; all rows must have the
// same parameter count.
func Gradient(locals []complex128, ders [][]complex128) ([]complex128, error) {
	if len(locals) == 0 {
		return nil, ErrNoSamples
	}
	if len(ders) != len(locals) {
		return nil, fmt.Errorf("%w: %d local values, %d gradient rows", ErrLengthMismatch, len(locals), len(ders))
	}
	numPar := len(ders[0])
	var mean complex128
	for _, v := range locals {
		mean += v
	}
	mean /= complex(float64(len(locals)), 0)

	force := make([]complex128, numPar)
	for i, row := range ders {
		if len(row) != numPar {
			return nil, fmt.Errorf("%w: gradient row %d has %d parameters, row 0 has %d", ErrLengthMismatch, i, len(row), numPar)
		}
		d := locals[i] - mean
		for k, g := range row {
			force[k] += cmplx.Conj(g) * d
		}
	}
	inv := complex(1/float64(len(locals)), 0)
	for k := range force {
		force[k] *= inv
	}
	return force, nil
}
