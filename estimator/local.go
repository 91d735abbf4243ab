// Package estimator turns recorded samples into observable estimates:
// per-sample local operator values via the connected-configuration
// expansion, ensemble statistics, and the stochastic log-derivative
// gradient used to update machine parameters.
package estimator

import (
	"errors"
	"fmt"
	"math/cmplx"
)

var (
	// ErrBatchSize is returned when the evaluation batch bound is below 1.
	ErrBatchSize = errors.New("estimator: batch size must be >= 1")

	// ErrLengthMismatch is returned when the samples and log-amplitude
	// slices disagree in length.
	ErrLengthMismatch = errors.New("estimator: samples and values must have equal length")

	// ErrOperatorMismatch is returned when an operator hands back
	// configuration and matrix-element lists of different lengths.
	ErrOperatorMismatch = errors.New("estimator: operator returned mismatched configurations and matrix elements")

	// ErrMachineBatch is returned when the machine returns a batch of the
	// wrong length.
	ErrMachineBatch = errors.New("estimator: machine returned wrong batch length")
)

// Machine is the slice of the wavefunction evaluator the estimator needs.
type Machine interface {
	LogVal(batch [][]float64) ([]complex128, error)
}

// Operator exposes, for a configuration s, the finite set of
// configurations s' connected to it together with the matrix elements
// <s|O|s'>. Both slices are paired by index and must have equal length.
type Operator interface {
	ConnectedConfigurations(config []float64) (configs [][]float64, elements []complex128, err error)
}

// pending tracks one connected configuration awaiting machine evaluation.
type pending struct {
	sample  int
	element complex128
}

// LocalValues computes the importance-sampling local value
//
//	Oloc(s) = sum_k O_k * exp(logpsi(s'_k) - logpsi(s))
//
// for every recorded sample. values[i] must be the log-amplitude of
// samples[i] as produced by the sample driver. Machine evaluations of the
// connected configurations are grouped into calls of at most batchSize
// rows; the grouping affects memory and latency only, never the result.
func LocalValues(samples [][]float64, values []complex128, m Machine, op Operator, batchSize int) ([]complex128, error) {
	if m == nil {
		return nil, errors.New("estimator: machine cannot be nil")
	}
	if op == nil {
		return nil, errors.New("estimator: operator cannot be nil")
	}
	if len(samples) != len(values) {
		return nil, fmt.Errorf("%w: %d samples, %d values", ErrLengthMismatch, len(samples), len(values))
	}
	if batchSize < 1 {
		return nil, fmt.Errorf("%w, got %d", ErrBatchSize, batchSize)
	}

	locals := make([]complex128, len(samples))
	queue := make([]pending, 0, batchSize)
	configs := make([][]float64, 0, batchSize)

	flush := func() error {
		if len(configs) == 0 {
			return nil
		}
		lvs, err := m.LogVal(configs)
		if err != nil {
			return fmt.Errorf("estimator: machine evaluation failed: %w", err)
		}
		if len(lvs) != len(configs) {
			return fmt.Errorf("%w: want %d, got %d", ErrMachineBatch, len(configs), len(lvs))
		}
		for k, p := range queue {
			locals[p.sample] += p.element * cmplx.Exp(lvs[k]-values[p.sample])
		}
		queue = queue[:0]
		configs = configs[:0]
		return nil
	}

	for i, s := range samples {
		conns, elems, err := op.ConnectedConfigurations(s)
		if err != nil {
			return nil, fmt.Errorf("estimator: operator failed on sample %d: %w", i, err)
		}
		if len(conns) != len(elems) {
			return nil, fmt.Errorf("%w: %d configurations, %d elements", ErrOperatorMismatch, len(conns), len(elems))
		}
		for k := range conns {
			queue = append(queue, pending{sample: i, element: elems[k]})
			configs = append(configs, conns[k])
			if len(configs) >= batchSize {
				if err := flush(); err != nil {
					return nil, err
				}
			}
		}
	}
	if err := flush(); err != nil {
		return nil, err
	}
	return locals, nil
}
