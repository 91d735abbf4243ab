package sampler

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidStep is returned when a schedule has a non-positive
	// stride.
	ErrInvalidStep = errors.New("sampler: schedule step must be >= 1")

	// ErrNoGradients is returned when gradients are requested from a
	// machine that does not expose them.
	ErrNoGradients = errors.New("sampler: machine does not implement GradientMachine")
)

// Steps is a sweep schedule with half-open range semantics: sweeps
// 0..Start-1 are thermalization and are discarded, then one entry is
// recorded for every index in [Start, Stop) with stride Step. A typical
// schedule is Steps{T, T + N, 1}: discard T sweeps, record N.
type Steps struct {
	Start int
	Stop  int
	Step  int
}

// Len returns the number of entries the schedule records.
func (s Steps) Len() int {
	if s.Stop <= s.Start {
		return 0
	}
	return (s.Stop - s.Start + s.Step - 1) / s.Step
}

// Run is the record of one ComputeSamples invocation. Every entry holds
// the full batch of chain configurations after one recorded sweep,
// together with their log-amplitudes and, if requested, the parameter
// gradients of the log-amplitude. A Run is immutable once returned.
type Run struct {
	// Samples has shape entries x batch x sites.
	Samples [][][]float64

	// LogValues has shape entries x batch.
	LogValues [][]complex128

	// Gradients has shape entries x batch x parameters; nil unless
	// gradients were requested.
	Gradients [][][]complex128
}

// Entries returns the number of recorded schedule entries.
func (r *Run) Entries() int { return len(r.Samples) }

// Flatten concatenates the recorded entries into the flat shape the
// estimator consumes: one row per (entry, chain) pair, in recording
// order, with the matching log-amplitudes.
func (r *Run) Flatten() (samples [][]float64, values []complex128) {
	for e := range r.Samples {
		samples = append(samples, r.Samples[e]...)
		values = append(values, r.LogValues[e]...)
	}
	return samples, values
}

// FlattenGradients concatenates the recorded gradients in the same order
// as Flatten. It returns nil when the run carries no gradients.
func (r *Run) FlattenGradients() [][]complex128 {
	if r.Gradients == nil {
		return nil
	}
	var out [][]complex128
	for e := range r.Gradients {
		out = append(out, r.Gradients[e]...)
	}
	return out
}

// ComputeSamples drives a sampler through a thermalization and thinning
// schedule and records the visited configurations. Each recorded entry is
// the sampler state immediately after one Sweep call; with
// computeGradients the machine's analytic log-amplitude gradient for the
// recorded batch is stored alongside.
//
// Steps.Step < 1 and Steps.Start < 0 fail fast without advancing the
// sampler. Steps.Stop <= Steps.Start is not an error: the thermalization
// sweeps still run and the returned Run is empty.
func ComputeSamples(s Sampler, steps Steps, computeGradients bool) (*Run, error) {
	if s == nil {
		return nil, errors.New("sampler: sampler cannot be nil")
	}
	if steps.Step < 1 {
		return nil, fmt.Errorf("%w, got %d", ErrInvalidStep, steps.Step)
	}
	if steps.Start < 0 {
		return nil, fmt.Errorf("sampler: schedule start must be >= 0, got %d", steps.Start)
	}

	var gm GradientMachine
	if computeGradients {
		var ok bool
		gm, ok = s.Machine().(GradientMachine)
		if !ok {
			return nil, ErrNoGradients
		}
	}

	for t := 0; t < steps.Start; t++ {
		if err := s.Sweep(); err != nil {
			return nil, fmt.Errorf("thermalization sweep %d: %w", t, err)
		}
	}

	run := &Run{
		Samples:   make([][][]float64, 0, steps.Len()),
		LogValues: make([][]complex128, 0, steps.Len()),
	}
	if computeGradients {
		run.Gradients = make([][][]complex128, 0, steps.Len())
	}

	for t := steps.Start; t < steps.Stop; t += steps.Step {
		if err := s.Sweep(); err != nil {
			return nil, fmt.Errorf("sweep %d: %w", t, err)
		}
		batch := s.Visible()
		run.Samples = append(run.Samples, batch)
		run.LogValues = append(run.LogValues, s.LogValues())
		if computeGradients {
			ders, err := gm.LogValGradient(batch)
			if err != nil {
				return nil, fmt.Errorf("gradient at sweep %d: %w", t, err)
			}
			if len(ders) != len(batch) {
				return nil, fmt.Errorf("%w: want %d gradients, got %d", ErrMachineBatch, len(batch), len(ders))
			}
			run.Gradients = append(run.Gradients, ders)
		}
	}
	return run, nil
}
