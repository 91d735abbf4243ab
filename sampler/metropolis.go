package sampler

import (
	"errors"
	"fmt"
	"math/cmplx"
	"math/rand/v2"
)

// DefaultBatchSize is the conventional number of parallel chains.
const DefaultBatchSize = 128

var (
	// ErrBatchSize is returned when a sampler is constructed with fewer
	// than one chain.
	ErrBatchSize = errors.New("sampler: batch size must be >= 1")

	// ErrMachineBatch is returned when the machine violates its contract
	// by returning a batch of the wrong length.
	ErrMachineBatch = errors.New("sampler: machine returned wrong batch length")
)

// MetropolisLocal is a Metropolis sampler performing local moves: one
// randomly chosen site of one chain changes to another admissible value,
// all other sites fixed. It maintains batchSize independent chains and
// evaluates all their proposals with a single Machine.LogVal call per
// move round, so generating batchSize new samples costs one machine
// invocation instead of batchSize.
//
// A MetropolisLocal is not safe for concurrent use; Sweep, Reset and
// SetVisible are synchronous and complete fully before returning.
type MetropolisLocal struct {
	machine Machine
	hilbert HilbertSpace

	batchSize int
	sweepSize int
	worker    int
	baseSeed  uint64

	machineFunc MachineFunc

	visible [][]float64
	logVals []complex128

	accepted []uint64
	proposed []uint64

	anomalies uint64

	rngs []*rand.Rand

	// movable lists the sites with more than one admissible value;
	// degenerate sites never appear in a proposal.
	movable []int

	// scratch buffers reused across move rounds
	proposals [][]float64
	propSite  []int
	propVal   []float64
}

var _ Sampler = (*MetropolisLocal)(nil)

// NewMetropolisLocal builds a batched Metropolis local sampler for the
// given machine and Hilbert space. batchSize is the number of independent
// chains and must be >= 1 (DefaultBatchSize is the conventional choice).
// The sampler starts seeded with base seed 0 on worker 0; call Seed and
// Reset before sampling.
func NewMetropolisLocal(machine Machine, hs HilbertSpace, batchSize int) (*MetropolisLocal, error) {
	if machine == nil {
		return nil, errors.New("sampler: machine cannot be nil")
	}
	if hs == nil {
		return nil, errors.New("sampler: hilbert space cannot be nil")
	}
	if batchSize < 1 {
		return nil, fmt.Errorf("%w, got %d", ErrBatchSize, batchSize)
	}
	n := hs.NumSites()
	if machine.NumVisible() != n {
		return nil, fmt.Errorf("sampler: machine has %d visible units, hilbert space has %d sites", machine.NumVisible(), n)
	}

	s := &MetropolisLocal{
		machine:     machine,
		hilbert:     hs,
		batchSize:   batchSize,
		sweepSize:   n,
		machineFunc: BornWeight,
		visible:     make([][]float64, batchSize),
		logVals:     make([]complex128, batchSize),
		accepted:    make([]uint64, batchSize),
		proposed:    make([]uint64, batchSize),
		proposals:   make([][]float64, batchSize),
		propSite:    make([]int, batchSize),
		propVal:     make([]float64, batchSize),
	}
	for i := 0; i < n; i++ {
		if hs.LocalSize(i) > 1 {
			s.movable = append(s.movable, i)
		}
	}
	for c := 0; c < batchSize; c++ {
		s.visible[c] = make([]float64, n)
		s.proposals[c] = make([]float64, n)
		for i := 0; i < n; i++ {
			s.visible[c][i] = hs.LocalValues(i)[0]
		}
	}
	s.Seed(0)
	if err := s.refreshLogVals(); err != nil {
		return nil, err
	}
	return s, nil
}

// Seed derives one RNG stream per chain from baseSeed and the sampler's
// worker index. Reseeding with the same base seed reproduces the exact
// sequence of proposals and accept/reject outcomes.
func (s *MetropolisLocal) Seed(baseSeed uint64) {
	s.baseSeed = baseSeed
	s.rngs = make([]*rand.Rand, s.batchSize)
	for c := range s.rngs {
		s.rngs[c] = newStream(baseSeed, s.worker, c)
	}
}

// SetWorkerIndex assigns the distributed worker rank mixed into stream
// derivation, so samplers on distinct workers draw disjoint streams from
// a shared base seed. Streams are re-derived immediately.
func (s *MetropolisLocal) SetWorkerIndex(worker int) error {
	if worker < 0 {
		return fmt.Errorf("sampler: worker index must be >= 0, got %d", worker)
	}
	s.worker = worker
	s.Seed(s.baseSeed)
	return nil
}

// SetSweepSize overrides the number of local move rounds per Sweep call.
// The default is the number of sites.
func (s *MetropolisLocal) SetSweepSize(moves int) error {
	if moves < 1 {
		return fmt.Errorf("sampler: sweep size must be >= 1, got %d", moves)
	}
	s.sweepSize = moves
	return nil
}

// Reset clears the acceptance statistics and the anomaly counter. With
// initRandom it also redraws every chain's configuration uniformly from
// the Hilbert space. The log-amplitude cache is recomputed in either
// case, guarding against external mutation of machine parameters between
// runs.
func (s *MetropolisLocal) Reset(initRandom bool) error {
	for c := 0; c < s.batchSize; c++ {
		s.accepted[c] = 0
		s.proposed[c] = 0
	}
	s.anomalies = 0
	if initRandom {
		for c := 0; c < s.batchSize; c++ {
			rng := s.rngs[c]
			for i := 0; i < s.hilbert.NumSites(); i++ {
				vals := s.hilbert.LocalValues(i)
				s.visible[c][i] = vals[rng.IntN(len(vals))]
			}
		}
	}
	return s.refreshLogVals()
}

// Sweep performs sweepSize rounds of local moves. In each round every
// chain independently proposes a new value at a random movable site, all
// proposals are evaluated in one batched machine call, and each chain
// applies the Metropolis test with its own stream.
func (s *MetropolisLocal) Sweep() error {
	if len(s.movable) == 0 {
		// every site is degenerate; no move is possible
		return nil
	}
	for round := 0; round < s.sweepSize; round++ {
		if err := s.moveRound(); err != nil {
			return err
		}
	}
	return nil
}

func (s *MetropolisLocal) moveRound() error {
	for c := 0; c < s.batchSize; c++ {
		rng := s.rngs[c]
		site := s.movable[rng.IntN(len(s.movable))]
		vals := s.hilbert.LocalValues(site)
		cur := s.visible[c][site]

		// draw a new local value, excluding the current one
		curIdx := 0
		for k, v := range vals {
			if v == cur {
				curIdx = k
				break
			}
		}
		k := rng.IntN(len(vals) - 1)
		if k >= curIdx {
			k++
		}

		copy(s.proposals[c], s.visible[c])
		s.proposals[c][site] = vals[k]
		s.propSite[c] = site
		s.propVal[c] = vals[k]
	}

	lvs, err := s.machine.LogVal(s.proposals)
	if err != nil {
		return fmt.Errorf("sampler: machine evaluation failed: %w", err)
	}
	if len(lvs) != s.batchSize {
		return fmt.Errorf("%w: want %d, got %d", ErrMachineBatch, s.batchSize, len(lvs))
	}

	for c := 0; c < s.batchSize; c++ {
		s.proposed[c]++
		u := s.rngs[c].Float64()
		if !finite(lvs[c]) {
			// never move into a configuration with an undefined
			// amplitude; the other chains are unaffected
			s.anomalies++
			continue
		}
		r := s.machineFunc(cmplx.Exp(lvs[c] - s.logVals[c]))
		if u < r {
			s.visible[c][s.propSite[c]] = s.propVal[c]
			s.logVals[c] = lvs[c]
			s.accepted[c]++
		}
	}
	return nil
}

// Visible returns a copy of the current batch of configurations.
func (s *MetropolisLocal) Visible() [][]float64 {
	out := make([][]float64, s.batchSize)
	for c := range out {
		out[c] = make([]float64, len(s.visible[c]))
		copy(out[c], s.visible[c])
	}
	return out
}

// SetVisible overwrites the batch of configurations and refreshes the
// log-amplitude cache. The batch must contain exactly one admissible
// configuration per chain; on any validation error the sampler state is
// left unchanged.
func (s *MetropolisLocal) SetVisible(batch [][]float64) error {
	if len(batch) != s.batchSize {
		return fmt.Errorf("sampler: batch has %d rows, sampler has %d chains", len(batch), s.batchSize)
	}
	n := s.hilbert.NumSites()
	for c, row := range batch {
		if len(row) != n {
			return fmt.Errorf("sampler: chain %d configuration has %d sites, hilbert space has %d", c, len(row), n)
		}
		for i, v := range row {
			if !s.hilbert.Admissible(i, v) {
				return fmt.Errorf("sampler: chain %d: value %v not admissible at site %d", c, v, i)
			}
		}
	}
	for c, row := range batch {
		copy(s.visible[c], row)
	}
	return s.refreshLogVals()
}

// LogValues returns a copy of the cached per-chain log-amplitudes.
func (s *MetropolisLocal) LogValues() []complex128 {
	out := make([]complex128, s.batchSize)
	copy(out, s.logVals)
	return out
}

// Acceptance returns the per-chain accepted/proposed ratio since the
// last Reset. Chains with no proposed moves report zero.
func (s *MetropolisLocal) Acceptance() []float64 {
	out := make([]float64, s.batchSize)
	for c := 0; c < s.batchSize; c++ {
		if s.proposed[c] > 0 {
			out[c] = float64(s.accepted[c]) / float64(s.proposed[c])
		}
	}
	return out
}

// MeanAcceptance returns the acceptance ratio averaged over chains.
func (s *MetropolisLocal) MeanAcceptance() float64 {
	sum := 0.0
	for _, a := range s.Acceptance() {
		sum += a
	}
	return sum / float64(s.batchSize)
}

// Anomalies returns how many proposals were rejected because the machine
// produced a non-finite log-amplitude since the last Reset. A non-zero
// value usually signals broken machine parameters rather than a sampler
// fault.
func (s *MetropolisLocal) Anomalies() uint64 { return s.anomalies }

// BatchSize returns the number of independent chains.
func (s *MetropolisLocal) BatchSize() int { return s.batchSize }

// Hilbert returns the Hilbert space the sampler draws proposals from.
func (s *MetropolisLocal) Hilbert() HilbertSpace { return s.hilbert }

// Machine returns the wavefunction evaluator bound to the sampler.
func (s *MetropolisLocal) Machine() Machine { return s.machine }

// MachineFunc returns the current weighting function.
func (s *MetropolisLocal) MachineFunc() MachineFunc { return s.machineFunc }

// SetMachineFunc replaces the weighting function used in the acceptance
// test. The function must be non-nil and multiplicative.
func (s *MetropolisLocal) SetMachineFunc(f MachineFunc) error {
	if f == nil {
		return errors.New("sampler: machine func cannot be nil")
	}
	s.machineFunc = f
	return nil
}

// refreshLogVals recomputes the log-amplitude cache from the current
// visible batch, restoring the cache invariant.
func (s *MetropolisLocal) refreshLogVals() error {
	lvs, err := s.machine.LogVal(s.visible)
	if err != nil {
		return fmt.Errorf("sampler: machine evaluation failed: %w", err)
	}
	if len(lvs) != s.batchSize {
		return fmt.Errorf("%w: want %d, got %d", ErrMachineBatch, s.batchSize, len(lvs))
	}
	copy(s.logVals, lvs)
	return nil
}
