package sampler

import (
	"errors"

	"github.com/gomlx/gomlx/pkg/core/tensors"
)

// RunFlat stores a flattened run in contiguous float32 buffers, ready for
// conversion to gomlx tensors. Rows is Entries x BatchSize; each sample
// row has Sites columns and each log-amplitude row carries (re, im).
type RunFlat struct {
	Samples []float32
	LogVals []float32

	Rows  int
	Sites int
}

// MakeRunFlat flattens a Run into contiguous buffers. The run must carry
// at least one entry.
func MakeRunFlat(r *Run) (*RunFlat, error) {
	if r == nil || r.Entries() == 0 {
		return nil, errors.New("sampler: cannot flatten an empty run")
	}
	samples, values := r.Flatten()
	sites := len(samples[0])
	flat := &RunFlat{
		Samples: make([]float32, 0, len(samples)*sites),
		LogVals: make([]float32, 0, len(values)*2),
		Rows:    len(samples),
		Sites:   sites,
	}
	for _, row := range samples {
		for _, v := range row {
			flat.Samples = append(flat.Samples, float32(v))
		}
	}
	for _, lv := range values {
		flat.LogVals = append(flat.LogVals, float32(real(lv)), float32(imag(lv)))
	}
	return flat, nil
}

// ToGomlxTensors converts the flat buffers into gomlx tensors: the
// sampled configurations with shape [Rows, Sites] and the log-amplitudes
// with shape [Rows, 2] (real and imaginary columns). This is the bridge
// for handing a sampled ensemble to a gomlx training pipeline.
func (b *RunFlat) ToGomlxTensors() (*tensors.Tensor, *tensors.Tensor, error) {
	if b.Rows == 0 || b.Sites == 0 {
		empty := make([][]float32, 0)
		return tensors.FromAnyValue(empty), tensors.FromAnyValue(empty), nil
	}
	samples := make([][]float32, b.Rows)
	logVals := make([][]float32, b.Rows)
	for i := 0; i < b.Rows; i++ {
		samples[i] = b.Samples[i*b.Sites : (i+1)*b.Sites]
		logVals[i] = b.LogVals[i*2 : (i+1)*2]
	}
	return tensors.FromAnyValue(samples), tensors.FromAnyValue(logVals), nil
}
