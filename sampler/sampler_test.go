package sampler

import (
	"fmt"
	"math"
)

// constMachine has the same amplitude on every configuration. Every local
// move is accepted, so the stationary distribution is uniform.
type constMachine struct{ n int }

func (m *constMachine) NumVisible() int { return m.n }

func (m *constMachine) LogVal(batch [][]float64) ([]complex128, error) {
	return make([]complex128, len(batch)), nil
}

// fieldMachine is a product state: logpsi(s) = sum_i coef_i * s_i. Small
// but non-trivial, with exactly reproducible log-amplitudes.
type fieldMachine struct{ coef []complex128 }

func newFieldMachine(n int) *fieldMachine {
	m := &fieldMachine{coef: make([]complex128, n)}
	for i := range m.coef {
		m.coef[i] = complex(0.3+0.05*float64(i), 0.1*float64(i%3))
	}
	return m
}

func (m *fieldMachine) NumVisible() int { return len(m.coef) }

func (m *fieldMachine) LogVal(batch [][]float64) ([]complex128, error) {
	out := make([]complex128, len(batch))
	for b, row := range batch {
		if len(row) != len(m.coef) {
			return nil, fmt.Errorf("fieldMachine: want %d sites, got %d", len(m.coef), len(row))
		}
		var acc complex128
		for i, v := range row {
			acc += m.coef[i] * complex(v, 0)
		}
		out[b] = acc
	}
	return out, nil
}

// LogValGradient of the product state is just the configuration itself:
// d logpsi / d coef_i = s_i.
func (m *fieldMachine) LogValGradient(batch [][]float64) ([][]complex128, error) {
	out := make([][]complex128, len(batch))
	for b, row := range batch {
		g := make([]complex128, len(row))
		for i, v := range row {
			g[i] = complex(v, 0)
		}
		out[b] = g
	}
	return out, nil
}

// nanMachine poisons every configuration whose first site is +1.
type nanMachine struct{ n int }

func (m *nanMachine) NumVisible() int { return m.n }

func (m *nanMachine) LogVal(batch [][]float64) ([]complex128, error) {
	out := make([]complex128, len(batch))
	for b, row := range batch {
		if row[0] > 0 {
			out[b] = complex(math.NaN(), 0)
		}
	}
	return out, nil
}

// shortMachine starts honest and can be switched to violate the batch
// length contract.
type shortMachine struct {
	n         int
	misbehave bool
}

func (m *shortMachine) NumVisible() int { return m.n }

func (m *shortMachine) LogVal(batch [][]float64) ([]complex128, error) {
	if m.misbehave {
		return make([]complex128, len(batch)/2), nil
	}
	return make([]complex128, len(batch)), nil
}

func equalBatches(a, b [][]float64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if len(a[i]) != len(b[i]) {
			return false
		}
		for j := range a[i] {
			if a[i][j] != b[i][j] {
				return false
			}
		}
	}
	return true
}

func equalComplex(a, b []complex128) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
