package machine

import (
	"math"
	"math/cmplx"
	"testing"
)

func spinBatch() [][]float64 {
	return [][]float64{
		{1, 1, 1},
		{1, -1, 1},
		{-1, -1, -1},
		{-1, 1, -1},
	}
}

func TestNewRBMValidation(t *testing.T) {
	if _, err := NewRBM(0, 2); err == nil {
		t.Fatalf("zero visible units accepted")
	}
	if _, err := NewRBM(2, 0); err == nil {
		t.Fatalf("zero hidden units accepted")
	}
	r, err := NewRBM(3, 2)
	if err != nil {
		t.Fatalf("NewRBM returned error: %v", err)
	}
	if r.NumPar() != 3+2+6 {
		t.Fatalf("NumPar = %d, want 11", r.NumPar())
	}
}

func TestZeroRBMIsConstant(t *testing.T) {
	r, err := NewRBM(3, 2)
	if err != nil {
		t.Fatalf("NewRBM returned error: %v", err)
	}
	lvs, err := r.LogVal(spinBatch())
	if err != nil {
		t.Fatalf("LogVal returned error: %v", err)
	}
	want := complex(2*math.Ln2, 0)
	for i, lv := range lvs {
		if cmplx.Abs(lv-want) > 1e-12 {
			t.Errorf("config %d: logpsi %v, want %v", i, lv, want)
		}
	}
}

func TestRandomizeParamsDeterministic(t *testing.T) {
	a, _ := NewRBM(4, 3)
	b, _ := NewRBM(4, 3)
	a.RandomizeParams(77, 0.1)
	b.RandomizeParams(77, 0.1)
	pa, pb := a.Params(), b.Params()
	for i := range pa {
		if pa[i] != pb[i] {
			t.Fatalf("parameter %d differs across identical seeds", i)
		}
	}

	c, _ := NewRBM(4, 3)
	c.RandomizeParams(78, 0.1)
	same := true
	pc := c.Params()
	for i := range pa {
		if pa[i] != pc[i] {
			same = false
			break
		}
	}
	if same {
		t.Fatalf("distinct seeds produced identical parameters")
	}
}

func TestParamsRoundTrip(t *testing.T) {
	r, _ := NewRBM(2, 2)
	r.RandomizeParams(5, 0.2)
	p := r.Params()

	s, _ := NewRBM(2, 2)
	if err := s.SetParams(p); err != nil {
		t.Fatalf("SetParams returned error: %v", err)
	}
	lv1, err := r.LogVal(spinBatchTwoSites())
	if err != nil {
		t.Fatalf("LogVal returned error: %v", err)
	}
	lv2, err := s.LogVal(spinBatchTwoSites())
	if err != nil {
		t.Fatalf("LogVal returned error: %v", err)
	}
	for i := range lv1 {
		if lv1[i] != lv2[i] {
			t.Fatalf("config %d: round-tripped parameters change the amplitude", i)
		}
	}

	if err := s.SetParams(p[:3]); err == nil {
		t.Fatalf("short parameter vector accepted")
	}
}

func spinBatchTwoSites() [][]float64 {
	return [][]float64{{1, 1}, {1, -1}, {-1, 1}, {-1, -1}}
}

func TestLogValShapeValidation(t *testing.T) {
	r, _ := NewRBM(3, 2)
	if _, err := r.LogVal([][]float64{{1, 1}}); err == nil {
		t.Fatalf("wrong-length configuration accepted by LogVal")
	}
	if _, err := r.LogValGradient([][]float64{{1, 1}}); err == nil {
		t.Fatalf("wrong-length configuration accepted by LogValGradient")
	}
}

func TestLncoshStability(t *testing.T) {
	// large activations must not overflow: log(2 cosh x) -> |x| + tiny
	for _, x := range []float64{50, 500, -500} {
		got := lncosh2(complex(x, 0.3))
		if math.IsInf(real(got), 0) || math.IsNaN(real(got)) {
			t.Fatalf("lncosh2 overflowed at x=%v: %v", x, got)
		}
		if math.Abs(real(got)-math.Abs(x)) > 1 {
			t.Fatalf("lncosh2(%v) = %v, expected close to |x|", x, got)
		}
	}
	// small activation agrees with the direct formula
	z := complex(0.3, -0.2)
	direct := cmplx.Log(2 * cmplx.Cosh(z))
	if cmplx.Abs(lncosh2(z)-direct) > 1e-12 {
		t.Fatalf("lncosh2(%v) = %v, direct formula gives %v", z, lncosh2(z), direct)
	}
}

// The analytic gradient must match a central finite difference of LogVal
// with respect to each parameter, separately in the real and imaginary
// directions (logpsi is holomorphic in the parameters).
func TestLogValGradientMatchesFiniteDifference(t *testing.T) {
	r, _ := NewRBM(3, 2)
	r.RandomizeParams(13, 0.3)

	config := [][]float64{{1, -1, 1}}
	grads, err := r.LogValGradient(config)
	if err != nil {
		t.Fatalf("LogValGradient returned error: %v", err)
	}
	g := grads[0]

	const h = 1e-6
	const tol = 1e-5
	base := r.Params()

	logValAt := func(p []complex128) complex128 {
		if err := r.SetParams(p); err != nil {
			t.Fatalf("SetParams returned error: %v", err)
		}
		lvs, err := r.LogVal(config)
		if err != nil {
			t.Fatalf("LogVal returned error: %v", err)
		}
		return lvs[0]
	}

	for k := 0; k < r.NumPar(); k++ {
		// real direction
		p := append([]complex128(nil), base...)
		p[k] = base[k] + complex(h, 0)
		plus := logValAt(p)
		p[k] = base[k] - complex(h, 0)
		minus := logValAt(p)
		numeric := (plus - minus) / complex(2*h, 0)
		if cmplx.Abs(numeric-g[k]) > tol {
			t.Fatalf("parameter %d: real-direction derivative %v, analytic %v", k, numeric, g[k])
		}

		// imaginary direction: d logpsi / d(i h) = -i * (f(p+ih)-f(p-ih))/(2h)
		p[k] = base[k] + complex(0, h)
		plus = logValAt(p)
		p[k] = base[k] - complex(0, h)
		minus = logValAt(p)
		numeric = (plus - minus) / complex(0, 2*h)
		if cmplx.Abs(numeric-g[k]) > tol {
			t.Fatalf("parameter %d: imaginary-direction derivative %v, analytic %v", k, numeric, g[k])
		}
	}
	if err := r.SetParams(base); err != nil {
		t.Fatalf("SetParams returned error: %v", err)
	}
}

func TestLogValBatchedMatchesSingle(t *testing.T) {
	r, _ := NewRBM(3, 4)
	r.RandomizeParams(99, 0.25)
	batch := spinBatch()
	all, err := r.LogVal(batch)
	if err != nil {
		t.Fatalf("LogVal returned error: %v", err)
	}
	for i, s := range batch {
		one, err := r.LogVal([][]float64{s})
		if err != nil {
			t.Fatalf("LogVal returned error: %v", err)
		}
		if one[0] != all[i] {
			t.Fatalf("config %d: batched and single evaluation disagree", i)
		}
	}
}
