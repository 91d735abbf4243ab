// Command vmcrun samples a randomized RBM wavefunction over a spin
// lattice with the batched Metropolis sampler, estimates the
// transverse-field Ising energy from the recorded ensemble, and writes
// trace/histogram plots of the local energies. Runs can be cached to
// disk with gob and reloaded instead of resampled.
package main

import (
	"encoding/gob"
	"flag"
	"fmt"
	"image/color"
	"log"
	"math"
	"os"
	"path/filepath"

	"github.com/Noofbiz/vmc/estimator"
	"github.com/Noofbiz/vmc/hilbert"
	"github.com/Noofbiz/vmc/machine"
	"github.com/Noofbiz/vmc/operator"
	"github.com/Noofbiz/vmc/sampler"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// cacheVersion is incremented when the on-disk run format changes.
const cacheVersion = 1

// cachedRun is the gob payload written to the cache path. Complex
// values are split into real and imaginary planes because gob has no
// complex encoding.
type cachedRun struct {
	Version int
	Seed    uint64

	Samples [][][]float64

	LogRe [][]float64
	LogIm [][]float64

	GradRe [][][]float64
	GradIm [][][]float64
}

func packRun(run *sampler.Run) *cachedRun {
	c := &cachedRun{
		Version: cacheVersion,
		Seed:    *seed,
		Samples: run.Samples,
	}
	for _, lvs := range run.LogValues {
		re := make([]float64, len(lvs))
		im := make([]float64, len(lvs))
		for i, v := range lvs {
			re[i], im[i] = real(v), imag(v)
		}
		c.LogRe = append(c.LogRe, re)
		c.LogIm = append(c.LogIm, im)
	}
	for _, entry := range run.Gradients {
		res := make([][]float64, len(entry))
		ims := make([][]float64, len(entry))
		for k, row := range entry {
			res[k] = make([]float64, len(row))
			ims[k] = make([]float64, len(row))
			for i, v := range row {
				res[k][i], ims[k][i] = real(v), imag(v)
			}
		}
		c.GradRe = append(c.GradRe, res)
		c.GradIm = append(c.GradIm, ims)
	}
	return c
}

func (c *cachedRun) unpack() *sampler.Run {
	run := &sampler.Run{Samples: c.Samples}
	for e := range c.LogRe {
		lvs := make([]complex128, len(c.LogRe[e]))
		for i := range lvs {
			lvs[i] = complex(c.LogRe[e][i], c.LogIm[e][i])
		}
		run.LogValues = append(run.LogValues, lvs)
	}
	for e := range c.GradRe {
		entry := make([][]complex128, len(c.GradRe[e]))
		for k := range entry {
			row := make([]complex128, len(c.GradRe[e][k]))
			for i := range row {
				row[i] = complex(c.GradRe[e][k][i], c.GradIm[e][k][i])
			}
			entry[k] = row
		}
		run.Gradients = append(run.Gradients, entry)
	}
	return run
}

var (
	sites    = flag.Int("sites", 10, "number of lattice sites")
	gridSide = flag.Int("grid", 0, "if >0, use a grid x grid square lattice instead of a chain (overrides -sites)")
	periodic = flag.Bool("periodic", true, "periodic boundary conditions")

	hidden = flag.Int("hidden", 20, "RBM hidden units")
	sigma  = flag.Float64("sigma", 0.05, "stddev of the random RBM parameters")

	field    = flag.Float64("h", 1.0, "transverse field strength")
	coupling = flag.Float64("J", 1.0, "Ising coupling strength")

	batch  = flag.Int("batch", sampler.DefaultBatchSize, "number of parallel Markov chains")
	seed   = flag.Uint64("seed", 42, "base RNG seed")
	worker = flag.Int("worker", 0, "distributed worker index mixed into seeding")

	therm   = flag.Int("therm", 100, "thermalization sweeps to discard")
	records = flag.Int("records", 200, "number of recorded entries")
	step    = flag.Int("step", 1, "schedule stride")
	grads   = flag.Bool("grads", false, "record log-amplitude gradients and report the force norm")

	estBatch = flag.Int("est-batch", 1024, "machine batch bound for the local estimator")

	outDir    = flag.String("out", "output", "directory for plots")
	cachePath = flag.String("cache", "", "optional gob cache path for the sampled run")
	force     = flag.Bool("force", false, "resample even if the cache file exists")
	export    = flag.Bool("export", false, "convert the run to gomlx tensors and report their shapes")
)

func main() {
	flag.Parse()

	bonds, n, err := lattice()
	if err != nil {
		log.Fatalf("lattice setup failed: %v", err)
	}

	hs, err := hilbert.NewSpin(n)
	if err != nil {
		log.Fatalf("failed to build hilbert space: %v", err)
	}
	rbm, err := machine.NewRBM(n, *hidden)
	if err != nil {
		log.Fatalf("failed to build RBM: %v", err)
	}
	rbm.RandomizeParams(*seed, *sigma)

	s, err := sampler.NewMetropolisLocal(rbm, hs, *batch)
	if err != nil {
		log.Fatalf("failed to build sampler: %v", err)
	}
	if err := s.SetWorkerIndex(*worker); err != nil {
		log.Fatalf("failed to set worker index: %v", err)
	}
	s.Seed(*seed)
	if err := s.Reset(true); err != nil {
		log.Fatalf("failed to reset sampler: %v", err)
	}

	run, fromCache, err := sampleOrLoad(s)
	if err != nil {
		log.Fatalf("sampling failed: %v", err)
	}
	if fromCache {
		log.Printf("Loaded cached run from %s (%d entries)", *cachePath, run.Entries())
	} else {
		log.Printf("Sampled %d entries x %d chains over %d sites; mean acceptance %.3f (anomalies: %d)",
			run.Entries(), *batch, n, s.MeanAcceptance(), s.Anomalies())
	}
	if run.Entries() == 0 {
		log.Fatalf("schedule recorded no entries; increase -records")
	}

	op, err := operator.NewIsing(*field, *coupling, bonds)
	if err != nil {
		log.Fatalf("failed to build Ising operator: %v", err)
	}

	samples, values := run.Flatten()
	locals, err := estimator.LocalValues(samples, values, rbm, op, *estBatch)
	if err != nil {
		log.Fatalf("local value estimation failed: %v", err)
	}
	stats, err := estimator.Statistics(locals)
	if err != nil {
		log.Fatalf("statistics failed: %v", err)
	}
	fmt.Printf("Energy over %d samples: %.6f +/- %.6f (variance %.6f, Im %.2e)\n",
		len(locals), real(stats.Mean), stats.StandardError, stats.Variance, imag(stats.Mean))
	fmt.Printf("Energy per site: %.6f\n", real(stats.Mean)/float64(n))

	if *grads {
		ders := run.FlattenGradients()
		force, err := estimator.Gradient(locals, ders)
		if err != nil {
			log.Fatalf("gradient estimation failed: %v", err)
		}
		fmt.Printf("Force vector over %d parameters, norm %.6f\n", len(force), norm(force))
	}

	if err := plotLocals(*outDir, locals, *batch); err != nil {
		log.Fatalf("failed to generate plots: %v", err)
	}
	log.Printf("Plots written to %s", *outDir)

	if *export {
		flat, err := sampler.MakeRunFlat(run)
		if err != nil {
			log.Fatalf("failed to flatten run: %v", err)
		}
		sT, lT, err := flat.ToGomlxTensors()
		if err != nil {
			log.Fatalf("failed to convert run to tensors: %v", err)
		}
		fmt.Printf("Exported tensors: samples=%T [%d, %d], logvals=%T [%d, 2]\n",
			sT, flat.Rows, flat.Sites, lT, flat.Rows)
	}
}

// lattice resolves the bond list and site count from the flags.
func lattice() ([][2]int, int, error) {
	if *gridSide > 0 {
		bonds, err := operator.Grid(*gridSide, *gridSide, *periodic)
		return bonds, *gridSide * *gridSide, err
	}
	bonds, err := operator.Chain(*sites, *periodic)
	return bonds, *sites, err
}

// sampleOrLoad returns the recorded run, either from the gob cache or by
// driving the sampler through the configured schedule.
func sampleOrLoad(s sampler.Sampler) (*sampler.Run, bool, error) {
	if *cachePath != "" && !*force {
		if run, err := loadRun(*cachePath); err == nil {
			return run, true, nil
		} else if !os.IsNotExist(err) {
			log.Printf("cache unusable, resampling: %v", err)
		}
	}

	steps := sampler.Steps{Start: *therm, Stop: *therm + (*records)*(*step), Step: *step}
	run, err := sampler.ComputeSamples(s, steps, *grads)
	if err != nil {
		return nil, false, err
	}
	if *cachePath != "" {
		if err := saveRun(*cachePath, run); err != nil {
			log.Printf("failed to write cache: %v", err)
		}
	}
	return run, false, nil
}

func loadRun(path string) (*sampler.Run, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var c cachedRun
	if err := gob.NewDecoder(f).Decode(&c); err != nil {
		return nil, fmt.Errorf("decode cache: %w", err)
	}
	if c.Version != cacheVersion {
		return nil, fmt.Errorf("cache version %d, want %d", c.Version, cacheVersion)
	}
	if c.Seed != *seed {
		return nil, fmt.Errorf("cache was sampled with seed %d, current seed is %d", c.Seed, *seed)
	}
	return c.unpack(), nil
}

func saveRun(path string, run *sampler.Run) error {
	if err := ensureDir(filepath.Dir(path)); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return gob.NewEncoder(f).Encode(packRun(run))
}

// plotLocals writes a trace of the per-entry mean local energy and a
// histogram of all real local energies.
func plotLocals(dir string, locals []complex128, chains int) error {
	if err := ensureDir(dir); err != nil {
		return err
	}

	// per-entry mean, chains samples per entry
	entries := len(locals) / chains
	trace := make(plotter.XYs, entries)
	for e := 0; e < entries; e++ {
		sum := 0.0
		for c := 0; c < chains; c++ {
			sum += real(locals[e*chains+c])
		}
		trace[e].X = float64(e)
		trace[e].Y = sum / float64(chains)
	}

	p := plot.New()
	p.Title.Text = "Local energy trace (batch mean per recorded sweep)"
	p.X.Label.Text = "recorded sweep"
	p.Y.Label.Text = "Re Eloc"
	line, err := plotter.NewLine(trace)
	if err != nil {
		return err
	}
	line.Color = color.RGBA{R: 20, G: 80, B: 200, A: 220}
	line.Width = vg.Points(1.2)
	p.Add(line, plotter.NewGrid())
	if err := p.Save(8*vg.Inch, 4*vg.Inch, filepath.Join(dir, "energy_trace.png")); err != nil {
		return err
	}

	vals := make(plotter.Values, len(locals))
	for i, lv := range locals {
		vals[i] = real(lv)
	}
	ph := plot.New()
	ph.Title.Text = "Local energy histogram"
	ph.X.Label.Text = "Re Eloc"
	hist, err := plotter.NewHist(vals, 40)
	if err != nil {
		return err
	}
	hist.FillColor = color.RGBA{R: 200, G: 30, B: 30, A: 180}
	ph.Add(hist)
	return ph.Save(8*vg.Inch, 4*vg.Inch, filepath.Join(dir, "energy_hist.png"))
}

func ensureDir(dir string) error {
	if dir == "" || dir == "." {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

func norm(v []complex128) float64 {
	sum := 0.0
	for _, z := range v {
		sum += real(z)*real(z) + imag(z)*imag(z)
	}
	return math.Sqrt(sum)
}
