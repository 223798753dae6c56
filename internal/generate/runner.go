// Package generate orchestrates dataset generation: it derives a
// deterministic seed per sample, resolves the context variables and skyline
// parameters for that sample, hands the resolved set to the simulator
// adapter, and records one metadata row per completed sample. Samples are
// independent and are distributed across a worker pool.
package generate

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"sync"
	"time"

	"golang.org/x/exp/rand"

	"github.com/vk/phylogen/internal/backend"
	"github.com/vk/phylogen/internal/config"
	"github.com/vk/phylogen/internal/contextvar"
	"github.com/vk/phylogen/internal/ctxlog"
	"github.com/vk/phylogen/internal/metadata"
	"github.com/vk/phylogen/internal/skyline"
)

const dataDirname = "data"

// Runner generates every split of the configured dataset.
type Runner struct {
	model    *config.Model
	adapter  backend.Adapter
	resolver *contextvar.Resolver

	// ShowProgress enables the terminal progress tracker.
	ShowProgress bool
}

// NewRunner validates the model's resolvable pieces and prepares a runner.
func NewRunner(model *config.Model, adapter backend.Adapter) (*Runner, error) {
	resolver, err := contextvar.NewResolver(model.Variables)
	if err != nil {
		return nil, err
	}
	declared := make(map[string]bool, len(model.Variables))
	for _, v := range model.Variables {
		declared[v.Name] = true
	}
	for _, p := range model.Params {
		if err := skyline.Validate(p, declared, len(model.Dataset.Populations)); err != nil {
			return nil, err
		}
	}
	return &Runner{model: model, adapter: adapter, resolver: resolver}, nil
}

// Run generates all splits. It returns an error for fatal configuration
// failures; per-sample simulator failures are retried up to the configured
// budget and then recorded as failed without aborting the rest.
func (r *Runner) Run(ctx context.Context) error {
	logger := ctxlog.FromContext(ctx)

	globalSeed := r.seed()
	logger.Info("Starting dataset generation.", "output_dir", r.model.Dataset.OutputDir, "seed", globalSeed)

	// The sample index runs across splits so every sample in the run has a
	// distinct, stable seed.
	nextIndex := 0
	for _, split := range r.model.Dataset.Splits {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := r.runSplit(ctx, split, globalSeed, nextIndex); err != nil {
			return err
		}
		nextIndex += split.Count
	}
	logger.Info("Dataset generation finished.")
	return nil
}

func (r *Runner) seed() uint64 {
	if s := r.model.Dataset.Seed; s != nil {
		return *s
	}
	return uint64(time.Now().UnixNano())
}

func (r *Runner) splitDir(split config.Split) string {
	if split.Name == "" {
		return r.model.Dataset.OutputDir
	}
	return filepath.Join(r.model.Dataset.OutputDir, split.Name)
}

func (r *Runner) runSplit(ctx context.Context, split config.Split, globalSeed uint64, baseIndex int) error {
	logger := ctxlog.FromContext(ctx)
	outDir := r.splitDir(split)

	// An existing directory is assumed to hold a finished run; skipping it
	// keeps later splits' seeds stable because the sample index still
	// advances by the split's count.
	if _, err := os.Stat(outDir); err == nil {
		logger.Warn("Output directory already exists, skipping split.", "dir", outDir)
		return nil
	}

	dataDir := filepath.Join(outDir, dataDirname)
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}

	writer, err := metadata.NewWriter(filepath.Join(outDir, metadata.Filename), r.columns())
	if err != nil {
		return err
	}
	defer writer.Close()

	logger.Info("Generating split.", "dir", outDir, "samples", split.Count)
	return r.generate(ctx, split, dataDir, writer, globalSeed, baseIndex)
}

// columns builds the metadata header: file_id, then every context variable
// and skyline parameter in declaration order, then adapter extras.
func (r *Runner) columns() []string {
	cols := []string{"file_id"}
	for _, v := range r.model.Variables {
		cols = append(cols, v.Name)
	}
	for _, p := range r.model.Params {
		cols = append(cols, p.Name)
	}
	cols = append(cols, r.adapter.Columns()...)
	return cols
}

func (r *Runner) workerCount() int {
	if n := r.model.Dataset.Workers; n > 0 {
		return n
	}
	return runtime.NumCPU()
}

type job struct {
	index  int // global sample index, drives seed derivation
	fileID string
}

// generate runs the split's samples through the worker pool. The pool is
// the teacher pattern for independent work: a buffered job channel, a fixed
// set of workers, and a cancel that fires on the first fatal error.
func (r *Runner) generate(ctx context.Context, split config.Split, dataDir string, writer *metadata.Writer, globalSeed uint64, baseIndex int) error {
	logger := ctxlog.FromContext(ctx)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	jobs := make(chan job, split.Count)
	for i := 0; i < split.Count; i++ {
		jobs <- job{index: baseIndex + i, fileID: strconv.Itoa(i)}
	}
	close(jobs)

	tracker := r.newTracker(split, dataDir)
	defer tracker.stop()

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		failed   []string
		fatalErr error
	)
	workers := r.workerCount()
	logger.Debug("Starting worker pool.", "workers", workers)

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobs {
				if runCtx.Err() != nil {
					return
				}
				row, err := r.generateOne(runCtx, dataDir, j, globalSeed)
				switch {
				case err == nil:
					if werr := writer.WriteRow(row); werr != nil {
						mu.Lock()
						if fatalErr == nil {
							fatalErr = werr
						}
						mu.Unlock()
						cancel()
						return
					}
					tracker.increment()
				case isFatal(err):
					mu.Lock()
					if fatalErr == nil {
						fatalErr = err
					}
					mu.Unlock()
					cancel()
					return
				default:
					logger.Error("Sample failed after all retries.", "file_id", j.fileID, "error", err)
					mu.Lock()
					failed = append(failed, j.fileID)
					mu.Unlock()
					tracker.increment()
				}
			}
		}()
	}
	wg.Wait()

	if fatalErr != nil {
		return fatalErr
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(failed) > 0 {
		logger.Warn("Split finished with failed samples.", "split", split.Name, "failed", len(failed), "total", split.Count)
	}
	return nil
}

// generateOne resolves and dispatches a single sample, retrying rejected
// draws with fresh seeds up to the configured budget.
func (r *Runner) generateOne(ctx context.Context, dataDir string, j job, globalSeed uint64) (map[string]string, error) {
	logger := ctxlog.FromContext(ctx)

	var lastErr error
	for attempt := 0; attempt <= r.model.Dataset.Retries; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		seed := SampleSeed(globalSeed, j.index, attempt)
		sample, err := r.resolveSample(j.fileID, seed)
		if err != nil {
			// Resolution errors are deterministic spec defects, not
			// per-sample bad luck; retrying cannot help.
			return nil, err
		}

		extra, err := r.adapter.Simulate(ctx, dataDir, sample)
		if err != nil {
			lastErr = err
			logger.Warn("Simulation attempt failed, retrying with a fresh draw.",
				"file_id", j.fileID, "attempt", attempt+1, "error", err)
			continue
		}
		return r.row(sample, extra), nil
	}
	return nil, fmt.Errorf("sample %s failed after %d attempts: %w", j.fileID, r.model.Dataset.Retries+1, lastErr)
}

// resolveSample resolves the full parameter set for one (sample, attempt)
// seed. Resolution is pure CPU work; all randomness comes from the derived
// seed.
func (r *Runner) resolveSample(fileID string, seed uint64) (*backend.Sample, error) {
	rng := rand.New(rand.NewSource(seed))

	ctxVals, err := r.resolver.Resolve(rng)
	if err != nil {
		return nil, err
	}

	params := make([]backend.Parameter, len(r.model.Params))
	for i, p := range r.model.Params {
		sky, err := skyline.Resolve(p, ctxVals, len(r.model.Dataset.Populations))
		if err != nil {
			return nil, err
		}
		params[i] = backend.Parameter{Name: p.Name, Skyline: sky}
	}

	order := make([]string, len(r.model.Variables))
	for i, v := range r.model.Variables {
		order[i] = v.Name
	}

	return &backend.Sample{
		FileID:       fileID,
		Seed:         seed,
		Context:      ctxVals,
		ContextOrder: order,
		Params:       params,
		Populations:  r.model.Dataset.Populations,
	}, nil
}

// row flattens a resolved sample into metadata cells.
func (r *Runner) row(sample *backend.Sample, extra map[string]string) map[string]string {
	cells := make(map[string]string, 1+len(sample.Context)+len(sample.Params)+len(extra))
	cells["file_id"] = sample.FileID
	for name, v := range sample.Context {
		cells[name] = v.String()
	}
	for _, p := range sample.Params {
		cells[p.Name] = p.Skyline.String()
	}
	for k, v := range extra {
		cells[k] = v
	}
	return cells
}

// isFatal reports whether an error should abort the whole run rather than
// fail one sample.
func isFatal(err error) bool {
	var ce *config.Error
	return errors.As(err, &ce) || errors.Is(err, context.Canceled)
}
