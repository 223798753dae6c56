package generate

import (
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/phylogen/internal/backend"
	"github.com/vk/phylogen/internal/config"
)

const testConfig = `
dataset {
  seed    = 42
  workers = 1
  retries = 3
  samples = 6
}

variable "r0" {
  distribution = "uniform"
  low          = 1
  high         = 5
}

variable "infectious_period" {
  distribution = "lognormal"
  mean         = 1
  std          = 0.2
}

variable "beta" { expr = "r0 / infectious_period" }

parameter "transmission_rate" {
  value = "beta"
}

parameter "sampling_proportion" {
  value        = [0, 0.3]
  change_times = [2]
}
`

func loadModel(t *testing.T, src, outDir string) *config.Model {
	t.Helper()
	model, err := config.LoadSource([]byte(src), "test.hcl")
	require.NoError(t, err)
	model.Dataset.OutputDir = outDir
	return model
}

func readRows(t *testing.T, dir string) [][]string {
	t.Helper()
	f, err := os.Open(filepath.Join(dir, "metadata.csv"))
	require.NoError(t, err)
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return records
}

func TestRunGeneratesDataset(t *testing.T) {
	outDir := filepath.Join(t.TempDir(), "out")
	model := loadModel(t, testConfig, outDir)
	stub := backend.NewStub()

	r, err := NewRunner(model, stub)
	require.NoError(t, err)
	require.NoError(t, r.Run(context.Background()))

	assert.DirExists(t, filepath.Join(outDir, "data"))
	assert.Len(t, stub.Samples(), 6)

	rows := readRows(t, outDir)
	require.Len(t, rows, 7)
	assert.Equal(t, []string{"file_id", "r0", "infectious_period", "beta", "transmission_rate", "sampling_proportion"}, rows[0])

	ids := make(map[string]bool)
	for _, row := range rows[1:] {
		ids[row[0]] = true
		assert.NotEmpty(t, row[1])
		assert.Contains(t, row[5], "change_times=[2]")
	}
	assert.Len(t, ids, 6)
}

func TestRunDeterminism(t *testing.T) {
	t.Run("identical runs produce identical metadata", func(t *testing.T) {
		base := t.TempDir()
		dirA := filepath.Join(base, "a")
		dirB := filepath.Join(base, "b")

		for _, dir := range []string{dirA, dirB} {
			r, err := NewRunner(loadModel(t, testConfig, dir), backend.NewStub())
			require.NoError(t, err)
			require.NoError(t, r.Run(context.Background()))
		}

		a, err := os.ReadFile(filepath.Join(dirA, "metadata.csv"))
		require.NoError(t, err)
		b, err := os.ReadFile(filepath.Join(dirB, "metadata.csv"))
		require.NoError(t, err)
		assert.Equal(t, string(a), string(b))
	})

	t.Run("values are worker-schedule independent", func(t *testing.T) {
		base := t.TempDir()
		dirA := filepath.Join(base, "serial")
		dirB := filepath.Join(base, "parallel")

		modelA := loadModel(t, testConfig, dirA)
		modelB := loadModel(t, testConfig, dirB)
		modelB.Dataset.Workers = 4

		for _, m := range []*config.Model{modelA, modelB} {
			r, err := NewRunner(m, backend.NewStub())
			require.NoError(t, err)
			require.NoError(t, r.Run(context.Background()))
		}

		// Rows land in completion order; sort by file_id before comparing.
		sortRows := func(rows [][]string) {
			sort.Slice(rows, func(i, j int) bool { return rows[i][0] < rows[j][0] })
		}
		a := readRows(t, dirA)
		b := readRows(t, dirB)
		sortRows(a[1:])
		sortRows(b[1:])
		assert.Equal(t, a, b)
	})
}

func TestRunRetriesRejectedSamples(t *testing.T) {
	outDir := filepath.Join(t.TempDir(), "out")
	model := loadModel(t, testConfig, outDir)
	stub := backend.NewStub()
	stub.FailuresPerSample = 2

	r, err := NewRunner(model, stub)
	require.NoError(t, err)
	require.NoError(t, r.Run(context.Background()))

	assert.Len(t, stub.Samples(), 6)
	assert.Equal(t, 3, stub.Attempts("0"))
	assert.Len(t, readRows(t, outDir), 7)
}

func TestRunExhaustedRetriesFailSampleNotRun(t *testing.T) {
	outDir := filepath.Join(t.TempDir(), "out")
	model := loadModel(t, testConfig, outDir)
	model.Dataset.Retries = 1
	stub := backend.NewStub()
	stub.FailuresPerSample = 10

	r, err := NewRunner(model, stub)
	require.NoError(t, err)

	// Exhausted retries fail individual samples, never the run.
	require.NoError(t, r.Run(context.Background()))
	assert.Empty(t, stub.Samples())
	assert.Equal(t, 2, stub.Attempts("0"))
	assert.Len(t, readRows(t, outDir), 1, "only the header is written")
}

func TestRunSkipsExistingSplitDir(t *testing.T) {
	outDir := filepath.Join(t.TempDir(), "out")
	require.NoError(t, os.MkdirAll(outDir, 0o755))

	stub := backend.NewStub()
	r, err := NewRunner(loadModel(t, testConfig, outDir), stub)
	require.NoError(t, err)
	require.NoError(t, r.Run(context.Background()))

	assert.Empty(t, stub.Samples())
	assert.NoFileExists(t, filepath.Join(outDir, "metadata.csv"))
}

func TestRunSplitsIntoNamedDirs(t *testing.T) {
	src := `
dataset {
  seed = 7

  samples {
    train = 4
    test  = 2
  }
}

variable "r0" {
  distribution = "uniform"
  low          = 1
  high         = 5
}

parameter "rate" { value = "r0 * 0.5" }
`
	outDir := filepath.Join(t.TempDir(), "out")
	stub := backend.NewStub()
	r, err := NewRunner(loadModel(t, src, outDir), stub)
	require.NoError(t, err)
	require.NoError(t, r.Run(context.Background()))

	assert.Len(t, readRows(t, filepath.Join(outDir, "train")), 5)
	assert.Len(t, readRows(t, filepath.Join(outDir, "test")), 3)
	assert.Len(t, stub.Samples(), 6)
}

func TestNewRunnerValidatesEagerly(t *testing.T) {
	t.Run("cyclic variables", func(t *testing.T) {
		src := `
variable "a" { expr = "b + 1" }
variable "b" { expr = "a + 1" }
parameter "p" { value = 1 }
`
		_, err := NewRunner(loadModel(t, src, t.TempDir()), backend.NewStub())
		require.Error(t, err)
		assert.True(t, config.IsKind(err, config.ErrCyclicDependency))
	})

	t.Run("parameter referencing undeclared variable", func(t *testing.T) {
		src := `parameter "p" { value = "ghost * 2" }`
		_, err := NewRunner(loadModel(t, src, t.TempDir()), backend.NewStub())
		require.Error(t, err)
		assert.True(t, config.IsKind(err, config.ErrUnknownVariable))
	})
}

func TestRunAbortsOnResolutionError(t *testing.T) {
	// Passes static validation but fails when the comparison meets a vector.
	src := `
dataset {
  seed    = 1
  samples = 3
}

variable "v" {
  distribution = "uniform"
  low          = 0
  high         = 1
  size         = 2
}

parameter "p" { value = "v > 0.5" }
`
	outDir := filepath.Join(t.TempDir(), "out")
	r, err := NewRunner(loadModel(t, src, outDir), backend.NewStub())
	require.NoError(t, err)

	err = r.Run(context.Background())
	require.Error(t, err)
	assert.True(t, config.IsKind(err, config.ErrShapeMismatch))
}
