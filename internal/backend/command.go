package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/vk/phylogen/internal/config"
	"github.com/vk/phylogen/internal/ctxlog"
	"github.com/vk/phylogen/internal/value"
)

// Command invokes an external simulator executable per sample. The resolved
// parameter set is written as a JSON file next to the sample's outputs and
// the configured argv is executed with placeholder substitution:
//
//	{seed}    the derived per-sample seed
//	{params}  path to the written parameter JSON file
//	{output}  output path prefix for the sample (dataDir/fileID)
type Command struct {
	argv    []string
	timeout time.Duration
}

// NewCommand builds a command adapter from the simulator spec.
func NewCommand(spec *config.SimulatorSpec) *Command {
	return &Command{argv: spec.Command, timeout: spec.Timeout}
}

// paramsFile is the JSON document handed to the simulator.
type paramsFile struct {
	Seed        uint64                 `json:"seed"`
	Populations []string               `json:"populations,omitempty"`
	Context     map[string]value.Value `json:"context"`
	Params      map[string]paramDoc    `json:"parameters"`
}

type paramDoc struct {
	Value       []value.Value `json:"value"`
	ChangeTimes []float64     `json:"change_times,omitempty"`
}

// Columns implements Adapter. The command contract has no way to report
// extra metadata back, so none are declared.
func (c *Command) Columns() []string { return nil }

// Simulate implements Adapter.
func (c *Command) Simulate(ctx context.Context, dataDir string, sample *Sample) (map[string]string, error) {
	logger := ctxlog.FromContext(ctx)

	doc := paramsFile{
		Seed:        sample.Seed,
		Populations: sample.Populations,
		Context:     sample.Context,
		Params:      make(map[string]paramDoc, len(sample.Params)),
	}
	for _, p := range sample.Params {
		doc.Params[p.Name] = paramDoc{Value: p.Skyline.Values, ChangeTimes: p.Skyline.ChangeTimes}
	}

	paramsPath := filepath.Join(dataDir, sample.FileID+".params.json")
	buf, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encoding parameters for sample %s: %w", sample.FileID, err)
	}
	if err := os.WriteFile(paramsPath, buf, 0o644); err != nil {
		return nil, fmt.Errorf("writing parameter file: %w", err)
	}

	runCtx := ctx
	if c.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	argv := c.expand(sample, paramsPath, filepath.Join(dataDir, sample.FileID))
	logger.Debug("Invoking simulator.", "file_id", sample.FileID, "argv", argv)

	cmd := exec.CommandContext(runCtx, argv[0], argv[1:]...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		if runCtx.Err() == context.DeadlineExceeded {
			return nil, fmt.Errorf("simulator timed out after %s", c.timeout)
		}
		return nil, fmt.Errorf("simulator failed: %w (output: %s)", err, strings.TrimSpace(string(out)))
	}
	return nil, nil
}

func (c *Command) expand(sample *Sample, paramsPath, outputPrefix string) []string {
	argv := make([]string, len(c.argv))
	for i, arg := range c.argv {
		arg = strings.ReplaceAll(arg, "{seed}", strconv.FormatUint(sample.Seed, 10))
		arg = strings.ReplaceAll(arg, "{params}", paramsPath)
		arg = strings.ReplaceAll(arg, "{output}", outputPrefix)
		argv[i] = arg
	}
	return argv
}
