package backend

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/phylogen/internal/config"
	"github.com/vk/phylogen/internal/skyline"
	"github.com/vk/phylogen/internal/value"
)

func testSample() *Sample {
	return &Sample{
		FileID:       "3",
		Seed:         99,
		Context:      value.Context{"r0": value.Scalar(2.5)},
		ContextOrder: []string{"r0"},
		Params: []Parameter{
			{Name: "rate", Skyline: &skyline.Skyline{
				ChangeTimes: []float64{1},
				Values:      []value.Value{value.Scalar(0), value.Scalar(0.05)},
			}},
		},
		Populations: []string{"E", "I"},
	}
}

func TestCommandExpand(t *testing.T) {
	c := NewCommand(&config.SimulatorSpec{
		Command: []string{"remaster", "--seed", "{seed}", "--in", "{params}", "--out", "{output}.trees"},
	})
	argv := c.expand(testSample(), "/tmp/d/3.params.json", "/tmp/d/3")
	assert.Equal(t, []string{"remaster", "--seed", "99", "--in", "/tmp/d/3.params.json", "--out", "/tmp/d/3.trees"}, argv)
}

func TestCommandWritesParamsFile(t *testing.T) {
	dataDir := t.TempDir()
	c := NewCommand(&config.SimulatorSpec{Command: []string{"true"}})

	_, err := c.Simulate(context.Background(), dataDir, testSample())
	require.NoError(t, err)

	buf, err := os.ReadFile(filepath.Join(dataDir, "3.params.json"))
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(buf, &doc))
	assert.Equal(t, float64(99), doc["seed"])
	assert.Equal(t, []any{"E", "I"}, doc["populations"])

	params, ok := doc["parameters"].(map[string]any)
	require.True(t, ok)
	rate, ok := params["rate"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, []any{float64(0), 0.05}, rate["value"])
	assert.Equal(t, []any{float64(1)}, rate["change_times"])
}

func TestCommandReportsFailure(t *testing.T) {
	dataDir := t.TempDir()
	c := NewCommand(&config.SimulatorSpec{Command: []string{"false"}})

	_, err := c.Simulate(context.Background(), dataDir, testSample())
	require.Error(t, err)
	assert.ErrorContains(t, err, "simulator failed")
}

func TestStubRetryCounting(t *testing.T) {
	s := NewStub()
	s.FailuresPerSample = 2

	sample := testSample()
	for i := 0; i < 2; i++ {
		_, err := s.Simulate(context.Background(), "", sample)
		assert.Error(t, err)
	}
	_, err := s.Simulate(context.Background(), "", sample)
	require.NoError(t, err)
	assert.Equal(t, 3, s.Attempts("3"))
	assert.Len(t, s.Samples(), 1)
}
