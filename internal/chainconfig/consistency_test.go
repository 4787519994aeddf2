package chainconfig

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lux-nexus/switchboard/internal/errs"
)

func baseConfig() *Config {
	return &Config{
		Agents:    []Agent{{ID: "alice"}},
		DNAs:      []DNA{{ID: "note-dna"}},
		Instances: []Instance{{ID: "I", DNA: "note-dna", Agent: "alice"}},
	}
}

func TestCheckConsistencyPasses(t *testing.T) {
	require.NoError(t, CheckConsistency(baseConfig()))
}

func TestCheckConsistencyUnknownDNA(t *testing.T) {
	cfg := baseConfig()
	cfg.Instances[0].DNA = "missing"
	err := CheckConsistency(cfg)
	require.Error(t, err)
	var ce *errs.ConfigError
	require.ErrorAs(t, err, &ce)
	require.Equal(t, "rule1", ce.Rule)
}

func TestCheckConsistencyUnknownAgent(t *testing.T) {
	cfg := baseConfig()
	cfg.Instances[0].Agent = "missing"
	err := CheckConsistency(cfg)
	require.Error(t, err)
	var ce *errs.ConfigError
	require.ErrorAs(t, err, &ce)
	require.Equal(t, "rule2", ce.Rule)
}

func TestCheckConsistencyDuplicateBridge(t *testing.T) {
	cfg := baseConfig()
	cfg.Instances = append(cfg.Instances, Instance{ID: "J", DNA: "note-dna", Agent: "alice"})
	cfg.Bridges = []Bridge{
		{CallerID: "I", CalleeID: "J", Handle: "h1"},
		{CallerID: "I", CalleeID: "J", Handle: "h2"},
	}
	err := CheckConsistency(cfg)
	require.Error(t, err)
}

func TestCheckConsistencyBridgeCycle(t *testing.T) {
	cfg := baseConfig()
	cfg.Instances = append(cfg.Instances, Instance{ID: "J", DNA: "note-dna", Agent: "alice"})
	cfg.Bridges = []Bridge{
		{CallerID: "I", CalleeID: "J", Handle: "h1"},
		{CallerID: "J", CalleeID: "I", Handle: "h2"},
	}
	err := CheckConsistency(cfg)
	require.ErrorIs(t, err, errs.ErrBridgeCycle)
}

func TestCheckConsistencyRequiredBridgeMissing(t *testing.T) {
	cfg := baseConfig()
	cfg.DNAs[0].RequiredBridges = []string{"dpki"}
	err := CheckConsistency(cfg)
	require.Error(t, err)
	var rbm *errs.RequiredBridgeMissing
	require.ErrorAs(t, err, &rbm)
	require.Equal(t, "dpki", rbm.Handle)
}

func TestBridgeBootOrderCalleeBeforeCaller(t *testing.T) {
	cfg := baseConfig()
	cfg.Instances = append(cfg.Instances, Instance{ID: "J", DNA: "note-dna", Agent: "alice"})
	cfg.Bridges = []Bridge{{CallerID: "I", CalleeID: "J", Handle: "h1"}}

	order, err := BridgeBootOrder(cfg)
	require.NoError(t, err)

	jIdx, iIdx := -1, -1
	for idx, id := range order {
		if id == "J" {
			jIdx = idx
		}
		if id == "I" {
			iIdx = idx
		}
	}
	require.Less(t, jIdx, iIdx, "callee J must boot before caller I")
}
