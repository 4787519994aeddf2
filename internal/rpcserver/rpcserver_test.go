package rpcserver

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lux-nexus/switchboard/internal/address"
	"github.com/lux-nexus/switchboard/internal/chainconfig"
	"github.com/lux-nexus/switchboard/internal/conductor"
	"github.com/lux-nexus/switchboard/internal/instance"
	"github.com/lux-nexus/switchboard/internal/signer"
)

// echoZome answers a `call` by handing the params straight back, so
// tests can assert on the round trip without a real WASM-backed zome.
type echoZome struct{ instance.NoOpZome }

func (echoZome) Call(_ context.Context, _ address.Address, _, _ string, params json.RawMessage) (json.RawMessage, error) {
	return params, nil
}

func testConductor(t *testing.T) (*conductor.Conductor, chainconfig.Config) {
	t.Helper()
	cfg := chainconfig.Config{
		Agents:    []chainconfig.Agent{{ID: "alice"}},
		DNAs:      []chainconfig.DNA{{ID: "note-dna"}},
		Instances: []chainconfig.Instance{{ID: "A", DNA: "note-dna", Agent: "alice"}},
	}
	factory := func(ctx context.Context, instCfg chainconfig.Instance, dnaCfg chainconfig.DNA, agentCfg chainconfig.Agent) (conductor.Bundle, error) {
		ks := signer.NewKeystore()
		require.NoError(t, ks.Unlock("pw"))
		_, err := ks.Generate(instCfg.Agent)
		require.NoError(t, err)
		inst := instance.New(instance.Config{
			ID: instCfg.ID, DNAID: instCfg.DNA, KeyName: instCfg.Agent, Keystore: ks, Zome: echoZome{},
		})
		return conductor.Bundle{Instance: inst}, nil
	}
	c := conductor.New(&cfg, factory, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	require.NoError(t, c.Boot(ctx))
	return c, cfg
}

func rpcCall(t *testing.T, d *Dispatcher, method string, params interface{}) response {
	t.Helper()
	var raw json.RawMessage
	if params != nil {
		b, err := json.Marshal(params)
		require.NoError(t, err)
		raw = b
	}
	reqBytes, err := json.Marshal(request{JSONRPC: jsonrpcVersion, ID: json.RawMessage(`1`), Method: method, Params: raw})
	require.NoError(t, err)

	respBytes := d.Handle(context.Background(), reqBytes)
	var resp response
	require.NoError(t, json.Unmarshal(respBytes, &resp))
	return resp
}

func TestHandleInfoInstances(t *testing.T) {
	c, _ := testConductor(t)
	iface := chainconfig.Interface{ID: "admin-iface", Admin: true, Instances: []chainconfig.InterfaceInstanceRef{{ID: "A"}}}
	d := NewDispatcher(c, iface, nil, nil)

	resp := rpcCall(t, d, "info/instances", nil)
	require.Nil(t, resp.Error)

	var out []instanceInfo
	b, err := json.Marshal(resp.Result)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(b, &out))
	require.Len(t, out, 1)
	require.Equal(t, "A", out[0].ID)
	require.Equal(t, "note-dna", out[0].DNA)
	require.NotEmpty(t, out[0].Agent)
}

func TestHandleCallRoundTrips(t *testing.T) {
	c, _ := testConductor(t)
	iface := chainconfig.Interface{ID: "public", Instances: []chainconfig.InterfaceInstanceRef{{ID: "A"}}}
	d := NewDispatcher(c, iface, nil, nil)

	resp := rpcCall(t, d, "call", map[string]interface{}{
		"instance_id": "A",
		"zome":        "notes",
		"function":    "create",
		"params":      map[string]string{"body": "hello"},
	})
	require.Nil(t, resp.Error)

	var got map[string]string
	b, err := json.Marshal(resp.Result)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(b, &got))
	require.Equal(t, "hello", got["body"])
}

func TestHandleCallRejectsUnboundInstance(t *testing.T) {
	c, _ := testConductor(t)
	iface := chainconfig.Interface{ID: "public", Instances: nil}
	d := NewDispatcher(c, iface, nil, nil)

	resp := rpcCall(t, d, "call", map[string]interface{}{
		"instance_id": "A", "zome": "notes", "function": "create", "params": map[string]string{},
	})
	require.NotNil(t, resp.Error)
	require.Equal(t, codeInvalidParams, resp.Error.Code)
}

func TestHandleAgentSignVerifies(t *testing.T) {
	c, _ := testConductor(t)
	iface := chainconfig.Interface{ID: "public", Instances: []chainconfig.InterfaceInstanceRef{{ID: "A"}}}
	d := NewDispatcher(c, iface, nil, nil)

	payload := base64.StdEncoding.EncodeToString([]byte("sign me"))
	resp := rpcCall(t, d, "agent/sign", map[string]string{"instance_id": "A", "payload": payload})
	require.Nil(t, resp.Error)

	var out signResult
	b, err := json.Marshal(resp.Result)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(b, &out))

	inst, ok := c.Instance("A")
	require.True(t, ok)
	agent, ok := inst.Agent()
	require.True(t, ok)

	sig, err := base64.StdEncoding.DecodeString(out.Signature)
	require.NoError(t, err)
	require.True(t, signer.Verify(agent, []byte("sign me"), sig))
}

func TestAdminMethodsRejectedOnNonAdminInterface(t *testing.T) {
	c, _ := testConductor(t)
	iface := chainconfig.Interface{ID: "public", Admin: false}
	d := NewDispatcher(c, iface, nil, nil)

	resp := rpcCall(t, d, "admin/agent/add", map[string]string{"id": "carol"})
	require.NotNil(t, resp.Error)
	require.Equal(t, codeInvalidParams, resp.Error.Code)
}

func TestAdminAddAgentCommits(t *testing.T) {
	c, _ := testConductor(t)
	iface := chainconfig.Interface{ID: "admin-iface", Admin: true}
	d := NewDispatcher(c, iface, nil, nil)

	resp := rpcCall(t, d, "admin/agent/add", map[string]string{"id": "carol"})
	require.Nil(t, resp.Error)

	resp = rpcCall(t, d, "admin/dna/list", nil)
	require.Nil(t, resp.Error)
}

func TestAdminInstanceStateDump(t *testing.T) {
	c, _ := testConductor(t)
	iface := chainconfig.Interface{ID: "admin-iface", Admin: true}
	d := NewDispatcher(c, iface, nil, nil)

	resp := rpcCall(t, d, "admin/instance/state_dump", map[string]string{"id": "A"})
	require.Nil(t, resp.Error)

	b, err := json.Marshal(resp.Result)
	require.NoError(t, err)
	var report map[string]interface{}
	require.NoError(t, json.Unmarshal(b, &report))
	require.Equal(t, "A", report["instance_id"])
	require.GreaterOrEqual(t, report["chain_length"].(float64), float64(1))
}

func TestAdminInstanceStateDumpUnknownInstance(t *testing.T) {
	c, _ := testConductor(t)
	iface := chainconfig.Interface{ID: "admin-iface", Admin: true}
	d := NewDispatcher(c, iface, nil, nil)

	resp := rpcCall(t, d, "admin/instance/state_dump", map[string]string{"id": "nope"})
	require.NotNil(t, resp.Error)
	require.Equal(t, codeInvalidParams, resp.Error.Code)
}

func TestAdminHealth(t *testing.T) {
	c, _ := testConductor(t)
	iface := chainconfig.Interface{ID: "admin-iface", Admin: true}
	d := NewDispatcher(c, iface, nil, nil)

	resp := rpcCall(t, d, "admin/health", nil)
	require.Nil(t, resp.Error)

	b, err := json.Marshal(resp.Result)
	require.NoError(t, err)
	var health struct {
		Instances []struct {
			ID string `json:"id"`
			Up bool   `json:"up"`
		} `json:"instances"`
	}
	require.NoError(t, json.Unmarshal(b, &health))
	require.Len(t, health.Instances, 1)
	require.Equal(t, "A", health.Instances[0].ID)
	require.True(t, health.Instances[0].Up)
}

func TestUnknownMethod(t *testing.T) {
	c, _ := testConductor(t)
	d := NewDispatcher(c, chainconfig.Interface{ID: "public"}, nil, nil)

	resp := rpcCall(t, d, "no/such/method", nil)
	require.NotNil(t, resp.Error)
	require.Equal(t, codeMethodNotFound, resp.Error.Code)
}
