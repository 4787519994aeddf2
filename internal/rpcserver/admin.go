package rpcserver

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/lux-nexus/switchboard/internal/chainconfig"
)

// adminMethods is the full §6 admin table. Reachable only on interfaces
// whose Admin flag is set (enforced by Dispatcher.Handle).
var adminMethods = map[string]handler{
	"admin/dna/install_from_file":  (*Dispatcher).adminDNAInstall,
	"admin/dna/uninstall":          (*Dispatcher).adminDNAUninstall,
	"admin/dna/list":               (*Dispatcher).adminDNAList,
	"admin/instance/add":           (*Dispatcher).adminInstanceAdd,
	"admin/instance/remove":        (*Dispatcher).adminInstanceRemove,
	"admin/instance/start":         (*Dispatcher).adminInstanceStart,
	"admin/instance/stop":          (*Dispatcher).adminInstanceStop,
	"admin/interface/add":          (*Dispatcher).adminInterfaceAdd,
	"admin/interface/remove":       (*Dispatcher).adminInterfaceRemove,
	"admin/interface/add_instance": (*Dispatcher).adminInterfaceAddInstance,
	"admin/interface/remove_instance": (*Dispatcher).adminInterfaceRemoveInstance,
	"admin/agent/add":              (*Dispatcher).adminAgentAdd,
	"admin/agent/remove":           (*Dispatcher).adminAgentRemove,
	"admin/bridge/add":             (*Dispatcher).adminBridgeAdd,
	"admin/bridge/remove":          (*Dispatcher).adminBridgeRemove,
	"admin/instance/state_dump":    (*Dispatcher).adminInstanceStateDump,
	"admin/health":                 (*Dispatcher).adminHealth,
}

type installDNAParams struct {
	ID            string `json:"id"`
	Path          string `json:"path"`
	Copy          bool   `json:"copy"`
	ExpectedHash  string `json:"expected_hash,omitempty"`
	Properties    string `json:"properties,omitempty"`
	UUID          string `json:"uuid,omitempty"`
}

func (d *Dispatcher) adminDNAInstall(ctx context.Context, raw json.RawMessage) (interface{}, error) {
	var p installDNAParams
	if err := bind(raw, &p); err != nil {
		return nil, err
	}
	source, err := os.ReadFile(p.Path)
	if err != nil {
		return nil, errInvalidParams(fmt.Sprintf("reading dna file: %v", err))
	}
	dna := chainconfig.DNA{ID: p.ID, File: p.Path, UUID: p.UUID, Properties: p.Properties}
	if err := d.cond.InstallDNA(dna, source, p.Copy, p.ExpectedHash); err != nil {
		return nil, err
	}
	return map[string]string{"id": p.ID}, nil
}

type idParams struct {
	ID string `json:"id"`
}

func (d *Dispatcher) adminDNAUninstall(ctx context.Context, raw json.RawMessage) (interface{}, error) {
	var p idParams
	if err := bind(raw, &p); err != nil {
		return nil, err
	}
	if err := d.cond.UninstallDNA(p.ID); err != nil {
		return nil, err
	}
	return map[string]bool{"success": true}, nil
}

func (d *Dispatcher) adminDNAList(ctx context.Context, raw json.RawMessage) (interface{}, error) {
	dnas := d.cond.ListDNAs()
	out := make([]map[string]string, 0, len(dnas))
	for _, dna := range dnas {
		out = append(out, map[string]string{"id": dna.ID, "hash": dna.Hash})
	}
	return out, nil
}

type addInstanceParams struct {
	ID      string `json:"id"`
	DNAID   string `json:"dna_id"`
	AgentID string `json:"agent_id"`
}

func (d *Dispatcher) adminInstanceAdd(ctx context.Context, raw json.RawMessage) (interface{}, error) {
	var p addInstanceParams
	if err := bind(raw, &p); err != nil {
		return nil, err
	}
	if err := d.cond.AddInstance(chainconfig.Instance{ID: p.ID, DNA: p.DNAID, Agent: p.AgentID}); err != nil {
		return nil, err
	}
	return map[string]string{"id": p.ID}, nil
}

type removeInstanceParams struct {
	ID    string `json:"id"`
	Clean bool   `json:"clean,omitempty"`
}

func (d *Dispatcher) adminInstanceRemove(ctx context.Context, raw json.RawMessage) (interface{}, error) {
	var p removeInstanceParams
	if err := bind(raw, &p); err != nil {
		return nil, err
	}
	var err error
	if p.Clean {
		err = d.cond.RemoveInstanceClean(p.ID, p.ID)
	} else {
		err = d.cond.RemoveInstance(p.ID)
	}
	if err != nil {
		return nil, err
	}
	return map[string]bool{"success": true}, nil
}

func (d *Dispatcher) adminInstanceStart(ctx context.Context, raw json.RawMessage) (interface{}, error) {
	var p idParams
	if err := bind(raw, &p); err != nil {
		return nil, err
	}
	if err := d.cond.StartInstance(ctx, p.ID); err != nil {
		return nil, err
	}
	return map[string]bool{"success": true}, nil
}

func (d *Dispatcher) adminInstanceStop(ctx context.Context, raw json.RawMessage) (interface{}, error) {
	var p idParams
	if err := bind(raw, &p); err != nil {
		return nil, err
	}
	if err := d.cond.StopInstance(p.ID); err != nil {
		return nil, err
	}
	return map[string]bool{"success": true}, nil
}

func (d *Dispatcher) adminInterfaceAdd(ctx context.Context, raw json.RawMessage) (interface{}, error) {
	var iface chainconfig.Interface
	if err := bind(raw, &iface); err != nil {
		return nil, err
	}
	if err := d.cond.AddInterface(iface); err != nil {
		return nil, err
	}
	return map[string]string{"id": iface.ID}, nil
}

func (d *Dispatcher) adminInterfaceRemove(ctx context.Context, raw json.RawMessage) (interface{}, error) {
	var p idParams
	if err := bind(raw, &p); err != nil {
		return nil, err
	}
	if err := d.cond.RemoveInterface(p.ID); err != nil {
		return nil, err
	}
	return map[string]bool{"success": true}, nil
}

type interfaceInstanceParams struct {
	InterfaceID string `json:"interface_id"`
	InstanceID  string `json:"instance_id"`
}

func (d *Dispatcher) adminInterfaceAddInstance(ctx context.Context, raw json.RawMessage) (interface{}, error) {
	var p interfaceInstanceParams
	if err := bind(raw, &p); err != nil {
		return nil, err
	}
	if err := d.cond.AddInstanceToInterface(p.InterfaceID, p.InstanceID); err != nil {
		return nil, err
	}
	return map[string]bool{"success": true}, nil
}

func (d *Dispatcher) adminInterfaceRemoveInstance(ctx context.Context, raw json.RawMessage) (interface{}, error) {
	var p interfaceInstanceParams
	if err := bind(raw, &p); err != nil {
		return nil, err
	}
	if err := d.cond.RemoveInstanceFromInterface(p.InterfaceID, p.InstanceID); err != nil {
		return nil, err
	}
	return map[string]bool{"success": true}, nil
}

func (d *Dispatcher) adminAgentAdd(ctx context.Context, raw json.RawMessage) (interface{}, error) {
	var agent chainconfig.Agent
	if err := bind(raw, &agent); err != nil {
		return nil, err
	}
	if err := d.cond.AddAgent(agent); err != nil {
		return nil, err
	}
	return map[string]string{"id": agent.ID}, nil
}

func (d *Dispatcher) adminAgentRemove(ctx context.Context, raw json.RawMessage) (interface{}, error) {
	var p idParams
	if err := bind(raw, &p); err != nil {
		return nil, err
	}
	if err := d.cond.RemoveAgent(p.ID); err != nil {
		return nil, err
	}
	return map[string]bool{"success": true}, nil
}

type bridgeParams struct {
	CallerID string `json:"caller_id"`
	CalleeID string `json:"callee_id"`
	Handle   string `json:"handle"`
}

func (d *Dispatcher) adminBridgeAdd(ctx context.Context, raw json.RawMessage) (interface{}, error) {
	var p bridgeParams
	if err := bind(raw, &p); err != nil {
		return nil, err
	}
	if err := d.cond.AddBridge(chainconfig.Bridge{CallerID: p.CallerID, CalleeID: p.CalleeID, Handle: p.Handle}); err != nil {
		return nil, err
	}
	return map[string]bool{"success": true}, nil
}

func (d *Dispatcher) adminBridgeRemove(ctx context.Context, raw json.RawMessage) (interface{}, error) {
	var p bridgeParams
	if err := bind(raw, &p); err != nil {
		return nil, err
	}
	if err := d.cond.RemoveBridge(p.CallerID, p.Handle); err != nil {
		return nil, err
	}
	return map[string]bool{"success": true}, nil
}

// adminInstanceStateDump is additive to §6's table (SPEC_FULL.md
// SUPPLEMENTED FEATURES #1): it exposes instance.Instance.StateDump
// over the admin JSON-RPC surface the same way every other admin/*
// method exposes a Conductor operation.
func (d *Dispatcher) adminInstanceStateDump(ctx context.Context, raw json.RawMessage) (interface{}, error) {
	var p idParams
	if err := bind(raw, &p); err != nil {
		return nil, err
	}
	inst, ok := d.cond.Instance(p.ID)
	if !ok {
		return nil, errInvalidParams(fmt.Sprintf("instance %q is not running", p.ID))
	}
	report := inst.StateDump()
	return map[string]interface{}{
		"instance_id":        report.InstanceID,
		"chain_length":       report.ChainLength,
		"held_aspect_count":  report.HeldAspectCount,
		"pending_count":      report.PendingCount,
		"top_header_address": report.TopHeaderAddress,
	}, nil
}

// adminHealth is additive to §6's table (SPEC_FULL.md SUPPLEMENTED
// FEATURES #3): per-instance up/down plus the network transport this
// conductor's instances rely on to reach the switchboard.
func (d *Dispatcher) adminHealth(ctx context.Context, raw json.RawMessage) (interface{}, error) {
	instances, networkType, networkURL := d.cond.Health()
	out := make([]map[string]interface{}, 0, len(instances))
	for _, h := range instances {
		out = append(out, map[string]interface{}{"id": h.ID, "up": h.Up})
	}
	return map[string]interface{}{
		"instances":    out,
		"network_type": networkType,
		"network_url":  networkURL,
	}, nil
}
