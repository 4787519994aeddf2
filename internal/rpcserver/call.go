package rpcserver

import (
	"context"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/lux-nexus/switchboard/internal/address"
	"github.com/lux-nexus/switchboard/internal/signer"
)

// callParams is `call`'s parameter object (§4.10).
type callParams struct {
	InstanceID string          `json:"instance_id"`
	Zome       string          `json:"zome"`
	Function   string          `json:"function"`
	Params     json.RawMessage `json:"params"`
	Token      string          `json:"token,omitempty"`
	Provenance *[2]string      `json:"provenance,omitempty"` // [agent_address_hex, signature_hex]
}

// handleCall implements `call`: zome function call (§4.10). Resolution
// follows the table exactly: map the public instance id to the running
// instance, check the capability token when one is given (a call with no
// token skips the check — §9 Open Question resolution in DESIGN.md),
// invoke, and return the JSON result or an error.
func (d *Dispatcher) handleCall(ctx context.Context, raw json.RawMessage) (interface{}, error) {
	var p callParams
	if err := bind(raw, &p); err != nil {
		return nil, err
	}
	if !d.boundTo(p.InstanceID) {
		return nil, errInvalidParams(fmt.Sprintf("instance %q is not bound to this interface", p.InstanceID))
	}
	inst, ok := d.cond.Instance(p.InstanceID)
	if !ok {
		return nil, errInvalidParams(fmt.Sprintf("instance %q is not running", p.InstanceID))
	}

	var caller address.Address
	if p.Provenance != nil {
		agentAddr, err := address.Parse(p.Provenance[0])
		if err != nil {
			return nil, errInvalidParams(fmt.Sprintf("provenance agent: %v", err))
		}
		sig, err := hex.DecodeString(p.Provenance[1])
		if err != nil {
			return nil, errInvalidParams(fmt.Sprintf("provenance signature: %v", err))
		}
		if !signer.Verify(agentAddr, p.Params, sig) {
			return nil, errInvalidParams("provenance signature does not verify")
		}
		caller = agentAddr
	}

	// A call with no token is the "instance's public token" default: it
	// proceeds without a grant/claim walk rather than resolving against a
	// synthetic always-allow grant, since no grant entry exists to
	// resolve against until the DNA author commits one.
	if p.Token != "" {
		tokenAddr, err := address.Parse(p.Token)
		if err != nil {
			return nil, errInvalidParams(fmt.Sprintf("token: %v", err))
		}
		if _, err := inst.Capability().Authorize(caller, tokenAddr, p.Function); err != nil {
			return nil, errInvalidParams(fmt.Sprintf("capability check failed: %v", err))
		}
	}

	result, err := inst.Zome().Call(ctx, caller, p.Zome, p.Function, p.Params)
	if err != nil {
		return nil, err
	}
	if len(result) == 0 {
		return nil, nil
	}
	return json.RawMessage(result), nil
}

// instanceInfo is one entry of `info/instances`'s result array (§4.10).
type instanceInfo struct {
	ID    string `json:"id"`
	DNA   string `json:"dna"`
	Agent string `json:"agent"`
}

// handleInfoInstances implements `info/instances`: list every instance
// bound to this interface, whether or not it is currently running.
func (d *Dispatcher) handleInfoInstances(ctx context.Context, raw json.RawMessage) (interface{}, error) {
	out := make([]instanceInfo, 0, len(d.iface.Instances))
	for _, ref := range d.iface.Instances {
		inst, ok := d.cond.Instance(ref.ID)
		if !ok {
			out = append(out, instanceInfo{ID: ref.ID})
			continue
		}
		agent, _ := inst.Agent()
		out = append(out, instanceInfo{ID: inst.ID(), DNA: inst.DNAID(), Agent: agent.String()})
	}
	return out, nil
}

// signParams is `agent/sign`'s parameter object.
type signParams struct {
	InstanceID string `json:"instance_id"`
	Payload    string `json:"payload"` // base64
}

// signResult is `agent/sign`'s result object (§4.10 "returns
// {payload, signature}").
type signResult struct {
	Payload   string `json:"payload"`
	Signature string `json:"signature"`
}

// handleAgentSign implements `agent/sign`.
func (d *Dispatcher) handleAgentSign(ctx context.Context, raw json.RawMessage) (interface{}, error) {
	var p signParams
	if err := bind(raw, &p); err != nil {
		return nil, err
	}
	if !d.boundTo(p.InstanceID) {
		return nil, errInvalidParams(fmt.Sprintf("instance %q is not bound to this interface", p.InstanceID))
	}
	inst, ok := d.cond.Instance(p.InstanceID)
	if !ok {
		return nil, errInvalidParams(fmt.Sprintf("instance %q is not running", p.InstanceID))
	}
	payload, err := base64.StdEncoding.DecodeString(p.Payload)
	if err != nil {
		return nil, errInvalidParams(fmt.Sprintf("payload: %v", err))
	}
	sig, err := inst.Sign(payload)
	if err != nil {
		return nil, errInternal(err.Error())
	}
	return signResult{Payload: p.Payload, Signature: base64.StdEncoding.EncodeToString(sig)}, nil
}
