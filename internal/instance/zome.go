// Package instance wires one agent's full runtime together: the action
// loop (C6), local chain (C3), DHT store (C5), authoring workflow (C8),
// validation pipeline (C7) and capability resolver into the single
// `(agent, DNA)` unit the conductor (C10, internal/conductor) hosts and
// the interface layer (C11, internal/rpcserver) calls into. This is the
// "Instance" of the GLOSSARY: "One running (agent, DNA) pair with its
// own chain and DHT store."
package instance

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/lux-nexus/switchboard/internal/address"
	"github.com/lux-nexus/switchboard/internal/validation"
)

// ErrUnimplementedZomeFunction is what a zome with no Call rule of its
// own returns; the rpcserver maps it onto the wire protocol's
// Unimplemented Err kind (§6) when surfacing a `call` failure.
var ErrUnimplementedZomeFunction = errors.New("instance: zome function not implemented")

// ZomeEntryKind keys a zome's per-entry-kind callback lookup. It mirrors
// model.EntryKind.String() rather than importing model.EntryKind itself,
// since a zome may also want to key app entries by their own TypeTag —
// Validator/PackageKind are free to special-case "App:<type_tag>" if the
// caller constructs kind strings that way.
type ZomeEntryKind = string

// ZomeCallbacks is the capability trait the WASM execution engine's
// invocation contract is materialized behind (§9 Design Notes: "Dynamic
// callback dispatch over WASM... expose them behind a capability trait
// ZomeCallbacks{init, validate_entry, receive, ...} and materialize it
// from a module handle; do not rely on runtime reflection"). The engine
// itself is out of scope (§1); this interface is the whole of its
// invocation contract as far as this module is concerned.
type ZomeCallbacks interface {
	// Init runs the zome's init callback once, during instance boot,
	// before the instance is considered ready (§4.8 boot step 3).
	Init(ctx context.Context) error

	// Validator returns the zome's validation callback for kind, or nil
	// if this zome has no rule for it. validation.RunValidator treats a
	// nil Validator the same as an explicit OutcomeNotImplemented: Pass
	// for system entry kinds, Fail for app entry kinds (§4.5) — a zome
	// with no rule for its own app entry type is a gap in that zome, not
	// an implicit grant.
	Validator(kind ZomeEntryKind) validation.Validator

	// PackageKind selects what validation package shape kind's validator
	// needs built for it (§4.5): an entry-only check needs PackageEntry,
	// an ordering-sensitive one needs PackageChainHeaders, and so on.
	PackageKind(kind ZomeEntryKind) validation.PackageKind

	// Receive handles an inbound direct message payload addressed to
	// this instance's agent, returning the zome's reply bytes.
	Receive(ctx context.Context, from address.Address, payload []byte) ([]byte, error)

	// Call dispatches a zome function invocation (§4.10's `call` JSON-RPC
	// method) by name, handing back whatever JSON result (or error) the
	// function produces. caller is the provenance agent the capability
	// check already cleared, or the zero address for an unauthenticated
	// public-capability call.
	Call(ctx context.Context, caller address.Address, zome, function string, params json.RawMessage) (json.RawMessage, error)
}

// NoOpZome is a ZomeCallbacks that supplies no validators, asks for
// PackageEntry packages and echoes nothing back. With no validator,
// system entry kinds pass validation and App entries are rejected. It
// suits instances whose DNA has no custom validation rules (e.g. a pure
// DPKI bookkeeping DNA) and tests that don't exercise zome-level
// behavior.
type NoOpZome struct{}

func (NoOpZome) Init(context.Context) error { return nil }

func (NoOpZome) Validator(ZomeEntryKind) validation.Validator { return nil }

func (NoOpZome) PackageKind(ZomeEntryKind) validation.PackageKind { return validation.PackageEntry }

func (NoOpZome) Receive(context.Context, address.Address, []byte) ([]byte, error) {
	return nil, nil
}

func (NoOpZome) Call(context.Context, address.Address, string, string, json.RawMessage) (json.RawMessage, error) {
	return nil, ErrUnimplementedZomeFunction
}
