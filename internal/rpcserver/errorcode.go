package rpcserver

import (
	"errors"

	"github.com/lux-nexus/switchboard/internal/errs"
	"github.com/lux-nexus/switchboard/internal/instance"
)

// classify maps an internal error onto the §4.10 error-code split: a
// user-parameter error (bad instance id, failed capability check,
// rejected admin mutation, ...) gets -32602; anything that reflects an
// unexpected internal condition gets -32603. This mirrors §7's error
// taxonomy being reusable "either as a JSON-RPC error object... or as a
// wire Err variant" — here it's the JSON-RPC side of that reuse.
func classify(err error) int {
	switch {
	case errors.Is(err, errs.ErrNoSuchInstance),
		errors.Is(err, errs.ErrInstanceAlreadyActive),
		errors.Is(err, errs.ErrInstanceNotActiveYet),
		errors.Is(err, errs.ErrVerifyFailed),
		errors.Is(err, errs.ErrBridgeCycle),
		errors.Is(err, errs.ErrLinkDependencyMissing),
		errors.Is(err, instance.ErrUnimplementedZomeFunction):
		return codeInvalidParams
	}

	var dnaMismatch *errs.DnaHashMismatch
	var valFailed *errs.ValidationFailed
	var valPending *errs.ValidationPending
	var reqBridge *errs.RequiredBridgeMissing
	var cfgErr *errs.ConfigError
	if errors.As(err, &dnaMismatch) || errors.As(err, &valFailed) || errors.As(err, &valPending) ||
		errors.As(err, &reqBridge) || errors.As(err, &cfgErr) {
		return codeInvalidParams
	}

	// Timeout and unwrapped InternalFailure are genuine system conditions,
	// not something the caller can fix by changing their request.
	return codeInternal
}
