// Package capability implements SPEC_FULL.md Supplemented Feature #2,
// grounded in original_source/core/src/nucleus/ribosome/api/capabilities.rs:
// capability-token grant/claim resolution for the JSON-RPC `call` method's
// token parameter (§6, internal/rpcserver). A grantor commits a
// CapTokenGrant naming which functions a token authorizes and who may
// claim it; a callee commits a CapTokenClaim referencing that grant by
// address. Resolving a call's token means walking from the claim back to
// its grant and checking the caller is an authorized assignee.
package capability

import (
	"github.com/lux-nexus/switchboard/internal/address"
	"github.com/lux-nexus/switchboard/internal/chain"
	"github.com/lux-nexus/switchboard/internal/errs"
	"github.com/lux-nexus/switchboard/internal/model"
	"github.com/lux-nexus/switchboard/internal/xset"
)

// Resolver resolves capability tokens against one agent's local chain —
// the grantor's side, since only the grantor's own chain holds the
// CapTokenGrant entries it issued.
type Resolver struct {
	chain *chain.Chain
}

// NewResolver returns a Resolver backed by c.
func NewResolver(c *chain.Chain) *Resolver {
	return &Resolver{chain: c}
}

// Authorize checks that claimAddr resolves to a grant on this chain
// authorizing caller to invoke function. It returns the grant's
// underlying entry on success.
func (r *Resolver) Authorize(caller address.Address, claimAddr address.Address, function string) (model.CapTokenGrant, error) {
	claimEntry, ok := r.chain.GetEntry(claimAddr)
	if !ok || claimEntry.Kind != model.KindCapTokenClaim {
		return model.CapTokenGrant{}, errs.ErrVerifyFailed
	}
	claim := claimEntry.CapTokenClaim

	grantEntry, ok := r.chain.GetEntry(claim.Grant)
	if !ok || grantEntry.Kind != model.KindCapTokenGrant {
		return model.CapTokenGrant{}, errs.ErrVerifyFailed
	}
	grant := *grantEntry.CapTokenGrant

	if len(grant.Assignees) > 0 {
		assignees := xset.Of(grant.Assignees...)
		if !assignees.Contains(caller) {
			return model.CapTokenGrant{}, errs.ErrVerifyFailed
		}
	}

	allowed := false
	for _, fn := range grant.Functions {
		if fn == function {
			allowed = true
			break
		}
	}
	if !allowed {
		return model.CapTokenGrant{}, errs.ErrVerifyFailed
	}
	return grant, nil
}
