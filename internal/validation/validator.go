package validation

import (
	"context"

	"github.com/lux-nexus/switchboard/internal/errs"
	"github.com/lux-nexus/switchboard/internal/model"
	"github.com/lux-nexus/switchboard/internal/signer"
)

// OutcomeKind is the result a validator callback (or a built-in check)
// reports for one Package (§4.5).
type OutcomeKind uint8

const (
	OutcomePass OutcomeKind = iota
	OutcomeFail
	OutcomeUnresolvedDependencies
	OutcomeNotImplemented
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomePass:
		return "Pass"
	case OutcomeFail:
		return "Fail"
	case OutcomeUnresolvedDependencies:
		return "UnresolvedDependencies"
	case OutcomeNotImplemented:
		return "NotImplemented"
	default:
		return "Unknown"
	}
}

// Outcome is what a single validation step produced.
type Outcome struct {
	Kind         OutcomeKind
	Reason       string   // populated for OutcomeFail
	MissingCount int      // populated for OutcomeUnresolvedDependencies
}

// Validator is the application-supplied callback invoked against a built
// Package, analogous to a zome's validation rule in the original system.
// A Validator that has no opinion about an entry kind returns
// OutcomeNotImplemented. §4.5 treats that leniently only for system
// entry types (AgentId, Dna, ChainHeader, Deletion, LinkAdd/LinkRemove,
// CapTokenGrant/CapTokenClaim) — those fold to Pass, since the DNA author
// never had to write a rule for bookkeeping entries it didn't define.
// App entries get no such leniency: an app entry with no matching
// validator case folds to Fail, since it means the DNA never defined a
// rule for its own type.
type Validator func(ctx context.Context, pkg Package) Outcome

// Verify runs the built-in structural checks every entry undergoes
// before the application Validator ever sees it (§4.5): the header's
// EntryAddress must equal the entry's own content address, and every
// provenance signature must verify against the entry's canonical bytes.
// These are never delegated to the application callback since they are
// the core's own integrity guarantees, not domain rules.
func Verify(entry model.Entry, header model.ChainHeader) Outcome {
	if header.EntryAddress != entry.Address() {
		return Outcome{Kind: OutcomeFail, Reason: "header EntryAddress does not match entry content address"}
	}
	if len(header.Provenances) == 0 {
		return Outcome{Kind: OutcomeFail, Reason: "no provenances on header"}
	}
	signingBytes := model.SigningBytes(entry)
	for _, p := range header.Provenances {
		if !signer.Verify(p.Agent, signingBytes, p.Signature) {
			return Outcome{Kind: OutcomeFail, Reason: "provenance signature verification failed"}
		}
	}
	return Outcome{Kind: OutcomePass}
}

// RunValidator invokes v against pkg after a prior Verify has already
// passed. A NotImplemented result folds to Pass for system entry types
// and to Fail for app entries (§4.5): a zome that never wrote a
// validation rule for its own app entry type is a defect in that zome,
// not an implicit grant.
func RunValidator(ctx context.Context, v Validator, pkg Package) Outcome {
	out := Outcome{Kind: OutcomeNotImplemented}
	if v != nil {
		out = v(ctx, pkg)
	}
	if out.Kind != OutcomeNotImplemented {
		return out
	}
	if pkg.Entry.Kind == model.KindApp {
		return Outcome{Kind: OutcomeFail, Reason: "no validator implemented for app entry type"}
	}
	return Outcome{Kind: OutcomePass}
}

// ToError converts a non-Pass Outcome into the corresponding §7 typed
// error, or nil for Pass.
func (o Outcome) ToError() error {
	switch o.Kind {
	case OutcomePass, OutcomeNotImplemented:
		return nil
	case OutcomeFail:
		return &errs.ValidationFailed{Reason: o.Reason}
	case OutcomeUnresolvedDependencies:
		return &errs.ValidationPending{Missing: o.MissingCount}
	default:
		return &errs.ValidationFailed{Reason: "unknown outcome"}
	}
}
