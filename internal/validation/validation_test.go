package validation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lux-nexus/switchboard/internal/chain"
	"github.com/lux-nexus/switchboard/internal/model"
	"github.com/lux-nexus/switchboard/internal/signer"
)

func signedAppend(t *testing.T, c *chain.Chain, ks *signer.Keystore, keyName string, tag string) (model.Entry, model.ChainHeader) {
	t.Helper()
	entry := model.NewApp(tag, []byte(tag))
	signingBytes := model.SigningBytes(entry)
	sig, err := ks.Sign(keyName, signingBytes)
	require.NoError(t, err)
	bundle, ok := ks.Bundle(keyName)
	require.True(t, ok)
	prov := []model.Provenance{{Agent: bundle.Agent(), Signature: sig}}
	header := c.Append(entry, prov, nil)
	return entry, header
}

func TestVerifyPassesValidSignature(t *testing.T) {
	ks := signer.NewKeystore()
	require.NoError(t, ks.Unlock("pw"))
	_, err := ks.Generate("agent")
	require.NoError(t, err)

	c := chain.New()
	entry, header := signedAppend(t, c, ks, "agent", "note")

	out := Verify(entry, header)
	require.Equal(t, OutcomePass, out.Kind)
}

func TestVerifyFailsOnEntryAddressMismatch(t *testing.T) {
	ks := signer.NewKeystore()
	require.NoError(t, ks.Unlock("pw"))
	_, err := ks.Generate("agent")
	require.NoError(t, err)

	c := chain.New()
	_, header := signedAppend(t, c, ks, "agent", "note")

	otherEntry := model.NewApp("note", []byte("tampered"))
	out := Verify(otherEntry, header)
	require.Equal(t, OutcomeFail, out.Kind)
}

func TestVerifyFailsOnBadSignature(t *testing.T) {
	ks := signer.NewKeystore()
	require.NoError(t, ks.Unlock("pw"))
	_, err := ks.Generate("agent")
	require.NoError(t, err)

	entry := model.NewApp("note", []byte("hello"))
	bundle, _ := ks.Bundle("agent")
	header := model.ChainHeader{
		EntryType:    entry.Kind,
		EntryAddress: entry.Address(),
		Provenances:  []model.Provenance{{Agent: bundle.Agent(), Signature: []byte("not-a-real-signature-of-correct-len-00")}},
	}
	out := Verify(entry, header)
	require.Equal(t, OutcomeFail, out.Kind)
}

func TestRunValidatorFoldsNotImplementedToPassForSystemEntry(t *testing.T) {
	v := func(ctx context.Context, pkg Package) Outcome {
		return Outcome{Kind: OutcomeNotImplemented}
	}
	pkg := Package{Entry: model.Entry{Kind: model.KindAgentID}}
	out := RunValidator(context.Background(), v, pkg)
	require.Equal(t, OutcomePass, out.Kind)
}

func TestRunValidatorFoldsNotImplementedToFailForAppEntry(t *testing.T) {
	v := func(ctx context.Context, pkg Package) Outcome {
		return Outcome{Kind: OutcomeNotImplemented}
	}
	pkg := Package{Entry: model.Entry{Kind: model.KindApp}}
	out := RunValidator(context.Background(), v, pkg)
	require.Equal(t, OutcomeFail, out.Kind)
}

func TestRunValidatorNilCallbackFoldsLikeNotImplemented(t *testing.T) {
	systemPkg := Package{Entry: model.Entry{Kind: model.KindDeletion}}
	out := RunValidator(context.Background(), nil, systemPkg)
	require.Equal(t, OutcomePass, out.Kind)

	appPkg := Package{Entry: model.Entry{Kind: model.KindApp}}
	out = RunValidator(context.Background(), nil, appPkg)
	require.Equal(t, OutcomeFail, out.Kind)
}

func TestBuildPackageEntryKindIsShallow(t *testing.T) {
	c := chain.New()
	entry := model.NewApp("note", []byte("a"))
	header := c.Append(entry, nil, nil)

	pkg, err := BuildPackage(context.Background(), PackageEntry, entry, header, NewLocalFetcher(c), false)
	require.NoError(t, err)
	require.Nil(t, pkg.ChainHeaders)
}

func TestBuildPackageChainHeadersWalksBackLocal(t *testing.T) {
	c := chain.New()
	c.Append(model.NewApp("note", []byte("a")), nil, nil)
	e2 := model.NewApp("note", []byte("b"))
	h2 := c.Append(e2, nil, nil)

	pkg, err := BuildPackage(context.Background(), PackageChainHeaders, e2, h2, NewLocalFetcher(c), false)
	require.NoError(t, err)
	require.Len(t, pkg.ChainHeaders, 1)
}

func TestBuildPackageChainEntriesIncludesPriorEntryBodies(t *testing.T) {
	c := chain.New()
	e1 := model.NewApp("note", []byte("a"))
	c.Append(e1, nil, nil)
	e2 := model.NewApp("note", []byte("b"))
	h2 := c.Append(e2, nil, nil)

	pkg, err := BuildPackage(context.Background(), PackageChainEntries, e2, h2, NewLocalFetcher(c), false)
	require.NoError(t, err)
	require.Len(t, pkg.ChainHeaders, 1)
	require.Len(t, pkg.ChainEntries, 1)
	require.Equal(t, e1.Address(), pkg.ChainEntries[0].Address())
}

func TestOutcomeToError(t *testing.T) {
	require.Nil(t, Outcome{Kind: OutcomePass}.ToError())
	require.Error(t, Outcome{Kind: OutcomeFail, Reason: "bad"}.ToError())
	require.Error(t, Outcome{Kind: OutcomeUnresolvedDependencies, MissingCount: 2}.ToError())
}
