package capability

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lux-nexus/switchboard/internal/address"
	"github.com/lux-nexus/switchboard/internal/chain"
	"github.com/lux-nexus/switchboard/internal/model"
)

func TestAuthorizeSucceedsForAssignee(t *testing.T) {
	c := chain.New()
	caller := address.Address{7}

	grant := model.Entry{Kind: model.KindCapTokenGrant, CapTokenGrant: &model.CapTokenGrant{
		Functions: []string{"read"},
		Assignees: []address.Address{caller},
	}}
	grantHeader := c.Append(grant, nil, nil)
	_ = grantHeader

	claim := model.Entry{Kind: model.KindCapTokenClaim, CapTokenClaim: &model.CapTokenClaim{
		Grantor: address.Address{1},
		Grant:   grant.Address(),
	}}
	c.Append(claim, nil, nil)

	r := NewResolver(c)
	_, err := r.Authorize(caller, claim.Address(), "read")
	require.NoError(t, err)
}

func TestAuthorizeRejectsNonAssignee(t *testing.T) {
	c := chain.New()
	grant := model.Entry{Kind: model.KindCapTokenGrant, CapTokenGrant: &model.CapTokenGrant{
		Functions: []string{"read"},
		Assignees: []address.Address{{7}},
	}}
	c.Append(grant, nil, nil)
	claim := model.Entry{Kind: model.KindCapTokenClaim, CapTokenClaim: &model.CapTokenClaim{Grant: grant.Address()}}
	c.Append(claim, nil, nil)

	r := NewResolver(c)
	_, err := r.Authorize(address.Address{9}, claim.Address(), "read")
	require.Error(t, err)
}

func TestAuthorizeRejectsUnlistedFunction(t *testing.T) {
	c := chain.New()
	caller := address.Address{7}
	grant := model.Entry{Kind: model.KindCapTokenGrant, CapTokenGrant: &model.CapTokenGrant{
		Functions: []string{"read"},
	}}
	c.Append(grant, nil, nil)
	claim := model.Entry{Kind: model.KindCapTokenClaim, CapTokenClaim: &model.CapTokenClaim{Grant: grant.Address()}}
	c.Append(claim, nil, nil)

	r := NewResolver(c)
	_, err := r.Authorize(caller, claim.Address(), "write")
	require.Error(t, err)
}

func TestAuthorizeUnrestrictedGrantAllowsAnyAssignee(t *testing.T) {
	c := chain.New()
	grant := model.Entry{Kind: model.KindCapTokenGrant, CapTokenGrant: &model.CapTokenGrant{
		Functions: []string{"read"},
	}}
	c.Append(grant, nil, nil)
	claim := model.Entry{Kind: model.KindCapTokenClaim, CapTokenClaim: &model.CapTokenClaim{Grant: grant.Address()}}
	c.Append(claim, nil, nil)

	r := NewResolver(c)
	_, err := r.Authorize(address.Address{42}, claim.Address(), "read")
	require.NoError(t, err)
}
