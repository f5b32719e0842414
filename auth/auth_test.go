package auth

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/eth2030/xlbus/core/types"
)

func TestAllowlist(t *testing.T) {
	worker := types.Address{0x03}
	other := types.Address{0x06}

	l := NewAllowlist()
	require.False(t, l.IsAuthorized(worker, RoleWorker))

	l.Grant(RoleWorker, worker)
	require.True(t, l.IsAuthorized(worker, RoleWorker))
	require.False(t, l.IsAuthorized(worker, RoleGateway))
	require.False(t, l.IsAuthorized(other, RoleWorker))

	require.NoError(t, Require(l, worker, RoleWorker))
	require.ErrorIs(t, Require(l, other, RoleWorker), ErrUnauthorized)
	require.ErrorIs(t, Require(nil, worker, RoleWorker), ErrUnauthorized)

	l.Revoke(RoleWorker, worker)
	require.False(t, l.IsAuthorized(worker, RoleWorker))
}

func TestAllowlistRejectsZeroAddress(t *testing.T) {
	l := NewAllowlist()
	l.Grant(RoleOwner, types.Address{})
	require.False(t, l.IsAuthorized(types.Address{}, RoleOwner))
}

func TestParseRole(t *testing.T) {
	for _, r := range []Role{RoleOwner, RoleWorker, RoleGateway} {
		got, err := ParseRole(r.String())
		require.NoError(t, err)
		require.Equal(t, r, got)
	}
	_, err := ParseRole("admin")
	require.Error(t, err)
}
