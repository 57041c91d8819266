package cmd

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oglimmer/mdalert/internal/auth"
	"github.com/oglimmer/mdalert/internal/oidc"
)

func authedSnapshot(identity *oidc.UserInfo) auth.Snapshot {
	return auth.Snapshot{State: auth.StateAuthenticated, AccessToken: "T1", Identity: identity}
}

func TestAwaitIdentityPicksUpLaterSnapshot(t *testing.T) {
	updates := make(chan auth.Snapshot, 1)
	updates <- authedSnapshot(&oidc.UserInfo{Sub: "u-1", Name: "Test User"})

	snap := awaitIdentity(context.Background(), updates, authedSnapshot(nil), time.Second)

	require.NotNil(t, snap.Identity)
	assert.Equal(t, "Test User", snap.Identity.DisplayName())
}

func TestAwaitIdentityReturnsOnTimeout(t *testing.T) {
	updates := make(chan auth.Snapshot)

	snap := awaitIdentity(context.Background(), updates, authedSnapshot(nil), 20*time.Millisecond)

	assert.True(t, snap.Authenticated())
	assert.Nil(t, snap.Identity)
}

func TestAwaitIdentityKeepsSnapshotWithIdentity(t *testing.T) {
	updates := make(chan auth.Snapshot)
	start := authedSnapshot(&oidc.UserInfo{Sub: "u-1", Email: "user@example.com"})

	snap := awaitIdentity(context.Background(), updates, start, time.Second)

	require.NotNil(t, snap.Identity)
	assert.Equal(t, "user@example.com", snap.Identity.DisplayName())
}

func TestAwaitIdentityStopsOnDeauthentication(t *testing.T) {
	updates := make(chan auth.Snapshot, 1)
	updates <- auth.Snapshot{State: auth.StateUnauthenticated}

	snap := awaitIdentity(context.Background(), updates, authedSnapshot(nil), time.Second)

	assert.False(t, snap.Authenticated())
}
