package keychain_test

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"

	"github.com/oglimmer/mdalert/internal/keychain"
)

func newTestStore(t *testing.T) *keychain.Store {
	t.Helper()
	keyring.MockInit()
	return keychain.NewStore("mdalert-test", zerolog.Nop())
}

func TestSaveLoadRoundtrip(t *testing.T) {
	store := newTestStore(t)
	expiry := time.Now().Add(time.Hour).Truncate(time.Second)

	ok := store.Save(&keychain.Credential{
		AccessToken:  "T1",
		RefreshToken: "R1",
		IDToken:      "I1",
		ExpiresAt:    expiry,
	})
	require.True(t, ok)

	cred := store.Load()
	require.NotNil(t, cred)
	assert.Equal(t, "T1", cred.AccessToken)
	assert.Equal(t, "R1", cred.RefreshToken)
	assert.Equal(t, "I1", cred.IDToken)
	assert.True(t, cred.ExpiresAt.Equal(expiry))
	assert.False(t, cred.Expired(time.Now()))
}

func TestLoadEmptyStore(t *testing.T) {
	store := newTestStore(t)
	assert.Nil(t, store.Load())
}

func TestSaveOverwritesStaleOptionalEntries(t *testing.T) {
	store := newTestStore(t)

	require.True(t, store.Save(&keychain.Credential{
		AccessToken:  "T1",
		RefreshToken: "R1",
		IDToken:      "I1",
		ExpiresAt:    time.Now().Add(time.Hour),
	}))

	// A refresh response without refresh/id tokens must not leave the old
	// ones behind.
	require.True(t, store.Save(&keychain.Credential{
		AccessToken: "T2",
		ExpiresAt:   time.Now().Add(time.Hour),
	}))

	cred := store.Load()
	require.NotNil(t, cred)
	assert.Equal(t, "T2", cred.AccessToken)
	assert.Empty(t, cred.RefreshToken)
	assert.Empty(t, cred.IDToken)
}

func TestClear(t *testing.T) {
	store := newTestStore(t)

	require.True(t, store.Save(&keychain.Credential{
		AccessToken: "T1",
		ExpiresAt:   time.Now().Add(time.Hour),
	}))
	assert.True(t, store.Clear())
	assert.Nil(t, store.Load())

	// Clearing an already-empty store succeeds.
	assert.True(t, store.Clear())
}

func TestMissingExpiryFailsClosed(t *testing.T) {
	keyring.MockInit()
	require.NoError(t, keyring.Set("mdalert-test", "access_token", "T1"))

	store := keychain.NewStore("mdalert-test", zerolog.Nop())
	cred := store.Load()
	require.NotNil(t, cred)
	assert.True(t, cred.ExpiresAt.IsZero())
	assert.True(t, cred.Expired(time.Now()))
}

func TestUndecodableExpiryFailsClosed(t *testing.T) {
	keyring.MockInit()
	require.NoError(t, keyring.Set("mdalert-test", "access_token", "T1"))
	require.NoError(t, keyring.Set("mdalert-test", "token_expiry", "not-a-timestamp"))

	store := keychain.NewStore("mdalert-test", zerolog.Nop())
	cred := store.Load()
	require.NotNil(t, cred)
	assert.True(t, cred.Expired(time.Now()))
}

func TestExpiryBoundaryInclusive(t *testing.T) {
	now := time.Date(2025, 6, 26, 12, 0, 0, 0, time.UTC)

	atBoundary := &keychain.Credential{AccessToken: "T", ExpiresAt: now}
	assert.True(t, atBoundary.Expired(now), "expiry == now is expired")

	oneSecondLeft := &keychain.Credential{AccessToken: "T", ExpiresAt: now.Add(time.Second)}
	assert.False(t, oneSecondLeft.Expired(now), "expiry == now+1s is valid")
}

func TestTokenPrefix(t *testing.T) {
	assert.Equal(t, "eyJhbGci...", keychain.TokenPrefix("eyJhbGciOiJSUzI1NiIs"))
	assert.Equal(t, "short", keychain.TokenPrefix("short"))
}
