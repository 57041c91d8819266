package keychain

import (
	"errors"
	"time"

	"github.com/rs/zerolog"
	"github.com/zalando/go-keyring"
)

// The four discrete entries a credential is stored under. Keeping them
// separate (rather than one blob) matches the secure-storage layout the
// backend's other clients use.
const (
	keyAccessToken  = "access_token"
	keyRefreshToken = "refresh_token"
	keyIDToken      = "id_token"
	keyTokenExpiry  = "token_expiry"
)

// Store persists credentials in the OS keychain under one service namespace.
// Save and Clear are best-effort: they return false instead of an error, and a
// false return means the stored state may be inconsistent and should not be
// trusted.
type Store struct {
	service string
	logger  zerolog.Logger
}

// NewStore creates a store scoped to the given keychain service name.
func NewStore(service string, logger zerolog.Logger) *Store {
	return &Store{
		service: service,
		logger:  logger.With().Str("component", "keychain").Logger(),
	}
}

// Save overwrites the stored credential wholesale. Each entry is deleted
// before it is written so retries never accumulate duplicates, and optional
// entries absent from the credential are removed rather than left stale.
func (s *Store) Save(cred *Credential) bool {
	ok := s.setEntry(keyAccessToken, cred.AccessToken)
	ok = s.setEntry(keyRefreshToken, cred.RefreshToken) && ok
	ok = s.setEntry(keyIDToken, cred.IDToken) && ok
	ok = s.setEntry(keyTokenExpiry, cred.ExpiresAt.Format(time.RFC3339)) && ok

	if !ok {
		s.logger.Error().Msg("credential save incomplete, stored state may be inconsistent")
	}
	return ok
}

// setEntry writes one keychain entry with delete-then-add semantics. An empty
// value deletes the entry.
func (s *Store) setEntry(key, value string) bool {
	if err := keyring.Delete(s.service, key); err != nil && !errors.Is(err, keyring.ErrNotFound) {
		s.logger.Warn().Err(err).Str("key", key).Msg("deleting previous keychain entry failed")
	}
	if value == "" {
		return true
	}
	if err := keyring.Set(s.service, key, value); err != nil {
		s.logger.Error().Err(err).Str("key", key).Msg("writing keychain entry failed")
		return false
	}
	return true
}

// Load retrieves the stored credential, or nil when no access token is
// stored. A missing or undecodable expiry entry yields a zero ExpiresAt,
// which Expired treats as expired.
func (s *Store) Load() *Credential {
	accessToken, err := keyring.Get(s.service, keyAccessToken)
	if err != nil {
		if !errors.Is(err, keyring.ErrNotFound) {
			s.logger.Warn().Err(err).Msg("reading access token from keychain failed")
		}
		return nil
	}

	cred := &Credential{
		AccessToken:  accessToken,
		RefreshToken: s.getOptional(keyRefreshToken),
		IDToken:      s.getOptional(keyIDToken),
	}

	if raw := s.getOptional(keyTokenExpiry); raw != "" {
		expiry, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			s.logger.Warn().Err(err).Msg("stored token expiry is undecodable, treating credential as expired")
		} else {
			cred.ExpiresAt = expiry
		}
	}

	s.logger.Debug().
		Str("access_token", TokenPrefix(cred.AccessToken)).
		Bool("has_refresh_token", cred.HasRefreshToken()).
		Time("expires_at", cred.ExpiresAt).
		Msg("credential loaded")

	return cred
}

func (s *Store) getOptional(key string) string {
	value, err := keyring.Get(s.service, key)
	if err != nil {
		if !errors.Is(err, keyring.ErrNotFound) {
			s.logger.Warn().Err(err).Str("key", key).Msg("reading keychain entry failed")
		}
		return ""
	}
	return value
}

// Clear removes all four entries. A missing entry counts as cleared.
func (s *Store) Clear() bool {
	ok := true
	for _, key := range []string{keyAccessToken, keyRefreshToken, keyIDToken, keyTokenExpiry} {
		if err := keyring.Delete(s.service, key); err != nil && !errors.Is(err, keyring.ErrNotFound) {
			s.logger.Error().Err(err).Str("key", key).Msg("deleting keychain entry failed")
			ok = false
		}
	}
	return ok
}
