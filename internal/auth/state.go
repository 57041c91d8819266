package auth

import "github.com/oglimmer/mdalert/internal/oidc"

// State is the authentication state machine's current position.
type State int

const (
	// StateUnauthenticated is the rest state: no usable credential.
	StateUnauthenticated State = iota
	// StateAwaitingCallback means an authorization URL has been handed to the
	// browser and the redirect has not come back yet.
	StateAwaitingCallback
	// StateExchangingCode means the callback's authorization code is being
	// traded for tokens.
	StateExchangingCode
	// StateAuthenticated means a valid credential is held and polling may run.
	StateAuthenticated
	// StateRefreshing means an expired credential's refresh grant is in flight.
	StateRefreshing
)

func (s State) String() string {
	switch s {
	case StateUnauthenticated:
		return "unauthenticated"
	case StateAwaitingCallback:
		return "awaiting_callback"
	case StateExchangingCode:
		return "exchanging_code"
	case StateAuthenticated:
		return "authenticated"
	case StateRefreshing:
		return "refreshing"
	default:
		return "unknown"
	}
}

// Snapshot is one published view of the authentication state. AccessToken is
// set only in StateAuthenticated; Identity is set once userinfo has been
// fetched; Err carries the last user-visible failure and is cleared by the
// next successful transition.
type Snapshot struct {
	State       State
	AccessToken string
	Identity    *oidc.UserInfo
	Err         error
}

// Authenticated reports whether the snapshot carries a usable session.
func (s Snapshot) Authenticated() bool {
	return s.State == StateAuthenticated && s.AccessToken != ""
}
