package cmd

import (
	"net/http"
	"strings"

	"github.com/oglimmer/mdalert/internal/alerts"
	"github.com/oglimmer/mdalert/internal/auth"
	"github.com/oglimmer/mdalert/internal/callback"
	"github.com/oglimmer/mdalert/internal/keychain"
	"github.com/oglimmer/mdalert/internal/notify"
	"github.com/oglimmer/mdalert/internal/oidc"
)

// app bundles the wired component graph shared by the subcommands.
type app struct {
	store        *keychain.Store
	orchestrator *auth.Orchestrator
	callback     *callback.Server
	poller       *alerts.Poller
	dispatcher   *notify.Dispatcher
}

func buildApp() *app {
	httpClient := &http.Client{Timeout: cfg.HTTPTimeout()}

	discovery := oidc.NewDiscoveryResolver(cfg.WellKnownURL, httpClient, logger)
	provider := oidc.NewProviderClient(cfg.ClientID, cfg.ClientSecret, cfg.RedirectURI, httpClient, logger)
	store := keychain.NewStore(cfg.KeyringService, logger)

	orchestrator := auth.NewOrchestrator(auth.Options{
		ClientID:    cfg.ClientID,
		RedirectURI: cfg.RedirectURI,
		Scope:       strings.TrimSpace(cfg.Scopes),
		Discovery:   discovery,
		Provider:    provider,
		Store:       store,
		Logger:      logger,
	})

	cb := callback.New(cfg.CallbackAddr, cfg.CallbackPath, orchestrator.HandleCallback, logger)

	dispatcher := notify.NewDispatcher(cfg.MonitorsURL, logger)
	fetcher := alerts.NewClient(cfg.AlertsURL, httpClient, logger)
	poller := alerts.NewPoller(fetcher, dispatcher, cfg.PollInterval(), cfg.HTTPTimeout(), logger)

	return &app{
		store:        store,
		orchestrator: orchestrator,
		callback:     cb,
		poller:       poller,
		dispatcher:   dispatcher,
	}
}
