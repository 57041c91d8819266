package oidc

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/jellydator/ttlcache/v3"
	"github.com/rs/zerolog"

	apperrors "github.com/oglimmer/mdalert/errors"
)

// DiscoveryDocument is the subset of the provider metadata the notifier needs.
type DiscoveryDocument struct {
	AuthorizationEndpoint string `json:"authorization_endpoint"`
	TokenEndpoint         string `json:"token_endpoint"`
	UserinfoEndpoint      string `json:"userinfo_endpoint"`
}

const discoveryCacheKey = "discovery"

// DiscoveryResolver fetches the provider metadata document once and caches it
// for the process lifetime. A failed fetch leaves the cache empty so the next
// login attempt retries.
type DiscoveryResolver struct {
	wellKnownURL string
	httpClient   *http.Client
	logger       zerolog.Logger

	mu    sync.Mutex
	cache *ttlcache.Cache[string, *DiscoveryDocument]
}

// NewDiscoveryResolver creates a resolver for the given well-known URL.
func NewDiscoveryResolver(wellKnownURL string, httpClient *http.Client, logger zerolog.Logger) *DiscoveryResolver {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &DiscoveryResolver{
		wellKnownURL: wellKnownURL,
		httpClient:   httpClient,
		logger:       logger.With().Str("component", "discovery").Logger(),
		cache:        ttlcache.New[string, *DiscoveryDocument](),
	}
}

// Resolve returns the cached discovery document, fetching it on first use.
// Concurrent callers share a single fetch.
func (r *DiscoveryResolver) Resolve(ctx context.Context) (*DiscoveryDocument, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if item := r.cache.Get(discoveryCacheKey); item != nil {
		return item.Value(), nil
	}

	doc, err := r.fetch(ctx)
	if err != nil {
		return nil, err
	}

	r.cache.Set(discoveryCacheKey, doc, ttlcache.NoTTL)
	r.logger.Info().
		Str("authorization_endpoint", doc.AuthorizationEndpoint).
		Str("token_endpoint", doc.TokenEndpoint).
		Msg("discovery document loaded")

	return doc, nil
}

func (r *DiscoveryResolver) fetch(ctx context.Context) (*DiscoveryDocument, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.wellKnownURL, nil)
	if err != nil {
		return nil, fmt.Errorf("building discovery request: %w", err)
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, apperrors.NewNetwork("discovery.resolve", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, apperrors.NewProtocol("discovery.resolve",
			fmt.Sprintf("discovery endpoint returned status %d", resp.StatusCode))
	}

	var doc DiscoveryDocument
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return nil, apperrors.NewDecode("discovery.resolve", err)
	}
	if doc.AuthorizationEndpoint == "" || doc.TokenEndpoint == "" || doc.UserinfoEndpoint == "" {
		return nil, apperrors.NewDecode("discovery.resolve",
			fmt.Errorf("discovery document is missing required endpoints"))
	}

	return &doc, nil
}
