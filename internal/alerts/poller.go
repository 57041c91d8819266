package alerts

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/oglimmer/mdalert/internal/auth"
)

// Sink receives the result of each applied poll.
type Sink interface {
	Dispatch(delta Delta, items []AlertItem)
}

const (
	defaultInterval = 5 * time.Second
	defaultTimeout  = 10 * time.Second
)

// Poller fetches the alert list on a fixed interval while a session is
// authenticated. Polls are serialized: a tick that fires while a fetch is
// still in flight is skipped rather than dispatched concurrently, so results
// are always applied in order. Stop discards the whole snapshot; alerts still
// down at a later Start are treated as newly down and notify again.
type Poller struct {
	fetcher  Fetcher
	sink     Sink
	interval time.Duration
	timeout  time.Duration
	logger   zerolog.Logger

	mu      sync.Mutex
	session *pollSession
	items   []AlertItem
	down    DownSet
}

// pollSession identifies one Start..Stop span. The access token is captured
// at start time; refreshing mid-run is the orchestrator's business and shows
// up here as a stop/start cycle.
type pollSession struct {
	token    string
	done     chan struct{}
	inFlight atomic.Bool
}

// NewPoller creates a poller. Zero interval and timeout select the defaults.
func NewPoller(fetcher Fetcher, sink Sink, interval, timeout time.Duration, logger zerolog.Logger) *Poller {
	if interval <= 0 {
		interval = defaultInterval
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Poller{
		fetcher:  fetcher,
		sink:     sink,
		interval: interval,
		timeout:  timeout,
		logger:   logger.With().Str("component", "poller").Logger(),
	}
}

// Start begins polling with the given access token. Calling Start while
// already running is a no-op. The first fetch is issued immediately.
func (p *Poller) Start(accessToken string) {
	p.mu.Lock()
	if p.session != nil {
		p.mu.Unlock()
		p.logger.Debug().Msg("already polling")
		return
	}
	s := &pollSession{token: accessToken, done: make(chan struct{})}
	p.session = s
	p.mu.Unlock()

	p.logger.Info().Dur("interval", p.interval).Msg("polling started")
	go p.loop(s)
}

// Stop cancels the timer and discards all in-memory alert state, so a
// subsequent Start begins from an empty baseline. An in-flight fetch is not
// cancelled; its late result is ignored.
func (p *Poller) Stop() {
	p.mu.Lock()
	s := p.session
	p.session = nil
	p.items = nil
	p.down = nil
	p.mu.Unlock()

	if s != nil {
		close(s.done)
		p.logger.Info().Msg("polling stopped")
	}
}

// Running reports whether a poll session is active.
func (p *Poller) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.session != nil
}

// Alerts returns a copy of the most recently fetched alert list.
func (p *Poller) Alerts() []AlertItem {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]AlertItem, len(p.items))
	copy(out, p.items)
	return out
}

// StateSource is the authentication state signal the poller is gated by.
// *auth.StateCell satisfies it.
type StateSource interface {
	Snapshot() auth.Snapshot
	Subscribe() <-chan auth.Snapshot
}

// Run drives the poller from the authentication state until ctx is
// cancelled: Authenticated starts it with the session's access token, every
// other state stops it.
func (p *Poller) Run(ctx context.Context, source StateSource) {
	ch := source.Subscribe()
	p.applyAuthState(source.Snapshot())

	for {
		select {
		case <-ctx.Done():
			p.Stop()
			return
		case snap := <-ch:
			p.applyAuthState(snap)
		}
	}
}

func (p *Poller) applyAuthState(snap auth.Snapshot) {
	if snap.Authenticated() {
		p.Start(snap.AccessToken)
	} else {
		p.Stop()
	}
}

func (p *Poller) loop(s *pollSession) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	go p.poll(s)

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			go p.poll(s)
		}
	}
}

func (p *Poller) poll(s *pollSession) {
	if !s.inFlight.CompareAndSwap(false, true) {
		p.logger.Debug().Msg("previous fetch still in flight, skipping tick")
		return
	}
	defer s.inFlight.Store(false)

	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()

	items, err := p.fetcher.Fetch(ctx, s.token)
	if err != nil {
		// Transient by policy: the next scheduled tick retries, no backoff.
		p.logger.Warn().Err(err).Msg("alert fetch failed, retrying next tick")
		return
	}

	p.apply(s, items)
}

// apply commits one fetch result. Results from a session that has been
// stopped since the fetch was dispatched are dropped.
func (p *Poller) apply(s *pollSession, items []AlertItem) {
	p.mu.Lock()
	if p.session != s {
		p.mu.Unlock()
		p.logger.Debug().Msg("discarding result from stopped poll session")
		return
	}
	delta := Diff(p.down, items)
	p.items = items
	p.down = delta.Down
	p.mu.Unlock()

	if len(delta.NewlyDown) > 0 || len(delta.Recovered) > 0 {
		p.logger.Info().
			Int("newly_down", len(delta.NewlyDown)).
			Int("recovered", len(delta.Recovered)).
			Int("down_total", len(delta.Down)).
			Msg("alert state changed")
	}

	p.sink.Dispatch(delta, items)
}
