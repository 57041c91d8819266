package notify

import (
	"fmt"
	"strings"
	"time"

	"github.com/gen2brain/beeep"
	"github.com/pkg/browser"
	"github.com/rs/zerolog"

	"github.com/oglimmer/mdalert/internal/alerts"
)

// Notification is one user-facing alert. ID is stable per AlertKey so a
// delivery system that deduplicates by identifier never double-delivers.
type Notification struct {
	ID    string
	Title string
	Body  string
	Link  string
}

// Notifier delivers a notification to the desktop. The default uses beeep.
type Notifier func(n Notification) error

// Dispatcher turns newly-down deltas into one notification per alert key.
// Suppressing repeats during an ongoing outage is the diff engine's job, and
// the stable per-key ID lets a deduplicating delivery system drop anything
// that slips through. The dispatcher itself is stateless, so a poller restart
// re-notifies alerts that are still down.
type Dispatcher struct {
	monitorsURL string
	notify      Notifier
	openLink    func(url string) error
	logger      zerolog.Logger
}

// Option customizes a Dispatcher.
type Option func(*Dispatcher)

// WithNotifier replaces the desktop notification backend.
func WithNotifier(n Notifier) Option {
	return func(d *Dispatcher) { d.notify = n }
}

// WithLinkOpener replaces the click-through URL opener.
func WithLinkOpener(open func(url string) error) Option {
	return func(d *Dispatcher) { d.openLink = open }
}

// NewDispatcher creates a dispatcher whose notifications deep-link to the
// given monitoring UI URL.
func NewDispatcher(monitorsURL string, logger zerolog.Logger, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		monitorsURL: monitorsURL,
		notify:      desktopNotify,
		openLink:    browser.OpenURL,
		logger:      logger.With().Str("component", "notify").Logger(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func desktopNotify(n Notification) error {
	return beeep.Notify(n.Title, n.Body, "")
}

// Dispatch implements alerts.Sink. Every newly-down key notifies; recoveries
// are log-only, no user-facing notification.
func (d *Dispatcher) Dispatch(delta alerts.Delta, items []alerts.AlertItem) {
	byKey := make(map[alerts.AlertKey]alerts.AlertItem, len(items))
	for _, item := range items {
		byKey[alerts.Key(item)] = item
	}

	for key := range delta.Recovered {
		d.logger.Info().Str("alert", string(key)).Msg("monitor recovered")
	}

	for key := range delta.NewlyDown {
		n := d.build(key, byKey[key])
		if err := d.notify(n); err != nil {
			d.logger.Error().Err(err).Str("alert", string(key)).Msg("sending notification failed")
			continue
		}
		d.logger.Info().Str("alert", string(key)).Str("id", n.ID).Msg("sent down notification")
	}
}

// HandleActivation routes a notification click-through to the monitoring UI.
func (d *Dispatcher) HandleActivation(n Notification) {
	if n.Link == "" {
		return
	}
	if err := d.openLink(n.Link); err != nil {
		d.logger.Error().Err(err).Str("url", n.Link).Msg("opening monitors UI failed")
	}
}

func (d *Dispatcher) build(key alerts.AlertKey, item alerts.AlertItem) Notification {
	body := fmt.Sprintf("%s in %s is down", item.MonitorName, item.TenantName)
	if item.DowntimeStart != "" {
		body += " since " + formatDowntimeStart(item.DowntimeStart)
	}
	return Notification{
		ID:    NotificationID(key),
		Title: "Monitor Down",
		Body:  body,
		Link:  d.monitorsURL,
	}
}

// NotificationID derives the stable dedup identifier for an alert key.
func NotificationID(key alerts.AlertKey) string {
	tenant, monitor, _ := strings.Cut(string(key), ":")
	return fmt.Sprintf("monitor-down-%s-%s", tenant, monitor)
}

// formatDowntimeStart renders an RFC 3339 timestamp as a short local time,
// falling back to the raw value when it doesn't parse.
func formatDowntimeStart(raw string) string {
	ts, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return raw
	}
	return ts.Local().Format(time.Kitchen)
}
