package notify_test

import (
	"errors"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oglimmer/mdalert/internal/alerts"
	"github.com/oglimmer/mdalert/internal/notify"
)

type recorder struct {
	mu   sync.Mutex
	sent []notify.Notification
	err  error
}

func (r *recorder) notifier() notify.Notifier {
	return func(n notify.Notification) error {
		r.mu.Lock()
		defer r.mu.Unlock()
		if r.err != nil {
			return r.err
		}
		r.sent = append(r.sent, n)
		return nil
	}
}

func downItem(tenant, monitor, since string) alerts.AlertItem {
	return alerts.AlertItem{
		TenantName:    tenant,
		MonitorName:   monitor,
		Status:        alerts.StatusDown,
		DowntimeStart: since,
	}
}

func newDispatcher(r *recorder) *notify.Dispatcher {
	return notify.NewDispatcher("http://localhost:5173/monitors", zerolog.Nop(),
		notify.WithNotifier(r.notifier()))
}

func TestDispatchNewlyDown(t *testing.T) {
	r := &recorder{}
	d := newDispatcher(r)

	item := downItem("acme", "web", "2025-06-26T11:58:00Z")
	delta := alerts.Diff(alerts.DownSet{}, []alerts.AlertItem{item})
	d.Dispatch(delta, []alerts.AlertItem{item})

	require.Len(t, r.sent, 1)
	n := r.sent[0]
	assert.Equal(t, "monitor-down-acme-web", n.ID)
	assert.Equal(t, "Monitor Down", n.Title)
	assert.Contains(t, n.Body, "web in acme is down since ")
	assert.Equal(t, "http://localhost:5173/monitors", n.Link)
}

func TestDispatchBodyWithoutDowntimeStart(t *testing.T) {
	r := &recorder{}
	d := newDispatcher(r)

	item := downItem("acme", "web", "")
	delta := alerts.Diff(alerts.DownSet{}, []alerts.AlertItem{item})
	d.Dispatch(delta, []alerts.AlertItem{item})

	require.Len(t, r.sent, 1)
	assert.Equal(t, "web in acme is down", r.sent[0].Body)
}

func TestDispatchOncePerOngoingOutage(t *testing.T) {
	r := &recorder{}
	d := newDispatcher(r)

	item := downItem("acme", "web", "")
	prev := alerts.DownSet{}
	// Five consecutive polls all reporting the same outage: the first
	// transition notifies, the steady state stays silent.
	for i := 0; i < 5; i++ {
		delta := alerts.Diff(prev, []alerts.AlertItem{item})
		d.Dispatch(delta, []alerts.AlertItem{item})
		prev = delta.Down
	}

	assert.Len(t, r.sent, 1, "an ongoing outage must notify only on its down-transition")
}

func TestPollerRestartNotifiesStillDownAlerts(t *testing.T) {
	r := &recorder{}
	d := newDispatcher(r)

	item := downItem("acme", "web", "")

	// First poll session.
	delta := alerts.Diff(alerts.DownSet{}, []alerts.AlertItem{item})
	d.Dispatch(delta, []alerts.AlertItem{item})

	// Stop discards the down-set, so a restarted session diffs against an
	// empty baseline and the still-down alert counts as newly down again.
	delta = alerts.Diff(alerts.DownSet{}, []alerts.AlertItem{item})
	d.Dispatch(delta, []alerts.AlertItem{item})

	assert.Len(t, r.sent, 2, "alerts still down after a restart must notify again")
}

func TestOutageAfterRecoveryMissedWhileStopped(t *testing.T) {
	r := &recorder{}
	d := newDispatcher(r)

	item := downItem("acme", "web", "")
	delta := alerts.Diff(alerts.DownSet{}, []alerts.AlertItem{item})
	d.Dispatch(delta, []alerts.AlertItem{item})

	// The monitor recovers and goes down again while the poller is stopped,
	// so no Recovered delta was ever seen. The new outage must still notify.
	delta = alerts.Diff(alerts.DownSet{}, []alerts.AlertItem{item})
	d.Dispatch(delta, []alerts.AlertItem{item})

	assert.Len(t, r.sent, 2, "an outage after a missed recovery must not be suppressed")
}

func TestReOutageAfterRecoveryNotifiesAgain(t *testing.T) {
	r := &recorder{}
	d := newDispatcher(r)

	item := downItem("acme", "web", "")
	downDelta := alerts.Diff(alerts.DownSet{}, []alerts.AlertItem{item})
	d.Dispatch(downDelta, []alerts.AlertItem{item})

	recoveredDelta := alerts.Diff(downDelta.Down, nil)
	d.Dispatch(recoveredDelta, nil)

	// A fresh outage of the same monitor notifies again.
	d.Dispatch(downDelta, []alerts.AlertItem{item})
	assert.Len(t, r.sent, 2)
}

func TestRecoveryEmitsNoNotification(t *testing.T) {
	r := &recorder{}
	d := newDispatcher(r)

	delta := alerts.Diff(alerts.DownSet{"acme:web": {}}, nil)
	d.Dispatch(delta, nil)

	assert.Empty(t, r.sent)
}

func TestNotifierFailureDoesNotPanic(t *testing.T) {
	r := &recorder{err: errors.New("notification center unavailable")}
	d := newDispatcher(r)

	item := downItem("acme", "web", "")
	delta := alerts.Diff(alerts.DownSet{}, []alerts.AlertItem{item})
	d.Dispatch(delta, []alerts.AlertItem{item})

	assert.Empty(t, r.sent)
}

func TestHandleActivationOpensLink(t *testing.T) {
	var opened string
	d := notify.NewDispatcher("http://localhost:5173/monitors", zerolog.Nop(),
		notify.WithLinkOpener(func(url string) error {
			opened = url
			return nil
		}))

	d.HandleActivation(notify.Notification{Link: "http://localhost:5173/monitors"})
	assert.Equal(t, "http://localhost:5173/monitors", opened)
}

func TestNotificationID(t *testing.T) {
	assert.Equal(t, "monitor-down-acme-web", notify.NotificationID("acme:web"))
}
