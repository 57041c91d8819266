package alerts

// AlertItem is one entry of the backend's alert listing. The list is
// unordered and carries no stable identifier beyond the (tenant, monitor)
// name pair.
type AlertItem struct {
	MonitorName   string `json:"monitorName"`
	TenantName    string `json:"tenantName"`
	Status        string `json:"status"`
	DowntimeStart string `json:"downtimeStart,omitempty"`
}

const (
	StatusUp   = "up"
	StatusDown = "down"
)

// AlertKey is the composite tenant:monitor identity used for diffing and
// notification deduplication.
type AlertKey string

// Key derives the AlertKey for an item.
func Key(item AlertItem) AlertKey {
	return AlertKey(item.TenantName + ":" + item.MonitorName)
}

// DownSet is the set of AlertKeys currently reported down. It is rebuilt from
// scratch on every poll tick and never mutated in place.
type DownSet map[AlertKey]struct{}

// Contains reports set membership.
func (s DownSet) Contains(k AlertKey) bool {
	_, ok := s[k]
	return ok
}

// Delta is the result of comparing one poll's alerts against the previous
// down-set.
type Delta struct {
	NewlyDown DownSet
	Recovered DownSet
	Down      DownSet
}

// Diff reduces the current alert list to its down-set and computes the
// newly-down and recovered deltas against the previous snapshot. Pure
// function; the single previous snapshot is all the history there is, so
// flapping within one polling interval is not observable.
func Diff(previous DownSet, current []AlertItem) Delta {
	down := make(DownSet)
	for _, item := range current {
		if item.Status == StatusDown {
			down[Key(item)] = struct{}{}
		}
	}

	newlyDown := make(DownSet)
	for k := range down {
		if !previous.Contains(k) {
			newlyDown[k] = struct{}{}
		}
	}

	recovered := make(DownSet)
	for k := range previous {
		if !down.Contains(k) {
			recovered[k] = struct{}{}
		}
	}

	return Delta{NewlyDown: newlyDown, Recovered: recovered, Down: down}
}
