package toolexec

import (
	"sync"

	"github.com/goldbox/relay/pkg/models"
)

// toolStat is one tool name's running counters.
type toolStat struct {
	Calls    int
	Timeouts int
	Errors   int
}

// Metrics is a per-tool-name counter snapshot: calls, timeouts, and errors,
// exposing a read accessor for the (out-of-scope) admin surface to poll
// later.
type Metrics struct {
	mu    sync.Mutex
	stats map[models.ToolName]*toolStat
}

// NewMetrics constructs an empty metrics snapshot.
func NewMetrics() *Metrics {
	return &Metrics{stats: make(map[models.ToolName]*toolStat)}
}

func (m *Metrics) recordCall(name models.ToolName) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entry(name).Calls++
}

func (m *Metrics) recordTimeout(name models.ToolName) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entry(name).Timeouts++
}

func (m *Metrics) recordError(name models.ToolName) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entry(name).Errors++
}

func (m *Metrics) entry(name models.ToolName) *toolStat {
	s, ok := m.stats[name]
	if !ok {
		s = &toolStat{}
		m.stats[name] = s
	}
	return s
}

// Snapshot is the read-only view of one tool's counters.
type Snapshot struct {
	Tool     models.ToolName
	Calls    int
	Timeouts int
	Errors   int
}

// Snapshot returns a point-in-time copy of every tool's counters.
func (m *Metrics) Snapshot() []Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Snapshot, 0, len(m.stats))
	for name, s := range m.stats {
		out = append(out, Snapshot{Tool: name, Calls: s.Calls, Timeouts: s.Timeouts, Errors: s.Errors})
	}
	return out
}
