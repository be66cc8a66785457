// Package inbox implements the MessageCollector (C2): a per-client ring of
// chat messages, dice rolls, world snapshots, and combat-encounter states,
// with delta queries by timestamp. The locking and deep-clone-on-read
// discipline is generalized from one map-of-sessions to four per-client
// logs.
package inbox

import (
	"sort"
	"sync"
	"time"

	"github.com/goldbox/relay/pkg/models"
)

// Limits bound per-client storage: a fixed item cap and a retention window,
// both enforced oldest-first on every append so Append never blocks and
// never grows without bound.
type Limits struct {
	MaxItemsPerLog int
	RetentionWindow time.Duration
}

// DefaultLimits matches the "e.g. 100 items, 24h" figures spec.md §4.2
// gives as acceptable bounds.
func DefaultLimits() Limits {
	return Limits{MaxItemsPerLog: 100, RetentionWindow: 24 * time.Hour}
}

type clientInbox struct {
	chatLog   []models.InboxEntry
	rollLog   []models.InboxEntry
	world     *models.WorldSnapshot
	encounters map[models.EncounterId]*models.EncounterState
	gameDelta *models.GameDelta
	lastTimestamp int64
}

// Collector is the MessageCollector (C2). One instance serves all clients;
// each client's state is an independent partition behind the same lock
// (a single RWMutex, since the expected client count does not warrant
// per-client locks).
type Collector struct {
	mu      sync.RWMutex
	inboxes map[models.ClientId]*clientInbox
	limits  Limits
	nowFunc func() time.Time
}

// New constructs a Collector with the given bounds. nowFunc defaults to
// time.Now; tests may override it for deterministic retention checks.
func New(limits Limits) *Collector {
	return &Collector{
		inboxes: make(map[models.ClientId]*clientInbox),
		limits:  limits,
		nowFunc: time.Now,
	}
}

func (c *Collector) inboxFor(clientID models.ClientId) *clientInbox {
	ib, ok := c.inboxes[clientID]
	if !ok {
		ib = &clientInbox{encounters: make(map[models.EncounterId]*models.EncounterState)}
		c.inboxes[clientID] = ib
	}
	return ib
}

// AppendChat appends to the chat log, backfilling a monotonic timestamp
// when the entry lacks one.
func (c *Collector) AppendChat(clientID models.ClientId, entry models.InboxEntry) models.InboxEntry {
	return c.append(clientID, entry, func(ib *clientInbox) *[]models.InboxEntry { return &ib.chatLog })
}

// AppendRoll appends to the roll log, used when dice rolls arrive on their
// own channel rather than as chat entries.
func (c *Collector) AppendRoll(clientID models.ClientId, entry models.InboxEntry) models.InboxEntry {
	return c.append(clientID, entry, func(ib *clientInbox) *[]models.InboxEntry { return &ib.rollLog })
}

func (c *Collector) append(clientID models.ClientId, entry models.InboxEntry, logOf func(*clientInbox) *[]models.InboxEntry) models.InboxEntry {
	c.mu.Lock()
	defer c.mu.Unlock()

	ib := c.inboxFor(clientID)
	if entry.Timestamp == 0 {
		entry.Timestamp = c.nowFunc().UnixMilli()
	}
	if entry.Timestamp <= ib.lastTimestamp {
		entry.Timestamp = ib.lastTimestamp + 1
	}
	ib.lastTimestamp = entry.Timestamp

	log := logOf(ib)
	*log = append(*log, entry.Clone())
	*log = c.trim(*log)

	return entry
}

// trim enforces the item cap and retention window, oldest-first.
func (c *Collector) trim(log []models.InboxEntry) []models.InboxEntry {
	if c.limits.RetentionWindow > 0 {
		cutoff := c.nowFunc().Add(-c.limits.RetentionWindow).UnixMilli()
		i := 0
		for i < len(log) && log[i].Timestamp < cutoff {
			i++
		}
		log = log[i:]
	}
	if c.limits.MaxItemsPerLog > 0 && len(log) > c.limits.MaxItemsPerLog {
		log = log[len(log)-c.limits.MaxItemsPerLog:]
	}
	return log
}

// Recent returns the last n entries of chat ∪ rolls merged by timestamp,
// oldest first. Used for non-session "cold" contexts.
func (c *Collector) Recent(clientID models.ClientId, n int) []models.InboxEntry {
	c.mu.RLock()
	defer c.mu.RUnlock()

	ib, ok := c.inboxes[clientID]
	if !ok {
		return nil
	}
	merged := mergeByTimestamp(ib.chatLog, ib.rollLog)
	if n > 0 && len(merged) > n {
		merged = merged[len(merged)-n:]
	}
	return cloneEntries(merged)
}

// Since returns all chat ∪ roll entries with timestamp strictly greater
// than the argument, in chronological order. Equality is deliberately not
// "new": an assistant message stored at timestamp T and a subsequent user
// message echoing T must not feed back as a new event (spec.md §4.2).
func (c *Collector) Since(clientID models.ClientId, timestamp int64) []models.InboxEntry {
	c.mu.RLock()
	defer c.mu.RUnlock()

	ib, ok := c.inboxes[clientID]
	if !ok {
		return nil
	}
	merged := mergeByTimestamp(ib.chatLog, ib.rollLog)
	out := merged[:0:0]
	for _, e := range merged {
		if e.Timestamp > timestamp {
			out = append(out, e)
		}
	}
	return cloneEntries(out)
}

func mergeByTimestamp(a, b []models.InboxEntry) []models.InboxEntry {
	merged := make([]models.InboxEntry, 0, len(a)+len(b))
	merged = append(merged, a...)
	merged = append(merged, b...)
	sort.SliceStable(merged, func(i, j int) bool { return merged[i].Timestamp < merged[j].Timestamp })
	return merged
}

func cloneEntries(entries []models.InboxEntry) []models.InboxEntry {
	out := make([]models.InboxEntry, len(entries))
	for i, e := range entries {
		out[i] = e.Clone()
	}
	return out
}

// SetWorld replaces the world snapshot wholesale. Only the ClientLink may
// call this; the interface boundary, not a comment, enforces that the
// inbox has a single writer for world state (spec.md §9).
func (c *Collector) SetWorld(clientID models.ClientId, snapshot models.WorldSnapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ib := c.inboxFor(clientID)
	clone := snapshot
	ib.world = &clone
}

// World returns the current world snapshot, or nil if none has been set.
func (c *Collector) World(clientID models.ClientId) *models.WorldSnapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ib, ok := c.inboxes[clientID]
	if !ok || ib.world == nil {
		return nil
	}
	clone := *ib.world
	return &clone
}

// UpsertEncounter inserts or replaces one encounter by id.
func (c *Collector) UpsertEncounter(clientID models.ClientId, encounter models.EncounterState) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ib := c.inboxFor(clientID)
	ib.encounters[encounter.EncounterID] = encounter.Clone()
}

// GetEncounter returns one encounter by id, or nil if absent.
func (c *Collector) GetEncounter(clientID models.ClientId, encounterID models.EncounterId) *models.EncounterState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ib, ok := c.inboxes[clientID]
	if !ok {
		return nil
	}
	return ib.encounters[encounterID].Clone()
}

// GetAllEncounters returns every tracked encounter for the client.
func (c *Collector) GetAllEncounters(clientID models.ClientId) []*models.EncounterState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ib, ok := c.inboxes[clientID]
	if !ok {
		return nil
	}
	out := make([]*models.EncounterState, 0, len(ib.encounters))
	for _, e := range ib.encounters {
		out = append(out, e.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EncounterID < out[j].EncounterID })
	return out
}

// DeleteEncounter force-removes an encounter from the cache, used by the
// delete_encounter tool's timeout-recovery path (spec.md §4.5 scenario D).
func (c *Collector) DeleteEncounter(clientID models.ClientId, encounterID models.EncounterId) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ib, ok := c.inboxes[clientID]
	if !ok {
		return
	}
	delete(ib.encounters, encounterID)
}

// SetGameDelta deposits a "changes since last turn" summary for the
// orchestrator to consume at the start of the next turn.
func (c *Collector) SetGameDelta(clientID models.ClientId, delta models.GameDelta) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ib := c.inboxFor(clientID)
	clone := delta
	ib.gameDelta = &clone
}

// GetGameDelta returns the pending game delta, if any, without clearing it.
func (c *Collector) GetGameDelta(clientID models.ClientId) *models.GameDelta {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ib, ok := c.inboxes[clientID]
	if !ok || ib.gameDelta == nil {
		return nil
	}
	clone := *ib.gameDelta
	return &clone
}

// ClearGameDelta drops the pending game delta.
func (c *Collector) ClearGameDelta(clientID models.ClientId) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if ib, ok := c.inboxes[clientID]; ok {
		ib.gameDelta = nil
	}
}

// Clear drops the entire inbox for a client, invoked by the ClientLink's
// grace-window cleanup after connection close.
func (c *Collector) Clear(clientID models.ClientId) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.inboxes, clientID)
}
