package inbox

import (
	"testing"
	"time"

	"github.com/goldbox/relay/pkg/models"
)

func TestAppendBackfillsMonotonicTimestamp(t *testing.T) {
	c := New(DefaultLimits())

	e1 := c.AppendChat("client-1", models.InboxEntry{Kind: models.EntryKindChat, Payload: map[string]any{"c": "hi"}})
	e2 := c.AppendChat("client-1", models.InboxEntry{Kind: models.EntryKindChat, Payload: map[string]any{"c": "again"}})

	if e1.Timestamp == 0 || e2.Timestamp <= e1.Timestamp {
		t.Fatalf("expected strictly increasing backfilled timestamps, got %d then %d", e1.Timestamp, e2.Timestamp)
	}
}

func TestAppendRejectsNonIncreasingExplicitTimestamp(t *testing.T) {
	c := New(DefaultLimits())

	c.AppendChat("client-1", models.InboxEntry{Timestamp: 1000, Kind: models.EntryKindChat})
	// A second entry explicitly stamped at or before the last one is bumped
	// forward so append order always equals timestamp order (spec.md §4.2).
	bumped := c.AppendChat("client-1", models.InboxEntry{Timestamp: 1000, Kind: models.EntryKindChat})
	if bumped.Timestamp <= 1000 {
		t.Fatalf("expected bumped timestamp > 1000, got %d", bumped.Timestamp)
	}
}

func TestSinceIsStrictlyGreaterThan(t *testing.T) {
	c := New(DefaultLimits())
	c.nowFunc = func() time.Time { return time.UnixMilli(2000) }
	c.AppendChat("client-1", models.InboxEntry{Timestamp: 1000, Kind: models.EntryKindChat})
	c.AppendRoll("client-1", models.InboxEntry{Timestamp: 1001, Kind: models.EntryKindDiceRoll})

	atBoundary := c.Since("client-1", 1000)
	if len(atBoundary) != 1 || atBoundary[0].Timestamp != 1001 {
		t.Fatalf("expected only the 1001 entry, got %#v", atBoundary)
	}

	beforeBoundary := c.Since("client-1", 999)
	if len(beforeBoundary) != 2 {
		t.Fatalf("expected both entries, got %#v", beforeBoundary)
	}
}

func TestRecentMergesChatAndRollByTimestamp(t *testing.T) {
	c := New(DefaultLimits())
	c.nowFunc = func() time.Time { return time.UnixMilli(2000) }
	c.AppendChat("client-1", models.InboxEntry{Timestamp: 1000, Kind: models.EntryKindChat})
	c.AppendRoll("client-1", models.InboxEntry{Timestamp: 1001, Kind: models.EntryKindDiceRoll})
	c.AppendChat("client-1", models.InboxEntry{Timestamp: 1002, Kind: models.EntryKindChat})

	recent := c.Recent("client-1", 2)
	if len(recent) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(recent))
	}
	if recent[0].Timestamp != 1001 || recent[1].Timestamp != 1002 {
		t.Fatalf("expected oldest-first order, got %#v", recent)
	}
}

func TestUpsertAndGetEncounter(t *testing.T) {
	c := New(DefaultLimits())
	c.UpsertEncounter("client-1", models.EncounterState{EncounterID: "enc-1", IsActive: true, Round: 1})

	got := c.GetEncounter("client-1", "enc-1")
	if got == nil || !got.IsActive {
		t.Fatalf("expected active encounter, got %#v", got)
	}

	c.UpsertEncounter("client-1", models.EncounterState{EncounterID: "enc-1", IsActive: false, Round: 2})
	got = c.GetEncounter("client-1", "enc-1")
	if got.IsActive || got.Round != 2 {
		t.Fatalf("expected upsert to replace, got %#v", got)
	}
}

func TestDeleteEncounterForceClearsCache(t *testing.T) {
	c := New(DefaultLimits())
	c.UpsertEncounter("client-1", models.EncounterState{EncounterID: "enc-1", IsActive: true})
	c.DeleteEncounter("client-1", "enc-1")

	if got := c.GetEncounter("client-1", "enc-1"); got != nil {
		t.Fatalf("expected encounter to be force-removed, got %#v", got)
	}
}

func TestGameDeltaSetAndClear(t *testing.T) {
	c := New(DefaultLimits())
	if c.GetGameDelta("client-1") != nil {
		t.Fatalf("expected no game delta initially")
	}

	c.SetGameDelta("client-1", models.GameDelta{Summary: "two combatants down"})
	if got := c.GetGameDelta("client-1"); got == nil || got.Summary != "two combatants down" {
		t.Fatalf("expected pending delta, got %#v", got)
	}

	c.ClearGameDelta("client-1")
	if c.GetGameDelta("client-1") != nil {
		t.Fatalf("expected delta cleared")
	}
}

func TestMaxItemsPerLogEvictsOldestFirst(t *testing.T) {
	c := New(Limits{MaxItemsPerLog: 3})
	for i := 0; i < 5; i++ {
		c.AppendChat("client-1", models.InboxEntry{Kind: models.EntryKindChat})
	}

	recent := c.Recent("client-1", 100)
	if len(recent) != 3 {
		t.Fatalf("expected cap of 3 entries, got %d", len(recent))
	}
}
