package models

import "testing"

func TestSettings_ResolveFamily_ExplicitOverridesCombatDetection(t *testing.T) {
	settings := DefaultSettings()
	settings.ChatProcessingMode = ChatProcessingGeneral
	family := settings.ResolveFamily(true)
	if family.Provider != settings.General.Provider {
		t.Fatalf("expected explicit general setting to win over in-combat detection, got %+v", family)
	}
}

func TestSettings_ResolveFamily_FallsBackToDetectionWhenUnset(t *testing.T) {
	settings := DefaultSettings()
	settings.ChatProcessingMode = ""
	family := settings.ResolveFamily(true)
	if family.Provider != settings.Tactical.Provider {
		t.Fatalf("expected in-combat detection to select tactical family, got %+v", family)
	}
	family = settings.ResolveFamily(false)
	if family.Provider != settings.General.Provider {
		t.Fatalf("expected no-combat detection to select general family, got %+v", family)
	}
}
