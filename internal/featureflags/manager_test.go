package featureflags

import (
	"fmt"
	"testing"
)

func TestEnabled_BooleanValues(t *testing.T) {
	m := NewManager("a=on,b=off,c=true,d=false,e=1,f=0")

	if !m.Enabled("a", "u1") || !m.Enabled("c", "u1") || !m.Enabled("e", "u1") {
		t.Fatal("expected enabled boolean values to evaluate true")
	}
	if m.Enabled("b", "u1") || m.Enabled("d", "u1") || m.Enabled("f", "u1") {
		t.Fatal("expected disabled boolean values to evaluate false")
	}
	if m.Enabled("missing", "u1") {
		t.Fatal("unknown flags are off")
	}
}

func TestEnabled_PercentageValues(t *testing.T) {
	m := NewManager("always=100%,never=0%,canary=25%,junk=abc%")

	if !m.Enabled("always", "u1") {
		t.Fatal("100% rollout should always be enabled")
	}
	if m.Enabled("never", "u1") || m.Enabled("junk", "u1") {
		t.Fatal("0% and malformed rollouts should be disabled")
	}

	first := m.Enabled("canary", "profile-42")
	for i := 0; i < 5; i++ {
		if got := m.Enabled("canary", "profile-42"); got != first {
			t.Fatal("rollout evaluation must be deterministic per subject")
		}
	}

	if m.Enabled("canary", "") {
		t.Fatal("percentage rollout requires a subject")
	}

	on := 0
	for i := 0; i < 1000; i++ {
		if m.Enabled("canary", fmt.Sprintf("subject-%d", i)) {
			on++
		}
	}
	if on < 100 || on > 400 {
		t.Fatalf("25%% rollout enabled %d of 1000 subjects", on)
	}
}

func TestNilManager(t *testing.T) {
	var m *Manager
	if m.Enabled(UniqueLikes, "p1") {
		t.Fatal("nil manager enables nothing")
	}
	if len(m.Raw()) != 0 || len(m.Snapshot("p1")) != 0 {
		t.Fatal("nil manager has no flags")
	}
}

func TestParseAndSnapshot(t *testing.T) {
	m := NewManager(" bad ,unique_likes=on, Avatar_Upload = 20% ,z=off ")

	raw := m.Raw()
	if len(raw) != 3 {
		t.Fatalf("expected 3 parsed flags, got %d", len(raw))
	}
	if raw[UniqueLikes] != "on" || raw[AvatarUpload] != "20%" || raw["z"] != "off" {
		t.Fatalf("unexpected raw flags: %#v", raw)
	}

	names := m.Names()
	if len(names) != 3 || names[0] != AvatarUpload {
		t.Fatalf("unexpected names: %v", names)
	}

	snap := m.Snapshot("identity-123")
	if len(snap) != 3 || !snap[UniqueLikes] || snap["z"] {
		t.Fatalf("unexpected snapshot: %#v", snap)
	}
}
