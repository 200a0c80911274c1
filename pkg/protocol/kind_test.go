package protocol

import "testing"

func TestKindNamesRoundTrip(t *testing.T) {
	seen := make(map[string]Kind)
	for _, k := range Kinds() {
		name := k.String()
		if name == "" || name == "unknown" {
			t.Fatalf("kind %d has no wire name", k)
		}
		if prev, dup := seen[name]; dup {
			t.Fatalf("kinds %d and %d share name %q", prev, k, name)
		}
		seen[name] = k

		got, ok := ParseKind(name)
		if !ok || got != k {
			t.Fatalf("ParseKind(%q)=(%v,%v), want (%v,true)", name, got, ok, k)
		}
	}
	if len(seen) != int(kindCount)-1 {
		t.Fatalf("Kinds() returned %d kinds, want %d", len(seen), kindCount-1)
	}
}

func TestParseKindUnknown(t *testing.T) {
	for _, name := range []string{"", "unknown", "card_teleported", "PING"} {
		k, ok := ParseKind(name)
		if ok || k != KindUnknown {
			t.Errorf("ParseKind(%q)=(%v,%v), want (KindUnknown,false)", name, k, ok)
		}
	}
}

func TestKindLocal(t *testing.T) {
	local := map[Kind]bool{
		KindConnect:    true,
		KindDisconnect: true,
		KindReconnect:  true,
		KindError:      true,
	}
	for _, k := range Kinds() {
		if k.Local() != local[k] {
			t.Errorf("%s.Local()=%v, want %v", k, k.Local(), local[k])
		}
	}
}

func TestKindOutOfRange(t *testing.T) {
	k := Kind(250)
	if k.Known() {
		t.Fatal("Kind(250).Known()=true")
	}
	if k.String() != "unknown" {
		t.Fatalf("Kind(250).String()=%q, want unknown", k.String())
	}
	if _, err := k.MarshalText(); err != ErrUnknownKind {
		t.Fatalf("MarshalText err=%v, want ErrUnknownKind", err)
	}
}
