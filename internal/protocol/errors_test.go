package protocol

import "testing"

func TestIsKnownCode(t *testing.T) {
	cases := []string{
		"",
		ErrProtoBadRequest,
		ErrBadRequest,
		ErrUnknownRecord,
		ErrInvalidTarget,
		ErrNoResource,
		ErrInternal,
	}
	for _, c := range cases {
		if !IsKnownCode(c) {
			t.Fatalf("expected known code: %q", c)
		}
	}
	if IsKnownCode("E_NOT_DEFINED") {
		t.Fatalf("expected unknown code rejected")
	}
}

func TestIsAction(t *testing.T) {
	for _, typ := range []string{TypeMove, TypeHold, TypeInteract, TypeBreak} {
		if !IsAction(typ) {
			t.Fatalf("%s should route to the world", typ)
		}
	}
	for _, typ := range []string{TypeHello, TypeWelcome, TypePlaySound, ""} {
		if IsAction(typ) {
			t.Fatalf("%q should not route to the world", typ)
		}
	}
}
