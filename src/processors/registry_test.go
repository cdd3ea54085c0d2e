package processors

import (
	"strings"
	"testing"
)

func TestRegistryPointerIdentity(t *testing.T) {
	r := NewAccountRegistry()
	a := r.GetOrCreate(me)
	b := r.GetOrCreate(strings.ToUpper(me[2:])) // same address, different casing, no 0x
	c := r.GetOrCreate("0x" + strings.ToUpper(me[2:]))

	if a != c {
		t.Error("same hex address with different casing produced distinct records")
	}
	if a == b {
		t.Error("non-hex string should not normalize to the hex address")
	}
}

func TestRegistryTracking(t *testing.T) {
	r := NewAccountRegistry()
	r.MarkAdded(me, "main wallet")

	if !r.IsTracked(me) {
		t.Error("added address not tracked")
	}
	if r.IsTracked(stranger) {
		t.Error("never-seen address reported as tracked")
	}
	// IsTracked must not create records as a side effect.
	if len(r.UnknownAccounts()) != 0 {
		t.Error("IsTracked created an account record")
	}

	acc := r.GetOrCreate(me)
	if acc.Label != "main wallet" || !acc.Added {
		t.Errorf("account = %+v, want labeled and added", acc)
	}
}

func TestRegistryRetroactiveHide(t *testing.T) {
	r := NewAccountRegistry()
	acc := r.GetOrCreate(stranger)
	if r.Hidden(acc) {
		t.Fatal("fresh account already hidden")
	}
	r.Hide(stranger)
	// The hidden set lives on the registry, so the existing record reference
	// observes the change.
	if !r.Hidden(acc) {
		t.Error("existing reference does not observe later Hide")
	}
	if !r.HiddenAddress(stranger) {
		t.Error("HiddenAddress disagrees with Hidden")
	}
}

func TestRegistryUnknownAccounts(t *testing.T) {
	r := NewAccountRegistry()
	r.MarkAdded(me, "me")
	r.GetOrCreate(stranger)
	r.GetOrCreate(exchange)
	r.SetLabel(exchange, "big exchange")

	unknown := r.UnknownAccounts()
	if len(unknown) != 1 || unknown[0].Address != stranger {
		t.Fatalf("UnknownAccounts = %+v, want only %s", unknown, stranger)
	}

	tracked := r.TrackedAccounts()
	if len(tracked) != 1 || tracked[0].Address != me {
		t.Fatalf("TrackedAccounts = %+v, want only %s", tracked, me)
	}
}
