package id_test

import (
	"strings"
	"testing"

	"github.com/xraph/charter/id"
)

func TestConstructors(t *testing.T) {
	tests := []struct {
		name   string
		newFn  func() id.ID
		prefix string
	}{
		{"PolicyID", id.NewPolicyID, "pol_"},
		{"AuditID", id.NewAuditID, "paud_"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.newFn().String(); !strings.HasPrefix(got, tt.prefix) {
				t.Errorf("expected prefix %q, got %q", tt.prefix, got)
			}
		})
	}
}

func TestParsePolicyID(t *testing.T) {
	orig := id.NewPolicyID()
	parsed, err := id.ParsePolicyID(orig.String())
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if parsed.String() != orig.String() {
		t.Errorf("round-trip mismatch: %q != %q", parsed, orig)
	}

	if _, err := id.ParsePolicyID(id.NewAuditID().String()); err == nil {
		t.Error("expected ParsePolicyID to reject a paud_ id")
	}
	if _, err := id.Parse(""); err == nil {
		t.Error("expected error for empty string")
	}
	if _, err := id.Parse("return"); err == nil {
		t.Error("expected error for a policy type name")
	}
}

func TestLooksLike(t *testing.T) {
	if !id.LooksLike(id.NewPolicyID().String(), id.PrefixPolicy) {
		t.Error("expected policy id to look like a policy id")
	}
	if id.LooksLike("shipping", id.PrefixPolicy) {
		t.Error("type name must not look like a policy id")
	}
}

func TestNilID(t *testing.T) {
	var i id.ID
	if !i.IsNil() || i.String() != "" || i.Prefix() != "" {
		t.Errorf("zero ID should be nil, got %q", i.String())
	}
	v, err := i.Value()
	if err != nil || v != nil {
		t.Errorf("Value() of nil = %v, %v", v, err)
	}
}

func TestValueScan(t *testing.T) {
	orig := id.NewPolicyID()
	val, err := orig.Value()
	if err != nil {
		t.Fatalf("Value: %v", err)
	}
	var scanned id.ID
	if err := scanned.Scan(val); err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if scanned.String() != orig.String() {
		t.Errorf("mismatch: %q != %q", scanned, orig)
	}

	var fromBytes id.ID
	if err := fromBytes.Scan([]byte(orig.String())); err != nil {
		t.Fatalf("Scan bytes: %v", err)
	}
	if err := fromBytes.Scan(42); err == nil {
		t.Error("expected error scanning an int")
	}
}
