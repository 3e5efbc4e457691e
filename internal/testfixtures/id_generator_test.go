package testfixtures

import "testing"

func TestIDGeneratorProducesSequentialIDs(t *testing.T) {
	gen := NewIDGenerator("conflict")

	first := gen.Next()
	second := gen.Next()

	if first != "conflict-001" || second != "conflict-002" {
		t.Fatalf("unexpected identifiers: %q, %q", first, second)
	}
	if gen.Issued() != 2 {
		t.Fatalf("expected 2 issued identifiers, got %d", gen.Issued())
	}
}

func TestIDGeneratorDefaultsPrefix(t *testing.T) {
	if next := NewIDGenerator("").Next(); next != "id-001" {
		t.Fatalf("expected id-001, got %q", next)
	}
}

func TestIDGeneratorNilNextFunc(t *testing.T) {
	var gen *IDGenerator
	if got := gen.NextFunc()(); got != "" {
		t.Fatalf("expected empty identifier from nil generator, got %q", got)
	}
}
