package simstats

import (
	"bytes"
	"strings"
	"testing"

	"github.com/kvsim/kvsim/backend"
)

func TestWasteOrSavedWaste(t *testing.T) {
	label, bytes, ratio := wasteOrSaved(backend.Stats{LogicalBytes: 100, PhysicalBytes: 150})
	if label != "waste" {
		t.Fatalf("label = %q, want waste", label)
	}
	if bytes != 50 {
		t.Fatalf("bytes = %d, want 50", bytes)
	}
	if got, want := ratio, 50.0/150.0; got != want {
		t.Fatalf("ratio = %v, want %v", got, want)
	}
}

func TestWasteOrSavedSaved(t *testing.T) {
	label, bytes, ratio := wasteOrSaved(backend.Stats{LogicalBytes: 150, PhysicalBytes: 100})
	if label != "saved" {
		t.Fatalf("label = %q, want saved", label)
	}
	if bytes != 50 {
		t.Fatalf("bytes = %d, want 50", bytes)
	}
	if got, want := ratio, 50.0/150.0; got != want {
		t.Fatalf("ratio = %v, want %v", got, want)
	}
}

func TestWasteOrSavedExactFit(t *testing.T) {
	label, bytes, _ := wasteOrSaved(backend.Stats{LogicalBytes: 100, PhysicalBytes: 100})
	if label != "saved" || bytes != 0 {
		t.Fatalf("exact fit should report saved 0, got %q %d", label, bytes)
	}
}

func TestPrintRendersBothBackends(t *testing.T) {
	var buf bytes.Buffer
	Print(&buf, []Report{
		{Name: "Monolithic", Stats: backend.Stats{LogicalBytes: 100, PhysicalBytes: 200}},
		{Name: "Paged+Prefix", Stats: backend.Stats{LogicalBytes: 200, PhysicalBytes: 100}},
	})

	out := buf.String()
	if !strings.Contains(out, "Monolithic") || !strings.Contains(out, "Paged+Prefix") {
		t.Errorf("output missing backend names: %s", out)
	}
	if !strings.Contains(out, "waste") || !strings.Contains(out, "saved") {
		t.Errorf("output missing waste/saved labels: %s", out)
	}
}
