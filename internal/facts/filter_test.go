package facts

import "testing"

func TestFilterTablesByFiles(t *testing.T) {
	tables := BuildTables(sample())

	filtered := FilterTablesByFiles(tables, map[string]bool{"b.sv": true})
	if len(filtered.Files) != 1 || filtered.Files[0].Path != "b.sv" {
		t.Fatalf("expected only b.sv file row, got %#v", filtered.Files)
	}
	if len(filtered.Modules) != 1 || filtered.Modules[0].Name != "top" {
		t.Fatalf("expected only top, got %#v", filtered.Modules)
	}
	if len(filtered.Ports) != 2 || len(filtered.Defines) != 1 {
		t.Fatalf("expected b.sv ports and defines, got %#v", filtered)
	}
}

func TestFilterDeltaByFilesEmpty(t *testing.T) {
	tables := BuildTables(sample())
	delta := Delta{Added: tables, Removed: tables}

	filtered := FilterDeltaByFiles(delta, nil)
	if !filtered.Empty() {
		t.Fatalf("expected empty delta, got %#v", filtered)
	}
	if filtered.Added.Ports == nil {
		t.Fatalf("expected non-nil empty slices")
	}
}
