package facts

import (
	"testing"

	"github.com/robert-at-pretension-io/sv2chisel/internal/symtab"
)

func TestComputeDeltaAddsAndRemoves(t *testing.T) {
	prev := BuildTables(sample())

	changed := sample()
	changed.Modules[0].Ports[0].Width = symtab.Bits(2)
	next := BuildTables(changed)

	delta := ComputeDelta(prev, next)
	if len(delta.Added.Ports) != 1 || delta.Added.Ports[0].Width != "2" {
		t.Fatalf("expected widened clk added, got %+v", delta.Added.Ports)
	}
	if len(delta.Removed.Ports) != 1 || delta.Removed.Ports[0].Width != "1" {
		t.Fatalf("expected old clk removed, got %+v", delta.Removed.Ports)
	}
	if len(delta.Added.Modules) != 0 || len(delta.Removed.Files) != 0 {
		t.Fatalf("unexpected module/file changes: %+v", delta)
	}
}

func TestComputeDeltaIdentical(t *testing.T) {
	tables := BuildTables(sample())
	if d := ComputeDelta(tables, tables); !d.Empty() {
		t.Fatalf("expected empty delta, got %+v", d)
	}
}
