package extractor

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/robert-at-pretension-io/sv2chisel/internal/symtab"
	"github.com/robert-at-pretension-io/sv2chisel/internal/svparse"
	"github.com/robert-at-pretension-io/sv2chisel/internal/syntax"
)

func extract(t *testing.T, src string, defines map[string]string) *symtab.Table {
	t.Helper()
	tree, err := svparse.New().ParseSource("test.sv", []byte(src), defines, nil)
	require.NoError(t, err)
	return New().Extract(tree)
}

func onlyPort(t *testing.T, tbl *symtab.Table) symtab.Port {
	t.Helper()
	require.Len(t, tbl.Modules, 1)
	require.Len(t, tbl.Modules[0].Ports, 1)
	return tbl.Modules[0].Ports[0]
}

func TestScalarPort(t *testing.T) {
	p := onlyPort(t, extract(t, "module m(input clk);\nendmodule\n", nil))
	require.Equal(t, symtab.Port{Name: "clk", Direction: "input", Type: "wire", Width: symtab.Bits(1)}, p)
}

func TestWidths(t *testing.T) {
	tests := []struct {
		name  string
		src   string
		width symtab.Width
		expr  string
	}{
		{"literal", "module m(input [7:0] d); endmodule", symtab.Bits(8), "[7:0]"},
		{"swapped bounds", "module m(input [0:7] d); endmodule", symtab.Bits(8), "[0:7]"},
		{"n minus one", "module m(input [16-1:0] d); endmodule", symtab.Bits(16), "[16-1:0]"},
		{"macro", "`define WIDTH 8\nmodule m(input [`WIDTH-1:0] d); endmodule", symtab.Bits(8), "[WIDTH-1:0]"},
		{"macro of macro", "`define W 4\n`define W2 (`W*2)\nmodule m(input [`W2-1:0] d); endmodule", symtab.Bits(8), "[W2-1:0]"},
		{"clog2", "`define DEPTH 16\nmodule m(input [$clog2(`DEPTH)-1:0] a); endmodule", symtab.Bits(4), "[$clog2(DEPTH)-1:0]"},
		{"power", "module m(input [2**4-1:0] a); endmodule", symtab.Bits(16), "[2**4-1:0]"},
		{"sized literal", "module m(input [8'h0F:0] a); endmodule", symtab.Bits(16), "[8'h0F:0]"},
		{"dont care literal", "module m(input [4'bxxz0:0] a); endmodule", symtab.Symbolic("[4'bxxz0:0]"), "[4'bxxz0:0]"},
		{"parameter", "module m #(parameter N = 4)(input [N-1:0] a); endmodule", symtab.Symbolic("[N-1:0]"), "[N-1:0]"},
		{"single index", "module m(input [3] a); endmodule", symtab.Symbolic("[3]"), "[3]"},
		{"first packed dimension only", "module m(input [3:0][7:0] a); endmodule", symtab.Bits(4), "[3:0]"},
		{"unpacked ignored", "module m(input [1:0] a [0:3]); endmodule", symtab.Bits(2), "[1:0]"},
		{"overflowing bounds", "module m(input [64'h7FFFFFFFFFFFFFFF:0] a); endmodule", symtab.Symbolic("[64'h7FFFFFFFFFFFFFFF:0]"), "[64'h7FFFFFFFFFFFFFFF:0]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := onlyPort(t, extract(t, tt.src, nil))
			require.Equal(t, tt.width, p.Width)
			require.Equal(t, tt.expr, p.Expression)
		})
	}
}

func TestGroupedDeclarationSharesWidth(t *testing.T) {
	tbl := extract(t, "module m(a, b);\n  input [7:0] a, b;\nendmodule\n", nil)
	require.Equal(t, []symtab.Port{
		{Name: "a", Direction: "input", Type: "wire", Width: symtab.Bits(8), Expression: "[7:0]"},
		{Name: "b", Direction: "input", Type: "wire", Width: symtab.Bits(8), Expression: "[7:0]"},
	}, tbl.Modules[0].Ports)
}

func TestGroupedTypes(t *testing.T) {
	src := `module m(q, r, s, t);
  output reg [3:0] q;
  inout wire r;
  input logic signed [1:0] s;
  input my_t t;
endmodule
`
	ports := extract(t, src, nil).Modules[0].Ports
	require.Len(t, ports, 4)
	require.Equal(t, "output", ports[0].Direction)
	require.Equal(t, "reg", ports[0].Type)
	require.Equal(t, symtab.Bits(4), ports[0].Width)
	require.Equal(t, "inout", ports[1].Direction)
	require.Equal(t, "wire", ports[1].Type)
	require.Equal(t, "logic", ports[2].Type)
	require.Equal(t, symtab.Bits(2), ports[2].Width)
	require.Equal(t, "unknown", ports[3].Type)
}

func TestDirectionInheritance(t *testing.T) {
	ports := extract(t, "module m(output a, b, input [1:0] c, d);\nendmodule\n", nil).Modules[0].Ports
	dirs := make([]string, len(ports))
	for i, p := range ports {
		dirs[i] = p.Direction
	}
	require.Equal(t, []string{"output", "output", "input", "input"}, dirs)
	require.Equal(t, "wire", ports[0].Type)
	require.Equal(t, "unknown", ports[1].Type, "an item with no header has no type")
	require.Equal(t, symtab.Bits(1), ports[3].Width, "only the direction is inherited")
}

func TestDirectionResetsPerModule(t *testing.T) {
	src := `module a(output x);
endmodule
module b(logic [3:0] y, input z);
endmodule
`
	tbl := extract(t, src, nil)
	require.Len(t, tbl.Modules, 2)
	y := tbl.Modules[1].Ports[0]
	require.Equal(t, "inout", y.Direction)
	require.Equal(t, "logic", y.Type)
	require.Equal(t, symtab.Bits(4), y.Width)
}

func TestVariablePortHeaderIsWire(t *testing.T) {
	p := onlyPort(t, extract(t, "module m(input var logic [2:0] v);\nendmodule\n", nil))
	require.Equal(t, "wire", p.Type)
	require.Equal(t, symtab.Bits(3), p.Width)
}

func TestEscapedIdentifiers(t *testing.T) {
	tbl := extract(t, "module \\x/../../../evil (input \\a+b , output q);\nendmodule\n", nil)
	require.Len(t, tbl.Modules, 1)
	require.Equal(t, "x/../../../evil", tbl.Modules[0].Name)
	require.Equal(t, "a+b", tbl.Modules[0].Ports[0].Name)
	require.Equal(t, "q", tbl.Modules[0].Ports[1].Name)
}

func TestMacroTextCommentsAreDropped(t *testing.T) {
	// Providers that keep the comment inside the macro text.
	src := []byte("`define W 4 // four\n")
	tree := &syntax.Tree{
		Path:   "c.sv",
		Source: src,
		Root: &syntax.Node{Kind: syntax.KindSourceFile, Span: syntax.Span{End: len(src)}, Children: []*syntax.Node{
			{Kind: syntax.KindMacroDefinition, Span: syntax.Span{End: len(src)}, Children: []*syntax.Node{
				{Kind: syntax.KindMacroName, Span: syntax.Span{Start: 8, End: 9}},
				{Kind: syntax.KindMacroText, Span: syntax.Span{Start: 10, End: 19}},
			}},
		}},
	}
	tbl := New().Extract(tree)
	require.Equal(t, []symtab.Define{{Name: "W", Value: "4", File: "c.sv"}}, tbl.Defines)

	require.Equal(t, "4", macroValue(" 4 /* four */"))
	require.Equal(t, "(A + 1)", macroValue("(A/* x */+ 1) // y"))
	require.Equal(t, "2", macroValue("2 /* open"))
}

func TestDefinesAreRecordedInOrder(t *testing.T) {
	src := "`define W 4\n`define W 8\nmodule m(input [`W-1:0] d);\nendmodule\n`define LATE 2\n"
	tbl := extract(t, src, nil)
	require.Equal(t, []symtab.Define{
		{Name: "W", Value: "4", File: "test.sv"},
		{Name: "W", Value: "8", File: "test.sv"},
		{Name: "LATE", Value: "2", File: "test.sv"},
	}, tbl.Defines)
	require.Equal(t, symtab.Bits(8), tbl.Modules[0].Ports[0].Width, "the latest definition wins")
}

func TestMacroDefinedAfterUseDoesNotResolve(t *testing.T) {
	tbl := extract(t, "module m(input [`LATE-1:0] d);\nendmodule\n`define LATE 4\n", nil)
	require.Equal(t, symtab.Symbolic("[LATE-1:0]"), tbl.Modules[0].Ports[0].Width)
}

func TestPredefinedMacrosSeedScopeOnly(t *testing.T) {
	tbl := extract(t, "module m(input [`W-1:0] d);\nendmodule\n", map[string]string{"W": "16"})
	require.Empty(t, tbl.Defines)
	require.Equal(t, symtab.Bits(16), tbl.Modules[0].Ports[0].Width)
}

func TestConditionalBranchSelectsWidth(t *testing.T) {
	src := "`ifdef WIDE\n`define W 32\n`else\n`define W 8\n`endif\nmodule m(output [`W-1:0] q);\nendmodule\n"
	require.Equal(t, symtab.Bits(8), onlyPort(t, extract(t, src, nil)).Width)
	require.Equal(t, symtab.Bits(32), onlyPort(t, extract(t, src, map[string]string{"WIDE": ""})).Width)
}

func TestMultipleModulesKeepTheirPorts(t *testing.T) {
	src := `module first(input a, output b);
endmodule
module second(c);
  inout c;
endmodule
`
	tbl := extract(t, src, nil)
	require.Len(t, tbl.Modules, 2)
	require.Equal(t, "first", tbl.Modules[0].Name)
	require.Equal(t, "test.sv", tbl.Modules[0].File)
	require.Len(t, tbl.Modules[0].Ports, 2)
	require.Equal(t, "second", tbl.Modules[1].Name)
	require.Equal(t, []symtab.Port{{Name: "c", Direction: "inout", Type: "wire", Width: symtab.Bits(1)}}, tbl.Modules[1].Ports)
}

func TestPortsOutsideModuleAreDropped(t *testing.T) {
	src := []byte("input [3:0] x")
	rng := &syntax.Node{Kind: syntax.KindPackedDimensionRange, Span: syntax.Span{Start: 6, End: 11}}
	tree := &syntax.Tree{
		Path:   "orphan.sv",
		Source: src,
		Root: &syntax.Node{Kind: syntax.KindSourceFile, Span: syntax.Span{End: len(src)}, Children: []*syntax.Node{
			{Kind: syntax.KindAnsiPortDeclaration, Span: syntax.Span{End: len(src)}, Children: []*syntax.Node{
				{Kind: syntax.KindPortDirection, Span: syntax.Span{Start: 0, End: 5}},
				rng,
				{Kind: syntax.KindPortIdentifier, Span: syntax.Span{Start: 12, End: 13}},
			}},
		}},
	}
	tbl := New().Extract(tree)
	require.Empty(t, tbl.Modules)
	require.Zero(t, tbl.PortCount())
}

func TestUnknownConstructsAreIgnored(t *testing.T) {
	src := `module m #(parameter int N = 8) (input clk);
  localparam M = N * 2;
  wire [M-1:0] bus;
  sub #(.W(M)) u_sub (.clk(clk));
  generate if (N > 4) begin : g
    assign bus = '0;
  end endgenerate
endmodule
`
	p := onlyPort(t, extract(t, src, nil))
	require.Equal(t, "clk", p.Name)
}

func TestEmptyTree(t *testing.T) {
	tbl := New().Extract(&syntax.Tree{Path: "empty.sv"})
	require.Empty(t, tbl.Modules)
	require.Empty(t, tbl.Defines)
}
