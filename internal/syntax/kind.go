// Package syntax defines the provider-neutral syntax tree the extractor walks.
//
// Providers (the built-in header parser, tree-sitter) classify their grammar
// nodes into the closed set of Kind tags below. Anything a provider cannot
// classify is KindUnknown and is walked through but otherwise ignored.
package syntax

// Kind classifies a node by the grammar construct it represents.
type Kind int

const (
	KindUnknown Kind = iota
	KindSourceFile

	// Preprocessor
	KindMacroDefinition
	KindMacroName
	KindMacroText
	KindMacroUsage

	// Modules
	KindModuleDeclaration
	KindModuleIdentifier

	// Grouped (non-ANSI) port declarations
	KindPortDeclaration
	KindInputDeclaration
	KindOutputDeclaration
	KindInoutDeclaration
	KindListOfPortIdentifiers

	// Per-item (ANSI) port declarations
	KindAnsiPortDeclaration
	KindPortDirection
	KindVariablePortHeader

	// Shared by both port forms
	KindPortIdentifier
	KindDataType
	KindImplicitDataType
	KindTypeKeyword
	KindPackedDimensionRange
	KindUnpackedDimension

	// Tokens
	KindIdentifier
	KindSymbol
	KindNumber
)

var kindNames = [...]string{
	KindUnknown:               "unknown",
	KindSourceFile:            "source_file",
	KindMacroDefinition:       "macro_definition",
	KindMacroName:             "macro_name",
	KindMacroText:             "macro_text",
	KindMacroUsage:            "macro_usage",
	KindModuleDeclaration:     "module_declaration",
	KindModuleIdentifier:      "module_identifier",
	KindPortDeclaration:       "port_declaration",
	KindInputDeclaration:      "input_declaration",
	KindOutputDeclaration:     "output_declaration",
	KindInoutDeclaration:      "inout_declaration",
	KindListOfPortIdentifiers: "list_of_port_identifiers",
	KindAnsiPortDeclaration:   "ansi_port_declaration",
	KindPortDirection:         "port_direction",
	KindVariablePortHeader:    "variable_port_header",
	KindPortIdentifier:        "port_identifier",
	KindDataType:              "data_type",
	KindImplicitDataType:      "implicit_data_type",
	KindTypeKeyword:           "type_keyword",
	KindPackedDimensionRange:  "packed_dimension_range",
	KindUnpackedDimension:     "unpacked_dimension",
	KindIdentifier:            "identifier",
	KindSymbol:                "symbol",
	KindNumber:                "number",
}

func (k Kind) String() string {
	if k >= 0 && int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// IsToken reports whether nodes of this kind carry expression text.
func (k Kind) IsToken() bool {
	return k == KindIdentifier || k == KindSymbol || k == KindNumber
}
