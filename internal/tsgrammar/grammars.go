// Package tsgrammar is the single source of truth for which tree-sitter
// grammar backs each language tag, and which node kinds in that grammar
// count as chunk-worthy, definition-worthy, call-worthy, or scope-worthy.
// internal/chunk and internal/callgraph both parse with Parse and consult
// these tables, so the two components never disagree about node kinds for
// the same language.
package tsgrammar

import (
	"context"
	"fmt"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/c"
	"github.com/smacker/go-tree-sitter/cpp"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/java"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/smacker/go-tree-sitter/ruby"
	"github.com/smacker/go-tree-sitter/rust"
	"github.com/smacker/go-tree-sitter/typescript/typescript"

	"github.com/srag-go/srag/internal/langtag"
)

// Grammar pairs a tree-sitter language with the node-kind tables the
// chunker and call-graph extractor need.
type Grammar struct {
	Language *sitter.Language

	// Extractable: chunk-worthy node kinds (spec.md §4.1).
	Extractable map[string]bool
	// IdentifierLike: node kinds consulted by the bounded symbol search.
	IdentifierLike map[string]bool

	// Definitions: node kinds that mine a Definition (spec.md §4.2).
	Definitions map[string]bool
	// DefinitionKindOf maps a matched node kind to a model.DefinitionKind
	// label; see internal/model.
	DefinitionKindOf map[string]string
	// Calls: node kinds that mine a FunctionCall.
	Calls map[string]bool
	// Scopes: node kinds that refresh the "current scope" during the walk
	// (classes/impls/modules/interfaces/namespaces).
	Scopes map[string]bool
}

var table = map[langtag.Tag]Grammar{
	langtag.Go: {
		Language: golang.GetLanguage(),
		Extractable: set(
			"function_declaration", "method_declaration", "type_declaration",
			"const_declaration", "var_declaration",
		),
		IdentifierLike: set("identifier", "field_identifier", "type_identifier"),
		Definitions:    set("function_declaration", "method_declaration", "type_declaration"),
		DefinitionKindOf: map[string]string{
			"function_declaration": "function",
			"method_declaration":   "method",
			"type_declaration":     "struct",
		},
		Calls:  set("call_expression"),
		Scopes: set("type_declaration"),
	},
	langtag.Python: {
		Language: python.GetLanguage(),
		Extractable: set(
			"function_definition", "class_definition", "decorated_definition",
		),
		IdentifierLike: set("identifier"),
		Definitions:    set("function_definition", "class_definition"),
		DefinitionKindOf: map[string]string{
			"function_definition": "function",
			"class_definition":    "class",
		},
		Calls:  set("call"),
		Scopes: set("class_definition"),
	},
	langtag.JavaScript: {
		Language: javascript.GetLanguage(),
		Extractable: set(
			"function_declaration", "class_declaration", "method_definition",
			"lexical_declaration", "export_statement", "arrow_function",
		),
		IdentifierLike: set("identifier", "property_identifier"),
		Definitions:    set("function_declaration", "class_declaration", "method_definition"),
		DefinitionKindOf: map[string]string{
			"function_declaration": "function",
			"class_declaration":    "class",
			"method_definition":    "method",
		},
		Calls:  set("call_expression"),
		Scopes: set("class_declaration"),
	},
	langtag.TypeScript: {
		Language: typescript.GetLanguage(),
		Extractable: set(
			"function_declaration", "class_declaration", "method_definition",
			"interface_declaration", "type_alias_declaration",
			"lexical_declaration", "export_statement", "arrow_function",
			"enum_declaration",
		),
		IdentifierLike: set("identifier", "type_identifier", "property_identifier"),
		Definitions: set(
			"function_declaration", "class_declaration", "method_definition",
			"interface_declaration", "enum_declaration",
		),
		DefinitionKindOf: map[string]string{
			"function_declaration":  "function",
			"class_declaration":     "class",
			"method_definition":     "method",
			"interface_declaration": "interface",
			"enum_declaration":      "enum",
		},
		Calls:  set("call_expression"),
		Scopes: set("class_declaration", "interface_declaration"),
	},
	langtag.Rust: {
		Language: rust.GetLanguage(),
		Extractable: set(
			"function_item", "struct_item", "enum_item", "trait_item",
			"impl_item", "mod_item", "macro_definition", "const_item",
		),
		IdentifierLike: set("identifier", "type_identifier", "field_identifier"),
		Definitions: set(
			"function_item", "struct_item", "enum_item", "trait_item", "mod_item",
		),
		DefinitionKindOf: map[string]string{
			"function_item": "function",
			"struct_item":   "struct",
			"enum_item":     "enum",
			"trait_item":    "trait",
			"mod_item":      "module",
		},
		Calls:  set("call_expression"),
		Scopes: set("impl_item", "mod_item", "trait_item"),
	},
	langtag.C: {
		Language: c.GetLanguage(),
		Extractable: set(
			"function_definition", "struct_specifier", "enum_specifier",
			"type_definition",
		),
		IdentifierLike: set("identifier", "field_identifier", "type_identifier"),
		Definitions:    set("function_definition", "struct_specifier", "enum_specifier"),
		DefinitionKindOf: map[string]string{
			"function_definition": "function",
			"struct_specifier":    "struct",
			"enum_specifier":      "enum",
		},
		Calls:  set("call_expression"),
		Scopes: set("struct_specifier"),
	},
	langtag.Cpp: {
		Language: cpp.GetLanguage(),
		Extractable: set(
			"function_definition", "class_specifier", "struct_specifier",
			"enum_specifier", "namespace_definition", "template_declaration",
		),
		IdentifierLike: set("identifier", "field_identifier", "type_identifier"),
		Definitions: set(
			"function_definition", "class_specifier", "struct_specifier",
			"enum_specifier", "namespace_definition",
		),
		DefinitionKindOf: map[string]string{
			"function_definition":  "function",
			"class_specifier":      "class",
			"struct_specifier":     "struct",
			"enum_specifier":       "enum",
			"namespace_definition": "module",
		},
		Calls:  set("call_expression"),
		Scopes: set("class_specifier", "struct_specifier", "namespace_definition"),
	},
	langtag.Java: {
		Language: java.GetLanguage(),
		Extractable: set(
			"method_declaration", "class_declaration", "interface_declaration",
			"enum_declaration", "constructor_declaration",
		),
		IdentifierLike: set("identifier"),
		Definitions: set(
			"method_declaration", "class_declaration", "interface_declaration",
			"enum_declaration", "constructor_declaration",
		),
		DefinitionKindOf: map[string]string{
			"method_declaration":      "method",
			"class_declaration":       "class",
			"interface_declaration":   "interface",
			"enum_declaration":        "enum",
			"constructor_declaration": "constructor",
		},
		Calls:  set("method_invocation"),
		Scopes: set("class_declaration", "interface_declaration"),
	},
	langtag.Ruby: {
		Language: ruby.GetLanguage(),
		Extractable: set(
			"method", "class", "module", "singleton_method",
		),
		IdentifierLike: set("identifier", "constant"),
		Definitions:    set("method", "class", "module", "singleton_method"),
		DefinitionKindOf: map[string]string{
			"method":           "method",
			"class":            "class",
			"module":           "module",
			"singleton_method": "method",
		},
		Calls:  set("call", "method_call"),
		Scopes: set("class", "module"),
	},
}

func set(items ...string) map[string]bool {
	m := make(map[string]bool, len(items))
	for _, it := range items {
		m[it] = true
	}
	return m
}

// For returns the grammar configuration for tag, if any.
func For(tag langtag.Tag) (Grammar, bool) {
	g, ok := table[tag]
	return g, ok
}

// Parse parses src with tag's grammar and returns the root node. Callers own
// the returned *sitter.Tree and must not use the node after the tree's
// backing source slice is mutated.
func Parse(ctx context.Context, src []byte, tag langtag.Tag) (*sitter.Tree, error) {
	g, ok := For(tag)
	if !ok {
		return nil, fmt.Errorf("tsgrammar: no grammar for %s", tag)
	}
	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(g.Language)

	tree, err := parser.ParseCtx(ctx, nil, src)
	if err != nil {
		return nil, fmt.Errorf("tsgrammar: parse failed: %w", err)
	}
	if tree == nil {
		return nil, fmt.Errorf("tsgrammar: nil tree")
	}
	return tree, nil
}
