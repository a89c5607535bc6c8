// Package callgraph mines definitions and caller/callee edges from the same
// tree-sitter syntax trees the chunker parses (C4). Cross-file resolution
// of call sites to definitions is a separate, deferred pass that lives in
// internal/catalog (it needs a whole project's definitions, not a single
// chunk's tree).
package callgraph

import (
	"context"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/srag-go/srag/internal/langtag"
	"github.com/srag-go/srag/internal/model"
	"github.com/srag-go/srag/internal/tsgrammar"
)

// maxWalkDepth bounds the syntax-tree walk per spec.md §4.2.
const maxWalkDepth = 50

// maxSignatureLen is the cutoff beyond which a definition's signature is
// omitted rather than truncated.
const maxSignatureLen = 200

// Result holds the definitions and calls mined from one chunk of text.
type Result struct {
	Definitions []model.Definition
	Calls       []model.FunctionCall
}

// walkState tracks the "current" enclosing definition name/scope as the
// walk descends, refreshed whenever it enters a definition or scope node.
type walkState struct {
	callerName  string
	callerScope string
}

// Extract walks chunkText's syntax tree and mines Definitions and
// FunctionCalls. language must be one of the tree-sitter-backed tags
// (see langtag.HasSyntaxTree); other tags yield an empty Result, not an
// error, since call-graph extraction is best-effort by design.
func Extract(ctx context.Context, chunkText string, language langtag.Tag, fileID, chunkID int64) (Result, error) {
	if !langtag.HasSyntaxTree(language) {
		return Result{}, nil
	}
	grammar, ok := tsgrammar.For(language)
	if !ok {
		return Result{}, nil
	}

	src := []byte(chunkText)
	tree, err := tsgrammar.Parse(ctx, src, language)
	if err != nil {
		return Result{}, err
	}
	defer tree.Close()

	var result Result
	walk(tree.RootNode(), src, grammar, language, fileID, chunkID, walkState{}, 0, &result)
	return result, nil
}

func walk(n *sitter.Node, src []byte, grammar tsgrammar.Grammar, language langtag.Tag, fileID, chunkID int64, state walkState, depth int, result *Result) {
	if n == nil || depth > maxWalkDepth {
		return
	}

	nextState := state

	if grammar.Definitions[n.Type()] {
		name := findIdentifier(n, src, grammar, 0)
		if name != "" {
			kind := model.DefinitionKind(grammar.DefinitionKindOf[n.Type()])
			if kind == "" {
				kind = model.KindFunction
			}
			def := model.Definition{
				FileID:    fileID,
				ChunkID:   chunkID,
				Name:      name,
				Kind:      kind,
				Scope:     state.callerScope,
				Language:  language.String(),
				StartLine: int(n.StartPoint().Row) + 1,
				EndLine:   int(n.EndPoint().Row) + 1,
				Signature: extractSignature(n, src),
			}
			result.Definitions = append(result.Definitions, def)
			nextState.callerName = name
		}
	}

	if grammar.Scopes[n.Type()] {
		if name := findIdentifier(n, src, grammar, 0); name != "" {
			nextState.callerScope = name
		}
	}

	if grammar.Calls[n.Type()] {
		callee := extractCallee(n, src, grammar, language)
		if callee != "" {
			call := model.FunctionCall{
				FileID:      fileID,
				ChunkID:     chunkID,
				CallerName:  state.callerName,
				CallerScope: state.callerScope,
				CalleeName:  callee,
				Line:        int(n.StartPoint().Row) + 1,
				Language:    language.String(),
			}
			result.Calls = append(result.Calls, call)
		}
	}

	for i := 0; i < int(n.ChildCount()); i++ {
		walk(n.Child(i), src, grammar, language, fileID, chunkID, nextState, depth+1, result)
	}
}

// findIdentifier looks for the first identifier-like direct child, falling
// back to a shallow recursive search (bounded to avoid descending into a
// definition's body).
func findIdentifier(n *sitter.Node, src []byte, grammar tsgrammar.Grammar, depth int) string {
	if n == nil || depth > 3 {
		return ""
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		child := n.Child(i)
		if child != nil && grammar.IdentifierLike[child.Type()] {
			return string(src[child.StartByte():child.EndByte()])
		}
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		if name := findIdentifier(n.Child(i), src, grammar, depth+1); name != "" {
			return name
		}
	}
	return ""
}

// extractCallee extracts the callee name from a call-expression node: a
// direct identifier child, or the terminal identifier of a field/member/
// attribute/scoped expression (e.g. obj.method(), a::b::c()).
func extractCallee(n *sitter.Node, src []byte, grammar tsgrammar.Grammar, language langtag.Tag) string {
	if n.ChildCount() == 0 {
		return ""
	}
	// The callee is conventionally the first child of a call node (the
	// expression being invoked), before the argument list.
	callee := n.Child(0)
	if callee == nil {
		return ""
	}
	if grammar.IdentifierLike[callee.Type()] {
		return string(src[callee.StartByte():callee.EndByte()])
	}
	// Field/member/attribute/scoped access: take the terminal identifier.
	return lastIdentifier(callee, src, grammar)
}

func lastIdentifier(n *sitter.Node, src []byte, grammar tsgrammar.Grammar) string {
	var last string
	for i := 0; i < int(n.ChildCount()); i++ {
		child := n.Child(i)
		if child == nil {
			continue
		}
		if grammar.IdentifierLike[child.Type()] {
			last = string(src[child.StartByte():child.EndByte()])
		}
		if nested := lastIdentifier(child, src, grammar); nested != "" {
			last = nested
		}
	}
	return last
}

// extractSignature returns the node's text up to the opening brace,
// trimmed, if under maxSignatureLen characters; otherwise empty.
func extractSignature(n *sitter.Node, src []byte) string {
	content := string(src[n.StartByte():n.EndByte()])
	idx := strings.Index(content, "{")
	var sig string
	if idx >= 0 {
		sig = strings.TrimSpace(content[:idx])
	} else {
		lines := strings.SplitN(content, "\n", 2)
		sig = strings.TrimSpace(lines[0])
	}
	if len(sig) >= maxSignatureLen {
		return ""
	}
	return sig
}
