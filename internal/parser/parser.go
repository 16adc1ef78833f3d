package parser

import (
	"context"
	"errors"
	"fmt"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/SatyaChamana/Codelens/internal/language"
)

// Parse turns a file's source into an ordered sequence of CodeUnits using
// the language's grammar table. It returns ErrUnsupportedLanguage when no
// grammar is registered, and a *ParseError when the grammar rejects the file
// entirely; callers should degrade to WholeFileUnit in both cases.
func Parse(ctx context.Context, path string, source []byte, lang language.Language) ([]CodeUnit, error) {
	g, ok := grammars[lang]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedLanguage, lang)
	}

	p := sitter.NewParser()
	p.SetLanguage(g.lang)
	tree, err := p.ParseCtx(ctx, nil, source)
	if err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}
	defer tree.Close()

	fp := &fileParser{
		g:     g,
		path:  path,
		lang:  lang,
		src:   source,
		lines: splitLines(string(source)),
	}
	fp.walkTopLevel(tree.RootNode())

	// A tree with errors can still yield usable units; partial coverage
	// beats no coverage. Only a fully unusable tree is a ParseError.
	if len(fp.units) == 0 && tree.RootNode().HasError() {
		return nil, &ParseError{Path: path, Err: errors.New("syntax tree unusable")}
	}

	for i := range fp.units {
		fp.units[i].Imports = fp.imports
	}
	return fp.units, nil
}

type fileParser struct {
	g       *grammar
	path    string
	lang    language.Language
	src     []byte
	lines   []string
	units   []CodeUnit
	imports []string

	// pending block accumulation over consecutive unclassified statements
	blockStart int // 1-based, 0 means no pending block
	blockEnd   int
}

func (fp *fileParser) walkTopLevel(root *sitter.Node) {
	for i := 0; i < int(root.NamedChildCount()); i++ {
		node := root.NamedChild(i)
		if node.Type() == "comment" {
			continue // folded into docstrings or block spans, never own units
		}

		inner, span := fp.g.unwrap(node)
		kind, classified := fp.g.kinds[inner.Type()]
		if !classified {
			if fp.g.importKinds[node.Type()] {
				fp.imports = append(fp.imports, node.Content(fp.src))
			}
			// Module docstring gets its own block so it stays retrievable.
			if i == 0 && fp.g.docFromString {
				if doc, ok := stringExpression(node, fp.src); ok {
					fp.emitBlock(lineOf(node.StartPoint()), lineOf(node.EndPoint()), "module docstring", doc)
					continue
				}
			}
			fp.extendBlock(node)
			continue
		}

		fp.flushBlock()
		switch kind {
		case KindClass:
			fp.addClass(inner, span, -1)
		default:
			fp.addCallable(inner, span, -1, kind)
		}
	}
	fp.flushBlock()
}

// addClass emits a class unit, then its methods and nested classes as
// children pointing back at the class index.
func (fp *fileParser) addClass(node, span *sitter.Node, parent int) {
	idx := len(fp.units)
	fp.units = append(fp.units, fp.makeUnit(KindClass, node, span, parent))

	body := node.ChildByFieldName(fp.g.bodyField)
	if body == nil {
		return
	}
	for i := 0; i < int(body.NamedChildCount()); i++ {
		child := body.NamedChild(i)
		inner, childSpan := fp.g.unwrap(child)
		switch {
		case fp.g.methodKinds[inner.Type()]:
			fp.addCallable(inner, childSpan, idx, KindMethod)
		case fp.g.kinds[inner.Type()] == KindClass:
			fp.addClass(inner, childSpan, idx)
		}
	}
}

// addCallable emits a function or method unit and recurses into its body
// for nested function definitions.
func (fp *fileParser) addCallable(node, span *sitter.Node, parent int, kind UnitKind) {
	idx := len(fp.units)
	fp.units = append(fp.units, fp.makeUnit(kind, node, span, parent))

	body := node.ChildByFieldName(fp.g.bodyField)
	if body != nil {
		fp.scanNested(body, idx)
	}
}

// scanNested finds function definitions nested anywhere inside a body and
// attaches them as child units, producing parent chains deeper than one.
func (fp *fileParser) scanNested(node *sitter.Node, parent int) {
	for i := 0; i < int(node.NamedChildCount()); i++ {
		child := node.NamedChild(i)
		inner, span := fp.g.unwrap(child)
		if fp.g.kinds[inner.Type()] == KindFunction {
			fp.addCallable(inner, span, parent, KindFunction)
			continue
		}
		fp.scanNested(child, parent)
	}
}

func (fp *fileParser) makeUnit(kind UnitKind, node, span *sitter.Node, parent int) CodeUnit {
	start := lineOf(span.StartPoint())
	end := lineOf(span.EndPoint())
	name := fp.g.nodeName(node, fp.src)
	if name == "" {
		name = fmt.Sprintf("%s@%d", kind, start)
	}
	return CodeUnit{
		Kind:      kind,
		Name:      name,
		FilePath:  fp.path,
		Language:  fp.lang,
		StartLine: start,
		EndLine:   end,
		Source:    lineSlice(fp.lines, start, end),
		Docstring: fp.docstring(node, span),
		Parent:    parent,
	}
}

// docstring extracts documentation for a definition: the body's leading
// string literal for Python-style grammars, otherwise the contiguous run of
// comments immediately above the definition (no blank-line gap).
func (fp *fileParser) docstring(node, span *sitter.Node) string {
	if fp.g.docFromString {
		body := node.ChildByFieldName(fp.g.bodyField)
		if body == nil || body.NamedChildCount() == 0 {
			return ""
		}
		if doc, ok := stringExpression(body.NamedChild(0), fp.src); ok {
			return doc
		}
		return ""
	}
	return fp.leadingComments(span)
}

// leadingComments walks preceding siblings collecting comments that touch
// the definition line-for-line. A blank line breaks the chain.
func (fp *fileParser) leadingComments(node *sitter.Node) string {
	var parts []string
	wantEnd := int(node.StartPoint().Row) - 1
	for prev := node.PrevNamedSibling(); prev != nil; prev = prev.PrevNamedSibling() {
		if prev.Type() != "comment" || int(prev.EndPoint().Row) != wantEnd {
			break
		}
		parts = append([]string{trimComment(prev.Content(fp.src))}, parts...)
		wantEnd = int(prev.StartPoint().Row) - 1
	}
	return strings.TrimSpace(strings.Join(parts, "\n"))
}

func (fp *fileParser) extendBlock(node *sitter.Node) {
	start := lineOf(node.StartPoint())
	end := lineOf(node.EndPoint())
	if fp.blockStart == 0 {
		fp.blockStart = start
	}
	if end > fp.blockEnd {
		fp.blockEnd = end
	}
}

func (fp *fileParser) flushBlock() {
	if fp.blockStart == 0 {
		return
	}
	fp.emitBlock(fp.blockStart, fp.blockEnd, fmt.Sprintf("block@%d", fp.blockStart), "")
	fp.blockStart, fp.blockEnd = 0, 0
}

func (fp *fileParser) emitBlock(start, end int, name, doc string) {
	fp.units = append(fp.units, CodeUnit{
		Kind:      KindBlock,
		Name:      name,
		FilePath:  fp.path,
		Language:  fp.lang,
		StartLine: start,
		EndLine:   end,
		Source:    lineSlice(fp.lines, start, end),
		Docstring: doc,
		Parent:    -1,
	})
}

// stringExpression reports whether a node is an expression statement holding
// a bare string literal, returning the unquoted text.
func stringExpression(node *sitter.Node, src []byte) (string, bool) {
	if node.Type() != "expression_statement" || node.NamedChildCount() == 0 {
		return "", false
	}
	first := node.NamedChild(0)
	if first.Type() != "string" {
		return "", false
	}
	return trimStringQuotes(first.Content(src)), true
}

func trimStringQuotes(s string) string {
	s = strings.TrimSpace(s)
	for _, q := range []string{`"""`, "'''"} {
		if strings.HasPrefix(s, q) && strings.HasSuffix(s, q) && len(s) >= 2*len(q) {
			return strings.TrimSpace(s[len(q) : len(s)-len(q)])
		}
	}
	for _, q := range []string{`"`, `'`} {
		if strings.HasPrefix(s, q) && strings.HasSuffix(s, q) && len(s) >= 2 {
			return s[1 : len(s)-1]
		}
	}
	return s
}

func trimComment(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "//")
	s = strings.TrimPrefix(s, "#")
	s = strings.TrimPrefix(s, "/*")
	s = strings.TrimSuffix(s, "*/")
	return strings.TrimSpace(s)
}

// lineOf converts a tree-sitter point to a 1-based line number.
func lineOf(p sitter.Point) int {
	return int(p.Row) + 1
}

func splitLines(source string) []string {
	return strings.Split(source, "\n")
}

// lineSlice returns the exact text of lines start..end (1-based inclusive).
// Joining on \n reproduces the original bytes, including any \r the file
// carried before them.
func lineSlice(lines []string, start, end int) string {
	if start < 1 {
		start = 1
	}
	if end > len(lines) {
		end = len(lines)
	}
	if start > end {
		return ""
	}
	return strings.Join(lines[start-1:end], "\n")
}
