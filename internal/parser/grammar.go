package parser

import (
	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/smacker/go-tree-sitter/typescript/typescript"

	"github.com/SatyaChamana/Codelens/internal/language"
)

// grammar is the closed per-language mapping from tree-sitter node categories
// to unit kinds, plus the handful of structural facts the walker needs.
type grammar struct {
	lang *sitter.Language

	// kinds maps a declaration node type to the unit kind it produces at
	// top level. Nodes absent from the table are grouped into block units.
	kinds map[string]UnitKind

	// methodKinds are node types that become method units when they appear
	// directly inside a class body.
	methodKinds map[string]bool

	// wrappers are node types (decorators, annotations) whose line span
	// attaches to the inner definition they wrap.
	wrappers map[string]bool

	// importKinds are node types carrying import statements.
	importKinds map[string]bool

	// bodyField names the field holding a definition's body node.
	bodyField string

	// docFromString: docstrings come from a leading string literal in the
	// body (Python). Otherwise contiguous leading comments are used.
	docFromString bool
}

var grammars = map[language.Language]*grammar{
	language.Python: {
		lang: python.GetLanguage(),
		kinds: map[string]UnitKind{
			"function_definition": KindFunction,
			"class_definition":    KindClass,
		},
		methodKinds: map[string]bool{
			"function_definition": true,
		},
		wrappers: map[string]bool{
			"decorated_definition": true,
		},
		importKinds: map[string]bool{
			"import_statement":      true,
			"import_from_statement": true,
		},
		bodyField:     "body",
		docFromString: true,
	},
	language.Go: {
		lang: golang.GetLanguage(),
		kinds: map[string]UnitKind{
			"function_declaration": KindFunction,
			"method_declaration":   KindMethod,
			"type_declaration":     KindClass,
		},
		importKinds: map[string]bool{
			"import_declaration": true,
		},
		bodyField: "body",
	},
	language.JavaScript: {
		lang: javascript.GetLanguage(),
		kinds: map[string]UnitKind{
			"function_declaration":           KindFunction,
			"generator_function_declaration": KindFunction,
			"class_declaration":              KindClass,
		},
		methodKinds: map[string]bool{
			"method_definition": true,
		},
		importKinds: map[string]bool{
			"import_statement": true,
		},
		bodyField: "body",
	},
	language.TypeScript: {
		lang: typescript.GetLanguage(),
		kinds: map[string]UnitKind{
			"function_declaration":           KindFunction,
			"generator_function_declaration": KindFunction,
			"class_declaration":              KindClass,
			"interface_declaration":          KindClass,
			"enum_declaration":               KindClass,
		},
		methodKinds: map[string]bool{
			"method_definition":         true,
			"method_signature":          true,
			"abstract_method_signature": true,
		},
		importKinds: map[string]bool{
			"import_statement": true,
		},
		bodyField: "body",
	},
}

// Supported reports whether a grammar is registered for the language.
func Supported(lang language.Language) bool {
	_, ok := grammars[lang]
	return ok
}

// unwrap resolves decorator/annotation wrapper nodes to the wrapped
// definition. The returned span node is the wrapper itself, so decorators
// stay inside the unit's line range.
func (g *grammar) unwrap(node *sitter.Node) (inner, span *sitter.Node) {
	if !g.wrappers[node.Type()] {
		return node, node
	}
	for i := 0; i < int(node.NamedChildCount()); i++ {
		c := node.NamedChild(i)
		if _, ok := g.kinds[c.Type()]; ok {
			return c, node
		}
		if g.methodKinds[c.Type()] {
			return c, node
		}
	}
	return node, node
}

// nodeName extracts the declared identifier for a definition node, or ""
// when the node is anonymous.
func (g *grammar) nodeName(node *sitter.Node, src []byte) string {
	if n := node.ChildByFieldName("name"); n != nil {
		return n.Content(src)
	}
	// Go type declarations nest the name one level down in a type_spec.
	if node.Type() == "type_declaration" {
		for i := 0; i < int(node.NamedChildCount()); i++ {
			c := node.NamedChild(i)
			if c.Type() == "type_spec" {
				if n := c.ChildByFieldName("name"); n != nil {
					return n.Content(src)
				}
			}
		}
	}
	return ""
}
