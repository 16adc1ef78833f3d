package parser

import (
	"errors"
	"fmt"

	"github.com/SatyaChamana/Codelens/internal/language"
)

// UnitKind classifies a CodeUnit. The set is closed: adding a language means
// extending a grammar table, not adding fallback branches.
type UnitKind string

const (
	KindModule   UnitKind = "module"
	KindClass    UnitKind = "class"
	KindFunction UnitKind = "function"
	KindMethod   UnitKind = "method"
	KindBlock    UnitKind = "block"
)

// CodeUnit is one syntactic entity extracted from a file. Units for a file
// live in a flat slice ordered by start line; Parent is an index into that
// slice (-1 for top-level units), so the forest carries no pointer cycles.
type CodeUnit struct {
	Kind      UnitKind
	Name      string
	FilePath  string
	Language  language.Language
	StartLine int // 1-based, inclusive
	EndLine   int // 1-based, inclusive
	Source    string
	Docstring string
	Parent    int
	Imports   []string // import statements visible at this unit's scope
}

// ErrUnsupportedLanguage is returned when no grammar is registered for a
// file's language. Callers degrade to a single whole-file module unit.
var ErrUnsupportedLanguage = errors.New("unsupported language")

// ParseError reports that the grammar rejected the file's syntax. Callers
// degrade to a whole-file unit rather than drop the file.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s: %v", e.Path, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Children returns the indices of units whose Parent is idx, in order.
func Children(units []CodeUnit, idx int) []int {
	var out []int
	for i := range units {
		if units[i].Parent == idx {
			out = append(out, i)
		}
	}
	return out
}

// WholeFileUnit builds the degraded single-unit representation of a file,
// used when no grammar exists or parsing fails outright.
func WholeFileUnit(path, source string, lang language.Language) CodeUnit {
	lines := splitLines(source)
	return CodeUnit{
		Kind:      KindModule,
		Name:      path,
		FilePath:  path,
		Language:  lang,
		StartLine: 1,
		EndLine:   len(lines),
		Source:    source,
		Parent:    -1,
	}
}
