package parser

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SatyaChamana/Codelens/internal/language"
)

func parseSource(t *testing.T, path, src string, lang language.Language) []CodeUnit {
	t.Helper()
	units, err := Parse(context.Background(), path, []byte(src), lang)
	require.NoError(t, err)
	return units
}

func findUnit(t *testing.T, units []CodeUnit, name string) (int, CodeUnit) {
	t.Helper()
	for i, u := range units {
		if u.Name == name {
			return i, u
		}
	}
	t.Fatalf("unit %q not found in %v", name, unitNames(units))
	return -1, CodeUnit{}
}

func unitNames(units []CodeUnit) []string {
	names := make([]string, len(units))
	for i, u := range units {
		names[i] = u.Name
	}
	return names
}

const pythonSource = `"""Utility helpers."""

import os

def top():
    """Returns one."""
    return 1

class Bar:
    """Bar holds state."""

    def a(self):
        return 1

    def b(self):
        def inner():
            return 2
        return inner()
`

func TestParsePythonStructure(t *testing.T) {
	units := parseSource(t, "util.py", pythonSource, language.Python)

	_, doc := findUnit(t, units, "module docstring")
	assert.Equal(t, KindBlock, doc.Kind)
	assert.Equal(t, "Utility helpers.", doc.Docstring)
	assert.Equal(t, 1, doc.StartLine)

	_, top := findUnit(t, units, "top")
	assert.Equal(t, KindFunction, top.Kind)
	assert.Equal(t, -1, top.Parent)
	assert.Equal(t, "Returns one.", top.Docstring)

	barIdx, bar := findUnit(t, units, "Bar")
	assert.Equal(t, KindClass, bar.Kind)
	assert.Equal(t, -1, bar.Parent)
	assert.Equal(t, "Bar holds state.", bar.Docstring)

	_, a := findUnit(t, units, "a")
	assert.Equal(t, KindMethod, a.Kind)
	assert.Equal(t, barIdx, a.Parent)

	bIdx, b := findUnit(t, units, "b")
	assert.Equal(t, KindMethod, b.Kind)
	assert.Equal(t, barIdx, b.Parent)

	// Nested function chains through its enclosing method, depth > 1.
	_, inner := findUnit(t, units, "inner")
	assert.Equal(t, KindFunction, inner.Kind)
	assert.Equal(t, bIdx, inner.Parent)
	assert.GreaterOrEqual(t, inner.StartLine, b.StartLine)
	assert.LessOrEqual(t, inner.EndLine, b.EndLine)

	// Every unit carries the file's imports.
	for _, u := range units {
		assert.Contains(t, u.Imports, "import os")
	}

	// Units are ordered by start line; child spans nest inside parents.
	for i := 1; i < len(units); i++ {
		assert.GreaterOrEqual(t, units[i].StartLine, units[i-1].StartLine)
	}
	for _, u := range []CodeUnit{a, b} {
		assert.GreaterOrEqual(t, u.StartLine, bar.StartLine)
		assert.LessOrEqual(t, u.EndLine, bar.EndLine)
	}
}

func TestParsePythonSourceRoundTrip(t *testing.T) {
	units := parseSource(t, "util.py", pythonSource, language.Python)
	lines := strings.Split(pythonSource, "\n")

	for _, u := range units {
		want := strings.Join(lines[u.StartLine-1:u.EndLine], "\n")
		assert.Equal(t, want, u.Source, "unit %s", u.Name)
	}
}

func TestParsePythonDecorator(t *testing.T) {
	src := `@cached
def fetch():
    return 1
`
	units := parseSource(t, "d.py", src, language.Python)
	_, fetch := findUnit(t, units, "fetch")
	// The decorator line belongs to the unit's span.
	assert.Equal(t, 1, fetch.StartLine)
	assert.True(t, strings.HasPrefix(fetch.Source, "@cached"))
}

const goSource = `package mathutil

import "fmt"

// Add returns the sum of a and b.
func Add(a, b int) int {
	return a + b
}

type Server struct {
	addr string
}

// Start begins listening.
func (s *Server) Start() error {
	fmt.Println(s.addr)
	return nil
}
`

func TestParseGoStructure(t *testing.T) {
	units := parseSource(t, "mathutil.go", goSource, language.Go)

	_, add := findUnit(t, units, "Add")
	assert.Equal(t, KindFunction, add.Kind)
	assert.Equal(t, "Add returns the sum of a and b.", add.Docstring)

	_, server := findUnit(t, units, "Server")
	assert.Equal(t, KindClass, server.Kind)

	_, start := findUnit(t, units, "Start")
	assert.Equal(t, KindMethod, start.Kind)
	assert.Equal(t, "Start begins listening.", start.Docstring)

	for _, u := range units {
		assert.Contains(t, u.Imports, `import "fmt"`)
	}
}

func TestParseGoBlockGrouping(t *testing.T) {
	units := parseSource(t, "mathutil.go", goSource, language.Go)

	// The package clause and import group into one leading block.
	require.NotEmpty(t, units)
	first := units[0]
	assert.Equal(t, KindBlock, first.Kind)
	assert.Equal(t, 1, first.StartLine)
	assert.Contains(t, first.Source, "package mathutil")
	assert.Contains(t, first.Source, `import "fmt"`)
}

func TestParsePartialCoverage(t *testing.T) {
	src := "def ok():\n    return 1\n\n%%%garbage%%%\n"
	units, err := Parse(context.Background(), "broken.py", []byte(src), language.Python)
	require.NoError(t, err, "partial coverage beats no coverage")

	_, ok := findUnit(t, units, "ok")
	assert.Equal(t, KindFunction, ok.Kind)
}

func TestParseUnsupportedLanguage(t *testing.T) {
	_, err := Parse(context.Background(), "lib.rs", []byte("fn main() {}"), language.Rust)
	assert.ErrorIs(t, err, ErrUnsupportedLanguage)
}

func TestChildren(t *testing.T) {
	units := parseSource(t, "util.py", pythonSource, language.Python)
	barIdx, _ := findUnit(t, units, "Bar")

	kids := Children(units, barIdx)
	require.Len(t, kids, 2)
	assert.Equal(t, "a", units[kids[0]].Name)
	assert.Equal(t, "b", units[kids[1]].Name)
}

func TestWholeFileUnit(t *testing.T) {
	src := "# just a comment\nx = 1\n"
	u := WholeFileUnit("config.py", src, language.Python)

	assert.Equal(t, KindModule, u.Kind)
	assert.Equal(t, "config.py", u.FilePath)
	assert.Equal(t, 1, u.StartLine)
	assert.Equal(t, 3, u.EndLine)
	assert.Equal(t, src, u.Source)
	assert.Equal(t, -1, u.Parent)
}
