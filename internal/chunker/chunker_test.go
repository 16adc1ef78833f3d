package chunker

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SatyaChamana/Codelens/internal/language"
	"github.com/SatyaChamana/Codelens/internal/parser"
)

// unit builds a test CodeUnit with a synthetic source of the given line count.
func unit(kind parser.UnitKind, name string, start, end, parent int, lineText string) parser.CodeUnit {
	n := end - start + 1
	lines := make([]string, n)
	for i := range lines {
		lines[i] = lineText
	}
	return parser.CodeUnit{
		Kind:      kind,
		Name:      name,
		FilePath:  "app.py",
		Language:  language.Python,
		StartLine: start,
		EndLine:   end,
		Source:    strings.Join(lines, "\n"),
		Parent:    parent,
	}
}

func TestBuildOneChunkPerUnit(t *testing.T) {
	long := strings.Repeat("x = compute_something_substantial()  ", 10)
	units := []parser.CodeUnit{
		unit(parser.KindFunction, "alpha", 1, 10, -1, long),
		unit(parser.KindFunction, "beta", 11, 20, -1, long),
	}
	opts := Options{MaxTokens: 100000, MinTokens: 1, MaxMerge: 8}

	chunks := Build(units, opts)
	require.Len(t, chunks, 2)

	assert.Equal(t, []string{"alpha"}, chunks[0].Metadata.Names)
	assert.Equal(t, []string{"beta"}, chunks[1].Metadata.Names)
	assert.Contains(t, chunks[0].Text, "File: app.py")
	assert.Contains(t, chunks[0].Text, "Function: alpha")
	assert.Contains(t, chunks[0].Text, "Lines: 1-10")
	assert.NotEqual(t, chunks[0].ID, chunks[1].ID)

	// Same input, same output.
	again := Build(units, opts)
	assert.Equal(t, chunks, again)
}

func TestBuildMergesSmallContiguousSiblings(t *testing.T) {
	units := []parser.CodeUnit{
		unit(parser.KindFunction, "f1", 1, 2, -1, "pass"),
		unit(parser.KindFunction, "f2", 3, 4, -1, "pass"),
		unit(parser.KindFunction, "f3", 5, 6, -1, "pass"),
	}

	chunks := Build(units, Options{})
	require.Len(t, chunks, 1)
	assert.Equal(t, []string{"f1", "f2", "f3"}, chunks[0].Metadata.Names)
	assert.Equal(t, 1, chunks[0].Metadata.StartLine)
	assert.Equal(t, 6, chunks[0].Metadata.EndLine)
	assert.Equal(t, []int{0, 1, 2}, chunks[0].SourceUnits)
	assert.Contains(t, chunks[0].Text, "Definitions: f1, f2, f3")
}

func TestBuildMergeStopsAtLineGap(t *testing.T) {
	units := []parser.CodeUnit{
		unit(parser.KindFunction, "f1", 1, 2, -1, "pass"),
		unit(parser.KindFunction, "f2", 3, 4, -1, "pass"),
		unit(parser.KindFunction, "f3", 7, 8, -1, "pass"), // gap at lines 5-6
	}

	chunks := Build(units, Options{})
	require.Len(t, chunks, 2)
	assert.Equal(t, []string{"f1", "f2"}, chunks[0].Metadata.Names)
	assert.Equal(t, []string{"f3"}, chunks[1].Metadata.Names)
}

func TestBuildMergeNeverCrossesClass(t *testing.T) {
	units := []parser.CodeUnit{
		unit(parser.KindFunction, "f1", 1, 2, -1, "pass"),
		unit(parser.KindClass, "Tiny", 3, 4, -1, "pass"),
		unit(parser.KindFunction, "f2", 5, 6, -1, "pass"),
	}

	chunks := Build(units, Options{})
	require.Len(t, chunks, 3)
	for _, c := range chunks {
		assert.Len(t, c.SourceUnits, 1)
	}
}

func TestBuildMergeRespectsMaxMerge(t *testing.T) {
	var units []parser.CodeUnit
	for i := 0; i < 10; i++ {
		units = append(units, unit(parser.KindFunction, "f", 1+2*i, 2+2*i, -1, "pass"))
	}

	chunks := Build(units, Options{MaxMerge: 4})
	require.Len(t, chunks, 3)
	assert.Len(t, chunks[0].SourceUnits, 4)
	assert.Len(t, chunks[1].SourceUnits, 4)
	assert.Len(t, chunks[2].SourceUnits, 2)
}

func TestBuildMergedChunkStaysWithinBudget(t *testing.T) {
	// Long names make the merged header substantial: the sources alone fit
	// the budget, the assembled text with its header does not.
	line := "total = total + reconcile(batch_entries, ledger_rows)"
	var units []parser.CodeUnit
	for i := 0; i < 16; i++ {
		name := fmt.Sprintf("reconcile_inventory_ledger_%d", i)
		units = append(units, unit(parser.KindFunction, name, 1+3*i, 3+3*i, -1, line))
	}
	opts := Options{MaxTokens: 500, MinTokens: 64, MaxMerge: 20}

	all := make([]int, len(units))
	for i := range all {
		all[i] = i
	}
	require.Greater(t, EstimateTokens(mergedText(units, all)), opts.MaxTokens,
		"merging everything would blow the budget")

	chunks := Build(units, opts)
	require.GreaterOrEqual(t, len(chunks), 2)
	var covered int
	for _, c := range chunks {
		assert.LessOrEqual(t, c.Metadata.TokenEstimate, opts.MaxTokens)
		assert.False(t, c.Metadata.Oversized)
		covered += len(c.SourceUnits)
	}
	assert.Equal(t, len(units), covered)
	assert.Greater(t, len(chunks[0].SourceUnits), 1, "merging still happens under the budget")
}

func TestBuildOversizedPreambleFlagged(t *testing.T) {
	body := strings.Repeat("self.registry[key] = build_handler(key, options)  ", 30)
	units := []parser.CodeUnit{
		unit(parser.KindClass, "Big", 1, 60, -1, body),
		unit(parser.KindMethod, "m", 50, 60, 0, "return 1"),
	}

	chunks := Build(units, Options{MaxTokens: 200, MinTokens: 1})
	require.Len(t, chunks, 2)

	pre := chunks[0]
	assert.Equal(t, []string{"Big"}, pre.Metadata.Names)
	assert.Equal(t, 49, pre.Metadata.EndLine)
	assert.True(t, pre.Metadata.Oversized, "a preamble over budget carries the flag")
	assert.False(t, chunks[1].Metadata.Oversized)
}

func TestBuildClassWithinBudgetStaysWhole(t *testing.T) {
	units := []parser.CodeUnit{
		unit(parser.KindClass, "Bar", 1, 12, -1, "x = 1  # some class body line"),
		unit(parser.KindMethod, "m1", 3, 6, 0, "return 1"),
		unit(parser.KindMethod, "m2", 7, 12, 0, "return 2"),
	}

	chunks := Build(units, Options{MaxTokens: 100000, MinTokens: 1})
	require.Len(t, chunks, 1, "a class under budget is one chunk, methods are not re-chunked")
	assert.Equal(t, []string{"Bar"}, chunks[0].Metadata.Names)
	assert.Equal(t, parser.KindClass, chunks[0].Metadata.UnitType)
}

func TestBuildOversizedClassSplitsAtMethods(t *testing.T) {
	body := strings.Repeat("self.value = self.value + 1  ", 20)
	units := []parser.CodeUnit{
		unit(parser.KindClass, "Big", 1, 30, -1, body),
		unit(parser.KindMethod, "m1", 5, 15, 0, body),
		unit(parser.KindMethod, "m2", 16, 30, 0, body),
	}

	chunks := Build(units, Options{MaxTokens: 200, MinTokens: 1})
	require.Len(t, chunks, 3)

	pre := chunks[0]
	assert.Equal(t, []string{"Big"}, pre.Metadata.Names)
	assert.Equal(t, 1, pre.Metadata.StartLine)
	assert.Equal(t, 4, pre.Metadata.EndLine, "preamble ends where the first method begins")
	assert.Contains(t, pre.Text, "Class: Big")

	m1 := chunks[1]
	assert.Equal(t, []string{"m1"}, m1.Metadata.Names)
	assert.Equal(t, "Big", m1.Metadata.Parent)
	assert.Contains(t, m1.Text, "Class: Big")
	assert.Contains(t, m1.Text, "Method: m1")

	// Split pieces never overlap.
	assert.Less(t, pre.Metadata.EndLine, m1.Metadata.StartLine)
	assert.Less(t, m1.Metadata.EndLine, chunks[2].Metadata.StartLine)
}

func TestBuildOversizedLeafKeptWholeAndFlagged(t *testing.T) {
	huge := strings.Repeat("data.append(transform(row))  ", 50)
	units := []parser.CodeUnit{
		unit(parser.KindFunction, "load", 1, 40, -1, huge),
	}

	chunks := Build(units, Options{MaxTokens: 100, MinTokens: 1})
	require.Len(t, chunks, 1)
	assert.True(t, chunks[0].Metadata.Oversized)
	assert.Equal(t, 1, chunks[0].Metadata.StartLine)
	assert.Equal(t, 40, chunks[0].Metadata.EndLine)
}

func TestBuildMergedTextRoundTrip(t *testing.T) {
	units := []parser.CodeUnit{
		unit(parser.KindFunction, "f1", 1, 2, -1, "a = 1"),
		unit(parser.KindFunction, "f2", 3, 4, -1, "b = 2"),
	}

	chunks := Build(units, Options{})
	require.Len(t, chunks, 1)

	_, body, found := strings.Cut(chunks[0].Text, "\n\n")
	require.True(t, found)
	assert.Equal(t, units[0].Source+"\n"+units[1].Source, body)
}

func TestID(t *testing.T) {
	a := ID("app.py", 1, 10, 0)
	assert.Equal(t, a, ID("app.py", 1, 10, 0))
	assert.Len(t, a, 16)

	assert.NotEqual(t, a, ID("app.py", 1, 10, 1), "sequence distinguishes split pieces")
	assert.NotEqual(t, a, ID("other.py", 1, 10, 0))
	assert.NotEqual(t, a, ID("app.py", 2, 10, 0))
}

func TestEstimateTokens(t *testing.T) {
	assert.Equal(t, 0, EstimateTokens(""))
	assert.Equal(t, 25, EstimateTokens(strings.Repeat("a", 100)))
}
