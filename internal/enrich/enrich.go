// Package enrich derives the auxiliary fields stored with each chunk:
// normalized import lists, unit signatures, and a per-file summary that is
// indexed as a chunk of its own. Enrichment is best-effort; a field that
// cannot be derived is left empty and never aborts ingestion.
package enrich

import (
	"fmt"
	"strings"

	"github.com/SatyaChamana/Codelens/internal/chunker"
	"github.com/SatyaChamana/Codelens/internal/language"
	"github.com/SatyaChamana/Codelens/internal/parser"
)

// Apply annotates chunk metadata in place with signatures and the file's
// normalized import list. Chunk text is never mutated.
func Apply(units []parser.CodeUnit, chunks []chunker.Chunk) {
	imports := Imports(units)
	for i := range chunks {
		chunks[i].Metadata.Imports = imports
		if len(chunks[i].SourceUnits) > 0 {
			first := chunks[i].SourceUnits[0]
			if first >= 0 && first < len(units) {
				chunks[i].Metadata.Signature = Signature(units[first])
			}
		}
	}
}

// Imports collects the file's import statements from its units, normalized
// to one entry per imported name, deduplicated, order preserved.
func Imports(units []parser.CodeUnit) []string {
	if len(units) == 0 {
		return nil
	}
	seen := make(map[string]bool)
	var out []string
	for _, raw := range units[0].Imports {
		for _, line := range strings.Split(raw, "\n") {
			entry := normalizeImportLine(line)
			if entry == "" || seen[entry] {
				continue
			}
			seen[entry] = true
			out = append(out, entry)
		}
	}
	return out
}

// normalizeImportLine strips grouping syntax (Go's parenthesized blocks)
// and whitespace, leaving one import per line.
func normalizeImportLine(line string) string {
	line = strings.TrimSpace(line)
	switch line {
	case "", "import (", ")":
		return ""
	}
	return line
}

// Signature returns a unit's declaration line(s): everything up to where the
// body starts, capped at five lines.
func Signature(u parser.CodeUnit) string {
	lines := strings.Split(u.Source, "\n")
	var sig []string
	for i, line := range lines {
		if i >= 5 {
			break
		}
		trimmed := strings.TrimSpace(line)
		// Decorators and annotations precede the declaration proper.
		if strings.HasPrefix(trimmed, "@") {
			continue
		}
		sig = append(sig, trimmed)
		if strings.HasSuffix(trimmed, "{") || strings.HasSuffix(trimmed, ":") {
			break
		}
	}
	return strings.TrimSuffix(strings.TrimSuffix(strings.Join(sig, " "), "{"), ":")
}

// UnitRef is one top-level entry in a file summary.
type UnitRef struct {
	Name      string
	Kind      parser.UnitKind
	StartLine int
	EndLine   int
}

// FileSummary describes one ingested file: its purpose excerpt, imports,
// and top-level unit inventory.
type FileSummary struct {
	Path     string
	Language language.Language
	Doc      string
	Imports  []string
	Units    []UnitRef
	EndLine  int
}

// Summarize builds the FileSummary for a file's parsed units.
func Summarize(path string, lang language.Language, units []parser.CodeUnit) FileSummary {
	s := FileSummary{Path: path, Language: lang, Imports: Imports(units)}
	for i := range units {
		u := units[i]
		if u.EndLine > s.EndLine {
			s.EndLine = u.EndLine
		}
		if u.Parent != -1 {
			continue
		}
		if s.Doc == "" && u.Docstring != "" {
			s.Doc = u.Docstring
		}
		s.Units = append(s.Units, UnitRef{
			Name:      u.Name,
			Kind:      u.Kind,
			StartLine: u.StartLine,
			EndLine:   u.EndLine,
		})
	}
	return s
}

// Render formats the summary as the text that gets embedded, so questions
// like "what does this file do" retrieve the file-level view.
func (s FileSummary) Render() string {
	var b strings.Builder
	fmt.Fprintf(&b, "File: %s\nLanguage: %s\n", s.Path, s.Language)
	if s.Doc != "" {
		doc := s.Doc
		if len(doc) > 300 {
			doc = doc[:300] + "..."
		}
		fmt.Fprintf(&b, "Purpose: %s\n", doc)
	}
	if len(s.Imports) > 0 {
		fmt.Fprintf(&b, "Imports: %s\n", strings.Join(s.Imports, ", "))
	}
	var functions, classes []string
	for _, u := range s.Units {
		switch u.Kind {
		case parser.KindFunction, parser.KindMethod:
			functions = append(functions, u.Name)
		case parser.KindClass:
			classes = append(classes, fmt.Sprintf("%s (lines %d-%d)", u.Name, u.StartLine, u.EndLine))
		}
	}
	if len(functions) > 0 {
		fmt.Fprintf(&b, "Functions defined: %s\n", strings.Join(functions, ", "))
	}
	if len(classes) > 0 {
		fmt.Fprintf(&b, "Classes defined: %s\n", strings.Join(classes, ", "))
	}
	return strings.TrimRight(b.String(), "\n")
}

// SummaryChunk wraps the rendered summary as an independently retrievable
// chunk spanning the whole file.
func SummaryChunk(s FileSummary) chunker.Chunk {
	end := s.EndLine
	if end < 1 {
		end = 1
	}
	text := s.Render()
	return chunker.Chunk{
		ID:   chunker.ID(s.Path, 1, end, 1),
		Text: text,
		Metadata: chunker.Metadata{
			FilePath:      s.Path,
			Language:      s.Language,
			UnitType:      parser.KindModule,
			Names:         []string{s.Path},
			StartLine:     1,
			EndLine:       end,
			Imports:       s.Imports,
			TokenEstimate: chunker.EstimateTokens(text),
			Summary:       true,
		},
	}
}
