package chunker

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/SatyaChamana/Codelens/internal/language"
	"github.com/SatyaChamana/Codelens/internal/parser"
)

// Options controls chunk sizing. Token counts use the corpus-wide heuristic
// of one token per four bytes, applied to the full chunk text including its
// context header.
type Options struct {
	MaxTokens int // upper bound per chunk (default 500)
	MinTokens int // below this, adjacent small siblings merge (default 64)
	MaxMerge  int // cap on units merged into one chunk (default 8)
}

func (o Options) withDefaults() Options {
	if o.MaxTokens <= 0 {
		o.MaxTokens = 500
	}
	if o.MinTokens <= 0 {
		o.MinTokens = 64
	}
	if o.MaxMerge <= 0 {
		o.MaxMerge = 8
	}
	return o
}

// Metadata is everything the index stores alongside a chunk's text.
type Metadata struct {
	FilePath      string
	Language      language.Language
	UnitType      parser.UnitKind
	Names         []string
	Parent        string // enclosing class, if any
	StartLine     int
	EndLine       int
	Imports       []string
	Signature     string
	TokenEstimate int
	Oversized     bool
	Summary       bool
}

// Chunk is one embeddable document: a context header plus the verbatim
// source of one or more code units.
type Chunk struct {
	ID          string
	Text        string
	Metadata    Metadata
	SourceUnits []int // indices into the file's unit slice
}

// EstimateTokens is the shared sizing heuristic: one token per four bytes.
func EstimateTokens(text string) int {
	return len(text) / 4
}

// ID derives the stable chunk identifier from the chunk's file span and a
// sequence index distinguishing split pieces.
func ID(filePath string, startLine, endLine, seq int) string {
	sum := sha256.Sum256(fmt.Appendf(nil, "%s:%d:%d:%d", filePath, startLine, endLine, seq))
	return hex.EncodeToString(sum[:8])
}

// Build converts a file's unit forest into embeddable chunks. Small
// contiguous siblings merge, containers over budget split at their direct
// children, and oversized leaves are kept whole and flagged rather than cut
// mid-body. Split pieces never overlap.
func Build(units []parser.CodeUnit, opts Options) []Chunk {
	opts = opts.withDefaults()
	var roots []int
	for i := range units {
		if units[i].Parent == -1 {
			roots = append(roots, i)
		}
	}
	return chunkSiblings(units, roots, opts)
}

// chunkSiblings processes an ordered run of same-parent units.
func chunkSiblings(units []parser.CodeUnit, siblings []int, opts Options) []Chunk {
	var out []Chunk
	for i := 0; i < len(siblings); {
		idx := siblings[i]
		u := units[idx]
		total := EstimateTokens(header(u, parentName(units, u)) + "\n\n" + u.Source)

		if total > opts.MaxTokens {
			if kids := parser.Children(units, idx); len(kids) > 0 {
				out = append(out, splitContainer(units, idx, kids, opts)...)
			} else {
				// Oversized leaf: intact semantics beat size compliance.
				c := single(units, idx)
				c.Metadata.Oversized = true
				out = append(out, c)
			}
			i++
			continue
		}

		if total < opts.MinTokens {
			run := mergeRun(units, siblings, i, opts)
			if len(run) > 1 {
				out = append(out, merged(units, run))
				i += len(run)
				continue
			}
		}

		out = append(out, single(units, idx))
		i++
	}
	return out
}

// mergeRun extends a run of contiguous small siblings starting at position
// pos, stopping at class boundaries, size or count limits, or a line gap.
// Size is measured on the assembled merged text, header included, so the
// budget holds for the chunk that actually gets emitted.
func mergeRun(units []parser.CodeUnit, siblings []int, pos int, opts Options) []int {
	first := units[siblings[pos]]
	if first.Kind == parser.KindClass {
		return siblings[pos : pos+1]
	}
	run := []int{siblings[pos]}
	for j := pos + 1; j < len(siblings) && len(run) < opts.MaxMerge; j++ {
		prev := units[run[len(run)-1]]
		next := units[siblings[j]]
		if next.Kind == parser.KindClass {
			break
		}
		if next.StartLine != prev.EndLine+1 {
			break // a line gap would break the round-trip guarantee
		}
		if EstimateTokens(next.Source) >= opts.MinTokens {
			break
		}
		candidate := append(run[:len(run):len(run)], siblings[j])
		if EstimateTokens(mergedText(units, candidate)) > opts.MaxTokens {
			break
		}
		run = candidate
	}
	return run
}

// splitContainer emits the container's preamble (signature, doc, any body
// before the first child) as its own chunk tagged with the container name,
// then chunks each direct child. Bodies are never cut inside a child.
func splitContainer(units []parser.CodeUnit, idx int, kids []int, opts Options) []Chunk {
	u := units[idx]
	var out []Chunk

	firstChild := units[kids[0]]
	if firstChild.StartLine > u.StartLine {
		preEnd := firstChild.StartLine - 1
		lines := strings.Split(u.Source, "\n")
		preSource := strings.Join(lines[:preEnd-u.StartLine+1], "\n")
		pre := u
		pre.EndLine = preEnd
		pre.Source = preSource
		text := header(pre, parentName(units, u)) + "\n\n" + preSource
		tokens := EstimateTokens(text)
		out = append(out, Chunk{
			ID:   ID(u.FilePath, u.StartLine, preEnd, 0),
			Text: text,
			Metadata: Metadata{
				FilePath:      u.FilePath,
				Language:      u.Language,
				UnitType:      u.Kind,
				Names:         []string{u.Name},
				Parent:        parentName(units, u),
				StartLine:     u.StartLine,
				EndLine:       preEnd,
				Imports:       u.Imports,
				TokenEstimate: tokens,
				// A huge doc block before the first child cannot be split
				// at unit granularity, same as an oversized leaf.
				Oversized: tokens > opts.MaxTokens,
			},
			SourceUnits: []int{idx},
		})
	}

	out = append(out, chunkSiblings(units, kids, opts)...)
	return out
}

func single(units []parser.CodeUnit, idx int) Chunk {
	u := units[idx]
	text := header(u, parentName(units, u)) + "\n\n" + u.Source
	return Chunk{
		ID:   ID(u.FilePath, u.StartLine, u.EndLine, 0),
		Text: text,
		Metadata: Metadata{
			FilePath:      u.FilePath,
			Language:      u.Language,
			UnitType:      u.Kind,
			Names:         []string{u.Name},
			Parent:        parentName(units, u),
			StartLine:     u.StartLine,
			EndLine:       u.EndLine,
			Imports:       u.Imports,
			TokenEstimate: EstimateTokens(text),
		},
		SourceUnits: []int{idx},
	}
}

// mergedText assembles the full text a merged run would produce, header
// included. mergeRun sizes candidate runs with it so the emitted chunk and
// the budget check agree.
func mergedText(units []parser.CodeUnit, run []int) string {
	first := units[run[0]]
	last := units[run[len(run)-1]]

	names := make([]string, len(run))
	sources := make([]string, len(run))
	for i, idx := range run {
		names[i] = units[idx].Name
		sources[i] = units[idx].Source
	}

	h := strings.Join([]string{
		"File: " + first.FilePath,
		"Definitions: " + strings.Join(names, ", "),
		fmt.Sprintf("Lines: %d-%d", first.StartLine, last.EndLine),
		"Language: " + string(first.Language),
	}, " | ")
	// Runs are line-contiguous, so joining sources reproduces the file slice.
	return h + "\n\n" + strings.Join(sources, "\n")
}

func merged(units []parser.CodeUnit, run []int) Chunk {
	first := units[run[0]]
	last := units[run[len(run)-1]]

	names := make([]string, len(run))
	kind := first.Kind
	for i, idx := range run {
		names[i] = units[idx].Name
		if units[idx].Kind != kind {
			kind = parser.KindBlock
		}
	}

	text := mergedText(units, run)

	return Chunk{
		ID:   ID(first.FilePath, first.StartLine, last.EndLine, 0),
		Text: text,
		Metadata: Metadata{
			FilePath:      first.FilePath,
			Language:      first.Language,
			UnitType:      kind,
			Names:         names,
			Parent:        parentName(units, first),
			StartLine:     first.StartLine,
			EndLine:       last.EndLine,
			Imports:       first.Imports,
			TokenEstimate: EstimateTokens(text),
		},
		SourceUnits: run,
	}
}

// header builds the deterministic context line prepended to a chunk so the
// embedding keeps file and scope context after the chunk leaves its file.
func header(u parser.CodeUnit, parent string) string {
	parts := []string{"File: " + u.FilePath}
	switch u.Kind {
	case parser.KindMethod:
		if parent != "" {
			parts = append(parts, "Class: "+parent)
		}
		parts = append(parts, "Method: "+u.Name)
	case parser.KindClass:
		parts = append(parts, "Class: "+u.Name)
	case parser.KindFunction:
		parts = append(parts, "Function: "+u.Name)
	default:
		parts = append(parts, "Section: "+u.Name)
	}
	parts = append(parts,
		fmt.Sprintf("Lines: %d-%d", u.StartLine, u.EndLine),
		"Language: "+string(u.Language),
	)
	if u.Docstring != "" {
		doc := u.Docstring
		if len(doc) > 200 {
			doc = doc[:200] + "..."
		}
		parts = append(parts, "Description: "+doc)
	}
	return strings.Join(parts, " | ")
}

func parentName(units []parser.CodeUnit, u parser.CodeUnit) string {
	if u.Parent < 0 || u.Parent >= len(units) {
		return ""
	}
	return units[u.Parent].Name
}
