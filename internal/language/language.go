package language

import (
	"bytes"
	"path/filepath"
	"strings"
)

// Language is the tag attached to every unit and chunk extracted from a file.
type Language string

const (
	Python     Language = "python"
	Go         Language = "go"
	JavaScript Language = "javascript"
	TypeScript Language = "typescript"
	Java       Language = "java"
	Rust       Language = "rust"
	C          Language = "c"
	CPP        Language = "cpp"
	Ruby       Language = "ruby"
	Markdown   Language = "markdown"
	YAML       Language = "yaml"
	JSON       Language = "json"
	TOML       Language = "toml"
	Unknown    Language = ""
)

// extensions maps a lowercased file extension (with dot) to its language.
var extensions = map[string]Language{
	".py":   Python,
	".pyi":  Python,
	".go":   Go,
	".js":   JavaScript,
	".jsx":  JavaScript,
	".mjs":  JavaScript,
	".ts":   TypeScript,
	".tsx":  TypeScript,
	".java": Java,
	".rs":   Rust,
	".c":    C,
	".h":    C,
	".cpp":  CPP,
	".cc":   CPP,
	".hpp":  CPP,
	".rb":   Ruby,
	".md":   Markdown,
	".yaml": YAML,
	".yml":  YAML,
	".json": JSON,
	".toml": TOML,
}

// generatedSuffixes mark files that are machine-written and not worth indexing.
var generatedSuffixes = []string{
	".min.js",
	".min.css",
	".pb.go",
	"_generated.go",
}

var lockFiles = map[string]bool{
	"package-lock.json": true,
	"yarn.lock":         true,
	"poetry.lock":       true,
	"Pipfile.lock":      true,
	"go.sum":            true,
	"Cargo.lock":        true,
}

// MaxFileSize is the largest file the classifier will admit (1 MB). Anything
// bigger is almost always generated output or bundled data.
const MaxFileSize = 1 << 20

// Detect returns the language for a file path, or Unknown if the extension
// is not recognized.
func Detect(path string) Language {
	ext := strings.ToLower(filepath.Ext(path))
	return extensions[ext]
}

// Eligible reports whether a file should enter the ingestion pipeline.
// It rejects unknown extensions, lock files, generated files, empty or
// oversized files.
func Eligible(path string, size int64) bool {
	if size == 0 || size > MaxFileSize {
		return false
	}
	if Detect(path) == Unknown {
		return false
	}
	name := filepath.Base(path)
	if lockFiles[name] {
		return false
	}
	for _, suffix := range generatedSuffixes {
		if strings.HasSuffix(name, suffix) {
			return false
		}
	}
	return true
}

// IsBinary sniffs the first bytes of content for a NUL byte, the same
// heuristic git uses to decide a file is not text.
func IsBinary(content []byte) bool {
	probe := content
	if len(probe) > 8000 {
		probe = probe[:8000]
	}
	return bytes.IndexByte(probe, 0) >= 0
}

// All returns every language tag the classifier knows about.
func All() []Language {
	seen := make(map[Language]bool)
	var langs []Language
	for _, l := range extensions {
		if !seen[l] {
			seen[l] = true
			langs = append(langs, l)
		}
	}
	return langs
}
