package language

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetect(t *testing.T) {
	tests := []struct {
		path string
		want Language
	}{
		{"main.py", Python},
		{"cmd/root.go", Go},
		{"src/App.jsx", JavaScript},
		{"src/index.ts", TypeScript},
		{"src/component.tsx", TypeScript},
		{"lib.rs", Rust},
		{"README.md", Markdown},
		{"config.yml", YAML},
		{"UPPER.PY", Python},
		{"noext", Unknown},
		{"archive.tar.gz", Unknown},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Detect(tt.path), "path %q", tt.path)
	}
}

func TestEligible(t *testing.T) {
	assert.True(t, Eligible("src/main.py", 100))
	assert.True(t, Eligible("pkg/util.go", MaxFileSize))

	assert.False(t, Eligible("src/main.py", 0), "empty file")
	assert.False(t, Eligible("src/main.py", MaxFileSize+1), "oversized file")
	assert.False(t, Eligible("binary.exe", 100), "unknown extension")
	assert.False(t, Eligible("package-lock.json", 100), "lock file")
	assert.False(t, Eligible("go.sum", 100), "lock file")
	assert.False(t, Eligible("bundle.min.js", 100), "generated file")
	assert.False(t, Eligible("api.pb.go", 100), "generated file")
	assert.False(t, Eligible("models_generated.go", 100), "generated file")
}

func TestIsBinary(t *testing.T) {
	assert.False(t, IsBinary([]byte("plain text\nwith lines\n")))
	assert.True(t, IsBinary([]byte{'P', 'K', 0, 3}))

	// NUL past the probe window is not detected; the probe mirrors git.
	big := make([]byte, 10000)
	for i := range big {
		big[i] = 'a'
	}
	big[9000] = 0
	assert.False(t, IsBinary(big))
}

func TestAll(t *testing.T) {
	langs := All()
	assert.Contains(t, langs, Python)
	assert.Contains(t, langs, Go)
	seen := make(map[Language]bool)
	for _, l := range langs {
		assert.False(t, seen[l], "duplicate language %q", l)
		seen[l] = true
	}
}
