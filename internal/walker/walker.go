package walker

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	ignore "github.com/sabhiram/go-gitignore"

	"github.com/SatyaChamana/Codelens/internal/language"
)

// FileInfo holds metadata about a discovered source file.
type FileInfo struct {
	Path    string
	RelPath string
	Size    int64
}

// defaultIgnoreDirs are skipped regardless of .gitignore contents.
var defaultIgnoreDirs = []string{
	".git",
	".svn",
	".hg",
	"node_modules",
	"vendor",
	"__pycache__",
	".venv",
	"venv",
	".idea",
	".vscode",
	".codelens",
	"dist",
	"build",
	"target",
	".pytest_cache",
	".mypy_cache",
}

// Walk traverses the directory tree rooted at root and sends discovered
// source files on the returned channel, honoring the root .gitignore.
// Only files eligible for indexing are emitted.
func Walk(root string) (<-chan FileInfo, <-chan error) {
	files := make(chan FileInfo, 64)
	errs := make(chan error, 1)

	go func() {
		defer close(files)
		defer close(errs)

		absRoot, err := filepath.Abs(root)
		if err != nil {
			errs <- err
			return
		}

		matcher := loadGitignore(absRoot)

		err = filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return nil // skip unreadable entries, keep walking
			}

			rel, _ := filepath.Rel(absRoot, path)
			rel = filepath.ToSlash(rel)

			if d.IsDir() {
				if path == absRoot {
					return nil
				}
				if skipDir(d.Name()) {
					return filepath.SkipDir
				}
				if matcher != nil && matcher.MatchesPath(rel+"/") {
					return filepath.SkipDir
				}
				return nil
			}

			// Skip symlinks.
			if d.Type()&fs.ModeSymlink != 0 {
				return nil
			}

			if matcher != nil && matcher.MatchesPath(rel) {
				return nil
			}

			info, err := d.Info()
			if err != nil {
				return nil
			}
			if !language.Eligible(path, info.Size()) {
				return nil
			}

			files <- FileInfo{
				Path:    path,
				RelPath: rel,
				Size:    info.Size(),
			}
			return nil
		})
		if err != nil {
			errs <- err
		}
	}()

	return files, errs
}

// loadGitignore compiles the root .gitignore if present.
func loadGitignore(root string) *ignore.GitIgnore {
	data, err := os.ReadFile(filepath.Join(root, ".gitignore"))
	if err != nil {
		return nil
	}
	return ignore.CompileIgnoreLines(strings.Split(string(data), "\n")...)
}

func skipDir(name string) bool {
	if strings.HasSuffix(name, ".egg-info") {
		return true
	}
	for _, d := range defaultIgnoreDirs {
		if name == d {
			return true
		}
	}
	return false
}
