// Package guards holds source-level tests that keep the package layering
// and logging conventions from drifting.
package guards

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const modulePath = "github.com/MahdiBaghbani/confsync-go"

func findRepoRoot(t *testing.T) string {
	t.Helper()
	dir, err := os.Getwd()
	if err != nil {
		t.Fatalf("failed to get working directory: %v", err)
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			t.Fatal("could not find go.mod in any parent directory")
		}
		dir = parent
	}
}

// sourceFile is one Go file under the scanned roots.
type sourceFile struct {
	rel     string // slash separated, relative to the repo root
	content string
	test    bool
}

// walkSources visits every Go file under internal/ and cmd/.
func walkSources(t *testing.T, visit func(f sourceFile)) {
	t.Helper()
	root := findRepoRoot(t)
	for _, dir := range []string{"internal", "cmd"} {
		base := filepath.Join(root, dir)
		if _, err := os.Stat(base); os.IsNotExist(err) {
			continue
		}
		err := filepath.WalkDir(base, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() || !strings.HasSuffix(path, ".go") {
				return nil
			}
			data, err := os.ReadFile(path)
			if err != nil {
				return err
			}
			rel, _ := filepath.Rel(root, path)
			visit(sourceFile{
				rel:     filepath.ToSlash(rel),
				content: string(data),
				test:    strings.HasSuffix(path, "_test.go"),
			})
			return nil
		})
		if err != nil {
			t.Fatalf("walk %s: %v", base, err)
		}
	}
}

// imports returns the quoted import paths of a file with their line numbers.
func imports(content string) map[string]int {
	out := map[string]int{}
	inBlock := false
	for i, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(trimmed, "import ("):
			inBlock = true
			continue
		case inBlock && trimmed == ")":
			inBlock = false
			continue
		case strings.HasPrefix(trimmed, "import "):
			trimmed = strings.TrimPrefix(trimmed, "import ")
		case !inBlock:
			continue
		}
		start := strings.Index(trimmed, `"`)
		end := strings.LastIndex(trimmed, `"`)
		if start >= 0 && end > start {
			out[trimmed[start+1:end]] = i + 1
		}
	}
	return out
}
