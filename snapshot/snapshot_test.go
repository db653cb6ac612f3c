// Package snapshot_test provides golden snapshot tests for the compiler
// pipeline.
//
// For each float IR input in testdata/in/, the test runs two stages and
// compares the output to golden files stored in testdata/golden/:
//
//	ir/   the parsed module reprinted in canonical form
//	fix/  the fixed-point rewrite of the module, printed
//
// To regenerate golden files after intentional changes:
//
//	UPDATE_GOLDEN=1 go test ./snapshot/...
package snapshot_test

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/light-player/fxc/fix32"
	"github.com/light-player/fxc/ir"
)

// moduleFile is an input module loaded from disk.
type moduleFile struct {
	name   string // base name without extension (e.g., "pulse")
	source string
}

// TestSnapshots loads all inputs, runs each through both stages, and
// compares with golden files.
func TestSnapshots(t *testing.T) {
	modules := loadInputModules(t, filepath.Join("testdata", "in"))
	if len(modules) == 0 {
		t.Fatal("no input modules found in testdata/in/")
	}

	for i := range modules {
		mf := &modules[i]
		t.Run(mf.name, func(t *testing.T) {
			floatMod, err := ir.ParseModuleFile(mf.name+".fx", mf.source)
			if err != nil {
				t.Fatalf("[%s] parse failed: %v", mf.name, err)
			}

			t.Run("ir", func(t *testing.T) {
				compareGolden(t, filepath.Join("testdata", "golden", "ir", mf.name+".fx"), floatMod.Format())
			})

			t.Run("fix", func(t *testing.T) {
				fixedMod, err := fix32.Transform(floatMod)
				if err != nil {
					t.Fatalf("[%s] transform failed: %v", mf.name, err)
				}
				compareGolden(t, filepath.Join("testdata", "golden", "fix", mf.name+".fx"), fixedMod.Format())
			})
		})
	}
}

// loadInputModules reads all .fx files from the given directory.
func loadInputModules(t *testing.T, dir string) []moduleFile {
	t.Helper()

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read input directory %q: %v", dir, err)
	}

	var modules []moduleFile
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".fx") {
			continue
		}
		data, readErr := os.ReadFile(filepath.Join(dir, entry.Name()))
		if readErr != nil {
			t.Fatalf("read module %q: %v", entry.Name(), readErr)
		}
		name := strings.TrimSuffix(entry.Name(), ".fx")
		modules = append(modules, moduleFile{name: name, source: string(data)})
	}

	// Sort for deterministic test order
	sort.Slice(modules, func(i, j int) bool {
		return modules[i].name < modules[j].name
	})

	return modules
}

// compareGolden compares actual output with the golden file at path.
// If UPDATE_GOLDEN is set, writes actual output as the new golden file.
func compareGolden(t *testing.T, path, actual string) {
	t.Helper()

	if os.Getenv("UPDATE_GOLDEN") != "" {
		if mkErr := os.MkdirAll(filepath.Dir(path), 0o755); mkErr != nil {
			t.Fatalf("create golden dir: %v", mkErr)
		}
		if wErr := os.WriteFile(path, []byte(actual), 0o644); wErr != nil {
			t.Fatalf("write golden file: %v", wErr)
		}
		t.Logf("updated golden file: %s", path)
		return
	}

	expected, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		t.Fatalf("golden file missing: %s\nRun with UPDATE_GOLDEN=1 to create.\n\nActual output:\n%s", path, truncate(actual, 500))
	}
	if err != nil {
		t.Fatalf("read golden file %s: %v", path, err)
	}

	// Normalize line endings for cross-platform comparison.
	// Git may convert \n to \r\n on Windows checkout.
	expectedStr := strings.ReplaceAll(string(expected), "\r\n", "\n")
	actualStr := strings.ReplaceAll(actual, "\r\n", "\n")

	if expectedStr != actualStr {
		diff := diffStrings(expectedStr, actualStr)
		t.Errorf("output differs from golden %s:\n%s", path, diff)
	}
}

// diffStrings produces a simple line-by-line diff showing the first
// difference and surrounding context.
func diffStrings(expected, actual string) string {
	expectedLines := strings.Split(expected, "\n")
	actualLines := strings.Split(actual, "\n")

	var sb strings.Builder
	maxLines := len(expectedLines)
	if len(actualLines) > maxLines {
		maxLines = len(actualLines)
	}

	const contextLines = 3
	firstDiff := -1
	for i := 0; i < maxLines; i++ {
		var eLine, aLine string
		if i < len(expectedLines) {
			eLine = expectedLines[i]
		}
		if i < len(actualLines) {
			aLine = actualLines[i]
		}
		if eLine != aLine {
			firstDiff = i
			break
		}
	}

	if firstDiff < 0 {
		return "(no difference found)"
	}

	fmt.Fprintf(&sb, "first difference at line %d:\n", firstDiff+1)
	fmt.Fprintf(&sb, "  expected lines: %d\n", len(expectedLines))
	fmt.Fprintf(&sb, "  actual lines:   %d\n\n", len(actualLines))

	// Show context around the first difference
	start := firstDiff - contextLines
	if start < 0 {
		start = 0
	}
	end := firstDiff + contextLines + 1
	if end > maxLines {
		end = maxLines
	}

	for i := start; i < end; i++ {
		prefix := " "
		var eLine, aLine string
		if i < len(expectedLines) {
			eLine = expectedLines[i]
		}
		if i < len(actualLines) {
			aLine = actualLines[i]
		}
		if eLine != aLine {
			prefix = "!"
		}
		fmt.Fprintf(&sb, "%s %4d expected: %s\n", prefix, i+1, truncate(eLine, 120))
		if eLine != aLine {
			fmt.Fprintf(&sb, "%s %4d actual:   %s\n", prefix, i+1, truncate(aLine, 120))
		}
	}

	return sb.String()
}

// truncate shortens a string to maxLen, adding "..." if truncated.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
