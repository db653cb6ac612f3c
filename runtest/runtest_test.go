package runtest

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
)

// TestFixtures runs every fixture under testdata/ on all three backends.
func TestFixtures(t *testing.T) {
	entries, err := os.ReadDir("testdata")
	if err != nil {
		t.Fatalf("read testdata: %v", err)
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".fx") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	if len(names) == 0 {
		t.Fatal("no fixtures in testdata/")
	}

	for _, name := range names {
		t.Run(strings.TrimSuffix(name, ".fx"), func(t *testing.T) {
			data, err := os.ReadFile(filepath.Join("testdata", name))
			if err != nil {
				t.Fatal(err)
			}
			f, err := ParseFixture(name, string(data))
			if err != nil {
				t.Fatal(err)
			}
			for _, failure := range f.Run(4) {
				t.Error(failure)
			}
		})
	}
}

func TestParseCheck(t *testing.T) {
	chk, err := parseCheck("add(2.0, -3.5) == 5.0")
	if err != nil {
		t.Fatal(err)
	}
	if chk.Name != "add" || len(chk.Args) != 2 || chk.Args[1] != -3.5 || chk.Want != 5 || chk.Tol != 0 {
		t.Errorf("parsed %+v", chk)
	}

	chk, err = parseCheck("third(1.0) ~= 0.3333 (tolerance: 0.001)")
	if err != nil {
		t.Fatal(err)
	}
	if chk.Tol != 0.001 || chk.Want != 0.3333 {
		t.Errorf("parsed %+v", chk)
	}

	chk, err = parseCheck("nullary() == 1.0")
	if err != nil {
		t.Fatal(err)
	}
	if len(chk.Args) != 0 {
		t.Errorf("parsed %+v", chk)
	}

	for _, bad := range []string{
		"add(1.0, 2.0)",
		"add(1.0 == 2.0",
		"add(x) == 1.0",
		"add(1.0) ~= 1.0",
		"add(1.0) ~= 1.0 (tolerance: -1)",
		"add(1.0) == banana",
		"@3 add(1.0) == 2.0",
		"@+x add(1.0) == 2.0",
		"@+2",
	} {
		if _, err := parseCheck(bad); err == nil {
			t.Errorf("parseCheck(%q) accepted malformed directive", bad)
		}
	}
}

func TestParseCheckOffsets(t *testing.T) {
	chk, err := parseCheck("@+3 clamp(5.0, 0.0, 3.0) == 3.0")
	if err != nil {
		t.Fatal(err)
	}
	if chk.offset != 3 || chk.Name != "clamp" || chk.Want != 3 {
		t.Errorf("parsed %+v", chk)
	}

	chk, err = parseCheck("@-2 f(1.0) == 2.0")
	if err != nil {
		t.Fatal(err)
	}
	if chk.offset != -2 {
		t.Errorf("offset = %d, want -2", chk.offset)
	}
}

func TestParseFixtureDirectives(t *testing.T) {
	src := "// run: f(1.0) == 2.0\n// run: f(2.0) ~= 4.0 (tolerance: 0.01)\nfunc f(f32) -> f32 {\nblock0(x: f32):\n    y = fadd x, x\n    return y\n}\n"
	f, err := ParseFixture("t.fx", src)
	if err != nil {
		t.Fatal(err)
	}
	if len(f.Checks) != 2 || f.Checks[0].Line != 1 || f.Checks[1].Line != 2 {
		t.Errorf("checks = %+v", f.Checks)
	}

	offSrc := "// run: @+4 f(1.0) == 2.0\nfunc f(f32) -> f32 {\nblock0(x: f32):\n    y = fadd x, x\n    return y\n}\n"
	f, err = ParseFixture("t.fx", offSrc)
	if err != nil {
		t.Fatal(err)
	}
	if f.Checks[0].Line != 5 {
		t.Errorf("offset check attributed to line %d, want 5", f.Checks[0].Line)
	}

	f, err = ParseFixture("t.fx", "// error: E0201: square root has no fixed-point rule\n")
	if err != nil {
		t.Fatal(err)
	}
	if f.WantErr != "E0201" {
		t.Errorf("WantErr = %q, want E0201", f.WantErr)
	}

	if _, err := ParseFixture("t.fx", "func f() {\nblock0:\n    return\n}\n"); err == nil {
		t.Error("fixture without directives accepted")
	}
	if _, err := ParseFixture("t.fx", "// error: E0101\n// run: f(1.0) == 2.0\n"); err == nil {
		t.Error("mixed error/run fixture accepted")
	}
}

func TestRunReportsMismatch(t *testing.T) {
	src := "// run: f(1.0) == 3.0\nfunc f(f32) -> f32 {\nblock0(x: f32):\n    y = fadd x, x\n    return y\n}\n"
	f, err := ParseFixture("mismatch.fx", src)
	if err != nil {
		t.Fatal(err)
	}
	failures := f.Run(1)
	if len(failures) != 1 {
		t.Fatalf("got %d failures, want 1: %v", len(failures), failures)
	}
	if !strings.Contains(failures[0].Error(), "mismatch.fx:1") {
		t.Errorf("failure lacks position: %v", failures[0])
	}
}

func TestRunWrongErrorCode(t *testing.T) {
	src := "// error: E0101\nfunc root(f32) -> f32 {\nblock0(a: f32):\n    r = fsqrt a\n    return r\n}\n"
	f, err := ParseFixture("wrong.fx", src)
	if err != nil {
		t.Fatal(err)
	}
	failures := f.Run(1)
	if len(failures) != 1 || !strings.Contains(failures[0].Error(), "E0201") {
		t.Errorf("expected code mismatch report, got %v", failures)
	}
}
