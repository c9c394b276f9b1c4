package testutil

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type recordingFatal struct{ msg string }

func (r *recordingFatal) Fatalf(format string, args ...any) { r.msg = fmt.Sprintf(format, args...) }

func writeFile(t *testing.T, dir, name, src string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(src), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

func TestPredicates(t *testing.T) {
	cases := []struct {
		path     string
		internal bool
		infra    bool
	}{
		{"transact/pkg/domain", false, false},
		{"transact/internal/config", true, false},
		{"transact/internal/infra/persistence/memory", true, true},
		{"github.com/redis/go-redis/v9", false, false},
	}
	for _, tc := range cases {
		if got := InternalImportForbidden(tc.path); got != tc.internal {
			t.Fatalf("InternalImportForbidden(%s) = %v", tc.path, got)
		}
		if got := InfraImportForbidden(tc.path); got != tc.infra {
			t.Fatalf("InfraImportForbidden(%s) = %v", tc.path, got)
		}
	}
}

func TestDirectImportViolations(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.go", `package tmp
import (
	"fmt"
	"example.com/internal/secret"
)
func A() { fmt.Println(secret.X) }`)
	writeFile(t, dir, "a_test.go", `package tmp
import "example.com/internal/other"`)
	writeFile(t, dir, "notes.txt", "import \"example.com/internal/txt\"")
	if err := os.Mkdir(filepath.Join(dir, "sub"), 0o750); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	writeFile(t, filepath.Join(dir, "sub"), "b.go", `package sub
import "example.com/internal/nested"`)

	viols, err := directImportViolations(dir, InternalImportForbidden)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(viols) != 1 || viols[0] != "example.com/internal/secret (in a.go)" {
		t.Fatalf("expected only the non-test top-level violation, got %v", viols)
	}
}

func TestDirectImportViolationsErrors(t *testing.T) {
	if _, err := directImportViolations(filepath.Join(t.TempDir(), "missing"), InternalImportForbidden); err == nil {
		t.Fatalf("expected error for missing dir")
	}
	dir := t.TempDir()
	writeFile(t, dir, "bad.go", "not go")
	if _, err := directImportViolations(dir, InternalImportForbidden); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestAssertNoDirectImportsPasses(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "ok.go", `package tmp
import "fmt"
func X() { fmt.Println() }`)
	AssertNoDirectImports(t, dir, InternalImportForbidden, "fmt is allowed")
}

func TestTransitiveViolationsWithStubbedLoader(t *testing.T) {
	orig := loadDeps
	t.Cleanup(func() { loadDeps = orig })
	loadDeps = func(string) ([]string, error) {
		return []string{"fmt", "transact/pkg/domain"}, nil
	}
	AssertNoTransitiveDependency(t, ".", InternalImportForbidden, "stub has no internal deps")

	viols := transitiveViolations([]string{"fmt", "transact/internal/config"}, InternalImportForbidden)
	if len(viols) != 1 || viols[0] != "transact/internal/config" {
		t.Fatalf("unexpected violations %v", viols)
	}
}

func TestFailHelpersReport(t *testing.T) {
	var r recordingFatal
	failIfTransitiveViolations(&r, "reason", nil)
	failIfDirectViolations(&r, "reason", nil)
	if r.msg != "" {
		t.Fatalf("no violations must not fail, got %q", r.msg)
	}
	failIfTransitiveViolations(&r, "layering", []string{"x/internal/y"})
	if !strings.Contains(r.msg, "layering") || !strings.Contains(r.msg, "x/internal/y") {
		t.Fatalf("unexpected message %q", r.msg)
	}
	failIfDirectViolations(&r, "direct", []string{"x/internal/z (in a.go)"})
	if !strings.Contains(r.msg, "forbidden direct imports") {
		t.Fatalf("unexpected message %q", r.msg)
	}
}

func TestLoadDepsOnThisPackage(t *testing.T) {
	deps, err := loadDeps(".")
	if err != nil {
		t.Skipf("packages unavailable: %v", err)
	}
	found := false
	for _, d := range deps {
		if d == "golang.org/x/tools/go/packages" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected x/tools in dependency closure")
	}
}
