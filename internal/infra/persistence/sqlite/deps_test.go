// Package sqlite provides dependency boundary tests for the sqlite store.
package sqlite

import (
	"go/build"
	"strings"
	"testing"
)

var allowedInternalImports = map[string]struct{}{
	"transact/pkg/domain":                           {},
	"transact/internal/infra/persistence/entitysql": {},
	"transact/internal/infra/persistence/session":   {},
	"transact/internal/infra/persistence/writeset":  {},
}

func TestImportsAreDomainOrPersistence(t *testing.T) {
	pkg, err := build.Default.ImportDir(".", 0)
	if err != nil {
		t.Fatalf("import dir: %v", err)
	}
	for _, imp := range pkg.Imports {
		if !strings.HasPrefix(imp, "transact/") {
			continue
		}
		if _, ok := allowedInternalImports[imp]; ok {
			continue
		}
		t.Fatalf("unexpected dependency: %s", imp)
	}
}
