package config

import (
	"go/ast"
	"go/parser"
	"go/token"
	"testing"
)

func TestExportedTypesAreDocumented(t *testing.T) {
	fset := token.NewFileSet()
	f, err := parser.ParseFile(fset, "config.go", nil, parser.ParseComments)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	for _, decl := range f.Decls {
		gen, ok := decl.(*ast.GenDecl)
		if !ok || gen.Tok != token.TYPE {
			continue
		}
		for _, spec := range gen.Specs {
			ts := spec.(*ast.TypeSpec)
			if ts.Name.IsExported() && gen.Doc == nil && ts.Doc == nil {
				t.Errorf("exported type %s has no doc comment", ts.Name.Name)
			}
		}
	}
}
