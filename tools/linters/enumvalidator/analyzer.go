package enumvalidator

import (
	"go/ast"
	"go/token"
	"go/types"

	"golang.org/x/tools/go/analysis"
)

// EnumTypes are the string enums whose values must come from their declared
// constants. Planner output is normalized into these types, so a stray
// literal would bypass the normalization.
var EnumTypes = map[string]bool{
	"ActionType":      true,
	"JobStatus":       true,
	"ExecutionStatus": true,
	"PlannerStatus":   true,
}

var Analyzer = &analysis.Analyzer{
	Name: "enumvalidator",
	Doc:  "checks that enum fields are set from declared constants, not string literals",
	Run:  run,
}

func run(pass *analysis.Pass) (any, error) {
	for _, file := range pass.Files {
		ast.Inspect(file, func(n ast.Node) bool {
			switch node := n.(type) {
			case *ast.AssignStmt:
				for i, lhs := range node.Lhs {
					if i >= len(node.Rhs) {
						continue
					}
					sel, ok := lhs.(*ast.SelectorExpr)
					if !ok || !isEnum(pass, sel) || !isStringLiteral(node.Rhs[i]) {
						continue
					}
					pass.Reportf(node.Pos(),
						"enum field %s assigned string literal; use defined constant instead",
						sel.Sel.Name)
				}

			case *ast.CompositeLit:
				for _, elt := range node.Elts {
					kv, ok := elt.(*ast.KeyValueExpr)
					if !ok || !isStringLiteral(kv.Value) {
						continue
					}
					key, ok := kv.Key.(*ast.Ident)
					if !ok || !isEnum(pass, key) {
						continue
					}
					pass.Reportf(kv.Pos(),
						"enum field %s set to string literal; use defined constant instead",
						key.Name)
				}
			}
			return true
		})
	}
	return nil, nil
}

func isEnum(pass *analysis.Pass, expr ast.Expr) bool {
	t := pass.TypesInfo.TypeOf(expr)
	if t == nil {
		return false
	}
	named, ok := t.(*types.Named)
	return ok && EnumTypes[named.Obj().Name()]
}

func isStringLiteral(expr ast.Expr) bool {
	lit, ok := expr.(*ast.BasicLit)
	return ok && lit.Kind == token.STRING
}
