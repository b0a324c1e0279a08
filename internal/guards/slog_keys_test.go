package guards

import (
	"go/ast"
	"go/parser"
	"go/token"
	"regexp"
	"strconv"
	"strings"
	"testing"
)

var snakeCase = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// TestSlogKeysAreSnakeCase parses every non-test source file and checks the
// literal keys passed to logger calls.
func TestSlogKeysAreSnakeCase(t *testing.T) {
	var violations []string
	walkSources(t, func(f sourceFile) {
		if f.test {
			return
		}
		fset := token.NewFileSet()
		node, err := parser.ParseFile(fset, f.rel, f.content, 0)
		if err != nil {
			t.Errorf("parse %s: %v", f.rel, err)
			return
		}
		ast.Inspect(node, func(n ast.Node) bool {
			call, ok := n.(*ast.CallExpr)
			if !ok {
				return true
			}
			first, ok := slogCall(call)
			if !ok {
				return true
			}
			for _, key := range slogKeys(call.Args, first) {
				if !snakeCase.MatchString(key) {
					violations = append(violations,
						f.rel+":"+strconv.Itoa(fset.Position(call.Pos()).Line)+": slog key \""+key+"\" is not snake_case")
				}
			}
			return true
		})
	})
	if len(violations) > 0 {
		t.Errorf("found %d slog keys that are not snake_case:\n%s", len(violations), strings.Join(violations, "\n"))
	}
}

// slogCall reports whether call looks like a logger method taking key-value
// pairs, and the index of the first pair argument.
func slogCall(call *ast.CallExpr) (int, bool) {
	sel, ok := call.Fun.(*ast.SelectorExpr)
	if !ok {
		return 0, false
	}
	var first int
	switch sel.Sel.Name {
	case "Debug", "Info", "Warn", "Error":
		first = 1
	case "With":
		first = 0
	default:
		return 0, false
	}

	switch x := sel.X.(type) {
	case *ast.Ident:
		name := strings.ToLower(x.Name)
		return first, strings.Contains(name, "log") || name == "l"
	case *ast.SelectorExpr:
		return first, strings.Contains(strings.ToLower(x.Sel.Name), "log")
	case *ast.CallExpr:
		if inner, ok := x.Fun.(*ast.SelectorExpr); ok {
			return first, inner.Sel.Name == "GetLogger"
		}
	}
	return 0, false
}

// slogKeys walks the arguments the way slog pairs them: a string literal
// consumes the following value, any call is taken as an Attr.
func slogKeys(args []ast.Expr, first int) []string {
	var keys []string
	for i := first; i < len(args); {
		switch arg := args[i].(type) {
		case *ast.BasicLit:
			if arg.Kind == token.STRING {
				if key, err := strconv.Unquote(arg.Value); err == nil {
					keys = append(keys, key)
				}
			}
			i += 2
		case *ast.CallExpr:
			i++
		default:
			i += 2
		}
	}
	return keys
}
