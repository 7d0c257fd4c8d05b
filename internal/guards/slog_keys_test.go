package guards

import (
	"go/ast"
	"go/parser"
	"go/token"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"testing"
)

// TestSlogKeysAreSnakeCase scans Go source files for slog calls and verifies
// that all attribute keys are snake_case (webid_host, run_id, not webIdHost).
func TestSlogKeysAreSnakeCase(t *testing.T) {
	snakeCase := regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

	repoRoot := findRepoRoot(t)
	var violations []string

	for _, dir := range []string{"internal", "cmd"} {
		walkSources(t, repoRoot, filepath.Join(repoRoot, dir), func(rel, content string) {
			fset := token.NewFileSet()
			node, err := parser.ParseFile(fset, rel, content, 0)
			if err != nil {
				t.Errorf("%s: parse failed: %v", rel, err)
				return
			}

			ast.Inspect(node, func(n ast.Node) bool {
				call, ok := n.(*ast.CallExpr)
				if !ok {
					return true
				}
				method, ok := slogMethod(call)
				if !ok {
					return true
				}
				for _, key := range slogKeys(call, method) {
					if !snakeCase.MatchString(key) {
						pos := fset.Position(call.Pos())
						violations = append(violations,
							rel+":"+strconv.Itoa(pos.Line)+": slog key \""+key+"\" is not snake_case")
					}
				}
				return true
			})
		})
	}

	if len(violations) > 0 {
		t.Errorf("Found %d slog keys that are not snake_case:\n%s",
			len(violations), strings.Join(violations, "\n"))
	}
}

// slogMethod reports whether call looks like a key-value slog call and
// returns the method name. Receivers are matched by name: anything containing
// "log", or appctx.GetLogger(ctx).
func slogMethod(call *ast.CallExpr) (string, bool) {
	sel, ok := call.Fun.(*ast.SelectorExpr)
	if !ok {
		return "", false
	}

	switch sel.Sel.Name {
	case "Debug", "Info", "Warn", "Error", "With":
	default:
		return "", false
	}

	switch x := sel.X.(type) {
	case *ast.Ident:
		if strings.Contains(strings.ToLower(x.Name), "log") {
			return sel.Sel.Name, true
		}
	case *ast.SelectorExpr:
		if strings.Contains(strings.ToLower(x.Sel.Name), "log") {
			return sel.Sel.Name, true
		}
	case *ast.CallExpr:
		if fn, ok := x.Fun.(*ast.SelectorExpr); ok && fn.Sel.Name == "GetLogger" {
			return sel.Sel.Name, true
		}
	}
	return "", false
}

// slogKeys extracts string literal keys. With takes pairs from the first
// argument; the level methods take a message first.
func slogKeys(call *ast.CallExpr, method string) []string {
	start := 1
	if method == "With" {
		start = 0
	}

	var keys []string
	for i := start; i < len(call.Args); i += 2 {
		lit, ok := call.Args[i].(*ast.BasicLit)
		if !ok || lit.Kind != token.STRING {
			continue
		}
		if key, err := strconv.Unquote(lit.Value); err == nil && key != "" {
			keys = append(keys, key)
		}
	}
	return keys
}
