package htmlsec

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/dop251/goja/ast"
	"github.com/dop251/goja/parser"

	"evalgo.org/tagscope/models"
)

var placeholderRe = regexp.MustCompile(`\{\{[^{}]*\}\}`)

// neutralizePlaceholders replaces GTM {{Name}} placeholders with an
// identifier so the script parses as plain JavaScript.
func neutralizePlaceholders(script string) string {
	return placeholderRe.ReplaceAllString(script, "__gtm_var")
}

// unguardedFunction is a top-level function whose body has no try/catch.
type unguardedFunction struct {
	Name       string
	Statements int
}

// parseProgram parses script text with the goja parser.
func parseProgram(script string) (*ast.Program, error) {
	prog, err := parser.ParseFile(nil, "", neutralizePlaceholders(script), 0, parser.WithDisableSourceMaps)
	if err != nil {
		return nil, fmt.Errorf("parse script: %w", err)
	}
	return prog, nil
}

// unguardedFunctions returns the top-level functions and immediately
// invoked function expressions with more than threshold statements in their
// body and no try/catch at the top of that body. Top-level statements that
// are themselves inside a try block are guarded.
func unguardedFunctions(prog *ast.Program, threshold int) []unguardedFunction {
	var out []unguardedFunction
	for _, stmt := range prog.Body {
		name, body := topLevelFunction(stmt)
		if body == nil || len(body.List) <= threshold || hasCatch(body.List) {
			continue
		}
		out = append(out, unguardedFunction{Name: name, Statements: len(body.List)})
	}
	return out
}

// topLevelFunction extracts the function declared or invoked by a
// top-level statement.
func topLevelFunction(stmt ast.Statement) (string, *ast.BlockStatement) {
	switch s := stmt.(type) {
	case *ast.FunctionDeclaration:
		if s.Function == nil {
			return "", nil
		}
		return functionName(s.Function), s.Function.Body
	case *ast.ExpressionStatement:
		return invokedFunction(s.Expression)
	case *ast.VariableStatement:
		for _, b := range s.List {
			if name, body := invokedFunction(b.Initializer); body != nil {
				return name, body
			}
		}
	}
	return "", nil
}

// invokedFunction unwraps IIFE shapes: (function(){...})(), !function(){...}()
// and (() => {...})().
func invokedFunction(expr ast.Expression) (string, *ast.BlockStatement) {
	switch e := expr.(type) {
	case *ast.UnaryExpression:
		return invokedFunction(e.Operand)
	case *ast.CallExpression:
		switch fn := e.Callee.(type) {
		case *ast.FunctionLiteral:
			return functionName(fn), fn.Body
		case *ast.ArrowFunctionLiteral:
			if body, ok := fn.Body.(*ast.BlockStatement); ok {
				return "(arrow)", body
			}
		}
	}
	return "", nil
}

func functionName(fn *ast.FunctionLiteral) string {
	if fn.Name != nil && fn.Name.Name != "" {
		return string(fn.Name.Name)
	}
	return "(anonymous)"
}

func hasCatch(list []ast.Statement) bool {
	for _, s := range list {
		if t, ok := s.(*ast.TryStatement); ok && t.Catch != nil {
			return true
		}
	}
	return false
}

// ruleNoTryCatch flags large unguarded top-level functions. A script that
// does not parse yields a parse error and no finding.
func ruleNoTryCatch(script string, threshold int) (Finding, bool, error) {
	if strings.TrimSpace(script) == "" {
		return Finding{}, false, nil
	}
	prog, err := parseProgram(script)
	if err != nil {
		return Finding{}, false, err
	}
	fns := unguardedFunctions(prog, threshold)
	if len(fns) == 0 {
		return Finding{}, false, nil
	}
	f := fns[0]
	return Finding{
		Category: models.CategoryHTMLNoTryCatch,
		Severity: models.SeverityMinor,
		Reason: fmt.Sprintf("function %s has %d statements and no try/catch (threshold %d)",
			f.Name, f.Statements, threshold),
	}, true, nil
}
