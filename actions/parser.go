package actions

import (
	"strconv"
	"strings"

	"github.com/expr-lang/expr/ast"
	"github.com/expr-lang/expr/parser"
)

// Parse extracts top-level action calls from free-form model output and
// validates each against the registry. Fenced code blocks are unwrapped,
// line comments stripped, prose lines ignored. Sequence limits apply:
// at most one say per sequence and at most ten calls total; an unknown
// call is marked invalid but does not abort the rest.
//
// The call grammar itself is not hand-rolled: each candidate substring
// is handed to the expr parser and accepted only when it produces a
// single call node over constant arguments.
func (r *Registry) Parse(text string) []MotorOutput {
	var outputs []MotorOutput
	says := 0
	for _, candidate := range extractCandidates(text) {
		name, args, ok := parseCall(candidate)
		if !ok {
			continue
		}
		out := r.validate(name, args)
		if out.Valid && out.Action == "say" {
			says++
			if says > maxSaysPerSequence {
				out.Valid = false
				out.Error = "say limit exceeded for sequence"
			}
		}
		outputs = append(outputs, out)
		if len(outputs) >= maxCallsPerSequence {
			break
		}
	}
	return outputs
}

// Unparse renders a validated call back to its source form, used by the
// round-trip tests.
func Unparse(out MotorOutput) string {
	var sb strings.Builder
	sb.WriteString(out.Action)
	sb.WriteByte('(')
	for i, p := range out.Params {
		if i > 0 {
			sb.WriteString(", ")
		}
		switch v := p.(type) {
		case string:
			sb.WriteByte('"')
			sb.WriteString(strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(v))
			sb.WriteByte('"')
		case float64:
			sb.WriteString(trimFloat(v))
		}
	}
	sb.WriteByte(')')
	return sb.String()
}

func trimFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// extractCandidates scans for name(...) substrings with balanced parens,
// skipping fence markers and stripping // and # line comments.
func extractCandidates(text string) []string {
	var out []string
	for _, rawLine := range strings.Split(text, "\n") {
		line := stripComment(rawLine)
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "```") {
			continue
		}
		for i := 0; i < len(line); {
			start, open := findCallStart(line, i)
			if start < 0 {
				break
			}
			end := matchParen(line, open)
			if end < 0 {
				break
			}
			out = append(out, line[start:end+1])
			i = end + 1
		}
	}
	return out
}

// stripComment removes // and # comments outside string literals.
func stripComment(line string) string {
	inString := false
	for i := 0; i < len(line); i++ {
		switch line[i] {
		case '"':
			if i == 0 || line[i-1] != '\\' {
				inString = !inString
			}
		case '#':
			if !inString {
				return line[:i]
			}
		case '/':
			if !inString && i+1 < len(line) && line[i+1] == '/' {
				return line[:i]
			}
		}
	}
	return line
}

// findCallStart locates the next identifier immediately followed by '('
// at or after from. Returns the identifier start and the paren index.
func findCallStart(line string, from int) (start, open int) {
	for i := from; i < len(line); i++ {
		if !isIdentStart(line[i]) {
			continue
		}
		j := i
		for j < len(line) && isIdentByte(line[j]) {
			j++
		}
		if j < len(line) && line[j] == '(' {
			return i, j
		}
		i = j
	}
	return -1, -1
}

// matchParen returns the index of the paren closing line[open], honoring
// string literals, or -1.
func matchParen(line string, open int) int {
	depth := 0
	inString := false
	for i := open; i < len(line); i++ {
		switch line[i] {
		case '"':
			if line[i-1] != '\\' {
				inString = !inString
			}
		case '(':
			if !inString {
				depth++
			}
		case ')':
			if !inString {
				depth--
				if depth == 0 {
					return i
				}
			}
		}
	}
	return -1
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentByte(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9')
}

// parseCall runs the expr parser over one candidate and accepts only a
// bare call of an identifier over constant arguments.
func parseCall(src string) (name string, args []any, ok bool) {
	tree, err := parser.Parse(src)
	if err != nil {
		return "", nil, false
	}
	call, isCall := tree.Node.(*ast.CallNode)
	if !isCall {
		return "", nil, false
	}
	ident, isIdent := call.Callee.(*ast.IdentifierNode)
	if !isIdent {
		return "", nil, false
	}
	args = make([]any, 0, len(call.Arguments))
	for _, argNode := range call.Arguments {
		v, constant := constValue(argNode)
		if !constant {
			return "", nil, false
		}
		args = append(args, v)
	}
	return ident.Value, args, true
}

// constValue evaluates literal nodes (including negated numbers).
func constValue(node ast.Node) (any, bool) {
	switch n := node.(type) {
	case *ast.StringNode:
		return n.Value, true
	case *ast.IntegerNode:
		return n.Value, true
	case *ast.FloatNode:
		return n.Value, true
	case *ast.BoolNode:
		return n.Value, true
	case *ast.UnaryNode:
		if n.Operator != "-" {
			return nil, false
		}
		inner, ok := constValue(n.Node)
		if !ok {
			return nil, false
		}
		switch v := inner.(type) {
		case int:
			return -v, true
		case float64:
			return -v, true
		}
		return nil, false
	default:
		return nil, false
	}
}
