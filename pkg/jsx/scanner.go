package jsx

import "strings"

// tokenKind classifies the previous significant token, which decides
// whether '<' opens an element and whether '/' opens a regular expression.
type tokenKind uint8

const (
	tokStart   tokenKind = iota // start of input or of an expression hole
	tokPunct                    // operator or opening bracket
	tokKeyword                  // keyword that may precede an expression
	tokValue                    // identifier, literal or closing bracket
)

// exprKeywords may be directly followed by an expression operand.
var exprKeywords = map[string]bool{
	"return":     true,
	"typeof":     true,
	"instanceof": true,
	"in":         true,
	"of":         true,
	"new":        true,
	"delete":     true,
	"void":       true,
	"throw":      true,
	"case":       true,
	"do":         true,
	"else":       true,
	"yield":      true,
	"await":      true,
	"default":    true,
}

type compiler struct {
	opts Options
	src  string

	elements int
	requires int
}

func exprAllowed(prev tokenKind) bool {
	return prev != tokValue
}

// code copies JavaScript starting at i, compiling any JSX it meets. With
// inHole set it stops at the '}' that closes the enclosing expression hole
// and returns that brace's offset; otherwise it runs to the end of input.
func (c *compiler) code(i int, inHole bool) (string, int, error) {
	src := c.src
	open := i - 1

	var out strings.Builder
	prev := tokStart
	prevPunct := byte(0)
	prevWord := ""
	// One entry per open brace: true for a block, false for an object
	// literal. A closed block is followed by a statement, not an operator.
	var braces []bool

	for i < len(src) {
		ch := src[i]
		switch {
		case isSpace(ch):
			out.WriteByte(ch)
			i++
			continue

		case ch == '/' && i+1 < len(src) && src[i+1] == '/':
			end := lineEnd(src, i)
			out.WriteString(src[i:end])
			i = end
			continue

		case ch == '/' && i+1 < len(src) && src[i+1] == '*':
			end := len(src)
			if k := strings.Index(src[i+2:], "*/"); k >= 0 {
				end = i + 2 + k + 2
			}
			out.WriteString(src[i:end])
			i = end
			continue

		case ch == '\'' || ch == '"':
			end := skipString(src, i)
			out.WriteString(src[i:end])
			i = end
			prev = tokValue

		case ch == '`':
			tpl, end, err := c.template(i)
			if err != nil {
				return "", 0, err
			}
			out.WriteString(tpl)
			i = end
			prev = tokValue

		case ch == '/':
			if exprAllowed(prev) {
				end := skipRegex(src, i)
				out.WriteString(src[i:end])
				i = end
				prev = tokValue
			} else {
				out.WriteByte(ch)
				i++
				prev = tokPunct
			}

		case ch == '<' && exprAllowed(prev) && c.looksLikeElement(i):
			expr, end, err := c.element(i)
			if err != nil {
				return "", 0, err
			}
			out.WriteString(expr)
			i = end
			prev = tokValue

		case isIdentStart(ch):
			end := identEnd(src, i)
			word := src[i:end]
			afterDot := prev == tokPunct && prevPunct == '.'
			if word == "require" && !afterDot && c.opts.RequireWrapper != "" && isReactRequire(src, end) {
				out.WriteString(c.opts.RequireWrapper)
				c.requires++
			} else {
				out.WriteString(word)
			}
			i = end
			if exprKeywords[word] && !afterDot {
				prev = tokKeyword
				prevWord = word
			} else {
				prev = tokValue
			}

		case isDigit(ch) || (ch == '.' && i+1 < len(src) && isDigit(src[i+1])):
			end := i + 1
			for end < len(src) && (isIdentChar(src[end]) || src[end] == '.') {
				end++
			}
			out.WriteString(src[i:end])
			i = end
			prev = tokValue

		case ch == '{':
			braces = append(braces, opensBlock(src, i, prev, prevPunct, prevWord, inHole))
			out.WriteByte(ch)
			i++
			prev = tokPunct

		case ch == '}':
			if len(braces) == 0 && inHole {
				return out.String(), i, nil
			}
			block := false
			if n := len(braces); n > 0 {
				block = braces[n-1]
				braces = braces[:n-1]
			}
			out.WriteByte(ch)
			i++
			if block {
				prev = tokPunct
			} else {
				prev = tokValue
			}

		case ch == ')' || ch == ']':
			out.WriteByte(ch)
			i++
			prev = tokValue

		case (ch == '+' || ch == '-') && i+1 < len(src) && src[i+1] == ch:
			// Treated as postfix, so a following '/' divides.
			out.WriteString(src[i : i+2])
			i += 2
			prev = tokValue

		default:
			out.WriteByte(ch)
			i++
			prev = tokPunct
		}
		prevPunct = 0
		if prev == tokPunct {
			prevPunct = ch
		}
	}

	if inHole {
		return "", 0, c.errorf(ErrorUnterminatedExpression, open, "expression is missing its closing '}'")
	}
	return out.String(), i, nil
}

// opensBlock reports whether the '{' at i starts a block rather than an
// object literal, judged by the token before it.
func opensBlock(src string, i int, prev tokenKind, prevPunct byte, prevWord string, inHole bool) bool {
	switch prev {
	case tokStart:
		return !inHole
	case tokValue:
		// ") {", "class A {", "try {"
		return true
	case tokKeyword:
		return prevWord == "else" || prevWord == "do"
	}
	switch prevPunct {
	case ';', '{', '}':
		return true
	case '>':
		j := i - 1
		for j >= 0 && isSpace(src[j]) {
			j--
		}
		// "=>" body
		return j > 0 && src[j] == '>' && src[j-1] == '='
	}
	return false
}

// template copies a template literal starting at the backtick at i,
// compiling the code inside ${...} substitutions.
func (c *compiler) template(i int) (string, int, error) {
	src := c.src
	var out strings.Builder
	out.WriteByte('`')
	j := i + 1
	for j < len(src) {
		switch {
		case src[j] == '\\':
			end := min(j+2, len(src))
			out.WriteString(src[j:end])
			j = end
		case src[j] == '`':
			out.WriteByte('`')
			return out.String(), j + 1, nil
		case src[j] == '$' && j+1 < len(src) && src[j+1] == '{':
			inner, closeBrace, err := c.code(j+2, true)
			if err != nil {
				return "", 0, err
			}
			out.WriteString("${")
			out.WriteString(inner)
			out.WriteByte('}')
			j = closeBrace + 1
		default:
			out.WriteByte(src[j])
			j++
		}
	}
	return out.String(), j, nil
}

// skipString returns the offset just past the quoted string at i. An
// unterminated string ends at the line break.
func skipString(src string, i int) int {
	quote := src[i]
	for j := i + 1; j < len(src); j++ {
		switch src[j] {
		case '\\':
			j++
		case '\n':
			return j
		case quote:
			return j + 1
		}
	}
	return len(src)
}

// skipRegex returns the offset just past the regular expression literal at
// i, including its flags.
func skipRegex(src string, i int) int {
	inClass := false
	j := i + 1
	for j < len(src) {
		switch src[j] {
		case '\\':
			j += 2
			continue
		case '[':
			inClass = true
		case ']':
			inClass = false
		case '\n':
			return j
		case '/':
			if !inClass {
				j++
				for j < len(src) && isIdentChar(src[j]) {
					j++
				}
				return j
			}
		}
		j++
	}
	return len(src)
}

// isReactRequire reports whether src[i:] continues a require identifier
// with ('react') or ("react").
func isReactRequire(src string, i int) bool {
	i = skipSpace(src, i)
	if i >= len(src) || src[i] != '(' {
		return false
	}
	i = skipSpace(src, i+1)
	if i >= len(src) || (src[i] != '\'' && src[i] != '"') {
		return false
	}
	quote := src[i]
	rest := src[i+1:]
	if !strings.HasPrefix(rest, "react") || len(rest) <= len("react") || rest[len("react")] != quote {
		return false
	}
	i = skipSpace(src, i+1+len("react")+1)
	return i < len(src) && src[i] == ')'
}

func lineEnd(src string, i int) int {
	if k := strings.IndexByte(src[i:], '\n'); k >= 0 {
		return i + k
	}
	return len(src)
}

func skipSpace(src string, i int) int {
	for i < len(src) && isSpace(src[i]) {
		i++
	}
	return i
}

func identEnd(src string, i int) int {
	j := i + 1
	for j < len(src) && isIdentChar(src[j]) {
		j++
	}
	return j
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\v' || c == '\f'
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isIdentStart(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c == '_' || c == '$' || c >= 0x80
}

func isIdentChar(c byte) bool { return isIdentStart(c) || isDigit(c) }

func isTagStart(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c == '_' || c == '$'
}

func isTagChar(c byte) bool {
	return isTagStart(c) || isDigit(c) || c == '.' || c == '-' || c == ':'
}
