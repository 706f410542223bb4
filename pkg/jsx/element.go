package jsx

import (
	"html"
	"strings"
)

// attr is one entry of an element's properties object.
type attr struct {
	name   string
	value  string
	spread bool
}

// looksLikeElement reports whether the '<' at i opens a JSX element or
// fragment rather than a comparison or a TypeScript type parameter list.
func (c *compiler) looksLikeElement(i int) bool {
	src := c.src
	j := i + 1
	if j >= len(src) {
		return false
	}
	if src[j] == '>' {
		return true
	}
	if !isTagStart(src[j]) {
		return false
	}
	k := j + 1
	for k < len(src) && isTagChar(src[k]) {
		k++
	}
	m := skipSpace(src, k)
	if m >= len(src) {
		return true
	}
	switch src[m] {
	case '>', '/', '{':
		return true
	case ',':
		// <T,>(x) => x
		return false
	}
	if m == k || !isTagStart(src[m]) {
		return false
	}
	// <T extends U> is a type parameter, <a extends="x"> is not.
	if end := identEnd(src, m); src[m:end] == "extends" {
		n := skipSpace(src, end)
		return n >= len(src) || !isIdentStart(src[n])
	}
	return true
}

// element compiles the element or fragment whose '<' is at i and returns
// the generated call and the offset just past its closing tag.
func (c *compiler) element(i int) (string, int, error) {
	src := c.src
	j := i + 1

	fragment := false
	name := ""
	if src[j] == '>' {
		fragment = true
		j++
	} else {
		k := j
		for k < len(src) && isTagChar(src[k]) {
			k++
		}
		name = src[j:k]
		j = k
	}

	var attrs []attr
	if !fragment {
		selfClosed := false
		var err error
		attrs, j, selfClosed, err = c.attributes(i, name, j)
		if err != nil {
			return "", 0, err
		}
		if selfClosed {
			return c.build(name, false, attrs, nil), j, nil
		}
	}

	var children []string
	for {
		if j >= len(src) {
			return "", 0, c.errorf(ErrorUnterminated, i, "%s is missing its closing tag", describe(name, fragment))
		}

		if strings.HasPrefix(src[j:], "</") {
			k := skipSpace(src, j+2)
			m := k
			for m < len(src) && isTagChar(src[m]) {
				m++
			}
			closeName := src[k:m]
			m = skipSpace(src, m)
			if m >= len(src) || src[m] != '>' {
				return "", 0, c.errorf(ErrorUnterminated, j, "closing tag is not terminated by '>'")
			}
			if closeName != name {
				return "", 0, c.errorf(ErrorMismatchedTag, j, "expected closing tag for %s but found </%s>", describe(name, fragment), closeName)
			}
			return c.build(name, fragment, attrs, children), m + 1, nil
		}

		switch src[j] {
		case '<':
			if !c.looksLikeElement(j) {
				return "", 0, c.errorf(ErrorUnterminated, j, "unexpected '<' inside %s; write {'<'} for a literal", describe(name, fragment))
			}
			child, end, err := c.element(j)
			if err != nil {
				return "", 0, err
			}
			children = append(children, child)
			j = end

		case '{':
			inner, closeBrace, err := c.code(j+1, true)
			if err != nil {
				return "", 0, err
			}
			if !onlyTrivia(src[j+1 : closeBrace]) {
				children = append(children, strings.TrimSpace(inner))
			}
			j = closeBrace + 1

		default:
			k := j
			for k < len(src) && src[k] != '<' && src[k] != '{' {
				k++
			}
			if text := cleanText(src[j:k]); text != "" {
				children = append(children, jsString(html.UnescapeString(text)))
			}
			j = k
		}
	}
}

// attributes parses the attribute list of the tag opened at open, starting
// at j, through the closing '>' or '/>'.
func (c *compiler) attributes(open int, name string, j int) ([]attr, int, bool, error) {
	src := c.src
	var attrs []attr
	for {
		j = skipSpace(src, j)
		if j >= len(src) {
			return nil, 0, false, c.errorf(ErrorUnterminated, open, "<%s> tag is never closed", name)
		}
		if strings.HasPrefix(src[j:], "/>") {
			return attrs, j + 2, true, nil
		}
		if src[j] == '>' {
			return attrs, j + 1, false, nil
		}

		if src[j] == '{' {
			inner, closeBrace, err := c.code(j+1, true)
			if err != nil {
				return nil, 0, false, err
			}
			expr := strings.TrimSpace(inner)
			if !strings.HasPrefix(expr, "...") || strings.TrimSpace(expr[3:]) == "" {
				return nil, 0, false, c.errorf(ErrorAttribute, j, "expected {...spread} in <%s> attributes", name)
			}
			attrs = append(attrs, attr{spread: true, value: strings.TrimSpace(expr[3:])})
			j = closeBrace + 1
			continue
		}

		if !isTagStart(src[j]) {
			return nil, 0, false, c.errorf(ErrorAttribute, j, "unexpected %q in <%s> attributes", src[j], name)
		}
		k := j
		for k < len(src) && isTagChar(src[k]) {
			k++
		}
		a := attr{name: src[j:k], value: "true"}
		j = skipSpace(src, k)

		if j < len(src) && src[j] == '=' {
			var err error
			a.value, j, err = c.attributeValue(a.name, skipSpace(src, j+1))
			if err != nil {
				return nil, 0, false, err
			}
		}
		attrs = append(attrs, a)
	}
}

func (c *compiler) attributeValue(name string, j int) (string, int, error) {
	src := c.src
	if j >= len(src) {
		return "", 0, c.errorf(ErrorAttribute, j, "attribute %q has no value", name)
	}

	switch src[j] {
	case '"', '\'':
		end := strings.IndexByte(src[j+1:], src[j])
		if end < 0 {
			return "", 0, c.errorf(ErrorAttribute, j, "attribute %q string is not terminated", name)
		}
		raw := src[j+1 : j+1+end]
		return jsString(html.UnescapeString(raw)), j + end + 2, nil

	case '{':
		inner, closeBrace, err := c.code(j+1, true)
		if err != nil {
			return "", 0, err
		}
		expr := strings.TrimSpace(inner)
		if onlyTrivia(src[j+1 : closeBrace]) {
			return "", 0, c.errorf(ErrorAttribute, j, "attribute %q has an empty expression", name)
		}
		return expr, closeBrace + 1, nil

	case '<':
		if c.looksLikeElement(j) {
			return c.element(j)
		}
	}
	return "", 0, c.errorf(ErrorAttribute, j, "attribute %q value must be a string, {expression} or element", name)
}

// build emits the creation call.
func (c *compiler) build(name string, fragment bool, attrs []attr, children []string) string {
	c.elements++

	var sb strings.Builder
	sb.WriteString(c.opts.Pragma)
	sb.WriteByte('(')
	switch {
	case fragment:
		sb.WriteString(c.opts.Fragment)
	case isComponent(name):
		sb.WriteString(name)
	default:
		sb.WriteString(jsString(name))
	}

	sb.WriteString(", ")
	if len(attrs) == 0 {
		sb.WriteString("null")
	} else {
		sb.WriteByte('{')
		for i, a := range attrs {
			if i > 0 {
				sb.WriteString(", ")
			}
			if a.spread {
				sb.WriteString("...")
				sb.WriteString(a.value)
				continue
			}
			sb.WriteString(jsString(a.name))
			sb.WriteString(": ")
			sb.WriteString(a.value)
		}
		sb.WriteByte('}')
	}

	for _, child := range children {
		sb.WriteString(", ")
		sb.WriteString(child)
	}
	sb.WriteByte(')')
	return sb.String()
}

// isComponent reports whether a tag names a component reference rather than
// a host element.
func isComponent(name string) bool {
	if name == "" {
		return false
	}
	c := name[0]
	return (c >= 'A' && c <= 'Z') || c == '_' || c == '$' || strings.Contains(name, ".")
}

func describe(name string, fragment bool) string {
	if fragment {
		return "fragment <>"
	}
	return "<" + name + ">"
}

// onlyTrivia reports whether s holds nothing but whitespace and comments.
func onlyTrivia(s string) bool {
	for i := 0; i < len(s); {
		switch {
		case isSpace(s[i]):
			i++
		case strings.HasPrefix(s[i:], "//"):
			i = lineEnd(s, i)
		case strings.HasPrefix(s[i:], "/*"):
			k := strings.Index(s[i+2:], "*/")
			if k < 0 {
				return true
			}
			i += k + 4
		default:
			return false
		}
	}
	return true
}
