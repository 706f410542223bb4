// Package directive detects module-level "use client" and "use server"
// directives in JavaScript and TypeScript source.
package directive

import "strings"

// Tag is the execution role a module declares.
type Tag uint8

const (
	// None means the module declares no role and may run anywhere.
	None Tag = iota
	// Client means the module is shipped to the browser.
	Client
	// Server means the module must never reach the browser.
	Server
)

func (t Tag) String() string {
	switch t {
	case Client:
		return "client"
	case Server:
		return "server"
	default:
		return "none"
	}
}

// Directive literals.
const (
	UseClient = "use client"
	UseServer = "use server"
)

// Detect scans the directive prologue of src: the leading run of
// string-literal statements, optionally interleaved with comments, a
// shebang line and "use strict". The first "use client" or "use server"
// literal found sets the tag. Scanning stops at the first statement that is
// not a string literal.
func Detect(src string) Tag {
	tag, _ := scanPrologue(src, true)
	return tag
}

// PrologueEnd returns the byte offset just past the last statement of the
// directive prologue (including a leading shebang line), or 0 when src has
// no prologue. Code inserted at this offset does not change the meaning of
// any directive.
func PrologueEnd(src string) int {
	_, end := scanPrologue(src, false)
	return end
}

func scanPrologue(src string, stopAtTag bool) (Tag, int) {
	s := &scanner{src: src}
	if strings.HasPrefix(src, "\ufeff") {
		s.pos = len("\ufeff")
	}
	tag := None
	end := 0
	for {
		s.skipTrivia()
		if s.eof() {
			return tag, end
		}
		if s.hasPrefix("#!") {
			s.skipLine()
			end = s.pos
			continue
		}

		lit, ok := s.stringLiteral()
		if !ok || !s.statementEnds() {
			return tag, end
		}
		end = s.pos
		if tag != None {
			continue
		}
		switch lit {
		case UseClient:
			tag = Client
		case UseServer:
			tag = Server
		}
		if tag != None && stopAtTag {
			return tag, end
		}
	}
}

// DetectBytes is Detect for byte slices.
func DetectBytes(src []byte) Tag {
	return Detect(string(src))
}

type scanner struct {
	src string
	pos int
}

func (s *scanner) eof() bool { return s.pos >= len(s.src) }

func (s *scanner) hasPrefix(p string) bool {
	return strings.HasPrefix(s.src[s.pos:], p)
}

func (s *scanner) skipLine() {
	if i := strings.IndexByte(s.src[s.pos:], '\n'); i >= 0 {
		s.pos += i + 1
		return
	}
	s.pos = len(s.src)
}

// skipTrivia skips whitespace and comments. It reports whether a line
// terminator was crossed.
func (s *scanner) skipTrivia() bool {
	newline := false
	for !s.eof() {
		switch c := s.src[s.pos]; {
		case c == '\n' || c == '\r':
			newline = true
			s.pos++
		case c == ' ' || c == '\t' || c == '\v' || c == '\f':
			s.pos++
		case s.hasPrefix("//"):
			s.skipLine()
			newline = true
		case s.hasPrefix("/*"):
			end := strings.Index(s.src[s.pos+2:], "*/")
			if end < 0 {
				s.pos = len(s.src)
				return newline
			}
			if strings.ContainsAny(s.src[s.pos:s.pos+2+end], "\r\n") {
				newline = true
			}
			s.pos += end + 4
		default:
			return newline
		}
	}
	return newline
}

// stringLiteral reads a single or double quoted literal and returns its
// raw contents. Literals containing escapes are returned raw, so they never
// equal a directive.
func (s *scanner) stringLiteral() (string, bool) {
	if s.eof() {
		return "", false
	}
	quote := s.src[s.pos]
	if quote != '"' && quote != '\'' {
		return "", false
	}
	for i := s.pos + 1; i < len(s.src); i++ {
		switch s.src[i] {
		case '\\':
			i++
		case '\n', '\r':
			return "", false
		case quote:
			lit := s.src[s.pos+1 : i]
			s.pos = i + 1
			return lit, true
		}
	}
	return "", false
}

// statementEnds reports whether the literal just read forms a complete
// expression statement, either by an explicit semicolon or by a line break
// that automatic semicolon insertion would terminate.
func (s *scanner) statementEnds() bool {
	newline := s.skipTrivia()
	if s.eof() {
		return true
	}
	if s.src[s.pos] == ';' {
		s.pos++
		return true
	}
	if !newline {
		return false
	}
	// A continuation token on the next line keeps the expression going.
	return !strings.ContainsRune(".([`+-*/%,?=<>&|^", rune(s.src[s.pos])) || s.hasPrefix("++") || s.hasPrefix("--")
}
