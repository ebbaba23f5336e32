package extract

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf16"
	"unicode/utf8"
)

// bom is the UTF-8 byte order mark some editors prepend.
const bom = "\uFEFF"

type tokenKind int

const (
	tokIdent tokenKind = iota
	tokString
	tokTextBlock
	tokChar
	tokNumber
	tokPunct
)

// token is a lexical element of Java source. For tokString, text holds the
// decoded literal value.
type token struct {
	kind tokenKind
	text string
	line int
}

func (t token) is(punct string) bool {
	return t.kind == tokPunct && t.text == punct
}

type javaLexer struct {
	file string
	src  string
	pos  int
	line int
	toks []token
}

// lexJava splits src into tokens, dropping whitespace and comments.
// Unterminated comments and literals are a *ParseError.
func lexJava(file string, src []byte) ([]token, error) {
	l := &javaLexer{file: file, src: string(src), line: 1}
	if err := l.run(); err != nil {
		return nil, err
	}
	return l.toks, nil
}

func (l *javaLexer) errorf(line int, format string, args ...any) error {
	return &ParseError{File: l.file, Line: line, Msg: fmt.Sprintf(format, args...)}
}

func (l *javaLexer) emit(kind tokenKind, text string, line int) {
	l.toks = append(l.toks, token{kind: kind, text: text, line: line})
}

func (l *javaLexer) peek(off int) byte {
	if l.pos+off < len(l.src) {
		return l.src[l.pos+off]
	}
	return 0
}

func (l *javaLexer) run() error {
	// Skip a UTF-8 byte order mark
	if strings.HasPrefix(l.src, bom) {
		l.pos = len(bom)
	}
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		switch {
		case c == '\n':
			l.line++
			l.pos++
		case c == ' ' || c == '\t' || c == '\r' || c == '\f':
			l.pos++
		case c == '/' && l.peek(1) == '/':
			if i := strings.IndexByte(l.src[l.pos:], '\n'); i >= 0 {
				l.pos += i
			} else {
				l.pos = len(l.src)
			}
		case c == '/' && l.peek(1) == '*':
			end := strings.Index(l.src[l.pos+2:], "*/")
			if end < 0 {
				return l.errorf(l.line, "unterminated comment")
			}
			body := l.src[l.pos : l.pos+2+end+2]
			l.line += strings.Count(body, "\n")
			l.pos += len(body)
		case strings.HasPrefix(l.src[l.pos:], `"""`):
			if err := l.textBlock(); err != nil {
				return err
			}
		case c == '"':
			if err := l.quoted('"', tokString); err != nil {
				return err
			}
		case c == '\'':
			if err := l.quoted('\'', tokChar); err != nil {
				return err
			}
		case isDigit(c) || (c == '.' && isDigit(l.peek(1))):
			l.number()
		default:
			r, size := utf8.DecodeRuneInString(l.src[l.pos:])
			if isIdentRune(r, true) {
				l.ident()
				continue
			}
			l.emit(tokPunct, l.src[l.pos:l.pos+size], l.line)
			l.pos += size
		}
	}
	return nil
}

func (l *javaLexer) ident() {
	start := l.pos
	for l.pos < len(l.src) {
		r, size := utf8.DecodeRuneInString(l.src[l.pos:])
		if !isIdentRune(r, l.pos == start) {
			break
		}
		l.pos += size
	}
	l.emit(tokIdent, l.src[start:l.pos], l.line)
}

func (l *javaLexer) number() {
	start := l.pos
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		if !isDigit(c) && c != '.' && c != '_' && !('a' <= c && c <= 'z') && !('A' <= c && c <= 'Z') {
			break
		}
		l.pos++
	}
	l.emit(tokNumber, l.src[start:l.pos], l.line)
}

// quoted lexes a string or char literal. Literals cannot span lines.
func (l *javaLexer) quoted(quote byte, kind tokenKind) error {
	line := l.line
	i := l.pos + 1
	for {
		if i >= len(l.src) || l.src[i] == '\n' {
			if kind == tokChar {
				return l.errorf(line, "unterminated character literal")
			}
			return l.errorf(line, "unterminated string literal")
		}
		switch l.src[i] {
		case '\\':
			i += 2
			continue
		case quote:
			raw := l.src[l.pos+1 : i]
			l.emit(kind, unescapeJava(raw), line)
			l.pos = i + 1
			return nil
		}
		i++
	}
}

func (l *javaLexer) textBlock() error {
	line := l.line
	i := l.pos + 3
	for i < len(l.src) {
		switch {
		case l.src[i] == '\\':
			i += 2
			continue
		case strings.HasPrefix(l.src[i:], `"""`):
			body := l.src[l.pos+3 : i]
			l.emit(tokTextBlock, body, line)
			l.line += strings.Count(body, "\n")
			l.pos = i + 3
			return nil
		}
		i++
	}
	return l.errorf(line, "unterminated text block")
}

// unescapeJava decodes the escape sequences of a Java string literal body.
// Unknown escapes are kept as written.
func unescapeJava(raw string) string {
	if !strings.Contains(raw, `\`) {
		return raw
	}
	var sb strings.Builder
	sb.Grow(len(raw))
	for i := 0; i < len(raw); {
		c := raw[i]
		if c != '\\' || i+1 >= len(raw) {
			sb.WriteByte(c)
			i++
			continue
		}
		next := raw[i+1]
		switch next {
		case 'b':
			sb.WriteByte('\b')
		case 't':
			sb.WriteByte('\t')
		case 'n':
			sb.WriteByte('\n')
		case 'f':
			sb.WriteByte('\f')
		case 'r':
			sb.WriteByte('\r')
		case 's':
			sb.WriteByte(' ')
		case '"', '\'', '\\':
			sb.WriteByte(next)
		case 'u':
			r, n, ok := decodeUnicodeEscape(raw[i:])
			if !ok {
				sb.WriteString(raw[i : i+2])
				break
			}
			if utf16.IsSurrogate(r) {
				if r2, n2, ok := decodeUnicodeEscape(raw[i+n:]); ok {
					if pair := utf16.DecodeRune(r, r2); pair != unicode.ReplacementChar {
						sb.WriteRune(pair)
						i += n + n2
						continue
					}
				}
			}
			sb.WriteRune(r)
			i += n
			continue
		case '0', '1', '2', '3', '4', '5', '6', '7':
			maxLen := 2
			if next <= '3' {
				maxLen = 3
			}
			j := i + 1
			for j < len(raw) && j-(i+1) < maxLen && '0' <= raw[j] && raw[j] <= '7' {
				j++
			}
			v, _ := strconv.ParseUint(raw[i+1:j], 8, 32)
			sb.WriteRune(rune(v))
			i = j
			continue
		default:
			sb.WriteByte('\\')
			sb.WriteByte(next)
		}
		i += 2
	}
	return sb.String()
}

// decodeUnicodeEscape decodes \uXXXX (with any number of u's) at the start
// of s and returns the rune and the escape length.
func decodeUnicodeEscape(s string) (rune, int, bool) {
	if len(s) < 2 || s[0] != '\\' || s[1] != 'u' {
		return 0, 0, false
	}
	j := 1
	for j < len(s) && s[j] == 'u' {
		j++
	}
	if j+4 > len(s) {
		return 0, 0, false
	}
	v, err := strconv.ParseUint(s[j:j+4], 16, 32)
	if err != nil {
		return 0, 0, false
	}
	return rune(v), j + 4, true
}

func isDigit(c byte) bool { return '0' <= c && c <= '9' }

func isIdentRune(r rune, first bool) bool {
	if r == '_' || r == '$' || unicode.IsLetter(r) {
		return true
	}
	return !first && unicode.IsDigit(r)
}
