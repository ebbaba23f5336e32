package extract

import (
	"context"
	"strings"

	"github.com/logminer/logminer-go/pkg/logminer"
)

// JavaExtractor finds logging calls in Java source without a full parser.
//
// It recognises calls such as log.info("Started {}", name): a method named
// after a level, with or without a receiver. Type declarations (class,
// interface, enum, record) and the fields they declare are tracked so that
// ResolveOwner can attribute each call to a class.
type JavaExtractor struct {
	// Methods overrides the recognised method names. Empty means the
	// names of logminer.Levels.
	Methods []string
}

// Extract implements the Extractor interface.
func (e JavaExtractor) Extract(ctx context.Context, path string, src []byte) ([]CallSite, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	toks, err := lexJava(path, src)
	if err != nil {
		return nil, err
	}
	s := &javaScanner{file: path, toks: toks, methods: e.methodSet()}
	return s.scan()
}

func (e JavaExtractor) methodSet() map[string]bool {
	set := make(map[string]bool)
	if len(e.Methods) == 0 {
		for _, l := range logminer.Levels {
			set[string(l)] = true
		}
		return set
	}
	for _, m := range e.Methods {
		set[m] = true
	}
	return set
}

type frameKind int

const (
	frameType  frameKind = iota // class, interface, enum or record body
	frameBlock                  // method body, initializer, anonymous class
	frameInit                   // brace inside a field initializer
)

type frame struct {
	kind  frameKind
	scope int // index into javaScanner.scopes for frameType
	line  int
}

type pendingCall struct {
	site   CallSite
	scopes []int // innermost first
}

type javaScanner struct {
	file    string
	toks    []token
	methods map[string]bool

	scopes      []Scope
	stack       []frame
	pendingType string
	member      []token // current member declaration, type level only
	calls       []pendingCall
}

func (s *javaScanner) scan() ([]CallSite, error) {
	for i := 0; i < len(s.toks); i++ {
		t := s.toks[i]
		if t.kind == tokIdent {
			s.checkTypeDecl(i)
			s.checkCall(i)
		}

		switch {
		case t.is("{"):
			s.open(t)
			continue
		case t.is("}"):
			if err := s.close(t); err != nil {
				return nil, err
			}
			continue
		}

		if !s.atTypeLevel() {
			continue
		}
		switch {
		case t.is(";"):
			s.endMember()
		case t.is("@") && i+1 < len(s.toks) && s.toks[i+1].kind == tokIdent && s.toks[i+1].text != "interface":
			i = s.skipAnnotation(i)
		default:
			s.member = append(s.member, t)
		}
	}

	if n := len(s.stack); n > 0 {
		return nil, &ParseError{File: s.file, Line: s.stack[n-1].line, Msg: "unbalanced braces: missing }"}
	}

	sites := make([]CallSite, 0, len(s.calls))
	for _, c := range s.calls {
		site := c.site
		for _, idx := range c.scopes {
			sc := s.scopes[idx]
			site.Scopes = append(site.Scopes, Scope{Name: sc.Name, Fields: append([]string(nil), sc.Fields...)})
		}
		sites = append(sites, site)
	}
	return sites, nil
}

func (s *javaScanner) atTypeLevel() bool {
	n := len(s.stack)
	return n > 0 && s.stack[n-1].kind == frameType
}

func (s *javaScanner) open(t token) {
	switch {
	case s.pendingType != "":
		s.scopes = append(s.scopes, Scope{Name: s.pendingType})
		s.stack = append(s.stack, frame{kind: frameType, scope: len(s.scopes) - 1, line: t.line})
		s.pendingType = ""
		s.member = s.member[:0]
	case s.atTypeLevel() && s.memberHasInitializer():
		s.stack = append(s.stack, frame{kind: frameInit, scope: -1, line: t.line})
	default:
		if s.atTypeLevel() {
			s.member = s.member[:0]
		}
		s.stack = append(s.stack, frame{kind: frameBlock, scope: -1, line: t.line})
	}
}

func (s *javaScanner) close(t token) error {
	n := len(s.stack)
	if n == 0 {
		return &ParseError{File: s.file, Line: t.line, Msg: "unbalanced braces: unexpected }"}
	}
	top := s.stack[n-1]
	s.stack = s.stack[:n-1]
	if top.kind != frameInit && s.atTypeLevel() {
		s.member = s.member[:0]
	}
	return nil
}

func (s *javaScanner) memberHasInitializer() bool {
	depth := 0
	for _, t := range s.member {
		switch {
		case t.is("("):
			depth++
		case t.is(")"):
			depth--
		case t.is("=") && depth == 0:
			return true
		}
	}
	return false
}

func (s *javaScanner) endMember() {
	top := s.stack[len(s.stack)-1]
	names := fieldNames(s.member)
	s.scopes[top.scope].Fields = append(s.scopes[top.scope].Fields, names...)
	s.member = s.member[:0]
}

// skipAnnotation returns the index of the last token of the annotation
// starting at i.
func (s *javaScanner) skipAnnotation(i int) int {
	j := i + 1
	for j+2 < len(s.toks) && s.toks[j+1].is(".") && s.toks[j+2].kind == tokIdent {
		j += 2
	}
	if j+1 < len(s.toks) && s.toks[j+1].is("(") {
		if end := matchClose(s.toks, j+1); end >= 0 {
			return end
		}
	}
	return j
}

// checkTypeDecl records the name of a type declared at toks[i].
func (s *javaScanner) checkTypeDecl(i int) {
	switch s.toks[i].text {
	case "class", "interface", "enum", "record":
	default:
		return
	}
	if i > 0 && s.toks[i-1].is(".") {
		return // Foo.class
	}
	if i+1 >= len(s.toks) || s.toks[i+1].kind != tokIdent {
		return
	}
	if s.toks[i].text == "record" {
		// contextual keyword: require record Name( or record Name<
		if i+2 >= len(s.toks) || !(s.toks[i+2].is("(") || s.toks[i+2].is("<")) {
			return
		}
	}
	s.pendingType = s.toks[i+1].text
}

// checkCall records a call of a logging method at toks[i].
func (s *javaScanner) checkCall(i int) {
	t := s.toks[i]
	if !s.methods[t.text] || i+1 >= len(s.toks) || !s.toks[i+1].is("(") {
		return
	}

	var receiver string
	if i > 0 && s.toks[i-1].is(".") {
		receiver = receiverText(s.toks, i-1)
	} else if !isCallContext(s.toks, i) {
		return // declaration such as void info(String msg)
	}

	site := CallSite{
		File:     s.file,
		Line:     t.line,
		Method:   t.text,
		Receiver: receiver,
	}
	if j := i + 2; j < len(s.toks) && !s.toks[j].is(")") {
		site.HasArgs = true
		if j+1 < len(s.toks) && s.toks[j].kind == tokString && (s.toks[j+1].is(",") || s.toks[j+1].is(")")) {
			site.Literal = true
			site.Template = s.toks[j].text
		}
	}

	var chain []int
	for k := len(s.stack) - 1; k >= 0; k-- {
		if s.stack[k].kind == frameType {
			chain = append(chain, s.stack[k].scope)
		}
	}
	s.calls = append(s.calls, pendingCall{site: site, scopes: chain})
}

// isCallContext reports whether an unqualified name at toks[i] followed by
// "(" is a call rather than a method declaration. Declarations are preceded
// by their return type.
func isCallContext(toks []token, i int) bool {
	if i == 0 {
		return false
	}
	prev := toks[i-1]
	switch prev.kind {
	case tokIdent:
		switch prev.text {
		case "return", "else", "throw", "case", "assert", "yield":
			return true
		}
		return false
	case tokPunct:
		switch prev.text {
		case "]", "@", ".":
			return false
		case ">":
			return i >= 2 && toks[i-2].is("-") // lambda arrow
		}
		return true
	default:
		return false
	}
}

// receiverText returns the expression before the "." at toks[dot].
func receiverText(toks []token, dot int) string {
	j := dot - 1
walk:
	for j >= 0 {
		t := toks[j]
		switch {
		case t.is(")") || t.is("]"):
			open := matchOpen(toks, j)
			if open < 0 {
				break walk
			}
			j = open - 1
		case t.kind == tokIdent:
			j--
			if j >= 0 && toks[j].is(".") {
				j--
				continue
			}
			break walk
		default:
			break walk
		}
	}
	return joinTokens(toks[j+1 : dot])
}

func joinTokens(toks []token) string {
	var sb strings.Builder
	for _, t := range toks {
		switch t.kind {
		case tokString:
			sb.WriteByte('"')
			sb.WriteString(t.text)
			sb.WriteByte('"')
		case tokChar:
			sb.WriteByte('\'')
			sb.WriteString(t.text)
			sb.WriteByte('\'')
		default:
			sb.WriteString(t.text)
		}
	}
	return sb.String()
}

var bracketPairs = map[string]string{")": "(", "]": "[", "}": "{"}

// matchOpen returns the index of the bracket opening the one at toks[j].
func matchOpen(toks []token, j int) int {
	closeText := toks[j].text
	openText := bracketPairs[closeText]
	depth := 0
	for k := j; k >= 0; k-- {
		switch {
		case toks[k].is(closeText):
			depth++
		case toks[k].is(openText):
			depth--
			if depth == 0 {
				return k
			}
		}
	}
	return -1
}

// matchClose returns the index of the ")" closing the "(" at toks[j].
func matchClose(toks []token, j int) int {
	depth := 0
	for k := j; k < len(toks); k++ {
		switch {
		case toks[k].is("("):
			depth++
		case toks[k].is(")"):
			depth--
			if depth == 0 {
				return k
			}
		}
	}
	return -1
}

// fieldNames returns the variables declared by a member declaration, or
// nil if the member is a method or something else without fields.
func fieldNames(seg []token) []string {
	var names []string
	paren, angle := 0, 0
	inInit := false
	last := ""
	for i, t := range seg {
		switch {
		case t.is("("):
			if !inInit && paren == 0 && angle == 0 {
				return nil
			}
			paren++
		case t.is(")"):
			if paren > 0 {
				paren--
			}
		case t.is("<") && !inInit:
			angle++
		case t.is(">") && !inInit:
			if angle > 0 {
				angle--
			}
		case t.is("=") && !inInit && paren == 0 && angle == 0:
			if last != "" {
				names = append(names, last)
			}
			inInit = true
		case t.is(",") && paren == 0 && angle == 0:
			if !inInit {
				if last != "" {
					names = append(names, last)
				}
				last = ""
			} else if startsDeclarator(seg[i+1:]) {
				inInit = false
				last = ""
			}
		case t.kind == tokIdent && !inInit:
			last = t.text
		}
	}
	if !inInit && last != "" {
		names = append(names, last)
	}
	return names
}

func startsDeclarator(rest []token) bool {
	if len(rest) == 0 || rest[0].kind != tokIdent {
		return false
	}
	return len(rest) == 1 || rest[1].is("=") || rest[1].is(",") || rest[1].is("[")
}
