package query

import (
	"fmt"
	"strings"
)

type Axis string

const (
	AxisChild            Axis = "child"
	AxisDescendant       Axis = "descendant"
	AxisDescendantOrSelf Axis = "descendant-or-self"
	AxisParent           Axis = "parent"
	AxisAncestor         Axis = "ancestor"
	AxisAncestorOrSelf   Axis = "ancestor-or-self"
	AxisSelf             Axis = "self"
	AxisFollowingSibling Axis = "following-sibling"
	AxisPrecedingSibling Axis = "preceding-sibling"
)

var axisNames = map[string]Axis{
	string(AxisChild):            AxisChild,
	string(AxisDescendant):       AxisDescendant,
	string(AxisDescendantOrSelf): AxisDescendantOrSelf,
	string(AxisParent):           AxisParent,
	string(AxisAncestor):         AxisAncestor,
	string(AxisAncestorOrSelf):   AxisAncestorOrSelf,
	string(AxisSelf):             AxisSelf,
	string(AxisFollowingSibling): AxisFollowingSibling,
	string(AxisPrecedingSibling): AxisPrecedingSibling,
}

// Query is a parsed path expression.
type Query struct {
	Text     string
	Absolute bool
	Steps    []Step
}

// Step is one location step: axis::test[predicate]...
type Step struct {
	Axis  Axis
	Test  string // "*" or an item name (case-insensitive)
	Preds []Expr
}

// Expr is a predicate: a disjunction of conjunctions of comparisons.
type Expr struct {
	Or [][]Cmp
}

// Cmp compares an item attribute with a literal.
//
// Attr is a field name (from @field) or a system attribute (from @@name):
// name, key, id, templatename, displayname.
type Cmp struct {
	System bool
	Attr   string
	Op     string // "=", "!=", or "" for existence
	Value  string
}

type ParseError struct {
	Query string
	Pos   int
	Msg   string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("query parse error at %d: %s (query: %s)", e.Pos, e.Msg, e.Query)
}

// Parse parses an axis query. The "fast:" prefix is not part of the grammar;
// strip it before calling Parse.
func Parse(text string) (*Query, error) {
	src := strings.TrimSpace(text)
	if src == "" {
		return nil, &ParseError{Query: text, Pos: 0, Msg: "empty query"}
	}
	q := &Query{Text: text}
	rest := src
	offset := 0
	if strings.HasPrefix(rest, "/") {
		q.Absolute = true
		rest = rest[1:]
		offset = 1
		if rest == "" {
			// "/" alone selects the document node, i.e. nothing addressable.
			return q, nil
		}
	}

	segs, positions, err := splitSteps(rest)
	if err != nil {
		if pe, ok := err.(*ParseError); ok {
			pe.Query = text
			pe.Pos += offset
		}
		return nil, err
	}
	for i, seg := range segs {
		pos := positions[i] + offset
		if seg == "" {
			// Empty segment comes from "//": descendant-or-self::* shorthand.
			if i == len(segs)-1 {
				return nil, &ParseError{Query: text, Pos: pos, Msg: "path ends with '/'"}
			}
			q.Steps = append(q.Steps, Step{Axis: AxisDescendantOrSelf, Test: "*"})
			continue
		}
		st, err := parseStep(seg)
		if err != nil {
			if pe, ok := err.(*ParseError); ok {
				pe.Query = text
				pe.Pos += pos
			}
			return nil, err
		}
		q.Steps = append(q.Steps, st)
	}
	return q, nil
}

// splitSteps splits on '/' outside of brackets, quotes and #escaped names#.
func splitSteps(s string) ([]string, []int, error) {
	var segs []string
	var positions []int
	depth := 0
	var quote byte
	inHash := false
	start := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
			}
		case inHash:
			if c == '#' {
				inHash = false
			}
		case c == '\'' || c == '"':
			quote = c
		case c == '#' && depth == 0:
			inHash = true
		case c == '[':
			depth++
		case c == ']':
			depth--
			if depth < 0 {
				return nil, nil, &ParseError{Pos: i, Msg: "unbalanced ']'"}
			}
		case c == '/' && depth == 0:
			segs = append(segs, strings.TrimSpace(s[start:i]))
			positions = append(positions, start)
			start = i + 1
		}
	}
	if quote != 0 {
		return nil, nil, &ParseError{Pos: len(s), Msg: "unterminated string literal"}
	}
	if inHash {
		return nil, nil, &ParseError{Pos: len(s), Msg: "unterminated #name#"}
	}
	if depth != 0 {
		return nil, nil, &ParseError{Pos: len(s), Msg: "unbalanced '['"}
	}
	segs = append(segs, strings.TrimSpace(s[start:]))
	positions = append(positions, start)
	return segs, positions, nil
}

func parseStep(seg string) (Step, error) {
	switch seg {
	case ".":
		return Step{Axis: AxisSelf, Test: "*"}, nil
	case "..":
		return Step{Axis: AxisParent, Test: "*"}, nil
	}

	st := Step{Axis: AxisChild}
	body := seg
	if i := strings.Index(body, "::"); i >= 0 && !strings.ContainsAny(body[:i], "[#'\"") {
		name := strings.ToLower(strings.TrimSpace(body[:i]))
		ax, ok := axisNames[name]
		if !ok {
			return Step{}, &ParseError{Pos: 0, Msg: fmt.Sprintf("unknown axis %q", name)}
		}
		st.Axis = ax
		body = strings.TrimSpace(body[i+2:])
	}

	// Node test runs until the first predicate.
	testEnd := len(body)
	if strings.HasPrefix(body, "#") {
		end := strings.Index(body[1:], "#")
		if end < 0 {
			return Step{}, &ParseError{Pos: 0, Msg: "unterminated #name#"}
		}
		st.Test = body[1 : end+1]
		testEnd = end + 2
	} else {
		if i := strings.Index(body, "["); i >= 0 {
			testEnd = i
		}
		st.Test = strings.TrimSpace(body[:testEnd])
	}
	if st.Test == "" {
		return Step{}, &ParseError{Pos: 0, Msg: "missing node test"}
	}
	if st.Test != "*" && strings.ContainsAny(st.Test, "[]'\"@=") {
		return Step{}, &ParseError{Pos: 0, Msg: fmt.Sprintf("invalid node test %q", st.Test)}
	}

	rest := strings.TrimSpace(body[testEnd:])
	for rest != "" {
		if rest[0] != '[' {
			return Step{}, &ParseError{Pos: len(seg) - len(rest), Msg: "expected '['"}
		}
		end := matchBracket(rest)
		if end < 0 {
			return Step{}, &ParseError{Pos: len(seg) - len(rest), Msg: "unbalanced '['"}
		}
		ex, err := parseExpr(rest[1:end])
		if err != nil {
			return Step{}, err
		}
		st.Preds = append(st.Preds, ex)
		rest = strings.TrimSpace(rest[end+1:])
	}
	return st, nil
}

func matchBracket(s string) int {
	depth := 0
	var quote byte
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
			}
		case c == '\'' || c == '"':
			quote = c
		case c == '[':
			depth++
		case c == ']':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// parseExpr parses: cmp (("and"|"or") cmp)*, with "and" binding tighter.
func parseExpr(s string) (Expr, error) {
	toks, err := tokenize(s)
	if err != nil {
		return Expr{}, err
	}
	if len(toks) == 0 {
		return Expr{}, &ParseError{Msg: "empty predicate"}
	}
	var ex Expr
	var cur []Cmp
	i := 0
	for {
		c, n, err := parseCmp(toks[i:])
		if err != nil {
			return Expr{}, err
		}
		cur = append(cur, c)
		i += n
		if i >= len(toks) {
			break
		}
		switch strings.ToLower(toks[i].text) {
		case "and":
		case "or":
			ex.Or = append(ex.Or, cur)
			cur = nil
		default:
			return Expr{}, &ParseError{Msg: fmt.Sprintf("unexpected %q in predicate", toks[i].text)}
		}
		i++
		if i >= len(toks) {
			return Expr{}, &ParseError{Msg: "predicate ends with an operator"}
		}
	}
	ex.Or = append(ex.Or, cur)
	return ex, nil
}

func parseCmp(toks []token) (Cmp, int, error) {
	if len(toks) == 0 || toks[0].kind != tokAttr {
		return Cmp{}, 0, &ParseError{Msg: "expected @field or @@attribute"}
	}
	c := Cmp{Attr: toks[0].text}
	if strings.HasPrefix(c.Attr, "@@") {
		c.System = true
		c.Attr = strings.ToLower(c.Attr[2:])
		switch c.Attr {
		case "name", "key", "id", "templatename", "displayname":
		default:
			return Cmp{}, 0, &ParseError{Msg: fmt.Sprintf("unknown system attribute @@%s", c.Attr)}
		}
	} else {
		c.Attr = c.Attr[1:]
	}
	if c.Attr == "" {
		return Cmp{}, 0, &ParseError{Msg: "empty attribute name"}
	}
	if len(toks) < 2 || toks[1].kind != tokOp {
		return c, 1, nil
	}
	if len(toks) < 3 || toks[2].kind != tokString {
		return Cmp{}, 0, &ParseError{Msg: "expected string literal after " + toks[1].text}
	}
	c.Op = toks[1].text
	c.Value = toks[2].text
	return c, 3, nil
}

type tokKind int

const (
	tokAttr tokKind = iota
	tokOp
	tokString
	tokWord
)

type token struct {
	kind tokKind
	text string
}

func tokenize(s string) ([]token, error) {
	var out []token
	i := 0
	for i < len(s) {
		c := s[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++
		case c == '@':
			j := i + 1
			if j < len(s) && s[j] == '@' {
				j++
			}
			for j < len(s) && isAttrChar(s[j]) {
				j++
			}
			out = append(out, token{kind: tokAttr, text: s[i:j]})
			i = j
		case c == '=':
			out = append(out, token{kind: tokOp, text: "="})
			i++
		case c == '!' && i+1 < len(s) && s[i+1] == '=':
			out = append(out, token{kind: tokOp, text: "!="})
			i += 2
		case c == '\'' || c == '"':
			end := strings.IndexByte(s[i+1:], c)
			if end < 0 {
				return nil, &ParseError{Pos: i, Msg: "unterminated string literal"}
			}
			out = append(out, token{kind: tokString, text: s[i+1 : i+1+end]})
			i += end + 2
		case isAttrChar(c):
			j := i
			for j < len(s) && isAttrChar(s[j]) {
				j++
			}
			out = append(out, token{kind: tokWord, text: s[i:j]})
			i = j
		default:
			return nil, &ParseError{Pos: i, Msg: fmt.Sprintf("unexpected character %q", c)}
		}
	}
	return out, nil
}

func isAttrChar(c byte) bool {
	return c == '_' || c == '-' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}
