// Package json5 is a minimal, allocation-light JSON5 tokenizer used by the
// config loader (spec.md §6) to parse server configuration files the way
// open62541's embedded cj5 parser does: it fills a flat token array rather
// than building a tree of Go values, so a caller can seek a key under a
// parent token id without decoding the whole document.
//
// The token shape and seek-by-parent API are grounded on cj5.h/cj5.c
// (single-header JSON5 parser derived from jsmn): a Token carries its
// Type, byte Start/End span, child Size, and ParentID (-1 for the root).
// Unlike cj5, Parse grows its token slice instead of reporting an overflow
// error with a required capacity, since Go callers don't pre-size a fixed
// buffer.
package json5

import (
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/open62541/open62541-sub001/errors"
)

// TokenType classifies one JSON5 value.
type TokenType int

const (
	Object TokenType = iota
	Array
	Number
	String
	Bool
	Null
)

// NumberType hints at a Number token's lexical form, matching cj5's
// num_type union member.
type NumberType int

const (
	NumberUnknown NumberType = iota
	NumberFloat
	NumberInt
	NumberHex
)

// Token is one flat entry of a parsed document. An Array token is followed
// in document order by its Size element values, an Object token by its Size
// key/value pairs (a String key token, then the value), each with its own
// subtree; scalar tokens have Size 0.
type Token struct {
	Type     TokenType
	NumType  NumberType
	Start    int
	End      int
	Size     int
	ParentID int
}

// Result is the parsed document: every Token plus the source text, so
// string/number tokens can be sliced out of it lazily by the Seek/Get
// helpers below.
type Result struct {
	Tokens []Token
	Source string
}

// Raw returns the token's exact source slice (used internally by the
// numeric/string/bool decoders and exposed for callers that want the raw
// literal, e.g. for diagnostics).
func (r *Result) Raw(id int) string { return r.Source[r.Tokens[id].Start:r.Tokens[id].End] }

type parser struct {
	src    string
	pos    int
	line   int
	col    int
	tokens []Token
}

// Parse tokenizes src into a flat Result. It returns a *errors.Errorf-
// wrapped error (with line/column context) on malformed input.
func Parse(src string) (*Result, error) {
	p := &parser{src: src, line: 1, col: 1}
	root, err := p.parseValue(-1)
	if err != nil {
		return nil, err
	}
	p.skipWhitespaceAndComments()
	if p.pos < len(p.src) {
		return nil, p.errorf("unexpected trailing data after top-level value")
	}
	_ = root
	return &Result{Tokens: p.tokens, Source: src}, nil
}

func (p *parser) errorf(format string, args ...interface{}) error {
	return errors.Errorf("json5: line %d col %d: %s", p.line, p.col, errors.Errorf(format, args...).Error())
}

func (p *parser) peek() (byte, bool) {
	if p.pos >= len(p.src) {
		return 0, false
	}
	return p.src[p.pos], true
}

func (p *parser) advance() {
	if p.pos >= len(p.src) {
		return
	}
	if p.src[p.pos] == '\n' {
		p.line++
		p.col = 1
	} else {
		p.col++
	}
	p.pos++
}

func (p *parser) skipWhitespaceAndComments() {
	for {
		c, ok := p.peek()
		if !ok {
			return
		}
		switch {
		case c == ' ' || c == '\t' || c == '\r' || c == '\n':
			p.advance()
		case c == '/' && p.pos+1 < len(p.src) && p.src[p.pos+1] == '/':
			for p.pos < len(p.src) && p.src[p.pos] != '\n' {
				p.advance()
			}
		case c == '/' && p.pos+1 < len(p.src) && p.src[p.pos+1] == '*':
			p.advance()
			p.advance()
			for p.pos < len(p.src) {
				if p.src[p.pos] == '*' && p.pos+1 < len(p.src) && p.src[p.pos+1] == '/' {
					p.advance()
					p.advance()
					break
				}
				p.advance()
			}
		default:
			return
		}
	}
}

// parseValue parses one JSON5 value at the current position, appends its
// token (and, recursively, its children's tokens) to p.tokens, and returns
// the new token's index.
func (p *parser) parseValue(parentID int) (int, error) {
	p.skipWhitespaceAndComments()
	c, ok := p.peek()
	if !ok {
		return -1, p.errorf("unexpected end of input")
	}
	switch {
	case c == '{':
		return p.parseObject(parentID)
	case c == '[':
		return p.parseArray(parentID)
	case c == '"' || c == '\'':
		return p.parseString(parentID)
	case c == 't' || c == 'f':
		return p.parseBool(parentID)
	case c == 'n':
		return p.parseNull(parentID)
	case c == '-' || c == '+' || c == '.' || (c >= '0' && c <= '9'):
		return p.parseNumber(parentID)
	default:
		return -1, p.errorf("invalid character %q", c)
	}
}

func (p *parser) reserve(t Token) int {
	p.tokens = append(p.tokens, t)
	return len(p.tokens) - 1
}

func (p *parser) parseObject(parentID int) (int, error) {
	id := p.reserve(Token{Type: Object, ParentID: parentID, Start: p.pos})
	p.advance() // {
	count := 0
	for {
		p.skipWhitespaceAndComments()
		c, ok := p.peek()
		if !ok {
			return -1, p.errorf("incomplete object")
		}
		if c == '}' {
			p.advance()
			break
		}
		if count > 0 {
			// a leading comma was already consumed by the previous
			// iteration's trailing-comma check; nothing to do here.
		}
		keyID, err := p.parseKey(id)
		if err != nil {
			return -1, err
		}
		_ = keyID
		p.skipWhitespaceAndComments()
		c, ok = p.peek()
		if !ok || c != ':' {
			return -1, p.errorf("expected ':' after object key")
		}
		p.advance()
		if _, err := p.parseValue(id); err != nil {
			return -1, err
		}
		count++
		p.skipWhitespaceAndComments()
		c, ok = p.peek()
		if !ok {
			return -1, p.errorf("incomplete object")
		}
		if c == ',' {
			p.advance()
			p.skipWhitespaceAndComments()
			if c2, ok := p.peek(); ok && c2 == '}' {
				p.advance()
				break
			}
			continue
		}
		if c == '}' {
			p.advance()
			break
		}
		return -1, p.errorf("expected ',' or '}' in object")
	}
	p.tokens[id].End = p.pos
	p.tokens[id].Size = count
	return id, nil
}

// parseKey parses an object key, which JSON5 allows to be either a quoted
// string or a bare ECMAScript IdentifierName, and stores it as a String
// token so callers key off it the same way regardless of source form.
func (p *parser) parseKey(parentID int) (int, error) {
	c, ok := p.peek()
	if !ok {
		return -1, p.errorf("expected object key")
	}
	if c == '"' || c == '\'' {
		return p.parseString(parentID)
	}
	start := p.pos
	for {
		c, ok := p.peek()
		if !ok || c == ':' || c == ' ' || c == '\t' || c == '\n' || c == '\r' {
			break
		}
		p.advance()
	}
	if p.pos == start {
		return -1, p.errorf("empty object key")
	}
	id := p.reserve(Token{Type: String, ParentID: parentID, Start: start, End: p.pos})
	return id, nil
}

func (p *parser) parseArray(parentID int) (int, error) {
	id := p.reserve(Token{Type: Array, ParentID: parentID, Start: p.pos})
	p.advance() // [
	count := 0
	for {
		p.skipWhitespaceAndComments()
		c, ok := p.peek()
		if !ok {
			return -1, p.errorf("incomplete array")
		}
		if c == ']' {
			p.advance()
			break
		}
		if _, err := p.parseValue(id); err != nil {
			return -1, err
		}
		count++
		p.skipWhitespaceAndComments()
		c, ok = p.peek()
		if !ok {
			return -1, p.errorf("incomplete array")
		}
		if c == ',' {
			p.advance()
			p.skipWhitespaceAndComments()
			if c2, ok := p.peek(); ok && c2 == ']' {
				p.advance()
				break
			}
			continue
		}
		if c == ']' {
			p.advance()
			break
		}
		return -1, p.errorf("expected ',' or ']' in array")
	}
	p.tokens[id].End = p.pos
	p.tokens[id].Size = count
	return id, nil
}

func (p *parser) parseString(parentID int) (int, error) {
	quote, _ := p.peek()
	start := p.pos
	p.advance()
	for {
		c, ok := p.peek()
		if !ok {
			return -1, p.errorf("unterminated string")
		}
		if c == '\\' {
			p.advance()
			if _, ok := p.peek(); !ok {
				return -1, p.errorf("unterminated string escape")
			}
			p.advance()
			continue
		}
		if c == quote {
			p.advance()
			break
		}
		if _, size := utf8.DecodeRuneInString(p.src[p.pos:]); size > 1 {
			for i := 0; i < size; i++ {
				p.advance()
			}
			continue
		}
		p.advance()
	}
	return p.reserve(Token{Type: String, ParentID: parentID, Start: start + 1, End: p.pos - 1}), nil
}

func (p *parser) parseBool(parentID int) (int, error) {
	start := p.pos
	word := "true"
	if c, _ := p.peek(); c == 'f' {
		word = "false"
	}
	if !strings.HasPrefix(p.src[p.pos:], word) {
		return -1, p.errorf("invalid literal")
	}
	for range word {
		p.advance()
	}
	return p.reserve(Token{Type: Bool, ParentID: parentID, Start: start, End: p.pos}), nil
}

func (p *parser) parseNull(parentID int) (int, error) {
	start := p.pos
	if !strings.HasPrefix(p.src[p.pos:], "null") {
		return -1, p.errorf("invalid literal")
	}
	for range "null" {
		p.advance()
	}
	return p.reserve(Token{Type: Null, ParentID: parentID, Start: start, End: p.pos}), nil
}

func (p *parser) parseNumber(parentID int) (int, error) {
	start := p.pos
	numType := NumberInt
	if c, _ := p.peek(); c == '+' || c == '-' {
		p.advance()
	}
	if strings.HasPrefix(p.src[p.pos:], "0x") || strings.HasPrefix(p.src[p.pos:], "0X") {
		numType = NumberHex
		p.advance()
		p.advance()
		for {
			c, ok := p.peek()
			if !ok || !isHexDigit(c) {
				break
			}
			p.advance()
		}
		return p.reserve(Token{Type: Number, NumType: numType, ParentID: parentID, Start: start, End: p.pos}), nil
	}
	if strings.HasPrefix(p.src[p.pos:], "Infinity") {
		for range "Infinity" {
			p.advance()
		}
		return p.reserve(Token{Type: Number, NumType: NumberFloat, ParentID: parentID, Start: start, End: p.pos}), nil
	}
	if strings.HasPrefix(p.src[p.pos:], "NaN") {
		for range "NaN" {
			p.advance()
		}
		return p.reserve(Token{Type: Number, NumType: NumberFloat, ParentID: parentID, Start: start, End: p.pos}), nil
	}
	for {
		c, ok := p.peek()
		if !ok {
			break
		}
		if c >= '0' && c <= '9' {
			p.advance()
			continue
		}
		if c == '.' {
			numType = NumberFloat
			p.advance()
			continue
		}
		if c == 'e' || c == 'E' {
			numType = NumberFloat
			p.advance()
			if c2, ok := p.peek(); ok && (c2 == '+' || c2 == '-') {
				p.advance()
			}
			continue
		}
		break
	}
	if p.pos == start {
		return -1, p.errorf("invalid number")
	}
	return p.reserve(Token{Type: Number, NumType: numType, ParentID: parentID, Start: start, End: p.pos}), nil
}

func isHexDigit(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

// Seek returns the token id of key's value under the object at parentID,
// or -1 if absent. Only direct children are examined, mirroring cj5_seek.
func (r *Result) Seek(parentID int, key string) int {
	if parentID < 0 || parentID >= len(r.Tokens) || r.Tokens[parentID].Type != Object {
		return -1
	}
	i := parentID + 1
	for n := 0; n < r.Tokens[parentID].Size; n++ {
		keyTok := r.Tokens[i]
		if keyTok.Start < 0 {
			break
		}
		if r.Source[keyTok.Start:keyTok.End] == key {
			return i + 1
		}
		i = r.skipSubtree(i) + 1
	}
	return -1
}

// skipSubtree returns the index of the value token paired with the key
// token at i (i.e. i+1), advanced past that value's own subtree, so the
// caller can step to the next sibling key.
func (r *Result) skipSubtree(keyID int) int {
	valueID := keyID + 1
	return r.lastDescendant(valueID)
}

func (r *Result) lastDescendant(id int) int {
	tok := r.Tokens[id]
	if tok.Type != Object && tok.Type != Array {
		return id
	}
	end := id
	child := id + 1
	for n := 0; n < tok.Size; n++ {
		if tok.Type == Object {
			end = child // key
			child++
		}
		end = r.lastDescendant(child)
		child = end + 1
	}
	return end
}

// GetString returns the string token's decoded value (escapes resolved).
func (r *Result) GetString(id int) (string, error) {
	if id < 0 || r.Tokens[id].Type != String {
		return "", errors.Errorf("json5: token %d is not a string", id)
	}
	raw := r.Raw(id)
	if !strings.ContainsRune(raw, '\\') {
		return raw, nil
	}
	var b strings.Builder
	for i := 0; i < len(raw); i++ {
		if raw[i] == '\\' && i+1 < len(raw) {
			i++
			switch raw[i] {
			case 'n':
				b.WriteByte('\n')
			case 't':
				b.WriteByte('\t')
			case 'r':
				b.WriteByte('\r')
			case '\n':
				// escaped newline: JSON5 line continuation, emits nothing
			default:
				b.WriteByte(raw[i])
			}
			continue
		}
		b.WriteByte(raw[i])
	}
	return b.String(), nil
}

// GetFloat64 parses a Number token.
func (r *Result) GetFloat64(id int) (float64, error) {
	if id < 0 || r.Tokens[id].Type != Number {
		return 0, errors.Errorf("json5: token %d is not a number", id)
	}
	raw := r.Raw(id)
	switch raw {
	case "Infinity", "+Infinity":
		return strconv.ParseFloat("+Inf", 64)
	case "-Infinity":
		return strconv.ParseFloat("-Inf", 64)
	case "NaN":
		return strconv.ParseFloat("NaN", 64)
	}
	return strconv.ParseFloat(strings.TrimPrefix(raw, "+"), 64)
}

// GetInt64 parses a Number token as an integer, accepting hex literals.
func (r *Result) GetInt64(id int) (int64, error) {
	if id < 0 || r.Tokens[id].Type != Number {
		return 0, errors.Errorf("json5: token %d is not a number", id)
	}
	raw := strings.TrimPrefix(r.Raw(id), "+")
	if r.Tokens[id].NumType == NumberHex {
		return strconv.ParseInt(raw[2:], 16, 64)
	}
	f, err := strconv.ParseFloat(raw, 64)
	return int64(f), err
}

// GetBool parses a Bool token.
func (r *Result) GetBool(id int) (bool, error) {
	if id < 0 || r.Tokens[id].Type != Bool {
		return false, errors.Errorf("json5: token %d is not a bool", id)
	}
	return r.Raw(id) == "true", nil
}
