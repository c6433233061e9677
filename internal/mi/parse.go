// Package mi parses GDB/MI protocol output lines into records.
// Parsing is purely textual: no state, no I/O, safe to call from any
// goroutine.
package mi

import (
	"fmt"
	"strings"

	"github.com/sprookie/aigdb/internal/domain"
)

// ParseError describes a line that does not match the MI grammar.
type ParseError struct {
	Line   string
	Pos    int
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse MI line at column %d: %s", e.Pos, e.Reason)
}

const promptSentinel = "(gdb)"

// IsPrompt reports whether line is the ready prompt that terminates the
// output of the in-flight command. The prompt produces no record.
func IsPrompt(line string) bool {
	return strings.TrimSpace(line) == promptSentinel
}

var sigilKinds = map[byte]domain.RecordKind{
	'^': domain.KindResult,
	'*': domain.KindExecAsync,
	'+': domain.KindStatusAsync,
	'=': domain.KindNotifyAsync,
	'~': domain.KindConsoleStream,
	'@': domain.KindTargetStream,
	'&': domain.KindLogStream,
}

// Parse converts one raw protocol line into a Record. The line must not
// include its trailing newline. Prompt sentinels are rejected; callers
// check IsPrompt first.
func Parse(line string) (domain.Record, error) {
	p := &parser{input: line}
	return p.parseLine()
}

type parser struct {
	input string
	pos   int
}

func (p *parser) parseLine() (domain.Record, error) {
	var rec domain.Record

	token, hasToken := p.readToken()
	rec.Token = token
	rec.HasTok = hasToken

	if p.pos >= len(p.input) {
		return rec, p.errorf("missing record sigil")
	}
	kind, ok := sigilKinds[p.input[p.pos]]
	if !ok {
		return rec, p.errorf("unknown sigil %q", p.input[p.pos])
	}
	// GDB stamps the submitting command's token on both the result and
	// any async records it echoes for that command. Stream records never
	// carry one.
	if hasToken && kind.IsStream() {
		return rec, p.errorf("token prefix on stream record")
	}
	p.pos++
	rec.Kind = kind

	if kind.IsStream() {
		text, err := p.parseCString()
		if err != nil {
			return rec, err
		}
		if p.pos != len(p.input) {
			return rec, p.errorf("trailing characters after stream payload")
		}
		rec.Text = text
		return rec, nil
	}

	class := p.readClass()
	if class == "" {
		return rec, p.errorf("empty record class")
	}
	rec.Class = class

	for p.pos < len(p.input) {
		if p.input[p.pos] != ',' {
			return rec, p.errorf("expected ',' before field")
		}
		p.pos++
		field, err := p.parseField()
		if err != nil {
			return rec, err
		}
		rec.Payload = append(rec.Payload, field)
	}
	return rec, nil
}

// readToken consumes the optional leading decimal correlation token.
func (p *parser) readToken() (uint64, bool) {
	start := p.pos
	var token uint64
	for p.pos < len(p.input) && p.input[p.pos] >= '0' && p.input[p.pos] <= '9' {
		token = token*10 + uint64(p.input[p.pos]-'0')
		p.pos++
	}
	return token, p.pos > start
}

// readClass consumes a result/async class: "done", "error",
// "stopped", "thread-group-added", ...
func (p *parser) readClass() string {
	start := p.pos
	for p.pos < len(p.input) {
		c := p.input[p.pos]
		if (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') || c == '-' || c == '_' {
			p.pos++
			continue
		}
		break
	}
	return p.input[start:p.pos]
}

func (p *parser) parseField() (domain.Field, error) {
	key := p.readClass()
	if key == "" {
		return domain.Field{}, p.errorf("empty field name")
	}
	if p.pos >= len(p.input) || p.input[p.pos] != '=' {
		return domain.Field{}, p.errorf("expected '=' after field name %q", key)
	}
	p.pos++
	value, err := p.parseValue()
	if err != nil {
		return domain.Field{}, err
	}
	return domain.Field{Key: key, Value: value}, nil
}

func (p *parser) parseValue() (domain.Value, error) {
	if p.pos >= len(p.input) {
		return nil, p.errorf("missing value")
	}
	switch p.input[p.pos] {
	case '"':
		s, err := p.parseCString()
		if err != nil {
			return nil, err
		}
		return domain.Str(s), nil
	case '{':
		return p.parseTuple()
	case '[':
		return p.parseList()
	default:
		return nil, p.errorf("invalid value start %q", p.input[p.pos])
	}
}

func (p *parser) parseTuple() (domain.Fields, error) {
	p.pos++ // '{'
	fields := domain.Fields{}
	if p.pos < len(p.input) && p.input[p.pos] == '}' {
		p.pos++
		return fields, nil
	}
	for {
		field, err := p.parseField()
		if err != nil {
			return nil, err
		}
		fields = append(fields, field)
		if p.pos >= len(p.input) {
			return nil, p.errorf("unterminated tuple")
		}
		switch p.input[p.pos] {
		case ',':
			p.pos++
		case '}':
			p.pos++
			return fields, nil
		default:
			return nil, p.errorf("expected ',' or '}' in tuple")
		}
	}
}

// parseList handles both value lists and result lists; a result list
// element becomes a single-entry tuple so key information survives.
func (p *parser) parseList() (domain.List, error) {
	p.pos++ // '['
	list := domain.List{}
	if p.pos < len(p.input) && p.input[p.pos] == ']' {
		p.pos++
		return list, nil
	}
	for {
		if p.pos >= len(p.input) {
			return nil, p.errorf("unterminated list")
		}
		var elem domain.Value
		switch p.input[p.pos] {
		case '"', '{', '[':
			v, err := p.parseValue()
			if err != nil {
				return nil, err
			}
			elem = v
		default:
			field, err := p.parseField()
			if err != nil {
				return nil, err
			}
			elem = domain.Fields{field}
		}
		list = append(list, elem)
		if p.pos >= len(p.input) {
			return nil, p.errorf("unterminated list")
		}
		switch p.input[p.pos] {
		case ',':
			p.pos++
		case ']':
			p.pos++
			return list, nil
		default:
			return nil, p.errorf("expected ',' or ']' in list")
		}
	}
}

// parseCString consumes a double-quoted constant, applying the MI
// backslash escapes.
func (p *parser) parseCString() (string, error) {
	if p.pos >= len(p.input) || p.input[p.pos] != '"' {
		return "", p.errorf("expected opening quote")
	}
	p.pos++
	var b strings.Builder
	for p.pos < len(p.input) {
		c := p.input[p.pos]
		switch c {
		case '"':
			p.pos++
			return b.String(), nil
		case '\\':
			p.pos++
			if p.pos >= len(p.input) {
				return "", p.errorf("dangling escape at end of line")
			}
			esc := p.input[p.pos]
			switch esc {
			case 'n':
				b.WriteByte('\n')
			case 't':
				b.WriteByte('\t')
			case 'r':
				b.WriteByte('\r')
			case '"':
				b.WriteByte('"')
			case '\\':
				b.WriteByte('\\')
			default:
				return "", p.errorf("invalid escape sequence \\%c", esc)
			}
			p.pos++
		default:
			b.WriteByte(c)
			p.pos++
		}
	}
	return "", p.errorf("unterminated string constant")
}

func (p *parser) errorf(format string, args ...any) *ParseError {
	return &ParseError{
		Line:   p.input,
		Pos:    p.pos,
		Reason: fmt.Sprintf(format, args...),
	}
}
