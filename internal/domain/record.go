package domain

import "strings"

// RecordKind discriminates the seven GDB/MI record families by their
// leading sigil.
type RecordKind string

const (
	KindResult        RecordKind = "result"         // ^
	KindExecAsync     RecordKind = "exec-async"     // *
	KindStatusAsync   RecordKind = "status-async"   // +
	KindNotifyAsync   RecordKind = "notify-async"   // =
	KindConsoleStream RecordKind = "console-stream" // ~
	KindTargetStream  RecordKind = "target-stream"  // @
	KindLogStream     RecordKind = "log-stream"     // &
)

// IsStream reports whether the kind carries a single free-text payload
// instead of a class/fields tail.
func (k RecordKind) IsStream() bool {
	switch k {
	case KindConsoleStream, KindTargetStream, KindLogStream:
		return true
	}
	return false
}

// IsAsync reports whether the kind is one of the three async families.
func (k RecordKind) IsAsync() bool {
	switch k {
	case KindExecAsync, KindStatusAsync, KindNotifyAsync:
		return true
	}
	return false
}

// Value is one node of the MI payload grammar: a string constant, a
// Fields tuple, or a List.
type Value interface{ miValue() }

// Str is a c-string constant after unescaping.
type Str string

// List is an MI list; elements are values or, for lists of results,
// single-entry Fields.
type List []Value

// Field is one key=value pair of a tuple.
type Field struct {
	Key   string
	Value Value
}

// Fields is an insertion-ordered tuple. MI tuples may repeat keys, so a
// slice rather than a map.
type Fields []Field

func (Str) miValue()    {}
func (List) miValue()   {}
func (Fields) miValue() {}

// Get returns the first value stored under key.
func (f Fields) Get(key string) (Value, bool) {
	for _, entry := range f {
		if entry.Key == key {
			return entry.Value, true
		}
	}
	return nil, false
}

// Str returns the string constant stored under key, or "" when the key
// is absent or not a constant.
func (f Fields) Str(key string) string {
	v, ok := f.Get(key)
	if !ok {
		return ""
	}
	s, ok := v.(Str)
	if !ok {
		return ""
	}
	return string(s)
}

// Fields returns the nested tuple stored under key.
func (f Fields) Fields(key string) (Fields, bool) {
	v, ok := f.Get(key)
	if !ok {
		return nil, false
	}
	nested, ok := v.(Fields)
	return nested, ok
}

// List returns the list stored under key.
func (f Fields) List(key string) (List, bool) {
	v, ok := f.Get(key)
	if !ok {
		return nil, false
	}
	list, ok := v.(List)
	return list, ok
}

// Tuples flattens a list whose elements are tuples. MI emits both
// `[{...},{...}]` and `[frame={...},frame={...}]` for the same logical
// shape, so single-entry wrappers are unwrapped.
func (l List) Tuples() []Fields {
	var out []Fields
	for _, v := range l {
		switch elem := v.(type) {
		case Fields:
			if len(elem) == 1 {
				if inner, ok := elem[0].Value.(Fields); ok {
					out = append(out, inner)
					continue
				}
			}
			out = append(out, elem)
		}
	}
	return out
}

// Record is one parsed protocol line. Immutable once constructed.
type Record struct {
	Kind    RecordKind
	Token   uint64
	HasTok  bool
	Class   string // result/async class: "done", "error", "stopped", ...
	Payload Fields // nil for stream records
	Text    string // stream payload; empty otherwise
}

// DisplayText renders the record for a log pane: stream text verbatim,
// structured records as class plus payload.
func (r Record) DisplayText() string {
	if r.Kind.IsStream() {
		return strings.TrimRight(r.Text, "\n")
	}
	var b strings.Builder
	b.WriteString(r.Class)
	for _, f := range r.Payload {
		b.WriteString(" ")
		b.WriteString(f.Key)
		b.WriteString("=")
		writeValue(&b, f.Value)
	}
	return b.String()
}

func writeValue(b *strings.Builder, v Value) {
	switch val := v.(type) {
	case Str:
		b.WriteString(string(val))
	case Fields:
		b.WriteString("{")
		for i, f := range val {
			if i > 0 {
				b.WriteString(",")
			}
			b.WriteString(f.Key)
			b.WriteString("=")
			writeValue(b, f.Value)
		}
		b.WriteString("}")
	case List:
		b.WriteString("[")
		for i, elem := range val {
			if i > 0 {
				b.WriteString(",")
			}
			writeValue(b, elem)
		}
		b.WriteString("]")
	}
}
