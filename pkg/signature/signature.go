// Package signature parses raw method descriptors into immutable,
// shared signature objects.
//
// A raw descriptor follows the usual class-file grammar:
//
//	(BCDFIJSZ L<classname>; [<type>)* <return-type>
//
// Parsed signatures are interned: parsing the same raw descriptor twice
// through the same Table yields the same *Signature instance, so kind
// queries never re-walk the descriptor string.
package signature

import (
	"fmt"
	"strings"
	"sync"
)

// ---------------------------------------------------------------------------
// Kind: primitive categories of guest values
// ---------------------------------------------------------------------------

// Kind classifies a guest type for calling-convention purposes.
type Kind uint8

const (
	KindVoid Kind = iota
	KindBoolean
	KindByte
	KindChar
	KindShort
	KindInt
	KindFloat
	KindLong
	KindDouble
	KindObject // class and array types
)

// String returns the descriptor-style name of the kind.
func (k Kind) String() string {
	switch k {
	case KindVoid:
		return "void"
	case KindBoolean:
		return "boolean"
	case KindByte:
		return "byte"
	case KindChar:
		return "char"
	case KindShort:
		return "short"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindLong:
		return "long"
	case KindDouble:
		return "double"
	case KindObject:
		return "object"
	}
	return "unknown"
}

// SlotCount returns the number of raw argument slots the kind occupies.
// Long and double occupy two slots; void occupies none.
func (k Kind) SlotCount() int {
	switch k {
	case KindLong, KindDouble:
		return 2
	case KindVoid:
		return 0
	default:
		return 1
	}
}

// ---------------------------------------------------------------------------
// Type: internal type names
// ---------------------------------------------------------------------------

// Type is an internal type name as it appears in a descriptor:
// "I", "J", "Ljava/lang/String;", "[I", ...
type Type string

// Kind returns the value kind for the type.
func (t Type) Kind() Kind {
	if len(t) == 0 {
		return KindVoid
	}
	switch t[0] {
	case 'Z':
		return KindBoolean
	case 'B':
		return KindByte
	case 'C':
		return KindChar
	case 'S':
		return KindShort
	case 'I':
		return KindInt
	case 'F':
		return KindFloat
	case 'J':
		return KindLong
	case 'D':
		return KindDouble
	case 'V':
		return KindVoid
	case 'L', '[':
		return KindObject
	}
	return KindVoid
}

// ClassName returns the class name of an L-type ("java/lang/String" for
// "Ljava/lang/String;"). Array and primitive types return the raw
// descriptor text.
func (t Type) ClassName() string {
	s := string(t)
	if strings.HasPrefix(s, "L") && strings.HasSuffix(s, ";") {
		return s[1 : len(s)-1]
	}
	return s
}

// ---------------------------------------------------------------------------
// Signature: a parsed method descriptor
// ---------------------------------------------------------------------------

// Signature is the parsed form of a raw method descriptor. It is
// immutable after construction and safe to share between methods.
type Signature struct {
	Raw    string
	Params []Type
	Return Type
}

// ParameterCount returns the number of declared parameters, plus one
// when withReceiver is true.
func (s *Signature) ParameterCount(withReceiver bool) int {
	if withReceiver {
		return len(s.Params) + 1
	}
	return len(s.Params)
}

// ParameterKind returns the kind of the i-th declared parameter.
func (s *Signature) ParameterKind(i int) Kind {
	return s.Params[i].Kind()
}

// ReturnKind returns the kind of the return type.
func (s *Signature) ReturnKind() Kind {
	return s.Return.Kind()
}

// SlotCount returns the number of raw argument slots the declared
// parameters occupy, plus one when withReceiver is true.
func (s *Signature) SlotCount(withReceiver bool) int {
	n := 0
	if withReceiver {
		n = 1
	}
	for _, p := range s.Params {
		n += p.Kind().SlotCount()
	}
	return n
}

// String returns the raw descriptor.
func (s *Signature) String() string {
	return s.Raw
}

// ---------------------------------------------------------------------------
// Parsing
// ---------------------------------------------------------------------------

// Parse parses a raw method descriptor. The result is a fresh
// *Signature; use a Table when sharing matters.
func Parse(raw string) (*Signature, error) {
	if len(raw) < 3 || raw[0] != '(' {
		return nil, fmt.Errorf("signature: malformed descriptor %q", raw)
	}

	var params []Type
	i := 1
	for i < len(raw) && raw[i] != ')' {
		t, next, err := parseType(raw, i)
		if err != nil {
			return nil, err
		}
		if t.Kind() == KindVoid {
			return nil, fmt.Errorf("signature: void parameter in %q", raw)
		}
		params = append(params, t)
		i = next
	}
	if i >= len(raw) || raw[i] != ')' {
		return nil, fmt.Errorf("signature: unterminated parameter list in %q", raw)
	}

	ret, next, err := parseType(raw, i+1)
	if err != nil {
		return nil, err
	}
	if next != len(raw) {
		return nil, fmt.Errorf("signature: trailing characters in %q", raw)
	}

	return &Signature{Raw: raw, Params: params, Return: ret}, nil
}

// MustParse is Parse for descriptors known to be well-formed, typically
// literals in bootstrap code and tests.
func MustParse(raw string) *Signature {
	s, err := Parse(raw)
	if err != nil {
		panic(err)
	}
	return s
}

// parseType parses one type starting at raw[i] and returns it along
// with the index just past it.
func parseType(raw string, i int) (Type, int, error) {
	if i >= len(raw) {
		return "", i, fmt.Errorf("signature: truncated descriptor %q", raw)
	}
	switch raw[i] {
	case 'Z', 'B', 'C', 'S', 'I', 'F', 'J', 'D', 'V':
		return Type(raw[i : i+1]), i + 1, nil
	case 'L':
		end := strings.IndexByte(raw[i:], ';')
		if end < 0 {
			return "", i, fmt.Errorf("signature: unterminated class type in %q", raw)
		}
		return Type(raw[i : i+end+1]), i + end + 1, nil
	case '[':
		elem, next, err := parseType(raw, i+1)
		if err != nil {
			return "", i, err
		}
		if elem.Kind() == KindVoid {
			return "", i, fmt.Errorf("signature: void array element in %q", raw)
		}
		return Type(raw[i:next]), next, nil
	}
	return "", i, fmt.Errorf("signature: unexpected character %q in %q", raw[i], raw)
}

// ---------------------------------------------------------------------------
// Table: parsed-signature interning
// ---------------------------------------------------------------------------

// Table interns parsed signatures by raw descriptor. It is safe for
// concurrent use.
type Table struct {
	mu     sync.RWMutex
	parsed map[string]*Signature
}

// NewTable creates an empty signature table.
func NewTable() *Table {
	return &Table{parsed: make(map[string]*Signature)}
}

// Parsed returns the shared parsed form of raw, parsing it on first
// request.
func (t *Table) Parsed(raw string) (*Signature, error) {
	t.mu.RLock()
	s := t.parsed[raw]
	t.mu.RUnlock()
	if s != nil {
		return s, nil
	}

	parsed, err := Parse(raw)
	if err != nil {
		return nil, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	// Another goroutine may have parsed it first; keep the winner so
	// callers always share one instance.
	if existing := t.parsed[raw]; existing != nil {
		return existing, nil
	}
	t.parsed[raw] = parsed
	return parsed, nil
}

// Len returns the number of interned signatures.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.parsed)
}
