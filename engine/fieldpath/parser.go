package fieldpath

import (
	"fmt"
	"strings"
)

// Func names accepted as aggregate wrappers around an inner path.
const (
	FuncLen   = "len"
	FuncAny   = "any"
	FuncAll   = "all"
	FuncCount = "count"
	FuncSum   = "sum"
	FuncMax   = "max"
	FuncMin   = "min"
)

var funcNames = map[string]bool{
	FuncLen:   true,
	FuncAny:   true,
	FuncAll:   true,
	FuncCount: true,
	FuncSum:   true,
	FuncMax:   true,
	FuncMin:   true,
}

// Segment is one step of a parsed path: a field name, a field name
// with a `[*]` wildcard suffix, or a bare `*`.
type Segment struct {
	Name     string
	Wildcard bool
}

// Path is a parsed field-path expression.
type Path struct {
	Func     string
	Segments []Segment
	raw      string
}

func (p *Path) String() string {
	return p.raw
}

// Parse validates and decomposes a path expression:
//
//	path    := func "(" inner ")" | inner
//	inner   := segment ("." segment)*
//	segment := identifier | identifier "[*]" | "*"
func Parse(expr string) (*Path, error) {
	raw := strings.TrimSpace(expr)
	if raw == "" {
		return nil, fmt.Errorf("empty field path")
	}
	inner := raw
	fn := ""
	if open := strings.Index(raw, "("); open > 0 && strings.HasSuffix(raw, ")") {
		name := raw[:open]
		if !funcNames[name] {
			return nil, fmt.Errorf("unknown path function %q", name)
		}
		fn = name
		inner = strings.TrimSpace(raw[open+1 : len(raw)-1])
		if inner == "" {
			return nil, fmt.Errorf("empty inner path in %q", raw)
		}
	}
	parts := strings.Split(inner, ".")
	segments := make([]Segment, 0, len(parts))
	for _, part := range parts {
		seg, err := parseSegment(part)
		if err != nil {
			return nil, fmt.Errorf("invalid path %q: %w", raw, err)
		}
		segments = append(segments, seg)
	}
	return &Path{Func: fn, Segments: segments, raw: raw}, nil
}

func parseSegment(part string) (Segment, error) {
	part = strings.TrimSpace(part)
	if part == "*" {
		return Segment{Wildcard: true}, nil
	}
	wildcard := false
	if strings.HasSuffix(part, "[*]") {
		wildcard = true
		part = strings.TrimSuffix(part, "[*]")
	}
	if !isIdentifier(part) {
		return Segment{}, fmt.Errorf("invalid segment %q", part)
	}
	return Segment{Name: part, Wildcard: wildcard}, nil
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r == '_':
		case r >= '0' && r <= '9', r == '-':
			if i == 0 {
				return false
			}
		default:
			return false
		}
	}
	return true
}
