// Package protocol models battle protocol messages as structured lines and
// decodes them from both dialects the harness compares: the engine's binary
// log and the reference simulator's pipe-delimited text.
package protocol

import (
	"maps"
	"slices"
	"sort"
	"strings"
)

// ParsedLine is one protocol message: Args[0] is the message tag, followed by
// its positional arguments. KWArgs holds the trailing named arguments; flags
// such as [silent] map to the empty string.
type ParsedLine struct {
	Args   []string
	KWArgs map[string]string
}

// NewLine builds a line from a tag and positional arguments.
func NewLine(tag string, args ...string) ParsedLine {
	return ParsedLine{Args: append([]string{tag}, args...), KWArgs: map[string]string{}}
}

// With returns the line with key set to value.
func (l ParsedLine) With(key, value string) ParsedLine {
	if l.KWArgs == nil {
		l.KWArgs = map[string]string{}
	}
	l.KWArgs[key] = value
	return l
}

// Tag returns the message kind, or "" for an empty line.
func (l ParsedLine) Tag() string {
	if len(l.Args) == 0 {
		return ""
	}
	return l.Args[0]
}

// Has reports whether the named argument is present.
func (l ParsedLine) Has(key string) bool {
	_, ok := l.KWArgs[key]
	return ok
}

// Equal reports whether both lines have the same tag, positional arguments
// and named arguments. A nil and an empty named-argument map are equal.
func (l ParsedLine) Equal(o ParsedLine) bool {
	if !slices.Equal(l.Args, o.Args) || len(l.KWArgs) != len(o.KWArgs) {
		return false
	}
	return len(l.KWArgs) == 0 || maps.Equal(l.KWArgs, o.KWArgs)
}

// Clone returns a deep copy that can be modified independently.
func (l ParsedLine) Clone() ParsedLine {
	return ParsedLine{Args: slices.Clone(l.Args), KWArgs: maps.Clone(l.KWArgs)}
}

// String renders the line in the text dialect. Named arguments are sorted so
// the output is stable.
func (l ParsedLine) String() string {
	var b strings.Builder
	for _, a := range l.Args {
		b.WriteByte('|')
		b.WriteString(a)
	}
	keys := slices.Collect(maps.Keys(l.KWArgs))
	sort.Strings(keys)
	for _, k := range keys {
		b.WriteString("|[")
		b.WriteString(k)
		b.WriteByte(']')
		if v := l.KWArgs[k]; v != "" {
			b.WriteByte(' ')
			b.WriteString(v)
		}
	}
	return b.String()
}
