package layout

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/log4mongo/log4mongo-go/model"
)

// DefaultDateFormat is used by %date and %utcdate without an option.
const DefaultDateFormat = "2006-01-02 15:04:05,000"

// Pattern renders an event through a conversion pattern such as
// "%date [%thread] %-5level %logger - %message%newline".
//
// Supported conversions: %level (%p), %thread (%t), %message (%m),
// %logger (%c), %date{layout} (%d), %utcdate{layout}, %property{key} (%X),
// %exception, %file (%F), %line (%L), %method (%M), %class (%C),
// %username (%u), %appdomain (%a), %newline (%n) and %%. A conversion may
// carry a minimum width, left aligned when prefixed by '-' (%-5level).
type Pattern struct {
	source   string
	segments []segment
}

type segment struct {
	literal string
	convert converter
	width   int
	left    bool
}

type converter func(e *model.Event) string

// NewPattern compiles pattern.
func NewPattern(pattern string) (*Pattern, error) {
	p := &Pattern{source: pattern}
	var lit strings.Builder

	for i := 0; i < len(pattern); i++ {
		c := pattern[i]
		if c != '%' {
			lit.WriteByte(c)
			continue
		}
		if i+1 < len(pattern) && pattern[i+1] == '%' {
			lit.WriteByte('%')
			i++
			continue
		}

		seg, next, err := parseConversion(pattern, i+1)
		if err != nil {
			return nil, err
		}
		if lit.Len() > 0 {
			p.segments = append(p.segments, segment{literal: lit.String()})
			lit.Reset()
		}
		p.segments = append(p.segments, seg)
		i = next - 1
	}

	if lit.Len() > 0 {
		p.segments = append(p.segments, segment{literal: lit.String()})
	}
	return p, nil
}

// MustPattern is NewPattern for patterns known at compile time.
func MustPattern(pattern string) *Pattern {
	p, err := NewPattern(pattern)
	if err != nil {
		panic(err)
	}
	return p
}

// String returns the source pattern.
func (p *Pattern) String() string { return p.source }

// Format renders the pattern; the result is always a string.
func (p *Pattern) Format(e *model.Event) (any, error) {
	return p.Render(e), nil
}

// Render renders the pattern to a string.
func (p *Pattern) Render(e *model.Event) string {
	var sb strings.Builder
	for _, s := range p.segments {
		if s.convert == nil {
			sb.WriteString(s.literal)
			continue
		}
		v := s.convert(e)
		if pad := s.width - len(v); pad > 0 {
			if s.left {
				sb.WriteString(v)
				sb.WriteString(strings.Repeat(" ", pad))
				continue
			}
			sb.WriteString(strings.Repeat(" ", pad))
		}
		sb.WriteString(v)
	}
	return sb.String()
}

// parseConversion reads "[-][width]name[{option}]" starting at pos and
// returns the segment plus the index just past it.
func parseConversion(pattern string, pos int) (segment, int, error) {
	var seg segment
	i := pos

	if i < len(pattern) && pattern[i] == '-' {
		seg.left = true
		i++
	}
	start := i
	for i < len(pattern) && pattern[i] >= '0' && pattern[i] <= '9' {
		i++
	}
	if i > start {
		seg.width, _ = strconv.Atoi(pattern[start:i])
	}

	start = i
	for i < len(pattern) && isLetter(pattern[i]) {
		i++
	}
	name := pattern[start:i]
	if name == "" {
		return seg, 0, fmt.Errorf("pattern %q: missing conversion name at offset %d", pattern, pos-1)
	}

	var option string
	if i < len(pattern) && pattern[i] == '{' {
		end := strings.IndexByte(pattern[i:], '}')
		if end < 0 {
			return seg, 0, fmt.Errorf("pattern %q: unterminated option for %%%s", pattern, name)
		}
		option = pattern[i+1 : i+end]
		i += end + 1
	}

	conv, err := lookupConverter(name, option)
	if err != nil {
		return seg, 0, fmt.Errorf("pattern %q: %w", pattern, err)
	}
	seg.convert = conv
	return seg, i, nil
}

func isLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func lookupConverter(name, option string) (converter, error) {
	switch name {
	case "level", "p":
		return func(e *model.Event) string { return e.Level }, nil
	case "thread", "t":
		return func(e *model.Event) string { return e.Thread }, nil
	case "message", "m":
		return func(e *model.Event) string { return e.Message }, nil
	case "logger", "c":
		return func(e *model.Event) string { return e.LoggerName }, nil
	case "username", "u":
		return func(e *model.Event) string { return e.UserName }, nil
	case "appdomain", "a":
		return func(e *model.Event) string { return e.Domain }, nil
	case "newline", "n":
		return func(*model.Event) string { return "\n" }, nil
	case "date", "d":
		layout, err := dateLayout(option)
		if err != nil {
			return nil, err
		}
		return func(e *model.Event) string { return e.Timestamp.Format(layout) }, nil
	case "utcdate":
		layout, err := dateLayout(option)
		if err != nil {
			return nil, err
		}
		return func(e *model.Event) string { return e.Timestamp.UTC().Format(layout) }, nil
	case "property", "X", "P":
		if option == "" {
			return renderAllProperties, nil
		}
		return func(e *model.Event) string {
			v, ok := e.Properties.Lookup(option)
			if !ok || v == nil {
				return ""
			}
			return fmt.Sprint(v)
		}, nil
	case "exception":
		return func(e *model.Event) string {
			if e.Error == nil {
				return ""
			}
			return RenderError(e.Error)
		}, nil
	case "file", "F":
		return locationPart(func(l *model.Location) string { return l.File }), nil
	case "line", "L":
		return locationPart(func(l *model.Location) string { return strconv.Itoa(l.Line) }), nil
	case "method", "M":
		return locationPart(func(l *model.Location) string { return l.Method }), nil
	case "class", "C":
		return locationPart(func(l *model.Location) string { return l.Class }), nil
	default:
		return nil, fmt.Errorf("unknown conversion %%%s", name)
	}
}

func locationPart(get func(*model.Location) string) converter {
	return func(e *model.Event) string {
		if e.Location == nil {
			return "?"
		}
		return get(e.Location)
	}
}

func renderAllProperties(e *model.Event) string {
	merged := e.Properties.Merged()
	keys := make([]string, 0, len(merged))
	for k := range merged {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	sb.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			sb.WriteString(", ")
		}
		fmt.Fprintf(&sb, "%s=%v", k, merged[k])
	}
	sb.WriteByte('}')
	return sb.String()
}
