package layout

import (
	"fmt"
	"strings"
)

// Named date formats accepted as %date options.
var namedDateFormats = map[string]string{
	"ISO8601":  DefaultDateFormat,
	"ABSOLUTE": "15:04:05,000",
	"DATE":     "02 Jan 2006 15:04:05,000",
}

// dateLayout turns a %date option into a time layout. An option holding a
// digit is a Go reference layout ("15:04:05"). Anything else is a named
// format or a .NET custom format ("yyyy-MM-dd HH:mm:ss,fff").
func dateLayout(option string) (string, error) {
	if option == "" {
		return DefaultDateFormat, nil
	}
	if named, ok := namedDateFormats[strings.ToUpper(option)]; ok {
		return named, nil
	}
	if strings.ContainsAny(option, "0123456789") {
		return option, nil
	}
	return convertDotNetFormat(option)
}

func convertDotNetFormat(format string) (string, error) {
	var sb strings.Builder
	for i := 0; i < len(format); {
		c := format[i]
		switch c {
		case '\'', '"':
			end := strings.IndexByte(format[i+1:], c)
			if end < 0 {
				return "", fmt.Errorf("date format %q: unterminated quote", format)
			}
			sb.WriteString(format[i+1 : i+1+end])
			i += end + 2
			continue
		case '\\':
			if i+1 < len(format) {
				sb.WriteByte(format[i+1])
			}
			i += 2
			continue
		}

		n := 1
		for i+n < len(format) && format[i+n] == c {
			n++
		}

		token, err := dotNetToken(c, n, sb.String())
		if err != nil {
			return "", fmt.Errorf("date format %q: %w", format, err)
		}
		sb.WriteString(token)
		i += n
	}
	return sb.String(), nil
}

// dotNetToken maps a run of n copies of c. Characters that are not format
// specifiers are kept literally.
func dotNetToken(c byte, n int, before string) (string, error) {
	pick := func(options ...string) string {
		return options[min(n, len(options))-1]
	}

	switch c {
	case 'y':
		if n <= 2 {
			return "06", nil
		}
		return "2006", nil
	case 'M':
		return pick("1", "01", "Jan", "January"), nil
	case 'd':
		return pick("2", "02", "Mon", "Monday"), nil
	case 'H':
		return "15", nil
	case 'h':
		return pick("3", "03"), nil
	case 'm':
		return pick("4", "04"), nil
	case 's':
		return pick("5", "05"), nil
	case 'f', 'F':
		if !strings.HasSuffix(before, ".") && !strings.HasSuffix(before, ",") {
			return "", fmt.Errorf("fractional seconds must follow '.' or ','")
		}
		digit := "0"
		if c == 'F' {
			digit = "9"
		}
		return strings.Repeat(digit, min(n, 9)), nil
	case 't':
		return "PM", nil
	case 'z':
		return pick("-07", "-07", "-07:00"), nil
	case 'K':
		return "Z07:00", nil
	default:
		return strings.Repeat(string(c), n), nil
	}
}
