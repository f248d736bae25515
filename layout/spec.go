package layout

import (
	"fmt"
	"strings"
)

// Layout types accepted in configuration.
const (
	TypePattern         = "pattern"
	TypeRawTimeStamp    = "rawtimestamp"
	TypeRawUTCTimeStamp = "rawutctimestamp"
	TypeRawProperty     = "rawproperty"
	TypeException       = "exception"
	TypeJSON            = "json"
	TypeConstant        = "constant"
)

// Spec is the configuration entry selecting a layout.
type Spec struct {
	Type    string `mapstructure:"type" json:"type"`
	Pattern string `mapstructure:"pattern" json:"pattern,omitempty"`
	Key     string `mapstructure:"key" json:"key,omitempty"`
	Value   string `mapstructure:"value" json:"value,omitempty"`
}

// New builds the layout described by spec. An empty type with a pattern is
// treated as a pattern layout.
func New(spec Spec) (Layout, error) {
	typ := strings.ToLower(strings.TrimSpace(spec.Type))
	if typ == "" && spec.Pattern != "" {
		typ = TypePattern
	}

	switch typ {
	case TypePattern:
		return NewPattern(spec.Pattern)
	case TypeRawTimeStamp:
		return RawTimeStamp{}, nil
	case TypeRawUTCTimeStamp:
		return RawUTCTimeStamp{}, nil
	case TypeRawProperty:
		if spec.Key == "" {
			return nil, fmt.Errorf("layout %s: key is required", typ)
		}
		return RawProperty{Key: spec.Key}, nil
	case TypeException:
		return Exception{}, nil
	case TypeConstant:
		return Constant{Value: spec.Value}, nil
	case TypeJSON:
		if spec.Key != "" {
			return JSON{Inner: RawProperty{Key: spec.Key}}, nil
		}
		inner, err := NewPattern(spec.Pattern)
		if err != nil {
			return nil, err
		}
		return JSON{Inner: inner}, nil
	default:
		return nil, fmt.Errorf("unknown layout type %q", spec.Type)
	}
}
