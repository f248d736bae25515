package server

import (
	"errors"
	"fmt"
	"time"

	"github.com/valyala/fastjson"

	"github.com/log4mongo/log4mongo-go/internal/jsonbson"
	"github.com/log4mongo/log4mongo-go/model"
)

var errNotObject = errors.New("event must be a JSON object")

// eventFromJSON converts one posted event. Accepted keys:
//
//	timestamp   unix nanoseconds, or an RFC 3339 string; defaults to now
//	level, thread, logger, message (msg), userName, domain
//	location    {file, method, line, class}
//	exception   {message, source, stackTrace, innerException}
//	properties  object; values keep their JSON shape
//
// global becomes the global property scope; posted properties win over it.
func eventFromJSON(v *fastjson.Value, now time.Time, global map[string]any) (*model.Event, error) {
	if v.Type() != fastjson.TypeObject {
		return nil, errNotObject
	}

	ts, err := timestamp(v.Get("timestamp"), now)
	if err != nil {
		return nil, err
	}

	e := &model.Event{
		Timestamp:  ts,
		Level:      str(v, "level"),
		Thread:     str(v, "thread"),
		UserName:   str(v, "userName"),
		Message:    str(v, "message"),
		LoggerName: str(v, "logger"),
		Domain:     str(v, "domain"),
	}
	e.Properties.Global = global
	if e.Message == "" {
		e.Message = str(v, "msg")
	}
	if e.LoggerName == "" {
		e.LoggerName = str(v, "loggerName")
	}

	if loc := v.Get("location"); loc != nil && loc.Type() == fastjson.TypeObject {
		e.Location = &model.Location{
			File:   str(loc, "file"),
			Method: str(loc, "method"),
			Line:   loc.GetInt("line"),
			Class:  str(loc, "class"),
		}
	}

	if ex := v.Get("exception"); ex != nil && ex.Type() == fastjson.TypeObject {
		e.Error = remoteError(ex, 0)
	}

	if props := v.Get("properties"); props != nil {
		obj, err := props.Object()
		if err != nil {
			return nil, fmt.Errorf("properties: %w", err)
		}
		thread := make(map[string]any, obj.Len())
		obj.Visit(func(key []byte, val *fastjson.Value) {
			thread[string(key)] = jsonbson.Value(val)
		})
		e.Properties.Thread = thread
	}

	return e, nil
}

func timestamp(v *fastjson.Value, now time.Time) (time.Time, error) {
	if v == nil || v.Type() == fastjson.TypeNull {
		return now, nil
	}
	switch v.Type() {
	case fastjson.TypeNumber:
		ns, err := v.Int64()
		if err != nil {
			return time.Time{}, fmt.Errorf("timestamp: %w", err)
		}
		if ns == 0 {
			return now, nil
		}
		return time.Unix(0, ns), nil
	case fastjson.TypeString:
		t, err := time.Parse(time.RFC3339Nano, string(v.GetStringBytes()))
		if err != nil {
			return time.Time{}, fmt.Errorf("timestamp: %w", err)
		}
		return t, nil
	default:
		return time.Time{}, fmt.Errorf("timestamp: unexpected %s", v.Type())
	}
}

// Nesting deeper than this is cut off.
const maxInnerDepth = 32

func remoteError(v *fastjson.Value, depth int) *model.RemoteError {
	e := &model.RemoteError{
		Message: str(v, "message"),
		Src:     str(v, "source"),
		Stack:   str(v, "stackTrace"),
	}
	if inner := v.Get("innerException"); inner != nil && inner.Type() == fastjson.TypeObject && depth < maxInnerDepth {
		e.Inner = remoteError(inner, depth+1)
	}
	return e
}

func str(v *fastjson.Value, key string) string {
	return string(v.GetStringBytes(key))
}
