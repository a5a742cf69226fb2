package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"
	"unicode/utf8"
)

var (
	ErrMalformed    = errors.New("malformed frame")
	ErrUnknownType  = errors.New("unknown message type")
	ErrInvalidField = errors.New("invalid field")
)

// DecodeError carries the reason a frame was rejected.
type DecodeError struct {
	Field string
	Err   error
}

func (e *DecodeError) Error() string {
	if e.Field == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %s", e.Err, e.Field)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// ClientMessage is one of Input, Ping or Start.
type ClientMessage interface {
	clientType() string
}

type Input struct {
	Type   string   `json:"type" jsonschema:"enum=input"`
	MoveX  float64  `json:"moveX" jsonschema:"minimum=-1,maximum=1"`
	Shoot  bool     `json:"shoot"`
	X      *float64 `json:"x,omitempty"`
	ShotID string   `json:"shotId,omitempty" jsonschema:"maxLength=80"`
}

type Ping struct {
	Type string  `json:"type" jsonschema:"enum=ping"`
	T    float64 `json:"t"`
}

type Start struct {
	Type string `json:"type" jsonschema:"enum=start"`
}

func (Input) clientType() string { return TypeInput }
func (Ping) clientType() string  { return TypePing }
func (Start) clientType() string { return TypeStart }

// DecodeClient parses one inbound frame. It never panics; anything that is
// not a well-formed client message yields a *DecodeError. now supplies the
// default ping timestamp.
func DecodeClient(data []byte, now time.Time) (ClientMessage, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil || fields == nil {
		return nil, &DecodeError{Err: ErrMalformed}
	}

	var typ string
	raw, ok := fields["type"]
	if !ok {
		return nil, &DecodeError{Field: "type", Err: ErrUnknownType}
	}
	if err := json.Unmarshal(raw, &typ); err != nil {
		return nil, &DecodeError{Field: "type", Err: ErrUnknownType}
	}

	switch typ {
	case TypeInput:
		return decodeInput(fields)
	case TypePing:
		t, ok := number(fields["t"])
		if !ok {
			t = float64(now.UnixMilli())
		}
		return Ping{Type: TypePing, T: t}, nil
	case TypeStart:
		return Start{Type: TypeStart}, nil
	default:
		return nil, &DecodeError{Field: "type", Err: ErrUnknownType}
	}
}

func decodeInput(fields map[string]json.RawMessage) (ClientMessage, error) {
	in := Input{Type: TypeInput}

	if mx, ok := number(fields["moveX"]); ok {
		in.MoveX = math.Max(-1, math.Min(1, mx))
	}

	if raw, ok := fields["shoot"]; ok && !isNull(raw) {
		if err := json.Unmarshal(raw, &in.Shoot); err != nil {
			return nil, &DecodeError{Field: "shoot", Err: ErrInvalidField}
		}
	}

	if x, ok := number(fields["x"]); ok {
		in.X = &x
	}

	if raw, ok := fields["shotId"]; ok && !isNull(raw) {
		if err := json.Unmarshal(raw, &in.ShotID); err != nil {
			return nil, &DecodeError{Field: "shotId", Err: ErrInvalidField}
		}
		if utf8.RuneCountInString(in.ShotID) > MaxShotIDLen {
			return nil, &DecodeError{Field: "shotId", Err: ErrInvalidField}
		}
	}

	return in, nil
}

// number reads a finite JSON number. Absent, null or non-numeric values
// report false.
func number(raw json.RawMessage) (float64, bool) {
	if len(raw) == 0 || isNull(raw) {
		return 0, false
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func isNull(raw json.RawMessage) bool {
	return string(raw) == "null"
}
