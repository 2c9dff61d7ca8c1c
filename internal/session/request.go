package session

import (
	"bytes"
	"encoding/json"
	"errors"
	"strconv"

	"github.com/amirphl/chart-exerciser/internal/tfutils"
)

// Action names accepted on the wire.
const (
	ActionInit     = "init"
	ActionSwitch   = "switch"
	ActionGoto     = "goto"
	ActionPrefetch = "prefetch"
)

// Request is one decoded inbound message. The set of implementations is
// closed: InitRequest, SwitchRequest, GotoRequest, PrefetchRequest and
// UnknownRequest.
type Request interface {
	Action() string
	isRequest()
}

// InitRequest asks for the ticker catalog.
type InitRequest struct{}

// SwitchRequest selects a ticker. HasTimestamp is false when the client sent
// no usable timestamp, in which case a random anchor is chosen.
type SwitchRequest struct {
	Ticker       string
	Timestamp    int64
	HasTimestamp bool
	Timeframe    tfutils.Timeframe
}

// GotoRequest jumps the selected ticker to a time.
type GotoRequest struct {
	Timestamp int64
	Timeframe tfutils.Timeframe
}

// PrefetchRequest asks for the bars following a time.
type PrefetchRequest struct {
	Timestamp int64
	Timeframe tfutils.Timeframe
}

// UnknownRequest carries a well-formed but unrecognized action name.
type UnknownRequest struct {
	Name string
}

func (InitRequest) Action() string      { return ActionInit }
func (SwitchRequest) Action() string    { return ActionSwitch }
func (GotoRequest) Action() string      { return ActionGoto }
func (PrefetchRequest) Action() string  { return ActionPrefetch }
func (r UnknownRequest) Action() string { return r.Name }

func (InitRequest) isRequest()     {}
func (SwitchRequest) isRequest()   {}
func (GotoRequest) isRequest()     {}
func (PrefetchRequest) isRequest() {}
func (UnknownRequest) isRequest()  {}

// DecodeError is a request that could not be decoded. Action is empty when
// the action field itself was unusable.
type DecodeError struct {
	Action string
	Code   ErrorCode
}

func (e *DecodeError) Error() string {
	if e.Action == "" {
		return string(e.Code)
	}
	return e.Action + ": " + string(e.Code)
}

// DecodeRequest parses an inbound text message into its typed request.
func DecodeRequest(raw []byte) (Request, *DecodeError) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, &DecodeError{Code: InvalidAction}
	}

	var action string
	if err := decodeString(fields["action"], &action); err != nil {
		return nil, &DecodeError{Code: InvalidAction}
	}

	switch action {
	case ActionInit:
		return InitRequest{}, nil

	case ActionSwitch:
		var ticker string
		if err := decodeString(fields["ticker"], &ticker); err != nil {
			return nil, &DecodeError{Action: action, Code: UnknownTicker}
		}
		tf, derr := decodeTimeframe(action, fields["timeframe"])
		if derr != nil {
			return nil, derr
		}
		req := SwitchRequest{Ticker: ticker, Timeframe: tf}
		if ts, ok := decodeTimestamp(fields["timestamp"]); ok {
			req.Timestamp, req.HasTimestamp = ts, true
		}
		return req, nil

	case ActionGoto, ActionPrefetch:
		ts, ok := decodeTimestamp(fields["timestamp"])
		if !ok {
			return nil, &DecodeError{Action: action, Code: InvalidTimestamp}
		}
		tf, derr := decodeTimeframe(action, fields["timeframe"])
		if derr != nil {
			return nil, derr
		}
		if action == ActionGoto {
			return GotoRequest{Timestamp: ts, Timeframe: tf}, nil
		}
		return PrefetchRequest{Timestamp: ts, Timeframe: tf}, nil

	default:
		return UnknownRequest{Name: action}, nil
	}
}

var errMissingField = errors.New("missing field")

// decodeString requires raw to be a JSON string.
func decodeString(raw json.RawMessage, dst *string) error {
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return errMissingField
	}
	return json.Unmarshal(raw, dst)
}

// decodeTimestamp accepts only positive JSON integers. Floats, strings and
// booleans are rejected rather than coerced.
func decodeTimestamp(raw json.RawMessage) (int64, bool) {
	if len(raw) == 0 {
		return 0, false
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return 0, false
	}
	n, ok := v.(json.Number)
	if !ok {
		return 0, false
	}
	ts, err := strconv.ParseInt(n.String(), 10, 64)
	if err != nil || ts <= 0 {
		return 0, false
	}
	return ts, true
}

// decodeTimeframe defaults to the base timeframe when the field is absent.
func decodeTimeframe(action string, raw json.RawMessage) (tfutils.Timeframe, *DecodeError) {
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return tfutils.Base, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", &DecodeError{Action: action, Code: UnsupportedTimeframe}
	}
	tf, err := tfutils.ParseTimeframe(s)
	if err != nil {
		return "", &DecodeError{Action: action, Code: UnsupportedTimeframe}
	}
	return tf, nil
}
