// Package session implements the per-connection chart protocol.
package session

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"

	"github.com/amirphl/chart-exerciser/internal/candle"
	"github.com/amirphl/chart-exerciser/internal/db"
	"github.com/amirphl/chart-exerciser/internal/market"
	"github.com/amirphl/chart-exerciser/internal/tfutils"
	"github.com/amirphl/chart-exerciser/internal/utils"
	"github.com/amirphl/chart-exerciser/internal/wire"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// State is the protocol state of a session
type State string

const (
	// NoTicker - Initial state, no ticker selected yet
	NoTicker State = "NO_TICKER"

	// TickerSelected - A ticker has been selected with switch
	TickerSelected State = "TICKER_SELECTED"
)

// ErrorCode is a user-facing failure reported in a response's error field.
type ErrorCode string

const (
	InvalidAction        ErrorCode = "InvalidAction"
	UnknownAction        ErrorCode = "UnknownAction"
	UnknownTicker        ErrorCode = "UnknownTicker"
	InvalidTimestamp     ErrorCode = "InvalidTimestamp"
	UnsupportedTimeframe ErrorCode = "UnsupportedTimeframe"
	NoTickerSelected     ErrorCode = "NoTickerSelected"
	InternalError        ErrorCode = "InternalError"
)

// Response is one outbound message. Data is nil on failure so the field is
// left out; bar responses always carry a non-nil slice.
type Response struct {
	Action    string            `json:"action,omitempty"`
	Ticker    string            `json:"ticker,omitempty"`
	Timeframe tfutils.Timeframe `json:"timeframe,omitempty"`
	Timestamp *int64            `json:"timestamp,omitempty"`
	Data      any               `json:"data,omitempty"`
	Error     ErrorCode         `json:"error,omitempty"`
}

func failure(action string, code ErrorCode) Response {
	return Response{Action: action, Error: code}
}

// ErrNonText is returned by a Channel for an inbound frame that is not text.
// The session answers it with InvalidAction and keeps reading.
var ErrNonText = errors.New("non-text message")

// Channel is the message transport of one connection.
type Channel interface {
	Receive(ctx context.Context) ([]byte, error)
	SendText(payload []byte) error
	SendBinary(payload []byte) error
}

// Protocol holds what every session reads: the bar store, the catalog and
// the random anchor source. It is safe for concurrent use.
type Protocol struct {
	store   *db.MemoryStore
	catalog *market.Catalog
	random  *candle.RandomTimer
}

func NewProtocol(store *db.MemoryStore, catalog *market.Catalog, random *candle.RandomTimer) *Protocol {
	return &Protocol{
		store:   store,
		catalog: catalog,
		random:  random,
	}
}

// Catalog returns the ticker catalog sessions are served from.
func (p *Protocol) Catalog() *market.Catalog {
	return p.catalog
}

// Session is the state of one connection. It is not safe for concurrent
// use; one goroutine serves one session.
type Session struct {
	id       string
	protocol *Protocol
	ticker   string
	logger   zerolog.Logger
}

// NewSession starts a session in the NoTicker state.
func (p *Protocol) NewSession() *Session {
	id := uuid.NewString()
	return &Session{
		id:       id,
		protocol: p,
		logger:   utils.GetLogger("session").With().Str("session_id", id).Logger(),
	}
}

func (s *Session) ID() string {
	return s.id
}

func (s *Session) State() State {
	if s.ticker == "" {
		return NoTicker
	}
	return TickerSelected
}

// Ticker returns the selected ticker, empty in the NoTicker state.
func (s *Session) Ticker() string {
	return s.ticker
}

// Handle answers one inbound text message. A panic while building the
// response is logged and answered with InternalError.
func (s *Session) Handle(raw []byte) (resp Response) {
	action := ""
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error().
				Str("action", action).
				Interface("panic", r).
				Bytes("stack", debug.Stack()).
				Msg("Recovered from panic while handling request")
			resp = failure(action, InternalError)
		}
	}()

	req, derr := DecodeRequest(raw)
	if derr != nil {
		s.logger.Debug().Str("error", derr.Error()).Msg("Rejected request")
		return failure(derr.Action, derr.Code)
	}
	action = req.Action()

	switch r := req.(type) {
	case InitRequest:
		return Response{Action: ActionInit, Data: s.protocol.catalog}
	case SwitchRequest:
		return s.handleSwitch(r)
	case GotoRequest:
		return s.handleGoto(r)
	case PrefetchRequest:
		return s.handlePrefetch(r)
	case UnknownRequest:
		return failure(r.Name, UnknownAction)
	default:
		panic(fmt.Sprintf("unhandled request type %T", req))
	}
}

func (s *Session) handleSwitch(r SwitchRequest) Response {
	info, ok := s.protocol.catalog.Get(r.Ticker)
	if !ok {
		return failure(ActionSwitch, UnknownTicker)
	}
	series, code := s.series(r.Ticker, r.Timeframe)
	if code != "" {
		return failure(ActionSwitch, code)
	}

	anchor := r.Timestamp
	if !r.HasTimestamp || !s.protocol.catalog.IsWithinRange(r.Ticker, anchor) {
		anchor = s.protocol.random.RandomTime(info.MinDate, info.MaxDate)
	}

	prev := s.ticker
	s.ticker = r.Ticker
	if prev != r.Ticker {
		s.logger.Info().Str("from", prev).Str("to", r.Ticker).Msg("Switched ticker")
	}

	return s.barsUntil(ActionSwitch, series, anchor)
}

func (s *Session) handleGoto(r GotoRequest) Response {
	if s.ticker == "" {
		return failure(ActionGoto, NoTickerSelected)
	}
	if !s.protocol.catalog.IsWithinRange(s.ticker, r.Timestamp) {
		return failure(ActionGoto, InvalidTimestamp)
	}
	series, code := s.series(s.ticker, r.Timeframe)
	if code != "" {
		return failure(ActionGoto, code)
	}
	return s.barsUntil(ActionGoto, series, r.Timestamp)
}

func (s *Session) handlePrefetch(r PrefetchRequest) Response {
	if s.ticker == "" {
		return failure(ActionPrefetch, NoTickerSelected)
	}
	if !s.protocol.catalog.IsWithinRange(s.ticker, r.Timestamp) {
		return failure(ActionPrefetch, InvalidTimestamp)
	}
	series, code := s.series(s.ticker, r.Timeframe)
	if code != "" {
		return failure(ActionPrefetch, code)
	}

	ts := r.Timestamp
	return Response{
		Action:    ActionPrefetch,
		Ticker:    s.ticker,
		Timeframe: series.Timeframe(),
		Timestamp: &ts,
		Data:      candle.BarsAfter(series, ts, candle.PrefetchBars),
	}
}

// barsUntil aligns anchor forward on the base series and returns the
// look-back window ending at the bar of series that contains that base bar,
// plus the prefetch bars. An anchor past the last bar yields empty data with
// the anchor echoed unaligned.
func (s *Session) barsUntil(action string, series *candle.Series, anchor int64) Response {
	base, err := s.protocol.store.Base(s.ticker)
	if err != nil {
		s.logger.Error().Err(err).Str("ticker", s.ticker).Msg("Failed to get base series")
		return failure(action, InternalError)
	}
	resp := Response{
		Action:    action,
		Ticker:    s.ticker,
		Timeframe: series.Timeframe(),
		Timestamp: &anchor,
		Data:      []candle.Bar{},
	}
	baseBar, err := base.AlignBackfill(anchor)
	if err != nil {
		return resp
	}
	end, err := series.AlignPad(baseBar.Time)
	if err != nil {
		return resp
	}
	aligned := series.At(end).Time
	resp.Timestamp = &aligned
	resp.Data = candle.BarsUntil(series, aligned, candle.UntilWindowBars(series.Timeframe()), candle.PrefetchBars)
	return resp
}

func (s *Session) series(ticker string, tf tfutils.Timeframe) (*candle.Series, ErrorCode) {
	series, err := s.protocol.store.GetSeries(ticker, tf)
	switch {
	case err == nil:
		return series, ""
	case errors.Is(err, tfutils.ErrUnsupportedTimeframe):
		return nil, UnsupportedTimeframe
	case errors.Is(err, db.ErrUnknownTicker):
		return nil, UnknownTicker
	default:
		s.logger.Error().Err(err).Str("ticker", ticker).Str("timeframe", string(tf)).Msg("Failed to get series")
		return nil, InternalError
	}
}

// Serve reads messages from ch and answers each one until the channel or
// ctx fails. The returned error is the one that ended the session.
func (s *Session) Serve(ctx context.Context, ch Channel) error {
	s.logger.Info().Msg("Session started")
	defer s.logger.Info().Msg("Session ended")

	for {
		raw, err := ch.Receive(ctx)
		var resp Response
		switch {
		case errors.Is(err, ErrNonText):
			resp = failure("", InvalidAction)
		case err != nil:
			return err
		default:
			resp = s.Handle(raw)
		}

		if err := s.send(ch, resp); err != nil {
			return err
		}
	}
}

func (s *Session) send(ch Channel, resp Response) error {
	frame, err := wire.Encode(resp)
	if err != nil {
		s.logger.Error().Err(err).Str("action", resp.Action).Msg("Failed to encode response")
		frame, err = wire.Encode(failure(resp.Action, InternalError))
		if err != nil {
			return err
		}
	}
	if frame.Binary {
		return ch.SendBinary(frame.Payload)
	}
	return ch.SendText(frame.Payload)
}
