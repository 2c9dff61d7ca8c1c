// Package wire encodes outbound session messages.
package wire

import (
	"bytes"
	"compress/zlib"
	"encoding/json"
	"fmt"
	"io"
)

// CompressionThreshold is the largest encoded size still sent as text.
const CompressionThreshold = 512

// Frame is one outbound message. Binary frames carry zlib-compressed JSON.
type Frame struct {
	Binary  bool
	Payload []byte
}

// Encode marshals v to compact JSON and compresses it when it exceeds
// CompressionThreshold bytes.
func Encode(v any) (Frame, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return Frame{}, fmt.Errorf("marshal message: %w", err)
	}
	if len(raw) <= CompressionThreshold {
		return Frame{Payload: raw}, nil
	}

	var buf bytes.Buffer
	zw := zlib.NewWriter(&buf)
	if _, err := zw.Write(raw); err != nil {
		return Frame{}, fmt.Errorf("compress message: %w", err)
	}
	if err := zw.Close(); err != nil {
		return Frame{}, fmt.Errorf("compress message: %w", err)
	}
	return Frame{Binary: true, Payload: buf.Bytes()}, nil
}

// Decode returns the JSON text carried by f.
func Decode(f Frame) ([]byte, error) {
	if !f.Binary {
		return f.Payload, nil
	}
	zr, err := zlib.NewReader(bytes.NewReader(f.Payload))
	if err != nil {
		return nil, fmt.Errorf("open compressed frame: %w", err)
	}
	defer zr.Close()
	out, err := io.ReadAll(zr)
	if err != nil {
		return nil, fmt.Errorf("inflate frame: %w", err)
	}
	return out, nil
}
