package wire

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// payloadOfSize returns a value whose compact JSON encoding is exactly n bytes.
func payloadOfSize(t *testing.T, n int) map[string]string {
	t.Helper()
	// {"p":""} is 8 bytes of framing.
	v := map[string]string{"p": strings.Repeat("x", n-8)}
	raw, err := json.Marshal(v)
	require.NoError(t, err)
	require.Len(t, raw, n)
	return v
}

func TestEncode(t *testing.T) {
	tests := []struct {
		name   string
		size   int
		binary bool
	}{
		{"Small text", 400, false},
		{"At threshold", CompressionThreshold, false},
		{"Just over threshold", CompressionThreshold + 1, true},
		{"Large binary", 600, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := payloadOfSize(t, tt.size)
			f, err := Encode(v)
			require.NoError(t, err)
			assert.Equal(t, tt.binary, f.Binary)

			text, err := Decode(f)
			require.NoError(t, err)
			assert.Len(t, text, tt.size)

			var back map[string]string
			require.NoError(t, json.Unmarshal(text, &back))
			assert.Equal(t, v, back)
		})
	}
}

func TestEncode_Compact(t *testing.T) {
	f, err := Encode(struct {
		Action string `json:"action"`
		Data   []int  `json:"data"`
	}{"init", []int{1, 2}})
	require.NoError(t, err)
	assert.False(t, f.Binary)
	assert.Equal(t, `{"action":"init","data":[1,2]}`, string(f.Payload))
}

func TestEncode_Unmarshalable(t *testing.T) {
	_, err := Encode(map[string]any{"ch": make(chan int)})
	assert.Error(t, err)
}

func TestDecode_Corrupt(t *testing.T) {
	_, err := Decode(Frame{Binary: true, Payload: []byte("not zlib")})
	assert.Error(t, err)
}
