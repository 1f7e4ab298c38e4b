package hl7

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	messages := []string{
		"MSH|^~\\&|LIS|LAB|VitroStainer|LAB|20250101120000||ACK^O21|ACK1|P|2.5.1\rMSA|AA|123\r",
		"single segment",
		"",
	}

	for _, msg := range messages {
		frames, rest := DecodeStream(Encode(msg))
		require.Len(t, frames, 1, "message %q", msg)
		assert.Equal(t, msg, frames[0])
		assert.Empty(t, rest)
	}
}

func TestDecodeStreamPartialFrame(t *testing.T) {
	encoded := Encode("MSH|^~\\&|LIS|LAB|VitroStainer|LAB|x||OML^O21|MSG1|P|2.5.1")

	// Feed byte-by-byte: no frame may surface before the end block arrives.
	var buf []byte
	var got []string
	for i, b := range encoded {
		buf = append(buf, b)
		frames, rest := DecodeStream(buf)
		buf = rest

		if b != EndBlock && len(got) == 0 {
			assert.Empty(t, frames, "frame surfaced before end block at byte %d", i)
		}
		got = append(got, frames...)
	}

	require.Len(t, got, 1)
	assert.Equal(t, "MSH|^~\\&|LIS|LAB|VitroStainer|LAB|x||OML^O21|MSG1|P|2.5.1", got[0])
	assert.Empty(t, buf)
}

func TestDecodeStreamIncompleteUnchanged(t *testing.T) {
	partial := []byte{StartBlock, 'M', 'S', 'H', '|'}

	frames, rest := DecodeStream(partial)
	assert.Empty(t, frames)
	assert.Equal(t, partial, rest)
}

func TestDecodeStreamMultipleFrames(t *testing.T) {
	buf := append(Encode("first"), Encode("second")...)

	frames, rest := DecodeStream(buf)
	require.Len(t, frames, 2)
	assert.Equal(t, "first", frames[0])
	assert.Equal(t, "second", frames[1])
	assert.Empty(t, rest)
}

func TestDecodeStreamLeadingGarbage(t *testing.T) {
	buf := append([]byte("noise"), Encode("payload")...)

	frames, rest := DecodeStream(buf)
	require.Len(t, frames, 1)
	assert.Equal(t, "payload", frames[0])
	assert.Empty(t, rest)
}

func TestDecodeStreamInvalidUTF8Dropped(t *testing.T) {
	raw := []byte{StartBlock, 'O', 'B', 'R', 0xFF, '|', '1', EndBlock, CarriageReturn}

	frames, _ := DecodeStream(raw)
	require.Len(t, frames, 1)
	assert.Equal(t, "OBR|1", frames[0])
}
