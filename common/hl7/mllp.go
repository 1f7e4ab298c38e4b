package hl7

import (
	"bytes"
	"strings"
)

// MLLP frame markers
const (
	StartBlock     byte = 0x0B
	EndBlock       byte = 0x1C
	CarriageReturn byte = 0x0D
)

// Encode wraps an HL7 message in an MLLP frame
func Encode(message string) []byte {
	buf := make([]byte, 0, len(message)+3)
	buf = append(buf, StartBlock)
	buf = append(buf, message...)
	buf = append(buf, EndBlock, CarriageReturn)
	return buf
}

// DecodeStream extracts complete MLLP frames from buf. MLLP carries no length
// prefix, so framing is marker-scanned and must tolerate partial TCP reads: a
// buffer holding only part of a frame is returned unchanged so the caller can
// append more bytes and retry. The remainder starts past the frame's trailing
// carriage return.
func DecodeStream(buf []byte) ([]string, []byte) {
	var frames []string

	for {
		start := bytes.IndexByte(buf, StartBlock)
		if start < 0 {
			break
		}
		end := bytes.IndexByte(buf[start:], EndBlock)
		if end < 0 {
			break
		}
		end += start

		raw := buf[start+1 : end]
		frames = append(frames, sanitizeUTF8(raw))

		next := end + 2 // skip EndBlock and the trailing CR
		if next > len(buf) {
			next = len(buf)
		}
		buf = buf[next:]
	}

	return frames, buf
}

// sanitizeUTF8 drops invalid byte sequences instead of failing; stainer
// firmware occasionally emits stray control bytes inside text fields.
func sanitizeUTF8(raw []byte) string {
	return strings.ToValidUTF8(string(raw), "")
}
