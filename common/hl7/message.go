package hl7

import (
	"fmt"
	"strings"
)

// Kind is the staining lifecycle classification of an inbound message
type Kind string

const (
	KindStainStart     Kind = "stain_start"
	KindStainCancelled Kind = "stain_cancelled"
	KindStainComplete  Kind = "stain_complete"
	KindRejected       Kind = "rejected"
)

// Message is a decoded HL7 message with positional segment/field access.
// Missing segments and fields degrade to empty strings rather than errors;
// callers that require a value treat empty as "unknown, do not process".
type Message struct {
	raw      string
	segments [][]string
}

// Parse splits raw HL7 text into pipe-delimited segments
func Parse(raw string) *Message {
	lines := strings.FieldsFunc(raw, func(r rune) bool {
		return r == '\r' || r == '\n'
	})

	segments := make([][]string, 0, len(lines))
	for _, line := range lines {
		if line == "" {
			continue
		}
		segments = append(segments, strings.Split(line, "|"))
	}

	return &Message{raw: raw, segments: segments}
}

// Raw returns the original message text
func (m *Message) Raw() string {
	return m.raw
}

// Segment returns the fields of the first segment with the given name, or nil
func (m *Message) Segment(name string) []string {
	for _, seg := range m.segments {
		if len(seg) > 0 && seg[0] == name {
			return seg
		}
	}
	return nil
}

// Field returns field at index of the named segment, empty when absent
func (m *Message) Field(segment string, index int) string {
	seg := m.Segment(segment)
	if seg == nil || index >= len(seg) {
		return ""
	}
	return seg[index]
}

// ControlID extracts the MSH-10 message control id. A malformed or missing
// MSH segment yields the "UNKNOWN" sentinel; this never fails.
func (m *Message) ControlID() string {
	if id := m.Field("MSH", 9); id != "" {
		return id
	}
	return "UNKNOWN"
}

// Classify determines the staining lifecycle event carried by the message.
// Matching is on literal acknowledgment/order-control codes anywhere in the
// text, in priority order, which is how the stainer actually reports state.
func (m *Message) Classify() Kind {
	hasAccept := strings.Contains(m.raw, "MSA|AA")

	switch {
	case hasAccept && strings.Contains(m.raw, "ORC|NW"):
		return KindStainStart
	case hasAccept && strings.Contains(m.raw, "ORC|CA"):
		return KindStainCancelled
	case strings.Contains(m.raw, "ORC|OK"):
		return KindStainComplete
	default:
		return KindRejected
	}
}

// SlideID returns the slide identifier from OBR-2, empty when absent
func (m *Message) SlideID() string {
	return m.Field("OBR", 2)
}

// StainingTechnique returns the technique code from OBR-4 (first component)
func (m *Message) StainingTechnique() string {
	field := m.Field("OBR", 4)
	if field == "" {
		return ""
	}
	if idx := strings.IndexByte(field, '^'); idx >= 0 {
		return field[:idx]
	}
	return field
}

// SlideParts is a decomposed slide identifier. Slide ids are hyphen-delimited
// composites: accessionPart1-accessionPart2-partNo[-block]-slideSeq.
type SlideParts struct {
	SlideID     string
	AccessionID string
	PartNo      string
	Block       string
	SlideSeq    string
}

// ParseSlideID decomposes a composite slide identifier. Identifiers with
// fewer than four hyphen-separated parts cannot locate a unit and are
// rejected. The block segment is optional: four parts means no block.
func ParseSlideID(slideID string) (SlideParts, error) {
	parts := strings.Split(slideID, "-")
	if len(parts) < 4 {
		return SlideParts{}, fmt.Errorf("malformed slide id %q: expected at least 4 hyphen-separated parts", slideID)
	}

	sp := SlideParts{
		SlideID:     slideID,
		AccessionID: parts[0] + "-" + parts[1],
		PartNo:      parts[2],
	}

	if len(parts) > 4 {
		sp.Block = parts[3]
		sp.SlideSeq = parts[4]
	} else {
		sp.SlideSeq = parts[3]
	}

	return sp, nil
}
