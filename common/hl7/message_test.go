package hl7

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleStart = "MSH|^~\\&|VitroStainer|LAB|LIS|LAB|20250101120000||ORL^O22|CTRL42|P|2.5.1\r" +
	"MSA|AA|MSG0001\r" +
	"ORC|NW|22B0026180\r" +
	"OBR|1|ACC-001-A-B1-S2||CDX2^CDX2|N|20250101120000\r"

func TestControlID(t *testing.T) {
	assert.Equal(t, "CTRL42", Parse(sampleStart).ControlID())
}

func TestControlIDMalformedMSH(t *testing.T) {
	cases := []string{
		"",
		"garbage without segments",
		"MSH|^~\\&|short",
		"MSA|AA|123\r",
	}
	for _, raw := range cases {
		assert.Equal(t, "UNKNOWN", Parse(raw).ControlID(), "raw %q", raw)
	}
}

func TestClassify(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want Kind
	}{
		{"start", "MSA|AA|1\rORC|NW|x\r", KindStainStart},
		{"cancelled", "MSA|AA|1\rORC|CA|x\r", KindStainCancelled},
		{"complete", "ORC|OK|x\r", KindStainComplete},
		{"complete without msa", "MSH|^~\\&|a\rORC|OK|x\r", KindStainComplete},
		{"no accept no orc", "MSH|^~\\&|a\rPID|1|2\r", KindRejected},
		{"orc nw without accept", "ORC|NW|x\r", KindRejected},
		{"empty", "", KindRejected},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Parse(tc.raw).Classify())
		})
	}
}

func TestSlideAndTechniqueExtraction(t *testing.T) {
	m := Parse(sampleStart)
	assert.Equal(t, "ACC-001-A-B1-S2", m.SlideID())
	assert.Equal(t, "CDX2", m.StainingTechnique())
}

func TestSlideExtractionMissingOBR(t *testing.T) {
	m := Parse("MSA|AA|1\r")
	assert.Empty(t, m.SlideID())
	assert.Empty(t, m.StainingTechnique())
}

func TestParseSlideID(t *testing.T) {
	sp, err := ParseSlideID("ACC-001-A-B1-S2")
	require.NoError(t, err)
	assert.Equal(t, "ACC-001", sp.AccessionID)
	assert.Equal(t, "A", sp.PartNo)
	assert.Equal(t, "B1", sp.Block)
	assert.Equal(t, "S2", sp.SlideSeq)
}

func TestParseSlideIDWithoutBlock(t *testing.T) {
	sp, err := ParseSlideID("ACC-001-A-S1")
	require.NoError(t, err)
	assert.Equal(t, "ACC-001", sp.AccessionID)
	assert.Equal(t, "A", sp.PartNo)
	assert.Empty(t, sp.Block)
	assert.Equal(t, "S1", sp.SlideSeq)
}

func TestParseSlideIDTooShort(t *testing.T) {
	_, err := ParseSlideID("ACC-001-A")
	assert.Error(t, err)
}

func TestGenerateAckAlwaysAnswerable(t *testing.T) {
	cases := []struct{ code, controlID string }{
		{AckAccept, "MSG123"},
		{AckError, ""},
		{AckReject, "weird|chars^here"},
		{"", ""},
	}

	for _, tc := range cases {
		ack := GenerateAck(tc.code, tc.controlID)
		assert.Contains(t, ack, fmt.Sprintf("MSA|%s|%s", tc.code, tc.controlID))
		assert.Contains(t, ack, "ACK^O21")
	}
}

func TestBuildOrderMessage(t *testing.T) {
	now := time.Date(2025, 1, 2, 15, 4, 5, 0, time.UTC)
	id := Identity{SendingApp: "LIS", SendingFacility: "Gulf", ReceivingApp: "ANATRAZ"}
	order := Order{
		SlideID:         "ACC-001-A-B1-S2",
		AccessionID:     "ACC-001",
		Technique:       "CDX2",
		MRN:             "2565230",
		PatientName:     "MARTINEZ^WELCOME",
		ReferringDoctor: "CORTES^JOSE",
		ReportingDoctor: "TORO^ANA",
	}

	msg := BuildOrderMessage(OrderNew, order, id, now)

	assert.Contains(t, msg, "MSH|^~\\&|LIS|Gulf|ANATRAZ|Gulf|20250102150405||OML^O21|")
	assert.Contains(t, msg, "PID|1|2565230|2565230||MARTINEZ^WELCOME||||||")
	assert.Contains(t, msg, "PV1|1|I|||||CORTES^JOSE||TORO^ANA|")
	assert.Contains(t, msg, "SPM|1|ACC-001-A-B1-S2^A|ACC-001^|")
	assert.Contains(t, msg, "ORC|NW|ACC-001|||||||20250102150405|")
	assert.Contains(t, msg, "OBR|1|ACC-001-A-B1-S2|1|CDX2^CDX2|N|20250102150405|")

	cancel := BuildOrderMessage(OrderCancel, order, id, now)
	assert.Contains(t, cancel, "ORC|CA|ACC-001|")
}

func TestBuildOrderMessageMRNFallback(t *testing.T) {
	msg := BuildOrderMessage(OrderNew, Order{SlideID: "A-B-C-D", AccessionID: "A-B"}, Identity{}, time.Now())
	assert.Contains(t, msg, "PID|1|UNKNOWN|UNKNOWN||")
}
