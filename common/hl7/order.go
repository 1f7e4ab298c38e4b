package hl7

import (
	"fmt"
	"time"
)

// OrderControl is the ORC-1 order control code on outbound messages
type OrderControl string

const (
	OrderNew    OrderControl = "NW"
	OrderCancel OrderControl = "CA"
)

// Identity names the sending and receiving systems stamped into MSH
type Identity struct {
	SendingApp      string
	SendingFacility string
	ReceivingApp    string
}

// Order carries everything needed to build an outbound staining order. Name
// fields use HL7 component form ("Last^First"); empty values render as empty
// fields, which the stainer tolerates.
type Order struct {
	SlideID     string
	AccessionID string
	Technique   string

	MRN             string
	PatientName     string
	ReferringDoctor string
	ReportingDoctor string
}

// BuildOrderMessage renders an OML^O21 order for the stainer. The control id
// suffix combines the slide id tail with the timestamp tail so retransmits of
// the same slide remain distinguishable.
func BuildOrderMessage(control OrderControl, o Order, id Identity, now time.Time) string {
	ts := now.Format(hl7Timestamp)

	mrn := o.MRN
	if mrn == "" {
		mrn = "UNKNOWN"
	}

	msgID := fmt.Sprintf("MSG%s%s", tail(o.SlideID, 4), tail(ts, 4))

	return fmt.Sprintf(
		"MSH|^~\\&|%s|%s|%s|%s|%s||OML^O21|%s|P|2.5.1|\r"+
			"PID|1|%s|%s||%s||||||\r"+
			"PV1|1|I|||||%s||%s|\r"+
			"SPM|1|%s^A|%s^|T28000^LUNG (NEOM)|||||\r"+
			"SAC||%s^|%s-A-1^1|%s-A^A||T28000^LUNG (NEOM)||||||\r"+
			"ORC|%s|%s|||||||%s|\r"+
			"OBR|1|%s|1|%s^%s|N|%s|||||||M||||||||||||||||||||\r",
		id.SendingApp, id.SendingFacility, id.ReceivingApp, id.SendingFacility, ts, msgID,
		mrn, mrn, o.PatientName,
		o.ReferringDoctor, o.ReportingDoctor,
		o.SlideID, o.AccessionID,
		o.AccessionID, o.AccessionID, o.AccessionID,
		control, o.AccessionID, ts,
		o.SlideID, o.Technique, o.Technique, ts,
	)
}

func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
