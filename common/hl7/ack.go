package hl7

import (
	"fmt"
	"time"
)

// Acknowledgment codes
const (
	AckAccept = "AA"
	AckError  = "AE"
	AckReject = "AR"
)

const hl7Timestamp = "20060102150405"

// GenerateAck builds a two-segment ACK message for a received frame. The ACK
// carries a fresh control id derived from the current timestamp and echoes
// the received message's control id in MSA-2. It accepts any code and control
// id string, including empty ones: the protocol contract is that every frame
// is answerable.
func GenerateAck(code, msgControlID string) string {
	ts := time.Now().Format(hl7Timestamp)

	return fmt.Sprintf(
		"MSH|^~\\&|LIS|LAB|VitroStainer|LAB|%s||ACK^O21|ACK%s|P|2.5.1\r"+
			"MSA|%s|%s\r",
		ts, ts, code, msgControlID,
	)
}
