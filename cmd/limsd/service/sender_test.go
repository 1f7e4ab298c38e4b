package service

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anatraz/limsbridge/common/config"
	"github.com/anatraz/limsbridge/common/hl7"
	"github.com/anatraz/limsbridge/common/logger"
)

// fakeStainer accepts one connection, captures the framed message and
// answers with an ACK.
func fakeStainer(t *testing.T, received chan<- string) net.Addr {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()

		conn.SetDeadline(time.Now().Add(2 * time.Second))

		var buf []byte
		chunk := make([]byte, 4096)
		for {
			n, err := conn.Read(chunk)
			if n > 0 {
				buf = append(buf, chunk[:n]...)
				messages, _ := hl7.DecodeStream(buf)
				if len(messages) > 0 {
					received <- messages[0]
					ack := hl7.GenerateAck(hl7.AckAccept, hl7.Parse(messages[0]).ControlID())
					conn.Write(hl7.Encode(ack))
					return
				}
			}
			if err != nil {
				return
			}
		}
	}()

	return ln.Addr()
}

func TestStainerClientSendsOrder(t *testing.T) {
	received := make(chan string, 1)
	addr := fakeStainer(t, received)
	tcpAddr := addr.(*net.TCPAddr)

	cfg := config.HL7Config{
		StainerHost:     tcpAddr.IP.String(),
		StainerPort:     tcpAddr.Port,
		SendTimeout:     2 * time.Second,
		SendingApp:      "LIS",
		SendingFacility: "Gulf",
		ReceivingApp:    "ANATRAZ",
	}

	client := NewStainerClient(cfg, logger.New("error", "text"), nil)
	client.now = func() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) }

	order := hl7.Order{
		SlideID:     "ACC-25-1-A-1",
		AccessionID: "ACC-25",
		Technique:   "HE",
		MRN:         "MRN9",
		PatientName: "Hassan^Ali",
	}

	require.NoError(t, client.SendOrder(context.Background(), hl7.OrderCancel, order))

	select {
	case msg := <-received:
		assert.Contains(t, msg, "MSH|^~\\&|LIS|Gulf|ANATRAZ|Gulf|")
		assert.Contains(t, msg, "ORC|CA|ACC-25")
		assert.Contains(t, msg, "OBR|1|ACC-25-1-A-1|1|HE^HE")
		assert.Contains(t, msg, "PID|1|MRN9|MRN9||Hassan^Ali")
	case <-time.After(2 * time.Second):
		t.Fatal("stainer did not receive the order")
	}
}

func TestStainerClientDialFailure(t *testing.T) {
	cfg := config.HL7Config{
		StainerHost: "127.0.0.1",
		StainerPort: 1, // nothing listens here
		SendTimeout: 200 * time.Millisecond,
	}

	client := NewStainerClient(cfg, logger.New("error", "text"), nil)

	err := client.SendOrder(context.Background(), hl7.OrderNew, hl7.Order{SlideID: "ACC-25-1-A-1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dial stainer")
}

func TestStainerClientToleratesSilentDevice(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		// Drain the order but never answer.
		buf := make([]byte, 4096)
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		conn.Read(buf)
		conn.Close()
	}()

	tcpAddr := ln.Addr().(*net.TCPAddr)
	cfg := config.HL7Config{
		StainerHost: tcpAddr.IP.String(),
		StainerPort: tcpAddr.Port,
		SendTimeout: 500 * time.Millisecond,
	}

	client := NewStainerClient(cfg, logger.New("error", "text"), nil)

	err = client.SendOrder(context.Background(), hl7.OrderNew, hl7.Order{SlideID: "ACC-25-1-A-1"})
	assert.NoError(t, err)
}
