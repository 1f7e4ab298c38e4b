package service

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/anatraz/limsbridge/common/cache"
	"github.com/anatraz/limsbridge/common/config"
	"github.com/anatraz/limsbridge/common/hl7"
	"github.com/anatraz/limsbridge/common/logger"
	"github.com/anatraz/limsbridge/common/metrics"
	"github.com/anatraz/limsbridge/common/queue"
)

// TopicInboundHL7 is the queue topic carrying ACKed inbound messages from
// the listener to the processing workers.
const TopicInboundHL7 = "hl7.inbound"

const readChunkSize = 1024

// dedupeTTL bounds how long a control id suppresses retransmits of the same
// message. The stainer resends within seconds when it misses an ACK.
const dedupeTTL = 30 * time.Second

// Listener accepts MLLP connections from the stainer, ACKs inbound frames
// and hands the first message of each connection to the processing queue.
// Stainer connections are one-shot: one message, one ACK, close.
type Listener struct {
	cfg     config.HL7Config
	queue   queue.Queue
	seen    cache.Cache
	log     *logger.Logger
	metrics *metrics.Metrics

	ln      net.Listener
	slots   chan struct{}
	wg      sync.WaitGroup
	closing chan struct{}
}

// NewListener creates an MLLP listener. The cache suppresses retransmits of
// already-ACKed messages; cache and metrics may be nil.
func NewListener(cfg config.HL7Config, q queue.Queue, seen cache.Cache, log *logger.Logger, m *metrics.Metrics) *Listener {
	return &Listener{
		cfg:     cfg,
		queue:   q,
		seen:    seen,
		log:     log.WithComponent("mllp-listener"),
		metrics: m,
		slots:   make(chan struct{}, cfg.ListenerWorkers),
		closing: make(chan struct{}),
	}
}

// Start binds the listen address and begins accepting connections. It
// returns once the socket is bound; the accept loop runs in the background
// until Stop is called.
func (l *Listener) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", l.cfg.ListenAddr())
	if err != nil {
		return fmt.Errorf("bind mllp listener: %w", err)
	}
	l.ln = ln

	l.log.Info("mllp listener started", "addr", l.cfg.ListenAddr(), "workers", l.cfg.ListenerWorkers)

	l.wg.Add(1)
	go l.acceptLoop(ctx)

	return nil
}

// Addr returns the bound listen address, nil before Start
func (l *Listener) Addr() net.Addr {
	if l.ln == nil {
		return nil
	}
	return l.ln.Addr()
}

// Stop closes the listen socket and waits for in-flight connections
func (l *Listener) Stop() error {
	close(l.closing)
	var err error
	if l.ln != nil {
		err = l.ln.Close()
	}
	l.wg.Wait()
	l.log.Info("mllp listener stopped")
	return err
}

func (l *Listener) acceptLoop(ctx context.Context) {
	defer l.wg.Done()

	for {
		conn, err := l.ln.Accept()
		if err != nil {
			select {
			case <-l.closing:
				return
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return
			}
			l.log.Error("accept failed", "error", err)
			continue
		}

		select {
		case l.slots <- struct{}{}:
		case <-l.closing:
			conn.Close()
			return
		}

		l.wg.Add(1)
		go func() {
			defer l.wg.Done()
			defer func() { <-l.slots }()
			l.handleConn(ctx, conn)
		}()
	}
}

// handleConn reads until the first complete MLLP frame arrives, ACKs every
// decoded frame, enqueues the first message and closes. Slow or silent
// clients are cut off by the read deadline.
func (l *Listener) handleConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	log := l.log.WithFields(map[string]any{"remote": conn.RemoteAddr().String()})

	buf := make([]byte, 0, readChunkSize)
	chunk := make([]byte, readChunkSize)

	for {
		if err := conn.SetReadDeadline(time.Now().Add(l.cfg.ReadTimeout)); err != nil {
			log.Error("set read deadline failed", "error", err)
			return
		}

		n, err := conn.Read(chunk)
		if n > 0 {
			buf = append(buf, chunk[:n]...)
		}
		if err != nil {
			if len(buf) > 0 {
				l.countFrame("incomplete")
				log.Warn("connection ended with incomplete frame", "buffered", len(buf), "error", err)
			}
			return
		}

		messages, rest := hl7.DecodeStream(buf)
		buf = rest

		if len(messages) == 0 {
			continue
		}

		for i, raw := range messages {
			l.countFrame("ok")

			msg := hl7.Parse(raw)
			l.sendAck(conn, log, msg.ControlID())

			if i > 0 {
				log.Warn("extra frame on connection ignored", "control_id", msg.ControlID())
				continue
			}

			if l.isRetransmit(ctx, msg.ControlID()) {
				log.Info("retransmit suppressed", "control_id", msg.ControlID())
				continue
			}

			if err := l.queue.Publish(ctx, TopicInboundHL7, msg.ControlID(), []byte(raw)); err != nil {
				log.Error("enqueue inbound message failed", "control_id", msg.ControlID(), "error", err)
				continue
			}
			if l.metrics != nil {
				l.metrics.MessagesEnqueued.Inc()
			}
			log.Info("inbound message enqueued", "control_id", msg.ControlID())
		}

		return
	}
}

// sendAck writes an application accept back to the peer. ACK failures are
// logged but do not fail the exchange; the message is already decoded.
func (l *Listener) sendAck(conn net.Conn, log *logger.Logger, controlID string) {
	ack := hl7.GenerateAck(hl7.AckAccept, controlID)
	if _, err := conn.Write(hl7.Encode(ack)); err != nil {
		if l.metrics != nil {
			l.metrics.AckSendFailures.Inc()
		}
		log.Error("ack write failed", "control_id", controlID, "error", err)
		return
	}
	if l.metrics != nil {
		l.metrics.AcksSent.Inc()
	}
}

// isRetransmit reports whether the control id was already ACKed recently and
// records it. Unknown control ids are never deduped; they would collide.
func (l *Listener) isRetransmit(ctx context.Context, controlID string) bool {
	if l.seen == nil || controlID == "UNKNOWN" {
		return false
	}

	key := "hl7:seen:" + controlID
	if _, found, err := l.seen.Get(ctx, key); err == nil && found {
		return true
	}
	if err := l.seen.Set(ctx, key, []byte{1}, dedupeTTL); err != nil {
		l.log.Warn("dedupe cache set failed", "control_id", controlID, "error", err)
	}
	return false
}

func (l *Listener) countFrame(result string) {
	if l.metrics != nil {
		l.metrics.FramesReceived.WithLabelValues(result).Inc()
	}
}
