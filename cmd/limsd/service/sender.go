package service

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/anatraz/limsbridge/common/config"
	"github.com/anatraz/limsbridge/common/hl7"
	"github.com/anatraz/limsbridge/common/logger"
	"github.com/anatraz/limsbridge/common/metrics"
)

// OrderSender delivers staining orders to the stainer device
type OrderSender interface {
	SendOrder(ctx context.Context, control hl7.OrderControl, order hl7.Order) error
}

// StainerClient sends MLLP-framed order messages to the stainer. Each send
// is a fresh connection: dial, write, read the ACK, close.
type StainerClient struct {
	cfg      config.HL7Config
	identity hl7.Identity
	log      *logger.Logger
	metrics  *metrics.Metrics

	dial func(ctx context.Context, addr string) (net.Conn, error)
	now  func() time.Time
}

// NewStainerClient creates an outbound stainer client. Metrics may be nil.
func NewStainerClient(cfg config.HL7Config, log *logger.Logger, m *metrics.Metrics) *StainerClient {
	return &StainerClient{
		cfg: cfg,
		identity: hl7.Identity{
			SendingApp:      cfg.SendingApp,
			SendingFacility: cfg.SendingFacility,
			ReceivingApp:    cfg.ReceivingApp,
		},
		log:     log.WithComponent("stainer-client"),
		metrics: m,
		dial: func(ctx context.Context, addr string) (net.Conn, error) {
			var d net.Dialer
			return d.DialContext(ctx, "tcp", addr)
		},
		now: time.Now,
	}
}

// SendOrder builds and delivers one order message. The stainer's ACK is read
// but only logged; delivery is judged by the write succeeding.
func (c *StainerClient) SendOrder(ctx context.Context, control hl7.OrderControl, order hl7.Order) error {
	log := c.log.WithSlide(order.SlideID)

	err := c.send(ctx, control, order, log)
	c.observe(control, err)
	if err != nil {
		return fmt.Errorf("send %s order for slide %s: %w", control, order.SlideID, err)
	}

	log.Info("order delivered to stainer", "order_control", string(control), "technique", order.Technique)
	return nil
}

func (c *StainerClient) send(ctx context.Context, control hl7.OrderControl, order hl7.Order, log *logger.Logger) error {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.SendTimeout)
	defer cancel()

	conn, err := c.dial(ctx, c.cfg.StainerAddr())
	if err != nil {
		return fmt.Errorf("dial stainer: %w", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(c.cfg.SendTimeout)
	if err := conn.SetDeadline(deadline); err != nil {
		return fmt.Errorf("set deadline: %w", err)
	}

	message := hl7.BuildOrderMessage(control, order, c.identity, c.now())
	if _, err := conn.Write(hl7.Encode(message)); err != nil {
		return fmt.Errorf("write order: %w", err)
	}

	// Read whatever ACK the device returns. A silent device is tolerated;
	// the order already left the socket.
	buf := make([]byte, 4096)
	n, err := conn.Read(buf)
	if err != nil {
		log.Warn("no ack from stainer", "error", err)
		return nil
	}

	acks, _ := hl7.DecodeStream(buf[:n])
	for _, ack := range acks {
		log.Debug("stainer ack received", "control_id", hl7.Parse(ack).ControlID())
	}
	return nil
}

func (c *StainerClient) observe(control hl7.OrderControl, err error) {
	if c.metrics == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	c.metrics.OutboundSends.WithLabelValues(string(control), result).Inc()
}
