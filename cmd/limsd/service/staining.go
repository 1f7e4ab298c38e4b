package service

import (
	"context"
	"fmt"

	"github.com/anatraz/limsbridge/common/hl7"
	"github.com/anatraz/limsbridge/common/logger"
	"github.com/anatraz/limsbridge/common/models"
)

// StainingStore is the persistence surface for staining lifecycle updates
type StainingStore interface {
	UpdateStainingStatus(ctx context.Context, sp hl7.SlideParts, status string) (int64, error)
	GetAccession(ctx context.Context, accessionID string) (*models.Accession, error)
	FindSamplesBySlide(ctx context.Context, sp hl7.SlideParts) ([]*models.Sample, error)
}

// StainHook is an optional callback invoked on staining lifecycle events,
// used to chain follow-on behavior (workflow routing of the slide's sample,
// notifications) without coupling it into the message path.
type StainHook func(ctx context.Context, sp hl7.SlideParts, technique string) error

// StainingActions implements what happens after an inbound stainer message
// has been classified.
type StainingActions struct {
	store  StainingStore
	sender OrderSender
	log    *logger.Logger

	// OnStart and OnComplete fire after the corresponding event is recorded.
	// Nil hooks are skipped.
	OnStart    StainHook
	OnComplete StainHook
}

// NewStainingActions wires staining lifecycle handling
func NewStainingActions(store StainingStore, sender OrderSender, log *logger.Logger) *StainingActions {
	return &StainingActions{
		store:  store,
		sender: sender,
		log:    log.WithComponent("staining"),
	}
}

// Started records that the stainer accepted a new order and began staining
func (a *StainingActions) Started(ctx context.Context, msg *hl7.Message) error {
	sp, err := a.slide(msg)
	if err != nil {
		return err
	}

	log := a.log.WithSlide(sp.SlideID)
	a.checkSlideKnown(ctx, sp, log)
	log.Info("staining started", "technique", msg.StainingTechnique())

	if a.OnStart != nil {
		return a.OnStart(ctx, sp, msg.StainingTechnique())
	}
	return nil
}

// Cancelled records a stainer-side cancellation acknowledgment. The causing
// cancel order originated here, so nothing is mutated.
func (a *StainingActions) Cancelled(ctx context.Context, msg *hl7.Message) error {
	sp, err := a.slide(msg)
	if err != nil {
		return err
	}

	a.log.WithSlide(sp.SlideID).Info("stainer confirmed cancellation")
	return nil
}

// Completed records that staining finished for the slide
func (a *StainingActions) Completed(ctx context.Context, msg *hl7.Message) error {
	sp, err := a.slide(msg)
	if err != nil {
		return err
	}

	log := a.log.WithSlide(sp.SlideID)
	a.checkSlideKnown(ctx, sp, log)
	log.Info("staining completed", "technique", msg.StainingTechnique())

	if a.OnComplete != nil {
		return a.OnComplete(ctx, sp, msg.StainingTechnique())
	}
	return nil
}

// Rejected marks the slide's staining record rejected and sends a cancel
// order back so the stainer drops the slide from its worklist.
func (a *StainingActions) Rejected(ctx context.Context, msg *hl7.Message) error {
	sp, err := a.slide(msg)
	if err != nil {
		return err
	}

	log := a.log.WithSlide(sp.SlideID)

	affected, err := a.store.UpdateStainingStatus(ctx, sp, models.StainingStatusRejected)
	if err != nil {
		return fmt.Errorf("mark slide %s rejected: %w", sp.SlideID, err)
	}
	if affected == 0 {
		log.Warn("no staining record matched rejected slide")
	} else {
		log.Info("slide marked rejected")
	}

	order, err := a.buildOrder(ctx, sp, msg.StainingTechnique())
	if err != nil {
		return err
	}

	return a.sender.SendOrder(ctx, hl7.OrderCancel, order)
}

// buildOrder enriches an outbound order with the accession's demographics.
// A missing accession degrades to an order without patient data rather than
// suppressing the cancellation.
func (a *StainingActions) buildOrder(ctx context.Context, sp hl7.SlideParts, technique string) (hl7.Order, error) {
	order := hl7.Order{
		SlideID:     sp.SlideID,
		AccessionID: sp.AccessionID,
		Technique:   technique,
	}

	acc, err := a.store.GetAccession(ctx, sp.AccessionID)
	if err != nil {
		return hl7.Order{}, fmt.Errorf("load accession %s: %w", sp.AccessionID, err)
	}
	if acc == nil {
		a.log.WithAccession(sp.AccessionID).Warn("accession not found for outbound order")
		return order, nil
	}

	order.MRN = acc.Patient.MRN
	order.PatientName = acc.Patient.HL7Name()
	order.ReferringDoctor = acc.ReferringDoctor.HL7Name()
	order.ReportingDoctor = acc.ReportingDoctor.HL7Name()
	return order, nil
}

// checkSlideKnown logs when a lifecycle event arrives for a slide no sample
// row matches. The event is still processed; the device is the source of
// truth for its own lifecycle.
func (a *StainingActions) checkSlideKnown(ctx context.Context, sp hl7.SlideParts, log *logger.Logger) {
	samples, err := a.store.FindSamplesBySlide(ctx, sp)
	if err != nil {
		log.Warn("slide lookup failed", "error", err)
		return
	}
	if len(samples) == 0 {
		log.Warn("no sample matches slide")
	}
}

func (a *StainingActions) slide(msg *hl7.Message) (hl7.SlideParts, error) {
	slideID := msg.SlideID()
	if slideID == "" {
		return hl7.SlideParts{}, fmt.Errorf("message %s carries no slide id", msg.ControlID())
	}
	return hl7.ParseSlideID(slideID)
}
