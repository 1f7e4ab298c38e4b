package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anatraz/limsbridge/common/hl7"
	"github.com/anatraz/limsbridge/common/logger"
	"github.com/anatraz/limsbridge/common/models"
)

type fakeStainingStore struct {
	accessions map[string]*models.Accession
	samples    []*models.Sample

	statusUpdates []string
	lastParts     hl7.SlideParts
	affected      int64
	slideLookups  int
}

func (f *fakeStainingStore) UpdateStainingStatus(ctx context.Context, sp hl7.SlideParts, status string) (int64, error) {
	f.statusUpdates = append(f.statusUpdates, status)
	f.lastParts = sp
	return f.affected, nil
}

func (f *fakeStainingStore) GetAccession(ctx context.Context, accessionID string) (*models.Accession, error) {
	return f.accessions[accessionID], nil
}

func (f *fakeStainingStore) FindSamplesBySlide(ctx context.Context, sp hl7.SlideParts) ([]*models.Sample, error) {
	f.slideLookups++
	return f.samples, nil
}

type fakeSender struct {
	controls []hl7.OrderControl
	orders   []hl7.Order
}

func (f *fakeSender) SendOrder(ctx context.Context, control hl7.OrderControl, order hl7.Order) error {
	f.controls = append(f.controls, control)
	f.orders = append(f.orders, order)
	return nil
}

func stainMessage(msa, orc string) *hl7.Message {
	return hl7.Parse(
		"MSH|^~\\&|VitroStainer|LAB|LIS|LAB|20250101120000||ORL^O22|CTRL1|P|2.5.1\r" +
			msa + "\r" +
			orc + "\r" +
			"OBR|1|ACC-25-1-A-1|1|HE^HE|N|20250101120000\r")
}

func newTestActions(store *fakeStainingStore, sender *fakeSender) *StainingActions {
	return NewStainingActions(store, sender, logger.New("error", "text"))
}

func TestStainingStartedInvokesHook(t *testing.T) {
	store := &fakeStainingStore{}
	sender := &fakeSender{}
	actions := newTestActions(store, sender)

	var hookParts hl7.SlideParts
	var hookTechnique string
	actions.OnStart = func(ctx context.Context, sp hl7.SlideParts, technique string) error {
		hookParts = sp
		hookTechnique = technique
		return nil
	}

	msg := stainMessage("MSA|AA|MSG1", "ORC|NW|ACC-25")
	require.NoError(t, actions.Started(context.Background(), msg))

	assert.Equal(t, "ACC-25-1-A-1", hookParts.SlideID)
	assert.Equal(t, "ACC-25", hookParts.AccessionID)
	assert.Equal(t, "HE", hookTechnique)
	assert.Equal(t, 1, store.slideLookups)
	assert.Empty(t, store.statusUpdates)
	assert.Empty(t, sender.orders)
}

func TestStainingCancelledMutatesNothing(t *testing.T) {
	store := &fakeStainingStore{}
	sender := &fakeSender{}
	actions := newTestActions(store, sender)

	msg := stainMessage("MSA|AA|MSG1", "ORC|CA|ACC-25")
	require.NoError(t, actions.Cancelled(context.Background(), msg))

	assert.Empty(t, store.statusUpdates)
	assert.Empty(t, sender.orders)
}

func TestStainingRejectedUpdatesAndCancels(t *testing.T) {
	referring := &models.Doctor{FirstName: "Sara", LastName: "Haddad"}
	store := &fakeStainingStore{
		affected: 1,
		accessions: map[string]*models.Accession{
			"ACC-25": {
				AccessionID:     "ACC-25",
				Patient:         models.Patient{MRN: "MRN9", FirstName: "Ali", LastName: "Hassan"},
				ReferringDoctor: referring,
			},
		},
	}
	sender := &fakeSender{}
	actions := newTestActions(store, sender)

	msg := stainMessage("MSA|AE|MSG1", "ORC|UA|ACC-25")
	require.NoError(t, actions.Rejected(context.Background(), msg))

	require.Equal(t, []string{models.StainingStatusRejected}, store.statusUpdates)
	assert.Equal(t, "ACC-25-1-A-1", store.lastParts.SlideID)
	assert.Equal(t, "A", store.lastParts.Block)
	assert.Equal(t, "1", store.lastParts.SlideSeq)

	require.Len(t, sender.orders, 1)
	assert.Equal(t, hl7.OrderCancel, sender.controls[0])
	order := sender.orders[0]
	assert.Equal(t, "ACC-25-1-A-1", order.SlideID)
	assert.Equal(t, "ACC-25", order.AccessionID)
	assert.Equal(t, "MRN9", order.MRN)
	assert.Equal(t, "Hassan^Ali", order.PatientName)
	assert.Equal(t, "Haddad^Sara", order.ReferringDoctor)
	assert.Equal(t, "", order.ReportingDoctor)
}

func TestStainingRejectedMissingAccessionStillCancels(t *testing.T) {
	store := &fakeStainingStore{affected: 1}
	sender := &fakeSender{}
	actions := newTestActions(store, sender)

	msg := stainMessage("MSA|AE|MSG1", "ORC|UA|ACC-25")
	require.NoError(t, actions.Rejected(context.Background(), msg))

	require.Len(t, sender.orders, 1)
	assert.Equal(t, "", sender.orders[0].MRN)
}

func TestStainingRejectsMessageWithoutSlide(t *testing.T) {
	store := &fakeStainingStore{}
	sender := &fakeSender{}
	actions := newTestActions(store, sender)

	msg := hl7.Parse("MSH|^~\\&|VitroStainer|LAB|LIS|LAB|20250101120000||ORL^O22|CTRL1|P|2.5.1\rMSA|AE|MSG1\r")
	err := actions.Rejected(context.Background(), msg)
	require.Error(t, err)
	assert.Empty(t, store.statusUpdates)
	assert.Empty(t, sender.orders)
}

func TestProcessorDispatchByKind(t *testing.T) {
	store := &fakeStainingStore{affected: 1}
	sender := &fakeSender{}
	actions := newTestActions(store, sender)

	var started, completed int
	actions.OnStart = func(ctx context.Context, sp hl7.SlideParts, technique string) error {
		started++
		return nil
	}
	actions.OnComplete = func(ctx context.Context, sp hl7.SlideParts, technique string) error {
		completed++
		return nil
	}

	p := NewProcessor(newCapturingQueue(), actions, 1, logger.New("error", "text"), nil)
	ctx := context.Background()

	require.NoError(t, p.Dispatch(ctx, stainMessage("MSA|AA|M1", "ORC|NW|ACC-25").Raw()))
	require.NoError(t, p.Dispatch(ctx, stainMessage("MSA|AA|M2", "ORC|CA|ACC-25").Raw()))
	require.NoError(t, p.Dispatch(ctx, stainMessage("MSA|AA|M3", "ORC|OK|ACC-25").Raw()))
	require.NoError(t, p.Dispatch(ctx, stainMessage("MSA|AE|M4", "ORC|UA|ACC-25").Raw()))

	assert.Equal(t, 1, started)
	assert.Equal(t, 1, completed)
	assert.Equal(t, []string{models.StainingStatusRejected}, store.statusUpdates)
	require.Len(t, sender.controls, 1)
	assert.Equal(t, hl7.OrderCancel, sender.controls[0])
}
