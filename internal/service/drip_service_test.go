package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	appErrors "github.com/unclebandit/chatleopard-backend/internal/errors"
	"github.com/unclebandit/chatleopard-backend/internal/model"
	"github.com/unclebandit/chatleopard-backend/internal/transport"
)

func newDripFixture(seq *model.DripSequence, dncPhones ...string) (*DripService, *MockDripRepo, *MockWakeRepo, *MockTransport) {
	trans := &MockTransport{}
	dnc := NewMockDNCRepo(dncPhones...)
	contacts := NewMockContactRepo()
	drips := NewMockDripRepo(seq)
	wakes := &MockWakeRepo{}

	path := newSendPath(trans, dnc, contacts)
	svc := &DripService{
		DripRepo:    drips,
		ContactRepo: contacts,
		Compliance:  path.Compliance,
		Scheduler:   &Scheduler{Wakes: wakes, Log: zap.NewNop().Sugar()},
		Send:        path,
		Log:         zap.NewNop().Sugar(),
	}
	return svc, drips, wakes, trans
}

func twoStepSequence() *model.DripSequence {
	return &model.DripSequence{
		ID:   "welcome",
		Name: "Welcome flow",
		Steps: []model.DripStep{
			{Delay: 5, Unit: model.UnitMinutes, Template: "Welcome {name}!"},
			{Delay: 1, Unit: model.UnitDays, Template: "Still interested, {name}?"},
		},
	}
}

func TestSaveSequenceValidation(t *testing.T) {
	svc, _, _, _ := newDripFixture(twoStepSequence())

	var verr *appErrors.ErrValidation
	require.ErrorAs(t, svc.SaveSequence(&model.DripSequence{ID: "x", Name: "x"}), &verr)
	require.ErrorAs(t, svc.SaveSequence(&model.DripSequence{
		ID: "x", Name: "x", Steps: []model.DripStep{{Delay: -1, Unit: model.UnitHours, Template: "t"}},
	}), &verr)
	require.NoError(t, svc.SaveSequence(twoStepSequence()))
}

func TestEnrollSchedulesFirstStepWithDelay(t *testing.T) {
	svc, _, wakes, trans := newDripFixture(twoStepSequence())

	before := time.Now()
	result, err := svc.Enroll([]string{"+254 700 000 001"}, "welcome")
	require.NoError(t, err)
	assert.Equal(t, 1, result.Enrolled)

	// Enrollment never sends anything directly.
	assert.Zero(t, trans.RequestCount())

	pending, _ := wakes.ListPending()
	require.Len(t, pending, 1)
	assert.Equal(t, model.WakeDripStep, pending[0].Key.Kind)
	assert.Equal(t, "254700000001", pending[0].Key.Phone)
	assert.Equal(t, 0, pending[0].Key.Step)

	// Step 0 honors its own delay; the first message is not immediate.
	assert.True(t, pending[0].FireAt.After(before.Add(4*time.Minute)))
}

func TestEnrollIsIdempotentAndSkipsDNC(t *testing.T) {
	svc, _, wakes, _ := newDripFixture(twoStepSequence(), "254700000009")

	result, err := svc.Enroll([]string{"254700000001", "254700000001", "254700000009", ""}, "welcome")
	require.NoError(t, err)

	assert.Equal(t, 1, result.Enrolled)
	assert.Equal(t, 3, result.Skipped)

	pending, _ := wakes.ListPending()
	assert.Len(t, pending, 1, "re-enrolling must not stack a second wake")
}

func TestDeleteSequenceCancelsWakesFirst(t *testing.T) {
	var ops []string
	svc, drips, wakes, _ := newDripFixture(twoStepSequence())
	drips.Ops = &ops
	wakes.Ops = &ops

	_, err := svc.Enroll([]string{"254700000001"}, "welcome")
	require.NoError(t, err)
	ops = ops[:0]

	require.NoError(t, svc.DeleteSequence("welcome"))
	require.Equal(t, []string{"cancel_sequence", "delete_sequence"}, ops,
		"wakes must be gone before the sequence state is removed")
	assert.Zero(t, wakes.PendingFor("welcome"))
}

func TestHandleWakeAdvancesThenCompletes(t *testing.T) {
	svc, drips, wakes, trans := newDripFixture(twoStepSequence())

	_, err := svc.Enroll([]string{"254700000001"}, "welcome")
	require.NoError(t, err)
	pending, _ := wakes.ListPending()
	require.Len(t, pending, 1)

	// Step 0 fires: one send, enrollment advances, step 1 gets a wake.
	require.NoError(t, wakes.Delete(pending[0].ID))
	svc.HandleWake(context.Background(), pending[0])

	assert.Equal(t, []string{transport.ActionOpenChat, transport.ActionSendText}, trans.ActionsSeen())

	enrollment, _ := drips.GetEnrollment("254700000001", "welcome")
	require.NotNil(t, enrollment)
	assert.Equal(t, 1, enrollment.StepIndex)

	pending, _ = wakes.ListPending()
	require.Len(t, pending, 1)
	assert.Equal(t, 1, pending[0].Key.Step)

	// Final step fires: enrollment completes, nothing rescheduled.
	require.NoError(t, wakes.Delete(pending[0].ID))
	svc.HandleWake(context.Background(), pending[0])

	enrollment, _ = drips.GetEnrollment("254700000001", "welcome")
	assert.Nil(t, enrollment)
	pending, _ = wakes.ListPending()
	assert.Empty(t, pending)
}

func TestHandleWakeShrunkSequenceCompletes(t *testing.T) {
	seq := twoStepSequence()
	svc, drips, wakes, trans := newDripFixture(seq)

	_, err := svc.Enroll([]string{"254700000001"}, "welcome")
	require.NoError(t, err)

	// The definition shrinks under the live enrollment.
	require.NoError(t, drips.AdvanceEnrollment("254700000001", "welcome", 5, time.Now()))
	pending, _ := wakes.ListPending()
	require.Len(t, pending, 1)

	svc.HandleWake(context.Background(), pending[0])

	enrollment, _ := drips.GetEnrollment("254700000001", "welcome")
	assert.Nil(t, enrollment, "an out-of-range step completes the enrollment")
	assert.Zero(t, trans.RequestCount())
}

func TestUnenrollCancelsPendingWake(t *testing.T) {
	svc, drips, wakes, _ := newDripFixture(twoStepSequence())

	_, err := svc.Enroll([]string{"254700000001"}, "welcome")
	require.NoError(t, err)

	require.NoError(t, svc.Unenroll("254700000001", "welcome"))

	enrollment, _ := drips.GetEnrollment("254700000001", "welcome")
	assert.Nil(t, enrollment)
	pending, _ := wakes.ListPending()
	assert.Empty(t, pending)

	// Unenrolling a missing enrollment is a no-op.
	require.NoError(t, svc.Unenroll("254700000001", "welcome"))
}
