package service

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	appErrors "github.com/unclebandit/chatleopard-backend/internal/errors"
	"github.com/unclebandit/chatleopard-backend/internal/model"
	"github.com/unclebandit/chatleopard-backend/internal/repository"
	"github.com/unclebandit/chatleopard-backend/internal/transport"
)

// zeroDelaySettings writes a settings row with no per-send delay so runs
// finish instantly.
func zeroDelaySettings(kv *MockKV) {
	s := model.DefaultSettings()
	s.MinDelaySec = 0
	s.MaxDelaySec = 0
	_ = kv.Set(repository.KeySettings, s)
}

func newCampaignService(trans *MockTransport, dnc *MockDNCRepo, contacts *MockContactRepo, kv *MockKV) *CampaignService {
	zeroDelaySettings(kv)
	return &CampaignService{
		Send:      newSendPath(trans, dnc, contacts),
		Analytics: &repository.AnalyticsStore{KV: kv},
		KV:        kv,
		Settings:  &repository.SettingsStore{KV: kv},
		Log:       zap.NewNop().Sugar(),
	}
}

func drain(events <-chan model.ProgressEvent) []model.ProgressEvent {
	var out []model.ProgressEvent
	for ev := range events {
		out = append(out, ev)
	}
	return out
}

func TestStartCampaignValidation(t *testing.T) {
	svc := newCampaignService(&MockTransport{}, NewMockDNCRepo(), NewMockContactRepo(), NewMockKV())

	_, err := svc.StartCampaign(context.Background(), model.CampaignRequest{Template: "hi"})
	var verr *appErrors.ErrValidation
	require.ErrorAs(t, err, &verr)

	_, err = svc.StartCampaign(context.Background(), model.CampaignRequest{
		Contacts:  []model.Contact{{Phone: "1"}},
		Template:  "hi",
		ABEnabled: true,
	})
	require.ErrorAs(t, err, &verr, "A/B without a second template must be rejected")
}

func TestCampaignLedgerOrderAndABSplit(t *testing.T) {
	trans := &MockTransport{}
	kv := NewMockKV()
	contacts := []model.Contact{
		{Phone: "254700000001", Name: "Ann"},
		{Phone: "254700000002", Name: "Bea"},
		{Phone: "254700000003", Name: "Cal"},
		{Phone: "254700000004", Name: "Dee"},
	}
	svc := newCampaignService(trans, NewMockDNCRepo(), NewMockContactRepo(contacts...), kv)

	events, err := svc.StartCampaign(context.Background(), model.CampaignRequest{
		Contacts:  contacts,
		Template:  "Hi {name}, variant A",
		TemplateB: "Hi {name}, variant B",
		ABEnabled: true,
	})
	require.NoError(t, err)
	drain(events)

	analytics, err := (&repository.AnalyticsStore{KV: kv}).Get()
	require.NoError(t, err)
	require.Len(t, analytics.Campaigns, 1)

	summary := analytics.Campaigns[0]
	require.Len(t, summary.Ledger, 4, "one ledger entry per contact, in order")
	for i, want := range []string{"254700000001", "254700000002", "254700000003", "254700000004"} {
		assert.Equal(t, want, summary.Ledger[i].Phone)
	}

	// Even positions get A, odd get B.
	assert.Equal(t, 2, summary.SentA)
	assert.Equal(t, 2, summary.SentB)
	assert.Equal(t, model.VariantA, summary.Ledger[0].Variant)
	assert.Equal(t, model.VariantB, summary.Ledger[1].Variant)
	assert.Equal(t, 4, summary.Sent)
	assert.Equal(t, 4, analytics.TotalSent)
}

func TestCampaignSkipsSuppressedContacts(t *testing.T) {
	trans := &MockTransport{}
	kv := NewMockKV()
	contacts := []model.Contact{
		{Phone: "254700000001", Name: "Ann"},
		{Phone: "254700000002", Name: "Bea"},
	}
	svc := newCampaignService(trans, NewMockDNCRepo("254700000002"), NewMockContactRepo(contacts...), kv)

	events, err := svc.StartCampaign(context.Background(), model.CampaignRequest{
		Contacts: contacts,
		Template: "Hi {name}",
	})
	require.NoError(t, err)
	drain(events)

	analytics, _ := (&repository.AnalyticsStore{KV: kv}).Get()
	summary := analytics.Campaigns[0]
	assert.Equal(t, 1, summary.Sent)
	assert.Equal(t, 1, summary.Skipped)

	// Only the deliverable contact produced page traffic: open + send.
	assert.Equal(t, 2, trans.RequestCount())
}

func TestCampaignSingleRunSlot(t *testing.T) {
	trans := &MockTransport{}
	kv := NewMockKV()
	contacts := make([]model.Contact, 30)
	for i := range contacts {
		contacts[i] = model.Contact{Phone: "2547000001" + string(rune('0'+i%10)), Name: "C"}
	}
	svc := newCampaignService(trans, NewMockDNCRepo(), NewMockContactRepo(), kv)

	// Force a 1s countdown between sends so the run is still active when the
	// second start arrives.
	events, err := svc.StartCampaign(context.Background(), model.CampaignRequest{
		Contacts:    contacts,
		Template:    "hi",
		MinDelaySec: 1,
		MaxDelaySec: 1,
	})
	require.NoError(t, err)

	_, err = svc.StartCampaign(context.Background(), model.CampaignRequest{
		Contacts: contacts,
		Template: "hi",
	})
	var running *appErrors.ErrAlreadyRunning
	require.ErrorAs(t, err, &running)

	require.NoError(t, svc.StopCampaign())
	drain(events)

	// Slot is free again after the stop completes.
	_, active := svc.state.Active()
	assert.False(t, active)
}

func TestStopCampaignMidFlight(t *testing.T) {
	trans := &MockTransport{}
	kv := NewMockKV()
	contacts := []model.Contact{
		{Phone: "254700000001", Name: "Ann"},
		{Phone: "254700000002", Name: "Bea"},
		{Phone: "254700000003", Name: "Cal"},
	}
	svc := newCampaignService(trans, NewMockDNCRepo(), NewMockContactRepo(contacts...), kv)

	events, err := svc.StartCampaign(context.Background(), model.CampaignRequest{
		Contacts:    contacts,
		Template:    "Hi {name}",
		MinDelaySec: 2,
		MaxDelaySec: 2,
	})
	require.NoError(t, err)

	var collected []model.ProgressEvent
	stopIssued := false
	for ev := range events {
		collected = append(collected, ev)
		if ev.Kind == model.ProgressResult && !stopIssued {
			stopIssued = true
			require.NoError(t, svc.StopCampaign())
		}
	}

	analytics, _ := (&repository.AnalyticsStore{KV: kv}).Get()
	require.Len(t, analytics.Campaigns, 1)
	summary := analytics.Campaigns[0]

	assert.True(t, summary.Stopped)
	assert.Less(t, len(summary.Ledger), 3, "stop must land before the last contact")
	assert.GreaterOrEqual(t, len(summary.Ledger), 1, "the in-flight send completes")

	last := collected[len(collected)-1]
	assert.Equal(t, model.ProgressDone, last.Kind)
}

func TestStartCampaignOutlivesHTTPRequest(t *testing.T) {
	trans := &MockTransport{}
	kv := NewMockKV()
	svc := newCampaignService(trans, NewMockDNCRepo(), NewMockContactRepo(), kv)

	// The request delay keeps the run alive well past the handler's return,
	// when net/http cancels the request context.
	done := make(chan []model.ProgressEvent, 1)
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		events, err := svc.StartCampaign(r.Context(), model.CampaignRequest{
			Contacts: []model.Contact{
				{Name: "Ann", Phone: "254700000001"},
				{Name: "Ben", Phone: "254700000002"},
				{Name: "Cleo", Phone: "254700000003"},
			},
			Template:    "Hi {name}",
			MinDelaySec: 1,
			MaxDelaySec: 1,
		})
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		go func() { done <- drain(events) }()
		w.WriteHeader(http.StatusOK)
	})

	srv := httptest.NewServer(handler)
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var events []model.ProgressEvent
	select {
	case events = <-done:
	case <-time.After(15 * time.Second):
		t.Fatal("run did not finish after the request returned")
	}
	require.NotEmpty(t, events)
	assert.Equal(t, model.ProgressDone, events[len(events)-1].Kind)

	analytics, err := (&repository.AnalyticsStore{KV: kv}).Get()
	require.NoError(t, err)
	require.Len(t, analytics.Campaigns, 1)
	assert.False(t, analytics.Campaigns[0].Stopped)
	assert.Equal(t, 3, analytics.Campaigns[0].Sent)
}

func TestCampaignEmitsErrorEvents(t *testing.T) {
	trans := &MockTransport{FailAction: transport.ActionSendText}
	svc := newCampaignService(trans, NewMockDNCRepo(), NewMockContactRepo(), NewMockKV())

	events, err := svc.StartCampaign(context.Background(), model.CampaignRequest{
		Contacts: []model.Contact{{Name: "Ann", Phone: "254700000001"}},
		Template: "Hi",
	})
	require.NoError(t, err)

	var errored *model.ProgressEvent
	for _, ev := range drain(events) {
		if ev.Kind == model.ProgressError {
			errored = &ev
		}
	}
	require.NotNil(t, errored, "a failed send must stream an error event")
	assert.Equal(t, "scripted failure", errored.Error)
	require.NotNil(t, errored.Result)
	assert.Equal(t, model.SendStatusFailed, errored.Result.Status)
}

func TestStopWithoutRunFails(t *testing.T) {
	svc := newCampaignService(&MockTransport{}, NewMockDNCRepo(), NewMockContactRepo(), NewMockKV())
	var verr *appErrors.ErrValidation
	require.ErrorAs(t, svc.StopCampaign(), &verr)
}

func TestCampaignClearsSnapshotOnFinish(t *testing.T) {
	kv := NewMockKV()
	svc := newCampaignService(&MockTransport{}, NewMockDNCRepo(), NewMockContactRepo(), kv)

	events, err := svc.StartCampaign(context.Background(), model.CampaignRequest{
		Contacts: []model.Contact{{Phone: "254700000001", Name: "Ann"}},
		Template: "hi",
	})
	require.NoError(t, err)
	drain(events)

	var snap model.RunSnapshot
	found, err := kv.Get(repository.KeyRunSnapshot, &snap)
	require.NoError(t, err)
	assert.False(t, found, "finished runs leave no snapshot behind")
}

func TestStatusIdle(t *testing.T) {
	svc := newCampaignService(&MockTransport{}, NewMockDNCRepo(), NewMockContactRepo(), NewMockKV())

	status, err := svc.Status()
	require.NoError(t, err)
	assert.Equal(t, false, status["running"])
}

func TestHumanDelayBounds(t *testing.T) {
	svc := newCampaignService(&MockTransport{}, NewMockDNCRepo(), NewMockContactRepo(), NewMockKV())
	require.NoError(t, svc.state.Start("test-run"))
	defer svc.state.Finish()

	events := make(chan model.ProgressEvent, 16)
	start := time.Now()
	ok := svc.humanDelay(context.Background(), events, 0, 2, 1, 1)
	elapsed := time.Since(start)

	assert.True(t, ok)
	assert.GreaterOrEqual(t, elapsed, time.Second)
	assert.Less(t, elapsed, 3*time.Second)
}
