package controller_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/unclebandit/chatleopard-backend/internal/controller"
	"github.com/unclebandit/chatleopard-backend/internal/model"
	"github.com/unclebandit/chatleopard-backend/internal/queue"
	"github.com/unclebandit/chatleopard-backend/internal/repository"
	"github.com/unclebandit/chatleopard-backend/internal/service"
	"github.com/unclebandit/chatleopard-backend/internal/transport"
)

// --- Mocks ---

type MockKV struct {
	data map[string]json.RawMessage
}

func NewMockKV() *MockKV { return &MockKV{data: map[string]json.RawMessage{}} }

func (m *MockKV) Get(key string, out any) (bool, error) {
	raw, ok := m.data[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(raw, out)
}

func (m *MockKV) Set(key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.data[key] = raw
	return nil
}

func (m *MockKV) Delete(key string) error {
	delete(m.data, key)
	return nil
}

type MockDNCRepo struct {
	blocked map[string]bool
}

func (m *MockDNCRepo) Contains(phone string) (bool, error) { return m.blocked[phone], nil }
func (m *MockDNCRepo) List() ([]string, error) {
	out := []string{}
	for p := range m.blocked {
		out = append(out, p)
	}
	return out, nil
}
func (m *MockDNCRepo) Add(phone string) error {
	m.blocked[phone] = true
	return nil
}
func (m *MockDNCRepo) Remove(phone string) error {
	delete(m.blocked, phone)
	return nil
}
func (m *MockDNCRepo) Clear() error {
	m.blocked = map[string]bool{}
	return nil
}

type MockTransport struct{}

func (m *MockTransport) EnsureTab(ctx context.Context, stealth bool) error { return nil }
func (m *MockTransport) Invoke(ctx context.Context, stealth bool, req transport.Request, maxAttempts int) *transport.Response {
	return &transport.Response{Success: true}
}

func newCampaignController() *controller.CampaignController {
	kv := NewMockKV()
	settings := &repository.SettingsStore{KV: kv}
	s := model.DefaultSettings()
	s.MinDelaySec = 0
	s.MaxDelaySec = 0
	_ = kv.Set(repository.KeySettings, s)

	return &controller.CampaignController{
		CampaignService: &service.CampaignService{
			Send:      &service.SendPath{},
			Analytics: &repository.AnalyticsStore{KV: kv},
			KV:        kv,
			Settings:  settings,
			Log:       zap.NewNop().Sugar(),
		},
	}
}

// --- Tests ---

func TestStartCampaignRejectsEmptyContacts(t *testing.T) {
	ctrl := newCampaignController()

	body, _ := json.Marshal(map[string]any{"template": "hi"})
	req := httptest.NewRequest(http.MethodPost, "/campaigns/start", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	ctrl.StartCampaign(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	var resp map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp["success"] != false {
		t.Errorf("envelope success = %v, want false", resp["success"])
	}
	if !strings.Contains(resp["error"].(string), "contact") {
		t.Errorf("error = %q", resp["error"])
	}
}

func TestStartCampaignRejectsBadBody(t *testing.T) {
	ctrl := newCampaignController()

	req := httptest.NewRequest(http.MethodPost, "/campaigns/start", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()

	ctrl.StartCampaign(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestStopWithoutRunReturns400(t *testing.T) {
	ctrl := newCampaignController()

	req := httptest.NewRequest(http.MethodPost, "/campaigns/stop", nil)
	rec := httptest.NewRecorder()

	ctrl.StopCampaign(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestStatusIdle(t *testing.T) {
	ctrl := newCampaignController()

	req := httptest.NewRequest(http.MethodGet, "/campaigns/status", nil)
	rec := httptest.NewRecorder()

	ctrl.Status(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var resp map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp["running"] != false {
		t.Errorf("running = %v, want false", resp["running"])
	}
	if resp["success"] != true {
		t.Errorf("envelope success = %v, want true", resp["success"])
	}
}

func TestDNCEndpoints(t *testing.T) {
	dnc := &MockDNCRepo{blocked: map[string]bool{}}
	ctrl := &controller.DNCController{DNCRepo: dnc}

	r := chi.NewRouter()
	r.Get("/dnc", ctrl.List)
	r.Post("/dnc", ctrl.Add)
	r.Delete("/dnc/{phone}", ctrl.Remove)

	// Add normalizes before storing.
	body, _ := json.Marshal(map[string]string{"phone": "+254 (700) 000-001"})
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/dnc", bytes.NewReader(body)))
	if rec.Code != http.StatusOK {
		t.Fatalf("add status = %d", rec.Code)
	}
	if !dnc.blocked["254700000001"] {
		t.Fatalf("stored phones: %v", dnc.blocked)
	}

	// Missing phone is a validation error.
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/dnc", strings.NewReader(`{}`)))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("empty phone status = %d, want 400", rec.Code)
	}

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/dnc/254700000001", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("remove status = %d", rec.Code)
	}
	if dnc.blocked["254700000001"] {
		t.Error("phone still blocked after remove")
	}
}

func TestEventsReleasesSubscriptionOnDisconnect(t *testing.T) {
	bus := queue.NewInMemoryQueue()
	ctrl := newCampaignController()
	ctrl.Bus = bus

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, "/api/campaigns/events", nil).WithContext(ctx)
	rec := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		ctrl.Events(rec, req)
		close(done)
	}()

	// Give the handler a moment to subscribe, then drop the client.
	deadline := time.After(2 * time.Second)
	for {
		if err := bus.Publish(queue.TopicProgress, "ping"); err == nil {
			break
		}
		select {
		case <-deadline:
			t.Fatal("handler never subscribed")
		case <-time.After(10 * time.Millisecond):
		}
	}
	cancel()
	<-done

	if err := bus.Publish(queue.TopicProgress, "after disconnect"); err == nil {
		t.Fatal("subscription survived the disconnect")
	}
}
