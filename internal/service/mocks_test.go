package service

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/unclebandit/chatleopard-backend/internal/model"
	"github.com/unclebandit/chatleopard-backend/internal/repository"
	"github.com/unclebandit/chatleopard-backend/internal/transport"
)

func newSettingsStore(kv *MockKV) *repository.SettingsStore {
	return &repository.SettingsStore{KV: kv}
}

// --- Mock repositories ---

// MockDNCRepo keeps the suppression list in memory
type MockDNCRepo struct {
	mu      sync.Mutex
	blocked map[string]bool
}

func NewMockDNCRepo(phones ...string) *MockDNCRepo {
	m := &MockDNCRepo{blocked: map[string]bool{}}
	for _, p := range phones {
		m.blocked[p] = true
	}
	return m
}

func (m *MockDNCRepo) Contains(phone string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.blocked[phone], nil
}

func (m *MockDNCRepo) List() ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.blocked))
	for p := range m.blocked {
		out = append(out, p)
	}
	return out, nil
}

func (m *MockDNCRepo) Add(phone string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blocked[phone] = true
	return nil
}

func (m *MockDNCRepo) Remove(phone string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.blocked, phone)
	return nil
}

func (m *MockDNCRepo) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blocked = map[string]bool{}
	return nil
}

// MockContactRepo stores contacts in memory and records stage changes
type MockContactRepo struct {
	mu       sync.Mutex
	contacts map[string]*model.Contact
	Stages   map[string]string
	Tags     map[string][]string
	Replies  map[string]int
}

func NewMockContactRepo(contacts ...model.Contact) *MockContactRepo {
	m := &MockContactRepo{
		contacts: map[string]*model.Contact{},
		Stages:   map[string]string{},
		Tags:     map[string][]string{},
		Replies:  map[string]int{},
	}
	for i := range contacts {
		c := contacts[i]
		m.contacts[c.Phone] = &c
	}
	return m
}

func (m *MockContactRepo) GetByPhone(phone string) (*model.Contact, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.contacts[phone], nil
}

func (m *MockContactRepo) ListAll() ([]model.Contact, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.Contact, 0, len(m.contacts))
	for _, c := range m.contacts {
		out = append(out, *c)
	}
	return out, nil
}

func (m *MockContactRepo) Upsert(c *model.Contact) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.contacts[c.Phone] = c
	return nil
}

func (m *MockContactRepo) UpdateStage(phone, stage string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Stages[phone] = stage
	if c, ok := m.contacts[phone]; ok {
		c.Stage = stage
	}
	return nil
}

func (m *MockContactRepo) AddTag(phone, tag string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.Tags[phone] {
		if t == tag {
			return nil
		}
	}
	m.Tags[phone] = append(m.Tags[phone], tag)
	return nil
}

func (m *MockContactRepo) TouchLastContacted(phone string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.contacts[phone]; ok {
		c.LastContacted = &at
	}
	return nil
}

func (m *MockContactRepo) AppendReply(phone string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Replies[phone]++
	return nil
}

func (m *MockContactRepo) SetFollowUp(phone string, at *time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.contacts[phone]; ok {
		c.FollowUpDate = at
	}
	return nil
}

// MockKV backs the stores with a plain map
type MockKV struct {
	mu   sync.Mutex
	data map[string]json.RawMessage
}

func NewMockKV() *MockKV {
	return &MockKV{data: map[string]json.RawMessage{}}
}

func (m *MockKV) Get(key string, out any) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	raw, ok := m.data[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(raw, out)
}

func (m *MockKV) Set(key string, value any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.data[key] = raw
	return nil
}

func (m *MockKV) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

// MockWakeRepo keeps pending wakes in a slice and logs operations so tests
// can assert ordering
type MockWakeRepo struct {
	mu     sync.Mutex
	nextID int64
	Wakes  []model.ScheduledWake
	Ops    *[]string
}

func (m *MockWakeRepo) logOp(op string) {
	if m.Ops != nil {
		*m.Ops = append(*m.Ops, op)
	}
}

func (m *MockWakeRepo) Register(w *model.ScheduledWake) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.Wakes {
		if m.Wakes[i].Key == w.Key {
			m.Wakes[i].FireAt = w.FireAt
			m.Wakes[i].Payload = w.Payload
			m.logOp("register")
			return nil
		}
	}
	m.nextID++
	w.ID = m.nextID
	m.Wakes = append(m.Wakes, *w)
	m.logOp("register")
	return nil
}

func (m *MockWakeRepo) Cancel(key model.WakeKey) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := m.Wakes[:0]
	for _, w := range m.Wakes {
		if w.Key != key {
			out = append(out, w)
		}
	}
	m.Wakes = out
	m.logOp("cancel")
	return nil
}

func (m *MockWakeRepo) CancelBySequence(sequenceID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := m.Wakes[:0]
	for _, w := range m.Wakes {
		if w.Key.SequenceID != sequenceID {
			out = append(out, w)
		}
	}
	m.Wakes = out
	m.logOp("cancel_sequence")
	return nil
}

func (m *MockWakeRepo) Due(now time.Time) ([]model.ScheduledWake, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var due []model.ScheduledWake
	for _, w := range m.Wakes {
		if !w.FireAt.After(now) {
			due = append(due, w)
		}
	}
	return due, nil
}

func (m *MockWakeRepo) Delete(id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := m.Wakes[:0]
	for _, w := range m.Wakes {
		if w.ID != id {
			out = append(out, w)
		}
	}
	m.Wakes = out
	m.logOp("delete")
	return nil
}

func (m *MockWakeRepo) ListPending() ([]model.ScheduledWake, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.ScheduledWake(nil), m.Wakes...), nil
}

func (m *MockWakeRepo) PendingFor(sequenceID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, w := range m.Wakes {
		if w.Key.SequenceID == sequenceID {
			n++
		}
	}
	return n
}

// MockDripRepo keeps sequences and enrollments in memory
type MockDripRepo struct {
	mu          sync.Mutex
	sequences   map[string]*model.DripSequence
	enrollments map[string]*model.DripEnrollment
	Ops         *[]string
}

func NewMockDripRepo(seqs ...*model.DripSequence) *MockDripRepo {
	m := &MockDripRepo{
		sequences:   map[string]*model.DripSequence{},
		enrollments: map[string]*model.DripEnrollment{},
	}
	for _, s := range seqs {
		m.sequences[s.ID] = s
	}
	return m
}

func (m *MockDripRepo) logOp(op string) {
	if m.Ops != nil {
		*m.Ops = append(*m.Ops, op)
	}
}

func (m *MockDripRepo) SaveSequence(seq *model.DripSequence) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sequences[seq.ID] = seq
	return nil
}

func (m *MockDripRepo) GetSequence(id string) (*model.DripSequence, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	seq, ok := m.sequences[id]
	if !ok {
		return nil, errSequenceMissing(id)
	}
	return seq, nil
}

func (m *MockDripRepo) ListSequences() ([]model.DripSequence, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.DripSequence, 0, len(m.sequences))
	for _, s := range m.sequences {
		out = append(out, *s)
	}
	return out, nil
}

func (m *MockDripRepo) DeleteSequence(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sequences, id)
	for k, e := range m.enrollments {
		if e.SequenceID == id {
			delete(m.enrollments, k)
		}
	}
	m.logOp("delete_sequence")
	return nil
}

func (m *MockDripRepo) Enroll(e *model.DripEnrollment) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := e.Phone + "/" + e.SequenceID
	if _, exists := m.enrollments[key]; exists {
		return false, nil
	}
	m.enrollments[key] = e
	return true, nil
}

func (m *MockDripRepo) GetEnrollment(phone, sequenceID string) (*model.DripEnrollment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.enrollments[phone+"/"+sequenceID], nil
}

func (m *MockDripRepo) ListEnrollments(sequenceID string) ([]model.DripEnrollment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.DripEnrollment
	for _, e := range m.enrollments {
		if e.SequenceID == sequenceID {
			out = append(out, *e)
		}
	}
	return out, nil
}

func (m *MockDripRepo) AdvanceEnrollment(phone, sequenceID string, stepIndex int, nextFireAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.enrollments[phone+"/"+sequenceID]; ok {
		e.StepIndex = stepIndex
		e.NextFireAt = nextFireAt
	}
	return nil
}

func (m *MockDripRepo) DeleteEnrollment(phone, sequenceID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.enrollments, phone+"/"+sequenceID)
	return nil
}

func errSequenceMissing(id string) error {
	return &missingSequenceError{id: id}
}

type missingSequenceError struct{ id string }

func (e *missingSequenceError) Error() string { return "sequence not found: " + e.id }

// --- Mock transport ---

// MockTransport records every request and answers from a script
type MockTransport struct {
	mu         sync.Mutex
	Requests   []transport.Request
	FailAction string // this action answers Success=false
	GoSilent   bool   // every Invoke returns nil
	LastText   string
	Incoming   bool
}

func (m *MockTransport) EnsureTab(ctx context.Context, stealth bool) error {
	return nil
}

func (m *MockTransport) Invoke(ctx context.Context, stealth bool, req transport.Request, maxAttempts int) *transport.Response {
	m.mu.Lock()
	m.Requests = append(m.Requests, req)
	m.mu.Unlock()

	if m.GoSilent {
		return nil
	}
	if m.FailAction != "" && req.Action == m.FailAction {
		return &transport.Response{Success: false, Error: "scripted failure"}
	}
	if req.Action == transport.ActionReadLast {
		return &transport.Response{Success: true, Text: m.LastText, IsIncoming: m.Incoming}
	}
	return &transport.Response{Success: true}
}

func (m *MockTransport) RequestCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Requests)
}

func (m *MockTransport) ActionsSeen() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.Requests))
	for i, r := range m.Requests {
		out[i] = r.Action
	}
	return out
}

// MockAssist returns a canned answer for every task
type MockAssist struct {
	Text string
	OK   bool
}

func (m MockAssist) Generate(string, time.Duration) (string, bool)           { return m.Text, m.OK }
func (m MockAssist) Classify(string, []string, time.Duration) (string, bool) { return m.Text, m.OK }
func (m MockAssist) Transcribe([]byte, string, time.Duration) (string, bool) { return m.Text, m.OK }
func (m MockAssist) Translate(string, string, time.Duration) (string, bool)  { return m.Text, m.OK }
