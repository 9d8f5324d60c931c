// internal/service/reminder_service.go
package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	appErrors "github.com/unclebandit/chatleopard-backend/internal/errors"
	"github.com/unclebandit/chatleopard-backend/internal/model"
	"github.com/unclebandit/chatleopard-backend/internal/repository"
)

// How long before a meeting its alert fires.
const meetingAlertLead = 15 * time.Minute

// ReminderService owns the time-driven extras: follow-up reminders,
// birthday wishes, meeting alerts, the daily digest and scheduled campaign
// starts. All of them are wake handlers on the durable scheduler.
type ReminderService struct {
	ContactRepo repository.ContactRepositoryInterface
	MeetingRepo repository.MeetingRepositoryInterface
	Analytics   *repository.AnalyticsStore
	Settings    *repository.SettingsStore
	Scheduler   *Scheduler
	Send        *SendPath
	Campaigns   *CampaignService
	Notifier    *Notifier
	Log         *zap.SugaredLogger
}

// ====================== Follow-ups ======================

// SetFollowUp stores the reminder on the contact and registers its wake.
func (s *ReminderService) SetFollowUp(phone string, at time.Time) error {
	phone = model.NormalizePhone(phone)
	if phone == "" {
		return appErrors.NewValidation("phone", "phone is required")
	}
	if err := s.ContactRepo.SetFollowUp(phone, &at); err != nil {
		return err
	}
	return s.Scheduler.Register(model.WakeKey{Kind: model.WakeFollowUp, Phone: phone}, at, "")
}

// ClearFollowUp cancels the wake before clearing the contact field.
func (s *ReminderService) ClearFollowUp(phone string) error {
	phone = model.NormalizePhone(phone)
	if err := s.Scheduler.Cancel(model.WakeKey{Kind: model.WakeFollowUp, Phone: phone}); err != nil {
		return err
	}
	return s.ContactRepo.SetFollowUp(phone, nil)
}

// HandleFollowUpWake surfaces the due reminder to the operator.
func (s *ReminderService) HandleFollowUpWake(ctx context.Context, wake model.ScheduledWake) {
	contact, err := s.ContactRepo.GetByPhone(wake.Key.Phone)
	if err != nil || contact == nil {
		s.Log.Warnw("follow-up wake for unknown contact", "phone", wake.Key.Phone)
		return
	}
	if s.Notifier != nil {
		s.Notifier.Emit(model.EventFollowUpDue, contact)
	}
	_ = s.ContactRepo.SetFollowUp(contact.Phone, nil)
}

// ====================== Meetings ======================

// SaveMeeting persists the meeting and registers its alert wake.
func (s *ReminderService) SaveMeeting(m *model.Meeting) error {
	if m.Phone == "" || m.Title == "" {
		return appErrors.NewValidation("meeting", "phone and title are required")
	}
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	m.Phone = model.NormalizePhone(m.Phone)
	if err := s.MeetingRepo.Save(m); err != nil {
		return err
	}
	alertAt := m.StartsAt.Add(-meetingAlertLead)
	return s.Scheduler.Register(model.WakeKey{Kind: model.WakeMeetingAlert, RefID: m.ID}, alertAt, "")
}

func (s *ReminderService) ListMeetings() ([]model.Meeting, error) {
	return s.MeetingRepo.List()
}

// DeleteMeeting cancels the alert wake before removing the meeting.
func (s *ReminderService) DeleteMeeting(id string) error {
	if err := s.Scheduler.Cancel(model.WakeKey{Kind: model.WakeMeetingAlert, RefID: id}); err != nil {
		return err
	}
	return s.MeetingRepo.Delete(id)
}

// HandleMeetingWake reminds the contact and notifies the operator.
func (s *ReminderService) HandleMeetingWake(ctx context.Context, wake model.ScheduledWake) {
	meeting, err := s.MeetingRepo.GetByID(wake.Key.RefID)
	if err != nil || meeting == nil {
		return
	}
	contact := model.Contact{Phone: meeting.Phone, Name: meeting.Title}
	if c, err := s.ContactRepo.GetByPhone(meeting.Phone); err == nil && c != nil {
		contact = *c
	}

	message := "Reminder: " + meeting.Title + " at " + meeting.StartsAt.Format("15:04")
	result := s.Send.SendOne(ctx, contact, message, SendOptions{Stealth: true})
	s.Log.Infow("meeting reminder", "meeting", meeting.ID, "status", result.Status)

	if s.Notifier != nil {
		s.Notifier.Emit(model.EventMeetingAlert, meeting)
	}
}

// ====================== Birthdays ======================

// HandleBirthdayWake sends wishes to every contact whose birthday is today,
// then re-registers itself for tomorrow.
func (s *ReminderService) HandleBirthdayWake(ctx context.Context, wake model.ScheduledWake) {
	defer s.scheduleBirthdayCheck(time.Now().Add(24 * time.Hour))

	contacts, err := s.ContactRepo.ListAll()
	if err != nil {
		s.Log.Warnw("birthday scan failed", "error", err)
		return
	}
	today := time.Now()
	for _, c := range contacts {
		if c.Birthday == nil {
			continue
		}
		if c.Birthday.Month() != today.Month() || c.Birthday.Day() != today.Day() {
			continue
		}
		result := s.Send.SendOne(ctx, c, "Happy birthday, {name}! 🎉", SendOptions{Stealth: true})
		s.Log.Infow("birthday wish", "phone", c.Phone, "status", result.Status)
	}
}

func (s *ReminderService) scheduleBirthdayCheck(at time.Time) {
	day := time.Date(at.Year(), at.Month(), at.Day(), 9, 0, 0, 0, at.Location())
	if err := s.Scheduler.Register(model.WakeKey{Kind: model.WakeBirthday}, day, ""); err != nil {
		s.Log.Warnw("could not schedule birthday check", "error", err)
	}
}

// ====================== Daily digest ======================

// HandleDigestWake emits yesterday's aggregate numbers and re-registers for
// tomorrow at the configured hour.
func (s *ReminderService) HandleDigestWake(ctx context.Context, wake model.ScheduledWake) {
	defer s.scheduleDigest(time.Now().Add(24 * time.Hour))

	analytics, err := s.Analytics.Get()
	if err != nil {
		s.Log.Warnw("digest skipped, analytics unavailable", "error", err)
		return
	}
	digest := map[string]any{
		"total_sent":    analytics.TotalSent,
		"total_failed":  analytics.TotalFailed,
		"total_replies": analytics.TotalReplies,
		"campaigns":     len(analytics.Campaigns),
	}
	if s.Notifier != nil {
		s.Notifier.Emit(model.EventDailyDigest, digest)
	}
}

func (s *ReminderService) scheduleDigest(at time.Time) {
	settings, err := s.Settings.Get()
	if err != nil {
		settings = model.DefaultSettings()
	}
	fire := time.Date(at.Year(), at.Month(), at.Day(), settings.DigestHour, 0, 0, 0, at.Location())
	if err := s.Scheduler.Register(model.WakeKey{Kind: model.WakeDailyDigest}, fire, ""); err != nil {
		s.Log.Warnw("could not schedule daily digest", "error", err)
	}
}

// EnsureDailyLoops registers the birthday and digest wakes if none are
// pending. Called once at boot; the upsert semantics make it idempotent.
func (s *ReminderService) EnsureDailyLoops() {
	now := time.Now()
	next := now.Add(24 * time.Hour)

	pending, err := s.Scheduler.Wakes.ListPending()
	if err != nil {
		s.Log.Warnw("could not inspect pending wakes", "error", err)
		return
	}
	haveBirthday, haveDigest := false, false
	for _, w := range pending {
		switch w.Key.Kind {
		case model.WakeBirthday:
			haveBirthday = true
		case model.WakeDailyDigest:
			haveDigest = true
		}
	}
	if !haveBirthday {
		s.scheduleBirthdayCheck(next)
	}
	if !haveDigest {
		s.scheduleDigest(next)
	}
}

// ====================== Scheduled campaigns ======================

// ScheduleCampaign snapshots the request and registers a wake for it.
func (s *ReminderService) ScheduleCampaign(req model.CampaignRequest, at time.Time) (string, error) {
	if err := s.Campaigns.Validate(&req); err != nil {
		return "", err
	}
	payload, err := json.Marshal(req)
	if err != nil {
		return "", err
	}
	id := uuid.NewString()
	key := model.WakeKey{Kind: model.WakeCampaignStart, RefID: id}
	if err := s.Scheduler.Register(key, at, string(payload)); err != nil {
		return "", err
	}
	s.Log.Infow("campaign scheduled", "id", id, "at", at)
	return id, nil
}

// HandleCampaignStartWake replays the snapshotted request. If another run is
// active the start fails and is logged; scheduled runs do not preempt.
func (s *ReminderService) HandleCampaignStartWake(ctx context.Context, wake model.ScheduledWake) {
	var req model.CampaignRequest
	if err := json.Unmarshal([]byte(wake.Payload), &req); err != nil {
		s.Log.Warnw("scheduled campaign payload unreadable", "error", err)
		return
	}
	events, err := s.Campaigns.StartCampaign(ctx, req)
	if err != nil {
		s.Log.Warnw("scheduled campaign could not start", "error", err)
		return
	}
	go func() {
		for range events {
			// Drain; progress is already mirrored on the bus.
		}
	}()
}
