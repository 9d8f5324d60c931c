// internal/service/messaging_service.go
package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/unclebandit/chatleopard-backend/internal/agent"
	appErrors "github.com/unclebandit/chatleopard-backend/internal/errors"
	"github.com/unclebandit/chatleopard-backend/internal/model"
	"github.com/unclebandit/chatleopard-backend/internal/queue"
	"github.com/unclebandit/chatleopard-backend/internal/repository"
	"github.com/unclebandit/chatleopard-backend/internal/transport"
)

// MessagingService covers the ad-hoc surface: quick single sends, quoted
// replies, reply scanning over the pinned-chat list, the inbound watcher
// and the transcription/translation passthroughs.
type MessagingService struct {
	Send        *SendPath
	Transport   TransportInvoker
	ContactRepo repository.ContactRepositoryInterface
	Compliance  *ComplianceService
	Analytics   *repository.AnalyticsStore
	Settings    *repository.SettingsStore
	KV          repository.KVRepositoryInterface
	Assist      OptionalAssist
	Notifier    *Notifier
	Bus         queue.Queue
	Log         *zap.SugaredLogger
}

// QuickSend sends one message to one contact through the shared send path.
func (s *MessagingService) QuickSend(ctx context.Context, phone, message, mediaPath string) (model.SendResult, error) {
	phone = model.NormalizePhone(phone)
	if phone == "" {
		return model.SendResult{}, appErrors.NewValidation("phone", "phone is required")
	}
	if message == "" {
		return model.SendResult{}, appErrors.NewValidation("message", "message is empty")
	}

	contact := s.contactFor(phone)
	settings, err := s.Settings.Get()
	if err != nil {
		settings = model.DefaultSettings()
	}

	media, mediaMIME, mediaName := loadMedia(mediaPath, s.Log)
	result := s.Send.SendOne(ctx, contact, message, SendOptions{
		Variant:       model.VariantA,
		TrackLinks:    settings.TrackLinks,
		AIPersonalize: settings.AIPersonalize,
		Stealth:       true,
		Media:         media,
		MIME:          mediaMIME,
		Filename:      mediaName,
	})
	return result, nil
}

// SendReply quotes the given snippet in the chat and replies to it.
func (s *MessagingService) SendReply(ctx context.Context, phone, snippet, reply string) (model.SendResult, error) {
	if reply == "" {
		return model.SendResult{}, appErrors.NewValidation("reply", "reply is empty")
	}
	return s.Send.QuotedReply(ctx, model.NormalizePhone(phone), snippet, reply), nil
}

// ScanReplies walks the pinned-chat list, reads each conversation's newest
// message and runs every new incoming one through compliance and the reply
// webhook. Returns the reports for this pass.
func (s *MessagingService) ScanReplies(ctx context.Context) ([]model.ReplyReport, error) {
	var pinned []string
	if _, err := s.KV.Get(repository.KeyPinnedChats, &pinned); err != nil {
		return nil, err
	}

	var lastSeen map[string]string
	if _, err := s.KV.Get(repository.KeyScanMarks, &lastSeen); err != nil {
		return nil, err
	}
	if lastSeen == nil {
		lastSeen = map[string]string{}
	}

	reports := []model.ReplyReport{}
	for _, phone := range pinned {
		phone = model.NormalizePhone(phone)
		text, incoming, err := s.Send.ReadLast(ctx, phone)
		if err != nil {
			s.Log.Debugw("reply scan skipped chat", "phone", phone, "error", err)
			continue
		}
		if !incoming || text == "" || lastSeen[phone] == text {
			continue
		}
		lastSeen[phone] = text

		report := model.ReplyReport{Phone: phone, Incoming: text, Success: true, SeenAt: time.Now()}
		reports = append(reports, report)

		if err := s.Compliance.ScanReply(phone, text); err != nil {
			s.Log.Warnw("compliance scan failed", "phone", phone, "error", err)
		}
		s.bumpReplyCount()
		if s.Notifier != nil {
			s.Notifier.Emit(model.EventReplyReceived, report)
		}
		if s.Bus != nil {
			_ = s.Bus.Publish(queue.TopicReplies, report)
		}
	}

	if err := s.KV.Set(repository.KeyScanMarks, lastSeen); err != nil {
		s.Log.Debugw("could not persist scan marks", "error", err)
	}
	return reports, nil
}

func (s *MessagingService) bumpReplyCount() {
	analytics, err := s.Analytics.Get()
	if err != nil {
		return
	}
	analytics.TotalReplies++
	if err := s.Analytics.Save(analytics); err != nil {
		s.Log.Debugw("could not save analytics", "error", err)
	}
}

// StartWatcher installs the inbound watcher on the open conversation, wired
// to settings, the assist layer and compliance.
func (s *MessagingService) StartWatcher(ctx context.Context) error {
	settings, err := s.Settings.Get()
	if err != nil {
		return err
	}

	cfg := agent.WatcherConfig{
		AutoReply:     settings.AutoReply,
		Keywords:      settings.ReplyKeywords,
		ReplyTemplate: settings.AutoReplyText,
		BusinessHours: settings.BusinessHours,
		BusinessStart: settings.BusinessStart,
		BusinessEnd:   settings.BusinessEnd,
		OutsideMsg:    settings.OutsideHoursMsg,
		Generate: func(incoming string) (string, bool) {
			if s.Assist == nil {
				return "", false
			}
			return s.Assist.Generate(
				"Write a short, friendly reply to this customer message:\n\n"+incoming,
				15*time.Second,
			)
		},
		Report: func(report model.ReplyReport) {
			// The watcher only knows the open conversation, not its phone;
			// compliance can only run when the report carries one.
			if report.Phone != "" {
				if err := s.Compliance.ScanReply(report.Phone, report.Incoming); err != nil {
					s.Log.Warnw("compliance scan failed", "error", err)
				}
			}
			s.bumpReplyCount()
			if s.Notifier != nil {
				s.Notifier.Emit(model.EventReplyReceived, report)
			}
		},
	}

	resp := s.Transport.Invoke(ctx, true, transport.Request{
		Action:  transport.ActionStartWatcher,
		Watcher: &cfg,
	}, 3)
	if resp == nil {
		return appErrors.NewAgentUnavailable(3)
	}
	if !resp.Success {
		return appErrors.NewValidation("watcher", resp.Error)
	}
	return nil
}

// StopWatcher tears the active watcher down.
func (s *MessagingService) StopWatcher(ctx context.Context) error {
	resp := s.Transport.Invoke(ctx, true, transport.Request{Action: transport.ActionStopWatcher}, 3)
	if resp == nil {
		return appErrors.NewAgentUnavailable(3)
	}
	return nil
}

// Transcribe turns a voice-note payload into text via the assist layer.
func (s *MessagingService) Transcribe(audio []byte, mime string) (string, bool) {
	if s.Assist == nil {
		return "", false
	}
	return s.Assist.Transcribe(audio, mime, 60*time.Second)
}

// Translate renders inbound text into the target language.
func (s *MessagingService) Translate(text, targetLang string) (string, bool) {
	if s.Assist == nil {
		return "", false
	}
	return s.Assist.Translate(text, targetLang, 30*time.Second)
}

// PinnedChats returns the persisted pinned-chat list.
func (s *MessagingService) PinnedChats() ([]string, error) {
	var pinned []string
	if _, err := s.KV.Get(repository.KeyPinnedChats, &pinned); err != nil {
		return nil, err
	}
	return pinned, nil
}

// SavePinnedChats replaces the pinned-chat list.
func (s *MessagingService) SavePinnedChats(phones []string) error {
	normalized := make([]string, 0, len(phones))
	for _, p := range phones {
		if n := model.NormalizePhone(p); n != "" {
			normalized = append(normalized, n)
		}
	}
	return s.KV.Set(repository.KeyPinnedChats, normalized)
}

func (s *MessagingService) contactFor(phone string) model.Contact {
	contact, err := s.ContactRepo.GetByPhone(phone)
	if err != nil || contact == nil {
		return model.Contact{Phone: phone}
	}
	return *contact
}
