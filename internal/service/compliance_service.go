// internal/service/compliance_service.go
package service

import (
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/unclebandit/chatleopard-backend/internal/model"
	"github.com/unclebandit/chatleopard-backend/internal/repository"
)

// ComplianceService gates every send against the do-not-contact list and
// classifies inbound replies for opt-outs and stage changes.
type ComplianceService struct {
	DNCRepo     repository.DNCRepositoryInterface
	ContactRepo repository.ContactRepositoryInterface
	Settings    *repository.SettingsStore
	Assist      OptionalAssist
	Log         *zap.SugaredLogger
}

// IsBlocked reports whether the normalized phone is on the DNC list.
func (s *ComplianceService) IsBlocked(phone string) (bool, error) {
	return s.DNCRepo.Contains(model.NormalizePhone(phone))
}

// ScanReply processes one inbound reply. An opt-out phrase match adds the
// sender to the DNC list and marks the contact lost; that transition is
// one-way and idempotent, so scanning the same reply twice changes nothing
// further. Best-effort AI classification may additionally advance the CRM
// stage; classification failures are swallowed.
func (s *ComplianceService) ScanReply(phone, text string) error {
	phone = model.NormalizePhone(phone)

	if err := s.ContactRepo.AppendReply(phone, time.Now()); err != nil {
		s.Log.Warnw("could not record reply timestamp", "phone", phone, "error", err)
	}

	if s.isOptOut(text) {
		if err := s.DNCRepo.Add(phone); err != nil {
			return err
		}
		if err := s.ContactRepo.UpdateStage(phone, model.StageLost); err != nil {
			return err
		}
		if err := s.ContactRepo.AddTag(phone, "opted-out"); err != nil {
			s.Log.Warnw("could not tag opted-out contact", "phone", phone, "error", err)
		}
		s.Log.Infow("contact opted out", "phone", phone)
		return nil
	}

	s.classifyStage(phone, text)
	return nil
}

func (s *ComplianceService) isOptOut(text string) bool {
	settings, err := s.Settings.Get()
	if err != nil {
		settings = model.DefaultSettings()
	}
	lower := strings.ToLower(text)
	for _, phrase := range settings.OptOutPhrases {
		if strings.Contains(lower, strings.ToLower(phrase)) {
			return true
		}
	}
	return false
}

// classifyStage asks the assist layer which pipeline stage the reply
// suggests. Any failure leaves the stage unchanged.
func (s *ComplianceService) classifyStage(phone, text string) {
	if s.Assist == nil {
		return
	}
	categories := []string{model.StageInterested, model.StageConverted, model.StageContacted}
	stage, ok := s.Assist.Classify(text, categories, 10*time.Second)
	if !ok {
		return
	}
	if err := s.ContactRepo.UpdateStage(phone, stage); err != nil {
		s.Log.Warnw("could not advance stage", "phone", phone, "stage", stage, "error", err)
	}
}
