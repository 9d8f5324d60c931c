// internal/service/drip_service.go
package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	appErrors "github.com/unclebandit/chatleopard-backend/internal/errors"
	"github.com/unclebandit/chatleopard-backend/internal/model"
	"github.com/unclebandit/chatleopard-backend/internal/repository"
)

// DripService owns multi-step sequences and per-contact enrollments. Each
// step fires through a durable wake and re-enters the shared send path for
// exactly one contact, then reschedules or completes.
type DripService struct {
	DripRepo    repository.DripRepositoryInterface
	ContactRepo repository.ContactRepositoryInterface
	Compliance  *ComplianceService
	Scheduler   *Scheduler
	Send        *SendPath
	Log         *zap.SugaredLogger
}

// SaveSequence validates and persists a sequence definition.
func (s *DripService) SaveSequence(seq *model.DripSequence) error {
	if seq.ID == "" {
		return appErrors.NewValidation("id", "sequence id is required")
	}
	if seq.Name == "" {
		return appErrors.NewValidation("name", "sequence name is required")
	}
	if len(seq.Steps) == 0 {
		return appErrors.NewValidation("steps", "a sequence needs at least one step")
	}
	for _, step := range seq.Steps {
		if step.Template == "" {
			return appErrors.NewValidation("steps", "every step needs a template")
		}
		if step.Delay < 0 {
			return appErrors.NewValidation("steps", "step delay cannot be negative")
		}
	}
	return s.DripRepo.SaveSequence(seq)
}

func (s *DripService) ListSequences() ([]model.DripSequence, error) {
	return s.DripRepo.ListSequences()
}

// DeleteSequence cancels every pending wake for the sequence first, then
// removes the sequence and all enrollments referencing it. Order matters:
// no orphaned timer may fire after the state is gone.
func (s *DripService) DeleteSequence(id string) error {
	if err := s.Scheduler.Wakes.CancelBySequence(id); err != nil {
		return err
	}
	return s.DripRepo.DeleteSequence(id)
}

// EnrollResult reports what Enroll did per contact.
type EnrollResult struct {
	Enrolled int `json:"enrolled"`
	Skipped  int `json:"skipped"` // already enrolled or DNC-listed
}

// Enroll adds contacts to a sequence. Contacts already enrolled in it and
// DNC-listed contacts are skipped. Step 0 is scheduled with its own delay —
// the first message is not sent immediately.
func (s *DripService) Enroll(phones []string, sequenceID string) (*EnrollResult, error) {
	seq, err := s.DripRepo.GetSequence(sequenceID)
	if err != nil {
		return nil, err
	}

	result := &EnrollResult{}
	firstDelay := seq.Steps[0].StepDelay()

	for _, raw := range phones {
		phone := model.NormalizePhone(raw)
		if phone == "" {
			result.Skipped++
			continue
		}

		blocked, err := s.Compliance.IsBlocked(phone)
		if err != nil {
			return nil, err
		}
		if blocked {
			result.Skipped++
			continue
		}

		fireAt := time.Now().Add(firstDelay)
		created, err := s.DripRepo.Enroll(&model.DripEnrollment{
			Phone:      phone,
			SequenceID: sequenceID,
			StepIndex:  0,
			NextFireAt: fireAt,
		})
		if err != nil {
			return nil, err
		}
		if !created {
			result.Skipped++
			continue
		}

		key := model.WakeKey{Kind: model.WakeDripStep, SequenceID: sequenceID, Phone: phone, Step: 0}
		if err := s.Scheduler.Register(key, fireAt, ""); err != nil {
			return nil, err
		}
		result.Enrolled++
	}

	s.Log.Infow("drip enrollment", "sequence", sequenceID, "enrolled", result.Enrolled, "skipped", result.Skipped)
	return result, nil
}

// Unenroll cancels the contact's pending wake before removing the
// enrollment.
func (s *DripService) Unenroll(phone, sequenceID string) error {
	phone = model.NormalizePhone(phone)
	enrollment, err := s.DripRepo.GetEnrollment(phone, sequenceID)
	if err != nil {
		return err
	}
	if enrollment == nil {
		return nil
	}
	key := model.WakeKey{Kind: model.WakeDripStep, SequenceID: sequenceID, Phone: phone, Step: enrollment.StepIndex}
	if err := s.Scheduler.Cancel(key); err != nil {
		return err
	}
	return s.DripRepo.DeleteEnrollment(phone, sequenceID)
}

// HandleWake executes one drip step for one contact, then schedules the
// next step or completes the enrollment. Bound to WakeDripStep by main.
func (s *DripService) HandleWake(ctx context.Context, wake model.ScheduledWake) {
	phone := wake.Key.Phone
	sequenceID := wake.Key.SequenceID

	seq, err := s.DripRepo.GetSequence(sequenceID)
	if err != nil {
		s.Log.Warnw("drip wake for missing sequence", "sequence", sequenceID, "error", err)
		return
	}
	enrollment, err := s.DripRepo.GetEnrollment(phone, sequenceID)
	if err != nil || enrollment == nil {
		s.Log.Warnw("drip wake for missing enrollment", "sequence", sequenceID, "phone", phone)
		return
	}

	step := enrollment.StepIndex
	if step >= len(seq.Steps) {
		// Definition shrank under a live enrollment; treat as complete.
		_ = s.DripRepo.DeleteEnrollment(phone, sequenceID)
		return
	}

	contact := s.contactFor(phone)
	result := s.Send.SendOne(ctx, contact, seq.Steps[step].Template, SendOptions{Stealth: true})
	s.Log.Infow("drip step executed", "sequence", sequenceID, "phone", phone, "step", step, "status", result.Status)

	next := step + 1
	if next >= len(seq.Steps) {
		if err := s.DripRepo.DeleteEnrollment(phone, sequenceID); err != nil {
			s.Log.Warnw("could not complete enrollment", "phone", phone, "error", err)
		}
		return
	}

	fireAt := time.Now().Add(seq.Steps[next].StepDelay())
	if err := s.DripRepo.AdvanceEnrollment(phone, sequenceID, next, fireAt); err != nil {
		s.Log.Warnw("could not advance enrollment", "phone", phone, "error", err)
		return
	}
	key := model.WakeKey{Kind: model.WakeDripStep, SequenceID: sequenceID, Phone: phone, Step: next}
	if err := s.Scheduler.Register(key, fireAt, ""); err != nil {
		s.Log.Warnw("could not schedule next drip step", "phone", phone, "step", next, "error", err)
	}
}

func (s *DripService) contactFor(phone string) model.Contact {
	contact, err := s.ContactRepo.GetByPhone(phone)
	if err != nil || contact == nil {
		return model.Contact{Phone: phone}
	}
	return *contact
}
