// internal/service/campaign_service.go
package service

import (
	"context"
	"math/rand"
	"mime"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	appErrors "github.com/unclebandit/chatleopard-backend/internal/errors"
	"github.com/unclebandit/chatleopard-backend/internal/model"
	"github.com/unclebandit/chatleopard-backend/internal/queue"
	"github.com/unclebandit/chatleopard-backend/internal/repository"
)

// CampaignService is the orchestrator: it advances one contact at a time
// through personalize -> send -> record, applies the humanized delay, honors
// the cooperative stop signal and aggregates results. At most one run is
// active process-wide.
type CampaignService struct {
	Send      *SendPath
	Analytics *repository.AnalyticsStore
	KV        repository.KVRepositoryInterface
	Settings  *repository.SettingsStore
	Notifier  *Notifier
	Bus       queue.Queue
	Log       *zap.SugaredLogger

	state RunState
}

// Validate checks a campaign request without starting it.
func (s *CampaignService) Validate(req *model.CampaignRequest) error {
	if len(req.Contacts) == 0 {
		return appErrors.NewValidation("contacts", "contact list is empty")
	}
	if req.Template == "" {
		return appErrors.NewValidation("template", "template is empty")
	}
	if req.ABEnabled && req.TemplateB == "" {
		return appErrors.NewValidation("template_b", "A/B is enabled but the second template is empty")
	}
	if req.MinDelaySec < 0 || req.MaxDelaySec < req.MinDelaySec {
		return appErrors.NewValidation("delay", "delay range is invalid")
	}
	return nil
}

// StartCampaign validates the request, claims the single run slot and kicks
// off the run loop. The returned channel streams progress events and is
// closed when the run reaches a terminal state.
func (s *CampaignService) StartCampaign(ctx context.Context, req model.CampaignRequest) (<-chan model.ProgressEvent, error) {
	if err := s.Validate(&req); err != nil {
		return nil, err
	}
	s.applyDefaults(&req)

	runID := uuid.NewString()
	if err := s.state.Start(runID); err != nil {
		return nil, err
	}

	// Failing to acquire a working tab aborts the whole run up front.
	if err := s.Send.EnsureReady(ctx, req.Stealth); err != nil {
		s.state.Finish()
		return nil, err
	}

	// The run outlives the caller. An HTTP request context is canceled the
	// moment the handler returns, so the loop gets a detached context; only
	// the synchronous validation and tab acquisition above honor the
	// caller's cancellation.
	events := make(chan model.ProgressEvent, len(req.Contacts)*2+4)
	go s.run(context.WithoutCancel(ctx), runID, req, events)
	return events, nil
}

// StopCampaign requests a cooperative stop. It takes effect within one
// second plus the in-flight send, never mid-send.
func (s *CampaignService) StopCampaign() error {
	return s.state.RequestStop()
}

// Status reports whether a run is active and the last persisted cursor.
func (s *CampaignService) Status() (map[string]any, error) {
	runID, active := s.state.Active()
	var snap model.RunSnapshot
	found, err := s.KV.Get(repository.KeyRunSnapshot, &snap)
	if err != nil {
		return nil, err
	}
	out := map[string]any{"running": active, "run_id": runID}
	if found {
		out["snapshot"] = snap
	}
	return out, nil
}

func (s *CampaignService) applyDefaults(req *model.CampaignRequest) {
	if req.MinDelaySec == 0 && req.MaxDelaySec == 0 {
		settings, err := s.Settings.Get()
		if err != nil {
			settings = model.DefaultSettings()
		}
		req.MinDelaySec = settings.MinDelaySec
		req.MaxDelaySec = settings.MaxDelaySec
	}
	if req.MaxDelaySec < req.MinDelaySec {
		req.MaxDelaySec = req.MinDelaySec
	}
}

func (s *CampaignService) run(ctx context.Context, runID string, req model.CampaignRequest, events chan<- model.ProgressEvent) {
	defer close(events)
	defer s.state.Finish()

	total := len(req.Contacts)
	ledger := make([]model.SendResult, 0, total)
	stopped := false

	s.Log.Infow("campaign started", "run", runID, "contacts", total, "ab", req.ABEnabled)

	media, mediaMIME, mediaName := loadMedia(req.MediaPath, s.Log)

	for i, contact := range req.Contacts {
		if s.state.StopRequested() || ctx.Err() != nil {
			stopped = true
			break
		}

		s.emit(events, model.ProgressEvent{
			Kind: model.ProgressSending, Index: i, Total: total,
			Contact: contact.Name, Phone: contact.Phone,
		})

		variant, useB := PickVariant(i, req.ABEnabled, req.TemplateB)
		template := req.Template
		if useB {
			template = req.TemplateB
		}

		result := s.Send.SendOne(ctx, contact, template, SendOptions{
			Variant:       variant,
			TrackLinks:    req.TrackLinks,
			AIPersonalize: req.AIPersonalize,
			Stealth:       req.Stealth,
			Media:         media,
			MIME:          mediaMIME,
			Filename:      mediaName,
		})
		ledger = append(ledger, result)
		s.snapshot(runID, i+1, total)

		kind := model.ProgressResult
		errMsg := ""
		if result.Status == model.SendStatusFailed {
			kind = model.ProgressError
			errMsg = result.Error
		}
		s.emit(events, model.ProgressEvent{
			Kind: kind, Index: i, Total: total,
			Contact: contact.Name, Phone: result.Phone, Result: &result, Error: errMsg,
		})

		if i < total-1 {
			if !s.humanDelay(ctx, events, i, total, req.MinDelaySec, req.MaxDelaySec) {
				stopped = true
				break
			}
		}
	}

	summary := s.summarize(runID, req, ledger, stopped)
	s.finalize(summary)

	s.emit(events, model.ProgressEvent{
		Kind: model.ProgressDone, Index: len(ledger), Total: total,
	})
	s.Log.Infow("campaign finished", "run", runID,
		"sent", summary.Sent, "failed", summary.Failed, "skipped", summary.Skipped, "stopped", stopped)
}

// humanDelay sleeps a uniformly random number of seconds in [min,max],
// emitting a countdown event each second so the caller sees liveness and a
// stop request is noticed within a second. Returns false when stopped.
func (s *CampaignService) humanDelay(ctx context.Context, events chan<- model.ProgressEvent, index, total, minSec, maxSec int) bool {
	delay := minSec
	if maxSec > minSec {
		delay = minSec + rand.Intn(maxSec-minSec+1)
	}
	for remaining := delay; remaining > 0; remaining-- {
		if s.state.StopRequested() {
			return false
		}
		s.emit(events, model.ProgressEvent{
			Kind: model.ProgressCountdown, Index: index, Total: total, Seconds: remaining,
		})
		select {
		case <-ctx.Done():
			return false
		case <-time.After(time.Second):
		}
	}
	return !s.state.StopRequested()
}

func (s *CampaignService) summarize(runID string, req model.CampaignRequest, ledger []model.SendResult, stopped bool) model.CampaignSummary {
	summary := model.CampaignSummary{
		ID:        runID,
		Date:      time.Now(),
		Total:     len(req.Contacts),
		Stopped:   stopped,
		ABEnabled: req.ABEnabled,
		Ledger:    ledger,
	}
	for _, r := range ledger {
		switch r.Status {
		case model.SendStatusSent:
			summary.Sent++
			if r.Variant == model.VariantB {
				summary.SentB++
			} else {
				summary.SentA++
			}
		case model.SendStatusFailed:
			summary.Failed++
		case model.SendStatusSkipped:
			summary.Skipped++
		}
	}
	return summary
}

// finalize folds the run into analytics, clears the snapshot and fires the
// completion webhook. All best-effort; the run result stands regardless.
func (s *CampaignService) finalize(summary model.CampaignSummary) {
	analytics, err := s.Analytics.Get()
	if err != nil {
		s.Log.Warnw("could not load analytics", "error", err)
	}
	analytics.Fold(summary)
	if err := s.Analytics.Save(analytics); err != nil {
		s.Log.Warnw("could not save analytics", "error", err)
	}

	if err := s.KV.Delete(repository.KeyRunSnapshot); err != nil {
		s.Log.Debugw("could not clear run snapshot", "error", err)
	}

	if s.Notifier != nil {
		s.Notifier.Emit(model.EventCampaignCompleted, summary)
	}
}

func (s *CampaignService) snapshot(runID string, cursor, total int) {
	snap := model.RunSnapshot{RunID: runID, Cursor: cursor, Total: total, UpdatedAt: time.Now()}
	if err := s.KV.Set(repository.KeyRunSnapshot, snap); err != nil {
		s.Log.Debugw("could not persist run snapshot", "error", err)
	}
}

// loadMedia reads the optional attachment once per run. A missing or
// unreadable file downgrades the run to text-only rather than failing it.
func loadMedia(path string, log *zap.SugaredLogger) ([]byte, string, string) {
	if path == "" {
		return nil, "", ""
	}
	data, err := os.ReadFile(path)
	if err != nil {
		log.Warnw("could not read media file, sending text only", "path", path, "error", err)
		return nil, "", ""
	}
	name := filepath.Base(path)
	mimeType := mime.TypeByExtension(filepath.Ext(path))
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	return data, mimeType, name
}

func (s *CampaignService) emit(events chan<- model.ProgressEvent, ev model.ProgressEvent) {
	ev.Timestamp = time.Now()
	select {
	case events <- ev:
	default:
		// A stalled consumer must not block the run.
	}
	if s.Bus != nil {
		_ = s.Bus.Publish(queue.TopicProgress, ev)
	}
}
