// internal/service/send_service.go
package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/unclebandit/chatleopard-backend/internal/model"
	"github.com/unclebandit/chatleopard-backend/internal/repository"
	"github.com/unclebandit/chatleopard-backend/internal/transport"
)

// TransportInvoker is what the send path needs from the transport layer.
type TransportInvoker interface {
	Invoke(ctx context.Context, stealth bool, req transport.Request, maxAttempts int) *transport.Response
	EnsureTab(ctx context.Context, stealth bool) error
}

// SendOptions tunes one send through the shared path.
type SendOptions struct {
	Variant       string
	TrackLinks    bool
	AIPersonalize bool
	Stealth       bool
	MaxAttempts   int
	Media         []byte
	MIME          string
	Filename      string
}

// SendPath is the one gate every send goes through: bulk campaigns, drip
// steps, quick sends and meeting reminders all serialize here, because the
// target page hosts a single conversation context. The mutex prevents two
// callers from interleaving their UI interactions in the same tab.
type SendPath struct {
	Transport   TransportInvoker
	Compliance  *ComplianceService
	ContactRepo repository.ContactRepositoryInterface
	Assist      OptionalAssist
	Log         *zap.SugaredLogger

	mu sync.Mutex
}

// EnsureReady verifies a working tab can be acquired at all. Callers that
// cannot get one abort their whole run instead of failing contact by
// contact.
func (p *SendPath) EnsureReady(ctx context.Context, stealth bool) error {
	return p.Transport.EnsureTab(ctx, stealth)
}

// SendOne runs the full per-contact pipeline: DNC gate, personalization,
// open chat, send, record. It never returns an error — every outcome is a
// ledger entry with status sent, failed or skipped.
func (p *SendPath) SendOne(ctx context.Context, contact model.Contact, template string, opts SendOptions) model.SendResult {
	phone := model.NormalizePhone(contact.Phone)
	result := model.SendResult{
		Contact: contact.Name,
		Phone:   phone,
		Variant: opts.Variant,
	}

	blocked, err := p.Compliance.IsBlocked(phone)
	if err != nil {
		p.Log.Warnw("dnc lookup failed, treating as blocked", "phone", phone, "error", err)
		blocked = true
	}
	if blocked {
		// No page interaction for suppressed contacts.
		result.Status = model.SendStatusSkipped
		result.Error = "opted out"
		return result
	}

	message := BuildMessage(template, &contact, opts.TrackLinks, opts.AIPersonalize, p.Assist)
	result.Message = message

	p.mu.Lock()
	defer p.mu.Unlock()

	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 3
	}

	open := p.Transport.Invoke(ctx, opts.Stealth, transport.Request{
		Action: transport.ActionOpenChat,
		ChatID: phone,
	}, opts.MaxAttempts)
	if open == nil {
		result.Status = model.SendStatusFailed
		result.Error = "no response from target page"
		return result
	}
	if !open.Success {
		result.Status = model.SendStatusFailed
		result.Error = open.Error
		return result
	}

	req := transport.Request{Action: transport.ActionSendText, Message: message}
	if len(opts.Media) > 0 {
		req = transport.Request{
			Action:   transport.ActionSendMedia,
			Media:    opts.Media,
			MIME:     opts.MIME,
			Filename: opts.Filename,
			Caption:  message,
		}
	}

	resp := p.Transport.Invoke(ctx, opts.Stealth, req, opts.MaxAttempts)
	switch {
	case resp == nil:
		result.Status = model.SendStatusFailed
		result.Error = "no response from target page"
	case !resp.Success:
		result.Status = model.SendStatusFailed
		result.Error = resp.Error
	default:
		result.Status = model.SendStatusSent
		p.recordSuccess(phone, contact.Stage)
	}
	return result
}

// QuotedReply sends a reply quoting the message that contains the snippet.
// Same DNC gate and same mutex as every other send.
func (p *SendPath) QuotedReply(ctx context.Context, phone, snippet, reply string) model.SendResult {
	phone = model.NormalizePhone(phone)
	result := model.SendResult{Phone: phone, Message: reply}

	blocked, err := p.Compliance.IsBlocked(phone)
	if err != nil || blocked {
		result.Status = model.SendStatusSkipped
		result.Error = "opted out"
		return result
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	open := p.Transport.Invoke(ctx, true, transport.Request{
		Action: transport.ActionOpenChat,
		ChatID: phone,
	}, 3)
	if open == nil || !open.Success {
		result.Status = model.SendStatusFailed
		result.Error = invokeError(open)
		return result
	}

	resp := p.Transport.Invoke(ctx, true, transport.Request{
		Action:  transport.ActionQuotedReply,
		Snippet: snippet,
		Message: reply,
	}, 3)
	if resp == nil || !resp.Success {
		result.Status = model.SendStatusFailed
		result.Error = invokeError(resp)
		return result
	}
	result.Status = model.SendStatusSent
	return result
}

// ReadLast opens the chat and reads its newest bubble, serialized on the
// same mutex since it navigates the shared tab.
func (p *SendPath) ReadLast(ctx context.Context, phone string) (text string, incoming bool, err error) {
	phone = model.NormalizePhone(phone)

	p.mu.Lock()
	defer p.mu.Unlock()

	open := p.Transport.Invoke(ctx, true, transport.Request{
		Action: transport.ActionOpenChat,
		ChatID: phone,
	}, 3)
	if open == nil || !open.Success {
		return "", false, fmt.Errorf("open chat %s: %s", phone, invokeError(open))
	}
	resp := p.Transport.Invoke(ctx, true, transport.Request{Action: transport.ActionReadLast}, 3)
	if resp == nil || !resp.Success {
		return "", false, fmt.Errorf("read last message for %s: %s", phone, invokeError(resp))
	}
	return resp.Text, resp.IsIncoming, nil
}

func invokeError(resp *transport.Response) string {
	if resp == nil {
		return "no response from target page"
	}
	return resp.Error
}

func (p *SendPath) recordSuccess(phone, stage string) {
	now := time.Now()
	if err := p.ContactRepo.TouchLastContacted(phone, now); err != nil {
		p.Log.Warnw("could not record last contacted", "phone", phone, "error", err)
	}
	if stage == "" || stage == model.StageNew {
		if err := p.ContactRepo.UpdateStage(phone, model.StageContacted); err != nil {
			p.Log.Warnw("could not advance stage", "phone", phone, "error", err)
		}
	}
}
