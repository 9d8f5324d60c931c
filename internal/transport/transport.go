// Package transport owns the browser connection and the request/response
// channel between the coordinator and the page agent. The hosting tab may
// not exist or not be loaded yet, so every invoke retries on channel errors
// before giving up.
package transport

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"go.uber.org/zap"

	"github.com/unclebandit/chatleopard-backend/internal/agent"
)

// Request actions the agent understands.
const (
	ActionSendText     = "send_text"
	ActionSendMedia    = "send_media"
	ActionReadLast     = "read_last"
	ActionQuotedReply  = "quoted_reply"
	ActionOpenChat     = "open_chat"
	ActionStartWatcher = "start_watcher"
	ActionStopWatcher  = "stop_watcher"
)

// Request is one instruction for the page agent.
type Request struct {
	Action   string              `json:"action"`
	Message  string              `json:"message,omitempty"`
	Snippet  string              `json:"snippet,omitempty"` // quoted-reply anchor
	ChatID   string              `json:"chat_id,omitempty"`
	Media    []byte              `json:"media,omitempty"`
	MIME     string              `json:"mime,omitempty"`
	Filename string              `json:"filename,omitempty"`
	Caption  string              `json:"caption,omitempty"`
	Watcher  *agent.WatcherConfig `json:"watcher,omitempty"`
}

// Response is the agent's answer. Success=false with Error set means the
// agent ran but the operation failed; a nil *Response from Invoke means the
// page never answered at all.
type Response struct {
	Success    bool   `json:"success"`
	Error      string `json:"error,omitempty"`
	Text       string `json:"text,omitempty"`
	IsIncoming bool   `json:"is_incoming,omitempty"`
}

// Config for the browser connection.
type Config struct {
	TargetURL   string        // chat application origin to find-or-create
	DebuggerURL string        // attach to an existing browser when set
	Headless    bool
	WarmUp      time.Duration // settle time after opening a fresh tab
	LoadTimeout time.Duration
	RetryWait   time.Duration // pause between invoke attempts
	AgentConfig agent.Config
}

// DefaultConfig mirrors the intervals the coordinator ships with.
func DefaultConfig() Config {
	return Config{
		TargetURL:   "https://web.whatsapp.com",
		WarmUp:      12 * time.Second,
		LoadTimeout: 30 * time.Second,
		RetryWait:   2 * time.Second,
		AgentConfig: agent.DefaultConfig(),
	}
}

// Transport finds or creates the target tab and dispatches requests to the
// agent bound to it.
type Transport struct {
	cfg Config
	log *zap.SugaredLogger

	mu      sync.Mutex
	browser *rod.Browser
	page    *rod.Page
	agent   *agent.Agent
}

func New(cfg Config, log *zap.SugaredLogger) *Transport {
	if cfg.RetryWait <= 0 {
		cfg.RetryWait = DefaultConfig().RetryWait
	}
	if cfg.WarmUp <= 0 {
		cfg.WarmUp = DefaultConfig().WarmUp
	}
	if cfg.LoadTimeout <= 0 {
		cfg.LoadTimeout = DefaultConfig().LoadTimeout
	}
	if cfg.TargetURL == "" {
		cfg.TargetURL = DefaultConfig().TargetURL
	}
	return &Transport{cfg: cfg, log: log}
}

// Connect attaches to a running browser or launches one.
func (t *Transport) Connect(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.browser != nil {
		if _, err := t.browser.Version(); err == nil {
			return nil
		}
		t.log.Warn("stale browser connection, reconnecting")
		_ = t.browser.Close()
		t.browser = nil
		t.page = nil
		t.agent = nil
	}

	controlURL := t.cfg.DebuggerURL
	if controlURL == "" {
		url, err := launcher.New().Headless(t.cfg.Headless).Launch()
		if err != nil {
			return fmt.Errorf("launch browser: %w", err)
		}
		controlURL = url
	}

	browser := rod.New().ControlURL(controlURL).Context(ctx)
	if err := browser.Connect(); err != nil {
		return fmt.Errorf("connect to browser: %w", err)
	}
	t.browser = browser
	return nil
}

// ResolveTab reuses an existing tab already pointed at the target
// application, bringing it to the foreground unless stealth is requested;
// otherwise it opens a new one and waits the warm-up interval.
func (t *Transport) ResolveTab(ctx context.Context, stealth bool) (*rod.Page, error) {
	if err := t.Connect(ctx); err != nil {
		return nil, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.page != nil {
		if _, err := t.page.Info(); err == nil {
			return t.page, nil
		}
		t.page = nil
		t.agent = nil
	}

	pages, err := t.browser.Pages()
	if err != nil {
		return nil, fmt.Errorf("list tabs: %w", err)
	}
	for _, p := range pages {
		info, err := p.Info()
		if err != nil {
			continue
		}
		if strings.HasPrefix(info.URL, t.cfg.TargetURL) {
			if !stealth {
				if _, err := p.Activate(); err != nil {
					t.log.Debugw("could not foreground tab", "error", err)
				}
			}
			t.page = p
			return p, nil
		}
	}

	page, err := t.browser.Page(proto.TargetCreateTarget{URL: t.cfg.TargetURL})
	if err != nil {
		return nil, fmt.Errorf("open target tab: %w", err)
	}
	t.WaitForLoad(page, t.cfg.LoadTimeout)
	// "Loaded" does not mean the application finished its own boot; give a
	// fresh tab time to initialize before first use.
	time.Sleep(t.cfg.WarmUp)
	t.page = page
	return page, nil
}

// EnsureTab resolves the target tab without issuing a request. Used by the
// orchestrator to fail fast before starting a run.
func (t *Transport) EnsureTab(ctx context.Context, stealth bool) error {
	_, err := t.ResolveTab(ctx, stealth)
	return err
}

// WaitForLoad resolves immediately for an already-loaded tab, otherwise
// waits for load completion until the timeout and then gives up silently.
func (t *Transport) WaitForLoad(page *rod.Page, timeout time.Duration) {
	if err := page.Timeout(timeout).WaitLoad(); err != nil {
		t.log.Debugw("tab load wait gave up", "error", err)
	}
}

func (t *Transport) agentFor(page *rod.Page) *agent.Agent {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.agent == nil || t.page != page {
		t.page = page
		t.agent = agent.New(page, t.cfg.AgentConfig, t.log)
	}
	return t.agent
}

// Invoke forwards the request to the agent in the given tab. Channel errors
// (tab gone, browser unreachable) are retried up to maxAttempts with a fixed
// wait; nil is returned only after exhausting them. Callers must treat nil
// as "no response from target page" and surface a failed send, not a crash.
func (t *Transport) Invoke(ctx context.Context, stealth bool, req Request, maxAttempts int) *Response {
	if maxAttempts <= 0 {
		maxAttempts = 3
	}

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		page, err := t.ResolveTab(ctx, stealth)
		if err != nil {
			t.log.Warnw("tab unavailable", "attempt", attempt, "error", err)
			if attempt == maxAttempts {
				break
			}
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(t.cfg.RetryWait):
			}
			continue
		}

		resp := t.dispatch(t.agentFor(page), req)
		return resp
	}
	return nil
}

func (t *Transport) dispatch(a *agent.Agent, req Request) *Response {
	var err error
	resp := &Response{}

	switch req.Action {
	case ActionSendText:
		err = a.SendText(req.Message)
	case ActionSendMedia:
		err = a.SendMedia(req.Media, req.MIME, req.Filename, req.Caption)
	case ActionReadLast:
		var last *agent.LastMessage
		last, err = a.ReadLastMessage()
		if err == nil {
			resp.Text = last.Text
			resp.IsIncoming = last.IsIncoming
		}
	case ActionQuotedReply:
		err = a.TriggerQuotedReply(req.Snippet, req.Message)
	case ActionOpenChat:
		err = a.OpenChat(req.ChatID)
	case ActionStartWatcher:
		if req.Watcher == nil {
			err = fmt.Errorf("start_watcher requires a watcher config")
		} else {
			err = a.StartInboundWatcher(*req.Watcher)
		}
	case ActionStopWatcher:
		a.StopInboundWatcher()
	default:
		err = fmt.Errorf("unknown action %q", req.Action)
	}

	if err != nil {
		resp.Error = err.Error()
		return resp
	}
	resp.Success = true
	return resp
}

// Close shuts the browser connection down.
func (t *Transport) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.agent != nil {
		t.agent.StopInboundWatcher()
	}
	if t.browser != nil {
		_ = t.browser.Close()
	}
	t.browser = nil
	t.page = nil
	t.agent = nil
}
