package agent

import (
	"strings"
	"sync"
	"time"

	"github.com/unclebandit/chatleopard-backend/internal/model"
)

// WatcherConfig controls the inbound-reply watcher.
type WatcherConfig struct {
	Interval      time.Duration `json:"-"`
	AutoReply     bool          `json:"auto_reply"`               // off: observe and report only, never send
	Keywords      []string      `json:"keywords,omitempty"`       // only react when one matches (empty = all)
	ReplyTemplate string        `json:"reply_template,omitempty"` // fixed reply; empty means use Generate
	BusinessHours bool          `json:"business_hours"`
	BusinessStart int           `json:"business_start"`
	BusinessEnd   int           `json:"business_end"`
	OutsideMsg    string        `json:"outside_msg,omitempty"`

	// Generate produces a reply for the incoming text. Optional; returning
	// false falls back to ReplyTemplate (or no reply at all).
	Generate func(incoming string) (string, bool) `json:"-"`

	// Report receives every attempt for logging and compliance.
	Report func(report model.ReplyReport) `json:"-"`
}

// Watcher polls the open conversation for new incoming messages. One watcher
// per agent; starting a new one replaces the old.
type Watcher struct {
	agent *Agent
	cfg   WatcherConfig

	mu       sync.Mutex
	lastSeen string
	stop     chan struct{}
	done     chan struct{}
}

// StartInboundWatcher primes the last-seen marker with the conversation's
// current tail so historical messages are never replied to, then begins
// polling. Any previous watcher is stopped first.
func (a *Agent) StartInboundWatcher(cfg WatcherConfig) error {
	a.StopInboundWatcher()

	if cfg.Interval <= 0 {
		cfg.Interval = 2 * time.Second
	}

	w := &Watcher{
		agent: a,
		cfg:   cfg,
		stop:  make(chan struct{}),
		done:  make(chan struct{}),
	}
	if last, err := a.ReadLastMessage(); err == nil {
		w.lastSeen = last.Text
	}

	a.mu.Lock()
	a.watcher = w
	a.mu.Unlock()

	go w.run()
	a.log.Infow("inbound watcher started", "interval", cfg.Interval)
	return nil
}

// StopInboundWatcher stops the active watcher, if any.
func (a *Agent) StopInboundWatcher() {
	a.mu.Lock()
	w := a.watcher
	a.watcher = nil
	a.mu.Unlock()

	if w != nil {
		close(w.stop)
		<-w.done
		a.log.Infow("inbound watcher stopped")
	}
}

func (w *Watcher) run() {
	defer close(w.done)
	ticker := time.NewTicker(w.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stop:
			return
		case <-ticker.C:
			w.poll()
		}
	}
}

func (w *Watcher) poll() {
	last, err := w.agent.ReadLastMessage()
	if err != nil || !last.IsIncoming {
		return
	}

	w.mu.Lock()
	seen := w.lastSeen
	w.mu.Unlock()
	if last.Text == "" || last.Text == seen {
		return
	}
	w.mu.Lock()
	w.lastSeen = last.Text
	w.mu.Unlock()

	if !w.matchesKeywords(last.Text) {
		return
	}

	reply, ok := w.chooseReply(last.Text)
	success := false
	if ok {
		if err := w.agent.SendText(reply); err != nil {
			w.agent.log.Warnw("auto-reply failed", "error", err)
		} else {
			success = true
			// Our own reply is now the newest bubble; remember it so the
			// next poll does not treat the conversation as changed.
			w.mu.Lock()
			w.lastSeen = reply
			w.mu.Unlock()
		}
	}

	if w.cfg.Report != nil {
		w.cfg.Report(model.ReplyReport{
			Incoming: last.Text,
			Reply:    reply,
			Success:  success,
			SeenAt:   time.Now(),
		})
	}
}

func (w *Watcher) matchesKeywords(text string) bool {
	if len(w.cfg.Keywords) == 0 {
		return true
	}
	lower := strings.ToLower(text)
	for _, kw := range w.cfg.Keywords {
		if strings.Contains(lower, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}

func (w *Watcher) chooseReply(incoming string) (string, bool) {
	if !w.cfg.AutoReply {
		return "", false
	}
	if w.cfg.BusinessHours && !withinHours(time.Now(), w.cfg.BusinessStart, w.cfg.BusinessEnd) {
		if w.cfg.OutsideMsg != "" {
			return w.cfg.OutsideMsg, true
		}
		return "", false
	}
	if w.cfg.Generate != nil {
		if reply, ok := w.cfg.Generate(incoming); ok && reply != "" {
			return reply, true
		}
	}
	if w.cfg.ReplyTemplate != "" {
		return w.cfg.ReplyTemplate, true
	}
	return "", false
}

// withinHours treats start==end as always-open and supports windows that
// wrap past midnight.
func withinHours(now time.Time, start, end int) bool {
	if start == end {
		return true
	}
	h := now.Hour()
	if start < end {
		return h >= start && h < end
	}
	return h >= start || h < end
}
