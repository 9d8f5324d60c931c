package agent

import (
	"encoding/base64"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/input"
	"github.com/go-rod/rod/lib/proto"
	"go.uber.org/zap"

	appErrors "github.com/unclebandit/chatleopard-backend/internal/errors"
)

// Config tunes the agent's polling behavior.
type Config struct {
	BaseURL      string        // chat application origin
	PollInterval time.Duration // selector probe interval
	FindTimeout  time.Duration // per-affordance resolution bound
}

// DefaultConfig returns the polling bounds we ship with.
func DefaultConfig() Config {
	return Config{
		BaseURL:      "https://web.whatsapp.com",
		PollInterval: 250 * time.Millisecond,
		FindTimeout:  8 * time.Second,
	}
}

// LastMessage is what ReadLastMessage reports.
type LastMessage struct {
	Text       string `json:"text"`
	IsIncoming bool   `json:"is_incoming"`
}

// Agent executes the capability set against one page. Operations are safe to
// re-invoke; none of them assumes a previous call succeeded.
type Agent struct {
	page *rod.Page
	cfg  Config
	log  *zap.SugaredLogger

	mu      sync.Mutex
	watcher *Watcher
}

func New(page *rod.Page, cfg Config, log *zap.SugaredLogger) *Agent {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultConfig().PollInterval
	}
	if cfg.FindTimeout <= 0 {
		cfg.FindTimeout = DefaultConfig().FindTimeout
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultConfig().BaseURL
	}
	return &Agent{page: page, cfg: cfg, log: log}
}

// find probes the page once per call, no built-in retry. Resolve owns the
// polling loop.
func (a *Agent) find(selector string) (*rod.Element, error) {
	return a.page.Sleeper(rod.NotFoundSleeper).Element(selector)
}

// findIn scopes a probe to one element's subtree.
func findIn(el *rod.Element) FindFunc {
	return func(selector string) (*rod.Element, error) {
		return el.Sleeper(rod.NotFoundSleeper).Element(selector)
	}
}

func (a *Agent) resolve(loc Locator) (*rod.Element, error) {
	return Resolve(loc, a.find, a.cfg.PollInterval, a.cfg.FindTimeout)
}

// ready confirms the chat surface is usable. A visible QR/login screen wins
// over everything else.
func (a *Agent) ready() error {
	if _, loggedOut := ResolveOnce(LocLoginScreen, a.find); loggedOut {
		return appErrors.NewNotAuthenticated()
	}
	if _, err := a.resolve(LocChatHeader); err != nil {
		return err
	}
	return nil
}

// SendText types the message into the compose box and clicks the send
// affordance. Embedded newlines become the Shift+Enter gesture; a bare Enter
// would submit prematurely. Success means the affordance was clicked; the UI
// offers no stronger delivery confirmation.
func (a *Agent) SendText(message string) error {
	if err := a.ready(); err != nil {
		return err
	}

	compose, err := a.resolve(LocComposeBox)
	if err != nil {
		return err
	}
	if err := compose.Focus(); err != nil {
		return fmt.Errorf("focus compose box: %w", err)
	}
	if err := a.insertWithLineBreaks(message); err != nil {
		return err
	}

	// The send button only appears once the UI registers non-empty input.
	send, err := a.resolve(LocSendButton)
	if err != nil {
		return err
	}
	if err := send.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return fmt.Errorf("click send: %w", err)
	}
	a.log.Debugw("text sent", "chars", len(message))
	return nil
}

func (a *Agent) insertWithLineBreaks(text string) error {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		if i > 0 {
			if err := a.page.Keyboard.Press(input.ShiftLeft); err != nil {
				return err
			}
			if err := a.page.Keyboard.Type(input.Enter); err != nil {
				return err
			}
			if err := a.page.Keyboard.Release(input.ShiftLeft); err != nil {
				return err
			}
		}
		if line == "" {
			continue
		}
		if err := a.page.InsertText(line); err != nil {
			return fmt.Errorf("insert text: %w", err)
		}
	}
	return nil
}

// jsDropFile builds a File from base64 bytes and dispatches synthetic
// dragenter/dragover/drop events over the conversation surface, which is how
// the application natively receives attachments.
const jsDropFile = `(b64, mime, name, selector) => {
	const target = document.querySelector(selector);
	if (!target) return false;
	const bytes = Uint8Array.from(atob(b64), c => c.charCodeAt(0));
	const file = new File([bytes], name, { type: mime });
	const dt = new DataTransfer();
	dt.items.add(file);
	for (const type of ['dragenter', 'dragover', 'drop']) {
		const ev = new DragEvent(type, { bubbles: true, cancelable: true });
		Object.defineProperty(ev, 'dataTransfer', { value: dt });
		target.dispatchEvent(ev);
	}
	return true;
}`

// SendMedia attaches the bytes via synthetic drag-and-drop, falling back to
// the hidden file picker when the caption editor never shows up, then types
// the caption and clicks send.
func (a *Agent) SendMedia(data []byte, mime, filename, caption string) error {
	if err := a.ready(); err != nil {
		return err
	}

	if _, err := a.resolve(LocConversationPanel); err != nil {
		return err
	}

	b64 := base64.StdEncoding.EncodeToString(data)
	dropped := false
	for _, s := range LocConversationPanel.Strategies {
		res, err := a.page.Eval(jsDropFile, b64, mime, filename, s.Selector)
		if err == nil && res.Value.Bool() {
			dropped = true
			break
		}
	}

	var captionBox *rod.Element
	var err error
	if dropped {
		captionBox, err = a.resolve(LocCaptionInput)
	}
	if !dropped || err != nil {
		// Drag/drop never produced the caption editor; feed the hidden
		// file picker instead.
		if err := a.setPickerFiles(data, filename); err != nil {
			return err
		}
		captionBox, err = a.resolve(LocCaptionInput)
		if err != nil {
			return err
		}
	}

	if caption != "" {
		if err := captionBox.Focus(); err != nil {
			return fmt.Errorf("focus caption: %w", err)
		}
		if err := a.insertWithLineBreaks(caption); err != nil {
			return err
		}
	}

	send, err := a.resolve(LocMediaSendButton)
	if err != nil {
		return err
	}
	if err := send.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return fmt.Errorf("click media send: %w", err)
	}
	a.log.Debugw("media sent", "filename", filename, "bytes", len(data))
	return nil
}

func (a *Agent) setPickerFiles(data []byte, filename string) error {
	tmp := filepath.Join(os.TempDir(), filename)
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("stage media file: %w", err)
	}
	defer os.Remove(tmp)

	picker, err := a.resolve(LocFileInput)
	if err != nil {
		return err
	}
	return picker.SetFiles([]string{tmp})
}

// ReadLastMessage inspects the newest bubble in the open conversation.
// Outgoing messages carry a check/clock icon; its absence means incoming.
func (a *Agent) ReadLastMessage() (*LastMessage, error) {
	if err := a.ready(); err != nil {
		return nil, err
	}

	bubble, err := a.lastBubble()
	if err != nil {
		return nil, err
	}
	text, err := bubble.Text()
	if err != nil {
		return nil, fmt.Errorf("read bubble text: %w", err)
	}
	_, outgoing := ResolveOnce(LocStatusIcon, findIn(bubble))
	return &LastMessage{Text: strings.TrimSpace(text), IsIncoming: !outgoing}, nil
}

func (a *Agent) lastBubble() (*rod.Element, error) {
	deadline := time.Now().Add(a.cfg.FindTimeout)
	for {
		for _, s := range LocMessageBubbles.Strategies {
			els, err := a.page.Sleeper(rod.NotFoundSleeper).Elements(s.Selector)
			if err == nil && len(els) > 0 {
				return els[len(els)-1], nil
			}
		}
		if time.Now().After(deadline) {
			return nil, appErrors.NewElementNotFound(LocMessageBubbles.Affordance)
		}
		time.Sleep(a.cfg.PollInterval)
	}
}

// TriggerQuotedReply double-clicks the bubble containing the snippet, which
// opens the quote composer, then sends the reply through the normal path.
func (a *Agent) TriggerQuotedReply(originalSnippet, reply string) error {
	if err := a.ready(); err != nil {
		return err
	}

	var target *rod.Element
	for _, s := range LocMessageBubbles.Strategies {
		els, err := a.page.Sleeper(rod.NotFoundSleeper).Elements(s.Selector)
		if err != nil {
			continue
		}
		for i := len(els) - 1; i >= 0; i-- {
			text, err := els[i].Text()
			if err != nil {
				continue
			}
			if strings.Contains(text, originalSnippet) {
				target = els[i]
				break
			}
		}
		if target != nil {
			break
		}
	}
	if target == nil {
		return appErrors.NewElementNotFound("message containing reply snippet")
	}

	if err := target.Click(proto.InputMouseButtonLeft, 2); err != nil {
		return fmt.Errorf("quote message: %w", err)
	}
	return a.SendText(reply)
}

// OpenChat navigates to the application's chat deep link for the identifier
// and waits for the compose surface.
func (a *Agent) OpenChat(identifier string) error {
	target := fmt.Sprintf("%s/send?phone=%s", a.cfg.BaseURL, url.QueryEscape(identifier))
	if err := a.page.Navigate(target); err != nil {
		return fmt.Errorf("navigate to chat: %w", err)
	}
	// Navigation restarts the whole SPA; give it the full bound twice.
	deadline := 2 * a.cfg.FindTimeout
	_, err := Resolve(LocComposeBox, a.find, a.cfg.PollInterval, deadline)
	if err != nil {
		if _, loggedOut := ResolveOnce(LocLoginScreen, a.find); loggedOut {
			return appErrors.NewNotAuthenticated()
		}
		return err
	}
	return nil
}
