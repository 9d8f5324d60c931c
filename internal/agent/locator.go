// Package agent drives the chat web application through its own DOM. Every
// lookup is an ordered list of candidate locator strategies; the first one
// that resolves wins, so incremental markup changes degrade gracefully
// instead of failing outright.
package agent

import (
	"time"

	"github.com/go-rod/rod"

	appErrors "github.com/unclebandit/chatleopard-backend/internal/errors"
)

// Strategy is one named way of locating a UI affordance.
type Strategy struct {
	Name     string
	Selector string
}

// Locator is an affordance plus its candidate strategies, tried in order.
type Locator struct {
	Affordance string
	Strategies []Strategy
}

// The bounded set of affordances the agent knows how to find. Alternate
// selectors cover the markup revisions we have seen; anything beyond these
// is out of scope.
var (
	LocChatHeader = Locator{
		Affordance: "chat header",
		Strategies: []Strategy{
			{"conversation-header", "header[data-testid='conversation-header']"},
			{"main-header", "#main header"},
			{"pane-header", "div[data-testid='conversation-panel-header']"},
		},
	}

	LocComposeBox = Locator{
		Affordance: "compose box",
		Strategies: []Strategy{
			{"compose-testid", "div[data-testid='conversation-compose-box-input']"},
			{"footer-editable", "#main footer div[contenteditable='true']"},
			{"editable-tab", "div[contenteditable='true'][data-tab='10']"},
			{"editable-tab-legacy", "div[contenteditable='true'][data-tab='1']"},
		},
	}

	LocSendButton = Locator{
		Affordance: "send button",
		Strategies: []Strategy{
			{"send-testid", "button[data-testid='compose-btn-send']"},
			{"send-icon", "span[data-icon='send']"},
			{"send-aria", "button[aria-label='Send']"},
		},
	}

	LocMessageBubbles = Locator{
		Affordance: "message bubbles",
		Strategies: []Strategy{
			{"message-rows", "#main div.message-in, #main div.message-out"},
			{"msg-container", "div[data-testid='msg-container']"},
		},
	}

	LocCaptionInput = Locator{
		Affordance: "caption input",
		Strategies: []Strategy{
			{"caption-testid", "div[data-testid='media-caption-input-container'] div[contenteditable='true']"},
			{"caption-tab", "div[contenteditable='true'][data-tab='6']"},
		},
	}

	LocMediaSendButton = Locator{
		Affordance: "media send button",
		Strategies: []Strategy{
			{"media-send-testid", "div[data-testid='media-send'] span[data-icon='send']"},
			{"send-icon", "span[data-icon='send']"},
		},
	}

	LocFileInput = Locator{
		Affordance: "file input",
		Strategies: []Strategy{
			{"attach-input", "input[type='file'][accept*='image']"},
			{"any-file-input", "input[type='file']"},
		},
	}

	LocConversationPanel = Locator{
		Affordance: "conversation panel",
		Strategies: []Strategy{
			{"conversation-panel", "div[data-testid='conversation-panel-messages']"},
			{"main-panel", "#main"},
		},
	}

	LocLoginScreen = Locator{
		Affordance: "login screen",
		Strategies: []Strategy{
			{"qr-canvas", "canvas[aria-label*='QR']"},
			{"qr-testid", "div[data-testid='qrcode']"},
			{"landing", "div.landing-wrapper"},
		},
	}

	LocStatusIcon = Locator{
		Affordance: "delivery status icon",
		Strategies: []Strategy{
			{"msg-check", "span[data-icon='msg-check']"},
			{"msg-dblcheck", "span[data-icon='msg-dblcheck']"},
			{"msg-time", "span[data-icon='msg-time']"},
		},
	}
)

// FindFunc is a single non-blocking selector probe. The rod-backed agent
// supplies one; tests supply fakes.
type FindFunc func(selector string) (*rod.Element, error)

// Resolve polls the locator's strategies in order until one matches or the
// timeout elapses. The shared resolution path for every agent operation.
func Resolve(loc Locator, find FindFunc, interval, timeout time.Duration) (*rod.Element, error) {
	deadline := time.Now().Add(timeout)
	for {
		for _, s := range loc.Strategies {
			el, err := find(s.Selector)
			if err == nil && el != nil {
				return el, nil
			}
		}
		if time.Now().After(deadline) {
			return nil, appErrors.NewElementNotFound(loc.Affordance)
		}
		time.Sleep(interval)
	}
}

// ResolveOnce probes each strategy a single time with no polling. Used for
// presence checks where absence is a valid answer (status icons, QR screen).
func ResolveOnce(loc Locator, find FindFunc) (*rod.Element, bool) {
	for _, s := range loc.Strategies {
		el, err := find(s.Selector)
		if err == nil && el != nil {
			return el, true
		}
	}
	return nil, false
}
