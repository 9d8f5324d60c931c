// internal/service/personalize.go
package service

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/unclebandit/chatleopard-backend/internal/model"
)

var placeholderRe = regexp.MustCompile(`\{([a-zA-Z_][a-zA-Z0-9_]*)\}`)

// FillTemplate substitutes every {field} placeholder (case-insensitive) with
// the matching value. Unknown placeholders are left untouched.
func FillTemplate(template string, fields map[string]string) string {
	lower := make(map[string]string, len(fields))
	for k, v := range fields {
		lower[strings.ToLower(k)] = v
	}
	return placeholderRe.ReplaceAllStringFunc(template, func(m string) string {
		key := strings.ToLower(m[1 : len(m)-1])
		if v, ok := lower[key]; ok {
			return v
		}
		return m
	})
}

// ContactFields exposes the substitutable fields of a contact.
func ContactFields(c *model.Contact) map[string]string {
	fields := map[string]string{
		"name":  c.Name,
		"phone": c.Phone,
		"notes": c.Notes,
		"stage": c.Stage,
	}
	if len(c.Name) > 0 {
		fields["firstname"] = strings.Fields(c.Name)[0]
		fields["first_name"] = fields["firstname"]
	}
	return fields
}

var urlRe = regexp.MustCompile(`https?://[^\s<>"')]+`)

// AddLinkTracking appends a wa_ref query parameter keyed by the recipient's
// phone to every absolute URL in the message, preserving existing query
// parameters.
func AddLinkTracking(message, phone string) string {
	return urlRe.ReplaceAllStringFunc(message, func(raw string) string {
		u, err := url.Parse(raw)
		if err != nil {
			return raw
		}
		q := u.Query()
		q.Set("wa_ref", phone)
		u.RawQuery = q.Encode()
		return u.String()
	})
}

// BuildMessage runs the full personalization pipeline for one contact:
// placeholder fill, optional link tracking, optional AI rewrite. The AI step
// fails open — a personalization failure never fails the send.
func BuildMessage(template string, c *model.Contact, trackLinks, aiRewrite bool, assist OptionalAssist) string {
	message := FillTemplate(template, ContactFields(c))
	if trackLinks {
		message = AddLinkTracking(message, c.Phone)
	}
	if aiRewrite && assist != nil {
		prompt := fmt.Sprintf(
			"Rewrite this outreach message so it reads naturally for %s, keeping the meaning and any links intact:\n\n%s",
			c.Name, message,
		)
		if rewritten, ok := assist.Generate(prompt, 20*time.Second); ok && strings.TrimSpace(rewritten) != "" {
			message = rewritten
		}
	}
	return message
}

// PickVariant applies the A/B policy: even positions get variant A, odd ones
// get variant B, and runs without a second template always use A.
func PickVariant(index int, abEnabled bool, templateB string) (string, bool) {
	if abEnabled && templateB != "" && index%2 == 1 {
		return model.VariantB, true
	}
	return model.VariantA, false
}
