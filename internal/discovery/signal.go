// Package discovery turns mailbox header metadata into persisted service
// accounts.
package discovery

import (
	"net/mail"
	"strings"
	"time"

	"github.com/joshsymonds/footprint/internal/gmail"
)

// Signal is the per-message input to aggregation. It is never persisted.
type Signal struct {
	MessageID   string
	From        string
	Subject     string
	Date        string
	Unsubscribe string
}

// SignalFromMeta copies the discovery headers out of fetched metadata.
func SignalFromMeta(meta gmail.MessageMeta) Signal {
	return Signal{
		MessageID:   string(meta.ID),
		From:        meta.Header(gmail.HeaderFrom),
		Subject:     meta.Header(gmail.HeaderSubject),
		Date:        meta.Header(gmail.HeaderDate),
		Unsubscribe: meta.Header(gmail.HeaderUnsubscribe),
	}
}

var fallbackLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// ParseMailDate parses an RFC 5322 Date header. ISO forms are accepted so
// fixtures and exports can be replayed. Results are in UTC.
func ParseMailDate(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	if t, err := mail.ParseDate(raw); err == nil {
		return t.UTC(), true
	}
	for _, layout := range fallbackLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}
