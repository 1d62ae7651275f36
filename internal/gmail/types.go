package gmail

import "strings"

// Header names requested when fetching message metadata.
const (
	HeaderFrom        = "From"
	HeaderSubject     = "Subject"
	HeaderDate        = "Date"
	HeaderUnsubscribe = "List-Unsubscribe"
)

type MessageID string

// ListPage is one page of a message search.
type ListPage struct {
	IDs           []MessageID
	NextPageToken string
}

// MessageMeta holds headers only; bodies are never fetched.
type MessageMeta struct {
	ID      MessageID
	Headers map[string]string // keyed by canonical header name (From, Subject, Date, List-Unsubscribe)
}

// Header returns the header value, matching the name case-insensitively.
func (m MessageMeta) Header(name string) string {
	if v, ok := m.Headers[name]; ok {
		return v
	}
	for k, v := range m.Headers {
		if strings.EqualFold(k, name) {
			return v
		}
	}
	return ""
}

type Query struct {
	Raw string // Gmail query string, already formed (e.g., `subject:(welcome OR verify) newer_than:24m`)
}

// MetadataHeaders lists the headers discovery needs from each message.
func MetadataHeaders() []string {
	return []string{HeaderFrom, HeaderSubject, HeaderDate, HeaderUnsubscribe}
}
