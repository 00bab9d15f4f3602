package dispatch

import (
	"time"

	"github.com/federalgaz/campaignmail/internal/template"
)

// Status is the state of a whole dispatch
type Status string

const (
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed" // every recipient sent
	StatusPartial   Status = "partial"   // some recipients failed or were skipped
	StatusFailed    Status = "failed"    // nothing was sent
	StatusCanceled  Status = "canceled"
)

// ItemStatus is the outcome for one recipient
type ItemStatus string

const (
	ItemPending ItemStatus = "pending"
	ItemSent    ItemStatus = "sent"
	ItemFailed  ItemStatus = "failed"
	ItemSkipped ItemStatus = "skipped" // rate limited or canceled before sending
)

// Recipient is one addressee of a campaign
type Recipient struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

// Job describes a campaign send: which template, with what parameters,
// to whom
type Job struct {
	TemplateID string            `json:"templateId,omitempty"`
	Slug       string            `json:"templateSlug"`
	Request    template.Request  `json:"request"`
	From       string            `json:"from,omitempty"`
	ReplyTo    string            `json:"replyTo,omitempty"`
	Subject    string            `json:"subject,omitempty"`
	Headers    map[string]string `json:"headers,omitempty"`
	Recipients []Recipient       `json:"recipients"`

	// APIKey identifies the caller for per-key send quotas
	APIKey string `json:"-"`
}

// Item is the per-recipient result of a dispatch
type Item struct {
	Email      string     `json:"email"`
	Name       string     `json:"name,omitempty"`
	Status     ItemStatus `json:"status"`
	MessageID  string     `json:"message_id,omitempty"`
	ProviderID string     `json:"provider_id,omitempty"`
	Error      string     `json:"error,omitempty"`
	Attempts   int        `json:"attempts"`
	SentAt     *time.Time `json:"sent_at,omitempty"`
}

// Report records a dispatch and the outcome for each recipient
type Report struct {
	ID         string        `json:"id"`
	TemplateID string        `json:"template_id,omitempty"`
	Slug       template.Slug `json:"slug"`
	Subject    string        `json:"subject"`
	Provider   string        `json:"provider"`
	Status     Status        `json:"status"`
	Total      int           `json:"total"`
	Sent       int           `json:"sent"`
	Failed     int           `json:"failed"`
	Skipped    int           `json:"skipped"`
	Items      []Item        `json:"items,omitempty"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt *time.Time    `json:"finished_at,omitempty"`
}

// Finished reports whether the dispatch has stopped
func (r *Report) Finished() bool {
	return r.Status != StatusRunning
}

// tally recounts the item outcomes and derives the final status
func (r *Report) tally(canceled bool) {
	r.Sent, r.Failed, r.Skipped = 0, 0, 0
	for _, item := range r.Items {
		switch item.Status {
		case ItemSent:
			r.Sent++
		case ItemFailed:
			r.Failed++
		case ItemSkipped, ItemPending:
			r.Skipped++
		}
	}

	switch {
	case canceled && r.Sent == 0:
		r.Status = StatusCanceled
	case r.Sent == r.Total:
		r.Status = StatusCompleted
	case r.Sent == 0:
		r.Status = StatusFailed
	default:
		r.Status = StatusPartial
	}
}
