package models

import (
	"time"
)

// ISOTimeLayout is the wire format of timestamps in API responses.
const ISOTimeLayout = "2006-01-02T15:04:05.000Z07:00"

// Paste represents a stored paste record
type Paste struct {
	ID         string     `json:"id" bson:"_id"`
	Content    string     `json:"content" bson:"content"`
	TTLSeconds *int       `json:"ttl_seconds" bson:"ttl_seconds,omitempty"`
	MaxViews   *int       `json:"max_views" bson:"max_views,omitempty"`
	ViewsCount int        `json:"views_count" bson:"views_count"`
	CreatedAt  time.Time  `json:"created_at" bson:"created_at"`
	ExpiresAt  *time.Time `json:"expires_at" bson:"expires_at,omitempty"`
}

// NewPaste builds a fresh record with views_count 0. expires_at is derived
// from createdAt and ttlSeconds when a TTL is given.
func NewPaste(id, content string, ttlSeconds, maxViews *int, createdAt time.Time) *Paste {
	p := &Paste{
		ID:         id,
		Content:    content,
		TTLSeconds: ttlSeconds,
		MaxViews:   maxViews,
		CreatedAt:  createdAt,
	}
	if ttlSeconds != nil {
		expiresAt := createdAt.Add(time.Duration(*ttlSeconds) * time.Second)
		p.ExpiresAt = &expiresAt
	}
	return p
}

// IsExpired reports whether now is past the paste's deadline
func (p *Paste) IsExpired(now time.Time) bool {
	if p.ExpiresAt == nil {
		return false
	}
	return now.After(*p.ExpiresAt)
}

// IsViewLimitExceeded reports whether every allowed view has been used
func (p *Paste) IsViewLimitExceeded() bool {
	if p.MaxViews == nil {
		return false
	}
	return p.ViewsCount >= *p.MaxViews
}

// IsAvailable reports whether the paste may still be served at now.
func (p *Paste) IsAvailable(now time.Time) bool {
	return !p.IsExpired(now) && !p.IsViewLimitExceeded()
}

// RemainingViews returns nil for unlimited pastes.
func (p *Paste) RemainingViews() *int {
	if p.MaxViews == nil {
		return nil
	}
	remaining := *p.MaxViews - p.ViewsCount
	if remaining < 0 {
		remaining = 0
	}
	return &remaining
}

// ExpiresAtISO formats expires_at for API responses, nil when unset.
func (p *Paste) ExpiresAtISO() *string {
	if p.ExpiresAt == nil {
		return nil
	}
	s := p.ExpiresAt.UTC().Format(ISOTimeLayout)
	return &s
}

// Clone returns a copy that shares no mutable state with p.
func (p *Paste) Clone() *Paste {
	c := *p
	if p.TTLSeconds != nil {
		v := *p.TTLSeconds
		c.TTLSeconds = &v
	}
	if p.MaxViews != nil {
		v := *p.MaxViews
		c.MaxViews = &v
	}
	if p.ExpiresAt != nil {
		v := *p.ExpiresAt
		c.ExpiresAt = &v
	}
	return &c
}

// PasteView is the content-bearing retrieval result
type PasteView struct {
	Content        string  `json:"content"`
	RemainingViews *int    `json:"remaining_views"`
	ExpiresAt      *string `json:"expires_at"`
}

// NewPasteView shapes a freshly viewed paste for the API.
func NewPasteView(p *Paste) PasteView {
	return PasteView{
		Content:        p.Content,
		RemainingViews: p.RemainingViews(),
		ExpiresAt:      p.ExpiresAtISO(),
	}
}
