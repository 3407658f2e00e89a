package models

import "time"

// FetchStatus classifies the outcome of retrieving one document.
type FetchStatus string

const (
	FetchOK           FetchStatus = "ok"
	FetchHTTPError    FetchStatus = "http-error"
	FetchTimeout      FetchStatus = "timeout"
	FetchNetworkError FetchStatus = "network-error"
)

// RawDocument is one fetched page. It only lives for the duration of a run.
type RawDocument struct {
	SourceURL   string
	LocaleHint  string
	RetrievedAt time.Time
	Content     string
	Status      FetchStatus
	StatusCode  int
	Error       string
	// Blocked marks a 2xx response that is an anti-bot or captcha shell.
	Blocked bool
}

// OK reports whether the document can be handed to extraction.
func (d *RawDocument) OK() bool {
	return d.Status == FetchOK && !d.Blocked
}

// Retryable reports whether a failed fetch is worth another attempt.
func (d *RawDocument) Retryable() bool {
	switch d.Status {
	case FetchTimeout, FetchNetworkError:
		return true
	case FetchHTTPError:
		return d.StatusCode == 429 || d.StatusCode >= 500
	}
	return false
}

// FailureReason renders the status for run reports.
func (d *RawDocument) FailureReason() string {
	if d.Blocked {
		return "blocked: " + d.Error
	}
	if d.Error == "" {
		return string(d.Status)
	}
	return string(d.Status) + ": " + d.Error
}

// Category is the commercial/residential classification of a listing.
type Category string

const (
	CategoryCommercial  Category = "commercial"
	CategoryResidential Category = "residential"
)

// Location is a gazetteer match.
type Location struct {
	City         string `json:"city,omitempty"`
	Neighborhood string `json:"neighborhood,omitempty"`
}

// IsZero reports whether no city was matched.
func (l Location) IsZero() bool {
	return l.City == "" && l.Neighborhood == ""
}

// String joins city and neighborhood for display.
func (l Location) String() string {
	if l.Neighborhood == "" {
		return l.City
	}
	return l.City + " / " + l.Neighborhood
}

// ContactInfo holds the contact channels found in a listing.
type ContactInfo struct {
	Phone    string `json:"phone,omitempty"`
	Email    string `json:"email,omitempty"`
	WhatsApp string `json:"whatsapp,omitempty"`
}

// CandidateListing is the extraction result for one URL within one run.
// Nil pointers and empty strings are extraction gaps, never zero values.
type CandidateListing struct {
	URL          string      `json:"url"`
	Title        string      `json:"title,omitempty"`
	Price        *float64    `json:"price"`
	Size         *float64    `json:"size_sqm"`
	Rooms        *float64    `json:"rooms"`
	Location     Location    `json:"location"`
	PropertyType string      `json:"property_type,omitempty"`
	Category     Category    `json:"category,omitempty"`
	DealType     string      `json:"deal_type,omitempty"`
	Features     []string    `json:"features,omitempty"`
	Contact      ContactInfo `json:"contact"`
	Description  string      `json:"description,omitempty"`
	Source       string      `json:"source"`
	ExtractedAt  time.Time   `json:"extracted_at"`
}

// Merge overlays the non-null fields of next onto c. Nulls in next never
// clear values already present in c.
func (c *CandidateListing) Merge(next *CandidateListing) {
	if next.Title != "" {
		c.Title = next.Title
	}
	if next.Price != nil {
		c.Price = next.Price
	}
	if next.Size != nil {
		c.Size = next.Size
	}
	if next.Rooms != nil {
		c.Rooms = next.Rooms
	}
	switch {
	case next.Location.City == "":
	case next.Location.City == c.Location.City:
		// Same city: a missing neighborhood keeps the known one.
		if next.Location.Neighborhood != "" {
			c.Location.Neighborhood = next.Location.Neighborhood
		}
	default:
		c.Location = next.Location
	}
	if next.PropertyType != "" {
		c.PropertyType = next.PropertyType
	}
	if next.Category != "" {
		c.Category = next.Category
	}
	if next.DealType != "" {
		c.DealType = next.DealType
	}
	if len(next.Features) > 0 {
		c.Features = append([]string(nil), next.Features...)
	}
	if next.Contact.Phone != "" {
		c.Contact.Phone = next.Contact.Phone
	}
	if next.Contact.Email != "" {
		c.Contact.Email = next.Contact.Email
	}
	if next.Contact.WhatsApp != "" {
		c.Contact.WhatsApp = next.Contact.WhatsApp
	}
	if next.Description != "" {
		c.Description = next.Description
	}
	if next.Source != "" {
		c.Source = next.Source
	}
	if next.ExtractedAt.After(c.ExtractedAt) {
		c.ExtractedAt = next.ExtractedAt
	}
}

// PricePerSqm returns price / size, or nil when either is missing or size is zero.
func (c *CandidateListing) PricePerSqm() *float64 {
	if c.Price == nil || c.Size == nil || *c.Size == 0 {
		return nil
	}
	v := *c.Price / *c.Size
	return &v
}

// PersistedListing is the store's merged record for a canonical URL.
type PersistedListing struct {
	CandidateListing
	FirstSeen time.Time `json:"first_seen"`
	LastSeen  time.Time `json:"last_seen"`
	RunID     string    `json:"run_id"`
	Active    bool      `json:"active"`
}

// Clone returns a deep copy so stores never share mutable state with callers.
func (p *PersistedListing) Clone() *PersistedListing {
	c := *p
	c.Price = cloneFloat(p.Price)
	c.Size = cloneFloat(p.Size)
	c.Rooms = cloneFloat(p.Rooms)
	if p.Features != nil {
		c.Features = append([]string(nil), p.Features...)
	}
	return &c
}

func cloneFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	f := *v
	return &f
}

// AsMap flattens the listing for the notification boundary.
func (p *PersistedListing) AsMap() map[string]any {
	m := map[string]any{
		"url":           p.URL,
		"title":         p.Title,
		"price":         nil,
		"size":          nil,
		"rooms":         nil,
		"city":          p.Location.City,
		"neighborhood":  p.Location.Neighborhood,
		"location":      p.Location.String(),
		"property_type": p.PropertyType,
		"category":      string(p.Category),
		"deal_type":     p.DealType,
		"features":      p.Features,
		"phone":         p.Contact.Phone,
		"email":         p.Contact.Email,
		"whatsapp":      p.Contact.WhatsApp,
		"description":   p.Description,
		"source":        p.Source,
		"first_seen":    p.FirstSeen,
		"last_seen":     p.LastSeen,
	}
	if p.Price != nil {
		m["price"] = *p.Price
	}
	if p.Size != nil {
		m["size"] = *p.Size
	}
	if p.Rooms != nil {
		m["rooms"] = *p.Rooms
	}
	return m
}

// Float is a small helper for building nullable numeric fields.
func Float(v float64) *float64 {
	return &v
}
