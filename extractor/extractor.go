// Package extractor turns fetched documents into candidate listings using
// the data-driven rules of a config.Profile. Extraction performs no I/O and
// shares no mutable state, so one Extractor may serve many goroutines.
package extractor

import (
	"strings"
	"time"

	"realestate-scraper/config"
	"realestate-scraper/models"
)

// Extractor holds the compiled form of a profile.
type Extractor struct {
	profile *config.Profile
	locales map[string]*localeRules

	commercial    []string
	residential   []string
	propertyTypes []keywordGroup
	features      []keywordGroup
	dealTypes     []keywordGroup

	now func() time.Time
}

type localeRules struct {
	price   *priceRules
	size    *sizeRules
	rooms   *roomRules
	cities  []cityMatcher
	contact *contactRules
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithClock sets the clock used for ExtractedAt.
func WithClock(now func() time.Time) Option {
	return func(e *Extractor) { e.now = now }
}

// New compiles profile. It fails only on invalid user-supplied patterns.
func New(profile *config.Profile, opts ...Option) (*Extractor, error) {
	e := &Extractor{
		profile:       profile,
		locales:       make(map[string]*localeRules, len(profile.Locales)),
		commercial:    lowerTerms(profile.Keywords.Commercial),
		residential:   lowerTerms(profile.Keywords.Residential),
		propertyTypes: newKeywordGroups(profile.PropertyTypes),
		features:      newKeywordGroups(profile.Features),
		dealTypes:     newKeywordGroups(profile.DealTypes),
		now:           time.Now,
	}
	for name, loc := range profile.Locales {
		if loc == nil {
			loc = &config.Locale{}
		}
		contact, err := newContactRules(name, loc)
		if err != nil {
			return nil, err
		}
		e.locales[name] = &localeRules{
			price:   newPriceRules(loc),
			size:    newSizeRules(loc),
			rooms:   newRoomRules(loc),
			cities:  newCityMatchers(profile.Gazetteer, loc.Prefixes),
			contact: contact,
		}
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// rulesFor picks the document's locale hint, then the schema's, then the default.
func (e *Extractor) rulesFor(hint string, schema *config.SourceSchema) *localeRules {
	if r, ok := e.locales[hint]; ok {
		return r
	}
	if schema != nil {
		if r, ok := e.locales[schema.Locale]; ok {
			return r
		}
	}
	return e.locales[e.profile.DefaultLocale]
}

// Extract builds a candidate from one document. Every field is derived
// independently; a field that cannot be found stays nil or empty.
func (e *Extractor) Extract(doc *models.RawDocument) *models.CandidateListing {
	schema := e.profile.SourceFor(doc.SourceURL)
	rules := e.rulesFor(doc.LocaleHint, schema)
	p := parsePage(doc.SourceURL, doc.Content, schema)

	c := &models.CandidateListing{
		Title:       p.title(),
		Description: p.description(),
		ExtractedAt: e.now(),
	}

	c.URL = CanonicalURL(p.permalink())
	if c.URL == "" {
		c.URL = CanonicalURL(doc.SourceURL)
	}
	c.Source = sourceID(schema, c.URL)

	corpus := strings.ToLower(c.Title + " " + c.Description + " " + p.text)

	c.Price = rules.price.find(p.field("price"), c.Title, p.text)
	c.Size = rules.size.find(p.field("size"), c.Title, p.text)
	c.Rooms = rules.rooms.find(p.field("rooms"), c.Title, p.text)
	c.Location = findLocation(rules.cities, p.field("location"), c.Title, p.text)

	c.PropertyType = e.propertyType(p.field("property_type"), corpus)
	c.Category = classify(corpus, e.commercial, e.residential)
	c.DealType = firstGroup(corpus, e.dealTypes)
	c.Features = allGroups(corpus, e.features)
	c.Contact = findContact(p, rules.contact)
	return c
}

// propertyType maps the schema field onto a group when it can, keeps it as a
// free-text tag when it cannot, and otherwise classifies the whole text.
func (e *Extractor) propertyType(field, corpus string) string {
	if field != "" {
		if g := firstGroup(strings.ToLower(field), e.propertyTypes); g != "" {
			return g
		}
		return field
	}
	return firstGroup(corpus, e.propertyTypes)
}

func lowered(text string) string {
	return strings.ToLower(normalizeText(text))
}
