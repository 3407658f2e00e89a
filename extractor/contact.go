package extractor

import (
	"regexp"
	"strings"

	"github.com/rotisserie/eris"

	"realestate-scraper/config"
	"realestate-scraper/models"
)

var emailRegexp = regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`)

type contactRules struct {
	phones   []*regexp.Regexp
	whatsapp *regexp.Regexp
}

func newContactRules(name string, loc *config.Locale) (*contactRules, error) {
	cr := &contactRules{}
	for _, p := range loc.PhonePatterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, eris.Wrapf(err, "extractor: locale %q phone pattern %q", name, p)
		}
		cr.phones = append(cr.phones, re)
	}
	if alt := alternation(loc.MessagingLabels); alt != "" {
		cr.whatsapp = regexp.MustCompile(`(?i)(?:` + alt + `)[:\s]*([0-9+][0-9+\-\s]{6,}[0-9])`)
	}
	return cr, nil
}

func (cr *contactRules) phone(texts ...string) string {
	for _, text := range texts {
		if text == "" {
			continue
		}
		for _, re := range cr.phones {
			if m := re.FindString(text); m != "" {
				return strings.TrimSpace(m)
			}
		}
	}
	return ""
}

func (cr *contactRules) messaging(texts ...string) string {
	if cr.whatsapp == nil {
		return ""
	}
	for _, text := range texts {
		if m := cr.whatsapp.FindStringSubmatch(text); m != nil {
			return strings.TrimSpace(m[1])
		}
	}
	return ""
}

func findEmail(texts ...string) string {
	for _, text := range texts {
		if m := emailRegexp.FindString(text); m != "" {
			return m
		}
	}
	return ""
}

// findContact prefers the schema fields, then tel:/mailto:/wa.me links,
// then free text.
func findContact(p *page, cr *contactRules) models.ContactInfo {
	links := p.contactLinks()
	c := models.ContactInfo{
		Phone:    cr.phone(p.field("phone"), links.phone, p.text),
		Email:    findEmail(p.field("email"), links.email, p.text),
		WhatsApp: links.whatsapp,
	}
	if c.WhatsApp == "" {
		c.WhatsApp = cr.messaging(p.field("whatsapp"), p.text)
	}
	return c
}
