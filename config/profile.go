package config

import (
	_ "embed"
	"net/url"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

//go:embed default_profile.yaml
var defaultProfileYAML []byte

// Profile is the data-driven extraction configuration: locale rules,
// gazetteer, keyword groups and per-source selector schemas. It is loaded
// once per process and treated as read-only afterwards.
type Profile struct {
	DefaultLocale string             `yaml:"default_locale"`
	Locales       map[string]*Locale `yaml:"locales"`
	Gazetteer     []City             `yaml:"gazetteer"`
	Keywords      KeywordSets        `yaml:"keywords"`
	PropertyTypes []KeywordGroup     `yaml:"property_types"`
	Features      []KeywordGroup     `yaml:"features"`
	DealTypes     []KeywordGroup     `yaml:"deal_types"`
	Sources       []SourceSchema     `yaml:"sources"`
}

// Locale holds the pattern vocabulary for one language/market.
type Locale struct {
	CurrencySymbols []string       `yaml:"currency_symbols"`
	Magnitudes      []Magnitude    `yaml:"magnitudes"`
	SqmUnits        []string       `yaml:"sqm_units"`
	SqftUnits       []string       `yaml:"sqft_units"`
	RoomUnits       []string       `yaml:"room_units"`
	PhonePatterns   []string       `yaml:"phone_patterns"`
	MessagingLabels []string       `yaml:"messaging_labels"`
	NumberWords     map[string]int `yaml:"number_words"`
	// Prefixes are single-letter clitics that may be glued to a place name
	// (Hebrew "ב" = "in", "ל" = "to", ...).
	Prefixes []string `yaml:"prefixes"`
}

// Magnitude maps localized suffix words to a multiplier.
type Magnitude struct {
	Factor float64  `yaml:"factor"`
	Words  []string `yaml:"words"`
}

// City is one gazetteer entry. Neighborhoods only apply when this city matched.
type City struct {
	Name          string   `yaml:"name"`
	Variants      []string `yaml:"variants"`
	Neighborhoods []string `yaml:"neighborhoods"`
}

// KeywordSets are the two groups behind the commercial classification.
type KeywordSets struct {
	Commercial  []string `yaml:"commercial"`
	Residential []string `yaml:"residential"`
}

// KeywordGroup is a named set of keywords; groups are tried in order.
type KeywordGroup struct {
	Name     string   `yaml:"name"`
	Keywords []string `yaml:"keywords"`
}

// SourceSchema is the opaque per-source locator mapping. Fields maps a
// logical field name (title, price, size, location, description, url,
// rooms, contact) to a CSS selector.
type SourceSchema struct {
	Name   string            `yaml:"name"`
	Hosts  []string          `yaml:"hosts"`
	Locale string            `yaml:"locale"`
	Render bool              `yaml:"render"`
	Fields map[string]string `yaml:"fields"`
}

// DefaultProfile parses the embedded profile.
func DefaultProfile() (*Profile, error) {
	return ParseProfile(defaultProfileYAML)
}

// LoadProfile reads a profile from path, or the embedded default when path is empty.
func LoadProfile(path string) (*Profile, error) {
	if path == "" {
		return DefaultProfile()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "profile: read %q", path)
	}
	return ParseProfile(data)
}

// ParseProfile decodes and validates a YAML profile.
func ParseProfile(data []byte) (*Profile, error) {
	p := &Profile{}
	if err := yaml.Unmarshal(data, p); err != nil {
		return nil, eris.Wrap(err, "profile: decode yaml")
	}
	if err := p.validate(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Profile) validate() error {
	if len(p.Locales) == 0 {
		return eris.New("profile: no locales configured")
	}
	if p.DefaultLocale == "" {
		return eris.New("profile: default_locale is required")
	}
	if _, ok := p.Locales[p.DefaultLocale]; !ok {
		return eris.Errorf("profile: default_locale %q is not defined", p.DefaultLocale)
	}
	for _, s := range p.Sources {
		if s.Name == "" {
			return eris.New("profile: source without name")
		}
		if s.Locale != "" {
			if _, ok := p.Locales[s.Locale]; !ok {
				return eris.Errorf("profile: source %q uses undefined locale %q", s.Name, s.Locale)
			}
		}
	}
	return nil
}

// Locale returns the named locale, falling back to the default.
func (p *Profile) Locale(name string) *Locale {
	if l, ok := p.Locales[name]; ok {
		return l
	}
	return p.Locales[p.DefaultLocale]
}

// SourceFor returns the schema whose host list matches rawURL, or nil.
// A host entry matches the URL host exactly or as a parent domain.
func (p *Profile) SourceFor(rawURL string) *SourceSchema {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil
	}
	host := strings.ToLower(u.Hostname())
	for i := range p.Sources {
		for _, h := range p.Sources[i].Hosts {
			h = strings.ToLower(h)
			if host == h || strings.HasSuffix(host, "."+h) {
				return &p.Sources[i]
			}
		}
	}
	return nil
}
