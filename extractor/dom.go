package extractor

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"realestate-scraper/config"
)

const maxDescription = 500

// nonContentSelectors are stripped before any text is read.
const nonContentSelectors = "script, style, noscript, template"

// descriptionBlocks are fallback containers for the listing body.
const descriptionBlocks = `[class*="desc"], [class*="detail"], [class*="info"], [class*="about"], ` +
	`[id*="desc"], [id*="detail"], [id*="info"], [id*="about"]`

// inline elements do not break words when their text is concatenated.
var inline = map[string]bool{
	"a": true, "abbr": true, "b": true, "bdi": true, "bdo": true, "em": true, "i": true,
	"label": true, "small": true, "span": true, "strong": true, "sub": true, "sup": true, "u": true,
}

// page is a parsed document plus the schema that applies to it.
type page struct {
	doc    *goquery.Document
	schema *config.SourceSchema
	base   *url.URL
	raw    string
	text   string
}

func parsePage(sourceURL, content string, schema *config.SourceSchema) *page {
	p := &page{schema: schema}
	p.base, _ = url.Parse(sourceURL)

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content))
	if err != nil {
		p.raw = content
	} else {
		doc.Find(nonContentSelectors).Remove()
		p.doc = doc
		p.raw = visibleText(doc.Find("body"))
	}
	p.text = normalizeText(p.raw)
	return p
}

// visibleText concatenates text nodes, separating block-level elements so
// that adjacent cells never fuse into one word.
func visibleText(sel *goquery.Selection) string {
	var b strings.Builder
	var walk func(*goquery.Selection)
	walk = func(s *goquery.Selection) {
		s.Contents().Each(func(_ int, c *goquery.Selection) {
			name := goquery.NodeName(c)
			switch {
			case name == "#text":
				b.WriteString(c.Text())
			case name == "br":
				b.WriteByte('\n')
			case strings.HasPrefix(name, "#"):
			default:
				walk(c)
				if !inline[name] {
					b.WriteByte('\n')
				}
			}
		})
	}
	walk(sel)
	return b.String()
}

// field returns the normalized text under the schema selector for name.
func (p *page) field(name string) string {
	sel := p.selection(name)
	if sel == nil {
		return ""
	}
	return normalizeText(visibleText(sel))
}

func (p *page) selection(name string) *goquery.Selection {
	if p.doc == nil || p.schema == nil {
		return nil
	}
	locator := p.schema.Fields[name]
	if locator == "" {
		return nil
	}
	sel := p.doc.Find(locator).First()
	if sel.Length() == 0 {
		return nil
	}
	return sel
}

func (p *page) title() string {
	if t := p.field("title"); t != "" {
		return t
	}
	if p.doc != nil {
		if t := normalizeText(p.doc.Find("title").First().Text()); t != "" {
			return t
		}
		if t, ok := p.doc.Find(`meta[property='og:title']`).Attr("content"); ok && strings.TrimSpace(t) != "" {
			return normalizeText(t)
		}
	}
	for _, line := range strings.Split(p.raw, "\n") {
		if line = normalizeText(line); line != "" {
			return truncateRunes(line, 200)
		}
	}
	return ""
}

func (p *page) description() string {
	return truncateRunes(p.longDescription(), maxDescription)
}

func (p *page) longDescription() string {
	if d := p.field("description"); d != "" {
		return d
	}
	if p.doc != nil {
		for _, meta := range []string{`meta[name='description']`, `meta[property='og:description']`} {
			if d, ok := p.doc.Find(meta).Attr("content"); ok && strings.TrimSpace(d) != "" {
				return normalizeText(d)
			}
		}
		longest := ""
		p.doc.Find(descriptionBlocks).Each(func(_ int, s *goquery.Selection) {
			if t := normalizeText(visibleText(s)); len(t) > len(longest) {
				longest = t
			}
		})
		if longest != "" {
			return longest
		}
	}
	return p.text
}

// permalink resolves the schema "url" locator against the document URL.
func (p *page) permalink() string {
	sel := p.selection("url")
	if sel == nil || p.base == nil {
		return ""
	}
	href, ok := sel.Attr("href")
	if !ok || strings.TrimSpace(href) == "" {
		return ""
	}
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return ""
	}
	return p.base.ResolveReference(ref).String()
}

type links struct {
	phone    string
	email    string
	whatsapp string
}

func (p *page) contactLinks() links {
	var l links
	if p.doc == nil {
		return l
	}
	p.doc.Find("a[href]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		href := strings.TrimSpace(s.AttrOr("href", ""))
		lower := strings.ToLower(href)
		switch {
		case l.phone == "" && strings.HasPrefix(lower, "tel:"):
			l.phone = strings.TrimSpace(href[len("tel:"):])
		case l.email == "" && strings.HasPrefix(lower, "mailto:"):
			addr := href[len("mailto:"):]
			if i := strings.IndexByte(addr, '?'); i >= 0 {
				addr = addr[:i]
			}
			l.email = strings.TrimSpace(addr)
		case l.whatsapp == "" && strings.Contains(lower, "wa.me/"):
			num := href[strings.Index(lower, "wa.me/")+len("wa.me/"):]
			if i := strings.IndexAny(num, "?/"); i >= 0 {
				num = num[:i]
			}
			l.whatsapp = num
		}
		return l.phone == "" || l.email == "" || l.whatsapp == ""
	})
	return l
}
