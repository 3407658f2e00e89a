package extractor

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"realestate-scraper/config"
)

// sqftToSqm converts square feet to square meters.
const sqftToSqm = 0.092903

// priceRules are tried in order; the first rule that matches decides the
// value, and within a rule the leftmost match wins.
type priceRules struct {
	rules   []*regexp.Regexp
	factors map[string]float64
}

func newPriceRules(loc *config.Locale) *priceRules {
	pr := &priceRules{factors: make(map[string]float64)}
	var words []string
	for _, m := range loc.Magnitudes {
		for _, w := range m.Words {
			w = normalizeText(w)
			pr.factors[w] = m.Factor
			pr.factors[strings.ToLower(w)] = m.Factor
			words = append(words, w)
		}
	}
	sym := alternation(loc.CurrencySymbols)
	mag := magnitudeAlternation(words)
	num := `(?P<num>` + numeral + `)`
	end := `(?:` + boundary + `|$)`

	if sym != "" {
		before := `(?i:` + sym + `)\s*` + num
		after := num
		if mag != "" {
			before += `(?:\s*(?P<mag>` + mag + `)` + end + `)?`
			after += `(?:\s*(?P<mag>` + mag + `))?`
		}
		after += `\s*(?i:` + sym + `)` + end
		pr.rules = append(pr.rules, regexp.MustCompile(before), regexp.MustCompile(after))
	}
	if mag != "" {
		pr.rules = append(pr.rules, regexp.MustCompile(num+`\s*(?P<mag>`+mag+`)`+end))
	}
	return pr
}

// magnitudeAlternation folds case for whole words but keeps single letters
// exact, so "M" (million) never matches the "m" of a distance.
func magnitudeAlternation(words []string) string {
	var long, short []string
	for _, w := range words {
		if utf8.RuneCountInString(w) > 1 {
			long = append(long, w)
		} else {
			short = append(short, w)
		}
	}
	var parts []string
	if alt := alternation(long); alt != "" {
		parts = append(parts, `(?i:`+alt+`)`)
	}
	if alt := alternation(short); alt != "" {
		parts = append(parts, alt)
	}
	return strings.Join(parts, "|")
}

func (pr *priceRules) factor(word string) float64 {
	if f, ok := pr.factors[word]; ok {
		return f
	}
	if f, ok := pr.factors[strings.ToLower(word)]; ok {
		return f
	}
	return 1
}

// find returns the price from the first text that yields one.
func (pr *priceRules) find(texts ...string) *float64 {
	for _, text := range texts {
		if text == "" {
			continue
		}
		for _, re := range pr.rules {
			m := re.FindStringSubmatch(text)
			if m == nil {
				continue
			}
			v, ok := parseNumber(m[re.SubexpIndex("num")])
			if !ok {
				return nil
			}
			if i := re.SubexpIndex("mag"); i >= 0 && m[i] != "" {
				v *= pr.factor(m[i])
			}
			return &v
		}
	}
	return nil
}

// sizeRules match a numeral immediately followed by an area unit.
type sizeRules struct {
	re   *regexp.Regexp
	sqft map[string]struct{}
}

func newSizeRules(loc *config.Locale) *sizeRules {
	units := append(append([]string(nil), loc.SqmUnits...), loc.SqftUnits...)
	alt := alternation(units)
	if alt == "" {
		return &sizeRules{}
	}
	sr := &sizeRules{
		re:   regexp.MustCompile(`(?i)(?P<num>` + numeral + `)\s*(?P<unit>` + alt + `)(?:` + boundary + `|$)`),
		sqft: make(map[string]struct{}, len(loc.SqftUnits)),
	}
	for _, u := range loc.SqftUnits {
		sr.sqft[strings.ToLower(normalizeText(u))] = struct{}{}
	}
	return sr
}

// find returns the size in square meters, converting square feet.
func (sr *sizeRules) find(texts ...string) *float64 {
	if sr.re == nil {
		return nil
	}
	for _, text := range texts {
		m := sr.re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		v, ok := parseNumber(m[sr.re.SubexpIndex("num")])
		if !ok {
			return nil
		}
		if _, ok := sr.sqft[strings.ToLower(m[sr.re.SubexpIndex("unit")])]; ok {
			v = math.Round(v*sqftToSqm*100) / 100
		}
		return &v
	}
	return nil
}

// roomRules match a room count, after spelling out localized number words.
type roomRules struct {
	re    *regexp.Regexp
	words *regexp.Regexp
	value map[string]int
}

func newRoomRules(loc *config.Locale) *roomRules {
	alt := alternation(loc.RoomUnits)
	if alt == "" {
		return &roomRules{}
	}
	rr := &roomRules{
		re:    regexp.MustCompile(`(?i)(?P<num>\d+(?:\.\d+)?)\s*(?:` + alt + `)(?:` + boundary + `|$)`),
		value: make(map[string]int, len(loc.NumberWords)),
	}
	words := make([]string, 0, len(loc.NumberWords))
	for w, n := range loc.NumberWords {
		w = strings.ToLower(normalizeText(w))
		rr.value[w] = n
		words = append(words, w)
	}
	if wa := alternation(words); wa != "" {
		rr.words = regexp.MustCompile(`(?i)(^|` + boundary + `)(` + wa + `)(` + boundary + `|$)`)
	}
	return rr
}

// spellOut replaces number words with digits ("ארבע חדרים" -> "4 חדרים").
func (rr *roomRules) spellOut(text string) string {
	if rr.words == nil {
		return text
	}
	return rr.words.ReplaceAllStringFunc(text, func(m string) string {
		sub := rr.words.FindStringSubmatch(m)
		n, ok := rr.value[strings.ToLower(sub[2])]
		if !ok {
			return m
		}
		return sub[1] + strconv.Itoa(n) + sub[3]
	})
}

func (rr *roomRules) find(texts ...string) *float64 {
	if rr.re == nil {
		return nil
	}
	for _, text := range texts {
		m := rr.re.FindStringSubmatch(rr.spellOut(text))
		if m == nil {
			continue
		}
		v, ok := parseNumber(m[1])
		if !ok || v <= 0 {
			return nil
		}
		return &v
	}
	return nil
}
