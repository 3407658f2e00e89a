package extractor

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// boundary is a Unicode-aware word edge; Go's \b only knows ASCII words.
const boundary = `[^\p{L}\p{N}]`

// numeral matches an integer or decimal, with optional thousands separators.
// Two or more dot groups ("1.250.000") are read as thousands, not a decimal.
const numeral = `\d{1,3}(?:\.\d{3}){2,}|\d{1,3}(?:,\d{3})+(?:\.\d+)?|\d+(?:\.\d+)?`

var punctuation = strings.NewReplacer(
	"\u05f4", `"`, // gershayim
	"\u05f3", "'", // geresh
	"\u201c", `"`,
	"\u201d", `"`,
	"\u2019", "'",
	"\u200e", "",
	"\u200f", "",
)

// normalizeText folds compatibility forms (m² -> m2, full-width digits),
// maps Hebrew punctuation to ASCII quotes and collapses whitespace.
func normalizeText(s string) string {
	s = norm.NFKC.String(s)
	s = punctuation.Replace(s)
	return strings.Join(strings.Fields(s), " ")
}

// alternation returns a regexp alternation of the literal terms, longest
// first so that the leftmost-first engine prefers the most specific term.
func alternation(terms []string) string {
	seen := make(map[string]struct{}, len(terms))
	out := make([]string, 0, len(terms))
	for _, t := range terms {
		t = normalizeText(t)
		if t == "" {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return utf8.RuneCountInString(out[i]) > utf8.RuneCountInString(out[j])
	})
	for i := range out {
		out[i] = regexp.QuoteMeta(out[i])
	}
	return strings.Join(out, "|")
}

// termMatcher finds whole-word occurrences of any of a set of terms, allowing
// a single clitic prefix glued to the front (Hebrew "בתל אביב"). Terms of two
// runes or fewer never take a prefix: "פת" must not match inside "שפת".
type termMatcher struct {
	re *regexp.Regexp
}

func newTermMatcher(terms, prefixes []string) *termMatcher {
	var long, short []string
	for _, t := range terms {
		if utf8.RuneCountInString(normalizeText(t)) > 2 {
			long = append(long, t)
		} else {
			short = append(short, t)
		}
	}

	pre := ""
	if p := alternation(prefixes); p != "" {
		pre = "(?:" + p + ")?"
	}
	var branches []string
	if alt := alternation(long); alt != "" {
		branches = append(branches, pre+`(?:`+alt+`)`)
	}
	if alt := alternation(short); alt != "" {
		branches = append(branches, `(?:`+alt+`)`)
	}
	if len(branches) == 0 {
		return nil
	}
	return &termMatcher{
		re: regexp.MustCompile(`(?i)(?:^|` + boundary + `)(?:` + strings.Join(branches, "|") + `)(?:` + boundary + `|$)`),
	}
}

func (m *termMatcher) match(text string) bool {
	return m != nil && m.re.MatchString(text)
}

// lowerTerms normalizes and lower-cases keywords for substring matching.
func lowerTerms(terms []string) []string {
	out := make([]string, 0, len(terms))
	for _, t := range terms {
		if t = strings.ToLower(normalizeText(t)); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// countHits counts how many keywords occur as substrings of lowered text.
func countHits(lowered string, keywords []string) int {
	n := 0
	for _, k := range keywords {
		if strings.Contains(lowered, k) {
			n++
		}
	}
	return n
}

func parseNumber(s string) (float64, bool) {
	s = strings.ReplaceAll(s, ",", "")
	if strings.Count(s, ".") > 1 {
		s = strings.ReplaceAll(s, ".", "")
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// truncateRunes cuts s to at most n runes.
func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return strings.TrimSpace(string(r[:n]))
}
