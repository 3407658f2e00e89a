package extractor

import (
	"realestate-scraper/config"
	"realestate-scraper/models"
)

type keywordGroup struct {
	name     string
	keywords []string
}

func newKeywordGroups(groups []config.KeywordGroup) []keywordGroup {
	out := make([]keywordGroup, 0, len(groups))
	for _, g := range groups {
		out = append(out, keywordGroup{name: g.Name, keywords: lowerTerms(g.Keywords)})
	}
	return out
}

// firstGroup returns the name of the first group with any keyword in lowered.
func firstGroup(lowered string, groups []keywordGroup) string {
	for _, g := range groups {
		if countHits(lowered, g.keywords) > 0 {
			return g.name
		}
	}
	return ""
}

// allGroups returns every group with a hit, in configured order, or nil.
func allGroups(lowered string, groups []keywordGroup) []string {
	var out []string
	for _, g := range groups {
		if countHits(lowered, g.keywords) > 0 {
			out = append(out, g.name)
		}
	}
	return out
}

// classify applies the commercial rule: a commercial hit only counts when
// no residential keyword is present at all.
func classify(lowered string, commercial, residential []string) models.Category {
	if countHits(lowered, residential) > 0 {
		return models.CategoryResidential
	}
	if countHits(lowered, commercial) > 0 {
		return models.CategoryCommercial
	}
	return ""
}

// IsCommercial reports whether text passes the commercial classification.
func (e *Extractor) IsCommercial(text string) bool {
	return classify(lowered(text), e.commercial, e.residential) == models.CategoryCommercial
}
