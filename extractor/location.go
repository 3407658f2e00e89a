package extractor

import (
	"realestate-scraper/config"
	"realestate-scraper/models"
)

type placeMatcher struct {
	name    string
	matcher *termMatcher
}

type cityMatcher struct {
	placeMatcher
	neighborhoods []placeMatcher
}

func newCityMatchers(gazetteer []config.City, prefixes []string) []cityMatcher {
	out := make([]cityMatcher, 0, len(gazetteer))
	for _, c := range gazetteer {
		terms := append([]string{c.Name}, c.Variants...)
		cm := cityMatcher{placeMatcher: placeMatcher{name: c.Name, matcher: newTermMatcher(terms, prefixes)}}
		for _, n := range c.Neighborhoods {
			cm.neighborhoods = append(cm.neighborhoods, placeMatcher{name: n, matcher: newTermMatcher([]string{n}, prefixes)})
		}
		out = append(out, cm)
	}
	return out
}

// findLocation returns the first gazetteer city found in texts, in gazetteer
// order. Neighborhoods are only searched for the city that matched.
func findLocation(cities []cityMatcher, texts ...string) models.Location {
	for _, text := range texts {
		if text == "" {
			continue
		}
		for _, c := range cities {
			if !c.matcher.match(text) {
				continue
			}
			loc := models.Location{City: c.name}
			for _, t := range texts {
				for _, n := range c.neighborhoods {
					if n.matcher.match(t) {
						loc.Neighborhood = n.name
						return loc
					}
				}
			}
			return loc
		}
	}
	return models.Location{}
}
