package services

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/sync/errgroup"

	"realestate-scraper/extractor"
	"realestate-scraper/metrics"
	"realestate-scraper/models"
	"realestate-scraper/utils"
)

// DocumentFetcher retrieves raw documents. scraper.Fetcher implements it.
type DocumentFetcher interface {
	FetchAll(ctx context.Context, urls []string, maxConcurrency int, timeout time.Duration) []models.RawDocument
}

// PipelineOptions tunes one Pipeline.
type PipelineOptions struct {
	MaxConcurrency int
	Timeout        time.Duration
	ExtractWorkers int
	// MaxRetries is how many extra fetch rounds retryable failures get.
	MaxRetries int
	RetryDelay time.Duration
	// Keywords, when set, keep only candidates whose title or description
	// contains at least one of them (case-insensitive).
	Keywords       []string
	CommercialOnly bool
}

// Pipeline turns URLs into candidate listings: fetch, extract, filter and
// merge by canonical URL.
type Pipeline struct {
	fetcher   DocumentFetcher
	extractor *extractor.Extractor
	opts      PipelineOptions
	keywords  []string
	metrics   *metrics.Metrics
}

// NewPipeline creates a Pipeline. m may be nil.
func NewPipeline(fetcher DocumentFetcher, ext *extractor.Extractor, opts PipelineOptions, m *metrics.Metrics) *Pipeline {
	if opts.ExtractWorkers < 1 {
		opts.ExtractWorkers = 1
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = time.Second
	}
	keywords := make([]string, 0, len(opts.Keywords))
	for _, k := range opts.Keywords {
		if k = strings.ToLower(strings.TrimSpace(k)); k != "" {
			keywords = append(keywords, k)
		}
	}
	return &Pipeline{fetcher: fetcher, extractor: ext, opts: opts, keywords: keywords, metrics: m}
}

// Run fetches urls and returns the run's candidates. Failures and filter
// decisions are recorded on run.Counters; the output order is not the input
// order.
func (p *Pipeline) Run(ctx context.Context, run *utils.Run, urls []string) []*models.CandidateListing {
	docs := p.fetch(ctx, run, urls)
	return p.Process(run, docs)
}

// fetch runs the fetcher, then re-fetches retryable failures with back-off.
// Every URL keeps its latest document.
func (p *Pipeline) fetch(ctx context.Context, run *utils.Run, urls []string) []models.RawDocument {
	var docs []models.RawDocument
	index := make(map[string]int)
	pending := urls

	retry := utils.RetryConfig{
		MaxAttempts: p.opts.MaxRetries + 1,
		BaseDelay:   p.opts.RetryDelay,
		Logger:      run.Logger,
	}
	err := retry.Do(ctx, "fetch", func(attempt int) error {
		batch := p.fetcher.FetchAll(ctx, pending, p.opts.MaxConcurrency, p.opts.Timeout)
		var again []string
		for _, d := range batch {
			if i, ok := index[d.SourceURL]; ok {
				docs[i] = d
			} else {
				index[d.SourceURL] = len(docs)
				docs = append(docs, d)
			}
			if d.Retryable() {
				again = append(again, d.SourceURL)
			}
		}
		pending = again
		if len(pending) > 0 {
			return eris.Errorf("%d retryable fetch failures", len(pending))
		}
		return nil
	})
	if err != nil {
		run.Logger.Warn("[pipeline] Giving up on %d URLs: %v", len(pending), err)
	}
	return docs
}

// Process extracts, filters and merges already fetched documents.
func (p *Pipeline) Process(run *utils.Run, docs []models.RawDocument) []*models.CandidateListing {
	extracted := make([]*models.CandidateListing, len(docs))

	var g errgroup.Group
	g.SetLimit(p.opts.ExtractWorkers)
	for i := range docs {
		doc := &docs[i]
		p.metrics.ObserveFetch(doc)
		if doc.Status == models.FetchOK {
			run.Counters.Fetched.Add(1)
		}
		if !doc.OK() {
			run.Counters.Fail(doc.SourceURL, doc.FailureReason())
			continue
		}
		g.Go(func() error {
			extracted[i] = p.extractor.Extract(doc)
			return nil
		})
	}
	_ = g.Wait()

	kept := make([]*models.CandidateListing, 0, len(extracted))
	for i, c := range extracted {
		if c == nil {
			continue
		}
		if c.URL == "" {
			run.Counters.Fail(docs[i].SourceURL, "extraction: no canonical URL")
			p.metrics.ObserveCandidates(metrics.OutcomeNoURL, 1)
			continue
		}
		run.Counters.ExtractionSucceeded.Add(1)
		p.metrics.ObserveCandidates(metrics.OutcomeExtracted, 1)

		if !p.matches(c) {
			run.Counters.FilteredOut.Add(1)
			p.metrics.ObserveCandidates(metrics.OutcomeFiltered, 1)
			continue
		}
		kept = append(kept, c)
	}

	merged := mergeByURL(kept)
	p.metrics.ObserveCandidates(metrics.OutcomeMerged, len(kept)-len(merged))

	run.Logger.Info("[pipeline] %d documents → %d candidates (%d filtered out, %d merged)",
		len(docs), len(merged), run.Counters.FilteredOut.Load(), len(kept)-len(merged))
	return merged
}

// matches applies the keyword and commercial-only filters.
func (p *Pipeline) matches(c *models.CandidateListing) bool {
	if p.opts.CommercialOnly && c.Category != models.CategoryCommercial {
		return false
	}
	return MatchesKeywords(c.Title+" "+c.Description, p.keywords)
}

// MatchesKeywords reports whether text contains any of the lower-case
// keywords. An empty keyword list matches everything.
func MatchesKeywords(text string, keywords []string) bool {
	if len(keywords) == 0 {
		return true
	}
	lowered := strings.ToLower(text)
	for _, k := range keywords {
		if strings.Contains(lowered, k) {
			return true
		}
	}
	return false
}

// mergeByURL folds candidates sharing a canonical URL into one. Later
// extractions win on non-null fields; nulls never clear earlier values.
func mergeByURL(candidates []*models.CandidateListing) []*models.CandidateListing {
	ordered := make([]*models.CandidateListing, len(candidates))
	copy(ordered, candidates)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].ExtractedAt.Before(ordered[j].ExtractedAt)
	})

	byURL := make(map[string]*models.CandidateListing, len(ordered))
	for _, c := range ordered {
		if prev, ok := byURL[c.URL]; ok {
			prev.Merge(c)
			continue
		}
		cp := *c
		byURL[c.URL] = &cp
	}

	out := make([]*models.CandidateListing, 0, len(byURL))
	for _, c := range candidates {
		if m, ok := byURL[c.URL]; ok {
			out = append(out, m)
			delete(byURL, c.URL)
		}
	}
	return out
}
