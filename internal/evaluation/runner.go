package evaluation

import (
	"context"
	"time"

	"github.com/dealscout/sourcing/internal/domain/entities"
)

const evalTopK = 10

// SearchResultProvider runs one ranked search for evaluation purposes.
// Implementations return results in rank order plus the total result count.
type SearchResultProvider interface {
	Search(ctx context.Context, intent *entities.SearchIntent, limit int) ([]*entities.NormalizedResult, int, error)
}

// Runner scores the ranking pipeline against a set of golden queries.
type Runner struct {
	searchService SearchResultProvider
}

func NewRunner(svc SearchResultProvider) *Runner {
	return &Runner{searchService: svc}
}

// Run evaluates every golden query and aggregates Recall@10, MRR@10, and
// keyword coverage. Queries that error are skipped rather than failing the
// whole run; a flaky provider should not abort an evaluation.
func (r *Runner) Run(ctx context.Context, queries []GoldenQuery) (*EvalSummary, error) {
	summary := &EvalSummary{
		TotalQueries: len(queries),
		ByIntent:     make(map[Intent]*IntentSummary),
	}

	for _, gq := range queries {
		intent := &entities.SearchIntent{RawInput: gq.Query}
		intent.Normalize()

		start := time.Now()
		results, count, err := r.searchService.Search(ctx, intent, evalTopK)
		duration := time.Since(start)

		if err != nil {
			continue
		}

		domains := make([]string, 0, len(results))
		titles := make([]string, 0, len(results))
		for _, res := range results {
			if res == nil {
				continue
			}
			domains = append(domains, res.MerchantDomain)
			titles = append(titles, res.Title)
		}

		result := EvalResult{
			QueryID:          gq.ID,
			Query:            gq.Query,
			Intent:           gq.Intent,
			RecallAt10:       RecallAtK(gq.ExpectedDomains, domains, evalTopK),
			MRRAt10:          MRRAtK(gq.ExpectedDomains, domains, evalTopK),
			KeywordCoverage:  KeywordCoverage(gq.ExpectedKeywords, titles),
			ResultCount:      count,
			RetrievedDomains: domains,
			Latency:          duration,
		}

		r.updateSummary(summary, result)
	}

	r.finalizeSummary(summary)
	return summary, nil
}

func (r *Runner) updateSummary(s *EvalSummary, res EvalResult) {
	s.AvgRecallAt10 += res.RecallAt10
	s.AvgMRRAt10 += res.MRRAt10
	s.AvgKeywordCoverage += res.KeywordCoverage
	s.AvgLatency += res.Latency
	if res.ResultCount > 0 {
		s.QueriesWithHits++
	}

	if _, ok := s.ByIntent[res.Intent]; !ok {
		s.ByIntent[res.Intent] = &IntentSummary{}
	}
	is := s.ByIntent[res.Intent]
	is.Count++
	is.AvgRecallAt10 += res.RecallAt10
	is.AvgMRRAt10 += res.MRRAt10
}

func (r *Runner) finalizeSummary(s *EvalSummary) {
	if s.TotalQueries > 0 {
		n := float64(s.TotalQueries)
		s.AvgRecallAt10 /= n
		s.AvgMRRAt10 /= n
		s.AvgKeywordCoverage /= n
		s.AvgLatency /= time.Duration(s.TotalQueries)
	}

	for _, is := range s.ByIntent {
		if is.Count > 0 {
			n := float64(is.Count)
			is.AvgRecallAt10 /= n
			is.AvgMRRAt10 /= n
		}
	}
}
