// Package news serves market headlines relevant to a user's holdings.
package news

import (
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/Marcos415/cotacoesview/internal/cache"
	"github.com/Marcos415/cotacoesview/internal/clients/newsapi"
	"github.com/Marcos415/cotacoesview/internal/symbols"
)

const (
	baseQuery   = "Mercado Financeiro Brasil"
	maxHoldings = 3
	pageSize    = 12
)

// Searcher fetches articles for a query.
type Searcher interface {
	Search(query string, pageSize int) ([]newsapi.Article, error)
}

// HoldingsProvider lists the symbols a user currently holds.
type HoldingsProvider interface {
	HeldSymbols(userID string) ([]string, error)
}

// Service builds per-user news queries and caches the results.
type Service struct {
	searcher Searcher
	holdings HoldingsProvider
	store    *cache.Store[[]newsapi.Article]
	log      zerolog.Logger
}

// NewService creates the news service. A nil searcher disables lookups;
// ForUser then always returns an empty slice.
func NewService(searcher Searcher, holdings HoldingsProvider, ttl time.Duration, log zerolog.Logger) *Service {
	return &Service{
		searcher: searcher,
		holdings: holdings,
		store: cache.New[[]newsapi.Article](ttl, cache.WithClone[[]newsapi.Article](func(v []newsapi.Article) []newsapi.Article {
			out := make([]newsapi.Article, len(v))
			copy(out, v)
			return out
		})),
		log: log.With().Str("service", "news").Logger(),
	}
}

// ForUser returns headlines for the user's largest holdings plus the
// general Brazilian market. Results are cached per query, so two users
// with the same holdings share one upstream call.
func (s *Service) ForUser(userID string) []newsapi.Article {
	return s.TopStories(s.buildQuery(userID))
}

// TopStories returns cached headlines for an arbitrary query. Any
// failure yields an empty slice and is retried on the next call.
func (s *Service) TopStories(query string) []newsapi.Article {
	if s.searcher == nil {
		return []newsapi.Article{}
	}

	articles, ok := s.store.GetOrCompute(query, func() ([]newsapi.Article, bool) {
		result, err := s.searcher.Search(query, pageSize)
		if err != nil {
			s.log.Warn().Err(err).Str("query", query).Msg("News lookup failed")
			return nil, false
		}
		if len(result) == 0 {
			return nil, false
		}
		return result, true
	})
	if !ok {
		return []newsapi.Article{}
	}
	return articles
}

func (s *Service) buildQuery(userID string) string {
	terms := []string{}

	if s.holdings != nil {
		held, err := s.holdings.HeldSymbols(userID)
		if err != nil {
			s.log.Warn().Err(err).Str("user_id", userID).Msg("Failed to list holdings for news query")
		} else {
			// Stable ordering keeps the cache key deterministic
			sort.Strings(held)
			for _, sym := range held {
				if len(terms) == maxHoldings {
					break
				}
				terms = append(terms, symbols.DisplayName(sym))
			}
		}
	}

	terms = append(terms, baseQuery)
	return strings.Join(terms, " OR ")
}
