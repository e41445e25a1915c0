package matcher

import (
	"fmt"
	"sort"

	"github.com/desertthunder/shelfreq/internal/models"
)

// DefaultThreshold is the minimum score for a title or author to count as matching.
const DefaultThreshold = 0.85

// Query is the request side of a comparison.
type Query struct {
	Title  string
	Author *string
}

// QueryFor builds a [Query] from a stored request.
func QueryFor(req *models.Request) Query {
	return Query{Title: req.Title, Author: req.Author}
}

// Score is the outcome of comparing one query to one catalog entry.
type Score struct {
	TitleScore  float64 `json:"title_score"`
	AuthorScore float64 `json:"author_score"`
	IsMatch     bool    `json:"is_match"`
	IsPossible  bool    `json:"is_possible"`
}

// Candidate is a catalog entry that matched or possibly matched.
type Candidate struct {
	Entry models.CatalogEntry `json:"entry"`
	Score
}

// Check is the best candidate for a single request, if any.
type Check struct {
	Found     bool
	IsCertain bool
	Match     *Candidate
}

// Matcher compares requests to catalog entries at a fixed threshold.
type Matcher struct {
	threshold float64
}

// New creates a Matcher; the threshold must be within [0, 1].
func New(threshold float64) (*Matcher, error) {
	if threshold < 0 || threshold > 1 {
		return nil, fmt.Errorf("threshold must be within [0, 1], got %v", threshold)
	}
	return &Matcher{threshold: threshold}, nil
}

// Threshold returns the configured threshold.
func (m *Matcher) Threshold() float64 { return m.threshold }

// Score compares q against a single entry.
func (m *Matcher) Score(q Query, entry models.CatalogEntry) Score {
	titleScore := TokenSetRatio(Normalize(q.Title), Normalize(entry.Title))

	var authorScore float64
	reqAuthor, entryAuthor := NormalizePtr(q.Author), NormalizePtr(entry.Author)
	if reqAuthor != "" && entryAuthor != "" {
		authorScore = Ratio(reqAuthor, entryAuthor)
	}

	isMatch := titleScore >= m.threshold && authorScore >= m.threshold
	return Score{
		TitleScore:  titleScore,
		AuthorScore: authorScore,
		IsMatch:     isMatch,
		IsPossible:  titleScore >= m.threshold && !isMatch,
	}
}

// FindMatches returns every certain or possible candidate ordered by title
// score, highest first. Equal scores keep catalog order.
func (m *Matcher) FindMatches(q Query, catalog []models.CatalogEntry) []Candidate {
	var candidates []Candidate
	for _, entry := range catalog {
		s := m.Score(q, entry)
		if s.IsMatch || s.IsPossible {
			candidates = append(candidates, Candidate{Entry: entry, Score: s})
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].TitleScore > candidates[j].TitleScore
	})
	return candidates
}

// CheckSingle returns the best candidate for q.
//
// Certainty follows the top-ranked candidate only; a certain match ranked
// below a higher-scoring possible match does not make the result certain.
func (m *Matcher) CheckSingle(q Query, catalog []models.CatalogEntry) Check {
	candidates := m.FindMatches(q, catalog)
	if len(candidates) == 0 {
		return Check{}
	}
	best := candidates[0]
	return Check{Found: true, IsCertain: best.IsMatch, Match: &best}
}
