package services

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"

	"github.com/desertthunder/shelfreq/internal/models"
	"github.com/desertthunder/shelfreq/internal/shared"
)

const (
	// MaxLibraryPages caps pagination per library.
	MaxLibraryPages = 200
	// DefaultPageSize is the number of items requested per page.
	DefaultPageSize = 50

	mediaTypeBook = "book"
)

type absLibrariesResponse struct {
	Libraries []models.Library `json:"libraries"`
}

type absItemsResponse struct {
	Results []absItem `json:"results"`
	Total   int       `json:"total"`
}

type absPerson struct {
	Name string `json:"name"`
}

type absItem struct {
	ID    string `json:"id"`
	Media struct {
		Duration float64 `json:"duration"`
		Metadata struct {
			Title        string      `json:"title"`
			AuthorName   string      `json:"authorName"`
			Authors      []absPerson `json:"authors"`
			NarratorName string      `json:"narratorName"`
			Narrators    []absPerson `json:"narrators"`
		} `json:"metadata"`
	} `json:"media"`
}

// entry flattens a raw item; the author is nil when the catalog lists none.
func (i absItem) entry(lib models.Library) models.CatalogEntry {
	meta := i.Media.Metadata
	return models.CatalogEntry{
		ID:          i.ID,
		Title:       meta.Title,
		Author:      shared.StringPtr(firstNonEmpty(meta.AuthorName, joinNames(meta.Authors))),
		Narrator:    firstNonEmpty(meta.NarratorName, joinNames(meta.Narrators)),
		Duration:    i.Media.Duration,
		LibraryID:   lib.ID,
		LibraryName: lib.Name,
	}
}

// Option configures an [AudiobookshelfService].
type Option func(*AudiobookshelfService)

// WithHTTPClient sets the base client wrapped by the token transport.
func WithHTTPClient(client *http.Client) Option {
	return func(s *AudiobookshelfService) { s.base = client }
}

// AudiobookshelfService implements [Catalog] for an Audiobookshelf server.
type AudiobookshelfService struct {
	cfg     shared.CatalogConfig
	api     *APIService
	base    *http.Client
	limiter *rate.Limiter
	logger  *log.Logger
}

// NewAudiobookshelfService creates a client for cfg. An unconfigured client is
// valid; every call on it returns [shared.ErrCatalogNotConfigured].
func NewAudiobookshelfService(cfg shared.CatalogConfig, logger *log.Logger, opts ...Option) *AudiobookshelfService {
	s := &AudiobookshelfService{cfg: cfg, logger: logger}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = shared.NewLogger(nil)
	}
	if s.cfg.PageSize <= 0 {
		s.cfg.PageSize = DefaultPageSize
	}

	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}
	s.limiter = rate.NewLimiter(limit, 1)

	ctx := context.Background()
	if s.base != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, s.base)
	}
	client := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: cfg.APIToken,
		TokenType:   "Bearer",
	}))
	client.Timeout = cfg.Timeout.Duration

	s.api = NewAPIService(cfg.URL, client)
	return s
}

// Name returns the name of the catalog service
func (s *AudiobookshelfService) Name() string {
	return "Audiobookshelf"
}

// Configured reports whether both URL and token are set.
func (s *AudiobookshelfService) Configured() bool {
	return s.cfg.Configured()
}

// Ping checks that the server is reachable and accepts the token.
func (s *AudiobookshelfService) Ping(ctx context.Context) error {
	_, err := s.Libraries(ctx)
	return err
}

// Libraries returns the server's book libraries.
func (s *AudiobookshelfService) Libraries(ctx context.Context) ([]models.Library, error) {
	var body absLibrariesResponse
	if err := s.get(ctx, "/api/libraries", nil, &body); err != nil {
		return nil, err
	}

	libraries := make([]models.Library, 0, len(body.Libraries))
	for _, lib := range body.Libraries {
		if lib.MediaType == mediaTypeBook {
			libraries = append(libraries, lib)
		}
	}
	return libraries, nil
}

// LibraryItems returns every item of one library, tagged with the library.
func (s *AudiobookshelfService) LibraryItems(ctx context.Context, lib models.Library) ([]models.CatalogEntry, error) {
	var items []models.CatalogEntry

	for page := 0; page < MaxLibraryPages; page++ {
		if err := s.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("%w: %v", shared.ErrCatalogUnavailable, err)
		}

		query := url.Values{}
		query.Set("limit", strconv.Itoa(s.cfg.PageSize))
		query.Set("page", strconv.Itoa(page))

		var body absItemsResponse
		if err := s.get(ctx, "/api/libraries/"+url.PathEscape(lib.ID)+"/items", query, &body); err != nil {
			return nil, err
		}
		if len(body.Results) == 0 {
			break
		}

		for _, raw := range body.Results {
			items = append(items, raw.entry(lib))
		}

		if len(items) >= body.Total {
			break
		}
	}

	s.logger.Debug("fetched library items", "library", lib.Name, "items", len(items))
	return items, nil
}

// FetchAllItems returns the items of every book library in library order.
func (s *AudiobookshelfService) FetchAllItems(ctx context.Context) ([]models.CatalogEntry, error) {
	libraries, err := s.Libraries(ctx)
	if err != nil {
		return nil, err
	}

	all := []models.CatalogEntry{}
	for _, lib := range libraries {
		items, err := s.LibraryItems(ctx, lib)
		if err != nil {
			return nil, err
		}
		all = append(all, items...)
	}

	s.logger.Info("fetched catalog", "libraries", len(libraries), "items", len(all))
	return all, nil
}

func (s *AudiobookshelfService) get(ctx context.Context, path string, query url.Values, v any) error {
	if !s.Configured() {
		return shared.ErrCatalogNotConfigured
	}

	resp, err := s.api.Get(ctx, path, query)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrCatalogUnavailable, err)
	}
	if !resp.OK() {
		return fmt.Errorf("%w: GET %s returned status %d", shared.ErrCatalogUnavailable, path, resp.StatusCode)
	}
	if err := resp.Decode(v); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrCatalogUnavailable, err)
	}
	return nil
}

func joinNames(people []absPerson) string {
	names := make([]string, 0, len(people))
	for _, p := range people {
		if name := strings.TrimSpace(p.Name); name != "" {
			names = append(names, name)
		}
	}
	return strings.Join(names, ", ")
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
