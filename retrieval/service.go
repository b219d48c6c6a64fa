package retrieval

import (
	"context"
	"log/slog"
	"time"

	"github.com/hearsaylabs/hearsay/ai"
	"github.com/hearsaylabs/hearsay/core"
	"github.com/hearsaylabs/hearsay/storage"
)

// Service answers similarity queries for one or more tenants.
type Service struct {
	registry storage.TenantRegistry
	metadata storage.MetadataStore
	content  storage.ContentStore
	embedder ai.Embedder
	logger   *slog.Logger
}

// Option configures a Service.
type Option func(*Service) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
		return nil
	}
}

// NewService creates a retrieval service.
func NewService(
	registry storage.TenantRegistry,
	metadata storage.MetadataStore,
	content storage.ContentStore,
	embedder ai.Embedder,
	opts ...Option,
) (*Service, error) {
	if registry == nil {
		return nil, ErrRegistryRequired
	}
	if metadata == nil {
		return nil, ErrMetadataStoreRequired
	}
	if content == nil {
		return nil, ErrContentStoreRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}

	s := &Service{
		registry: registry,
		metadata: metadata,
		content:  content,
		embedder: embedder,
		logger:   slog.Default(),
	}

	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Filters restricts a query to a metadata subset. Zero values mean
// unrestricted; Limit 0 falls back to the tenant's MaxResults setting.
type Filters struct {
	ChannelID string
	From      time.Time
	To        time.Time
	Kinds     []core.MessageKind
	Limit     int
}

// Result is one ranked match: the metadata row, the matched text and the
// similarity score.
type Result struct {
	Record *core.MessageRecord
	Text   string
	Score  float32
}

// Response is a ranked result set with an aggregate confidence.
type Response struct {
	Results     []Result
	Confidence  float64
	Explanation string
}

// overfetch compensates for matches dropped during enrichment.
const overfetch = 2

// Query embeds the text and returns ranked matches within the tenant's
// collection. Filters apply before scoring. Matches whose metadata row is
// missing, soft-deleted or content-pending are dropped.
func (s *Service) Query(ctx context.Context, tenantID, text string, filters Filters) (*Response, error) {
	if err := core.ValidateTenantID(tenantID); err != nil {
		return nil, err
	}
	if text == "" {
		return nil, ErrEmptyQuery
	}

	settings, err := s.registry.GetSettings(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	limit := filters.Limit
	if limit <= 0 {
		limit = settings.MaxResults
	}

	vector, err := s.embedder.EmbedText(ctx, text)
	if err != nil {
		s.logger.Error("error generating embedding for query", "tenant", tenantID, "err", err)
		return nil, err
	}

	matches, err := s.content.Search(ctx, tenantID, vector, settings.MinRelevance, limit*overfetch,
		storage.ContentFilter{
			ChannelID: filters.ChannelID,
			From:      filters.From,
			To:        filters.To,
			Kinds:     filters.Kinds,
		})
	if err != nil {
		s.logger.Error("error querying content store", "tenant", tenantID, "err", err)
		return nil, err
	}

	results, err := s.enrich(ctx, tenantID, matches)
	if err != nil {
		return nil, err
	}
	if len(results) > limit {
		results = results[:limit]
	}

	conf := confidence(time.Now().UTC(), results,
		time.Duration(settings.RecencyHalfLifeDays)*24*time.Hour)

	s.logger.Debug("query answered",
		"tenant", tenantID,
		"matches", len(matches),
		"returned", len(results),
		"confidence", conf)

	return &Response{
		Results:     results,
		Confidence:  conf,
		Explanation: explain(results, conf),
	}, nil
}

// enrich joins matches against the metadata store, dropping entries whose
// row is missing, soft-deleted or not yet linked. Order is preserved.
func (s *Service) enrich(ctx context.Context, tenantID string, matches []storage.ContentMatch) ([]Result, error) {
	if len(matches) == 0 {
		return []Result{}, nil
	}

	sourceIDs := make([]string, 0, len(matches))
	for _, m := range matches {
		sourceIDs = append(sourceIDs, m.Entry.SourceID)
	}

	rows, err := s.metadata.GetMessages(ctx, tenantID, sourceIDs)
	if err != nil {
		s.logger.Error("error enriching matches", "tenant", tenantID, "err", err)
		return nil, err
	}
	bySource := make(map[string]*core.MessageRecord, len(rows))
	for _, row := range rows {
		bySource[row.SourceID] = row
	}

	results := make([]Result, 0, len(matches))
	for _, m := range matches {
		row, ok := bySource[m.Entry.SourceID]
		if !ok || !row.DeletedAt.IsZero() || row.ContentState != core.ContentLinked {
			continue
		}
		results = append(results, Result{
			Record: row,
			Text:   m.Entry.Text,
			Score:  m.Score,
		})
	}
	return results, nil
}
