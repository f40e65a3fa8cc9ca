package keyword

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"
	blevequery "github.com/blevesearch/bleve/v2/search/query"
	"go.uber.org/zap"

	"github.com/hyperjump/reelmatch/internal/models"
)

const (
	fieldName    = "name"
	fieldMovieID = "movie_id"

	versionKey = "catalog_version"
	batchSize  = 1000
)

// BleveIndex implements TitleIndex using Bleve.
type BleveIndex struct {
	index  bleve.Index
	logger *zap.Logger
}

// BleveOption configures a BleveIndex.
type BleveOption func(*BleveIndex)

// WithLogger sets the logger used for index maintenance messages.
func WithLogger(l *zap.Logger) BleveOption {
	return func(b *BleveIndex) {
		if l != nil {
			b.logger = l
		}
	}
}

func titleMapping() *mapping.IndexMappingImpl {
	im := bleve.NewIndexMapping()

	docMapping := bleve.NewDocumentMapping()
	nameMapping := bleve.NewTextFieldMapping()
	// Standard analyzer (lowercase + tokenize, no stemming) keeps fuzzy distances
	// relative to the words users actually type.
	nameMapping.Analyzer = standard.Name
	docMapping.AddFieldMappingsAt(fieldName, nameMapping)
	idMapping := bleve.NewKeywordFieldMapping()
	docMapping.AddFieldMappingsAt(fieldMovieID, idMapping)
	im.AddDocumentMapping("movie", docMapping)
	im.DefaultType = "movie"
	im.DefaultMapping = docMapping
	return im
}

// NewBleveIndex creates or opens a Bleve title index at path. An empty path builds
// an in-memory index that is rebuilt on every start.
func NewBleveIndex(path string, opts ...BleveOption) (*BleveIndex, error) {
	b := &BleveIndex{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(b)
	}

	if path == "" {
		index, err := bleve.NewMemOnly(titleMapping())
		if err != nil {
			return nil, fmt.Errorf("failed to create in-memory Bleve index: %w", err)
		}
		b.index = index
		return b, nil
	}

	if _, err := os.Stat(path); err == nil {
		index, openErr := bleve.Open(path)
		if openErr != nil {
			return nil, fmt.Errorf("failed to open Bleve index: %w", openErr)
		}
		b.index = index
		return b, nil
	}

	index, err := bleve.New(path, titleMapping())
	if err != nil {
		return nil, fmt.Errorf("failed to create Bleve index: %w", err)
	}
	b.index = index
	return b, nil
}

// Sync indexes every movie under its row index and removes rows beyond len(movies).
// When version is non-empty and matches the version recorded by the previous Sync
// (and the document count agrees), the index is left untouched.
func (b *BleveIndex) Sync(ctx context.Context, movies []models.Movie, version string) error {
	count, err := b.index.DocCount()
	if err != nil {
		return fmt.Errorf("failed to count indexed titles: %w", err)
	}
	if version != "" && count == uint64(len(movies)) {
		stored, err := b.index.GetInternal([]byte(versionKey))
		if err == nil && string(stored) == version {
			b.logger.Debug("title index up to date", zap.String("catalog_version", version))
			return nil
		}
	}

	batch := b.index.NewBatch()
	for _, m := range movies {
		if err := ctx.Err(); err != nil {
			return err
		}
		doc := map[string]interface{}{
			fieldName:    m.Name,
			fieldMovieID: m.ID,
		}
		if err := batch.Index(strconv.Itoa(m.RowIndex), doc); err != nil {
			return fmt.Errorf("failed to index %q: %w", m.Name, err)
		}
		if batch.Size() >= batchSize {
			if err := b.index.Batch(batch); err != nil {
				return fmt.Errorf("failed to write title batch: %w", err)
			}
			batch.Reset()
		}
	}
	for i := uint64(len(movies)); i < count; i++ {
		batch.Delete(strconv.FormatUint(i, 10))
	}
	if batch.Size() > 0 {
		if err := b.index.Batch(batch); err != nil {
			return fmt.Errorf("failed to write title batch: %w", err)
		}
	}
	if err := b.index.SetInternal([]byte(versionKey), []byte(version)); err != nil {
		return fmt.Errorf("failed to record index version: %w", err)
	}
	b.logger.Info("title index built", zap.Int("titles", len(movies)), zap.String("catalog_version", version))
	return nil
}

// Search runs a match query over titles and returns up to limit results by relevance.
// When opts.FuzzyEnabled is true, each query term matches titles within the configured edit distance.
func (b *BleveIndex) Search(ctx context.Context, query string, limit int, opts *SearchOptions) ([]*TitleResult, error) {
	fuzzyEnabled := false
	fuzziness := 2
	if opts != nil {
		fuzzyEnabled = opts.FuzzyEnabled
		if opts.Fuzziness > 0 {
			fuzziness = opts.Fuzziness
		}
	}

	var q blevequery.Query
	if fuzzyEnabled {
		q = buildFuzzyQuery(query, fuzziness)
	} else {
		mq := bleve.NewMatchQuery(query)
		mq.SetField(fieldName)
		q = mq
	}
	req := bleve.NewSearchRequest(q)
	req.Size = limit
	req.Fields = []string{fieldName}
	results, err := b.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("Bleve search failed: %w", err)
	}

	out := make([]*TitleResult, 0, len(results.Hits))
	for _, hit := range results.Hits {
		row, err := strconv.Atoi(hit.ID)
		if err != nil {
			continue
		}
		name, _ := hit.Fields[fieldName].(string)
		out = append(out, &TitleResult{RowIndex: row, Name: name, Score: hit.Score})
	}
	return out, nil
}

// tokenizeQuery splits query into lowercase terms.
func tokenizeQuery(query string) []string {
	return strings.Fields(strings.ToLower(query))
}

// buildFuzzyQuery creates a disjunction of FuzzyQueries, one per query term.
func buildFuzzyQuery(queryStr string, fuzziness int) blevequery.Query {
	terms := tokenizeQuery(queryStr)
	if len(terms) == 0 {
		mq := bleve.NewMatchQuery(queryStr)
		mq.SetField(fieldName)
		return mq
	}

	queries := make([]blevequery.Query, 0, len(terms))
	for _, term := range terms {
		fq := bleve.NewFuzzyQuery(term)
		fq.SetFuzziness(fuzziness)
		fq.SetField(fieldName)
		queries = append(queries, fq)
	}
	if len(queries) == 1 {
		return queries[0]
	}
	return bleve.NewDisjunctionQuery(queries...)
}

// DocCount returns the total number of titles in the index.
func (b *BleveIndex) DocCount() (uint64, error) {
	return b.index.DocCount()
}

// Close closes the Bleve index.
func (b *BleveIndex) Close() error {
	return b.index.Close()
}
