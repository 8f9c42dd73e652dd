package repositories

import (
	"strings"
	"time"

	"review-hub-backend/config"
	"review-hub-backend/db/models"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search/query"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const ReviewsIndex = "reviews"

// reviewDocument is what gets indexed for a review. user_id and provider are
// keywords so tenant and provider filters match exactly.
type reviewDocument struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	Provider     string    `json:"provider"`
	Rating       float64   `json:"rating"`
	Title        string    `json:"title"`
	Text         string    `json:"text"`
	ResponseText string    `json:"response_text"`
	ReviewedAt   time.Time `json:"reviewed_at"`
}

func reviewIndexMapping() mapping.IndexMapping {
	keywordField := bleve.NewTextFieldMapping()
	keywordField.Analyzer = keyword.Name

	textField := bleve.NewTextFieldMapping()
	textField.Analyzer = standard.Name

	doc := bleve.NewDocumentMapping()
	doc.AddFieldMappingsAt("id", keywordField)
	doc.AddFieldMappingsAt("user_id", keywordField)
	doc.AddFieldMappingsAt("provider", keywordField)
	doc.AddFieldMappingsAt("rating", bleve.NewNumericFieldMapping())
	doc.AddFieldMappingsAt("title", textField)
	doc.AddFieldMappingsAt("text", textField)
	doc.AddFieldMappingsAt("response_text", textField)
	doc.AddFieldMappingsAt("reviewed_at", bleve.NewDateTimeFieldMapping())

	m := bleve.NewIndexMapping()
	m.DefaultMapping = doc
	m.DefaultAnalyzer = standard.Name
	return m
}

func toReviewDocument(r models.Review) reviewDocument {
	doc := reviewDocument{
		ID:         r.ID.String(),
		UserID:     r.UserID.String(),
		Provider:   r.Provider,
		Rating:     float64(r.Rating),
		Text:       r.Text,
		ReviewedAt: r.ReviewedAt,
	}
	if r.Title != nil {
		doc.Title = *r.Title
	}
	if r.ResponseText != nil {
		doc.ResponseText = *r.ResponseText
	}
	return doc
}

// IndexReviews indexes reviews in one batch. Reviews keep their store id so
// a re-import replaces the document.
func (r *BleveRepository) IndexReviews(reviews []models.Review) error {
	documents := make(map[string]interface{}, len(reviews))
	for _, rev := range reviews {
		if rev.ID == uuid.Nil {
			continue
		}
		documents[rev.ID.String()] = toReviewDocument(rev)
	}

	if err := r.indexer.BulkIndexDocuments(ReviewsIndex, documents); err != nil {
		config.Logger.Error("Failed to index reviews into Bleve", zap.Error(err), zap.Int("count", len(documents)))
		return err
	}
	return nil
}

func (r *BleveRepository) DeleteReview(reviewID uuid.UUID) error {
	return r.indexer.DeleteDocument(ReviewsIndex, reviewID.String())
}

type ReviewSearchFilters struct {
	Provider  string
	MinRating int
}

type ReviewHit struct {
	ID    uuid.UUID `json:"id"`
	Score float64   `json:"score"`
}

type ReviewSearchResult struct {
	Hits  []ReviewHit `json:"hits"`
	Total uint64      `json:"total"`
}

// SearchReviews runs q against title, text and response_text. Results are
// always restricted to userID.
func (r *BleveRepository) SearchReviews(userID uuid.UUID, q string, filters ReviewSearchFilters, from, size int) (*ReviewSearchResult, error) {
	tenant := bleve.NewTermQuery(userID.String())
	tenant.SetField("user_id")
	must := []query.Query{tenant}

	if p := strings.ToLower(strings.TrimSpace(filters.Provider)); p != "" {
		provider := bleve.NewTermQuery(p)
		provider.SetField("provider")
		must = append(must, provider)
	}
	if filters.MinRating > 0 {
		lo := float64(filters.MinRating)
		inclusive := true
		rating := bleve.NewNumericRangeInclusiveQuery(&lo, nil, &inclusive, nil)
		rating.SetField("rating")
		must = append(must, rating)
	}

	if q = strings.TrimSpace(q); q != "" {
		// Exact words rank above prefixes, prefixes above typos.
		text := bleve.NewBooleanQuery()
		for _, field := range []string{"title", "text", "response_text"} {
			match := bleve.NewMatchQuery(q)
			match.SetField(field)
			match.SetBoost(3.0)
			text.AddShould(match)

			prefix := bleve.NewPrefixQuery(strings.ToLower(q))
			prefix.SetField(field)
			prefix.SetBoost(2.0)
			text.AddShould(prefix)

			fuzzy := bleve.NewFuzzyQuery(strings.ToLower(q))
			fuzzy.SetField(field)
			fuzzy.SetFuzziness(1)
			text.AddShould(fuzzy)
		}
		text.SetMinShould(1)
		must = append(must, text)
	}

	req := bleve.NewSearchRequestOptions(bleve.NewConjunctionQuery(must...), size, from, false)
	req.Fields = []string{"id"}
	if q == "" {
		req.SortBy([]string{"-reviewed_at"})
	}

	res, err := r.indexer.Search(ReviewsIndex, req)
	if err != nil {
		return nil, err
	}

	out := &ReviewSearchResult{Total: res.Total, Hits: make([]ReviewHit, 0, len(res.Hits))}
	for _, hit := range res.Hits {
		id, err := uuid.Parse(hit.ID)
		if err != nil {
			continue
		}
		out.Hits = append(out.Hits, ReviewHit{ID: id, Score: hit.Score})
	}
	return out, nil
}
