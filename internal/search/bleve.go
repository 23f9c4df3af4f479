package search

import (
	"context"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search/query"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"coursetalk/internal/forum"
)

// Bleve is the embedded engine: one index holds both content kinds,
// discriminated by the content_type field. It offers no spelling
// suggestions, so the corrected-text fallback never fires with it.
type Bleve struct {
	index  bleve.Index
	source forum.SearchSource
}

var _ Engine = (*Bleve)(nil)

// NewBleve opens (or creates) the index at path; an empty path builds an
// in-memory index.
func NewBleve(path string, source forum.SearchSource) (*Bleve, error) {
	var (
		index bleve.Index
		err   error
	)
	if path == "" {
		index, err = bleve.NewMemOnly(buildIndexMapping())
	} else {
		index, err = bleve.Open(path)
		if errors.Is(err, bleve.ErrorIndexPathDoesNotExist) {
			index, err = bleve.New(path, buildIndexMapping())
		}
	}
	if err != nil {
		return nil, errors.Wrap(err, "open bleve index")
	}
	log.WithField("path", path).Info("bleve index opened")
	return &Bleve{index: index, source: source}, nil
}

func buildIndexMapping() mapping.IndexMapping {
	text := bleve.NewTextFieldMapping()
	kw := bleve.NewTextFieldMapping()
	kw.Analyzer = keyword.Name

	doc := bleve.NewDocumentMapping()
	doc.AddFieldMappingsAt("title", text)
	doc.AddFieldMappingsAt("body", text)
	doc.AddFieldMappingsAt("content_type", kw)
	doc.AddFieldMappingsAt("course_id", kw)
	doc.AddFieldMappingsAt("commentable_id", kw)
	doc.AddFieldMappingsAt("comment_thread_id", kw)
	doc.AddFieldMappingsAt("context", kw)
	doc.AddFieldMappingsAt("author_id", kw)

	m := bleve.NewIndexMapping()
	m.DefaultMapping = doc
	return m
}

func matchField(text, field string, boost float64) query.Query {
	mq := bleve.NewMatchQuery(text)
	mq.SetField(field)
	mq.SetOperator(query.MatchQueryOperatorAnd)
	mq.SetBoost(boost)
	return mq
}

func termField(term, field string) query.Query {
	tq := bleve.NewTermQuery(term)
	tq.SetField(field)
	return tq
}

// GetThreadIDs matches the text against title or body, restricted by
// course and commentable when given. Thread hits map to their own id,
// comment hits to the owning thread.
func (b *Bleve) GetThreadIDs(ctx context.Context, q ThreadQuery) ([]string, error) {
	// All query terms must match within one field; title matches rank
	// higher than body matches.
	textClause := bleve.NewDisjunctionQuery(
		matchField(q.Text, "title", 5.0),
		matchField(q.Text, "body", 1.0),
	)
	conj := bleve.NewConjunctionQuery(textClause)
	if q.CourseID != "" {
		conj.AddQuery(termField(q.CourseID, "course_id"))
	}
	if len(q.CommentableIDs) > 0 {
		commentables := bleve.NewDisjunctionQuery()
		for _, id := range q.CommentableIDs {
			commentables.AddQuery(termField(id, "commentable_id"))
		}
		conj.AddQuery(commentables)
	}

	req := bleve.NewSearchRequestOptions(conj, maxSearchSize, 0, false)
	req.Fields = []string{"content_type", "comment_thread_id"}
	res, err := b.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, errors.Wrap(err, "search threads")
	}

	seen := map[string]struct{}{}
	ids := []string{}
	for _, hit := range res.Hits {
		id := hit.ID
		if hit.Fields["content_type"] != forum.ContentTypeThread {
			threadID, _ := hit.Fields["comment_thread_id"].(string)
			if threadID == "" {
				continue
			}
			id = threadID
		}
		if _, ok := seen[id]; !ok {
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// GetSuggestedText always reports no suggestion; bleve has no phrase
// suggester.
func (b *Bleve) GetSuggestedText(context.Context, string, []string) (string, error) {
	return "", nil
}

func (b *Bleve) IndexDocument(_ context.Context, doc forum.SearchDocument) error {
	return errors.Wrap(b.index.Index(doc.ID, doc), "index document")
}

func (b *Bleve) DeleteDocument(_ context.Context, _, id string) error {
	return errors.Wrap(b.index.Delete(id), "delete document")
}

// InitializeIndices is a no-op; the index is created when the engine is
// constructed.
func (b *Bleve) InitializeIndices(context.Context, bool) error { return nil }

// RebuildIndices re-imports all content into the live index in batches.
// The embedded engine shares the process with its writers, so there is no
// catch-up pass and no alias flip.
func (b *Bleve) RebuildIndices(ctx context.Context, batchSize, _ int) error {
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	batch := b.index.NewBatch()
	err := b.source.StreamSearchDocuments(ctx, nil, func(doc forum.SearchDocument) error {
		if err := batch.Index(doc.ID, doc); err != nil {
			return errors.Wrap(err, "batch document")
		}
		if batch.Size() >= batchSize {
			if err := b.index.Batch(batch); err != nil {
				return errors.Wrap(err, "apply batch")
			}
			batch = b.index.NewBatch()
		}
		return nil
	})
	if err != nil {
		return err
	}
	if batch.Size() > 0 {
		if err := b.index.Batch(batch); err != nil {
			return errors.Wrap(err, "apply batch")
		}
	}
	log.Info("bleve index rebuild complete")
	return nil
}

func (b *Bleve) ValidateIndices(context.Context) error { return nil }

func (b *Bleve) RefreshIndices(context.Context) error { return nil }

// DeleteUnusedIndices is a no-op; the embedded engine keeps one index.
func (b *Bleve) DeleteUnusedIndices(context.Context) (int, error) { return 0, nil }

// Close releases the underlying index.
func (b *Bleve) Close() error {
	return errors.Wrap(b.index.Close(), "close bleve index")
}
