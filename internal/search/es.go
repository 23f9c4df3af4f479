package search

import (
	"context"
	"encoding/json"
	"regexp"
	"strings"
	"time"

	"github.com/olivere/elastic/v7"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"coursetalk/internal/forum"
)

const (
	threadIndexBase  = "comment_threads"
	commentIndexBase = "comments"

	indexTimeLayout = "20060102150405"

	defaultBatchSize      = 500
	defaultCatchupMinutes = 5
)

// Aliases never index anything themselves; physical indices carry a
// timestamp suffix and the alias is flipped after a rebuild.
var timestampedIndex = regexp.MustCompile(`^(comment_threads|comments)_(\d{14,})$`)

const threadMapping = `{
	"mappings": {
		"dynamic": "false",
		"properties": {
			"title": {"type": "text", "boost": 5.0, "store": true, "term_vector": "with_positions_offsets"},
			"body": {"type": "text", "store": true, "term_vector": "with_positions_offsets"},
			"created_at": {"type": "date"},
			"updated_at": {"type": "date"},
			"last_activity_at": {"type": "date"},
			"comment_count": {"type": "integer"},
			"votes_point": {"type": "integer"},
			"context": {"type": "keyword"},
			"course_id": {"type": "keyword"},
			"commentable_id": {"type": "keyword"},
			"author_id": {"type": "keyword"},
			"group_id": {"type": "integer"},
			"id": {"type": "keyword"}
		}
	}
}`

const commentMapping = `{
	"mappings": {
		"dynamic": "false",
		"properties": {
			"body": {"type": "text", "store": true, "term_vector": "with_positions_offsets"},
			"course_id": {"type": "keyword"},
			"comment_thread_id": {"type": "keyword"},
			"commentable_id": {"type": "keyword"},
			"group_id": {"type": "keyword"},
			"context": {"type": "keyword"},
			"created_at": {"type": "date"},
			"updated_at": {"type": "date"},
			"title": {"type": "keyword"}
		}
	}
}`

// Elastic is the Elasticsearch engine. Documents are read through the two
// base-name aliases; rebuilds write to fresh timestamped indices and flip
// the aliases when done.
type Elastic struct {
	client *elastic.Client
	source forum.SearchSource
}

var _ Engine = (*Elastic)(nil)

// NewElastic connects to the cluster and wires the content source used for
// index builds.
func NewElastic(url string, source forum.SearchSource) (*Elastic, error) {
	client, err := elastic.NewClient(
		elastic.SetURL(url),
		elastic.SetSniff(false),
		elastic.SetHealthcheck(false),
	)
	if err != nil {
		return nil, errors.Wrap(err, "connect elasticsearch")
	}
	log.WithField("url", url).Info("elasticsearch connected")
	return &Elastic{client: client, source: source}, nil
}

func aliasNames() []string {
	return []string{threadIndexBase, commentIndexBase}
}

func mappingFor(base string) string {
	if base == threadIndexBase {
		return threadMapping
	}
	return commentMapping
}

func aliasForContentType(contentType string) string {
	if contentType == forum.ContentTypeThread {
		return threadIndexBase
	}
	return commentIndexBase
}

// GetThreadIDs runs the structural+full-text query over both indices.
// Thread hits map to their own id, comment hits to the owning thread; the
// result is the de-duplicated union.
func (e *Elastic) GetThreadIDs(ctx context.Context, q ThreadQuery) ([]string, error) {
	must := []elastic.Query{}
	if len(q.CommentableIDs) == 1 {
		must = append(must, elastic.NewTermQuery("commentable_id", q.CommentableIDs[0]))
	} else if len(q.CommentableIDs) > 1 {
		vals := make([]interface{}, len(q.CommentableIDs))
		for i, id := range q.CommentableIDs {
			vals[i] = id
		}
		must = append(must, elastic.NewTermsQuery("commentable_id", vals...))
	}
	if q.CourseID != "" {
		must = append(must, elastic.NewTermQuery("course_id", q.CourseID))
	}
	must = append(must, elastic.NewMultiMatchQuery(q.Text, "title", "body").Operator("AND"))

	// Context and group clauses are scoring hints, not filters.
	should := []elastic.Query{
		elastic.NewBoolQuery().MustNot(elastic.NewExistsQuery("context")),
		elastic.NewTermQuery("context", q.Context),
	}
	if len(q.GroupIDs) > 0 {
		should = append(should, elastic.NewBoolQuery().MustNot(elastic.NewExistsQuery("group_id")))
		if len(q.GroupIDs) == 1 {
			should = append(should, elastic.NewTermQuery("group_id", q.GroupIDs[0]))
		} else {
			vals := make([]interface{}, len(q.GroupIDs))
			for i, g := range q.GroupIDs {
				vals[i] = g
			}
			should = append(should, elastic.NewTermsQuery("group_id", vals...))
		}
	}

	res, err := e.client.Search(aliasNames()...).
		Query(elastic.NewBoolQuery().Must(must...).Should(should...)).
		Sort("updated_at", false).
		Size(maxSearchSize).
		Do(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "search threads")
	}

	seen := map[string]struct{}{}
	ids := []string{}
	for _, hit := range res.Hits.Hits {
		var id string
		if strings.HasPrefix(hit.Index, threadIndexBase) {
			id = hit.Id
		} else {
			var src struct {
				ThreadID string `json:"comment_thread_id"`
			}
			if err := json.Unmarshal(hit.Source, &src); err != nil || src.ThreadID == "" {
				continue
			}
			id = src.ThreadID
		}
		if _, ok := seen[id]; !ok {
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// GetSuggestedText returns the top phrase suggestion across the fields, in
// field priority order.
func (e *Elastic) GetSuggestedText(ctx context.Context, text string, fields []string) (string, error) {
	if len(fields) == 0 {
		fields = DefaultSuggestionFields
	}
	svc := e.client.Search(aliasNames()...).Size(0)
	for _, field := range fields {
		svc = svc.Suggester(elastic.NewPhraseSuggester(field + "_suggestions").Field(field).Text(text))
	}
	res, err := svc.Do(ctx)
	if err != nil {
		return "", errors.Wrap(err, "suggest text")
	}
	for _, field := range fields {
		for _, sug := range res.Suggest[field+"_suggestions"] {
			if len(sug.Options) > 0 {
				return sug.Options[0].Text, nil
			}
		}
	}
	return "", nil
}

func (e *Elastic) IndexDocument(ctx context.Context, doc forum.SearchDocument) error {
	_, err := e.client.Index().
		Index(aliasForContentType(doc.ContentType)).
		Id(doc.ID).
		BodyJson(doc).
		Do(ctx)
	return errors.Wrap(err, "index document")
}

func (e *Elastic) DeleteDocument(ctx context.Context, contentType, id string) error {
	_, err := e.client.Delete().
		Index(aliasForContentType(contentType)).
		Id(id).
		Do(ctx)
	if err != nil && elastic.IsNotFound(err) {
		return nil
	}
	return errors.Wrap(err, "delete document")
}

// InitializeIndices creates fresh indices behind the aliases unless they
// already exist.
func (e *Elastic) InitializeIndices(ctx context.Context, force bool) error {
	if !force {
		existing, err := e.aliasedIndices(ctx)
		if err != nil {
			return err
		}
		if len(existing[threadIndexBase]) > 0 && len(existing[commentIndexBase]) > 0 {
			log.Info("search indices already initialized")
			return nil
		}
	}
	created, err := e.createIndices(ctx)
	if err != nil {
		return err
	}
	for base, index := range created {
		if err := e.moveAlias(ctx, base, index); err != nil {
			return err
		}
	}
	return nil
}

// RebuildIndices builds new timestamped indices, bulk-imports everything,
// runs a catch-up pass padded backwards to tolerate clock skew, flips the
// aliases, and catches up once more through the aliases.
func (e *Elastic) RebuildIndices(ctx context.Context, batchSize, extraCatchupMinutes int) error {
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	if extraCatchupMinutes <= 0 {
		extraCatchupMinutes = defaultCatchupMinutes
	}
	initialStart := time.Now()

	created, err := e.createIndices(ctx)
	if err != nil {
		return err
	}
	if err := e.importAll(ctx, created, nil, batchSize); err != nil {
		return err
	}

	firstCatchupStart := time.Now()
	adjusted := initialStart.Add(-time.Duration(extraCatchupMinutes) * time.Minute)
	if err := e.importAll(ctx, created, &adjusted, batchSize); err != nil {
		return err
	}

	aliases := map[string]string{}
	for base, index := range created {
		if err := e.moveAlias(ctx, base, index); err != nil {
			return err
		}
		aliases[base] = base
	}

	adjusted = firstCatchupStart.Add(-time.Duration(extraCatchupMinutes) * time.Minute)
	if err := e.importAll(ctx, aliases, &adjusted, batchSize); err != nil {
		return err
	}
	log.WithField("indices", created).Info("search index rebuild complete")
	return nil
}

// ValidateIndices checks that the live mappings carry the expected
// properties with the expected types.
func (e *Elastic) ValidateIndices(ctx context.Context) error {
	actual, err := e.client.GetMapping().Index(aliasNames()...).Do(ctx)
	if err != nil {
		return errors.Wrap(err, "get mappings")
	}
	if len(actual) == 0 {
		return errors.New("search indices do not exist")
	}
	for indexName, raw := range actual {
		base := threadIndexBase
		if strings.HasPrefix(indexName, commentIndexBase) {
			base = commentIndexBase
		}
		var expected struct {
			Mappings struct {
				Properties map[string]struct {
					Type string `json:"type"`
				} `json:"properties"`
			} `json:"mappings"`
		}
		if err := json.Unmarshal([]byte(mappingFor(base)), &expected); err != nil {
			return errors.Wrap(err, "parse expected mapping")
		}
		mappings, _ := raw.(map[string]interface{})["mappings"].(map[string]interface{})
		props, _ := mappings["properties"].(map[string]interface{})
		for name, exp := range expected.Mappings.Properties {
			actualProp, ok := props[name].(map[string]interface{})
			if !ok {
				return errors.Errorf("index %s is missing field %q", indexName, name)
			}
			if actualType, _ := actualProp["type"].(string); actualType != exp.Type {
				return errors.Errorf("index %s field %q has type %q, want %q",
					indexName, name, actualType, exp.Type)
			}
		}
	}
	return nil
}

func (e *Elastic) RefreshIndices(ctx context.Context) error {
	_, err := e.client.Refresh(aliasNames()...).Do(ctx)
	return errors.Wrap(err, "refresh indices")
}

// DeleteUnusedIndices drops every timestamped index except the newest per
// base name and returns how many were deleted.
func (e *Elastic) DeleteUnusedIndices(ctx context.Context) (int, error) {
	names, err := e.client.IndexNames()
	if err != nil {
		return 0, errors.Wrap(err, "list indices")
	}
	newest := map[string]string{}
	for _, name := range names {
		m := timestampedIndex.FindStringSubmatch(name)
		if m == nil {
			continue
		}
		if name > newest[m[1]] {
			newest[m[1]] = name
		}
	}
	deleted := 0
	for _, name := range names {
		m := timestampedIndex.FindStringSubmatch(name)
		if m == nil || name == newest[m[1]] {
			continue
		}
		if _, err := e.client.DeleteIndex(name).Do(ctx); err != nil {
			return deleted, errors.Wrapf(err, "delete index %s", name)
		}
		log.WithField("index", name).Info("deleted unused search index")
		deleted++
	}
	return deleted, nil
}

// createIndices makes one fresh timestamped index per base name.
func (e *Elastic) createIndices(ctx context.Context) (map[string]string, error) {
	stamp := time.Now().Format(indexTimeLayout)
	created := map[string]string{}
	for _, base := range aliasNames() {
		name := base + "_" + stamp
		_, err := e.client.CreateIndex(name).BodyString(mappingFor(base)).Do(ctx)
		if err != nil {
			return nil, errors.Wrapf(err, "create index %s", name)
		}
		created[base] = name
	}
	log.WithField("indices", created).Info("created search indices")
	return created, nil
}

// importAll bulk-imports the content stream into the target index per base
// name, optionally restricted to records updated since the given time.
func (e *Elastic) importAll(ctx context.Context, targets map[string]string, since *time.Time, batchSize int) error {
	bulk := e.client.Bulk()
	flush := func() error {
		if bulk.NumberOfActions() == 0 {
			return nil
		}
		res, err := bulk.Do(ctx)
		if err != nil {
			return errors.Wrap(err, "bulk import")
		}
		for _, failed := range res.Failed() {
			log.WithFields(log.Fields{
				"id":    failed.Id,
				"index": failed.Index,
			}).Error("failed to index document")
		}
		return nil
	}

	err := e.source.StreamSearchDocuments(ctx, since, func(doc forum.SearchDocument) error {
		target, ok := targets[aliasForContentType(doc.ContentType)]
		if !ok {
			return nil
		}
		bulk.Add(elastic.NewBulkIndexRequest().Index(target).Id(doc.ID).Doc(doc))
		if bulk.NumberOfActions() >= batchSize {
			return flush()
		}
		return nil
	})
	if err != nil {
		return err
	}
	return flush()
}

// aliasedIndices maps each alias to the physical indices it points at.
func (e *Elastic) aliasedIndices(ctx context.Context) (map[string][]string, error) {
	res, err := e.client.Aliases().Index("_all").Do(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "list aliases")
	}
	out := map[string][]string{}
	for _, alias := range aliasNames() {
		out[alias] = res.IndicesByAlias(alias)
	}
	return out, nil
}

// moveAlias points the alias at the new index, removing it from any index
// it pointed at before. A plain index squatting on the alias name is
// deleted first.
func (e *Elastic) moveAlias(ctx context.Context, aliasName, indexName string) error {
	if aliasName == indexName {
		return errors.Errorf("alias %q cannot point to an index of the same name", aliasName)
	}
	current, err := e.aliasedIndices(ctx)
	if err != nil {
		return err
	}
	if len(current[aliasName]) == 0 {
		exists, err := e.client.IndexExists(aliasName).Do(ctx)
		if err != nil {
			return errors.Wrap(err, "check index")
		}
		if exists {
			if _, err := e.client.DeleteIndex(aliasName).Do(ctx); err != nil {
				return errors.Wrapf(err, "delete index %s", aliasName)
			}
		}
	}

	svc := e.client.Alias()
	for _, old := range current[aliasName] {
		svc = svc.Remove(old, aliasName)
	}
	if _, err := svc.Add(indexName, aliasName).Do(ctx); err != nil {
		return errors.Wrapf(err, "move alias %s to %s", aliasName, indexName)
	}
	log.WithFields(log.Fields{"alias": aliasName, "index": indexName}).Info("alias moved")
	return nil
}
