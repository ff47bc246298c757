// Package qdrant provides a vector index backed by a Qdrant collection.
package qdrant

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"sync"

	qd "github.com/qdrant/go-client/qdrant"

	"github.com/custodia-labs/sous/internal/core/domain"
	"github.com/custodia-labs/sous/internal/core/ports/driven"
)

// DefaultCollection is used when no collection name is configured.
const DefaultCollection = "recipes"

// defaultGRPCPort is Qdrant's gRPC port.
const defaultGRPCPort = 6334

// Payload keys.
const (
	keyContent    = "content"
	keyDocumentID = "parent_document_id"
	keyVersionID  = "parent_version_id"
	keySequence   = "sequence_index"
	keyDocType    = "doc_type"
	keyUserID     = "user_id"
	keyCategory   = "category"
	keyDishName   = "dish_name"
	keyDifficulty = "difficulty"
	keySource     = "source"
)

// Verify interface compliance.
var _ driven.VectorIndex = (*Index)(nil)

// Config holds Qdrant connection settings.
type Config struct {
	// URL is the server address, e.g. "http://localhost:6334".
	URL string

	// Collection is the collection fragments are stored in.
	Collection string

	// APIKey is optional.
	APIKey string
}

// pointsAPI is the part of the Qdrant client the index calls.
type pointsAPI interface {
	CollectionExists(ctx context.Context, name string) (bool, error)
	CreateCollection(ctx context.Context, req *qd.CreateCollection) error
	Upsert(ctx context.Context, req *qd.UpsertPoints) (*qd.UpdateResult, error)
	Delete(ctx context.Context, req *qd.DeletePoints) (*qd.UpdateResult, error)
	Get(ctx context.Context, req *qd.GetPoints) ([]*qd.RetrievedPoint, error)
	Query(ctx context.Context, req *qd.QueryPoints) ([]*qd.ScoredPoint, error)
	Close() error
}

// Index implements driven.VectorIndex. Vectors come from the embedding service.
type Index struct {
	client     pointsAPI
	collection string
	embedder   driven.EmbeddingService

	// created is set once the collection is known to exist.
	mu      sync.Mutex
	created bool
}

// New connects to Qdrant. The collection is created lazily on first write.
func New(cfg Config, embedder driven.EmbeddingService) (*Index, error) {
	if embedder == nil {
		return nil, domain.ErrEmbeddingUnavailable
	}
	qcfg, err := clientConfig(cfg)
	if err != nil {
		return nil, err
	}
	client, err := qd.NewClient(qcfg)
	if err != nil {
		return nil, fmt.Errorf("creating qdrant client: %w", err)
	}
	collection := cfg.Collection
	if collection == "" {
		collection = DefaultCollection
	}
	return &Index{client: client, collection: collection, embedder: embedder}, nil
}

func clientConfig(cfg Config) (*qd.Config, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("%w: qdrant URL is required", domain.ErrInvalidInput)
	}
	u, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid qdrant URL: %v", domain.ErrInvalidInput, err)
	}
	if u.Hostname() == "" {
		return nil, fmt.Errorf("%w: qdrant URL has no host", domain.ErrInvalidInput)
	}
	port := defaultGRPCPort
	if p := u.Port(); p != "" {
		n, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid qdrant port %q", domain.ErrInvalidInput, p)
		}
		port = n
	}
	return &qd.Config{
		Host:   u.Hostname(),
		Port:   port,
		APIKey: cfg.APIKey,
		UseTLS: u.Scheme == "https",
	}, nil
}

// Add embeds and upserts fragments.
func (ix *Index) Add(ctx context.Context, fragments []domain.Fragment) error {
	if len(fragments) == 0 {
		return nil
	}
	if err := ix.ensureCollection(ctx); err != nil {
		return err
	}

	texts := make([]string, len(fragments))
	for i, f := range fragments {
		texts[i] = f.Content
	}
	vectors, err := ix.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return fmt.Errorf("embedding fragments: %w", err)
	}
	if len(vectors) != len(fragments) {
		return fmt.Errorf("%w: embedding returned %d vectors for %d fragments",
			domain.ErrEmbeddingUnavailable, len(vectors), len(fragments))
	}

	points := make([]*qd.PointStruct, len(fragments))
	for i, f := range fragments {
		points[i] = &qd.PointStruct{
			Id:      qd.NewID(f.ID),
			Vectors: qd.NewVectors(vectors[i]...),
			Payload: buildPayload(f),
		}
	}

	_, err = ix.client.Upsert(ctx, &qd.UpsertPoints{
		CollectionName: ix.collection,
		Points:         points,
		Wait:           qd.PtrOf(true),
	})
	if err != nil {
		return fmt.Errorf("upserting %d points to %s: %w", len(points), ix.collection, err)
	}
	return nil
}

// Delete removes points by fragment id.
func (ix *Index) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	pointIDs := make([]*qd.PointId, len(ids))
	for i, id := range ids {
		pointIDs[i] = qd.NewID(id)
	}
	_, err := ix.client.Delete(ctx, &qd.DeletePoints{
		CollectionName: ix.collection,
		Points:         qd.NewPointsSelector(pointIDs...),
		Wait:           qd.PtrOf(true),
	})
	if err != nil {
		return fmt.Errorf("deleting %d points from %s: %w", len(ids), ix.collection, err)
	}
	return nil
}

// Missing looks ids up without payloads and returns those with no point.
// Before the collection exists every id is missing.
func (ix *Index) Missing(ctx context.Context, ids []string) ([]string, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	if err := ix.ensureCollection(ctx); err != nil {
		return nil, err
	}
	pointIDs := make([]*qd.PointId, len(ids))
	for i, id := range ids {
		pointIDs[i] = qd.NewID(id)
	}
	points, err := ix.client.Get(ctx, &qd.GetPoints{
		CollectionName: ix.collection,
		Ids:            pointIDs,
		WithPayload:    qd.NewWithPayload(false),
		WithVectors:    qd.NewWithVectors(false),
	})
	if err != nil {
		return nil, fmt.Errorf("looking up %d points in %s: %w", len(ids), ix.collection, err)
	}
	found := make(map[string]bool, len(points))
	for _, p := range points {
		found[p.GetId().GetUuid()] = true
	}
	var out []string
	for _, id := range ids {
		if !found[id] {
			out = append(out, id)
		}
	}
	return out, nil
}

// Search embeds query and returns the k nearest fragments.
func (ix *Index) Search(ctx context.Context, query string, k int, filter *driven.VectorFilter) ([]domain.Fragment, error) {
	if k <= 0 {
		return nil, nil
	}
	vector, err := ix.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	points, err := ix.client.Query(ctx, &qd.QueryPoints{
		CollectionName: ix.collection,
		Query:          qd.NewQuery(vector...),
		Filter:         buildFilter(filter),
		Limit:          qd.PtrOf(uint64(k)),
		WithPayload:    qd.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("querying %s: %w", ix.collection, err)
	}

	out := make([]domain.Fragment, 0, len(points))
	for _, p := range points {
		f := fragmentFromPayload(p.GetPayload())
		f.ID = p.GetId().GetUuid()
		f.Score = float64(p.GetScore())
		out = append(out, f)
	}
	return out, nil
}

// Close closes the gRPC connection.
func (ix *Index) Close() error {
	if err := ix.client.Close(); err != nil {
		return fmt.Errorf("closing qdrant client: %w", err)
	}
	return nil
}

// ensureCollection creates the collection if needed. A failed attempt is
// retried on the next call.
func (ix *Index) ensureCollection(ctx context.Context) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if ix.created {
		return nil
	}
	exists, err := ix.client.CollectionExists(ctx, ix.collection)
	if err != nil {
		return fmt.Errorf("checking collection %s: %w", ix.collection, err)
	}
	if !exists {
		err = ix.client.CreateCollection(ctx, &qd.CreateCollection{
			CollectionName: ix.collection,
			VectorsConfig: qd.NewVectorsConfig(&qd.VectorParams{
				Size:     uint64(ix.embedder.Dimensions()),
				Distance: qd.Distance_Cosine,
			}),
		})
		if err != nil {
			return fmt.Errorf("creating collection %s: %w", ix.collection, err)
		}
	}
	ix.created = true
	return nil
}

func buildPayload(f domain.Fragment) map[string]*qd.Value {
	return map[string]*qd.Value{
		keyContent:    qd.NewValueString(f.Content),
		keyDocumentID: qd.NewValueString(f.ParentDocumentID),
		keyVersionID:  qd.NewValueString(f.ParentVersionID),
		keySequence:   qd.NewValueInt(int64(f.SequenceIndex)),
		keyDocType:    qd.NewValueString(string(f.DocType)),
		keyUserID:     qd.NewValueString(f.Metadata.UserID),
		keyCategory:   qd.NewValueString(f.Metadata.Category),
		keyDishName:   qd.NewValueString(f.Metadata.DishName),
		keyDifficulty: qd.NewValueString(f.Metadata.Difficulty),
		keySource:     qd.NewValueString(f.Metadata.Source),
	}
}

func fragmentFromPayload(payload map[string]*qd.Value) domain.Fragment {
	str := func(key string) string { return payload[key].GetStringValue() }
	return domain.Fragment{
		ParentDocumentID: str(keyDocumentID),
		ParentVersionID:  str(keyVersionID),
		SequenceIndex:    int(payload[keySequence].GetIntegerValue()),
		DocType:          domain.DocType(str(keyDocType)),
		Content:          str(keyContent),
		Metadata: domain.FragmentMetadata{
			UserID:     str(keyUserID),
			Category:   str(keyCategory),
			DishName:   str(keyDishName),
			Difficulty: str(keyDifficulty),
			Source:     str(keySource),
		},
	}
}

// buildFilter ANDs the owner with each non-empty label list; labels within a list are ORed.
func buildFilter(f *driven.VectorFilter) *qd.Filter {
	if f == nil {
		return nil
	}
	var must []*qd.Condition
	if f.OwnerID != "" {
		must = append(must, qd.NewMatch(keyUserID, f.OwnerID))
	}
	if len(f.Categories) > 0 {
		must = append(must, qd.NewMatchKeywords(keyCategory, f.Categories...))
	}
	if len(f.Difficulties) > 0 {
		must = append(must, qd.NewMatchKeywords(keyDifficulty, f.Difficulties...))
	}
	if len(must) == 0 {
		return nil
	}
	return &qd.Filter{Must: must}
}
