package services

import (
	"context"
	"fmt"
	"math"
	"sort"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"prepai-backend/internal/config"
	"prepai-backend/models"
)

// IndexFilter is an equality filter over chunk metadata fields
// (note_id, owner_id, chunk_id, source_file).
type IndexFilter map[string]interface{}

// VectorIndex is the semantic index over chunk entries. The index is
// externally synchronized; callers perform no locking around it and must
// tolerate duplicate entries for the same note.
type VectorIndex interface {
	// Add embeds and stores all entries in one batch call.
	Add(ctx context.Context, entries []models.ChunkEntry) error
	// Query runs one semantic search and returns up to topK entries.
	Query(ctx context.Context, query string, topK int, filter IndexFilter) ([]models.ChunkEntry, error)
	// Get returns up to limit chunk ids matching the filter.
	Get(ctx context.Context, filter IndexFilter, limit int) ([]string, error)
	// Delete removes every entry matching the filter.
	Delete(ctx context.Context, filter IndexFilter) error
}

// Embedder turns text into a fixed-length vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// MongoVectorIndex keeps chunk entries in a dedicated collection. With
// Atlas vector search enabled, queries go through $vectorSearch; otherwise
// an in-process cosine scan over the filtered entries is used, which is
// fine for per-note result sets.
type MongoVectorIndex struct {
	col      *mongo.Collection
	embedder Embedder
	cfg      *config.Config
}

func NewMongoVectorIndex(col *mongo.Collection, embedder Embedder, cfg *config.Config) *MongoVectorIndex {
	return &MongoVectorIndex{col: col, embedder: embedder, cfg: cfg}
}

func (idx *MongoVectorIndex) Add(ctx context.Context, entries []models.ChunkEntry) error {
	if len(entries) == 0 {
		return nil
	}

	docs := make([]interface{}, 0, len(entries))
	for i := range entries {
		vec, err := idx.embedder.Embed(ctx, entries[i].Text)
		if err != nil {
			return fmt.Errorf("%w: chunk embedding failed: %v", ErrIndexUnavailable, err)
		}
		entries[i].Vector = vec
		docs = append(docs, entries[i])
	}

	if _, err := idx.col.InsertMany(ctx, docs, options.InsertMany().SetOrdered(false)); err != nil {
		return fmt.Errorf("%w: batch add failed: %v", ErrIndexUnavailable, err)
	}
	return nil
}

func (idx *MongoVectorIndex) Query(ctx context.Context, query string, topK int, filter IndexFilter) ([]models.ChunkEntry, error) {
	qvec, err := idx.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: query embedding failed: %v", ErrIndexUnavailable, err)
	}

	if idx.cfg.VectorSearchEnabled {
		return idx.queryAtlas(ctx, qvec, topK, filter)
	}
	return idx.queryScan(ctx, qvec, topK, filter)
}

func (idx *MongoVectorIndex) queryAtlas(ctx context.Context, qvec []float32, topK int, filter IndexFilter) ([]models.ChunkEntry, error) {
	search := bson.D{
		{Key: "index", Value: idx.cfg.VectorIndexName},
		{Key: "path", Value: "vector"},
		{Key: "queryVector", Value: qvec},
		{Key: "numCandidates", Value: topK * 20},
		{Key: "limit", Value: topK},
	}
	if len(filter) > 0 {
		search = append(search, bson.E{Key: "filter", Value: bson.M(filter)})
	}

	cursor, err := idx.col.Aggregate(ctx, mongo.Pipeline{
		bson.D{{Key: "$vectorSearch", Value: search}},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: $vectorSearch failed: %v", ErrIndexUnavailable, err)
	}
	defer cursor.Close(ctx)

	var results []models.ChunkEntry
	if err := cursor.All(ctx, &results); err != nil {
		return nil, fmt.Errorf("%w: decode failed: %v", ErrIndexUnavailable, err)
	}
	return results, nil
}

func (idx *MongoVectorIndex) queryScan(ctx context.Context, qvec []float32, topK int, filter IndexFilter) ([]models.ChunkEntry, error) {
	where := bson.M{}
	for k, v := range filter {
		where[k] = v
	}

	cursor, err := idx.col.Find(ctx, where)
	if err != nil {
		return nil, fmt.Errorf("%w: scan failed: %v", ErrIndexUnavailable, err)
	}
	defer cursor.Close(ctx)

	type scored struct {
		entry models.ChunkEntry
		score float64
	}
	var candidates []scored
	for cursor.Next(ctx) {
		var entry models.ChunkEntry
		if err := cursor.Decode(&entry); err != nil {
			continue
		}
		candidates = append(candidates, scored{entry: entry, score: CosineSimilarity(qvec, entry.Vector)})
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("%w: scan failed: %v", ErrIndexUnavailable, err)
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})

	if len(candidates) > topK {
		candidates = candidates[:topK]
	}
	results := make([]models.ChunkEntry, 0, len(candidates))
	for _, c := range candidates {
		results = append(results, c.entry)
	}
	return results, nil
}

func (idx *MongoVectorIndex) Get(ctx context.Context, filter IndexFilter, limit int) ([]string, error) {
	where := bson.M{}
	for k, v := range filter {
		where[k] = v
	}

	opts := options.Find().SetProjection(bson.M{"chunk_id": 1})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	cursor, err := idx.col.Find(ctx, where, opts)
	if err != nil {
		return nil, fmt.Errorf("%w: get failed: %v", ErrIndexUnavailable, err)
	}
	defer cursor.Close(ctx)

	var ids []string
	for cursor.Next(ctx) {
		var row struct {
			ChunkID string `bson:"chunk_id"`
		}
		if err := cursor.Decode(&row); err != nil {
			continue
		}
		ids = append(ids, row.ChunkID)
	}
	return ids, cursor.Err()
}

func (idx *MongoVectorIndex) Delete(ctx context.Context, filter IndexFilter) error {
	where := bson.M{}
	for k, v := range filter {
		where[k] = v
	}
	if _, err := idx.col.DeleteMany(ctx, where); err != nil {
		return fmt.Errorf("%w: delete failed: %v", ErrIndexUnavailable, err)
	}
	return nil
}

// CosineSimilarity of two vectors; zero when dimensions differ or either
// vector is empty.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
