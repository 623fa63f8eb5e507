// Package vector owns the Milvus collection lifecycle: schema, index build,
// upsert, load and nearest-neighbor search.
package vector

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	FieldTextID    = "text_id"
	FieldEmbedding = "embedding"
)

// Client is the slice of the Milvus SDK surface this store uses. The SDK's
// client.Client satisfies it; tests substitute a mock.
type Client interface {
	HasCollection(ctx context.Context, collName string) (bool, error)
	DropCollection(ctx context.Context, collName string, opts ...client.DropCollectionOption) error
	CreateCollection(ctx context.Context, collSchema *entity.Schema, shardNum int32, opts ...client.CreateCollectionOption) error
	DescribeCollection(ctx context.Context, collName string) (*entity.Collection, error)
	CreateIndex(ctx context.Context, collName string, fieldName string, idx entity.Index, async bool, opts ...client.IndexOption) error
	Insert(ctx context.Context, collName string, partitionName string, columns ...entity.Column) (entity.Column, error)
	LoadCollection(ctx context.Context, collName string, async bool, opts ...client.LoadCollectionOption) error
	Search(ctx context.Context, collName string, partitions []string, expr string, outputFields []string, vectors []entity.Vector, vectorField string, metricType entity.MetricType, topK int, sp entity.SearchParam, opts ...client.SearchQueryOptionFunc) ([]client.SearchResult, error)
}

// EnsurePolicy decides what EnsureCollection does when the collection already
// exists. Both policies are deliberate choices the caller must make: Recreate
// destroys existing data.
type EnsurePolicy int

const (
	// PolicyReuse leaves an existing collection untouched.
	PolicyReuse EnsurePolicy = iota
	// PolicyRecreate drops and recreates an existing collection.
	PolicyRecreate
)

// IndexParams tunes the IVF_FLAT index and its search side.
type IndexParams struct {
	NList  int
	NProbe int
}

func DefaultIndexParams() IndexParams {
	return IndexParams{NList: 100, NProbe: 10}
}

// Hit is one nearest-neighbor match. Score is L2 distance: lower is closer.
type Hit struct {
	TextID int64
	Score  float32
}

type Store struct {
	client Client
	params IndexParams
}

func NewStore(c Client, params IndexParams) *Store {
	if params.NList <= 0 {
		params.NList = DefaultIndexParams().NList
	}
	if params.NProbe <= 0 {
		params.NProbe = DefaultIndexParams().NProbe
	}
	return &Store{client: c, params: params}
}

// EnsureCollection creates the collection (integer text_id primary key plus a
// fixed-dimension float vector field) and builds its index. Reports whether a
// collection was created.
func (s *Store) EnsureCollection(ctx context.Context, name string, dim int, policy EnsurePolicy) (bool, error) {
	exists, err := s.client.HasCollection(ctx, name)
	if err != nil {
		return false, classify(err)
	}

	if exists {
		if policy == PolicyReuse {
			return false, nil
		}
		if err := s.client.DropCollection(ctx, name); err != nil {
			return false, classify(err)
		}
	}

	schema := entity.NewSchema().
		WithName(name).
		WithDescription("text segment embeddings").
		WithField(entity.NewField().
			WithName(FieldTextID).
			WithDataType(entity.FieldTypeInt64).
			WithIsPrimaryKey(true)).
		WithField(entity.NewField().
			WithName(FieldEmbedding).
			WithDataType(entity.FieldTypeFloatVector).
			WithDim(int64(dim)))

	if err := s.client.CreateCollection(ctx, schema, entity.DefaultShardNumber); err != nil {
		return false, classify(err)
	}

	idx, err := entity.NewIndexIvfFlat(entity.L2, s.params.NList)
	if err != nil {
		return false, err
	}
	if err := s.client.CreateIndex(ctx, name, FieldEmbedding, idx, false); err != nil {
		return false, classify(err)
	}

	return true, nil
}

// Upsert inserts aligned id/vector slices. Every vector must match the
// collection's declared dimension; one bad vector rejects the whole batch so
// the coordinator never ends up with a half-written unit.
func (s *Store) Upsert(ctx context.Context, name string, ids []int64, vectors [][]float32) error {
	if len(ids) != len(vectors) {
		return fmt.Errorf("ids and vectors length mismatch: %d != %d", len(ids), len(vectors))
	}
	if len(ids) == 0 {
		return nil
	}

	dim, err := s.collectionDim(ctx, name)
	if err != nil {
		return err
	}
	for i, v := range vectors {
		if len(v) != dim {
			return fmt.Errorf("%w: vector %d has dimension %d, collection %q wants %d",
				ErrDimensionMismatch, i, len(v), name, dim)
		}
	}

	_, err = s.client.Insert(ctx, name, "",
		entity.NewColumnInt64(FieldTextID, ids),
		entity.NewColumnFloatVector(FieldEmbedding, dim, vectors))
	return classify(err)
}

// Load makes the collection resident for search. Loading an already-loaded
// collection is cheap, so callers invoke this before every search batch.
func (s *Store) Load(ctx context.Context, name string) error {
	return classify(s.client.LoadCollection(ctx, name, false))
}

// Search returns up to topK hits per query vector, ordered by ascending L2
// distance as ranked by the index.
func (s *Store) Search(ctx context.Context, name string, vectors [][]float32, topK int) ([][]Hit, error) {
	sp, err := entity.NewIndexIvfFlatSearchParam(s.params.NProbe)
	if err != nil {
		return nil, err
	}

	queries := make([]entity.Vector, len(vectors))
	for i, v := range vectors {
		queries[i] = entity.FloatVector(v)
	}

	results, err := s.client.Search(ctx, name, nil, "", []string{FieldTextID},
		queries, FieldEmbedding, entity.L2, topK, sp)
	if err != nil {
		return nil, classify(err)
	}

	hits := make([][]Hit, 0, len(results))
	for _, res := range results {
		if res.Err != nil {
			return nil, classify(res.Err)
		}
		queryHits := make([]Hit, 0, res.ResultCount)
		for i := 0; i < res.ResultCount; i++ {
			id, err := res.IDs.GetAsInt64(i)
			if err != nil {
				return nil, fmt.Errorf("reading result id %d: %w", i, err)
			}
			queryHits = append(queryHits, Hit{TextID: id, Score: res.Scores[i]})
		}
		hits = append(hits, queryHits)
	}
	return hits, nil
}

func (s *Store) collectionDim(ctx context.Context, name string) (int, error) {
	desc, err := s.client.DescribeCollection(ctx, name)
	if err != nil {
		return 0, classify(err)
	}
	if desc == nil || desc.Schema == nil {
		return 0, fmt.Errorf("%w: %s", ErrCollectionNotFound, name)
	}
	for _, f := range desc.Schema.Fields {
		if f.DataType != entity.FieldTypeFloatVector {
			continue
		}
		dim, err := strconv.Atoi(f.TypeParams[entity.TypeParamDim])
		if err != nil {
			return 0, fmt.Errorf("collection %q has invalid dimension: %w", name, err)
		}
		return dim, nil
	}
	return 0, fmt.Errorf("collection %q has no vector field", name)
}

// classify maps SDK/transport errors onto the package taxonomy so callers can
// decide retry vs abort with errors.Is.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if st, ok := status.FromError(err); ok {
		switch st.Code() {
		case codes.Unavailable, codes.DeadlineExceeded, codes.Aborted:
			return fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "not loaded"):
		return fmt.Errorf("%w: %v", ErrCollectionNotLoaded, err)
	case strings.Contains(msg, "collection not found"), strings.Contains(msg, "can't find collection"):
		return fmt.Errorf("%w: %v", ErrCollectionNotFound, err)
	case strings.Contains(msg, "connection refused"), strings.Contains(msg, "connection error"):
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return err
}
