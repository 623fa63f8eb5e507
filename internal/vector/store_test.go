package vector_test

import (
	"context"
	"errors"
	"testing"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/VictorGavo/milvus-search/internal/vector"
)

type mockClient struct {
	mock.Mock
}

func (m *mockClient) HasCollection(ctx context.Context, name string) (bool, error) {
	args := m.Called(ctx, name)
	return args.Bool(0), args.Error(1)
}

func (m *mockClient) DropCollection(ctx context.Context, name string, opts ...client.DropCollectionOption) error {
	return m.Called(ctx, name).Error(0)
}

func (m *mockClient) CreateCollection(ctx context.Context, schema *entity.Schema, shardNum int32, opts ...client.CreateCollectionOption) error {
	return m.Called(ctx, schema, shardNum).Error(0)
}

func (m *mockClient) DescribeCollection(ctx context.Context, name string) (*entity.Collection, error) {
	args := m.Called(ctx, name)
	if c, ok := args.Get(0).(*entity.Collection); ok {
		return c, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockClient) CreateIndex(ctx context.Context, name, field string, idx entity.Index, async bool, opts ...client.IndexOption) error {
	return m.Called(ctx, name, field, idx, async).Error(0)
}

func (m *mockClient) Insert(ctx context.Context, name, partition string, columns ...entity.Column) (entity.Column, error) {
	args := m.Called(ctx, name, partition, columns)
	if c, ok := args.Get(0).(entity.Column); ok {
		return c, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockClient) LoadCollection(ctx context.Context, name string, async bool, opts ...client.LoadCollectionOption) error {
	return m.Called(ctx, name, async).Error(0)
}

func (m *mockClient) Search(ctx context.Context, name string, partitions []string, expr string, outputFields []string, vectors []entity.Vector, vectorField string, metricType entity.MetricType, topK int, sp entity.SearchParam, opts ...client.SearchQueryOptionFunc) ([]client.SearchResult, error) {
	args := m.Called(ctx, name, outputFields, vectors, vectorField, metricType, topK)
	if r, ok := args.Get(0).([]client.SearchResult); ok {
		return r, args.Error(1)
	}
	return nil, args.Error(1)
}

func describeWithDim(name string, dim string) *entity.Collection {
	return &entity.Collection{
		Name: name,
		Schema: &entity.Schema{
			CollectionName: name,
			Fields: []*entity.Field{
				{Name: vector.FieldTextID, DataType: entity.FieldTypeInt64, PrimaryKey: true},
				{Name: vector.FieldEmbedding, DataType: entity.FieldTypeFloatVector, TypeParams: map[string]string{entity.TypeParamDim: dim}},
			},
		},
	}
}

func TestEnsureCollection(t *testing.T) {
	ctx := context.Background()

	t.Run("CreatesWhenAbsent", func(t *testing.T) {
		c := new(mockClient)
		c.On("HasCollection", ctx, "docs").Return(false, nil)
		c.On("CreateCollection", ctx, mock.Anything, mock.Anything).Return(nil)
		c.On("CreateIndex", ctx, "docs", vector.FieldEmbedding, mock.Anything, false).Return(nil)

		store := vector.NewStore(c, vector.DefaultIndexParams())
		created, err := store.EnsureCollection(ctx, "docs", 1536, vector.PolicyReuse)
		require.NoError(t, err)
		assert.True(t, created)
		c.AssertExpectations(t)
	})

	t.Run("ReuseLeavesExisting", func(t *testing.T) {
		c := new(mockClient)
		c.On("HasCollection", ctx, "docs").Return(true, nil)

		store := vector.NewStore(c, vector.DefaultIndexParams())
		created, err := store.EnsureCollection(ctx, "docs", 1536, vector.PolicyReuse)
		require.NoError(t, err)
		assert.False(t, created)
		c.AssertNotCalled(t, "DropCollection", mock.Anything, mock.Anything)
		c.AssertNotCalled(t, "CreateCollection", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("RecreateDropsExisting", func(t *testing.T) {
		c := new(mockClient)
		c.On("HasCollection", ctx, "docs").Return(true, nil)
		c.On("DropCollection", ctx, "docs").Return(nil)
		c.On("CreateCollection", ctx, mock.Anything, mock.Anything).Return(nil)
		c.On("CreateIndex", ctx, "docs", vector.FieldEmbedding, mock.Anything, false).Return(nil)

		store := vector.NewStore(c, vector.DefaultIndexParams())
		created, err := store.EnsureCollection(ctx, "docs", 1536, vector.PolicyRecreate)
		require.NoError(t, err)
		assert.True(t, created)
		c.AssertExpectations(t)
	})
}

func TestUpsert(t *testing.T) {
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		c := new(mockClient)
		c.On("DescribeCollection", ctx, "docs").Return(describeWithDim("docs", "3"), nil)
		c.On("Insert", ctx, "docs", "", mock.MatchedBy(func(cols []entity.Column) bool {
			return len(cols) == 2 && cols[0].Name() == vector.FieldTextID && cols[1].Name() == vector.FieldEmbedding
		})).Return(nil, nil)

		store := vector.NewStore(c, vector.DefaultIndexParams())
		err := store.Upsert(ctx, "docs", []int64{7}, [][]float32{{0.1, 0.2, 0.3}})
		assert.NoError(t, err)
		c.AssertExpectations(t)
	})

	t.Run("DimensionMismatch", func(t *testing.T) {
		c := new(mockClient)
		c.On("DescribeCollection", ctx, "docs").Return(describeWithDim("docs", "3"), nil)

		store := vector.NewStore(c, vector.DefaultIndexParams())
		err := store.Upsert(ctx, "docs", []int64{7}, [][]float32{{0.1, 0.2}})
		assert.ErrorIs(t, err, vector.ErrDimensionMismatch)
		c.AssertNotCalled(t, "Insert", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("CollectionMissing", func(t *testing.T) {
		c := new(mockClient)
		c.On("DescribeCollection", ctx, "docs").Return(nil, errors.New("collection not found[collection=docs]"))

		store := vector.NewStore(c, vector.DefaultIndexParams())
		err := store.Upsert(ctx, "docs", []int64{7}, [][]float32{{0.1, 0.2, 0.3}})
		assert.ErrorIs(t, err, vector.ErrCollectionNotFound)
	})

	t.Run("MisalignedInput", func(t *testing.T) {
		store := vector.NewStore(new(mockClient), vector.DefaultIndexParams())
		err := store.Upsert(ctx, "docs", []int64{1, 2}, [][]float32{{0.1}})
		assert.Error(t, err)
	})
}

func TestSearch(t *testing.T) {
	ctx := context.Background()

	t.Run("PreservesRankOrder", func(t *testing.T) {
		c := new(mockClient)
		ids := entity.NewColumnInt64(vector.FieldTextID, []int64{42, 7, 99})
		c.On("Search", ctx, "docs", []string{vector.FieldTextID}, mock.Anything, vector.FieldEmbedding, entity.L2, 3).
			Return([]client.SearchResult{{ResultCount: 3, IDs: ids, Scores: []float32{0.1, 0.5, 0.9}}}, nil)

		store := vector.NewStore(c, vector.DefaultIndexParams())
		hits, err := store.Search(ctx, "docs", [][]float32{{0.1, 0.2, 0.3}}, 3)
		require.NoError(t, err)
		require.Len(t, hits, 1)
		require.Len(t, hits[0], 3)
		assert.Equal(t, vector.Hit{TextID: 42, Score: 0.1}, hits[0][0])
		assert.Equal(t, vector.Hit{TextID: 7, Score: 0.5}, hits[0][1])
		assert.Equal(t, vector.Hit{TextID: 99, Score: 0.9}, hits[0][2])
	})

	t.Run("NotLoaded", func(t *testing.T) {
		c := new(mockClient)
		c.On("Search", ctx, "docs", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
			Return(nil, errors.New("collection not loaded[collection=docs]"))

		store := vector.NewStore(c, vector.DefaultIndexParams())
		_, err := store.Search(ctx, "docs", [][]float32{{0.1}}, 3)
		assert.ErrorIs(t, err, vector.ErrCollectionNotLoaded)
	})

	t.Run("TransportFailure", func(t *testing.T) {
		c := new(mockClient)
		c.On("Search", ctx, "docs", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
			Return(nil, errors.New("dial tcp 127.0.0.1:19530: connection refused"))

		store := vector.NewStore(c, vector.DefaultIndexParams())
		_, err := store.Search(ctx, "docs", [][]float32{{0.1}}, 3)
		assert.ErrorIs(t, err, vector.ErrUnavailable)
	})
}

func TestLoad(t *testing.T) {
	ctx := context.Background()
	c := new(mockClient)
	c.On("LoadCollection", ctx, "docs", false).Return(nil)

	store := vector.NewStore(c, vector.DefaultIndexParams())
	assert.NoError(t, store.Load(ctx, "docs"))
	c.AssertExpectations(t)
}
