package data

import (
	"context"
	"database/sql"
	"encoding/json"
	"math"
	"testing"

	"github.com/google/uuid"
	"github.com/schoolcrm/enrichment/internal/domain/model"
	"github.com/schoolcrm/enrichment/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessageRepo_GetByID(t *testing.T) {
	testutil.WithAutoDB(t, func(db *sql.DB) {
		ctx := context.Background()
		repo := NewMessageRepo(db)
		id := testutil.InsertMessage(t, db, testutil.TestOrgID, testutil.StringPtr("Hola"))

		m, err := repo.GetByID(ctx, id)
		require.NoError(t, err)
		require.NotNil(t, m)
		assert.Equal(t, testutil.TestOrgID, m.OrganizationID)
		require.NotNil(t, m.Content)
		assert.Equal(t, "Hola", *m.Content)

		m, err = repo.GetByID(ctx, uuid.NewString())
		require.NoError(t, err)
		assert.Nil(t, m)

		m, err = repo.GetByID(ctx, "not-a-uuid")
		require.NoError(t, err)
		assert.Nil(t, m)
	})
}

func TestNormalizedTextRepo_UpsertAndGetMany(t *testing.T) {
	testutil.WithAutoDB(t, func(db *sql.DB) {
		ctx := context.Background()
		repo := NewNormalizedTextRepo(db)
		a := testutil.InsertMessage(t, db, testutil.TestOrgID, testutil.StringPtr("a"))
		b := testutil.InsertMessage(t, db, testutil.TestOrgID, testutil.StringPtr("b"))

		require.NoError(t, repo.Upsert(ctx, &model.NormalizedText{MessageID: a, NormalizedText: "a", TextHash: "h1", Language: "und", TokensCount: 2}))
		require.NoError(t, repo.Upsert(ctx, &model.NormalizedText{MessageID: a, NormalizedText: "a2", TextHash: "h2", Language: "und", TokensCount: 2}))

		got, err := repo.Get(ctx, a)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, "a2", got.NormalizedText)
		assert.Equal(t, "h2", got.TextHash)

		missing, err := repo.Get(ctx, b)
		require.NoError(t, err)
		assert.Nil(t, missing)

		many, err := repo.GetMany(ctx, []string{a, b, "junk"})
		require.NoError(t, err)
		assert.Len(t, many, 1)
		assert.Contains(t, many, a)
	})
}

func TestEmbeddingRepo_InsertIsIdempotent(t *testing.T) {
	testutil.WithAutoDB(t, func(db *sql.DB) {
		ctx := context.Background()
		repo := NewEmbeddingRepo(db)
		key := model.EmbeddingKey{EntityType: model.EntityTypeMessage, EntityID: uuid.NewString(), ModelName: "test-embed"}

		inserted, err := repo.Insert(ctx, &model.Embedding{EmbeddingKey: key, Vector: []float32{1, 0, 0}})
		require.NoError(t, err)
		assert.True(t, inserted)

		inserted, err = repo.Insert(ctx, &model.Embedding{EmbeddingKey: key, Vector: []float32{0, 1, 0}})
		require.NoError(t, err)
		assert.False(t, inserted)

		exists, err := repo.Exists(ctx, key)
		require.NoError(t, err)
		assert.True(t, exists)

		stored, err := repo.Get(ctx, key)
		require.NoError(t, err)
		require.NotNil(t, stored)
		assert.Equal(t, []float32{1, 0, 0}, stored.Vector)

		_, err = repo.Insert(ctx, &model.Embedding{EmbeddingKey: key, Vector: nil})
		require.ErrorIs(t, err, ErrEmptyVector)
		_, err = repo.Insert(ctx, &model.Embedding{EmbeddingKey: key, Vector: []float32{float32(math.NaN())}})
		require.Error(t, err)
	})
}

func TestEmbeddingRepo_NearestStaysInOrganization(t *testing.T) {
	testutil.WithAutoDB(t, func(db *sql.DB) {
		ctx := context.Background()
		repo := NewEmbeddingRepo(db)
		otherOrg := uuid.NewString()

		src := testutil.InsertMessage(t, db, testutil.TestOrgID, testutil.StringPtr("src"))
		close1 := testutil.InsertMessage(t, db, testutil.TestOrgID, testutil.StringPtr("close"))
		far := testutil.InsertMessage(t, db, testutil.TestOrgID, testutil.StringPtr("far"))
		foreign := testutil.InsertMessage(t, db, otherOrg, testutil.StringPtr("foreign"))

		vectors := map[string][]float32{
			src:     {1, 0},
			close1:  {0.9, 0.1},
			far:     {0, 1},
			foreign: {1, 0},
		}
		for id, v := range vectors {
			_, err := repo.Insert(ctx, &model.Embedding{
				EmbeddingKey: model.EmbeddingKey{EntityType: model.EntityTypeMessage, EntityID: id, ModelName: "m"},
				Vector:       v,
			})
			require.NoError(t, err)
		}

		got, err := repo.Nearest(ctx, model.EmbeddingKey{EntityType: model.EntityTypeMessage, EntityID: src, ModelName: "m"}, 5)
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, close1, got[0].EntityID)
		assert.Equal(t, far, got[1].EntityID)
		assert.Greater(t, got[0].Similarity, got[1].Similarity)
	})
}

func TestAnnotationRepo_UpsertOverwrites(t *testing.T) {
	testutil.WithAutoDB(t, func(db *sql.DB) {
		ctx := context.Background()
		repo := NewAnnotationRepo(db)
		id := uuid.NewString()

		degraded := &model.Annotation{
			EntityType:     model.EntityTypeMessage,
			EntityID:       id,
			AnnotationType: model.AnnotationTypeIntent,
			Value:          json.RawMessage(`{"intent":"unknown","stage":"unknown"}`),
			ModelUsed:      "router",
			Degraded:       true,
		}
		require.NoError(t, repo.Upsert(ctx, degraded))
		assert.Equal(t, model.AnnotationVersion, degraded.Version)

		fresh := &model.Annotation{
			EntityType:     model.EntityTypeMessage,
			EntityID:       id,
			AnnotationType: model.AnnotationTypeIntent,
			Value:          json.RawMessage(`{"intent":"pricing","stage":"consideration"}`),
			ModelUsed:      "router",
			Confidence:     model.ConfidenceModel,
		}
		require.NoError(t, repo.Upsert(ctx, fresh))

		got, err := repo.Get(ctx, model.EntityTypeMessage, id, model.AnnotationTypeIntent)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.False(t, got.Degraded)
		assert.JSONEq(t, `{"intent":"pricing","stage":"consideration"}`, string(got.Value))
		assert.InDelta(t, model.ConfidenceModel, got.Confidence, 1e-9)

		missing, err := repo.Get(ctx, model.EntityTypeMessage, id, model.AnnotationTypeSemanticNeighbors)
		require.NoError(t, err)
		assert.Nil(t, missing)
	})
}

func TestIntentCacheRepo_HitsSurviveRefresh(t *testing.T) {
	testutil.WithAutoDB(t, func(db *sql.DB) {
		ctx := context.Background()
		repo := NewIntentCacheRepo(db)

		miss, err := repo.Get(ctx, "nope")
		require.NoError(t, err)
		assert.Nil(t, miss)

		entry := &model.IntentCacheEntry{
			TextHash: "abc", NormalizedText: "hola", Intent: "greeting", Stage: "awareness",
			ModelUsed: "router", Confidence: model.ConfidenceModel,
		}
		require.NoError(t, repo.Upsert(ctx, entry))
		require.NoError(t, repo.IncrementHits(ctx, "abc"))
		require.NoError(t, repo.IncrementHits(ctx, "abc"))

		entry.Intent = "question"
		require.NoError(t, repo.Upsert(ctx, entry))
		assert.Equal(t, int64(2), entry.HitCount)

		got, err := repo.Get(ctx, "abc")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, "question", got.Intent)
		assert.Equal(t, int64(2), got.HitCount)

		require.Error(t, repo.Upsert(ctx, &model.IntentCacheEntry{TextHash: "x"}))
	})
}
