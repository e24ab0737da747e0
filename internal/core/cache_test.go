package core

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/schoolcrm/enrichment/internal/domain/model"
)

//go:generate mockgen -destination=cache_mock_test.go -package=core github.com/schoolcrm/enrichment/internal/core CacheRepository,IntentCacheRepository

const testHash = "9f86d081884c7d659a2feaa0c55ad015a3bf4f1b2b0b822cd15d6c15b0f00a08"

func testEntry() *model.IntentCacheEntry {
	return &model.IntentCacheEntry{
		TextHash:       testHash,
		NormalizedText: "hello i want to book a trial lesson",
		Intent:         "book_trial",
		Stage:          "lead",
		ModelUsed:      "openai/gpt-4o-mini",
		Confidence:     model.ConfidenceModel,
	}
}

func TestIntentCacheService_Lookup(t *testing.T) {
	t.Parallel()

	entry := testEntry()
	raw, err := json.Marshal(entry)
	require.NoError(t, err)
	key := "enrichment:intent:" + testHash

	tests := []struct {
		name      string
		withCache bool
		setup     func(*MockIntentCacheRepository, *MockCacheRepository)
		want      *model.IntentCacheEntry
		wantErr   bool
	}{
		{
			name: "store hit without redis",
			setup: func(store *MockIntentCacheRepository, _ *MockCacheRepository) {
				store.EXPECT().Get(gomock.Any(), testHash).Return(entry, nil)
				store.EXPECT().IncrementHits(gomock.Any(), testHash).Return(nil)
			},
			want: entry,
		},
		{
			name: "store miss",
			setup: func(store *MockIntentCacheRepository, _ *MockCacheRepository) {
				store.EXPECT().Get(gomock.Any(), testHash).Return(nil, nil)
			},
		},
		{
			name:      "redis hit skips store read",
			withCache: true,
			setup: func(store *MockIntentCacheRepository, cache *MockCacheRepository) {
				cache.EXPECT().Get(gomock.Any(), key).Return(raw, nil)
				store.EXPECT().IncrementHits(gomock.Any(), testHash).Return(errors.New("ignored"))
			},
			want: entry,
		},
		{
			name:      "redis miss populates redis from store",
			withCache: true,
			setup: func(store *MockIntentCacheRepository, cache *MockCacheRepository) {
				cache.EXPECT().Get(gomock.Any(), key).Return(nil, nil)
				store.EXPECT().Get(gomock.Any(), testHash).Return(entry, nil)
				cache.EXPECT().Set(gomock.Any(), key, raw, time.Hour).Return(nil)
				store.EXPECT().IncrementHits(gomock.Any(), testHash).Return(nil)
			},
			want: entry,
		},
		{
			name:      "redis failure falls back to store",
			withCache: true,
			setup: func(store *MockIntentCacheRepository, cache *MockCacheRepository) {
				cache.EXPECT().Get(gomock.Any(), key).Return(nil, errors.New("connection refused"))
				store.EXPECT().Get(gomock.Any(), testHash).Return(nil, nil)
			},
		},
		{
			name:      "garbage in redis is ignored",
			withCache: true,
			setup: func(store *MockIntentCacheRepository, cache *MockCacheRepository) {
				cache.EXPECT().Get(gomock.Any(), key).Return([]byte("{not json"), nil)
				store.EXPECT().Get(gomock.Any(), testHash).Return(nil, nil)
			},
		},
		{
			name: "store error propagates",
			setup: func(store *MockIntentCacheRepository, _ *MockCacheRepository) {
				store.EXPECT().Get(gomock.Any(), testHash).Return(nil, errors.New("db down"))
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ctrl := gomock.NewController(t)
			store := NewMockIntentCacheRepository(ctrl)
			cache := NewMockCacheRepository(ctrl)
			tt.setup(store, cache)

			opts := IntentCacheServiceOptions{Store: store, Config: IntentCacheConfig{TTL: time.Hour}}
			if tt.withCache {
				opts.Cache = cache
			}
			svc := NewIntentCacheService(opts)

			got, err := svc.Lookup(context.Background(), testHash)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestIntentCacheService_Upsert(t *testing.T) {
	t.Parallel()

	t.Run("writes store then redis", func(t *testing.T) {
		t.Parallel()
		ctrl := gomock.NewController(t)
		store := NewMockIntentCacheRepository(ctrl)
		cache := NewMockCacheRepository(ctrl)
		entry := testEntry()

		gomock.InOrder(
			store.EXPECT().Upsert(gomock.Any(), entry).Return(nil),
			cache.EXPECT().Set(gomock.Any(), "enrichment:intent:"+testHash, gomock.Any(), 24*time.Hour).Return(nil),
		)

		svc := NewIntentCacheService(IntentCacheServiceOptions{Store: store, Cache: cache})
		require.NoError(t, svc.Upsert(context.Background(), entry))
	})

	t.Run("store failure skips redis", func(t *testing.T) {
		t.Parallel()
		ctrl := gomock.NewController(t)
		store := NewMockIntentCacheRepository(ctrl)
		cache := NewMockCacheRepository(ctrl)
		store.EXPECT().Upsert(gomock.Any(), gomock.Any()).Return(errors.New("db down"))

		svc := NewIntentCacheService(IntentCacheServiceOptions{Store: store, Cache: cache})
		require.Error(t, svc.Upsert(context.Background(), testEntry()))
	})

	t.Run("invalid entry rejected", func(t *testing.T) {
		t.Parallel()
		ctrl := gomock.NewController(t)
		store := NewMockIntentCacheRepository(ctrl)

		svc := NewIntentCacheService(IntentCacheServiceOptions{Store: store})
		require.Error(t, svc.Upsert(context.Background(), &model.IntentCacheEntry{TextHash: testHash}))
	})
}

func TestIntentCacheService_Invalidate(t *testing.T) {
	t.Parallel()
	ctrl := gomock.NewController(t)
	cache := NewMockCacheRepository(ctrl)
	cache.EXPECT().Delete(gomock.Any(), "custom:"+testHash).Return(true, nil)

	svc := NewIntentCacheService(IntentCacheServiceOptions{
		Store:  NewMockIntentCacheRepository(ctrl),
		Cache:  cache,
		Config: IntentCacheConfig{KeyPrefix: "custom:"},
	})
	require.NoError(t, svc.Invalidate(context.Background(), testHash))
}

func TestIntentCacheService_Contains_DoesNotCountHits(t *testing.T) {
	t.Parallel()
	ctrl := gomock.NewController(t)
	store := NewMockIntentCacheRepository(ctrl)
	store.EXPECT().Get(gomock.Any(), testHash).Return(testEntry(), nil)
	store.EXPECT().Get(gomock.Any(), "other").Return(nil, nil)
	store.EXPECT().IncrementHits(gomock.Any(), gomock.Any()).Times(0)

	svc := NewIntentCacheService(IntentCacheServiceOptions{Store: store})

	ok, err := svc.Contains(context.Background(), testHash)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = svc.Contains(context.Background(), "other")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = svc.Contains(context.Background(), "")
	require.NoError(t, err)
	assert.False(t, ok)
}
