package ingest

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/LogitTrans/cargolink/internal/models"
)

type fakeRepo struct {
	created []models.CargoCreateInput
	nextID  uint64
}

func (f *fakeRepo) CreateCargo(ctx context.Context, in models.CargoCreateInput, status models.CargoStatus, ownerID *string, approvedBy *string) (*models.Cargo, error) {
	f.created = append(f.created, in)
	f.nextID++
	return &models.Cargo{ID: f.nextID, Status: status, SourceType: in.SourceType}, nil
}

type fakeRL struct {
	allowed bool
	key     string
}

func (r *fakeRL) Allow(ctx context.Context, key string, limit int64, window time.Duration) (bool, int64, error) {
	r.key = key
	return r.allowed, 1, nil
}

func sign(private, apiKey, createdAt string) string {
	sum := md5.Sum([]byte(private + apiKey + createdAt))
	return hex.EncodeToString(sum[:])
}

func ptr[T any](v T) *T { return &v }

func validItem(sourceID string) Item {
	return Item{
		Input: models.CargoCreateInput{
			Title:          "Металлопрокат",
			Weight:         12,
			LoadingPoint:   "Челябинск",
			UnloadingPoint: "Екатеринбург",
			VehicleType:    models.BodyBoard,
			LoadingType:    models.LoadingTop,
			PaymentMethod:  models.PaymentTransfer,
			SourceID:       ptr(sourceID),
		},
		LoadingDate: time.Now().AddDate(0, 0, 4).Format(time.RFC3339),
	}
}

func TestService_Ingest_Signature(t *testing.T) {
	s := New(&fakeRepo{}, nil, Credentials{"key1": "secret1"}, 60)
	ctx := context.Background()

	// неизвестный ключ
	_, err := s.Ingest(ctx, Batch{APIKey: "nope", CreatedAt: "2026-01-01T00:00:00Z", Hash: "x"})
	require.ErrorIs(t, err, ErrUnauthorized)

	// неверная подпись
	_, err = s.Ingest(ctx, Batch{APIKey: "key1", CreatedAt: "2026-01-01T00:00:00Z", Hash: "deadbeef"})
	require.ErrorIs(t, err, ErrUnauthorized)

	// подпись от другого created_at
	_, err = s.Ingest(ctx, Batch{
		APIKey:    "key1",
		CreatedAt: "2026-01-01T00:00:00Z",
		Hash:      sign("secret1", "key1", "2026-01-02T00:00:00Z"),
	})
	require.ErrorIs(t, err, ErrUnauthorized)

	res, err := s.Ingest(ctx, Batch{
		APIKey:    "key1",
		CreatedAt: "2026-01-01T00:00:00Z",
		Hash:      sign("secret1", "key1", "2026-01-01T00:00:00Z"),
	})
	require.NoError(t, err)
	require.Zero(t, res.Accepted)
}

func TestService_Ingest_PartialSuccess(t *testing.T) {
	repo := &fakeRepo{}
	s := New(repo, nil, Credentials{"key1": "secret1"}, 60)

	bad := validItem("ext-2")
	bad.Input.Weight = 0

	createdAt := "2026-02-01T10:00:00Z"
	res, err := s.Ingest(context.Background(), Batch{
		APIKey:    "key1",
		CreatedAt: createdAt,
		Hash:      sign("secret1", "key1", createdAt),
		Items:     []Item{validItem("ext-1"), bad, validItem("ext-3")},
	})
	require.NoError(t, err)
	require.Equal(t, 2, res.Accepted)
	require.Equal(t, 1, res.Rejected)
	require.Len(t, res.Results, 3)

	require.Empty(t, res.Results[0].Error)
	require.NotZero(t, res.Results[0].CargoID)
	require.NotEmpty(t, res.Results[1].Error)
	require.Zero(t, res.Results[1].CargoID)
	require.Equal(t, "ext-2", *res.Results[1].SourceID)

	// источник принудительно api, что бы ни прислал партнёр
	require.Len(t, repo.created, 2)
	for _, in := range repo.created {
		require.Equal(t, models.SourceAPI, in.SourceType)
	}
}

func TestService_Ingest_BadDateRejectsOnlyItem(t *testing.T) {
	repo := &fakeRepo{}
	s := New(repo, nil, Credentials{"key1": "secret1"}, 60)

	bad := validItem("ext-2")
	bad.LoadingDate = "позавчера"
	short := validItem("ext-3")
	short.LoadingDate = time.Now().AddDate(0, 0, 4).Format("2006-01-02")

	createdAt := "2026-02-01T10:00:00Z"
	res, err := s.Ingest(context.Background(), Batch{
		APIKey:    "key1",
		CreatedAt: createdAt,
		Hash:      sign("secret1", "key1", createdAt),
		Items:     []Item{validItem("ext-1"), bad, short},
	})
	require.NoError(t, err)
	require.Equal(t, 2, res.Accepted)
	require.Equal(t, 1, res.Rejected)

	require.Contains(t, res.Results[1].Error, "loading_date")
	require.Equal(t, "ext-2", *res.Results[1].SourceID)

	// короткая дата YYYY-MM-DD тоже проходит
	require.Empty(t, res.Results[2].Error)
	require.NotZero(t, res.Results[2].CargoID)
}

func TestService_Ingest_RateLimited(t *testing.T) {
	rl := &fakeRL{allowed: false}
	s := New(&fakeRepo{}, rl, Credentials{"key1": "secret1"}, 60)

	createdAt := "2026-02-01T10:00:00Z"
	_, err := s.Ingest(context.Background(), Batch{
		APIKey:    "key1",
		CreatedAt: createdAt,
		Hash:      sign("secret1", "key1", createdAt),
		Items:     []Item{validItem("ext-1")},
	})
	require.ErrorIs(t, err, ErrRateLimited)
	require.Contains(t, rl.key, "rl:ingest:key1:")
}
