package ingest

import (
	"context"
	"crypto/md5"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/pkg/errors"

	"github.com/LogitTrans/cargolink/internal/models"
	"github.com/LogitTrans/cargolink/internal/services/cargos"
)

var (
	// ErrUnauthorized — неизвестный api_key или неверная подпись.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrRateLimited — ключ исчерпал лимит запросов в окне.
	ErrRateLimited = errors.New("rate limited")
)

type Repository interface {
	CreateCargo(ctx context.Context, in models.CargoCreateInput, status models.CargoStatus, ownerID *string, approvedBy *string) (*models.Cargo, error)
}

type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int64, window time.Duration) (bool, int64, error)
}

// Credentials — api_key → private_key интеграционных партнёров.
type Credentials map[string]string

type Service struct {
	repo  Repository
	rl    RateLimiter
	creds Credentials

	limit  int64
	window time.Duration
}

func New(repo Repository, rl RateLimiter, creds Credentials, limitPerMinute int64) *Service {
	if limitPerMinute <= 0 {
		limitPerMinute = 60
	}
	return &Service{
		repo:   repo,
		rl:     rl,
		creds:  creds,
		limit:  limitPerMinute,
		window: 70 * time.Second,
	}
}

// Batch — один запрос внешней системы. Подпись считается как
// md5(private_key + api_key + created_at), created_at передаётся строкой
// и участвует в подписи как есть.
type Batch struct {
	APIKey    string
	CreatedAt string
	Hash      string
	Items     []Item
}

// Item несёт дату погрузки сырой строкой: битая дата в одном элементе
// не должна ронять разбор всей пачки, парсим её по месту.
type Item struct {
	Input       models.CargoCreateInput
	LoadingDate string
}

type ItemResult struct {
	Index    int     `json:"index"`
	SourceID *string `json:"source_id,omitempty"`
	CargoID  uint64  `json:"cargo_id,omitempty"`
	Error    string  `json:"error,omitempty"`
}

type BatchResult struct {
	Accepted int          `json:"accepted"`
	Rejected int          `json:"rejected"`
	Results  []ItemResult `json:"results"`
}

// Ingest принимает пачку грузов от партнёра. Ошибка в одном элементе не
// отбрасывает остальные: каждый элемент получает свой результат.
// Принятые записи сразу публикуются в пул (pending) с источником api.
func (s *Service) Ingest(ctx context.Context, b Batch) (*BatchResult, error) {
	private, ok := s.creds[b.APIKey]
	if !ok {
		return nil, ErrUnauthorized
	}
	if !validSignature(private, b.APIKey, b.CreatedAt, b.Hash) {
		return nil, ErrUnauthorized
	}

	if s.rl != nil {
		now := time.Now().UTC()
		key := fmt.Sprintf("rl:ingest:%s:%s", b.APIKey, now.Format("200601021504"))
		allowed, _, err := s.rl.Allow(ctx, key, s.limit, s.window)
		if err != nil {
			return nil, errors.Wrap(err, "rate limit")
		}
		if !allowed {
			return nil, ErrRateLimited
		}
	}

	res := &BatchResult{Results: make([]ItemResult, 0, len(b.Items))}
	for i, it := range b.Items {
		in := it.Input
		in.SourceType = models.SourceAPI

		r := ItemResult{Index: i, SourceID: in.SourceID}
		d, err := parseLoadingDate(it.LoadingDate)
		if err != nil {
			r.Error = err.Error()
			res.Rejected++
			res.Results = append(res.Results, r)
			continue
		}
		in.LoadingDate = d

		if err := cargos.ValidateCreateInput(in); err != nil {
			r.Error = err.Error()
			res.Rejected++
			res.Results = append(res.Results, r)
			continue
		}

		c, err := s.repo.CreateCargo(ctx, in, models.CargoPending, nil, nil)
		if err != nil {
			r.Error = err.Error()
			res.Rejected++
			res.Results = append(res.Results, r)
			continue
		}
		r.CargoID = c.ID
		res.Accepted++
		res.Results = append(res.Results, r)
	}
	return res, nil
}

// parseLoadingDate принимает RFC 3339 или короткую дату YYYY-MM-DD.
func parseLoadingDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, errors.New("loading_date is required")
	}
	if d, err := time.Parse(time.RFC3339, s); err == nil {
		return d, nil
	}
	d, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, errors.Errorf("invalid loading_date %q", s)
	}
	return d, nil
}

func validSignature(private, apiKey, createdAt, hash string) bool {
	sum := md5.Sum([]byte(private + apiKey + createdAt))
	want := hex.EncodeToString(sum[:])
	return subtle.ConstantTimeCompare([]byte(want), []byte(hash)) == 1
}
