package sweeper

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/LogitTrans/cargolink/internal/broker/messages"
	"github.com/LogitTrans/cargolink/internal/models"
)

type Repository interface {
	ClaimDueCargos(ctx context.Context, before time.Time, limit int) ([]*models.Cargo, error)
}

type Producer interface {
	Publish(ctx context.Context, topic string, key, value []byte) error
}

// Sweeper периодически переводит просроченные грузы в expired и
// публикует события для рассылки. SKIP LOCKED в хранилище позволяет
// крутить несколько экземпляров без дублей.
type Sweeper struct {
	repo     Repository
	producer Producer
	topic    string

	sweepInterval time.Duration
	batchSize     int

	triggerCh chan struct{}

	startedAtUnixNano int64
	lastCycleUnixNano atomic.Int64
	totalExpired      atomic.Int64
	totalErrors       atomic.Int64
	lastErrorMu       sync.Mutex
	lastError         string
}

func New(repo Repository, producer Producer) *Sweeper {
	return &Sweeper{
		repo:          repo,
		producer:      producer,
		topic:         messages.TopicCargoStatusChanged,
		sweepInterval: time.Minute,
		batchSize:     100,
		triggerCh:     make(chan struct{}, 1),

		startedAtUnixNano: time.Now().UTC().UnixNano(),
	}
}

func (s *Sweeper) WithSettings(interval time.Duration, batchSize int) *Sweeper {
	if interval > 0 {
		s.sweepInterval = interval
	}
	if batchSize > 0 {
		s.batchSize = batchSize
	}
	return s
}

// Trigger forces an immediate sweep cycle (best-effort, non-blocking).
func (s *Sweeper) Trigger() {
	select {
	case s.triggerCh <- struct{}{}:
	default:
	}
}

type Stats struct {
	StartedAt    time.Time  `json:"startedAt"`
	LastCycleAt  *time.Time `json:"lastCycleAt,omitempty"`
	TotalExpired int64      `json:"totalExpired"`
	TotalErrors  int64      `json:"totalErrors"`
	LastError    string     `json:"lastError,omitempty"`
}

func (s *Sweeper) Stats() Stats {
	st := Stats{
		StartedAt:    time.Unix(0, s.startedAtUnixNano).UTC(),
		TotalExpired: s.totalExpired.Load(),
		TotalErrors:  s.totalErrors.Load(),
	}
	if n := s.lastCycleUnixNano.Load(); n > 0 {
		t := time.Unix(0, n).UTC()
		st.LastCycleAt = &t
	}
	s.lastErrorMu.Lock()
	st.LastError = s.lastError
	s.lastErrorMu.Unlock()
	return st
}

func (s *Sweeper) Run(ctx context.Context) error {
	t := time.NewTicker(s.sweepInterval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			s.runOnce(ctx)
		case <-s.triggerCh:
			s.runOnce(ctx)
		}
	}
}

func (s *Sweeper) runOnce(ctx context.Context) {
	now := time.Now().UTC()
	s.lastCycleUnixNano.Store(now.UnixNano())

	for {
		expired, err := s.repo.ClaimDueCargos(ctx, now, s.batchSize)
		if err != nil {
			s.totalErrors.Add(1)
			s.setLastError(err.Error())
			slog.Error("claim due cargos", "error", err.Error())
			return
		}
		if len(expired) == 0 {
			return
		}
		s.totalExpired.Add(int64(len(expired)))

		for _, c := range expired {
			if err := s.publishExpired(ctx, c, now); err != nil {
				s.totalErrors.Add(1)
				s.setLastError(err.Error())
				slog.Error("publish expired cargo", "cargo_id", c.ID, "error", err.Error())
			}
		}

		// полная пачка означает, что просроченных может быть ещё
		if len(expired) < s.batchSize {
			return
		}
	}
}

func (s *Sweeper) publishExpired(ctx context.Context, c *models.Cargo, at time.Time) error {
	if s.producer == nil {
		return nil
	}
	msg := messages.CargoStatusChanged{
		CargoID:   c.ID,
		Title:     c.Title,
		From:      string(models.CargoPending),
		To:        string(models.CargoExpired),
		ChangedAt: at,
		OwnerID:   c.OwnerID,
	}
	b, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return s.producer.Publish(ctx, s.topic, []byte(fmt.Sprintf("%d", c.ID)), b)
}

func (s *Sweeper) setLastError(msg string) {
	s.lastErrorMu.Lock()
	s.lastError = msg
	s.lastErrorMu.Unlock()
}
