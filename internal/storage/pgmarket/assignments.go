package pgmarket

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"

	"github.com/LogitTrans/cargolink/internal/models"
)

// AssignCargoToRequest связывает груз и заявку перевозчика в одной
// транзакции. Обе строки блокируются FOR UPDATE, сначала груз, потом
// заявка, порядок фиксирован во избежание взаимных блокировок.
// Предусловия перепроверяются уже под блокировкой: гонка двух
// операторов на один груз разрешается в пользу первого, второй
// получает ErrConflict.
func (s *Storage) AssignCargoToRequest(ctx context.Context, cargoID, requestID uint64, assignedBy string) (*models.Cargo, *models.CarrierRequest, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, nil, errors.Wrap(err, "begin")
	}
	defer tx.Rollback(ctx)

	locked, carrierID, err := lockCargoAndRequest(ctx, tx, cargoID, requestID)
	if err != nil {
		return nil, nil, err
	}

	switch models.CargoStatus(locked.cargo) {
	case models.CargoPending, models.CargoManagerApproved:
	default:
		return nil, nil, ErrConflict
	}
	if models.RequestStatus(locked.request) != models.RequestPending {
		return nil, nil, ErrConflict
	}

	now := time.Now().UTC()
	if _, err := tx.Exec(ctx, `
UPDATE cargos SET status = $2, assigned_to_id = $3, managed_by_id = $4, updated_at = $5 WHERE id = $1
`, cargoID, string(models.CargoAssigned), carrierID, assignedBy, now); err != nil {
		return nil, nil, errors.Wrap(err, "assign cargo")
	}
	if err := appendStatusHistory(ctx, tx, cargoID, models.CargoAssigned, &assignedBy, nil, now); err != nil {
		return nil, nil, err
	}

	if _, err := tx.Exec(ctx, `
UPDATE carrier_requests SET status = $2, assigned_cargo_id = $3, assigned_by_id = $4, assigned_at = $5, updated_at = $5
WHERE id = $1
`, requestID, string(models.RequestAssigned), cargoID, assignedBy, now); err != nil {
		return nil, nil, errors.Wrap(err, "assign request")
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, nil, errors.Wrap(err, "commit")
	}

	return s.fetchPair(ctx, cargoID, requestID)
}

// DecideAssignment фиксирует ответ перевозчика на назначение. Принятие
// переводит груз в in_progress, отказ возвращает его в pending со
// снятым исполнителем, а заявка закрывается как rejected. Оба перехода
// груза пишутся в историю статусов той же транзакцией.
func (s *Storage) DecideAssignment(ctx context.Context, requestID uint64, accept bool, decidedBy string) (*models.Cargo, *models.CarrierRequest, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, nil, errors.Wrap(err, "begin")
	}
	defer tx.Rollback(ctx)

	var status string
	var cargoID *uint64
	err = tx.QueryRow(ctx, `
SELECT status, assigned_cargo_id FROM carrier_requests WHERE id = $1 FOR UPDATE
`, requestID).Scan(&status, &cargoID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil, ErrNotFound
	}
	if err != nil {
		return nil, nil, errors.Wrap(err, "lock request")
	}
	if models.RequestStatus(status) != models.RequestAssigned || cargoID == nil {
		return nil, nil, ErrConflict
	}

	var cargoStatus string
	err = tx.QueryRow(ctx, `SELECT status FROM cargos WHERE id = $1 FOR UPDATE`, *cargoID).Scan(&cargoStatus)
	if err != nil {
		return nil, nil, errors.Wrap(err, "lock cargo")
	}
	if models.CargoStatus(cargoStatus) != models.CargoAssigned {
		return nil, nil, ErrConflict
	}

	now := time.Now().UTC()
	if accept {
		if _, err := tx.Exec(ctx, `
UPDATE carrier_requests SET status = $2, updated_at = $3 WHERE id = $1
`, requestID, string(models.RequestAccepted), now); err != nil {
			return nil, nil, errors.Wrap(err, "accept request")
		}
		if _, err := tx.Exec(ctx, `
UPDATE cargos SET status = $2, updated_at = $3 WHERE id = $1
`, *cargoID, string(models.CargoInProgress), now); err != nil {
			return nil, nil, errors.Wrap(err, "start cargo")
		}
		if err := appendStatusHistory(ctx, tx, *cargoID, models.CargoInProgress, &decidedBy, nil, now); err != nil {
			return nil, nil, err
		}
	} else {
		if _, err := tx.Exec(ctx, `
UPDATE carrier_requests SET status = $2, assigned_cargo_id = NULL, assigned_by_id = NULL, assigned_at = NULL, updated_at = $3
WHERE id = $1
`, requestID, string(models.RequestRejected), now); err != nil {
			return nil, nil, errors.Wrap(err, "reject request")
		}
		if _, err := tx.Exec(ctx, `
UPDATE cargos SET status = $2, assigned_to_id = NULL, updated_at = $3 WHERE id = $1
`, *cargoID, string(models.CargoPending), now); err != nil {
			return nil, nil, errors.Wrap(err, "release cargo")
		}
		if err := appendStatusHistory(ctx, tx, *cargoID, models.CargoPending, &decidedBy, nil, now); err != nil {
			return nil, nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, nil, errors.Wrap(err, "commit")
	}

	return s.fetchPair(ctx, *cargoID, requestID)
}

type lockedPair struct {
	cargo   string
	request string
}

func lockCargoAndRequest(ctx context.Context, tx pgx.Tx, cargoID, requestID uint64) (lockedPair, string, error) {
	var p lockedPair
	var carrierID string

	err := tx.QueryRow(ctx, `SELECT status FROM cargos WHERE id = $1 FOR UPDATE`, cargoID).Scan(&p.cargo)
	if errors.Is(err, pgx.ErrNoRows) {
		return p, "", ErrNotFound
	}
	if err != nil {
		return p, "", errors.Wrap(err, "lock cargo")
	}

	err = tx.QueryRow(ctx, `SELECT status, carrier_id FROM carrier_requests WHERE id = $1 FOR UPDATE`, requestID).Scan(&p.request, &carrierID)
	if errors.Is(err, pgx.ErrNoRows) {
		return p, "", ErrNotFound
	}
	if err != nil {
		return p, "", errors.Wrap(err, "lock request")
	}
	return p, carrierID, nil
}

func (s *Storage) fetchPair(ctx context.Context, cargoID, requestID uint64) (*models.Cargo, *models.CarrierRequest, error) {
	c, err := s.GetCargo(ctx, cargoID)
	if err != nil {
		return nil, nil, err
	}
	r, err := s.GetRequest(ctx, requestID)
	if err != nil {
		return nil, nil, err
	}
	return c, r, nil
}
