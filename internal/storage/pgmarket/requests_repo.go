package pgmarket

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"

	"github.com/LogitTrans/cargolink/internal/models"
)

const requestColumns = `
  id, carrier_id, vehicle_id,
  loading_point, unloading_point, loading_location_id, unloading_location_id,
  ready_date, vehicle_count,
  price_expectation, payment_terms, notes,
  status, assigned_cargo_id, assigned_by_id, assigned_at,
  created_at, updated_at`

func (s *Storage) CreateRequest(ctx context.Context, in models.CarrierRequestCreateInput) (*models.CarrierRequest, error) {
	now := time.Now().UTC()

	row := s.db.QueryRow(ctx, `
INSERT INTO carrier_requests (
  carrier_id, vehicle_id,
  loading_point, unloading_point, loading_location_id, unloading_location_id,
  ready_date, vehicle_count,
  price_expectation, payment_terms, notes,
  status, created_at, updated_at
)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$13)
RETURNING`+requestColumns+`
`, in.CarrierID, in.VehicleID,
		in.LoadingPoint, in.UnloadingPoint, in.LoadingLocationID, in.UnloadingLocationID,
		in.ReadyDate, in.VehicleCount,
		in.PriceExpectation, in.PaymentTerms, in.Notes,
		string(models.RequestPending), now)

	r, err := scanRequest(row)
	if err != nil {
		return nil, errors.Wrap(err, "insert request")
	}
	return r, nil
}

func (s *Storage) GetRequest(ctx context.Context, id uint64) (*models.CarrierRequest, error) {
	row := s.db.QueryRow(ctx, `SELECT`+requestColumns+` FROM carrier_requests WHERE id = $1`, id)
	r, err := scanRequest(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "select request")
	}
	return r, nil
}

func (s *Storage) SearchRequests(ctx context.Context, f models.RequestFilter) ([]*models.CarrierRequest, error) {
	var sb strings.Builder
	sb.WriteString(`SELECT` + requestColumns + ` FROM carrier_requests WHERE TRUE`)
	var args []any

	if len(f.Statuses) > 0 {
		vals := make([]string, 0, len(f.Statuses))
		for _, v := range f.Statuses {
			vals = append(vals, string(v))
		}
		args = append(args, vals)
		fmt.Fprintf(&sb, " AND status = ANY($%d)", len(args))
	}
	if f.CarrierID != nil {
		args = append(args, *f.CarrierID)
		fmt.Fprintf(&sb, " AND carrier_id = $%d", len(args))
	}
	if len(f.LoadingLocationIDs) > 0 {
		args = append(args, f.LoadingLocationIDs)
		fmt.Fprintf(&sb, " AND loading_location_id = ANY($%d)", len(args))
	}
	if len(f.UnloadingLocationIDs) > 0 {
		args = append(args, f.UnloadingLocationIDs)
		fmt.Fprintf(&sb, " AND unloading_location_id = ANY($%d)", len(args))
	}
	if f.LoadingPointQuery != nil {
		args = append(args, "%"+*f.LoadingPointQuery+"%")
		fmt.Fprintf(&sb, " AND loading_point ILIKE $%d", len(args))
	}
	if f.UnloadingPointQuery != nil {
		args = append(args, "%"+*f.UnloadingPointQuery+"%")
		fmt.Fprintf(&sb, " AND unloading_point ILIKE $%d", len(args))
	}
	if f.ReadyDateFrom != nil {
		args = append(args, *f.ReadyDateFrom)
		fmt.Fprintf(&sb, " AND ready_date >= $%d", len(args))
	}
	if f.ReadyDateTo != nil {
		args = append(args, *f.ReadyDateTo)
		fmt.Fprintf(&sb, " AND ready_date <= $%d", len(args))
	}

	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}
	args = append(args, limit)
	fmt.Fprintf(&sb, " ORDER BY ready_date, id LIMIT $%d", len(args))
	if f.Offset > 0 {
		args = append(args, f.Offset)
		fmt.Fprintf(&sb, " OFFSET $%d", len(args))
	}

	rows, err := s.db.Query(ctx, sb.String(), args...)
	if err != nil {
		return nil, errors.Wrap(err, "search requests")
	}
	return collectRequests(rows)
}

// UpdateRequestStatus — охранное обновление статуса заявки, зеркально
// UpdateCargoStatus, но без истории: история ведётся только по грузам.
func (s *Storage) UpdateRequestStatus(ctx context.Context, id uint64, from, to models.RequestStatus) (*models.CarrierRequest, error) {
	now := time.Now().UTC()

	set := `status = $3, updated_at = $4`
	if to == models.RequestPending || to == models.RequestRejected {
		// отвязываем груз, заявка возвращается в пул или закрывается
		set += `, assigned_cargo_id = NULL, assigned_by_id = NULL, assigned_at = NULL`
	}

	tag, err := s.db.Exec(ctx,
		`UPDATE carrier_requests SET `+set+` WHERE id = $1 AND status = $2`,
		id, string(from), string(to), now)
	if err != nil {
		return nil, errors.Wrap(err, "update request status")
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := s.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM carrier_requests WHERE id = $1)`, id).Scan(&exists); err != nil {
			return nil, errors.Wrap(err, "check request")
		}
		if !exists {
			return nil, ErrNotFound
		}
		return nil, ErrConflict
	}

	return s.GetRequest(ctx, id)
}

func scanRequest(row pgx.Row) (*models.CarrierRequest, error) {
	var r models.CarrierRequest
	var status string
	if err := row.Scan(
		&r.ID, &r.CarrierID, &r.VehicleID,
		&r.LoadingPoint, &r.UnloadingPoint, &r.LoadingLocationID, &r.UnloadingLocationID,
		&r.ReadyDate, &r.VehicleCount,
		&r.PriceExpectation, &r.PaymentTerms, &r.Notes,
		&status, &r.AssignedCargoID, &r.AssignedByID, &r.AssignedAt,
		&r.CreatedAt, &r.UpdatedAt,
	); err != nil {
		return nil, err
	}
	r.Status = models.RequestStatus(status)
	return &r, nil
}

func collectRequests(rows pgx.Rows) ([]*models.CarrierRequest, error) {
	defer rows.Close()
	var out []*models.CarrierRequest
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan request")
		}
		out = append(out, r)
	}
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}
	return out, nil
}
