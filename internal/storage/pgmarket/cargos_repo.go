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

const cargoColumns = `
  id, title, description, status,
  weight, volume, length, width, height,
  loading_point, unloading_point, loading_location_id, unloading_location_id,
  loading_date, is_constant, is_ready,
  vehicle_type, loading_type, payment_method, price, payment_details,
  owner_id, assigned_to_id, managed_by_id,
  source_type, source_id,
  approved_by_id, approval_date, approval_notes,
  views_count, created_at, updated_at`

// CreateCargo пишет груз, точки маршрута и первую запись истории в одной
// транзакции. Объём считает Postgres из габаритов, когда они все заданы:
// ROUND в NUMERIC(10,2) детерминирован, повторный пересчёт даёт то же число.
func (s *Storage) CreateCargo(ctx context.Context, in models.CargoCreateInput, status models.CargoStatus, ownerID *string, approvedBy *string) (*models.Cargo, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "begin")
	}
	defer tx.Rollback(ctx)

	now := time.Now().UTC()
	var approvalDate *time.Time
	if approvedBy != nil {
		approvalDate = &now
	}

	var id uint64
	err = tx.QueryRow(ctx, `
INSERT INTO cargos (
  title, description, status,
  weight, volume, length, width, height,
  loading_point, unloading_point, loading_location_id, unloading_location_id,
  loading_date, is_constant, is_ready,
  vehicle_type, loading_type, payment_method, price, payment_details,
  owner_id, source_type, source_id,
  approved_by_id, approval_date,
  created_at, updated_at
)
VALUES (
  $1,$2,$3,
  $4,
  CASE WHEN $6::numeric IS NOT NULL AND $7::numeric IS NOT NULL AND $8::numeric IS NOT NULL
       THEN ROUND($6::numeric * $7::numeric * $8::numeric, 2)
       ELSE $5::numeric END,
  $6,$7,$8,
  $9,$10,$11,$12,
  $13,$14,$15,
  $16,$17,$18,$19,$20,
  $21,$22,$23,
  $24,$25,
  $26,$26
)
RETURNING id
`, in.Title, in.Description, string(status),
		in.Weight, in.Volume, in.Length, in.Width, in.Height,
		in.LoadingPoint, in.UnloadingPoint, in.LoadingLocationID, in.UnloadingLocationID,
		in.LoadingDate, in.IsConstant, in.IsReady,
		string(in.VehicleType), string(in.LoadingType), string(in.PaymentMethod), in.Price, in.PaymentDetails,
		ownerID, string(in.SourceType), in.SourceID,
		approvedBy, approvalDate,
		now).Scan(&id)
	if err != nil {
		return nil, errors.Wrap(err, "insert cargo")
	}

	for i, lid := range in.WaypointLocationIDs {
		if _, err := tx.Exec(ctx, `
INSERT INTO cargo_waypoints (cargo_id, location_id, position) VALUES ($1,$2,$3)
`, id, lid, i); err != nil {
			return nil, errors.Wrap(err, "insert waypoint")
		}
	}

	if err := appendStatusHistory(ctx, tx, id, status, ownerID, nil, now); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, errors.Wrap(err, "commit")
	}

	return s.GetCargo(ctx, id)
}

func (s *Storage) GetCargo(ctx context.Context, id uint64) (*models.Cargo, error) {
	row := s.db.QueryRow(ctx, `SELECT`+cargoColumns+` FROM cargos WHERE id = $1`, id)
	c, err := scanCargo(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "select cargo")
	}
	if err := s.loadWaypoints(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// StatusUpdate описывает один переход: from сверяется в WHERE, так что
// конкурирующее обновление проигравшему вернёт ErrConflict.
type StatusUpdate struct {
	From models.CargoStatus
	To   models.CargoStatus

	ChangedByID *string
	Comment     *string

	AssignedToID  *string
	ClearAssignee bool
	ApprovedByID  *string
	ApprovalNotes *string
}

// UpdateCargoStatus переводит груз в новый статус с охранным условием по
// текущему статусу и дописывает историю в той же транзакции.
func (s *Storage) UpdateCargoStatus(ctx context.Context, id uint64, upd StatusUpdate) (*models.Cargo, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "begin")
	}
	defer tx.Rollback(ctx)

	now := time.Now().UTC()

	set := []string{"status = $3", "updated_at = $4"}
	args := []any{id, string(upd.From), string(upd.To), now}
	if upd.AssignedToID != nil {
		args = append(args, *upd.AssignedToID)
		set = append(set, fmt.Sprintf("assigned_to_id = $%d", len(args)))
	}
	if upd.ClearAssignee {
		set = append(set, "assigned_to_id = NULL")
	}
	if upd.ApprovedByID != nil {
		args = append(args, *upd.ApprovedByID)
		set = append(set, fmt.Sprintf("approved_by_id = $%d", len(args)))
		args = append(args, now)
		set = append(set, fmt.Sprintf("approval_date = $%d", len(args)))
	}
	if upd.ApprovalNotes != nil {
		args = append(args, *upd.ApprovalNotes)
		set = append(set, fmt.Sprintf("approval_notes = $%d", len(args)))
	}

	tag, err := tx.Exec(ctx,
		`UPDATE cargos SET `+strings.Join(set, ", ")+` WHERE id = $1 AND status = $2`,
		args...)
	if err != nil {
		return nil, errors.Wrap(err, "update cargo status")
	}
	if tag.RowsAffected() == 0 {
		// различаем «нет такого груза» и «статус уже другой»
		var exists bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM cargos WHERE id = $1)`, id).Scan(&exists); err != nil {
			return nil, errors.Wrap(err, "check cargo")
		}
		if !exists {
			return nil, ErrNotFound
		}
		return nil, ErrConflict
	}

	if err := appendStatusHistory(ctx, tx, id, upd.To, upd.ChangedByID, upd.Comment, now); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, errors.Wrap(err, "commit")
	}

	return s.GetCargo(ctx, id)
}

func (s *Storage) CargoStatusHistory(ctx context.Context, cargoID uint64) ([]models.CargoStatusEntry, error) {
	rows, err := s.db.Query(ctx, `
SELECT id, cargo_id, status, changed_by_id, comment, changed_at
FROM cargo_status_history
WHERE cargo_id = $1
ORDER BY changed_at, id
`, cargoID)
	if err != nil {
		return nil, errors.Wrap(err, "select status history")
	}
	defer rows.Close()

	var out []models.CargoStatusEntry
	for rows.Next() {
		var e models.CargoStatusEntry
		var status string
		if err := rows.Scan(&e.ID, &e.CargoID, &status, &e.ChangedByID, &e.Comment, &e.ChangedAt); err != nil {
			return nil, errors.Wrap(err, "scan history")
		}
		e.Status = models.CargoStatus(status)
		out = append(out, e)
	}
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}
	return out, nil
}

func (s *Storage) IncrementCargoViews(ctx context.Context, id uint64) error {
	tag, err := s.db.Exec(ctx, `UPDATE cargos SET views_count = views_count + 1 WHERE id = $1`, id)
	if err != nil {
		return errors.Wrap(err, "increment views")
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SearchCargos строит запрос из непустых полей фильтра.
func (s *Storage) SearchCargos(ctx context.Context, f models.CargoFilter) ([]*models.Cargo, error) {
	var sb strings.Builder
	sb.WriteString(`SELECT` + cargoColumns + ` FROM cargos WHERE TRUE`)
	var args []any

	addIn := func(col string, vals []string) {
		if len(vals) == 0 {
			return
		}
		args = append(args, vals)
		fmt.Fprintf(&sb, " AND %s = ANY($%d)", col, len(args))
	}
	addIn("status", statusStrings(f.Statuses))
	addIn("vehicle_type", bodyStrings(f.VehicleTypes))
	addIn("loading_type", loadingStrings(f.LoadingTypes))

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
	if f.LoadingDateFrom != nil {
		args = append(args, *f.LoadingDateFrom)
		fmt.Fprintf(&sb, " AND loading_date >= $%d", len(args))
	}
	if f.LoadingDateTo != nil {
		args = append(args, *f.LoadingDateTo)
		fmt.Fprintf(&sb, " AND loading_date <= $%d", len(args))
	}
	if f.OwnerID != nil {
		args = append(args, *f.OwnerID)
		fmt.Fprintf(&sb, " AND owner_id = $%d", len(args))
	}
	if f.AssignedToID != nil {
		args = append(args, *f.AssignedToID)
		fmt.Fprintf(&sb, " AND assigned_to_id = $%d", len(args))
	}
	if f.SourceType != nil {
		args = append(args, string(*f.SourceType))
		fmt.Fprintf(&sb, " AND source_type = $%d", len(args))
	}
	if f.MinWeight != nil {
		args = append(args, *f.MinWeight)
		fmt.Fprintf(&sb, " AND weight >= $%d", len(args))
	}
	if f.MaxWeight != nil {
		args = append(args, *f.MaxWeight)
		fmt.Fprintf(&sb, " AND weight <= $%d", len(args))
	}

	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}
	args = append(args, limit)
	fmt.Fprintf(&sb, " ORDER BY loading_date, id LIMIT $%d", len(args))
	if f.Offset > 0 {
		args = append(args, f.Offset)
		fmt.Fprintf(&sb, " OFFSET $%d", len(args))
	}

	rows, err := s.db.Query(ctx, sb.String(), args...)
	if err != nil {
		return nil, errors.Wrap(err, "search cargos")
	}
	cargos, err := collectCargos(rows)
	if err != nil {
		return nil, err
	}
	for _, c := range cargos {
		if err := s.loadWaypoints(ctx, c); err != nil {
			return nil, err
		}
	}
	return cargos, nil
}

// ClaimDueCargos забирает пачку просроченных грузов под SKIP LOCKED:
// несколько воркеров не столкнутся на одних и тех же строках. Каждый груз
// переводится в expired с записью в историю, всё в одной транзакции.
func (s *Storage) ClaimDueCargos(ctx context.Context, before time.Time, limit int) ([]*models.Cargo, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "begin")
	}
	defer tx.Rollback(ctx)

	rows, err := tx.Query(ctx, `
SELECT id FROM cargos
WHERE status = ANY($1) AND is_constant = FALSE AND loading_date < $2
ORDER BY loading_date
LIMIT $3
FOR UPDATE SKIP LOCKED
`, []string{string(models.CargoPending), string(models.CargoManagerApproved)}, before, limit)
	if err != nil {
		return nil, errors.Wrap(err, "select due cargos")
	}
	var ids []uint64
	for rows.Next() {
		var id uint64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, errors.Wrap(err, "scan id")
		}
		ids = append(ids, id)
	}
	rows.Close()
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}
	if len(ids) == 0 {
		return nil, tx.Commit(ctx)
	}

	now := time.Now().UTC()
	if _, err := tx.Exec(ctx, `
UPDATE cargos SET status = $2, updated_at = $3 WHERE id = ANY($1)
`, ids, string(models.CargoExpired), now); err != nil {
		return nil, errors.Wrap(err, "expire cargos")
	}
	for _, id := range ids {
		if err := appendStatusHistory(ctx, tx, id, models.CargoExpired, nil, nil, now); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, errors.Wrap(err, "commit")
	}

	var out []*models.Cargo
	for _, id := range ids {
		c, err := s.GetCargo(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

func (s *Storage) CargoStatistics(ctx context.Context) (*models.CargoStats, error) {
	stats := &models.CargoStats{
		ByStatus: map[models.CargoStatus]uint64{},
		BySource: map[models.SourceType]uint64{},
	}

	rows, err := s.db.Query(ctx, `SELECT status, COUNT(*), COALESCE(SUM(views_count), 0) FROM cargos GROUP BY status`)
	if err != nil {
		return nil, errors.Wrap(err, "select stats by status")
	}
	for rows.Next() {
		var status string
		var cnt, views uint64
		if err := rows.Scan(&status, &cnt, &views); err != nil {
			rows.Close()
			return nil, errors.Wrap(err, "scan stats")
		}
		stats.ByStatus[models.CargoStatus(status)] = cnt
		stats.Total += cnt
		stats.TotalViews += views
	}
	rows.Close()
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}

	rows, err = s.db.Query(ctx, `SELECT source_type, COUNT(*) FROM cargos GROUP BY source_type`)
	if err != nil {
		return nil, errors.Wrap(err, "select stats by source")
	}
	defer rows.Close()
	for rows.Next() {
		var src string
		var cnt uint64
		if err := rows.Scan(&src, &cnt); err != nil {
			return nil, errors.Wrap(err, "scan stats")
		}
		stats.BySource[models.SourceType(src)] = cnt
	}
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}
	return stats, nil
}

func (s *Storage) loadWaypoints(ctx context.Context, c *models.Cargo) error {
	rows, err := s.db.Query(ctx, `
SELECT location_id FROM cargo_waypoints WHERE cargo_id = $1 ORDER BY position
`, c.ID)
	if err != nil {
		return errors.Wrap(err, "select waypoints")
	}
	defer rows.Close()
	c.WaypointLocationIDs = nil
	for rows.Next() {
		var lid uint64
		if err := rows.Scan(&lid); err != nil {
			return errors.Wrap(err, "scan waypoint")
		}
		c.WaypointLocationIDs = append(c.WaypointLocationIDs, lid)
	}
	return errors.Wrap(rows.Err(), "rows")
}

func appendStatusHistory(ctx context.Context, tx pgx.Tx, cargoID uint64, status models.CargoStatus, changedBy *string, comment *string, at time.Time) error {
	_, err := tx.Exec(ctx, `
INSERT INTO cargo_status_history (cargo_id, status, changed_by_id, comment, changed_at)
VALUES ($1,$2,$3,$4,$5)
`, cargoID, string(status), changedBy, comment, at)
	return errors.Wrap(err, "insert status history")
}

func scanCargo(row pgx.Row) (*models.Cargo, error) {
	var c models.Cargo
	var status, vehicleType, loadingType, paymentMethod, sourceType string
	if err := row.Scan(
		&c.ID, &c.Title, &c.Description, &status,
		&c.Weight, &c.Volume, &c.Length, &c.Width, &c.Height,
		&c.LoadingPoint, &c.UnloadingPoint, &c.LoadingLocationID, &c.UnloadingLocationID,
		&c.LoadingDate, &c.IsConstant, &c.IsReady,
		&vehicleType, &loadingType, &paymentMethod, &c.Price, &c.PaymentDetails,
		&c.OwnerID, &c.AssignedToID, &c.ManagedByID,
		&sourceType, &c.SourceID,
		&c.ApprovedByID, &c.ApprovalDate, &c.ApprovalNotes,
		&c.ViewsCount, &c.CreatedAt, &c.UpdatedAt,
	); err != nil {
		return nil, err
	}
	c.Status = models.CargoStatus(status)
	c.VehicleType = models.BodyType(vehicleType)
	c.LoadingType = models.LoadingType(loadingType)
	c.PaymentMethod = models.PaymentMethod(paymentMethod)
	c.SourceType = models.SourceType(sourceType)
	return &c, nil
}

func collectCargos(rows pgx.Rows) ([]*models.Cargo, error) {
	defer rows.Close()
	var out []*models.Cargo
	for rows.Next() {
		c, err := scanCargo(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan cargo")
		}
		out = append(out, c)
	}
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}
	return out, nil
}

func statusStrings(in []models.CargoStatus) []string {
	out := make([]string, 0, len(in))
	for _, v := range in {
		out = append(out, string(v))
	}
	return out
}

func bodyStrings(in []models.BodyType) []string {
	out := make([]string, 0, len(in))
	for _, v := range in {
		out = append(out, string(v))
	}
	return out
}

func loadingStrings(in []models.LoadingType) []string {
	out := make([]string, 0, len(in))
	for _, v := range in {
		out = append(out, string(v))
	}
	return out
}
