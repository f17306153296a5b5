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

const locationColumns = `
  id, name, level, parent_id, country_id,
  latitude, longitude, code, additional_data,
  created_at, updated_at`

func (s *Storage) GetLocation(ctx context.Context, id uint64) (*models.Location, error) {
	row := s.db.QueryRow(ctx, `SELECT`+locationColumns+` FROM locations WHERE id = $1`, id)
	l, err := scanLocation(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "select location")
	}
	return l, nil
}

// GetLocations возвращает узлы по списку id, порядок не гарантируется.
// Отсутствующие id молча пропускаются, полноту проверяет вызывающий.
func (s *Storage) GetLocations(ctx context.Context, ids []uint64) ([]*models.Location, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := s.db.Query(ctx, `SELECT`+locationColumns+` FROM locations WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, errors.Wrap(err, "select locations")
	}
	return collectLocations(rows)
}

// ListByLevelWithCoords returns every node of the level that has both
// coordinates filled in. Radius filtering happens in the service layer.
func (s *Storage) ListByLevelWithCoords(ctx context.Context, level models.LocationLevel) ([]*models.Location, error) {
	rows, err := s.db.Query(ctx, `
SELECT`+locationColumns+`
FROM locations
WHERE level = $1 AND latitude IS NOT NULL AND longitude IS NOT NULL
`, int16(level))
	if err != nil {
		return nil, errors.Wrap(err, "select locations by level")
	}
	return collectLocations(rows)
}

// SearchByName ищет по любому слову запроса: имя подходит, если в нём
// встречается хотя бы один токен (регистронезависимо). level и countryID
// опциональны.
func (s *Storage) SearchByName(ctx context.Context, query string, level *models.LocationLevel, countryID *uint64, limit int) ([]*models.Location, error) {
	tokens := strings.Fields(query)
	if len(tokens) == 0 {
		return nil, nil
	}
	if limit <= 0 {
		limit = 20
	}

	var sb strings.Builder
	sb.WriteString(`SELECT` + locationColumns + ` FROM locations WHERE (FALSE`)
	args := make([]any, 0, len(tokens)+3)
	for _, t := range tokens {
		args = append(args, "%"+t+"%")
		fmt.Fprintf(&sb, " OR name ILIKE $%d", len(args))
	}
	sb.WriteString(")")
	if level != nil {
		args = append(args, int16(*level))
		fmt.Fprintf(&sb, " AND level = $%d", len(args))
	}
	if countryID != nil {
		args = append(args, *countryID)
		fmt.Fprintf(&sb, " AND (country_id = $%d OR id = $%d)", len(args), len(args))
	}
	args = append(args, limit)
	fmt.Fprintf(&sb, " ORDER BY level, name LIMIT $%d", len(args))

	rows, err := s.db.Query(ctx, sb.String(), args...)
	if err != nil {
		return nil, errors.Wrap(err, "search locations")
	}
	return collectLocations(rows)
}

// ListChildren returns direct children of a node, or all level-1 roots
// when parentID is nil. Used for the step-by-step choice flow.
func (s *Storage) ListChildren(ctx context.Context, parentID *uint64) ([]*models.Location, error) {
	var (
		rows pgx.Rows
		err  error
	)
	if parentID == nil {
		rows, err = s.db.Query(ctx, `SELECT`+locationColumns+` FROM locations WHERE level = 1 ORDER BY name`)
	} else {
		rows, err = s.db.Query(ctx, `SELECT`+locationColumns+` FROM locations WHERE parent_id = $1 ORDER BY name`, *parentID)
	}
	if err != nil {
		return nil, errors.Wrap(err, "select children")
	}
	return collectLocations(rows)
}

// Hierarchy собирает цепочку предков от страны к узлу. Глубина дерева
// не больше трёх уровней, поэтому обычного цикла по parent_id хватает.
func (s *Storage) Hierarchy(ctx context.Context, id uint64) ([]models.HierarchyEntry, error) {
	var chain []models.HierarchyEntry
	cur := &id
	for i := 0; cur != nil && i < 3; i++ {
		l, err := s.GetLocation(ctx, *cur)
		if err != nil {
			return nil, err
		}
		chain = append(chain, models.HierarchyEntry{ID: l.ID, Name: l.Name, Level: l.Level})
		cur = l.ParentID
	}
	// разворот: страна первой
	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	return chain, nil
}

// UpsertLocation вставляет или обновляет узел по ключу (name, level,
// parent_id). Возвращает итоговую строку.
//
// Для корней parent_id равен NULL, а NULL в уникальном индексе не
// конфликтует сам с собой, поэтому корни обновляются отдельной веткой.
func (s *Storage) UpsertLocation(ctx context.Context, in models.LocationImportInput) (*models.Location, error) {
	now := time.Now().UTC()

	if in.ParentID == nil {
		row := s.db.QueryRow(ctx, `
UPDATE locations SET
  country_id = $3, latitude = $4, longitude = $5, code = $6, additional_data = $7, updated_at = $8
WHERE name = $1 AND level = $2 AND parent_id IS NULL
RETURNING`+locationColumns+`
`, in.Name, int16(in.Level), in.CountryID, in.Latitude, in.Longitude, in.Code, in.AdditionalData, now)

		l, err := scanLocation(row)
		if err == nil {
			return l, nil
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return nil, errors.Wrap(err, "update root location")
		}
		// не нашли, вставляем ниже обычным путём
	}

	row := s.db.QueryRow(ctx, `
INSERT INTO locations (name, level, parent_id, country_id, latitude, longitude, code, additional_data, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$9)
ON CONFLICT (name, level, parent_id) DO UPDATE SET
  country_id = EXCLUDED.country_id,
  latitude = EXCLUDED.latitude,
  longitude = EXCLUDED.longitude,
  code = EXCLUDED.code,
  additional_data = EXCLUDED.additional_data,
  updated_at = EXCLUDED.updated_at
RETURNING`+locationColumns+`
`, in.Name, int16(in.Level), in.ParentID, in.CountryID, in.Latitude, in.Longitude, in.Code, in.AdditionalData, now)

	l, err := scanLocation(row)
	if err != nil {
		return nil, errors.Wrap(err, "upsert location")
	}
	return l, nil
}

// DescendantIDs возвращает id самого узла и всех его потомков. Нужен для
// фильтров по локации: выбор региона должен захватывать его города.
func (s *Storage) DescendantIDs(ctx context.Context, id uint64) ([]uint64, error) {
	rows, err := s.db.Query(ctx, `
WITH RECURSIVE sub AS (
  SELECT id FROM locations WHERE id = $1
  UNION ALL
  SELECT l.id FROM locations l JOIN sub ON l.parent_id = sub.id
)
SELECT id FROM sub
`, id)
	if err != nil {
		return nil, errors.Wrap(err, "select descendants")
	}
	defer rows.Close()

	var out []uint64
	for rows.Next() {
		var v uint64
		if err := rows.Scan(&v); err != nil {
			return nil, errors.Wrap(err, "scan descendant")
		}
		out = append(out, v)
	}
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}
	return out, nil
}

func scanLocation(row pgx.Row) (*models.Location, error) {
	var l models.Location
	var level int16
	if err := row.Scan(
		&l.ID, &l.Name, &level, &l.ParentID, &l.CountryID,
		&l.Latitude, &l.Longitude, &l.Code, &l.AdditionalData,
		&l.CreatedAt, &l.UpdatedAt,
	); err != nil {
		return nil, err
	}
	l.Level = models.LocationLevel(level)
	return &l, nil
}

func collectLocations(rows pgx.Rows) ([]*models.Location, error) {
	defer rows.Close()
	var out []*models.Location
	for rows.Next() {
		l, err := scanLocation(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan location")
		}
		out = append(out, l)
	}
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}
	return out, nil
}
