package pgmarket

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"

	"github.com/LogitTrans/cargolink/internal/models"
)

const vehicleColumns = `
  id, owner_id, body_type, loading_type,
  capacity_tons, volume_m3, length, width, height,
  registration_number, registration_country,
  adr, dozvol, tir, is_active, is_verified,
  created_at, updated_at`

func (s *Storage) CreateVehicle(ctx context.Context, in models.VehicleCreateInput) (*models.Vehicle, error) {
	now := time.Now().UTC()

	var id uint64
	err := s.db.QueryRow(ctx, `
INSERT INTO vehicles (
  owner_id, body_type, loading_type,
  capacity_tons, volume_m3, length, width, height,
  registration_number, registration_country,
  adr, dozvol, tir, created_at, updated_at
)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$14)
RETURNING id
`, in.OwnerID, string(in.BodyType), string(in.LoadingType),
		in.CapacityTons, in.VolumeM3, in.Length, in.Width, in.Height,
		in.RegistrationNumber, in.RegistrationCountry,
		in.ADR, in.Dozvol, in.TIR, now).Scan(&id)
	if err != nil {
		return nil, errors.Wrap(err, "insert vehicle")
	}

	return s.GetVehicle(ctx, id)
}

func (s *Storage) GetVehicle(ctx context.Context, id uint64) (*models.Vehicle, error) {
	row := s.db.QueryRow(ctx, `SELECT`+vehicleColumns+` FROM vehicles WHERE id = $1`, id)
	v, err := scanVehicle(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "select vehicle")
	}
	return v, nil
}

func (s *Storage) ListVehiclesByOwner(ctx context.Context, ownerID string) ([]*models.Vehicle, error) {
	rows, err := s.db.Query(ctx, `
SELECT`+vehicleColumns+`
FROM vehicles
WHERE owner_id = $1
ORDER BY created_at DESC
`, ownerID)
	if err != nil {
		return nil, errors.Wrap(err, "select vehicles")
	}
	defer rows.Close()

	var out []*models.Vehicle
	for rows.Next() {
		v, err := scanVehicle(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan vehicle")
		}
		out = append(out, v)
	}
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}
	return out, nil
}

func scanVehicle(row pgx.Row) (*models.Vehicle, error) {
	var v models.Vehicle
	var body, loading string
	if err := row.Scan(
		&v.ID, &v.OwnerID, &body, &loading,
		&v.CapacityTons, &v.VolumeM3, &v.Length, &v.Width, &v.Height,
		&v.RegistrationNumber, &v.RegistrationCountry,
		&v.ADR, &v.Dozvol, &v.TIR, &v.IsActive, &v.IsVerified,
		&v.CreatedAt, &v.UpdatedAt,
	); err != nil {
		return nil, err
	}
	v.BodyType = models.BodyType(body)
	v.LoadingType = models.LoadingType(loading)
	return &v, nil
}
