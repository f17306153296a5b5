package pgmarket

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"

	"github.com/LogitTrans/cargolink/internal/models"
)

const userColumns = `
  telegram_id, first_name, last_name, username, role, tariff,
  phone_number, company_name, is_active, is_verified, rating,
  created_at, updated_at`

func (s *Storage) CreateOrGetUser(ctx context.Context, in models.UserCreateInput) (*models.User, error) {
	now := time.Now().UTC()

	var tariff *string
	if in.Tariff != nil {
		v := string(*in.Tariff)
		tariff = &v
	}

	_, err := s.db.Exec(ctx, `
INSERT INTO users (
  telegram_id, first_name, last_name, username, role, tariff,
  phone_number, company_name, is_active, is_verified, created_at, updated_at
)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,TRUE,$9,$10,$10)
ON CONFLICT (telegram_id) DO UPDATE SET
  first_name = EXCLUDED.first_name,
  last_name = EXCLUDED.last_name,
  username = EXCLUDED.username,
  updated_at = EXCLUDED.updated_at
`, in.TelegramID, in.FirstName, in.LastName, in.Username, string(in.Role), tariff,
		in.PhoneNumber, in.CompanyName, in.IsVerified, now)
	if err != nil {
		return nil, errors.Wrap(err, "upsert user")
	}

	return s.GetUser(ctx, in.TelegramID)
}

func (s *Storage) GetUser(ctx context.Context, telegramID string) (*models.User, error) {
	row := s.db.QueryRow(ctx, `SELECT`+userColumns+` FROM users WHERE telegram_id = $1`, telegramID)
	u, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "select user")
	}
	return u, nil
}

// ListActiveByRole возвращает активных пользователей роли — получателей
// рассылок (менеджеры, студенты).
func (s *Storage) ListActiveByRole(ctx context.Context, role models.UserRole) ([]*models.User, error) {
	rows, err := s.db.Query(ctx, `
SELECT`+userColumns+`
FROM users
WHERE role = $1 AND is_active
ORDER BY created_at
`, string(role))
	if err != nil {
		return nil, errors.Wrap(err, "select users by role")
	}
	defer rows.Close()

	var out []*models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan user")
		}
		out = append(out, u)
	}
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}
	return out, nil
}

func scanUser(row pgx.Row) (*models.User, error) {
	var u models.User
	var role string
	var tariff *string
	if err := row.Scan(
		&u.TelegramID, &u.FirstName, &u.LastName, &u.Username, &role, &tariff,
		&u.PhoneNumber, &u.CompanyName, &u.IsActive, &u.IsVerified, &u.Rating,
		&u.CreatedAt, &u.UpdatedAt,
	); err != nil {
		return nil, err
	}
	u.Role = models.UserRole(role)
	if tariff != nil {
		v := models.StudentTariff(*tariff)
		u.Tariff = &v
	}
	return &u, nil
}
