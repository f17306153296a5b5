package pgmarket

import (
	"context"

	"github.com/pkg/errors"
)

func (s *Storage) initSchema(ctx context.Context) error {
	stmts := []string{
		`
CREATE TABLE IF NOT EXISTS users (
  telegram_id TEXT PRIMARY KEY,
  first_name TEXT NOT NULL,
  last_name TEXT NOT NULL DEFAULT '',
  username TEXT NOT NULL DEFAULT '',
  role TEXT NOT NULL,
  tariff TEXT NULL,
  phone_number TEXT NULL,
  company_name TEXT NULL,
  is_active BOOLEAN NOT NULL DEFAULT TRUE,
  is_verified BOOLEAN NOT NULL DEFAULT FALSE,
  rating NUMERIC(3,2) NOT NULL DEFAULT 0,
  created_at TIMESTAMPTZ NOT NULL,
  updated_at TIMESTAMPTZ NOT NULL
)`,
		`CREATE INDEX IF NOT EXISTS idx_users_role_active ON users(role, is_active)`,
		`
CREATE TABLE IF NOT EXISTS vehicles (
  id BIGSERIAL PRIMARY KEY,
  owner_id TEXT NOT NULL REFERENCES users(telegram_id) ON DELETE CASCADE,
  body_type TEXT NOT NULL,
  loading_type TEXT NOT NULL,
  capacity_tons NUMERIC(10,2) NOT NULL,
  volume_m3 NUMERIC(10,2) NOT NULL,
  length NUMERIC(10,2) NOT NULL,
  width NUMERIC(10,2) NOT NULL,
  height NUMERIC(10,2) NOT NULL,
  registration_number TEXT NOT NULL UNIQUE,
  registration_country TEXT NOT NULL,
  adr BOOLEAN NOT NULL DEFAULT FALSE,
  dozvol BOOLEAN NOT NULL DEFAULT FALSE,
  tir BOOLEAN NOT NULL DEFAULT FALSE,
  is_active BOOLEAN NOT NULL DEFAULT TRUE,
  is_verified BOOLEAN NOT NULL DEFAULT FALSE,
  created_at TIMESTAMPTZ NOT NULL,
  updated_at TIMESTAMPTZ NOT NULL
)`,
		`CREATE INDEX IF NOT EXISTS idx_vehicles_owner ON vehicles(owner_id)`,
		`
CREATE TABLE IF NOT EXISTS locations (
  id BIGSERIAL PRIMARY KEY,
  name TEXT NOT NULL,
  level SMALLINT NOT NULL CHECK (level IN (1,2,3)),
  parent_id BIGINT NULL REFERENCES locations(id),
  country_id BIGINT NULL REFERENCES locations(id),
  latitude NUMERIC(10,8) NULL CHECK (latitude BETWEEN -90 AND 90),
  longitude NUMERIC(11,8) NULL CHECK (longitude BETWEEN -180 AND 180),
  code TEXT NULL,
  additional_data JSONB NULL,
  created_at TIMESTAMPTZ NOT NULL,
  updated_at TIMESTAMPTZ NOT NULL,
  UNIQUE (name, level, parent_id)
)`,
		`CREATE INDEX IF NOT EXISTS idx_locations_level ON locations(level)`,
		`CREATE INDEX IF NOT EXISTS idx_locations_country ON locations(country_id)`,
		`CREATE INDEX IF NOT EXISTS idx_locations_parent ON locations(parent_id)`,
		`
CREATE TABLE IF NOT EXISTS cargos (
  id BIGSERIAL PRIMARY KEY,
  title TEXT NOT NULL,
  description TEXT NOT NULL DEFAULT '',
  status TEXT NOT NULL,
  weight NUMERIC(10,2) NOT NULL CHECK (weight >= 0),
  volume NUMERIC(10,2) NULL CHECK (volume >= 0),
  length NUMERIC(10,2) NULL CHECK (length >= 0),
  width NUMERIC(10,2) NULL CHECK (width >= 0),
  height NUMERIC(10,2) NULL CHECK (height >= 0),
  loading_point TEXT NOT NULL,
  unloading_point TEXT NOT NULL,
  loading_location_id BIGINT NULL REFERENCES locations(id),
  unloading_location_id BIGINT NULL REFERENCES locations(id),
  loading_date DATE NOT NULL,
  is_constant BOOLEAN NOT NULL DEFAULT FALSE,
  is_ready BOOLEAN NOT NULL DEFAULT FALSE,
  vehicle_type TEXT NOT NULL,
  loading_type TEXT NOT NULL,
  payment_method TEXT NOT NULL,
  price NUMERIC(10,2) NULL,
  payment_details JSONB NULL,
  owner_id TEXT NULL REFERENCES users(telegram_id),
  assigned_to_id TEXT NULL REFERENCES users(telegram_id),
  managed_by_id TEXT NULL REFERENCES users(telegram_id),
  source_type TEXT NOT NULL DEFAULT 'manual',
  source_id TEXT NULL,
  approved_by_id TEXT NULL REFERENCES users(telegram_id),
  approval_date TIMESTAMPTZ NULL,
  approval_notes TEXT NULL,
  views_count BIGINT NOT NULL DEFAULT 0,
  created_at TIMESTAMPTZ NOT NULL,
  updated_at TIMESTAMPTZ NOT NULL
)`,
		`CREATE INDEX IF NOT EXISTS idx_cargos_status ON cargos(status)`,
		`CREATE INDEX IF NOT EXISTS idx_cargos_loading_date ON cargos(loading_date)`,
		`CREATE INDEX IF NOT EXISTS idx_cargos_owner ON cargos(owner_id)`,
		`CREATE INDEX IF NOT EXISTS idx_cargos_assigned_to ON cargos(assigned_to_id)`,
		`CREATE INDEX IF NOT EXISTS idx_cargos_source ON cargos(source_type, source_id)`,
		`
CREATE TABLE IF NOT EXISTS cargo_waypoints (
  cargo_id BIGINT NOT NULL REFERENCES cargos(id) ON DELETE CASCADE,
  location_id BIGINT NOT NULL REFERENCES locations(id),
  position INT NOT NULL,
  PRIMARY KEY (cargo_id, location_id)
)`,
		`
CREATE TABLE IF NOT EXISTS carrier_requests (
  id BIGSERIAL PRIMARY KEY,
  carrier_id TEXT NOT NULL REFERENCES users(telegram_id) ON DELETE CASCADE,
  vehicle_id BIGINT NULL REFERENCES vehicles(id) ON DELETE SET NULL,
  loading_point TEXT NOT NULL,
  unloading_point TEXT NOT NULL,
  loading_location_id BIGINT NULL REFERENCES locations(id),
  unloading_location_id BIGINT NULL REFERENCES locations(id),
  ready_date DATE NOT NULL,
  vehicle_count INT NOT NULL DEFAULT 1 CHECK (vehicle_count > 0),
  price_expectation NUMERIC(10,2) NULL,
  payment_terms TEXT NULL,
  notes TEXT NULL,
  status TEXT NOT NULL DEFAULT 'pending',
  assigned_cargo_id BIGINT NULL REFERENCES cargos(id) ON DELETE SET NULL,
  assigned_by_id TEXT NULL REFERENCES users(telegram_id),
  assigned_at TIMESTAMPTZ NULL,
  created_at TIMESTAMPTZ NOT NULL,
  updated_at TIMESTAMPTZ NOT NULL
)`,
		`CREATE INDEX IF NOT EXISTS idx_carrier_requests_carrier ON carrier_requests(carrier_id)`,
		`CREATE INDEX IF NOT EXISTS idx_carrier_requests_status ON carrier_requests(status)`,
		`CREATE INDEX IF NOT EXISTS idx_carrier_requests_ready_date ON carrier_requests(ready_date)`,
		`CREATE INDEX IF NOT EXISTS idx_carrier_requests_assigned_cargo ON carrier_requests(assigned_cargo_id)`,
		`
CREATE TABLE IF NOT EXISTS cargo_status_history (
  id BIGSERIAL PRIMARY KEY,
  cargo_id BIGINT NOT NULL REFERENCES cargos(id) ON DELETE CASCADE,
  status TEXT NOT NULL,
  changed_by_id TEXT NULL REFERENCES users(telegram_id),
  comment TEXT NULL,
  changed_at TIMESTAMPTZ NOT NULL
)`,
		`CREATE INDEX IF NOT EXISTS idx_cargo_status_history_cargo ON cargo_status_history(cargo_id, changed_at DESC)`,
	}

	for _, q := range stmts {
		if _, err := s.db.Exec(ctx, q); err != nil {
			return errors.Wrap(err, "init schema")
		}
	}
	return nil
}
