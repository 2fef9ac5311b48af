package store

import (
	"fmt"

	"github.com/jmoiron/sqlx"
)

// migrations is an ordered list of idempotent DDL statements, matching the
// teacher's inline-migration style (database/migrations.go) generalized to the
// entities of §3 and §6's persisted-state layout.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS car_settings (
		id BIGSERIAL PRIMARY KEY
	)`,
	`CREATE TABLE IF NOT EXISTS cars (
		id SMALLSERIAL PRIMARY KEY,
		eid BIGINT NOT NULL,
		vid BIGINT NOT NULL,
		model TEXT,
		vin TEXT UNIQUE,
		name TEXT,
		trim_badging TEXT,
		exterior_color TEXT,
		settings_id BIGINT NOT NULL REFERENCES car_settings(id),
		display_priority SMALLINT NOT NULL DEFAULT 1,
		inserted_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS addresses (
		id BIGSERIAL PRIMARY KEY,
		display_name TEXT,
		latitude DOUBLE PRECISION,
		longitude DOUBLE PRECISION,
		name TEXT,
		house_number TEXT,
		road TEXT,
		city TEXT,
		county TEXT,
		postcode TEXT,
		state TEXT,
		country TEXT,
		osm_id BIGINT,
		osm_type TEXT,
		inserted_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		UNIQUE (osm_id, osm_type)
	)`,
	`CREATE TABLE IF NOT EXISTS geofences (
		id BIGSERIAL PRIMARY KEY,
		name TEXT NOT NULL,
		latitude DOUBLE PRECISION NOT NULL,
		longitude DOUBLE PRECISION NOT NULL,
		radius DOUBLE PRECISION NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS drives (
		id BIGSERIAL PRIMARY KEY,
		car_id SMALLINT NOT NULL REFERENCES cars(id),
		in_progress BOOLEAN NOT NULL DEFAULT true,
		start_date TIMESTAMPTZ NOT NULL,
		end_date TIMESTAMPTZ,
		start_position_id BIGINT,
		end_position_id BIGINT,
		start_address_id BIGINT REFERENCES addresses(id),
		end_address_id BIGINT REFERENCES addresses(id),
		end_geofence_id BIGINT REFERENCES geofences(id),
		start_km DOUBLE PRECISION,
		end_km DOUBLE PRECISION,
		distance DOUBLE PRECISION,
		duration_min SMALLINT,
		speed_max DOUBLE PRECISION,
		power_max DOUBLE PRECISION,
		power_min DOUBLE PRECISION,
		outside_temp_avg DOUBLE PRECISION,
		inside_temp_avg DOUBLE PRECISION,
		start_ideal_range_km DOUBLE PRECISION,
		end_ideal_range_km DOUBLE PRECISION,
		start_rated_range_km DOUBLE PRECISION,
		end_rated_range_km DOUBLE PRECISION
	)`,
	`CREATE TABLE IF NOT EXISTS charging_processes (
		id BIGSERIAL PRIMARY KEY,
		car_id SMALLINT NOT NULL REFERENCES cars(id),
		charging_status TEXT NOT NULL,
		start_date TIMESTAMPTZ NOT NULL,
		end_date TIMESTAMPTZ,
		position_id BIGINT,
		address_id BIGINT REFERENCES addresses(id),
		geofence_id BIGINT REFERENCES geofences(id),
		start_battery_level SMALLINT,
		end_battery_level SMALLINT,
		start_ideal_range_km DOUBLE PRECISION,
		end_ideal_range_km DOUBLE PRECISION,
		start_rated_range_km DOUBLE PRECISION,
		end_rated_range_km DOUBLE PRECISION,
		charge_energy_added DOUBLE PRECISION,
		charge_energy_used DOUBLE PRECISION,
		duration_min SMALLINT,
		outside_temp_avg DOUBLE PRECISION,
		cost DOUBLE PRECISION
	)`,
	`CREATE TABLE IF NOT EXISTS positions (
		id BIGSERIAL PRIMARY KEY,
		date TIMESTAMPTZ NOT NULL,
		latitude DOUBLE PRECISION,
		longitude DOUBLE PRECISION,
		speed DOUBLE PRECISION,
		power DOUBLE PRECISION,
		odometer DOUBLE PRECISION,
		ideal_battery_range_km DOUBLE PRECISION,
		rated_battery_range_km DOUBLE PRECISION,
		est_battery_range_km DOUBLE PRECISION,
		battery_level SMALLINT,
		usable_battery_level SMALLINT,
		outside_temp DOUBLE PRECISION,
		inside_temp DOUBLE PRECISION,
		car_id SMALLINT NOT NULL REFERENCES cars(id),
		drive_id BIGINT REFERENCES drives(id),
		charging_process_id BIGINT REFERENCES charging_processes(id)
	)`,
	`CREATE TABLE IF NOT EXISTS charges (
		id BIGSERIAL PRIMARY KEY,
		date TIMESTAMPTZ NOT NULL,
		charging_process_id BIGINT NOT NULL REFERENCES charging_processes(id),
		battery_level SMALLINT,
		charge_energy_added DOUBLE PRECISION,
		charger_voltage DOUBLE PRECISION,
		charger_actual_current DOUBLE PRECISION,
		charger_power DOUBLE PRECISION,
		charger_phases SMALLINT,
		outside_temp DOUBLE PRECISION
	)`,
	`CREATE TABLE IF NOT EXISTS states (
		id BIGSERIAL PRIMARY KEY,
		kind TEXT NOT NULL,
		start_date TIMESTAMPTZ NOT NULL,
		end_date TIMESTAMPTZ,
		car_id SMALLINT NOT NULL REFERENCES cars(id)
	)`,
	`CREATE TABLE IF NOT EXISTS updates (
		id BIGSERIAL PRIMARY KEY,
		start_date TIMESTAMPTZ NOT NULL,
		end_date TIMESTAMPTZ,
		version TEXT NOT NULL,
		car_id SMALLINT NOT NULL REFERENCES cars(id)
	)`,
	`CREATE TABLE IF NOT EXISTS settings (
		id SERIAL PRIMARY KEY,
		logging_period_ms INT NOT NULL DEFAULT 1500,
		log_at_startup BOOLEAN NOT NULL DEFAULT true,
		preferred_range TEXT NOT NULL DEFAULT 'Rated',
		unit_of_length TEXT NOT NULL DEFAULT 'km',
		unit_of_temperature TEXT NOT NULL DEFAULT 'C'
	)`,
	`CREATE TABLE IF NOT EXISTS tokens (
		id SERIAL PRIMARY KEY,
		access_token BYTEA,
		access_token_iv BYTEA,
		refresh_token BYTEA,
		refresh_token_iv BYTEA,
		id_token BYTEA,
		id_token_iv BYTEA,
		access_token_expires_at TIMESTAMPTZ,
		token_type TEXT,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS car_data (
		id BIGSERIAL PRIMARY KEY,
		car_id SMALLINT,
		received_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		payload JSONB NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS admin_users (
		id SERIAL PRIMARY KEY,
		username TEXT UNIQUE NOT NULL,
		password_hash TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS admin_logs (
		id BIGSERIAL PRIMARY KEY,
		action TEXT NOT NULL,
		details TEXT,
		ip_address TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
}

// RunMigrations applies every migration statement in order. Each statement is
// idempotent (CREATE TABLE IF NOT EXISTS), so this is safe to call on every
// startup.
func RunMigrations(db *sqlx.DB) error {
	for i, stmt := range migrations {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("running migration #%d: %w", i, err)
		}
	}
	return nil
}
