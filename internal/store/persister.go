package store

import (
	"database/sql"
	"fmt"
	"log"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/evtrack/fleetlogger/internal/apperr"
	"github.com/evtrack/fleetlogger/internal/models"
)

// Batch is the Go analog of the original implementation's `Tables`: a group of
// records produced together by one classifier decision, persisted together so ids
// assigned to earlier rows (Position) are available to later ones (Drive,
// Charges, State).
type Batch struct {
	Address         *models.Address
	Position        *models.Position
	Drive           *models.Drive
	ChargingProcess *models.ChargingProcess
	Charges         *models.Charges
	State           *models.State
	SoftwareUpdate  *models.SoftwareUpdate
}

// Persister is the only component in the system that owns a database handle.
type Persister struct {
	db *sqlx.DB
}

// NewPersister wraps an already-open database handle.
func NewPersister(db *sqlx.DB) *Persister {
	return &Persister{db: db}
}

// EnsureCar looks up a car by VIN, creating it (with a fresh settings row) on first
// sight, satisfying §3's Car invariant without handing the database handle to any
// other component.
func (p *Persister) EnsureCar(vin string) (int16, error) {
	car, err := GetOrCreateCar(p.db, vin, models.Car{VIN: &vin})
	if err != nil {
		return 0, err
	}
	return car.ID, nil
}

// Execute writes one Batch in the deterministic order required by §4.5: Position
// first (so later rows can reference its id), then Address (upsert on
// (osm_id,osm_type)), then Drive/ChargingProcess (insert if id==0 else update),
// then dependent Charges, then State. The returned Batch has ids back-filled for
// whatever rows succeeded; on a write failure the failing rows are logged and
// processing continues with the remaining rows in the batch — the in-memory
// aggregate the caller holds is never rolled back.
func (p *Persister) Execute(b Batch) (Batch, error) {
	tx, err := p.db.Beginx()
	if err != nil {
		return b, fmt.Errorf("%w: beginning transaction: %v", apperr.PersistenceFailure, err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	out := b

	if out.Position != nil {
		id, err := insertPosition(tx, out.Position)
		if err != nil {
			log.Printf("[persister] failed to insert position: %v", classify(err))
		} else {
			out.Position.ID = id
			if out.Drive != nil && out.Drive.ID == 0 {
				out.Drive.StartPositionID = id
			}
			if out.ChargingProcess != nil && out.ChargingProcess.ID == 0 {
				out.ChargingProcess.PositionID = id
			}
		}
	}

	if out.Address != nil {
		id, err := upsertAddress(tx, out.Address)
		if err != nil {
			log.Printf("[persister] failed to upsert address: %v", classify(err))
		} else {
			out.Address.ID = id
		}
	}

	if out.Drive != nil {
		id, err := upsertDrive(tx, out.Drive)
		if err != nil {
			log.Printf("[persister] failed to write drive: %v", classify(err))
		} else {
			out.Drive.ID = id
		}
	}

	if out.ChargingProcess != nil {
		id, err := upsertChargingProcess(tx, out.ChargingProcess)
		if err != nil {
			log.Printf("[persister] failed to write charging process: %v", classify(err))
		} else {
			out.ChargingProcess.ID = id
		}
	}

	if out.Charges != nil {
		if out.Charges.ChargingProcessID == 0 && out.ChargingProcess != nil {
			out.Charges.ChargingProcessID = out.ChargingProcess.ID
		}
		id, err := insertCharges(tx, out.Charges)
		if err != nil {
			log.Printf("[persister] failed to insert charges: %v", classify(err))
		} else {
			out.Charges.ID = id
		}
	}

	if out.State != nil {
		id, err := upsertState(tx, out.State)
		if err != nil {
			log.Printf("[persister] failed to write state: %v", classify(err))
		} else {
			out.State.ID = id
		}
	}

	if out.SoftwareUpdate != nil {
		id, err := upsertSoftwareUpdate(tx, out.SoftwareUpdate)
		if err != nil {
			log.Printf("[persister] failed to write software update: %v", classify(err))
		} else {
			out.SoftwareUpdate.ID = id
		}
	}

	if err := tx.Commit(); err != nil {
		return out, fmt.Errorf("%w: committing transaction: %v", apperr.PersistenceFailure, err)
	}
	committed = true

	return out, nil
}

// classify wraps a raw driver error with the PersistenceFailure sentinel so
// callers can use errors.Is against the §7 taxonomy; Postgres constraint errors
// are annotated with the constraint name.
func classify(err error) error {
	var pqErr *pq.Error
	if ok := asPQError(err, &pqErr); ok {
		return fmt.Errorf("%w: %s (constraint %s)", apperr.PersistenceFailure, pqErr.Message, pqErr.Constraint)
	}
	return fmt.Errorf("%w: %v", apperr.PersistenceFailure, err)
}

func asPQError(err error, target **pq.Error) bool {
	if pe, ok := err.(*pq.Error); ok {
		*target = pe
		return true
	}
	return false
}

func insertPosition(tx *sqlx.Tx, pos *models.Position) (int64, error) {
	var id int64
	err := tx.QueryRowx(`
		INSERT INTO positions (date, latitude, longitude, speed, power, odometer,
			ideal_battery_range_km, rated_battery_range_km, est_battery_range_km,
			battery_level, usable_battery_level, outside_temp, inside_temp, car_id,
			drive_id, charging_process_id)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)
		RETURNING id`,
		pos.Date, pos.Latitude, pos.Longitude, pos.Speed, pos.Power, pos.Odometer,
		pos.IdealBatteryRangeKm, pos.RatedBatteryRangeKm, pos.EstBatteryRangeKm,
		pos.BatteryLevel, pos.UsableBatteryLevel, pos.OutsideTemp, pos.InsideTemp,
		pos.CarID, pos.DriveID, pos.ChargingProcessID,
	).Scan(&id)
	return id, err
}

func upsertAddress(tx *sqlx.Tx, a *models.Address) (int64, error) {
	var id int64
	err := tx.QueryRowx(`
		WITH ins AS (
			INSERT INTO addresses (display_name, latitude, longitude, name, house_number,
				road, city, county, postcode, state, country, osm_id, osm_type, updated_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13, now())
			ON CONFLICT (osm_id, osm_type) DO NOTHING
			RETURNING id
		)
		SELECT id FROM ins
		UNION ALL
		SELECT id FROM addresses WHERE osm_id = $12 AND osm_type = $13
		LIMIT 1`,
		a.DisplayName, a.Latitude, a.Longitude, a.Name, a.HouseNumber, a.Road, a.City,
		a.County, a.Postcode, a.State, a.Country, a.OsmID, a.OsmType,
	).Scan(&id)
	return id, err
}

func upsertDrive(tx *sqlx.Tx, d *models.Drive) (int64, error) {
	if d.ID == 0 {
		var id int64
		err := tx.QueryRowx(`
			INSERT INTO drives (car_id, in_progress, start_date, end_date,
				start_position_id, end_position_id, start_address_id, end_address_id,
				end_geofence_id, start_km, end_km, distance, duration_min, speed_max,
				power_max, power_min, outside_temp_avg, inside_temp_avg,
				start_ideal_range_km, end_ideal_range_km, start_rated_range_km, end_rated_range_km)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22)
			RETURNING id`,
			d.CarID, d.InProgress, d.StartDate, d.EndDate, d.StartPositionID, d.EndPositionID,
			d.StartAddressID, d.EndAddressID, d.EndGeofenceID, d.StartKm, d.EndKm, d.Distance,
			d.DurationMin, d.SpeedMax, d.PowerMax, d.PowerMin, d.OutsideTempAvg, d.InsideTempAvg,
			d.StartIdealRangeKm, d.EndIdealRangeKm, d.StartRatedRangeKm, d.EndRatedRangeKm,
		).Scan(&id)
		return id, err
	}

	_, err := tx.Exec(`
		UPDATE drives SET in_progress=$1, end_date=$2, end_position_id=$3, end_address_id=$4,
			end_geofence_id=$5, end_km=$6, distance=$7, duration_min=$8, speed_max=$9,
			power_max=$10, power_min=$11, outside_temp_avg=$12, inside_temp_avg=$13,
			end_ideal_range_km=$14, end_rated_range_km=$15
		WHERE id=$16`,
		d.InProgress, d.EndDate, d.EndPositionID, d.EndAddressID, d.EndGeofenceID, d.EndKm,
		d.Distance, d.DurationMin, d.SpeedMax, d.PowerMax, d.PowerMin, d.OutsideTempAvg,
		d.InsideTempAvg, d.EndIdealRangeKm, d.EndRatedRangeKm, d.ID,
	)
	return d.ID, err
}

func upsertChargingProcess(tx *sqlx.Tx, cp *models.ChargingProcess) (int64, error) {
	if cp.ID == 0 {
		var id int64
		err := tx.QueryRowx(`
			INSERT INTO charging_processes (car_id, charging_status, start_date, end_date,
				position_id, address_id, geofence_id, start_battery_level, end_battery_level,
				start_ideal_range_km, end_ideal_range_km, start_rated_range_km, end_rated_range_km,
				charge_energy_added, charge_energy_used, duration_min, outside_temp_avg, cost)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18)
			RETURNING id`,
			cp.CarID, cp.Status, cp.StartDate, cp.EndDate, cp.PositionID, cp.AddressID,
			cp.GeofenceID, cp.StartBatteryLevel, cp.EndBatteryLevel, cp.StartIdealRangeKm,
			cp.EndIdealRangeKm, cp.StartRatedRangeKm, cp.EndRatedRangeKm, cp.ChargeEnergyAdded,
			cp.ChargeEnergyUsed, cp.DurationMin, cp.OutsideTempAvg, cp.Cost,
		).Scan(&id)
		return id, err
	}

	_, err := tx.Exec(`
		UPDATE charging_processes SET charging_status=$1, end_date=$2, end_battery_level=$3,
			end_ideal_range_km=$4, end_rated_range_km=$5, charge_energy_added=$6,
			charge_energy_used=$7, duration_min=$8, outside_temp_avg=$9, address_id=$10,
			geofence_id=$11, cost=$12
		WHERE id=$13`,
		cp.Status, cp.EndDate, cp.EndBatteryLevel, cp.EndIdealRangeKm, cp.EndRatedRangeKm,
		cp.ChargeEnergyAdded, cp.ChargeEnergyUsed, cp.DurationMin, cp.OutsideTempAvg,
		cp.AddressID, cp.GeofenceID, cp.Cost, cp.ID,
	)
	return cp.ID, err
}

func insertCharges(tx *sqlx.Tx, c *models.Charges) (int64, error) {
	var id int64
	err := tx.QueryRowx(`
		INSERT INTO charges (date, charging_process_id, battery_level, charge_energy_added,
			charger_voltage, charger_actual_current, charger_power, charger_phases, outside_temp)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		RETURNING id`,
		c.Date, c.ChargingProcessID, c.BatteryLevel, c.ChargeEnergyAdded, c.ChargerVoltage,
		c.ChargerCurrent, c.ChargerPower, c.ChargerPhases, c.OutsideTemp,
	).Scan(&id)
	return id, err
}

func upsertState(tx *sqlx.Tx, s *models.State) (int64, error) {
	if s.ID == 0 {
		var id int64
		err := tx.QueryRowx(`
			INSERT INTO states (kind, start_date, end_date, car_id)
			VALUES ($1,$2,$3,$4)
			RETURNING id`,
			s.Kind, s.StartDate, s.EndDate, s.CarID,
		).Scan(&id)
		return id, err
	}

	_, err := tx.Exec(`UPDATE states SET end_date=$1 WHERE id=$2`, s.EndDate, s.ID)
	return s.ID, err
}

func upsertSoftwareUpdate(tx *sqlx.Tx, u *models.SoftwareUpdate) (int64, error) {
	if u.ID == 0 {
		var id int64
		err := tx.QueryRowx(`
			INSERT INTO updates (start_date, end_date, version, car_id)
			VALUES ($1,$2,$3,$4)
			RETURNING id`,
			u.StartDate, u.EndDate, u.Version, u.CarID,
		).Scan(&id)
		return id, err
	}

	_, err := tx.Exec(`UPDATE updates SET end_date=$1 WHERE id=$2`, u.EndDate, u.ID)
	return u.ID, err
}

// GetOrCreateCar looks up a car by VIN, inserting a new row (with a fresh
// car_settings row) if one is not found.
func GetOrCreateCar(db *sqlx.DB, vin string, seed models.Car) (models.Car, error) {
	var car models.Car
	err := db.Get(&car, `SELECT * FROM cars WHERE vin=$1`, vin)
	if err == nil {
		return car, nil
	}
	if err != sql.ErrNoRows {
		return car, fmt.Errorf("%w: %v", apperr.PersistenceFailure, err)
	}

	var settingsID int64
	if err := db.QueryRowx(`INSERT INTO car_settings DEFAULT VALUES RETURNING id`).Scan(&settingsID); err != nil {
		return car, fmt.Errorf("%w: inserting car_settings: %v", apperr.PersistenceFailure, err)
	}
	seed.SettingsID = settingsID

	err = db.QueryRowx(`
		INSERT INTO cars (eid, vid, model, vin, name, trim_badging, exterior_color, settings_id, display_priority)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		RETURNING *`,
		seed.EID, seed.VID, seed.Model, seed.VIN, seed.Name, seed.TrimBadging,
		seed.ExteriorColor, seed.SettingsID, seed.DisplayPriority,
	).StructScan(&car)
	if err != nil {
		return car, fmt.Errorf("%w: inserting car: %v", apperr.PersistenceFailure, err)
	}
	return car, nil
}

// GetVinIDMap loads the VIN->car_id mapping the processor task caches in memory.
func GetVinIDMap(db *sqlx.DB) (map[string]int16, error) {
	var cars []models.Car
	if err := db.Select(&cars, `SELECT * FROM cars ORDER BY id ASC`); err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.PersistenceFailure, err)
	}

	out := make(map[string]int16, len(cars))
	for _, c := range cars {
		if c.VIN != nil {
			out[*c.VIN] = c.ID
		}
	}
	return out, nil
}
