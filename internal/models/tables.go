package models

import "time"

// Car is the external identity of one vehicle. Created on first sight of a VIN; never
// deleted. VIN->car is 1:1; the mapping is cached in memory by the processor task and
// reconciled against the store on startup.
type Car struct {
	ID             int16     `db:"id" json:"id"`
	EID            int64     `db:"eid" json:"eid"`
	VID            int64     `db:"vid" json:"vid"`
	Model          *string   `db:"model" json:"model"`
	VIN            *string   `db:"vin" json:"vin"`
	Name           *string   `db:"name" json:"name"`
	TrimBadging    *string   `db:"trim_badging" json:"trim_badging"`
	ExteriorColor  *string   `db:"exterior_color" json:"exterior_color"`
	SettingsID     int64     `db:"settings_id" json:"settings_id"`
	DisplayPriority int16    `db:"display_priority" json:"display_priority"`
	InsertedAt     time.Time `db:"inserted_at" json:"inserted_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

// Position is one row per processed driving or charging snapshot. Owns no downstream
// rows; referenced by Drive and ChargingProcess. Distances are kilometers, speeds km/h,
// temperatures Celsius — the ingest layer converts from the upstream mile/mph units.
type Position struct {
	ID                     int64      `db:"id" json:"id"`
	Date                   time.Time  `db:"date" json:"date"`
	Latitude               *float64   `db:"latitude" json:"latitude"`
	Longitude              *float64   `db:"longitude" json:"longitude"`
	Speed                  *float64   `db:"speed" json:"speed"`
	Power                  *float64   `db:"power" json:"power"`
	Odometer               *float64   `db:"odometer" json:"odometer"`
	IdealBatteryRangeKm    *float64   `db:"ideal_battery_range_km" json:"ideal_battery_range_km"`
	RatedBatteryRangeKm    *float64   `db:"rated_battery_range_km" json:"rated_battery_range_km"`
	EstBatteryRangeKm      *float64   `db:"est_battery_range_km" json:"est_battery_range_km"`
	BatteryLevel           *int16     `db:"battery_level" json:"battery_level"`
	UsableBatteryLevel     *int16     `db:"usable_battery_level" json:"usable_battery_level"`
	OutsideTemp            *float64   `db:"outside_temp" json:"outside_temp"`
	InsideTemp             *float64   `db:"inside_temp" json:"inside_temp"`
	CarID                  int16      `db:"car_id" json:"car_id"`
	DriveID                *int64     `db:"drive_id" json:"drive_id"`
	ChargingProcessID      *int64     `db:"charging_process_id" json:"charging_process_id"`
}

// Charges is one row per charging snapshot, always linked to exactly one
// ChargingProcess. Immutable after insert.
type Charges struct {
	ID                int64     `db:"id" json:"id"`
	Date              time.Time `db:"date" json:"date"`
	ChargingProcessID int64     `db:"charging_process_id" json:"charging_process_id"`
	BatteryLevel      *int16    `db:"battery_level" json:"battery_level"`
	ChargeEnergyAdded *float64  `db:"charge_energy_added" json:"charge_energy_added"`
	ChargerVoltage    *float64  `db:"charger_voltage" json:"charger_voltage"`
	ChargerCurrent    *float64  `db:"charger_actual_current" json:"charger_actual_current"`
	ChargerPower      *float64  `db:"charger_power" json:"charger_power"`
	ChargerPhases     *int      `db:"charger_phases" json:"charger_phases"`
	OutsideTemp       *float64  `db:"outside_temp" json:"outside_temp"`
}

// Drive is the aggregate for one driving session. end_km >= start_km once closed; if
// EndDate is set the session is closed and InProgress is false.
type Drive struct {
	ID                 int64      `db:"id" json:"id"`
	CarID              int16      `db:"car_id" json:"car_id"`
	InProgress         bool       `db:"in_progress" json:"in_progress"`
	StartDate          time.Time  `db:"start_date" json:"start_date"`
	EndDate            *time.Time `db:"end_date" json:"end_date"`
	StartPositionID    int64      `db:"start_position_id" json:"start_position_id"`
	EndPositionID      int64      `db:"end_position_id" json:"end_position_id"`
	StartAddressID     *int64     `db:"start_address_id" json:"start_address_id"`
	EndAddressID       *int64     `db:"end_address_id" json:"end_address_id"`
	EndGeofenceID      *int64     `db:"end_geofence_id" json:"end_geofence_id"`
	StartKm            float64    `db:"start_km" json:"start_km"`
	EndKm              float64    `db:"end_km" json:"end_km"`
	Distance           float64    `db:"distance" json:"distance"`
	DurationMin        int16      `db:"duration_min" json:"duration_min"`
	SpeedMax           *float64   `db:"speed_max" json:"speed_max"`
	PowerMax           *float64   `db:"power_max" json:"power_max"`
	PowerMin           *float64   `db:"power_min" json:"power_min"`
	OutsideTempAvg     *float64   `db:"outside_temp_avg" json:"outside_temp_avg"`
	InsideTempAvg      *float64   `db:"inside_temp_avg" json:"inside_temp_avg"`
	StartIdealRangeKm  *float64   `db:"start_ideal_range_km" json:"start_ideal_range_km"`
	EndIdealRangeKm    *float64   `db:"end_ideal_range_km" json:"end_ideal_range_km"`
	StartRatedRangeKm  *float64   `db:"start_rated_range_km" json:"start_rated_range_km"`
	EndRatedRangeKm    *float64   `db:"end_rated_range_km" json:"end_rated_range_km"`
}

// ChargeStat is the charging_status column's closed enum.
type ChargeStat string

const (
	ChargeStart    ChargeStat = "Start"
	ChargeCharging ChargeStat = "Charging"
	ChargeDone     ChargeStat = "Done"
)

// ChargingProcess is the aggregate for one charging session. Shape mirrors Drive.
type ChargingProcess struct {
	ID                  int64      `db:"id" json:"id"`
	CarID               int16      `db:"car_id" json:"car_id"`
	Status              ChargeStat `db:"charging_status" json:"charging_status"`
	StartDate           time.Time  `db:"start_date" json:"start_date"`
	EndDate             *time.Time `db:"end_date" json:"end_date"`
	PositionID          int64      `db:"position_id" json:"position_id"`
	AddressID           *int64     `db:"address_id" json:"address_id"`
	GeofenceID          *int64     `db:"geofence_id" json:"geofence_id"`
	StartBatteryLevel   int16      `db:"start_battery_level" json:"start_battery_level"`
	EndBatteryLevel     int16      `db:"end_battery_level" json:"end_battery_level"`
	StartIdealRangeKm   *float64   `db:"start_ideal_range_km" json:"start_ideal_range_km"`
	EndIdealRangeKm     *float64   `db:"end_ideal_range_km" json:"end_ideal_range_km"`
	StartRatedRangeKm   *float64   `db:"start_rated_range_km" json:"start_rated_range_km"`
	EndRatedRangeKm     *float64   `db:"end_rated_range_km" json:"end_rated_range_km"`
	ChargeEnergyAdded   *float64   `db:"charge_energy_added" json:"charge_energy_added"`
	ChargeEnergyUsed    *float64   `db:"charge_energy_used" json:"charge_energy_used"`
	DurationMin         int16      `db:"duration_min" json:"duration_min"`
	OutsideTempAvg      *float64   `db:"outside_temp_avg" json:"outside_temp_avg"`
	Cost                *float64   `db:"cost" json:"cost"`
}

// StateKind is the classifier's closed set of session kinds.
type StateKind string

const (
	KindOffline  StateKind = "Offline"
	KindAsleep   StateKind = "Asleep"
	KindUnknown  StateKind = "Unknown"
	KindParked   StateKind = "Parked"
	KindDriving  StateKind = "Driving"
	KindCharging StateKind = "Charging"
)

// State is the classifier's own record of the current session kind. One row per
// session; sessions of the same car never overlap and there is at most one open
// session per car.
type State struct {
	ID        int64      `db:"id" json:"id"`
	Kind      StateKind  `db:"kind" json:"kind"`
	StartDate time.Time  `db:"start_date" json:"start_date"`
	EndDate   *time.Time `db:"end_date" json:"end_date"`
	CarID     int16      `db:"car_id" json:"car_id"`
}

// SoftwareUpdate is one row per observed firmware version change.
type SoftwareUpdate struct {
	ID        int64      `db:"id" json:"id"`
	StartDate time.Time  `db:"start_date" json:"start_date"`
	EndDate   *time.Time `db:"end_date" json:"end_date"`
	Version   string     `db:"version" json:"version"`
	CarID     int16      `db:"car_id" json:"car_id"`
}

// Address is a cached reverse-geocoding result keyed by external OSM identifier,
// de-duplicated on (osm_id, osm_type).
type Address struct {
	ID            int64     `db:"id" json:"id"`
	DisplayName   *string   `db:"display_name" json:"display_name"`
	Latitude      *float64  `db:"latitude" json:"latitude"`
	Longitude     *float64  `db:"longitude" json:"longitude"`
	Name          *string   `db:"name" json:"name"`
	HouseNumber   *string   `db:"house_number" json:"house_number"`
	Road          *string   `db:"road" json:"road"`
	City          *string   `db:"city" json:"city"`
	County        *string   `db:"county" json:"county"`
	Postcode      *string   `db:"postcode" json:"postcode"`
	State         *string   `db:"state" json:"state"`
	Country       *string   `db:"country" json:"country"`
	OsmID         *int64    `db:"osm_id" json:"osm_id"`
	OsmType       *string   `db:"osm_type" json:"osm_type"`
	InsertedAt    time.Time `db:"inserted_at" json:"inserted_at"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}

// PreferredRange selects which of the two battery-range columns efficiency
// calculations use.
type PreferredRange string

const (
	RangeIdeal PreferredRange = "Ideal"
	RangeRated PreferredRange = "Rated"
)

// Settings are process-wide tunables, a single row read at startup into the registry.
type Settings struct {
	ID                int32          `db:"id" json:"id"`
	LoggingPeriodMs    int32          `db:"logging_period_ms" json:"logging_period_ms"`
	LogAtStartup       bool           `db:"log_at_startup" json:"log_at_startup"`
	PreferredRange     PreferredRange `db:"preferred_range" json:"preferred_range"`
	UnitOfLength       string         `db:"unit_of_length" json:"unit_of_length"`
	UnitOfTemperature  string         `db:"unit_of_temperature" json:"unit_of_temperature"`
}

// DefaultSettings mirrors the original implementation's Default impl.
func DefaultSettings() Settings {
	return Settings{
		LoggingPeriodMs:   1500,
		LogAtStartup:      true,
		PreferredRange:    RangeRated,
		UnitOfLength:      "km",
		UnitOfTemperature: "C",
	}
}

// Token is the encrypted credential record. Decrypted only in-memory; never logged.
type Token struct {
	ID                    int32     `db:"id" json:"-"`
	AccessToken           []byte    `db:"access_token" json:"-"`
	AccessTokenIV         []byte    `db:"access_token_iv" json:"-"`
	RefreshToken          []byte    `db:"refresh_token" json:"-"`
	RefreshTokenIV        []byte    `db:"refresh_token_iv" json:"-"`
	IDToken               []byte    `db:"id_token" json:"-"`
	IDTokenIV             []byte    `db:"id_token_iv" json:"-"`
	AccessTokenExpiresAt  time.Time `db:"access_token_expires_at" json:"-"`
	TokenType             string    `db:"token_type" json:"-"`
	UpdatedAt             time.Time `db:"updated_at" json:"-"`
}

// AuthResponse is the decrypted, in-memory OAuth2 credential set.
type AuthResponse struct {
	AccessToken  string
	RefreshToken string
	IDToken      string
	ExpiresIn    int64
	TokenType    string
}

// AdminUser is the single operator account gating the Presenter's observer
// commands, grounded on the teacher's handlers/auth.go login flow.
type AdminUser struct {
	ID           int32     `db:"id" json:"id"`
	Username     string    `db:"username" json:"username"`
	PasswordHash string    `db:"password_hash" json:"-"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}
