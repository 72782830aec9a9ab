package models

import "time"

// OBDSnapshot is one frame of OBD-II telemetry for a vehicle.
type OBDSnapshot struct {
	VehicleID      string    `bson:"vehicle_id" json:"vehicle_id"`
	Timestamp      time.Time `bson:"timestamp" json:"timestamp"`
	RPM            float64   `bson:"rpm" json:"rpm"`
	Speed          float64   `bson:"speed" json:"speed"` // km/h
	CoolantTemp    float64   `bson:"coolant_temp" json:"coolant_temp"` // °C
	BatteryVoltage float64   `bson:"battery_voltage" json:"battery_voltage"`
	EngineLoad     float64   `bson:"engine_load" json:"engine_load"` // percent
	FuelLevel      float64   `bson:"fuel_level" json:"fuel_level"`   // percent
	DTCCodes       []string  `bson:"dtc_codes,omitempty" json:"dtc_codes,omitempty"`
}
