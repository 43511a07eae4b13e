package mobilelink

// Apparatus type code for propane tank monitors. Other apparatus kinds
// (generators etc.) are skipped during normalization.
const apparatusTypePropane = 2

// Property is one name/value pair from an apparatus record. Values are
// loosely typed: string, number, bool, or a nested object (notably "Device").
type Property struct {
	Name  string `json:"name"`
	Value any    `json:"value"`
}

// RawApparatus is the vendor-shaped record from /api/v2/Apparatus/list.
type RawApparatus struct {
	ApparatusID int64      `json:"apparatusId"`
	Type        int        `json:"type"`
	Name        string     `json:"name"`
	IsConnected *bool      `json:"isConnected"`
	Properties  []Property `json:"properties"`
}

// TankDevice is the monitor hardware attached to a tank. All fields optional.
type TankDevice struct {
	DeviceID     string `json:"device_id,omitempty"`
	DeviceType   string `json:"device_type,omitempty"`
	BatteryLevel string `json:"battery_level,omitempty"`
	Status       string `json:"status,omitempty"`
}

// PropaneTank is the normalized telemetry model. ApparatusID is the sole
// join key downstream; everything else degrades to its zero value or nil
// when the vendor payload is malformed.
type PropaneTank struct {
	ApparatusID      int64      `json:"apparatus_id"`
	Name             string     `json:"name"`
	FuelLevelPercent *float64   `json:"fuel_level_percent"`
	LastReading      string     `json:"last_reading,omitempty"`
	Capacity         string     `json:"capacity,omitempty"`
	IsConnected      *bool      `json:"is_connected"`
	Device           TankDevice `json:"device"`
}
