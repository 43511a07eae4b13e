package mobilelink

import (
	"fmt"
	"strconv"
)

// ParseTanks filters an apparatus list to propane monitors and normalizes
// each into a PropaneTank. Per-record malformations degrade individual
// fields; every matching apparatus always yields a record.
func ParseTanks(apparatus []RawApparatus) []PropaneTank {
	tanks := make([]PropaneTank, 0, len(apparatus))
	for _, a := range apparatus {
		if a.Type != apparatusTypePropane {
			continue
		}

		props := flattenProperties(a.Properties)

		name := a.Name
		if name == "" {
			name = fmt.Sprintf("Tank %d", a.ApparatusID)
		}

		tanks = append(tanks, PropaneTank{
			ApparatusID:      a.ApparatusID,
			Name:             name,
			FuelLevelPercent: parseFuelLevel(props["FuelLevel"]),
			LastReading:      parseString(props["LastReading"]),
			Capacity:         stringifyCapacity(props["Capacity"]),
			IsConnected:      a.IsConnected,
			Device:           parseDevice(props["Device"]),
		})
	}
	return tanks
}

// flattenProperties builds a name->value lookup. Duplicate names: last
// occurrence wins.
func flattenProperties(props []Property) map[string]any {
	out := make(map[string]any, len(props))
	for _, p := range props {
		if p.Name == "" {
			continue
		}
		out[p.Name] = p.Value
	}
	return out
}

func parseDevice(value any) TankDevice {
	obj, ok := value.(map[string]any)
	if !ok {
		return TankDevice{}
	}
	return TankDevice{
		DeviceID:     parseString(obj["deviceId"]),
		DeviceType:   parseString(obj["deviceType"]),
		BatteryLevel: parseString(obj["batteryLevel"]),
		Status:       parseString(obj["status"]),
	}
}

// parseFuelLevel coerces a numeric-or-string percentage. Anything
// non-numeric yields nil, never an error.
func parseFuelLevel(value any) *float64 {
	switch typed := value.(type) {
	case float64:
		return &typed
	case float32:
		f := float64(typed)
		return &f
	case int:
		f := float64(typed)
		return &f
	case int64:
		f := float64(typed)
		return &f
	case string:
		if parsed, err := strconv.ParseFloat(typed, 64); err == nil {
			return &parsed
		}
	}
	return nil
}

// stringifyCapacity preserves the vendor's textual or numeric form as text;
// numeric coercion is left to consumers.
func stringifyCapacity(value any) string {
	switch typed := value.(type) {
	case nil:
		return ""
	case string:
		return typed
	case float64:
		return strconv.FormatFloat(typed, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(typed)
	default:
		return fmt.Sprintf("%v", typed)
	}
}

func parseString(value any) string {
	switch typed := value.(type) {
	case string:
		return typed
	case []byte:
		return string(typed)
	}
	return ""
}
