// Package units provides shared constants and validation for weight units
package units

// Unit constants
const (
	KG = "kg"
	LB = "lb"
	ST = "st"
)

// ValidUnits contains all valid unit values
var ValidUnits = []string{KG, LB, ST}

// IsValid checks if the given unit is in the list of valid units
func IsValid(unit string) bool {
	for _, validUnit := range ValidUnits {
		if unit == validUnit {
			return true
		}
	}
	return false
}

// GetValidUnitsString returns a comma-separated string of valid units for error messages
func GetValidUnitsString() string {
	return "kg, lb, st"
}

// ConvertWeight converts a weight from kilograms to the target units.
// The stores always hold kilograms; conversion happens at the display
// boundary only.
func ConvertWeight(weightKg float64, targetUnits string) float64 {
	switch targetUnits {
	case LB:
		return weightKg * 2.20462262185 // kg to pounds
	case ST:
		return weightKg * 0.157473044418 // kg to stone
	case KG:
		return weightKg
	default:
		return weightKg // default to kg if unknown unit
	}
}
