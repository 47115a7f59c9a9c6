// Package dispatch classifies decoded telemetry frames into semantic
// categories and forwards them to external collaborators (persistence,
// alerting). Classification is a data table, not control flow: adding a
// command word is a one-line change.
package dispatch

import "github.com/cyberinferno/telemetry-gateway/protocol"

// Category is the semantic class of a telemetry command word.
type Category int

const (
	CategoryUnmapped Category = iota // Command word not present in the table
	CategoryHeartbeat
	CategoryLocationReport
	CategoryPowerFailure
	CategoryBatteryLow
	CategoryTemperature
	CategoryJamming
	CategoryGeofence
)

// String returns a human-readable name for the category.
func (c Category) String() string {
	switch c {
	case CategoryHeartbeat:
		return "Heartbeat"
	case CategoryLocationReport:
		return "LocationReport"
	case CategoryPowerFailure:
		return "PowerFailure"
	case CategoryBatteryLow:
		return "BatteryLow"
	case CategoryTemperature:
		return "Temperature"
	case CategoryJamming:
		return "Jamming"
	case CategoryGeofence:
		return "Geofence"
	default:
		return "Unmapped"
	}
}

// categoryByCommand maps device command words to their semantic category.
// Anything absent is CategoryUnmapped and is still forwarded to collaborators.
var categoryByCommand = map[string]Category{
	protocol.CommandHeartbeat: CategoryHeartbeat,

	"GTFRI": CategoryLocationReport, // fixed-interval report
	"GTRTL": CategoryLocationReport, // requested location
	"GTLBC": CategoryLocationReport, // location by call

	"GTMPF": CategoryPowerFailure, // main power lost
	"GTMPN": CategoryPowerFailure, // main power restored

	"GTBPL": CategoryBatteryLow,

	"GTTEM": CategoryTemperature,

	"GTJDR": CategoryJamming, // jamming detected
	"GTJDS": CategoryJamming, // jamming status change

	"GTGEO": CategoryGeofence,
	"GTGIN": CategoryGeofence, // geofence enter
	"GTGOT": CategoryGeofence, // geofence exit
}

// Classify returns the semantic category for a command word.
//
// Parameters:
//   - commandWord: The frame's command word (e.g. "GTFRI")
//
// Returns:
//   - The mapped category, or CategoryUnmapped if the word is unknown
func Classify(commandWord string) Category {
	if c, ok := categoryByCommand[commandWord]; ok {
		return c
	}

	return CategoryUnmapped
}
