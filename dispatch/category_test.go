package dispatch

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		command string
		want    Category
	}{
		{"GTHBD", CategoryHeartbeat},
		{"GTFRI", CategoryLocationReport},
		{"GTRTL", CategoryLocationReport},
		{"GTLBC", CategoryLocationReport},
		{"GTMPF", CategoryPowerFailure},
		{"GTMPN", CategoryPowerFailure},
		{"GTBPL", CategoryBatteryLow},
		{"GTTEM", CategoryTemperature},
		{"GTJDR", CategoryJamming},
		{"GTJDS", CategoryJamming},
		{"GTGEO", CategoryGeofence},
		{"GTGIN", CategoryGeofence},
		{"GTGOT", CategoryGeofence},
		{"GTXYZ", CategoryUnmapped},
		{"", CategoryUnmapped},
	}

	for _, tc := range cases {
		t.Run(tc.command, func(t *testing.T) {
			assert.Equal(t, tc.want, Classify(tc.command))
		})
	}
}

func TestCategory_String(t *testing.T) {
	assert.Equal(t, "Heartbeat", CategoryHeartbeat.String())
	assert.Equal(t, "LocationReport", CategoryLocationReport.String())
	assert.Equal(t, "PowerFailure", CategoryPowerFailure.String())
	assert.Equal(t, "BatteryLow", CategoryBatteryLow.String())
	assert.Equal(t, "Temperature", CategoryTemperature.String())
	assert.Equal(t, "Jamming", CategoryJamming.String())
	assert.Equal(t, "Geofence", CategoryGeofence.String())
	assert.Equal(t, "Unmapped", CategoryUnmapped.String())
}
