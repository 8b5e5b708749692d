package export

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/steelburgerz/veloiq/internal/analytics"
	"github.com/steelburgerz/veloiq/internal/domain"
)

func sampleRides() []domain.Ride {
	return []domain.Ride{
		{Date: "2026-03-03", StravaID: "2", Source: "strava", Label: "Morning Ride", SessionType: domain.SessionThreshold,
			DurationMin: 75, DistanceKm: 38.2, NPW: domain.Float(250), IF: domain.Float(0.93), IntervalsLoad: domain.Float(88)},
		{Date: "2026-03-01", StravaID: "1", Source: "strava", Label: "Sunday long", SessionType: domain.SessionLongRide,
			DurationMin: 240, DistanceKm: 110, TSB: domain.Float(-12)},
	}
}

func TestRidesParquetWritesFile(t *testing.T) {
	raw, err := RidesParquet(sampleRides())
	require.NoError(t, err)
	require.Greater(t, len(raw), 8)
	require.Equal(t, "PAR1", string(raw[:4]))
	require.Equal(t, "PAR1", string(raw[len(raw)-4:]))
}

func TestRidesParquetEmpty(t *testing.T) {
	raw, err := RidesParquet(nil)
	require.NoError(t, err)
	require.Equal(t, "PAR1", string(raw[:4]))
}

func TestWeeksXLSX(t *testing.T) {
	now := time.Date(2026, time.March, 4, 18, 30, 0, 0, time.UTC)
	weeks := analytics.WeekSummaries(sampleRides(), 2, now)

	var buf bytes.Buffer
	require.NoError(t, WeeksXLSX(weeks, &buf))

	f, err := excelize.OpenReader(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	defer f.Close()

	require.Equal(t, []string{weeksSheet, ridesSheet}, f.GetSheetList())

	header, err := f.GetCellValue(weeksSheet, "A1")
	require.NoError(t, err)
	require.Equal(t, "Week", header)

	label, err := f.GetCellValue(weeksSheet, "A2")
	require.NoError(t, err)
	require.Equal(t, "This week", label)

	count, err := f.GetCellValue(weeksSheet, "D2")
	require.NoError(t, err)
	require.Equal(t, "1", count)

	lastWeek, err := f.GetCellValue(weeksSheet, "A3")
	require.NoError(t, err)
	require.Equal(t, "Last week", lastWeek)

	rideName, err := f.GetCellValue(ridesSheet, "C2")
	require.NoError(t, err)
	require.Equal(t, "Morning Ride", rideName)

	session, err := f.GetCellValue(ridesSheet, "D3")
	require.NoError(t, err)
	require.Equal(t, "Long Ride", session)
}
