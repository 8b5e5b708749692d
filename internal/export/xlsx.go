package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/steelburgerz/veloiq/internal/analytics"
	"github.com/steelburgerz/veloiq/internal/classify"
)

const (
	weeksSheet = "Weeks"
	ridesSheet = "Rides"
)

var (
	weekHeaders = []string{"Week", "Start", "End", "Rides", "Hours", "Distance (km)", "Elevation (m)", "Load", "Avg TSB"}
	rideHeaders = []string{"Week", "Date", "Ride", "Session", "Duration (min)", "Distance (km)", "NP (W)", "Load"}
)

// WeeksXLSX writes a workbook with one summary row per week and a sheet listing each week's rides.
func WeeksXLSX(weeks []analytics.WeekSummary, w io.Writer) error {
	f := excelize.NewFile()
	defer f.Close()

	idx, err := f.NewSheet(weeksSheet)
	if err != nil {
		return fmt.Errorf("create sheet: %w", err)
	}
	if _, err := f.NewSheet(ridesSheet); err != nil {
		return fmt.Errorf("create sheet: %w", err)
	}
	f.SetActiveSheet(idx)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return fmt.Errorf("drop default sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11, Color: "#FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return fmt.Errorf("header style: %w", err)
	}

	if err := writeRow(f, weeksSheet, 1, toAny(weekHeaders)); err != nil {
		return err
	}
	if err := writeRow(f, ridesSheet, 1, toAny(rideHeaders)); err != nil {
		return err
	}
	for _, sheet := range []string{weeksSheet, ridesSheet} {
		if err := f.SetCellStyle(sheet, "A1", "I1", headerStyle); err != nil {
			return fmt.Errorf("style header: %w", err)
		}
		if err := f.SetColWidth(sheet, "A", "I", 14); err != nil {
			return fmt.Errorf("column width: %w", err)
		}
	}
	if err := f.SetColWidth(ridesSheet, "C", "C", 32); err != nil {
		return fmt.Errorf("column width: %w", err)
	}

	rideRow := 2
	for i, week := range weeks {
		var avgTSB any = "-"
		if week.AvgTSB != nil {
			avgTSB = *week.AvgTSB
		}
		row := []any{week.WeekLabel, week.StartDate, week.EndDate, len(week.Rides), week.TotalHours,
			week.TotalDistance, week.TotalElev, week.TotalLoad, avgTSB}
		if err := writeRow(f, weeksSheet, i+2, row); err != nil {
			return err
		}

		for _, ride := range week.Rides {
			var np any = "-"
			if ride.NPW != nil {
				np = *ride.NPW
			}
			row := []any{week.WeekLabel, ride.Date, ride.Label, classify.Label(ride.SessionType),
				ride.DurationMin, ride.DistanceKm, np, analytics.Round1(ride.Load())}
			if err := writeRow(f, ridesSheet, rideRow, row); err != nil {
				return err
			}
			rideRow++
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func writeRow(f *excelize.File, sheet string, row int, values []any) error {
	for col, value := range values {
		cell, err := excelize.CoordinatesToCellName(col+1, row)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, cell, value); err != nil {
			return fmt.Errorf("set %s!%s: %w", sheet, cell, err)
		}
	}
	return nil
}

func toAny(values []string) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}
