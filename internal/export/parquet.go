// Package export writes ride history and weekly summaries to analysis-friendly file formats.
package export

import (
	parquetbuffer "github.com/xitongsys/parquet-go-source/buffer"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/writer"

	"github.com/steelburgerz/veloiq/internal/domain"
)

type rideParquetRow struct {
	Date        string   `parquet:"name=date, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`
	StravaID    string   `parquet:"name=strava_id, type=BYTE_ARRAY, convertedtype=UTF8"`
	Source      string   `parquet:"name=source, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`
	Label       string   `parquet:"name=label, type=BYTE_ARRAY, convertedtype=UTF8"`
	SessionType string   `parquet:"name=session_type, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`
	DurationMin float64  `parquet:"name=duration_min, type=DOUBLE"`
	DistanceKm  float64  `parquet:"name=distance_km, type=DOUBLE"`
	ElevM       float64  `parquet:"name=elev_m, type=DOUBLE"`
	WorkKJ      float64  `parquet:"name=work_kj, type=DOUBLE"`
	Load        float64  `parquet:"name=load, type=DOUBLE"`
	AvgPowerW   *float64 `parquet:"name=avg_power_w, type=DOUBLE, repetitiontype=OPTIONAL"`
	NPW         *float64 `parquet:"name=np_w, type=DOUBLE, repetitiontype=OPTIONAL"`
	AvgHRBPM    *float64 `parquet:"name=avg_hr_bpm, type=DOUBLE, repetitiontype=OPTIONAL"`
	IF          *float64 `parquet:"name=intensity_factor, type=DOUBLE, repetitiontype=OPTIONAL"`
	TSS         *float64 `parquet:"name=tss, type=DOUBLE, repetitiontype=OPTIONAL"`
	EF          *float64 `parquet:"name=efficiency_factor, type=DOUBLE, repetitiontype=OPTIONAL"`
	CTL         *float64 `parquet:"name=ctl, type=DOUBLE, repetitiontype=OPTIONAL"`
	ATL         *float64 `parquet:"name=atl, type=DOUBLE, repetitiontype=OPTIONAL"`
	TSB         *float64 `parquet:"name=tsb, type=DOUBLE, repetitiontype=OPTIONAL"`
	EFTPW       *float64 `parquet:"name=eftp_w, type=DOUBLE, repetitiontype=OPTIONAL"`
}

// RidesParquet encodes rides as a Snappy-compressed Parquet file, one row per ride.
func RidesParquet(rides []domain.Ride) ([]byte, error) {
	fw := parquetbuffer.NewBufferFile()
	pw, err := writer.NewParquetWriter(fw, new(rideParquetRow), 4)
	if err != nil {
		return nil, err
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY
	for _, ride := range rides {
		row := rideParquetRow{
			Date:        ride.Date,
			StravaID:    ride.StravaID,
			Source:      ride.Source,
			Label:       ride.Label,
			SessionType: string(ride.SessionType),
			DurationMin: ride.DurationMin,
			DistanceKm:  ride.DistanceKm,
			ElevM:       ride.ElevM,
			WorkKJ:      ride.WorkKJ,
			Load:        ride.Load(),
			AvgPowerW:   ride.AvgPowerW,
			NPW:         ride.NPW,
			AvgHRBPM:    ride.AvgHRBPM,
			IF:          ride.IF,
			TSS:         ride.TSS,
			EF:          ride.EF,
			CTL:         ride.CTL,
			ATL:         ride.ATL,
			TSB:         ride.TSB,
			EFTPW:       ride.DayEFTPW,
		}
		if err := pw.Write(row); err != nil {
			_ = pw.WriteStop()
			return nil, err
		}
	}
	if err := pw.WriteStop(); err != nil {
		return nil, err
	}
	if err := fw.Close(); err != nil {
		return nil, err
	}
	return append([]byte(nil), fw.Bytes()...), nil
}
