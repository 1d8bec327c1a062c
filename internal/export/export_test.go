package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"math"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skyglow/skyglow-go/internal/datastore/datastoretest"
	"github.com/skyglow/skyglow-go/internal/datastore/repository"
	"github.com/skyglow/skyglow-go/internal/daterange"
)

func parse(t *testing.T, data []byte) (header []string, rows []map[string]string) {
	t.Helper()
	r := csv.NewReader(bytes.NewReader(data))
	r.Comma = ';'
	all, err := r.ReadAll()
	require.NoError(t, err)
	require.NotEmpty(t, all)

	header = all[0]
	for _, fields := range all[1:] {
		require.Len(t, fields, len(header))
		row := make(map[string]string, len(header))
		for i, name := range header {
			row[name] = fields[i]
		}
		rows = append(rows, row)
	}
	return header, rows
}

func number(t *testing.T, s string) float64 {
	t.Helper()
	v, err := strconv.ParseFloat(s, 64)
	require.NoError(t, err)
	return v
}

func TestRowFormatting(t *testing.T) {
	gain := 2.5
	randLon, randLat := -3.7101, 40.4099
	rec := &repository.MeasurementRecord{
		Name:          "IMG_0001.fits",
		DateID:        20240110,
		TimeID:        221530,
		Gain:          &gain,
		ExposureTime:  30,
		FocalLength:   24,
		FNumber:       2.8,
		Model:         "ZWO ASI294MC",
		Bias:          1024,
		ROI:           "[8:16,8:24]",
		FamilyName:    "Doe",
		Surname:       "Jane",
		Affiliation:   "Dark Sky Society",
		SiteName:      "Observatory",
		Location:      "Hilltop",
		Longitude:     -3.7038,
		Latitude:      40.4168,
		Randomized:    true,
		RandLongitude: &randLon,
		RandLatitude:  &randLat,
		UTCOffset:     1,
		AverSignalR:   1234.56789,
		VariSignalR:   2.25,
		AverSignalG1:  10,
		VariSignalG1:  0,
		AverSignalG2:  0.0004,
		VariSignalG2:  -0.001,
		AverSignalB:   99.9996,
		VariSignalB:   100,
	}

	row := Row(rec)
	require.Len(t, row, len(Columns))
	got := make(map[string]string)
	for i, c := range Columns {
		got[c] = row[i]
	}

	assert.Equal(t, Version, got["csv_version"])
	assert.Equal(t, "2024-01-10T22:15:30", got["tstamp"])
	assert.Equal(t, "20240110", got["date_id"])
	assert.Equal(t, "221530", got["time_id"])
	assert.Empty(t, got["iso"])
	assert.Equal(t, "2.5", got["gain"])
	assert.Equal(t, "2.8", got["f_number"])
	assert.Equal(t, "Jane Doe", got["observer"])
	assert.Equal(t, "Dark Sky Society", got["organization"])
	assert.Equal(t, "Observatory - Hilltop", got["location"])
	assert.Equal(t, "-3.7101", got["longitude"], "randomized sites export the perturbed pair")
	assert.Equal(t, "40.4099", got["latitude"])
	assert.Equal(t, "1234.568", got["aver_signal_R"])
	assert.Equal(t, "1.5", got["std_signal_R"])
	assert.Equal(t, "10.000", got["aver_signal_G1"])
	assert.Equal(t, "0.0", got["std_signal_G1"])
	assert.Equal(t, "0.000", got["aver_signal_G2"])
	assert.Equal(t, "0.0", got["std_signal_G2"])
	assert.Equal(t, "100.000", got["aver_signal_B"])
	assert.Equal(t, "10.0", got["std_signal_B"])
}

func TestRowUsesTrueCoordinatesUntilRandomized(t *testing.T) {
	iso := 800
	rec := &repository.MeasurementRecord{ISO: &iso, Longitude: 1.5, Latitude: -2.25, Randomized: true}
	row := Row(rec)
	assert.Equal(t, "800", row[6])
	assert.Empty(t, row[7])
	assert.Equal(t, "1.5", row[16])
	assert.Equal(t, "-2.25", row[17])
}

func TestExportRoundTrip(t *testing.T) {
	store := datastoretest.New(t)
	fx := datastoretest.Seed(t, store)

	bases := map[string]float64{"a.tif": 101.2345, "b.tif": 2048.0004, "c.tif": 0.5}
	for name, base := range bases {
		img := fx.AddImage(t, store, name, 20240110, 220000)
		fx.AddMeasurement(t, store, img, base)
	}

	var buf bytes.Buffer
	n, err := New(store.Measurements, nil).Export(context.Background(), &buf, fx.Observer.ID, daterange.SelectAll())
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	header, rows := parse(t, buf.Bytes())
	assert.Equal(t, Columns, header)
	require.Len(t, rows, 3)

	for _, row := range rows {
		base, ok := bases[row["name"]]
		require.True(t, ok, row["name"])
		assert.Equal(t, "1", row["csv_version"])
		assert.Equal(t, fx.Camera.Model, row["model"])
		assert.Equal(t, "1600", row["iso"])
		assert.Equal(t, "2048", row["bias"])
		assert.Equal(t, fx.ROI.DisplayName, row["roi"])

		for i, ch := range []string{"R", "G1", "G2", "B"} {
			assert.InDelta(t, base+float64(i), number(t, row["aver_signal_"+ch]), 0.001, ch)
			// AddMeasurement stores variances 4, 9, 16, 25
			assert.InDelta(t, float64(i+2), number(t, row["std_signal_"+ch]), 0.1, ch)
		}
	}
}

func TestExportEmptySelection(t *testing.T) {
	store := datastoretest.New(t)
	fx := datastoretest.Seed(t, store)

	var buf bytes.Buffer
	n, err := New(store.Measurements, nil).Export(context.Background(), &buf, fx.Observer.ID, daterange.SelectLatestNight())
	require.NoError(t, err)
	assert.Zero(t, n)

	header, rows := parse(t, buf.Bytes())
	assert.Equal(t, Columns, header)
	assert.Empty(t, rows)
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestExportWriteFailure(t *testing.T) {
	store := datastoretest.New(t)
	fx := datastoretest.Seed(t, store)
	fx.AddMeasurement(t, store, fx.AddImage(t, store, "a.tif", 20240110, 220000), 1)

	_, err := New(store.Measurements, nil).Export(context.Background(), failingWriter{}, 0, daterange.SelectAll())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
}

func TestStdClampsNegativeVariance(t *testing.T) {
	assert.Equal(t, "0.0", Std(-1))
	assert.Equal(t, "3.0", Std(9))
	assert.False(t, math.IsNaN(number(t, Std(-0.5))))
}
