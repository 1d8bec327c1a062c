package publish

import (
	"github.com/skyglow/skyglow-go/internal/datastore/repository"
	"github.com/skyglow/skyglow-go/internal/hashing"
)

// Record is one flattened measurement as sent to the endpoint. Signal
// values are the stored raw means and variances.
type Record struct {
	Hash    string `json:"hash"`
	HashB64 string `json:"hash_b64"`
	Name    string `json:"name"`

	Timestamp  string `json:"tstamp"`
	DateID     int    `json:"date_id"`
	TimeID     int    `json:"time_id"`
	ImageType  string `json:"imagetype"`
	AstroNight *bool  `json:"astro_night"`

	Model        string   `json:"model"`
	Bias         int      `json:"bias"`
	ISO          *int     `json:"iso"`
	Gain         *float64 `json:"gain"`
	ExposureTime float64  `json:"exptime"`
	FocalLength  float64  `json:"focal_length"`
	FNumber      float64  `json:"f_number"`
	ROI          string   `json:"roi"`

	Observer     string `json:"observer"`
	Organization string `json:"organization"`
	Acronym      string `json:"acronym,omitempty"`
	Email        string `json:"email,omitempty"`

	SiteName  string  `json:"site_name"`
	Location  string  `json:"location"`
	Longitude float64 `json:"longitude"`
	Latitude  float64 `json:"latitude"`
	Height    float64 `json:"height"`
	UTCOffset float64 `json:"utc_offset"`

	AverSignalR  float64 `json:"aver_signal_R"`
	VariSignalR  float64 `json:"vari_signal_R"`
	AverSignalG1 float64 `json:"aver_signal_G1"`
	VariSignalG1 float64 `json:"vari_signal_G1"`
	AverSignalG2 float64 `json:"aver_signal_G2"`
	VariSignalG2 float64 `json:"vari_signal_G2"`
	AverSignalB  float64 `json:"aver_signal_B"`
	VariSignalB  float64 `json:"vari_signal_B"`
}

const timestampLayout = "2006-01-02T15:04:05"

// NewRecord flattens m. Randomized sites carry their perturbed coordinates.
func NewRecord(m *repository.MeasurementRecord) Record {
	lon, lat := m.PublicCoordinates()
	return Record{
		Hash:         hashing.Hex(m.Hash),
		HashB64:      hashing.Base64(m.Hash),
		Name:         m.Name,
		Timestamp:    m.Timestamp().Format(timestampLayout),
		DateID:       m.DateID,
		TimeID:       m.TimeID,
		ImageType:    m.ImageType,
		AstroNight:   m.AstroNight,
		Model:        m.Model,
		Bias:         m.Bias,
		ISO:          m.ISO,
		Gain:         m.Gain,
		ExposureTime: m.ExposureTime,
		FocalLength:  m.FocalLength,
		FNumber:      m.FNumber,
		ROI:          m.ROI,
		Observer:     m.Observer(),
		Organization: m.Affiliation,
		Acronym:      m.Acronym,
		Email:        m.Email,
		SiteName:     m.SiteName,
		Location:     m.Location,
		Longitude:    lon,
		Latitude:     lat,
		Height:       m.Height,
		UTCOffset:    m.UTCOffset,
		AverSignalR:  m.AverSignalR,
		VariSignalR:  m.VariSignalR,
		AverSignalG1: m.AverSignalG1,
		VariSignalG1: m.VariSignalG1,
		AverSignalG2: m.AverSignalG2,
		VariSignalG2: m.VariSignalG2,
		AverSignalB:  m.AverSignalB,
		VariSignalB:  m.VariSignalB,
	}
}
