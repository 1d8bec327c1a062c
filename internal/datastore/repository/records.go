package repository

import (
	"time"

	"github.com/skyglow/skyglow-go/internal/daterange"
)

// MeasurementRecord is one measurement joined with its image, camera, ROI,
// observer and location. It is the row shape for export, publishing and
// the status API.
type MeasurementRecord struct {
	MeasurementID uint   `gorm:"column:measurement_id"`
	ImageID       uint   `gorm:"column:image_id"`
	Name          string `gorm:"column:name"`
	Directory     string `gorm:"column:directory"`
	Hash          []byte `gorm:"column:hash"`
	ImageType     string `gorm:"column:image_type"`

	DateID  int   `gorm:"column:date_id"`
	TimeID  int   `gorm:"column:time_id"`
	NightID int   `gorm:"column:night_id"`
	Session int64 `gorm:"column:session"`

	ISO          *int     `gorm:"column:iso"`
	Gain         *float64 `gorm:"column:gain"`
	ExposureTime float64  `gorm:"column:exptime"`
	FocalLength  float64  `gorm:"column:focal_length"`
	FNumber      float64  `gorm:"column:f_number"`
	AstroNight   *bool    `gorm:"column:astro_night"`

	Model string `gorm:"column:model"`
	Bias  int    `gorm:"column:bias"`
	ROI   string `gorm:"column:roi"`

	FamilyName  string `gorm:"column:family_name"`
	Surname     string `gorm:"column:surname"`
	Affiliation string `gorm:"column:affiliation"`
	Acronym     string `gorm:"column:acronym"`
	Email       string `gorm:"column:email"`

	SiteName      string   `gorm:"column:site_name"`
	Location      string   `gorm:"column:location"`
	Longitude     float64  `gorm:"column:longitude"`
	Latitude      float64  `gorm:"column:latitude"`
	Randomized    bool     `gorm:"column:randomized"`
	RandLongitude *float64 `gorm:"column:rand_longitude"`
	RandLatitude  *float64 `gorm:"column:rand_latitude"`
	UTCOffset     float64  `gorm:"column:utc_offset"`
	Height        float64  `gorm:"column:height"`

	AverSignalR  float64 `gorm:"column:aver_signal_r"`
	VariSignalR  float64 `gorm:"column:vari_signal_r"`
	AverSignalG1 float64 `gorm:"column:aver_signal_g1"`
	VariSignalG1 float64 `gorm:"column:vari_signal_g1"`
	AverSignalG2 float64 `gorm:"column:aver_signal_g2"`
	VariSignalG2 float64 `gorm:"column:vari_signal_g2"`
	AverSignalB  float64 `gorm:"column:aver_signal_b"`
	VariSignalB  float64 `gorm:"column:vari_signal_b"`

	Published bool `gorm:"column:published"`
}

// recordColumns is the SELECT list matching MeasurementRecord
const recordColumns = `sky_brightness.id AS measurement_id,
	images.id AS image_id, images.name, images.directory, images.hash,
	images.imagetype AS image_type, images.date_id, images.time_id, images.night_id,
	images.session, images.iso, images.gain, images.exptime, images.focal_length,
	images.f_number, images.astro_night,
	cameras.model, cameras.bias, rois.display_name AS roi,
	observers.family_name, observers.surname, observers.affiliation,
	observers.acronym, observers.email,
	locations.site_name, locations.location, locations.longitude, locations.latitude,
	locations.randomized, locations.rand_longitude, locations.rand_latitude,
	locations.utc_offset, locations.height,
	sky_brightness.aver_signal_r, sky_brightness.vari_signal_r,
	sky_brightness.aver_signal_g1, sky_brightness.vari_signal_g1,
	sky_brightness.aver_signal_g2, sky_brightness.vari_signal_g2,
	sky_brightness.aver_signal_b, sky_brightness.vari_signal_b,
	sky_brightness.published`

// PublicCoordinates returns the randomized pair for randomized sites
func (m *MeasurementRecord) PublicCoordinates() (longitude, latitude float64) {
	if m.Randomized && m.RandLongitude != nil && m.RandLatitude != nil {
		return *m.RandLongitude, *m.RandLatitude
	}
	return m.Longitude, m.Latitude
}

// Timestamp returns the camera-clock capture time from the cached ids
func (m *MeasurementRecord) Timestamp() time.Time {
	day, err := daterange.ParseDateID(m.DateID)
	if err != nil {
		return time.Time{}
	}
	return day.Add(time.Duration(m.TimeID/10000)*time.Hour +
		time.Duration(m.TimeID/100%100)*time.Minute +
		time.Duration(m.TimeID%100)*time.Second)
}

// Observer returns "surname family_name"
func (m *MeasurementRecord) Observer() string {
	if m.Surname == "" {
		return m.FamilyName
	}
	return m.Surname + " " + m.FamilyName
}
