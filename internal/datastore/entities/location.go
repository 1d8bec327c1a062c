package entities

// Location is an observing site. The natural key is (site_name, location).
//
// UTCOffset is the offset of the camera clock from UTC in hours, which is not
// necessarily the offset of the site's time zone.
type Location struct {
	ID       uint   `gorm:"primaryKey"`
	SiteName string `gorm:"size:100;not null;uniqueIndex:idx_location_identity"`
	Location string `gorm:"column:location;size:100;not null;uniqueIndex:idx_location_identity"`

	Longitude float64 `gorm:"not null"`
	Latitude  float64 `gorm:"not null"`
	Height    float64 // metres above sea level

	// Randomized sites publish a perturbed coordinate pair
	Randomized    bool `gorm:"not null;default:false"`
	RandLongitude *float64
	RandLatitude  *float64

	UTCOffset float64 `gorm:"column:utc_offset;not null;default:0"`
}

// TableName returns the table name for GORM.
func (Location) TableName() string {
	return "locations"
}

// PublicCoordinates returns the coordinates that may leave the database:
// the randomized pair for randomized sites, the true pair otherwise.
func (l *Location) PublicCoordinates() (longitude, latitude float64) {
	if l.Randomized && l.RandLongitude != nil && l.RandLatitude != nil {
		return *l.RandLongitude, *l.RandLatitude
	}
	return l.Longitude, l.Latitude
}
