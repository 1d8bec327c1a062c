package entities

import "time"

// Image is one registered frame. Hash is the identity; (name, directory) is
// only used to skip files that were registered before.
type Image struct {
	ID        uint   `gorm:"primaryKey"`
	Name      string `gorm:"size:255;not null;index:idx_image_path"`
	Directory string `gorm:"size:500;not null;index:idx_image_path"`
	Hash      []byte `gorm:"size:32;not null;uniqueIndex:idx_image_hash"`

	// Exactly one of ISO and Gain is set
	ISO     *int
	Gain    *float64
	LogGain *float64

	ExposureTime float64 `gorm:"column:exptime;not null"`
	FocalLength  float64
	FNumber      float64
	ImageType    string `gorm:"column:imagetype;size:8;not null;index"`
	Flagged      bool   `gorm:"not null;default:false;index"`

	Session int64 `gorm:"not null;index"` // registration run start, unix seconds UTC
	DateID  int   `gorm:"not null;index"` // YYYYMMDD
	TimeID  int   `gorm:"not null"`       // HHMMSS
	NightID int   `gorm:"not null;index"` // julian night, see daterange.NightID

	Width  int
	Length int

	// AstroNight is nil when the sun never reaches astronomical twilight
	AstroNight *bool

	CameraID   uint `gorm:"not null;index"`
	ObserverID uint `gorm:"not null;index"`
	LocationID uint `gorm:"not null;index"`

	CreatedAt time.Time `gorm:"autoCreateTime"`

	Camera   *Camera   `gorm:"foreignKey:CameraID;constraint:OnDelete:RESTRICT"`
	Observer *Observer `gorm:"foreignKey:ObserverID;constraint:OnDelete:RESTRICT"`
	Location *Location `gorm:"foreignKey:LocationID;constraint:OnDelete:RESTRICT"`
}

// TableName returns the table name for GORM.
func (Image) TableName() string {
	return "images"
}
