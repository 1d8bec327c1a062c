package entities

import "time"

// Header types stored in Camera.HeaderType
const (
	HeaderEXIF = "EXIF"
	HeaderFITS = "FITS"
)

// Camera describes one sensor model. Model is the natural key.
type Camera struct {
	ID    uint   `gorm:"primaryKey"`
	Model string `gorm:"size:100;not null;uniqueIndex:idx_camera_model"`

	// Bias is the pedestal level added by the camera, a power of two
	Bias         int    `gorm:"not null;default:0"`
	Extension    string `gorm:"size:16;not null"`
	HeaderType   string `gorm:"size:8;not null"`
	BayerPattern string `gorm:"size:4;not null"`

	// Raw plane size in pixels
	Width  int
	Length int

	PixelSize float64 // micrometres
	Comment   string  `gorm:"size:255"`

	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

// TableName returns the table name for GORM.
func (Camera) TableName() string {
	return "cameras"
}
