package entities

import "time"

// SkyBrightness holds the raw per-channel statistics of one image over one
// ROI. Values are stored unrounded beyond what RegionStats returns; export
// converts variance to standard deviation.
type SkyBrightness struct {
	ID      uint `gorm:"primaryKey"`
	ImageID uint `gorm:"not null;uniqueIndex:idx_sky_brightness_image"`
	ROIID   uint `gorm:"column:roi_id;not null;index"`

	AverSignalR  float64 `gorm:"column:aver_signal_r"`
	VariSignalR  float64 `gorm:"column:vari_signal_r"`
	AverSignalG1 float64 `gorm:"column:aver_signal_g1"`
	VariSignalG1 float64 `gorm:"column:vari_signal_g1"`
	AverSignalG2 float64 `gorm:"column:aver_signal_g2"`
	VariSignalG2 float64 `gorm:"column:vari_signal_g2"`
	AverSignalB  float64 `gorm:"column:aver_signal_b"`
	VariSignalB  float64 `gorm:"column:vari_signal_b"`

	Published bool      `gorm:"not null;default:false;index"`
	CreatedAt time.Time `gorm:"autoCreateTime"`

	Image *Image `gorm:"foreignKey:ImageID;constraint:OnDelete:CASCADE"`
	ROI   *ROI   `gorm:"foreignKey:ROIID;constraint:OnDelete:RESTRICT"`
}

// TableName returns the table name for GORM.
func (SkyBrightness) TableName() string {
	return "sky_brightness"
}
