package entities

import "github.com/skyglow/skyglow-go/internal/geometry"

// ROI is a region of interest in channel-plane coordinates. The normalized
// rectangle is the natural key.
type ROI struct {
	ID          uint   `gorm:"primaryKey"`
	X1          int    `gorm:"column:x1;not null;uniqueIndex:idx_roi_rect"`
	Y1          int    `gorm:"column:y1;not null;uniqueIndex:idx_roi_rect"`
	X2          int    `gorm:"column:x2;not null;uniqueIndex:idx_roi_rect"`
	Y2          int    `gorm:"column:y2;not null;uniqueIndex:idx_roi_rect"`
	DisplayName string `gorm:"size:64;not null"`
	Comment     string `gorm:"size:255"`
}

// TableName returns the table name for GORM.
func (ROI) TableName() string {
	return "rois"
}

// Rect returns the region as a geometry value
func (r *ROI) Rect() geometry.Rect {
	return geometry.NewRect(r.X1, r.Y1, r.X2, r.Y2)
}

// SetRect stores rect in normalized form and refreshes the display name
func (r *ROI) SetRect(rect geometry.Rect) {
	n := rect.Normalize()
	r.X1, r.Y1, r.X2, r.Y2 = n.X1, n.Y1, n.X2, n.Y2
	r.DisplayName = n.DisplayName()
}
