package entities

import "time"

// ValidState marks whether an observer version is in force
type ValidState string

const (
	ValidCurrent ValidState = "Current"
	ValidExpired ValidState = "Expired"
)

// Observer is a versioned person record. At most one version per
// (family_name, surname) is Current; older versions are Expired and keep
// the attribution of images taken while they were in force.
type Observer struct {
	ID         uint   `gorm:"primaryKey"`
	FamilyName string `gorm:"size:100;not null;uniqueIndex:idx_observer_version"`
	Surname    string `gorm:"size:100;not null;uniqueIndex:idx_observer_version"`

	Affiliation string `gorm:"size:200"`
	Acronym     string `gorm:"size:32"`
	Email       string `gorm:"size:200"`

	ValidSince time.Time  `gorm:"not null;uniqueIndex:idx_observer_version"`
	ValidUntil *time.Time // nil while current
	ValidState ValidState `gorm:"size:8;not null;index"`
}

// TableName returns the table name for GORM.
func (Observer) TableName() string {
	return "observers"
}

// SameAttributes reports whether o and other differ only in identity and validity
func (o *Observer) SameAttributes(other *Observer) bool {
	return o.FamilyName == other.FamilyName &&
		o.Surname == other.Surname &&
		o.Affiliation == other.Affiliation &&
		o.Acronym == other.Acronym &&
		o.Email == other.Email
}

// FullName returns "surname family_name"
func (o *Observer) FullName() string {
	if o.Surname == "" {
		return o.FamilyName
	}
	return o.Surname + " " + o.FamilyName
}
