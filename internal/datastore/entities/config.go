package entities

// Config is one scalar setting in the (section, property) store
type Config struct {
	ID       uint   `gorm:"primaryKey"`
	Section  string `gorm:"size:64;not null;uniqueIndex:idx_config_key"`
	Property string `gorm:"size:64;not null;uniqueIndex:idx_config_key"`
	Value    string `gorm:"type:text"`
}

// TableName returns the table name for GORM.
func (Config) TableName() string {
	return "configs"
}
