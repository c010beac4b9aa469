package settings

import "time"

// ConfigEntry is a persisted override of a runtime setting. The value is
// stored in its JSON form.
type ConfigEntry struct {
	Key       string    `gorm:"column:config_key;primaryKey;size:191" json:"key"`
	Value     string    `gorm:"type:text;not null" json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName specifies the table name for GORM
func (ConfigEntry) TableName() string {
	return "config_entries"
}
