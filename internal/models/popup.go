package models

import "time"

// PopupFrequency controls how often a popup is shown to one viewer.
type PopupFrequency string

const (
	// FrequencyAlways shows the popup on every visit.
	FrequencyAlways PopupFrequency = "always"
	// FrequencyOnce shows the popup at most once per viewer.
	FrequencyOnce PopupFrequency = "once"
	// FrequencyOnceDaily shows the popup at most once per viewer per Bangkok calendar day.
	FrequencyOnceDaily PopupFrequency = "once_daily"
)

// IsKnownFrequency reports whether f is a supported frequency.
func IsKnownFrequency(f PopupFrequency) bool {
	switch f {
	case FrequencyAlways, FrequencyOnce, FrequencyOnceDaily:
		return true
	}
	return false
}

// Popup is an admin-authored announcement shown to visitors.
type Popup struct {
	ID        string         `gorm:"primaryKey;size:36" json:"id"`
	Title     string         `gorm:"size:200;not null" json:"title"`
	ImageURL  string         `json:"image_url"`
	LinkURL   string         `json:"link_url"`
	IsActive  bool           `gorm:"index" json:"is_active"`
	Frequency PopupFrequency `gorm:"size:16;not null" json:"frequency"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}
