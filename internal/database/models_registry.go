package database

import "zeelink/internal/models"

// PersistentModels returns the authoritative set of schema-managed GORM models.
func PersistentModels() []interface{} {
	return []interface{}{
		&models.Identity{},
		&models.Profile{},
		&models.Question{},
		&models.Popup{},
	}
}
