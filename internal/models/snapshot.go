package models

import (
	"fmt"
	"time"
)

// Snapshot sources.
const (
	SnapshotSourceRemote = "remote"
	SnapshotSourceLocal  = "local"
)

// Snapshot is an operator backup of the three mirrored collections.
type Snapshot struct {
	Profiles   []Profile  `json:"profiles"`
	Questions  []Question `json:"questions"`
	Popups     []Popup    `json:"popups"`
	ExportedAt time.Time  `json:"exported_at"`
	Source     string     `json:"source"`
}

// BackupFilename names the downloadable artifact for a snapshot taken at t.
func BackupFilename(t time.Time) string {
	return fmt.Sprintf("website-backup-%s.json", t.Format("2006-01-02"))
}
