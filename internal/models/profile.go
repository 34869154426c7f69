package models

import (
	"strings"
	"time"
)

// MaxBioLength is the maximum bio length in runes.
const MaxBioLength = 250

// AvailableTags lists the tags a profile may carry.
var AvailableTags = []string{
	"Freelancer", "Artist", "Developer", "Foodie", "Traveler",
	"Photographer", "Student", "Content Creator", "Musician", "Writer", "อื่นๆ",
}

// IsKnownTag reports whether tag is in AvailableTags.
func IsKnownTag(tag string) bool {
	for _, t := range AvailableTags {
		if t == tag {
			return true
		}
	}
	return false
}

// Location is the administrative address attached to a profile.
type Location struct {
	Region      string `gorm:"size:64" json:"region"`
	Province    string `gorm:"size:64;index" json:"province"`
	District    string `gorm:"size:64" json:"district"`
	SubDistrict string `gorm:"size:64" json:"sub_district"`
	PostalCode  string `gorm:"size:8" json:"postal_code"`
}

// Link is one entry in a profile's ordered link list.
type Link struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	URL    string `json:"url"`
	Icon   string `json:"icon,omitempty"`
	Clicks int64  `json:"clicks"`
}

// Profile is the public, themable page owned by one identity.
type Profile struct {
	ID            string     `gorm:"primaryKey;size:36" json:"id"`
	IdentityID    string     `gorm:"uniqueIndex;size:36;not null" json:"identity_id"`
	UID           string     `gorm:"uniqueIndex:idx_profiles_uid_unique,where:uid <> '';size:32" json:"uid"`
	Username      string     `gorm:"uniqueIndex;size:64;not null" json:"username"`
	DisplayName   string     `gorm:"size:100;not null" json:"display_name"`
	PhotoURL      string     `json:"photo_url"`
	Bio           string     `gorm:"type:text" json:"bio"`
	Tags          StringList `gorm:"type:text" json:"tags"`
	Location      Location   `gorm:"embedded" json:"location"`
	ShowOnExplore bool       `gorm:"index" json:"show_on_explore"`
	Likes         int64      `json:"likes"`
	LikedBy       StringList `gorm:"type:text" json:"liked_by,omitempty"`
	Theme         Theme      `gorm:"embedded;embeddedPrefix:theme_" json:"theme"`
	Links         LinkList   `gorm:"type:text" json:"links"`
	Simulated     bool       `json:"simulated"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// Clone returns a deep copy of p.
func (p *Profile) Clone() *Profile {
	if p == nil {
		return nil
	}
	out := *p
	out.Tags = append(StringList(nil), p.Tags...)
	out.LikedBy = append(StringList(nil), p.LikedBy...)
	out.Links = append(LinkList(nil), p.Links...)
	return &out
}

// NormalizeUsername lower-cases and trims a username so uniqueness is case-insensitive.
func NormalizeUsername(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}
