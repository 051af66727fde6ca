package models

import (
	"strings"
	"time"
)

// ServiceSite is where booked work happens. The core only reads it for zone
// clustering; everything else about addresses lives outside the scheduler.
type ServiceSite struct {
	ID        string  `db:"id" json:"id"`
	ZoneID    *string `db:"zone_id" json:"zone_id,omitempty"`
	ZIP       string  `db:"zip" json:"zip"`
	City      string  `db:"city" json:"city"`
	Region    string  `db:"region" json:"region"`
	Latitude  float64 `db:"latitude" json:"latitude"`
	Longitude float64 `db:"longitude" json:"longitude"`
}

// ClusterKey buckets sites for same-area scoring: configured zone first, then
// ZIP prefix, then city, then region.
func (s ServiceSite) ClusterKey() string {
	if s.ZoneID != nil && *s.ZoneID != "" {
		return "ZONE:" + *s.ZoneID
	}
	if len(s.ZIP) >= 3 {
		return s.ZIP[:3]
	}
	if s.City != "" {
		return strings.ToLower(s.City)
	}
	return strings.ToLower(s.Region)
}

// HasCoordinates reports whether the site carries usable geo data.
func (s ServiceSite) HasCoordinates() bool {
	return s.Latitude != 0 && s.Longitude != 0
}

// TeamVisit is an already-booked stop a team makes, paired with when, so the
// ranker can score how a candidate clusters with the team's existing route.
type TeamVisit struct {
	TeamID   string    `db:"team_id" json:"team_id"`
	StartUTC time.Time `db:"start_utc" json:"start_utc"`
	ServiceSite
}
