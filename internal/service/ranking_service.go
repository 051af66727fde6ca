package service

import (
	"math"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/fieldserve/dispatch-api/internal/models"
)

const (
	dayOffsetWeight = 1000.0
	distanceWeight  = 0.1
	sameZoneBonus   = 10.0
	// Preference bonuses stay below dayOffsetWeight so an earlier day
	// always outranks a better-matched team on a later day.
	preferredBonus = 200.0
	capableBonus   = 100.0
	earthRadiusKm  = 6371.0
)

// RankingService orders candidate slots: sooner days first, then within a
// day preferred teams ahead of capable teams ahead of fallback, tilted
// toward teams already working the same area that day. Lower scores rank
// higher.
type RankingService struct {
	logger *zap.Logger
}

// NewRankingService constructs a RankingService.
func NewRankingService(logger *zap.Logger) *RankingService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RankingService{logger: logger}
}

// RankInput bundles one ranking pass.
type RankInput struct {
	Candidates []models.CandidateSlot
	Prefs      models.RankingPrefs
	// Site is the job's location, empty ID when unknown.
	Site models.ServiceSite
	// Visits are the eligible teams' booked stops inside the window.
	Visits []models.TeamVisit
	// Base anchors day-offset scoring, normally the search window start.
	Base time.Time
	// Location decides where calendar days begin for day offsets.
	Location *time.Location
}

// Rank scores, deduplicates, sorts and truncates candidates. Ties break on
// start time then team id so identical searches return identical orderings.
func (s *RankingService) Rank(in RankInput) []models.CandidateSlot {
	loc := in.Location
	if loc == nil {
		loc = time.UTC
	}

	visitsByTeamDay := indexVisits(in.Visits, loc)

	seen := make(map[string]struct{}, len(in.Candidates))
	ranked := make([]models.CandidateSlot, 0, len(in.Candidates))
	for _, c := range in.Candidates {
		key := c.TeamID + "|" + c.Start.UTC().Format(time.RFC3339)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}

		_, preferred := in.Prefs.PreferredTeamIDs[c.TeamID]
		c.Preferred = preferred
		c.Score = s.score(c, in, visitsByTeamDay, loc)
		ranked = append(ranked, c)
	}

	sort.Slice(ranked, func(a, b int) bool {
		ca, cb := ranked[a], ranked[b]
		if ca.Score != cb.Score {
			return ca.Score < cb.Score
		}
		if !ca.Start.Equal(cb.Start) {
			return ca.Start.Before(cb.Start)
		}
		return ca.TeamID < cb.TeamID
	})

	if in.Prefs.Limit > 0 && len(ranked) > in.Prefs.Limit {
		ranked = ranked[:in.Prefs.Limit]
	}
	return ranked
}

func (s *RankingService) score(c models.CandidateSlot, in RankInput, visits map[visitKey][]models.ServiceSite, loc *time.Location) float64 {
	score := float64(dayOffset(in.Base, c.Start, loc)) * dayOffsetWeight

	if c.Preferred {
		score -= preferredBonus
	} else if _, capable := in.Prefs.CapableTeamIDs[c.TeamID]; capable {
		score -= capableBonus
	}

	if !in.Prefs.ZoneClustering || in.Site.ID == "" {
		return score
	}

	dayVisits := visits[visitKey{teamID: c.TeamID, day: dayStamp(c.Start, loc)}]
	if len(dayVisits) == 0 {
		return score
	}

	jobZone := in.Site.ClusterKey()
	sameZone := 0
	var totalKm float64
	measured := 0
	for _, site := range dayVisits {
		if site.ClusterKey() == jobZone {
			sameZone++
		}
		if in.Site.HasCoordinates() && site.HasCoordinates() {
			totalKm += haversineKm(in.Site.Latitude, in.Site.Longitude, site.Latitude, site.Longitude)
			measured++
		}
	}

	score -= float64(sameZone) * sameZoneBonus
	if measured > 0 {
		score += (totalKm / float64(measured)) * distanceWeight
	}
	return score
}

type visitKey struct {
	teamID string
	day    string
}

func indexVisits(visits []models.TeamVisit, loc *time.Location) map[visitKey][]models.ServiceSite {
	if len(visits) == 0 {
		return nil
	}
	index := make(map[visitKey][]models.ServiceSite, len(visits))
	for _, v := range visits {
		key := visitKey{teamID: v.TeamID, day: dayStamp(v.StartUTC, loc)}
		index[key] = append(index[key], v.ServiceSite)
	}
	return index
}

func dayStamp(t time.Time, loc *time.Location) string {
	return t.In(loc).Format("2006-01-02")
}

func dayOffset(base, t time.Time, loc *time.Location) int {
	b := base.In(loc)
	c := t.In(loc)
	bDay := time.Date(b.Year(), b.Month(), b.Day(), 0, 0, 0, 0, loc)
	cDay := time.Date(c.Year(), c.Month(), c.Day(), 0, 0, 0, 0, loc)
	return int(cDay.Sub(bDay) / (24 * time.Hour))
}

func haversineKm(lat1, lon1, lat2, lon2 float64) float64 {
	rad := math.Pi / 180
	dLat := (lat2 - lat1) * rad
	dLon := (lon2 - lon1) * rad
	a := math.Sin(dLat/2)*math.Sin(dLat/2) + math.Cos(lat1*rad)*math.Cos(lat2*rad)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusKm * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}
