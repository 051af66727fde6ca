package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/fieldserve/dispatch-api/internal/models"
)

// SiteRepository reads service sites for zone clustering.
type SiteRepository struct {
	db *sqlx.DB
}

// NewSiteRepository creates a new site repository.
func NewSiteRepository(db *sqlx.DB) *SiteRepository {
	return &SiteRepository{db: db}
}

const siteColumns = "id, zone_id, zip, city, region, latitude, longitude"

// FindByID loads a site by id.
func (r *SiteRepository) FindByID(ctx context.Context, id string) (*models.ServiceSite, error) {
	query := fmt.Sprintf("SELECT %s FROM service_sites WHERE id = $1", siteColumns)
	var site models.ServiceSite
	if err := r.db.GetContext(ctx, &site, query, id); err != nil {
		return nil, err
	}
	return &site, nil
}

// VisitsForWindow returns the sites of non-cancelled bookings for the given
// teams inside [from, to), joined so the ranker can score zone affinity in a
// single query.
func (r *SiteRepository) VisitsForWindow(ctx context.Context, teamIDs []string, from, to time.Time) ([]models.TeamVisit, error) {
	if len(teamIDs) == 0 {
		return nil, nil
	}
	const query = `SELECT b.team_id, b.start_utc, s.id, s.zone_id, s.zip, s.city, s.region, s.latitude, s.longitude
		FROM bookings b
		JOIN service_sites s ON s.id = b.site_id
		WHERE b.team_id = ANY($1) AND b.status <> 'cancelled' AND b.start_utc < $2 AND b.end_utc > $3`

	var visits []models.TeamVisit
	if err := r.db.SelectContext(ctx, &visits, query, pq.Array(teamIDs), to, from); err != nil {
		return nil, fmt.Errorf("visits for window: %w", err)
	}
	return visits, nil
}
