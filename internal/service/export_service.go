package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/fieldserve/dispatch-api/internal/dto"
	"github.com/fieldserve/dispatch-api/internal/models"
	appErrors "github.com/fieldserve/dispatch-api/pkg/errors"
	"github.com/fieldserve/dispatch-api/pkg/export"
)

type sheetBookingReader interface {
	ListForWindow(ctx context.Context, teamID string, from, to time.Time) ([]models.Booking, error)
}

type sheetSiteReader interface {
	FindByID(ctx context.Context, id string) (*models.ServiceSite, error)
}

type sheetRenderer interface {
	Render(sheet export.Sheet) ([]byte, error)
}

// ExportFile is a rendered document ready to stream to the client.
type ExportFile struct {
	FileName    string
	ContentType string
	Data        []byte
}

// ExportService renders dispatch sheets: a team's booked stops for a window,
// in driving order, as CSV or PDF.
type ExportService struct {
	bookings sheetBookingReader
	teams    bookingTeamReader
	sites    sheetSiteReader
	csv      sheetRenderer
	pdf      sheetRenderer
	logger   *zap.Logger
}

// NewExportService constructs an ExportService.
func NewExportService(bookings sheetBookingReader, teams bookingTeamReader, sites sheetSiteReader, csv sheetRenderer, pdf sheetRenderer, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportService{bookings: bookings, teams: teams, sites: sites, csv: csv, pdf: pdf, logger: logger}
}

// DispatchSheet builds and renders the sheet for one team and window.
func (s *ExportService) DispatchSheet(ctx context.Context, req dto.DispatchSheetRequest) (*ExportFile, error) {
	if req.TeamID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "team_id is required")
	}
	if !req.From.Before(req.To) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "window end must be after start")
	}

	team, err := s.teams.FindByID(ctx, req.TeamID)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("team %s not found", req.TeamID))
	}

	bookings, err := s.bookings.ListForWindow(ctx, team.ID, req.From, req.To)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load bookings")
	}

	sheet := export.Sheet{
		Title:   fmt.Sprintf("Dispatch sheet %s %s", team.Name, req.From.Format("2006-01-02")),
		Headers: []string{"Date", "Start", "End", "Hours", "Status", "Task", "Site", "City", "ZIP"},
	}
	for _, b := range bookings {
		task := ""
		if b.TaskID != nil {
			task = *b.TaskID
		}
		siteName, city, zip := s.siteDetails(ctx, b.SiteID)
		sheet.Rows = append(sheet.Rows, []string{
			b.StartUTC.Format("2006-01-02"),
			b.StartUTC.Format("15:04"),
			b.EndUTC.Format("15:04"),
			fmt.Sprintf("%.2f", b.AllocatedHours),
			string(b.Status),
			task,
			siteName,
			city,
			zip,
		})
	}

	return s.render(sheet, team.Name, req)
}

func (s *ExportService) siteDetails(ctx context.Context, siteID *string) (string, string, string) {
	if siteID == nil || *siteID == "" {
		return "", "", ""
	}
	site, err := s.sites.FindByID(ctx, *siteID)
	if err != nil {
		s.logger.Warn("site lookup failed for sheet row", zap.String("site_id", *siteID), zap.Error(err))
		return *siteID, "", ""
	}
	return site.ID, site.City, site.ZIP
}

func (s *ExportService) render(sheet export.Sheet, teamName string, req dto.DispatchSheetRequest) (*ExportFile, error) {
	slug := strings.ToLower(strings.ReplaceAll(teamName, " ", "-"))
	base := fmt.Sprintf("dispatch-%s-%s", slug, req.From.Format("20060102"))

	switch strings.ToLower(req.Format) {
	case "", "csv":
		data, err := s.csv.Render(sheet)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv")
		}
		return &ExportFile{FileName: base + ".csv", ContentType: "text/csv", Data: data}, nil
	case "pdf":
		data, err := s.pdf.Render(sheet)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf")
		}
		return &ExportFile{FileName: base + ".pdf", ContentType: "application/pdf", Data: data}, nil
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported format %q", req.Format))
	}
}
