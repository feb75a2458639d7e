package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable-api/internal/models"
	"github.com/noah-isme/sma-timetable-api/internal/timetable"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
	"github.com/noah-isme/sma-timetable-api/pkg/export"
)

// Export formats.
const (
	ExportFormatCSV = "csv"
	ExportFormatPDF = "pdf"
)

const (
	lunchMarker      = "LUNCH"
	unassignedMarker = "Unassigned"
)

var exportHeaders = []string{"Day", "Slot", "Year Group", "Skill", "Teacher"}

type exportSkillStore interface {
	List(ctx context.Context, exec sqlx.ExtContext) ([]models.Skill, error)
}

type exportTeacherStore interface {
	List(ctx context.Context, exec sqlx.ExtContext) ([]models.Teacher, error)
}

type exportSessionStore interface {
	ListGrid(ctx context.Context, exec sqlx.ExtContext) ([]models.Session, error)
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

// ExportFile is a rendered timetable download.
type ExportFile struct {
	Filename    string
	ContentType string
	Data        []byte
}

// ExportService renders the grid as CSV or PDF.
type ExportService struct {
	skills   exportSkillStore
	teachers exportTeacherStore
	sessions exportSessionStore
	csv      csvRenderer
	pdf      pdfRenderer
	logger   *zap.Logger
	now      func() time.Time
}

// NewExportService constructs an ExportService.
func NewExportService(skills exportSkillStore, teachers exportTeacherStore, sessions exportSessionStore, logger *zap.Logger, csv csvRenderer, pdf pdfRenderer) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ExportService{skills: skills, teachers: teachers, sessions: sessions, csv: csv, pdf: pdf, logger: logger, now: time.Now}
}

// Export renders the whole week in the requested format.
func (s *ExportService) Export(ctx context.Context, format string) (*ExportFile, error) {
	format = strings.ToLower(strings.TrimSpace(format))
	if format == "" {
		format = ExportFormatCSV
	}
	if format != ExportFormatCSV && format != ExportFormatPDF {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported export format %q", format))
	}

	dataset, err := s.buildDataset(ctx)
	if err != nil {
		return nil, err
	}

	file := &ExportFile{Filename: fmt.Sprintf("timetable_%s.%s", s.now().UTC().Format("20060102_150405"), format)}
	switch format {
	case ExportFormatPDF:
		file.ContentType = "application/pdf"
		file.Data, err = s.pdf.Render(dataset)
	default:
		file.ContentType = "text/csv"
		file.Data, err = s.csv.Render(dataset)
	}
	if err != nil {
		return nil, internalError(err, "failed to render timetable export")
	}
	s.logger.Info("timetable exported", zap.String("format", format), zap.Int("rows", len(dataset.Rows)), zap.Int("bytes", len(file.Data)))
	return file, nil
}

func (s *ExportService) buildDataset(ctx context.Context) (export.Dataset, error) {
	skills, err := s.skills.List(ctx, nil)
	if err != nil {
		return export.Dataset{}, internalError(err, "failed to list skills")
	}
	teachers, err := s.teachers.List(ctx, nil)
	if err != nil {
		return export.Dataset{}, internalError(err, "failed to list teachers")
	}
	sessions, err := s.sessions.ListGrid(ctx, nil)
	if err != nil {
		return export.Dataset{}, internalError(err, "failed to list sessions")
	}

	skillNames := make(map[int64]string, len(skills))
	for _, skill := range skills {
		skillNames[skill.ID] = skill.Name
	}

	dataset := export.Dataset{
		Title:   "Weekly Timetable",
		Headers: exportHeaders,
		GroupBy: "Day",
		Shade:   func(row map[string]string) bool { return row["Skill"] == lunchMarker },
	}
	for _, day := range timetable.BuildSchedule(teachers, sessions) {
		for _, row := range day.Rows {
			if row.IsLunch {
				dataset.Rows = append(dataset.Rows, map[string]string{"Day": day.Day, "Slot": row.Slot, "Skill": lunchMarker})
				continue
			}
			for _, cell := range row.Cells {
				record := map[string]string{"Day": day.Day, "Slot": row.Slot, "Year Group": cell.YearGroup}
				if cell.SessionID != nil {
					record["Skill"] = skillNames[*cell.RequiredSkillID]
					record["Teacher"] = unassignedMarker
					if cell.AssignedTeacherName != nil {
						record["Teacher"] = *cell.AssignedTeacherName
					}
				}
				dataset.Rows = append(dataset.Rows, record)
			}
		}
	}
	return dataset, nil
}
