package service

import (
	"context"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"github.com/noah-isme/exam-adp-api/internal/models"
	appErrors "github.com/noah-isme/exam-adp-api/pkg/errors"
	"github.com/noah-isme/exam-adp-api/pkg/export"
)

// Report formats.
const (
	FormatCSV = "csv"
	FormatPDF = "pdf"
)

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

type studentRoster interface {
	ListCourseStudents(ctx context.Context, courseID string) ([]string, error)
}

// ReportFile is a rendered export ready to stream.
type ReportFile struct {
	FileName    string
	ContentType string
	Content     []byte
}

// ReportService renders course result sheets for download.
type ReportService struct {
	results resultRepo
	roster  studentRoster
	csv     csvRenderer
	pdf     pdfRenderer
	enabled bool
	logger  *zap.Logger
}

// NewReportService constructs ReportService. Nil exporters fall back to the
// built-in renderers; without a roster the sheet lists scored students only.
func NewReportService(results resultRepo, roster studentRoster, csv csvRenderer, pdf pdfRenderer, enabled bool, logger *zap.Logger) *ReportService {
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReportService{results: results, roster: roster, csv: csv, pdf: pdf, enabled: enabled, logger: logger}
}

// CourseResults renders the full result sheet of a course in the requested
// format.
func (s *ReportService) CourseResults(ctx context.Context, courseID, format string) (*ReportFile, error) {
	if !s.enabled {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "result export is disabled")
	}

	results, err := s.results.List(ctx, models.ResultFilter{CourseID: courseID})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list results")
	}

	var enrolled []string
	if s.roster != nil {
		enrolled, err = s.roster.ListCourseStudents(ctx, courseID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list course students")
		}
	}

	dataset := buildResultDataset(results, enrolled)
	switch format {
	case FormatCSV:
		content, err := s.csv.Render(dataset)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv")
		}
		return &ReportFile{
			FileName:    fmt.Sprintf("results-%s.csv", courseID),
			ContentType: "text/csv",
			Content:     content,
		}, nil
	case FormatPDF:
		content, err := s.pdf.Render(dataset, fmt.Sprintf("Course results %s", courseID))
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf")
		}
		return &ReportFile{
			FileName:    fmt.Sprintf("results-%s.pdf", courseID),
			ContentType: "application/pdf",
			Content:     content,
		}, nil
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf")
	}
}

// buildResultDataset lays out one row per scored student, then one blank row
// per enrolled student who has no result yet.
func buildResultDataset(results []models.Result, enrolled []string) export.Dataset {
	headers := []string{"Student", "Mid Exam", "Mid Max", "Final Exam", "Final Max", "Assignment", "Overall", "Grade", "Published"}
	rows := make([]map[string]string, 0, len(results)+len(enrolled))
	scored := make(map[string]struct{}, len(results))
	for _, result := range results {
		scored[result.StudentID] = struct{}{}
		rows = append(rows, map[string]string{
			"Student":    result.StudentID,
			"Mid Exam":   formatScore(result.MidExamScore),
			"Mid Max":    formatScore(result.MidExamMaxScore),
			"Final Exam": formatScore(result.FinalExamScore),
			"Final Max":  formatScore(result.FinalExamMaxScore),
			"Assignment": formatScore(result.AssignmentScore),
			"Overall":    strconv.FormatFloat(result.OverallScore, 'f', 2, 64),
			"Grade":      result.Grade,
			"Published":  strconv.FormatBool(result.IsVisible),
		})
	}
	for _, studentID := range enrolled {
		if _, ok := scored[studentID]; ok {
			continue
		}
		rows = append(rows, map[string]string{
			"Student":   studentID,
			"Published": "false",
		})
	}
	return export.Dataset{Headers: headers, Rows: rows}
}

func formatScore(score *float64) string {
	if score == nil {
		return ""
	}
	return strconv.FormatFloat(*score, 'f', 2, 64)
}
