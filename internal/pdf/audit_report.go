package pdf

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"

	"lostandfound/internal/models"
)

// ReportGenerator: интерфейс, удобно мокать в тестах
type ReportGenerator interface {
	GenerateSecurityReport(data SecurityReportData) ([]byte, error)
}

type SecurityReportData struct {
	GeneratedAt time.Time
	Snapshot    *models.DetectorSnapshot
	Events      []*models.AuthEvent
	Stats       *models.AuthEventStats
}

type AuditReportGenerator struct{}

func NewAuditReportGenerator() *AuditReportGenerator {
	return &AuditReportGenerator{}
}

func (g *AuditReportGenerator) GenerateSecurityReport(data SecurityReportData) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("Authentication Security Report", false)
	pdf.SetAuthor("LostAndFound", false)
	pdf.SetMargins(20, 20, 20)
	pdf.SetAutoPageBreak(true, 20)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 18)
	pdf.CellFormat(0, 10, "Authentication Security Report", "", 1, "C", false, 0, "")

	pdf.SetFont("Helvetica", "", 11)
	pdf.CellFormat(0, 7, "Generated "+data.GeneratedAt.Format("2006-01-02 15:04:05"), "", 1, "C", false, 0, "")
	g.hr(pdf)

	if s := data.Snapshot; s != nil {
		pdf.SetFont("Helvetica", "B", 13)
		pdf.CellFormat(0, 8, "Activity summary", "", 1, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 11)
		pdf.CellFormat(0, 6, fmt.Sprintf("Failed attempts, last hour: %d", s.RecentFailures), "", 1, "L", false, 0, "")
		pdf.CellFormat(0, 6, fmt.Sprintf("Events, last hour: %d", s.LastHour), "", 1, "L", false, 0, "")
		pdf.CellFormat(0, 6, fmt.Sprintf("Events, last day: %d", s.LastDay), "", 1, "L", false, 0, "")
		pdf.Ln(3)

		pdf.SetFont("Helvetica", "B", 13)
		pdf.CellFormat(0, 8, "Suspicious identifiers", "", 1, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 11)
		if len(s.SuspiciousIdentifiers) == 0 {
			pdf.CellFormat(0, 6, "none", "", 1, "L", false, 0, "")
		}
		for _, si := range s.SuspiciousIdentifiers {
			pdf.CellFormat(0, 6, fmt.Sprintf("%s - %d failed logins", si.Identifier, si.FailureCount), "", 1, "L", false, 0, "")
		}
		g.hr(pdf)
	}

	if data.Stats != nil {
		pdf.SetFont("Helvetica", "B", 13)
		pdf.CellFormat(0, 8, "Filtered totals", "", 1, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 11)
		pdf.CellFormat(0, 6, fmt.Sprintf("Total: %d   Success: %d   Failed: %d",
			data.Stats.Total, data.Stats.Success, data.Stats.Failed), "", 1, "L", false, 0, "")
		pdf.Ln(3)
	}

	if len(data.Events) > 0 {
		pdf.SetFont("Helvetica", "B", 13)
		pdf.CellFormat(0, 8, "Recent events", "", 1, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 9)
		for _, e := range data.Events {
			status := "ok"
			if !e.Success {
				status = "FAIL"
			}
			flag := ""
			if e.AlertFlag {
				flag = " [ALERT]"
			}
			line := fmt.Sprintf("%s  %-20s %-12s %-4s %s%s",
				e.CreatedAt.Format("01-02 15:04:05"), e.Type, e.Identifier, status, e.Detail, flag)
			pdf.CellFormat(0, 5, line, "", 1, "L", false, 0, "")
		}
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render security report: %w", err)
	}
	return buf.Bytes(), nil
}

func (g *AuditReportGenerator) hr(pdf *gofpdf.Fpdf) {
	pdf.Ln(2)
	x, y := pdf.GetXY()
	pdf.Line(x, y, 190, y)
	pdf.Ln(4)
}
