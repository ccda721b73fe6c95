package export

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"
)

// Certificate describes a completed training to be rendered.
type Certificate struct {
	TeacherName  string
	Cluster      string
	ModuleTitle  string
	Competency   string
	Difficulty   string
	AssignedDate time.Time
	CompletedAt  time.Time
	Reference    string
}

// PDFExporter renders completion certificates.
type PDFExporter struct {
	issuer string
}

// NewPDFExporter constructs a PDF exporter signing certificates as issuer.
func NewPDFExporter(issuer string) *PDFExporter {
	if issuer == "" {
		issuer = "District Teacher Training Programme"
	}
	return &PDFExporter{issuer: issuer}
}

// RenderCertificate produces a single page landscape certificate.
func (e *PDFExporter) RenderCertificate(cert Certificate) ([]byte, error) {
	if cert.TeacherName == "" || cert.ModuleTitle == "" {
		return nil, fmt.Errorf("certificate requires teacher name and module title")
	}
	if cert.CompletedAt.IsZero() {
		return nil, fmt.Errorf("certificate requires a completion date")
	}

	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.SetMargins(20, 20, 20)
	pdf.AddPage()
	pdf.SetLineWidth(1.2)
	pdf.Rect(10, 10, 277, 190, "D")

	pdf.SetFont("Arial", "B", 26)
	pdf.Ln(12)
	pdf.CellFormat(0, 14, "CERTIFICATE OF COMPLETION", "", 1, "C", false, 0, "")

	pdf.SetFont("Arial", "", 13)
	pdf.Ln(6)
	pdf.CellFormat(0, 8, "This certifies that", "", 1, "C", false, 0, "")
	pdf.SetFont("Arial", "B", 20)
	pdf.CellFormat(0, 12, cert.TeacherName, "", 1, "C", false, 0, "")

	pdf.SetFont("Arial", "", 13)
	pdf.CellFormat(0, 8, "has completed the training module", "", 1, "C", false, 0, "")
	pdf.SetFont("Arial", "B", 16)
	pdf.MultiCell(0, 9, cert.ModuleTitle, "", "C", false)
	pdf.Ln(8)

	rows := [][2]string{
		{"Competency", humanize(cert.Competency)},
		{"Level", humanize(cert.Difficulty)},
		{"Cluster", cert.Cluster},
		{"Assigned", formatDate(cert.AssignedDate)},
		{"Completed", formatDate(cert.CompletedAt)},
	}
	pdf.SetFont("Arial", "", 11)
	for _, row := range rows {
		if row[1] == "" {
			continue
		}
		pdf.SetX(88)
		pdf.CellFormat(40, 7, row[0], "", 0, "R", false, 0, "")
		pdf.CellFormat(80, 7, row[1], "", 1, "L", false, 0, "")
	}

	pdf.SetY(-38)
	pdf.SetFont("Arial", "I", 10)
	pdf.CellFormat(0, 6, e.issuer, "", 1, "C", false, 0, "")
	if cert.Reference != "" {
		pdf.CellFormat(0, 6, "Ref: "+cert.Reference, "", 1, "C", false, 0, "")
	}

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render certificate pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func humanize(value string) string {
	if value == "" {
		return ""
	}
	words := strings.Fields(strings.ReplaceAll(value, "_", " "))
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("2 January 2006")
}
