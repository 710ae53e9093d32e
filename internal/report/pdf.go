// Package report renders the evidence vault as a PDF.
package report

import (
	"bytes"
	"fmt"
	"image/jpeg"
	"io"
	"strings"
	"time"

	"github.com/phpdave11/gofpdf"

	"github.com/wolfman30/guardian-ai/internal/evidence"
	"github.com/wolfman30/guardian-ai/internal/locale"
	"github.com/wolfman30/guardian-ai/internal/settings"
)

// Options describes the report header.
type Options struct {
	Owner       string
	Language    locale.Language
	Contacts    []settings.Contact
	GeneratedAt time.Time
}

// Filename is the download name for a report generated at t.
func Filename(t time.Time) string {
	return fmt.Sprintf("guardian-evidence-%s.pdf", t.UTC().Format("2006-01-02"))
}

// Generate writes the report for items, newest first, to w.
func Generate(w io.Writer, opts Options, items []evidence.Item) error {
	if opts.GeneratedAt.IsZero() {
		opts.GeneratedAt = time.Now()
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(10, 14, 10)
	pdf.SetAutoPageBreak(true, 16)
	pdf.SetTitle("GuardianAI - Evidence Report", false)
	pdf.AliasNbPages("")
	pdf.SetFooterFunc(func() {
		pdf.SetY(-12)
		pdf.SetFont("Helvetica", "", 8)
		pdf.SetTextColor(150, 150, 150)
		pdf.CellFormat(0, 5, fmt.Sprintf("GuardianAI Confidential Report - Page %d of {nb}", pdf.PageNo()), "", 0, "C", false, 0, "")
	})
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 22)
	pdf.SetTextColor(220, 38, 38)
	pdf.CellFormat(0, 10, "GuardianAI - Evidence Report", "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	pdf.SetTextColor(100, 100, 100)
	pdf.CellFormat(0, 6, "Generated: "+opts.GeneratedAt.UTC().Format("2006-01-02 15:04:05 MST"), "", 1, "L", false, 0, "")
	rule(pdf)

	kv(pdf, "Account Holder", opts.Owner)
	if opts.Language != "" {
		kv(pdf, "Language", opts.Language.Name())
	}
	contacts := make([]string, 0, len(opts.Contacts))
	for _, c := range opts.Contacts {
		contacts = append(contacts, fmt.Sprintf("%s <%s> (%s)", c.Name, c.Email, c.Relationship))
	}
	kv(pdf, "Emergency Contacts", strings.Join(contacts, "; "))
	pdf.Ln(3)

	high, secured := 0, 0
	for _, it := range items {
		if it.Analysis != nil && it.Analysis.ThreatLevel == evidence.ThreatHigh {
			high++
		}
		if it.BackupStatus == evidence.StatusSecured {
			secured++
		}
	}
	y := pdf.GetY()
	pdf.SetFillColor(241, 245, 249)
	pdf.Rect(10, y, 190, 22, "F")
	pdf.SetFont("Helvetica", "", 11)
	pdf.SetTextColor(0, 0, 0)
	pdf.Text(20, y+9, fmt.Sprintf("Total Evidence Items: %d", len(items)))
	pdf.Text(20, y+17, fmt.Sprintf("High Threat Incidents: %d", high))
	pdf.Text(120, y+9, fmt.Sprintf("Secured in Cloud: %d", secured))
	pdf.SetY(y + 28)

	pdf.SetFont("Helvetica", "B", 16)
	pdf.CellFormat(0, 8, "Incident Log", "", 1, "L", false, 0, "")
	pdf.Ln(2)
	if len(items) == 0 {
		pdf.SetFont("Helvetica", "", 10)
		pdf.SetTextColor(90, 90, 90)
		pdf.MultiCell(0, 5, "(empty)", "", "L", false)
	}
	for i, it := range items {
		incident(pdf, i+1, it)
	}

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("report: render pdf: %w", err)
	}
	return nil
}

const incidentHeight = 62.0

func incident(pdf *gofpdf.Fpdf, n int, it evidence.Item) {
	_, pageH := pdf.GetPageSize()
	_, _, _, bottom := pdf.GetMargins()
	if pdf.GetY()+incidentHeight > pageH-bottom {
		pdf.AddPage()
	}
	top := pdf.GetY()
	pdf.SetDrawColor(226, 232, 240)
	pdf.Rect(10, top, 190, incidentHeight-2, "D")

	if !embedImage(pdf, it, 15, top+5) {
		pdf.SetFont("Helvetica", "", 8)
		pdf.SetTextColor(120, 120, 120)
		pdf.Text(25, top+28, "Image Error")
	}

	left := 72.0
	pdf.SetXY(left, top+4)
	pdf.SetFont("Helvetica", "B", 12)
	pdf.SetTextColor(30, 41, 59)
	pdf.CellFormat(0, 6, fmt.Sprintf("Incident #%d - %s", n, it.TriggerType), "", 2, "L", false, 0, "")

	pdf.SetFont("Helvetica", "", 9)
	pdf.SetTextColor(100, 100, 100)
	pdf.CellFormat(0, 5, time.UnixMilli(it.Timestamp).UTC().Format("2006-01-02 15:04:05 MST"), "", 2, "L", false, 0, "")

	threat := "UNKNOWN"
	if it.Analysis != nil {
		threat = string(it.Analysis.ThreatLevel)
	}
	if threat == string(evidence.ThreatHigh) {
		pdf.SetTextColor(220, 38, 38)
	} else {
		pdf.SetTextColor(71, 85, 105)
	}
	pdf.SetFont("Helvetica", "B", 10)
	pdf.CellFormat(0, 5, "Threat Level: "+threat, "", 2, "L", false, 0, "")

	pdf.SetFont("Helvetica", "", 9)
	pdf.SetTextColor(0, 0, 0)
	coords := "-"
	if it.HasLocation() {
		coords = fmt.Sprintf("%.5f, %.5f", *it.Latitude, *it.Longitude)
	}
	line(pdf, left, "Coordinates: "+coords)
	if it.Analysis != nil {
		line(pdf, left, "Persons: "+joinOrDash(it.Analysis.Persons))
		line(pdf, left, "Vehicles: "+joinOrDash(it.Analysis.Vehicles))
		line(pdf, left, "Context: "+it.Analysis.LocationContext)
	} else {
		line(pdf, left, "Context: Unknown")
	}
	status := "Backup: " + string(it.BackupStatus)
	if it.Classification != "" {
		status += " | Classification: " + string(it.Classification)
	}
	if it.IsShared {
		status += fmt.Sprintf(" | Shared, %d sightings", it.Sightings)
	}
	line(pdf, left, status)

	if it.BackupStatus == evidence.StatusSecured {
		pdf.SetFont("Helvetica", "", 8)
		pdf.SetTextColor(22, 163, 74)
		pdf.Text(150, top+incidentHeight-5, "Protected in Cloud Vault")
	}
	pdf.SetXY(10, top+incidentHeight)
}

func embedImage(pdf *gofpdf.Fpdf, it evidence.Item, x, y float64) bool {
	data, err := it.ImageData()
	if err != nil {
		return false
	}
	if _, err := jpeg.DecodeConfig(bytes.NewReader(data)); err != nil {
		return false
	}
	name := "evidence-" + it.ID
	opts := gofpdf.ImageOptions{ImageType: "JPG"}
	pdf.RegisterImageOptionsReader(name, opts, bytes.NewReader(data))
	if !pdf.Ok() {
		return false
	}
	pdf.ImageOptions(name, x, y, 50, 50, false, opts, 0, "")
	return true
}

func rule(pdf *gofpdf.Fpdf) {
	pdf.SetDrawColor(200, 200, 200)
	pdf.Line(10, pdf.GetY()+1, 200, pdf.GetY()+1)
	pdf.Ln(4)
}

func kv(pdf *gofpdf.Fpdf, key, value string) {
	if strings.TrimSpace(value) == "" {
		value = "-"
	}
	pdf.SetFont("Helvetica", "B", 11)
	pdf.SetTextColor(0, 0, 0)
	pdf.CellFormat(45, 6, key+":", "", 0, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 11)
	pdf.MultiCell(0, 6, safeText(value), "", "L", false)
}

func line(pdf *gofpdf.Fpdf, left float64, text string) {
	pdf.SetX(left)
	pdf.MultiCell(120, 4.5, safeText(text), "", "L", false)
}

func joinOrDash(values []string) string {
	if len(values) == 0 {
		return "-"
	}
	return strings.Join(values, ", ")
}

// safeText keeps the core fonts happy: control characters become spaces
// and anything outside printable ASCII becomes '?'.
func safeText(s string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(s) {
		switch {
		case r == '\n' || r == '\r' || r == '\t':
			b.WriteByte(' ')
		case r < 0x20 || r > 0x7e:
			b.WriteByte('?')
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
