// Package report exports a priced calendar as XLSX or PDF.
package report

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"

	"temporada/internal/model"
	"temporada/internal/pricing"
)

// Content types served for the exports.
const (
	ContentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	ContentTypePDF  = "application/pdf"
)

// Statement is one exported dashboard.
type Statement struct {
	Listing     model.Listing
	Dashboard   pricing.Dashboard
	GeneratedAt time.Time
}

func statusLabel(s model.Status) string {
	if s == model.StatusOccupied {
		return "Ocupado"
	}
	return "Livre"
}

// BuildXLSX renders a summary sheet and a per-day sheet.
func BuildXLSX(st Statement) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	summarySheet := "resumo"
	daysSheet := "dias"
	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(daysSheet); err != nil {
		return nil, err
	}

	d := st.Dashboard
	_ = f.SetCellValue(summarySheet, "A1", "Precificação sugerida")
	_ = f.SetCellValue(summarySheet, "A3", "Imóvel")
	_ = f.SetCellValue(summarySheet, "B3", st.Listing.Title)
	_ = f.SetCellValue(summarySheet, "A4", "ID")
	_ = f.SetCellValue(summarySheet, "B4", st.Listing.ID)
	_ = f.SetCellValue(summarySheet, "A5", "Cidade")
	_ = f.SetCellValue(summarySheet, "B5", st.Listing.City)
	_ = f.SetCellValue(summarySheet, "A6", "Preço base")
	_ = f.SetCellValue(summarySheet, "B6", d.Base)
	_ = f.SetCellValue(summarySheet, "A7", "Ocupação prevista")
	_ = f.SetCellValue(summarySheet, "B7", d.Stats.OccupancyRate)
	_ = f.SetCellValue(summarySheet, "A8", "Receita potencial")
	_ = f.SetCellValue(summarySheet, "B8", d.Stats.PotentialRevenue)
	_ = f.SetCellValue(summarySheet, "A9", "Gerado em")
	_ = f.SetCellValue(summarySheet, "B9", st.GeneratedAt.Format(time.RFC3339))
	for i, w := range d.Warnings {
		_ = f.SetCellValue(summarySheet, fmt.Sprintf("A%d", 11+i), "Aviso")
		_ = f.SetCellValue(summarySheet, fmt.Sprintf("B%d", 11+i), w)
	}

	pct, err := f.NewStyle(&excelize.Style{NumFmt: 10})
	if err == nil {
		_ = f.SetCellStyle(summarySheet, "B7", "B7", pct)
	}

	headers := []string{"Data", "Status", "Preço", "Probabilidade", "Feriado", "Boost"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(daysSheet, cell, h)
	}
	for i, r := range d.Rows {
		row := i + 2
		_ = f.SetCellValue(daysSheet, fmt.Sprintf("A%d", row), r.Date.Key())
		_ = f.SetCellValue(daysSheet, fmt.Sprintf("B%d", row), statusLabel(r.Status))
		_ = f.SetCellValue(daysSheet, fmt.Sprintf("C%d", row), r.Price)
		_ = f.SetCellValue(daysSheet, fmt.Sprintf("D%d", row), r.Probability)
		_ = f.SetCellValue(daysSheet, fmt.Sprintf("E%d", row), r.Reason)
		if r.Boost != 0 {
			_ = f.SetCellValue(daysSheet, fmt.Sprintf("F%d", row), r.Boost)
		}
	}
	if err == nil && len(d.Rows) > 0 {
		_ = f.SetCellStyle(daysSheet, "D2", fmt.Sprintf("D%d", len(d.Rows)+1), pct)
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BuildPDF renders the same content as a single A4 document.
func BuildPDF(st Statement) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetFont("Arial", "B", 14)
	pdf.AddPage()

	d := st.Dashboard
	pdf.Cell(0, 8, tr("Precificação sugerida"))
	pdf.Ln(10)
	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 6, tr(fmt.Sprintf("Imóvel: %s (%s)", st.Listing.Title, st.Listing.ID)))
	pdf.Ln(5)
	pdf.Cell(0, 6, tr(fmt.Sprintf("Cidade: %s", st.Listing.City)))
	pdf.Ln(5)
	pdf.Cell(0, 6, tr(fmt.Sprintf("Preço base: R$ %.0f", d.Base)))
	pdf.Ln(5)
	pdf.Cell(0, 6, tr(fmt.Sprintf("Ocupação prevista: %.0f%%", d.Stats.OccupancyRate*100)))
	pdf.Ln(5)
	pdf.Cell(0, 6, tr(fmt.Sprintf("Receita potencial: R$ %.0f", d.Stats.PotentialRevenue)))
	pdf.Ln(5)
	pdf.Cell(0, 6, tr(fmt.Sprintf("Gerado em: %s", st.GeneratedAt.Format(time.RFC3339))))
	pdf.Ln(5)
	for _, w := range d.Warnings {
		pdf.Cell(0, 6, tr("Aviso: "+w))
		pdf.Ln(5)
	}
	pdf.Ln(4)

	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(30, 6, "Data", "1", 0, "C", false, 0, "")
	pdf.CellFormat(25, 6, "Status", "1", 0, "C", false, 0, "")
	pdf.CellFormat(25, 6, tr("Preço"), "1", 0, "C", false, 0, "")
	pdf.CellFormat(30, 6, "Probabilidade", "1", 0, "C", false, 0, "")
	pdf.CellFormat(70, 6, "Feriado", "1", 0, "C", false, 0, "")
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 10)
	for _, r := range d.Rows {
		pdf.CellFormat(30, 6, r.Date.Key(), "1", 0, "C", false, 0, "")
		pdf.CellFormat(25, 6, statusLabel(r.Status), "1", 0, "C", false, 0, "")
		pdf.CellFormat(25, 6, fmt.Sprintf("R$ %d", r.Price), "1", 0, "R", false, 0, "")
		pdf.CellFormat(30, 6, fmt.Sprintf("%.0f%%", r.Probability*100), "1", 0, "R", false, 0, "")
		reason := r.Reason
		if reason != "" && r.Boost != 0 {
			reason = fmt.Sprintf("%s (+%.0f%%)", reason, r.Boost*100)
		}
		pdf.CellFormat(70, 6, tr(reason), "1", 0, "L", false, 0, "")
		pdf.Ln(-1)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
