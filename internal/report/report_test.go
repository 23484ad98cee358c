package report

import (
	"bytes"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"temporada/internal/model"
	"temporada/internal/pricing"
)

func sampleStatement() Statement {
	listing := model.Listing{
		ID: "SSA-1203", Title: "Studio Vista Mar em Ondina", City: "Salvador",
		BasePrice: 240, MinPrice: 150, MaxPrice: 900,
		Calendar: pricing.BuildWindow(model.NewDate(2025, 12, 20), nil),
	}
	now := time.Date(2025, 11, 1, 12, 0, 0, 0, time.UTC)
	holidays := []model.Holiday{{Date: model.NewDate(2025, 12, 25), Reason: "Natal", Boost: model.BoostOf(0.3)}}
	return Statement{
		Listing:     listing,
		Dashboard:   pricing.BuildDashboard(listing, 260, nil, holidays, now),
		GeneratedAt: now,
	}
}

func TestBuildXLSX(t *testing.T) {
	st := sampleStatement()
	b, err := BuildXLSX(st)
	if err != nil {
		t.Fatalf("xlsx: %v", err)
	}

	f, err := excelize.OpenReader(bytes.NewReader(b))
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer f.Close()

	if v, _ := f.GetCellValue("resumo", "B4"); v != "SSA-1203" {
		t.Fatalf("unexpected listing id cell %q", v)
	}
	rows, err := f.GetRows("dias")
	if err != nil {
		t.Fatalf("rows: %v", err)
	}
	if len(rows) != len(st.Dashboard.Rows)+1 {
		t.Fatalf("expected %d rows, got %d", len(st.Dashboard.Rows)+1, len(rows))
	}
	// 2025-12-25 is the sixth day of the window.
	if rows[6][0] != "2025-12-25" || rows[6][4] != "Natal" {
		t.Fatalf("holiday row not exported: %v", rows[6])
	}
}

func TestBuildPDF(t *testing.T) {
	b, err := BuildPDF(sampleStatement())
	if err != nil {
		t.Fatalf("pdf: %v", err)
	}
	if !bytes.HasPrefix(b, []byte("%PDF-")) {
		t.Fatalf("output is not a PDF")
	}
}
