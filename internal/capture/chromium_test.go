package capture

import (
	"context"
	"testing"
)

func TestDashboardURL(t *testing.T) {
	got, err := DashboardURL("http://127.0.0.1:8080/ignored?x=1", "SSA-1203")
	if err != nil {
		t.Fatalf("url: %v", err)
	}
	if got != "http://127.0.0.1:8080/?listing=SSA-1203" {
		t.Fatalf("unexpected url %s", got)
	}

	got, err = DashboardURL("http://localhost:9000", "")
	if err != nil || got != "http://localhost:9000/" {
		t.Fatalf("unexpected url %s (%v)", got, err)
	}
}

func TestCaptureRequiresOptions(t *testing.T) {
	if err := CaptureDashboardPNG(context.Background(), Options{OutputPath: "x.png"}); err == nil {
		t.Fatalf("expected error without BaseURL")
	}
	if err := CaptureDashboardPNG(context.Background(), Options{BaseURL: "http://x"}); err == nil {
		t.Fatalf("expected error without OutputPath")
	}
}
