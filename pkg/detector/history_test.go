package detector

import (
	"context"
	"testing"
)

func TestHistoryAppendInMemory(t *testing.T) {
	h := NewHistory(nil, nil)
	ctx := context.Background()

	rec := NewPerformanceRecord("random_forest", Evaluation{Precision: 0.9, Recall: 0.8, F1: 0.85})
	if rec.ID == "" {
		t.Fatal("record id not assigned")
	}
	if err := h.Append(ctx, rec); err != nil {
		t.Fatalf("Append: %v", err)
	}

	got := h.Records()
	if len(got) != 1 {
		t.Fatalf("got %d records, want 1", len(got))
	}
	if got[0].Model != "random_forest" || got[0].F1 != 0.85 {
		t.Errorf("record = %+v", got[0])
	}
}

func TestHistoryRecordsIsACopy(t *testing.T) {
	h := NewHistory(nil, nil)
	ctx := context.Background()
	if err := h.Append(ctx, NewPerformanceRecord("mlp", Evaluation{})); err != nil {
		t.Fatal(err)
	}

	got := h.Records()
	got[0].Model = "mutated"
	if h.Records()[0].Model != "mlp" {
		t.Error("Records exposed internal storage")
	}
}
