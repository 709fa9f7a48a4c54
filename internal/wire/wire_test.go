package wire

import (
	"errors"
	"testing"

	"datausage/internal/domain"
)

func TestUsageRecordValidation(t *testing.T) {
	tests := []struct {
		name    string
		in      Usage
		wantErr bool
	}{
		{"valid", Usage{Day: "2026-02-01", DailyUsedData: 10}, false},
		{"missing day", Usage{DailyUsedData: 10}, true},
		{"bad day", Usage{Day: "01/02/2026"}, true},
		{"negative", Usage{Day: "2026-02-01", DailyUsedData: -1}, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := tc.in.Record()
			if (err != nil) != tc.wantErr {
				t.Fatalf("expected error=%v, got %v", tc.wantErr, err)
			}
		})
	}

	_, err := Usage{}.Record()
	if !errors.Is(err, domain.ErrMissingRequiredField) {
		t.Errorf("expected ErrMissingRequiredField, got %v", err)
	}
}

func TestRecordsStopsAtFirstInvalid(t *testing.T) {
	_, err := Records([]Usage{{Day: "2026-02-01"}, {Day: ""}})
	if err == nil {
		t.Fatal("expected error")
	}
	recs, err := Records([]Usage{{Day: "2026-02-01", DailyUsedData: 3}})
	if err != nil || len(recs) != 1 || domain.DayKey(recs[0].Date) != "2026-02-01" {
		t.Fatalf("unexpected result %+v, %v", recs, err)
	}
}

func TestPlanRequiresDates(t *testing.T) {
	if _, err := (Plan{}).Record(); !errors.Is(err, domain.ErrMissingRequiredField) {
		t.Fatalf("expected ErrMissingRequiredField, got %v", err)
	}
}
