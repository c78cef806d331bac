package log

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{"debug", slog.LevelDebug, false},
		{"INFO", slog.LevelInfo, false},
		{" warn ", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"loud", slog.LevelInfo, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseLevel(%q) err = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestLoggerWritesComponent(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: slog.LevelInfo, Component: ComponentStorage, Format: "logfmt", Output: &buf})

	logger.Info("Expense file created", FieldPath, "gastos.csv")
	logger.Debug("hidden")

	out := buf.String()
	if !strings.Contains(out, "component=storage") || !strings.Contains(out, "path=gastos.csv") {
		t.Fatalf("unexpected output %q", out)
	}
	if strings.Contains(out, "hidden") {
		t.Fatalf("debug message should be filtered: %q", out)
	}
}

func TestLogFields(t *testing.T) {
	f := NewFields().
		WithComponent(ComponentExpense).
		WithOperation(OpCreate).
		WithExpense("20250101120000-0", "Food", 150).
		WithError(errors.New("boom"))

	if f[FieldRef] != "20250101120000-0" || f[FieldAmountCents] != int64(150) || f[FieldError] != "boom" {
		t.Fatalf("unexpected fields %v", f)
	}
	if len(f.ToSlice()) != 2*len(f) {
		t.Fatalf("ToSlice length mismatch")
	}
}
