package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gastos/internal/core"
	"gastos/internal/report"
)

// gastos runs one invocation against a CSV store in dir.
func gastos(t *testing.T, dir, stdin string, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	base := []string{"--csv-path", filepath.Join(dir, "gastos.csv"), "--env-file", filepath.Join(dir, "none.env")}
	err := execute(context.Background(), append(base, args...), strings.NewReader(stdin), &out, &errOut)
	return out.String(), err
}

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	testChdir(t, dir)
	return dir
}

func TestAddListDelete(t *testing.T) {
	dir := chdirTemp(t)

	out, err := gastos(t, dir, "", "add", "-k", "Comida", "-d", "Almuerzo en restaurante", "-a", "25,50")
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if !strings.Contains(out, "Expense saved: [Comida] Almuerzo en restaurante - $25.50") {
		t.Errorf("unexpected add output %q", out)
	}
	if _, err := gastos(t, dir, "", "add", "-k", "Transporte", "-d", "Uber al trabajo", "-a", "12.75"); err != nil {
		t.Fatalf("add: %v", err)
	}

	out, err = gastos(t, dir, "", "list", "--format", "json")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	var rows []report.ExpenseRow
	if err := json.Unmarshal([]byte(out), &rows); err != nil {
		t.Fatalf("decode list: %v\n%s", err, out)
	}
	if len(rows) != 2 || rows[1].Description != "Uber al trabajo" {
		t.Fatalf("unexpected rows %+v", rows)
	}

	if _, err := gastos(t, dir, "", "delete", "0"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := gastos(t, dir, "", "delete", "--ref", rows[1].Ref); err != nil {
		t.Fatalf("delete by ref: %v", err)
	}

	out, err = gastos(t, dir, "", "total")
	if err != nil {
		t.Fatalf("total: %v", err)
	}
	if out != "Total spent: $0.00\n" {
		t.Errorf("unexpected total %q", out)
	}

	data, err := os.ReadFile(filepath.Join(dir, "gastos.csv"))
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	if string(data) != "fecha,categoria,descripcion,monto\n" {
		t.Errorf("expected header only, got %q", data)
	}
}

func TestListRecentKeepsPositions(t *testing.T) {
	dir := chdirTemp(t)
	for _, a := range []string{"1", "2", "3"} {
		if _, err := gastos(t, dir, "", "add", "-k", "Cat", "-d", "item"+a, "-a", a); err != nil {
			t.Fatalf("add: %v", err)
		}
	}
	out, err := gastos(t, dir, "", "list", "-n", "1", "-o", "json")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	var rows []report.ExpenseRow
	if err := json.Unmarshal([]byte(out), &rows); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(rows) != 1 || rows[0].Position != 2 || rows[0].Description != "item3" {
		t.Errorf("unexpected rows %+v", rows)
	}
}

func TestCommandErrors(t *testing.T) {
	dir := chdirTemp(t)

	tests := []struct {
		name string
		args []string
		is   error
	}{
		{"invalid amount", []string{"add", "-k", "Comida", "-d", "Pan", "-a", "-3"}, core.ErrValidation},
		{"empty category", []string{"add", "-k", " ", "-d", "Pan", "-a", "3"}, core.ErrValidation},
		{"position out of range", []string{"delete", "5"}, core.ErrOutOfRange},
		{"position not a number", []string{"delete", "first"}, core.ErrValidation},
		{"unknown ref", []string{"delete", "--ref", "20000101000000-0"}, core.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := gastos(t, dir, "", tt.args...)
			if !errors.Is(err, tt.is) {
				t.Fatalf("expected %v, got %v", tt.is, err)
			}
		})
	}

	if _, err := gastos(t, dir, "", "delete"); err == nil {
		t.Error("delete without position or ref should fail")
	}
	if _, err := gastos(t, dir, "", "list", "--format", "xml"); err == nil {
		t.Error("unknown format should fail")
	}
	if _, err := gastos(t, dir, "", "list", "--data-backend", "postgres"); err == nil {
		t.Error("unknown backend should fail")
	}
}

func TestStorageErrorIsReported(t *testing.T) {
	dir := chdirTemp(t)
	// A directory where the CSV file should be makes every read fail.
	blocked := filepath.Join(dir, "blocked.csv")
	if err := os.Mkdir(blocked, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	var out, errOut bytes.Buffer
	err := execute(context.Background(), []string{"--csv-path", blocked, "total"}, strings.NewReader(""), &out, &errOut)
	if !errors.Is(err, core.ErrStorage) {
		t.Fatalf("expected storage error, got %v", err)
	}
}

func TestSeedAndReports(t *testing.T) {
	dir := chdirTemp(t)

	out, err := gastos(t, dir, "", "seed")
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	if !strings.Contains(out, "Netflix mensual") {
		t.Errorf("seed output missing entries:\n%s", out)
	}

	out, err = gastos(t, dir, "", "stats", "-o", "json")
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	var st report.StatisticsView
	if err := json.Unmarshal([]byte(out), &st); err != nil {
		t.Fatalf("decode: %v", err)
	}
	want := report.StatisticsView{Count: 12, Total: "376.34", Average: "31.36", Max: "85.30", Min: "8.50"}
	if st != want {
		t.Errorf("stats = %+v, want %+v", st, want)
	}

	out, err = gastos(t, dir, "", "categories", "-o", "yaml")
	if err != nil {
		t.Fatalf("categories: %v", err)
	}
	if !strings.Contains(out, "category: Comida") || !strings.Contains(out, "total: \"135.80\"") {
		t.Errorf("unexpected categories:\n%s", out)
	}
}

func TestMenuIsDefault(t *testing.T) {
	dir := chdirTemp(t)

	out, err := gastos(t, dir, "1\nComida\nPan\n2.40\n2\n3\n")
	if err != nil {
		t.Fatalf("menu: %v", err)
	}
	for _, want := range []string{"1) Add an expense", "Expense saved: Pan - $2.40", "Recorded expenses: 1", "Goodbye."} {
		if !strings.Contains(out, want) {
			t.Errorf("menu output missing %q:\n%s", want, out)
		}
	}
}

func TestInitAndMemoryBackend(t *testing.T) {
	dir := chdirTemp(t)

	out, err := gastos(t, dir, "", "init")
	if err != nil {
		t.Fatalf("init: %v", err)
	}
	if !strings.Contains(out, "gastos.csv") {
		t.Errorf("unexpected init output %q", out)
	}
	if _, err := os.Stat(filepath.Join(dir, "gastos.csv")); err != nil {
		t.Errorf("store file missing: %v", err)
	}

	out, err = gastos(t, dir, "", "--data-backend", "memory", "total")
	if err != nil {
		t.Fatalf("memory total: %v", err)
	}
	if out != "Total spent: $0.00\n" {
		t.Errorf("unexpected memory total %q", out)
	}
}

func TestSQLiteBackend(t *testing.T) {
	dir := chdirTemp(t)
	db := filepath.Join(dir, "data", "gastos.db")

	if _, err := gastos(t, dir, "", "--data-backend", "sqlite", "--sqlite-db-path", db, "add", "-k", "Salud", "-d", "Farmacia", "-a", "22.5"); err != nil {
		t.Fatalf("add: %v", err)
	}
	out, err := gastos(t, dir, "", "--data-backend", "sqlite", "--sqlite-db-path", db, "total")
	if err != nil {
		t.Fatalf("total: %v", err)
	}
	if out != "Total spent: $22.50\n" {
		t.Errorf("unexpected total %q", out)
	}
}

// testChdir changes the working directory for the duration of the test and
// restores it on cleanup (equivalent to testing.T.Chdir from Go 1.24).
func testChdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(prev); err != nil {
			t.Fatal(err)
		}
	})
}
