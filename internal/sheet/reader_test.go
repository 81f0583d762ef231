package sheet

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/xuri/excelize/v2"
)

func writeTemp(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	return path
}

func TestOpenCSV(t *testing.T) {
	path := writeTemp(t, "roster.csv",
		[]byte("Nome,Telefone,Atividade\nAna Silva,(11) 9999-0001,Natação\n"))

	rows, err := Open(path, "")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
	rec := rows[0].Record
	if rec.Name != "Ana Silva" {
		t.Fatalf("name: %q", rec.Name)
	}
	if rec.Phone == nil || *rec.Phone != "(11) 9999-0001" {
		t.Fatalf("phone: %v", rec.Phone)
	}
	if rec.Activity == nil || *rec.Activity != "Natação" {
		t.Fatalf("activity: %v", rec.Activity)
	}
}

func TestOpenCSVWithBOM(t *testing.T) {
	path := writeTemp(t, "bom.csv",
		append([]byte{0xEF, 0xBB, 0xBF}, []byte("nome\nJoão\n")...))

	rows, err := Open(path, "")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if len(rows) != 1 || rows[0].Record.Name != "João" {
		t.Fatalf("unexpected rows: %+v", rows)
	}
}

func TestOpenCSVLatin1Fallback(t *testing.T) {
	// "José" encoded as latin-1: é = 0xE9.
	data := []byte("nome\nJos\xe9\n")
	path := writeTemp(t, "legacy.csv", data)

	rows, err := Open(path, "")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if len(rows) != 1 || rows[0].Record.Name != "José" {
		t.Fatalf("expected latin-1 fallback to decode José, got %+v", rows)
	}
}

func TestOpenCSVNoDataRows(t *testing.T) {
	path := writeTemp(t, "empty.csv", []byte("Nome,Telefone\n"))
	_, err := Open(path, "")
	if !errors.Is(err, ErrNoRows) {
		t.Fatalf("expected ErrNoRows, got %v", err)
	}
}

func TestOpenMissingFile(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing.csv"), "")
	if err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestOpenXLSX(t *testing.T) {
	f := excelize.NewFile()
	sheetName := f.GetSheetName(0)
	cells := map[string]string{
		"A1": "Aluno", "B1": "Turma", "C1": "Data de Nascimento",
		"A2": "Maria Souza", "B2": "Turma X", "C2": "25/12/1990",
		"A3": "Rafael", "B3": "", "C3": "nan",
	}
	for ref, val := range cells {
		if err := f.SetCellValue(sheetName, ref, val); err != nil {
			t.Fatalf("set cell: %v", err)
		}
	}
	path := filepath.Join(t.TempDir(), "roster.xlsx")
	if err := f.SaveAs(path); err != nil {
		t.Fatalf("save: %v", err)
	}

	rows, err := Open(path, "")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}

	first := rows[0].Record
	if first.Name != "Maria Souza" {
		t.Fatalf("name: %q", first.Name)
	}
	if first.Class == nil || *first.Class != "Turma X" {
		t.Fatalf("class: %v", first.Class)
	}
	if first.BirthDate == nil || first.BirthDate.Year() != 1990 {
		t.Fatalf("birth date: %v", first.BirthDate)
	}

	second := rows[1].Record
	if second.Name != "Rafael" || second.Class != nil || second.BirthDate != nil {
		t.Fatalf("second row mishandled: %+v", second)
	}
}

func TestOpenJSONSnapshot(t *testing.T) {
	payload := `[
	  {"nome": "Tereza Dias", "telefone": "(31) 97777-0003", "atividade": "Capoeira", "ignored": "x"},
	  {"name": "Old Export", "dob": "1970-01-15", "titulo_eleitor": 123456789012}
	]`
	path := writeTemp(t, "snapshot.json", []byte(payload))

	rows, err := Open(path, "")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}

	first := rows[0].Record
	if first.Name != "Tereza Dias" || first.Activity == nil || *first.Activity != "Capoeira" {
		t.Fatalf("first record mishandled: %+v", first)
	}

	second := rows[1].Record
	if second.Name != "Old Export" {
		t.Fatalf("name: %q", second.Name)
	}
	if second.BirthDate == nil || second.BirthDate.Year() != 1970 {
		t.Fatalf("dob: %v", second.BirthDate)
	}
	if second.VoterID == nil || *second.VoterID != "123456789012" {
		t.Fatalf("voter id: %v", second.VoterID)
	}
}

func TestOpenJSONEmptyList(t *testing.T) {
	path := writeTemp(t, "empty.json", []byte("[]"))
	_, err := Open(path, "")
	if !errors.Is(err, ErrNoRows) {
		t.Fatalf("expected ErrNoRows, got %v", err)
	}
}
