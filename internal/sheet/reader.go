package sheet

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/vivassoc/roster-backend/internal/model"
	"github.com/xuri/excelize/v2"
)

// ErrNoRows is returned when a file has a header but no data rows, or no
// usable header at all.
var ErrNoRows = errors.New("sheet: no data rows")

// Open reads the file at path and returns its harmonised rows in source
// order. Format is picked by extension: office spreadsheets via excelize,
// comma-separated text via encoding/csv, legacy JSON snapshots as a list of
// records. sheetName selects a tab for spreadsheet files; empty means the
// first sheet.
func Open(path, sheetName string) ([]Row, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm", ".xltx", ".xltm":
		return openExcel(path, sheetName)
	case ".json":
		return openJSON(path)
	default:
		return openCSV(path)
	}
}

func openExcel(path, sheetName string) ([]Row, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open spreadsheet: %w", err)
	}
	defer f.Close()

	if sheetName == "" {
		sheetName = f.GetSheetName(0)
	}
	table, err := f.GetRows(sheetName)
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheetName, err)
	}

	rows := harmonise(table, 1)
	if len(rows) == 0 {
		return nil, ErrNoRows
	}
	return rows, nil
}

func openCSV(path string) ([]Row, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	data = bytes.TrimPrefix(data, []byte{0xEF, 0xBB, 0xBF})
	if !utf8.Valid(data) {
		data = latin1ToUTF8(data)
	}

	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = false

	var table [][]string
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse csv: %w", err)
		}
		table = append(table, record)
	}

	rows := harmonise(table, 1)
	if len(rows) == 0 {
		return nil, ErrNoRows
	}
	return rows, nil
}

// openJSON reads a legacy snapshot: a JSON list of flat records whose keys
// follow the same header conventions as spreadsheet columns.
func openJSON(path string) ([]Row, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}

	var raw []map[string]interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse snapshot: %w", err)
	}
	if len(raw) == 0 {
		return nil, ErrNoRows
	}

	rows := make([]Row, 0, len(raw))
	for i, obj := range raw {
		rec := model.StudentRecord{}
		for key, val := range obj {
			field := CanonicalField(key)
			if field == "" {
				continue
			}
			applyCell(&rec, field, stringifyJSONValue(val))
		}
		rows = append(rows, Row{Index: i + 1, Record: rec})
	}
	return rows, nil
}

func stringifyJSONValue(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		// Phone and voter columns arrive as numbers in some exports.
		if t == float64(int64(t)) {
			return fmt.Sprintf("%d", int64(t))
		}
		return fmt.Sprintf("%v", t)
	case bool:
		return fmt.Sprintf("%t", t)
	default:
		return fmt.Sprintf("%v", t)
	}
}

// latin1ToUTF8 is the tolerant fallback for non-UTF-8 exports.
func latin1ToUTF8(data []byte) []byte {
	var b bytes.Buffer
	b.Grow(len(data) * 2)
	for _, c := range data {
		b.WriteRune(rune(c))
	}
	return b.Bytes()
}
