// Package sheet opens heterogeneous tabular inputs (office spreadsheets,
// CSV exports, legacy JSON snapshots) and yields canonical student records.
// Header names are harmonised case-, whitespace- and diacritic-insensitively
// against a fixed alias table; values are coerced tolerantly — an
// unparsable cell becomes an absent field, never an error.
package sheet

import (
	"strings"
	"time"

	"github.com/vivassoc/roster-backend/internal/model"
)

// Canonical field names emitted by harmonisation.
const (
	FieldShortID          = "short_id"
	FieldName             = "name"
	FieldPhone            = "phone"
	FieldEmail            = "email"
	FieldAddress          = "address"
	FieldBirthDate        = "birth_date"
	FieldEnrolledOn       = "enrolled_on"
	FieldVoterID          = "voter_id"
	FieldActivity         = "activity"
	FieldClass            = "class"
	FieldAttendanceStatus = "attendance_status"
	FieldNotes            = "notes"
)

// headerAliases maps normalised source headers to canonical fields. Multiple
// uploads conventions coexist in the wild: English exports, Portuguese
// hand-built sheets, and abbreviations.
var headerAliases = map[string]string{
	"short id": FieldShortID,
	"id curto": FieldShortID,
	"codigo":   FieldShortID,

	"name":      FieldName,
	"full name": FieldName,
	"student":   FieldName,
	"aluno":     FieldName,
	"nome":      FieldName,

	"phone":     FieldPhone,
	"telephone": FieldPhone,
	"celular":   FieldPhone,
	"telefone":  FieldPhone,

	"email":  FieldEmail,
	"e mail": FieldEmail,

	"address":  FieldAddress,
	"endereco": FieldAddress,

	"birth date":         FieldBirthDate,
	"data de nascimento": FieldBirthDate,
	"dob":                FieldBirthDate,
	"nascimento":         FieldBirthDate,

	"enrolled on":     FieldEnrolledOn,
	"data de entrada": FieldEnrolledOn,
	"matricula":       FieldEnrolledOn,

	"voter id":          FieldVoterID,
	"titulo de eleitor": FieldVoterID,
	"titulo eleitor":    FieldVoterID,

	"activity":   FieldActivity,
	"atividade":  FieldActivity,
	"atividades": FieldActivity,
	"course":     FieldActivity,

	"class": FieldClass,
	"turma": FieldClass,
	"group": FieldClass,

	"status":   FieldAttendanceStatus,
	"situacao": FieldAttendanceStatus,

	"notes":       FieldNotes,
	"observacoes": FieldNotes,
	"obs":         FieldNotes,
}

// dateLayouts are tried in order when coercing date cells.
var dateLayouts = []string{
	"02/01/2006",
	"02/01/06",
	"2006-01-02",
}

// diacriticFolder strips the accents seen in Portuguese headers and values.
var diacriticFolder = strings.NewReplacer(
	"á", "a", "à", "a", "â", "a", "ã", "a", "ä", "a",
	"é", "e", "è", "e", "ê", "e", "ë", "e",
	"í", "i", "ì", "i", "î", "i", "ï", "i",
	"ó", "o", "ò", "o", "ô", "o", "õ", "o", "ö", "o",
	"ú", "u", "ù", "u", "û", "u", "ü", "u",
	"ç", "c", "ñ", "n",
)

// NormalizeHeader folds a source header to its comparison form: lower-cased,
// diacritics stripped, punctuation and underscores collapsed to single
// spaces, trimmed.
func NormalizeHeader(h string) string {
	h = strings.ToLower(strings.TrimSpace(h))
	h = diacriticFolder.Replace(h)
	var b strings.Builder
	lastSpace := false
	for _, r := range h {
		switch {
		case r >= 'a' && r <= 'z' || r >= '0' && r <= '9':
			b.WriteRune(r)
			lastSpace = false
		default:
			if !lastSpace && b.Len() > 0 {
				b.WriteByte(' ')
				lastSpace = true
			}
		}
	}
	return strings.TrimSpace(b.String())
}

// CanonicalField maps a source header to its canonical field name. Unknown
// headers return "" and are ignored by the caller.
func CanonicalField(header string) string {
	return headerAliases[NormalizeHeader(header)]
}

// CleanCell trims a cell and collapses empty-like tokens ("", "nan",
// "none", "null") to absent.
func CleanCell(raw string) (string, bool) {
	v := strings.TrimSpace(raw)
	switch strings.ToLower(v) {
	case "", "nan", "none", "null":
		return "", false
	}
	return v, true
}

// ParseDate coerces a cell to a date, trying the accepted layouts in order.
// Unparsable values are absent, not errors.
func ParseDate(raw string) (time.Time, bool) {
	v, ok := CleanCell(raw)
	if !ok {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// Row pairs a canonical record with its source row index (1-based, header
// excluded from data indices but counted in the sheet).
type Row struct {
	Index  int
	Record model.StudentRecord
}

// HasName reports whether the row carries a usable student name. Rows
// without a name are skipped by the pipeline, never ingested.
func (r Row) HasName() bool {
	return r.Record.Name != ""
}

// harmonise builds canonical rows from a raw table. The first non-empty row
// is the header; unknown columns are dropped.
func harmonise(table [][]string, startIndex int) []Row {
	headerIdx := -1
	for i, row := range table {
		if !rowEmpty(row) {
			headerIdx = i
			break
		}
	}
	if headerIdx < 0 {
		return nil
	}

	// Column position → canonical field, for the recognised headers only.
	fields := make(map[int]string)
	for col, h := range table[headerIdx] {
		if f := CanonicalField(h); f != "" {
			fields[col] = f
		}
	}

	var rows []Row
	for i := headerIdx + 1; i < len(table); i++ {
		src := table[i]
		rec := model.StudentRecord{}
		for col, field := range fields {
			if col >= len(src) {
				continue
			}
			applyCell(&rec, field, src[col])
		}
		rows = append(rows, Row{Index: startIndex + i, Record: rec})
	}
	return rows
}

// applyCell coerces one cell into its canonical field.
func applyCell(rec *model.StudentRecord, field, raw string) {
	switch field {
	case FieldBirthDate:
		if d, ok := ParseDate(raw); ok {
			rec.BirthDate = &d
		}
	case FieldEnrolledOn:
		if d, ok := ParseDate(raw); ok {
			rec.EnrolledOn = &d
		}
	default:
		v, ok := CleanCell(raw)
		if !ok {
			return
		}
		switch field {
		case FieldShortID:
			rec.ShortID = &v
		case FieldName:
			rec.Name = v
		case FieldPhone:
			rec.Phone = &v
		case FieldEmail:
			rec.Email = &v
		case FieldAddress:
			rec.Address = &v
		case FieldVoterID:
			rec.VoterID = &v
		case FieldActivity:
			rec.Activity = &v
		case FieldClass:
			rec.Class = &v
		case FieldAttendanceStatus:
			rec.AttendanceStatus = &v
		case FieldNotes:
			rec.Notes = &v
		}
	}
}

func rowEmpty(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
