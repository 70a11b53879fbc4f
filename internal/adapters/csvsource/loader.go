// internal/adapters/csvsource/loader.go
package csvsource

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog/log"

	"review_pulse/internal/domain"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Column names are matched case-insensitively after trimming.
const (
	colText   = "review_text"
	colRating = "rating"
	colDate   = "date"
	colSource = "source"
)

var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
	"2006/01/02",
	"01/02/2006",
}

// Load reads a CSV document into raw reviews. The required column is
// review_text; rating, date and source are optional. Rows with a missing or
// empty review_text are rejected individually and reported in the returned
// row-error list; unparseable optional values are nulled, not rejected.
// A missing required column, an unreadable document, or an input where every
// row was rejected is a *domain.ValidationError.
func Load(r io.Reader) ([]domain.RawReview, []domain.RowError, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, nil, fmt.Errorf("read csv: %w", err)
	}
	raw = bytes.TrimPrefix(raw, utf8BOM)
	if !utf8.Valid(raw) {
		// legacy exports: fall back to Latin-1
		raw = latin1ToUTF8(raw)
	}

	cr := csv.NewReader(bytes.NewReader(raw))
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err == io.EOF {
		return nil, nil, &domain.ValidationError{Message: "csv is empty"}
	}
	if err != nil {
		return nil, nil, &domain.ValidationError{Message: "csv header unreadable: " + err.Error()}
	}
	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.ToLower(strings.TrimSpace(h))] = i
	}
	textIdx, ok := cols[colText]
	if !ok {
		return nil, nil, &domain.ValidationError{Message: "csv is missing required column " + colText}
	}

	var (
		out     []domain.RawReview
		rowErrs []domain.RowError
	)
	for row := 2; ; row++ { // 1-based, row 1 is the header
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, &domain.ValidationError{Message: fmt.Sprintf("csv row %d unreadable: %v", row, err)}
		}
		text := strings.TrimSpace(field(rec, textIdx))
		if text == "" {
			rowErrs = append(rowErrs, domain.RowError{Row: row, Field: colText, Reason: "missing or empty"})
			continue
		}
		rv := domain.RawReview{Text: text}
		if i, ok := cols[colRating]; ok {
			rv.Rating = parseRating(field(rec, i))
		}
		if i, ok := cols[colDate]; ok {
			rv.Date = parseDate(field(rec, i))
		}
		if i, ok := cols[colSource]; ok {
			if s := strings.TrimSpace(field(rec, i)); s != "" {
				rv.Source = &s
			}
		}
		out = append(out, rv)
	}

	if len(out) == 0 && len(rowErrs) > 0 {
		return nil, nil, &domain.ValidationError{Message: "every csv row was rejected", Rows: rowErrs}
	}
	return out, rowErrs, nil
}

// LoadFile is Load over a file path.
func LoadFile(path string) ([]domain.RawReview, []domain.RowError, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()
	return Load(f)
}

func field(rec []string, i int) string {
	if i < 0 || i >= len(rec) {
		return ""
	}
	return rec[i]
}

// parseRating accepts "4", "4.5" and decimal-comma variants like "4,5".
func parseRating(s string) *float64 {
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", "."))
	if s == "" {
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		log.Debug().Str("value", s).Msg("unparseable rating, kept null")
		return nil
	}
	return &f
}

func parseDate(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	log.Debug().Str("value", s).Msg("unparseable date, kept null")
	return nil
}

func latin1ToUTF8(b []byte) []byte {
	runes := make([]rune, len(b))
	for i, c := range b {
		runes[i] = rune(c)
	}
	return []byte(string(runes))
}
