// Package providers implements enrichment lookups for research subjects:
// usernames, emails and phone numbers loaded from CSV and run through a set
// of capability-scoped providers.
package providers

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"
)

const (
	TypeUsername = "username"
	TypeEmail    = "email"
	TypePhone    = "phone"
)

// Subject is one identity to enrich.
type Subject struct {
	Type            string `json:"type"`
	Value           string `json:"value"`
	NormalizedValue string `json:"normalized_value"`
	Key             string `json:"key"`
}

// NewSubject normalizes the value for its type and derives the storage key.
func NewSubject(subjectType, value string) Subject {
	s := Subject{Type: subjectType, Value: value}
	s.NormalizedValue = normalize(subjectType, value)
	s.Key = fmt.Sprintf("%s_%s", subjectType, s.NormalizedValue)
	return s
}

func normalize(subjectType, value string) string {
	value = strings.TrimSpace(value)
	switch subjectType {
	case TypePhone:
		var b strings.Builder
		for i, r := range value {
			if r >= '0' && r <= '9' {
				b.WriteRune(r)
			} else if r == '+' && i == 0 {
				b.WriteRune(r)
			}
		}
		return b.String()
	default:
		return strings.ToLower(value)
	}
}

// LoadCSV reads subjects from a two-column CSV (type,value). A header row
// with a "type" first column is skipped. Rows with unknown types error.
func LoadCSV(path string) ([]Subject, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open subjects csv: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	var subjects []Subject
	for line := 1; ; line++ {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read subjects csv line %d: %w", line, err)
		}
		if len(rec) < 2 {
			continue
		}
		typ := strings.ToLower(strings.TrimSpace(rec[0]))
		if line == 1 && typ == "type" {
			continue
		}
		switch typ {
		case TypeUsername, TypeEmail, TypePhone:
		default:
			return nil, fmt.Errorf("subjects csv line %d: unknown type %q", line, rec[0])
		}
		subjects = append(subjects, NewSubject(typ, rec[1]))
	}
	return subjects, nil
}
