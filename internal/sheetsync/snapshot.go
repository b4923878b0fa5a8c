package sheetsync

import (
	"log/slog"
	"time"

	"github.com/thepathwise/intake/internal/schema"
	"github.com/thepathwise/intake/pkg/models"
)

// TimeLayout renders timestamps as ISO-8601 UTC with milliseconds.
const TimeLayout = "2006-01-02T15:04:05.000Z"

const errorMarker = "ERROR"

// Header is the first row of every snapshot.
var Header = []any{
	"Full Name",
	"Email",
	"Phone",
	"School",
	"Current Year",
	"Industry Preference",
	"LinkedIn",
	"Leetcode",
	"Github",
	"Resume URL",
	"Waitlist Consideration",
	"Message",
	"Submitted At",
	"Updated At",
}

// Columns is the width of every row.
var Columns = len(Header)

// Snapshot is the full tab content for one sync.
type Snapshot struct {
	Rows      [][]any
	Records   int
	ErrorRows int
}

// BuildSnapshot renders docs in the given order below the header. A document
// that cannot be decoded becomes an error row instead of aborting the build.
func BuildSnapshot(docs []models.Document, logger *slog.Logger) Snapshot {
	if logger == nil {
		logger = slog.Default()
	}
	snap := Snapshot{Rows: make([][]any, 0, len(docs)+1), Records: len(docs)}
	snap.Rows = append(snap.Rows, Header)
	for i, d := range docs {
		s, err := schema.Decode(d)
		if err != nil {
			logger.Warn("error formatting record", "index", i, "id", d.ID, "err", err)
			snap.Rows = append(snap.Rows, errorRow(d))
			snap.ErrorRows++
			continue
		}
		snap.Rows = append(snap.Rows, Row(s))
	}
	return snap
}

// Row renders one record in column order.
func Row(s models.Submission) []any {
	return []any{
		s.FullName,
		s.Email,
		s.Phone,
		s.School,
		s.CurrentYear,
		s.IndustryPreference,
		s.LinkedIn,
		s.Leetcode,
		s.Github,
		s.ResumeURL,
		s.WaitlistConsideration,
		s.Message,
		formatTime(s.CreatedAt),
		formatTime(s.UpdatedAt),
	}
}

func errorRow(d models.Document) []any {
	row := make([]any, Columns)
	for i := range row {
		row[i] = ""
	}
	row[0] = orError(schema.StringValue(d.Fields, schema.FieldFullName))
	row[1] = orError(schema.StringValue(d.Fields, schema.FieldEmail))
	row[2] = "ERROR FORMATTING DATA"
	return row
}

func orError(s string) string {
	if s == "" {
		return errorMarker
	}
	return s
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(TimeLayout)
}
