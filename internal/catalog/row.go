package catalog

import (
	"fmt"
	"strings"
	"time"

	"github.com/runnerr0/tsindex/internal/index"
)

// TimeLayout is the fixed-width timestamp format stored in the catalog.
// The constant fraction width keeps lexicographic and chronological order
// identical for text comparisons.
const TimeLayout = "2006-01-02T15:04:05.000000"

// maxSerializedLen caps the serialized time index, span and rate strings.
// A value that large indicates runaway input rather than a usable index.
const maxSerializedLen = 8388608

// Row is one catalog row: one section of one file. Rows are deleted and
// re-inserted during reconciliation, never updated in place.
type Row struct {
	Network  string
	Station  string
	Location string
	Channel  string
	Quality  string
	Version  int

	Start      time.Time
	End        time.Time
	SampleRate float64

	Filename   string
	ByteOffset int64
	ByteCount  int64
	Hash       string

	// TimeIndex, TimeSpans and TimeRates are the serialized forms, empty
	// when absent. TimeRates is only populated on a rate mismatch.
	TimeIndex string
	TimeSpans string
	TimeRates string

	FileModTime time.Time
	Updated     time.Time
	Scanned     time.Time
}

// Epoch renders a catalog timestamp as epoch seconds with microsecond
// precision.
func Epoch(t time.Time) string {
	return fmt.Sprintf("%.6f", float64(t.UnixMicro())/1e6)
}

// BuildRows converts a file scan into catalog rows. The version argument
// overrides each section's own version when the filename carried a
// version suffix.
func BuildRows(fs *index.FileScan, version int, hasVersion bool) ([]Row, error) {
	rows := make([]Row, 0, len(fs.Sections))

	for _, s := range fs.Sections {
		tindex, err := formatTimeIndex(s)
		if err != nil {
			return nil, err
		}
		spans, err := formatSpans(s)
		if err != nil {
			return nil, err
		}
		rates, err := formatRates(s)
		if err != nil {
			return nil, err
		}

		v := s.Version
		if hasVersion {
			v = version
		}

		rows = append(rows, Row{
			Network:     s.ID.Network,
			Station:     s.ID.Station,
			Location:    s.ID.Location,
			Channel:     s.ID.Channel,
			Quality:     s.ID.Quality,
			Version:     v,
			Start:       s.Earliest,
			End:         s.Latest,
			SampleRate:  s.SampleRate,
			Filename:    fs.Path,
			ByteOffset:  s.StartOffset,
			ByteCount:   s.ByteCount(),
			Hash:        s.Hash,
			TimeIndex:   tindex,
			TimeSpans:   spans,
			TimeRates:   rates,
			FileModTime: fs.ModTime,
			Updated:     s.Updated,
			Scanned:     fs.ScanTime,
		})
	}

	return rows, nil
}

// formatTimeIndex serializes the sparse index as
// "epoch=>offset,...,latest=>0|1". A suppressed index serializes as the
// empty string.
func formatTimeIndex(s *index.Section) (string, error) {
	if s.Index == nil {
		return "", nil
	}

	var b strings.Builder
	for _, e := range s.Index {
		fmt.Fprintf(&b, "%s=>%d,", Epoch(e.Time), e.Offset)
	}

	// The trailing marker records whether the section's records are in
	// time order: when set, the index also identifies offsets to the
	// latest data.
	ordered := 0
	if s.TimeOrdered {
		ordered = 1
	}
	fmt.Fprintf(&b, "latest=>%d", ordered)

	if b.Len() > maxSerializedLen {
		return "", fmt.Errorf("time index for %s has grown too large (%d bytes)", s.ID, b.Len())
	}
	return b.String(), nil
}

// formatSpans serializes the coverage spans as "[start:end],..." using
// epoch times.
func formatSpans(s *index.Section) (string, error) {
	if len(s.Spans) == 0 {
		return "", nil
	}

	parts := make([]string, len(s.Spans))
	for i, sp := range s.Spans {
		parts[i] = fmt.Sprintf("[%s:%s]", Epoch(sp.Start), Epoch(sp.End))
	}

	out := strings.Join(parts, ",")
	if len(out) > maxSerializedLen {
		return "", fmt.Errorf("time span list for %s has grown too large (%d bytes)", s.ID, len(out))
	}
	return out, nil
}

// formatRates serializes per-span sample rates, only when some span's rate
// fell outside tolerance of the section's nominal rate and the row-level
// rate no longer applies uniformly.
func formatRates(s *index.Section) (string, error) {
	if !s.RateMismatch || len(s.Spans) == 0 {
		return "", nil
	}

	parts := make([]string, len(s.Spans))
	for i, sp := range s.Spans {
		parts[i] = fmt.Sprintf("%.6g", sp.Rate)
	}

	out := strings.Join(parts, ",")
	if len(out) > maxSerializedLen {
		return "", fmt.Errorf("time rate list for %s has grown too large (%d bytes)", s.ID, len(out))
	}
	return out, nil
}
