package index

import (
	"encoding/hex"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/runnerr0/tsindex/internal/miniseed"
)

// Section is a maximal run of byte-contiguous records in one file sharing
// identity and publication version. It is mutated by every record folded
// into it and sealed once the file's record stream ends.
type Section struct {
	ID      miniseed.SourceID
	Version int

	StartOffset int64
	EndOffset   int64
	Earliest    time.Time
	Latest      time.Time

	// SampleRate is the nominal rate, taken from the section's first
	// record. RateMismatch is set permanently once any folded record's
	// rate falls outside tolerance of it.
	SampleRate   float64
	RateMismatch bool

	// TimeOrdered starts true and is cleared permanently once a record
	// starts at or before the previous record's start time.
	TimeOrdered bool

	// Hash is the hex digest over the raw bytes of every folded record,
	// in fold order. Populated at seal time.
	Hash string

	// Index holds the sparse time checkpoints, or nil when the section's
	// earliest-time record is not file-first: a consumer must then scan
	// the whole section to guarantee coverage.
	Index []Entry

	Spans []Span

	// Updated is the file modification time (or scan time) until
	// reconciliation carries a previous catalog value forward.
	Updated time.Time

	digest    *xxhash.Digest
	tindex    *timeIndex
	spans     *spanTracker
	prevStart time.Time
	opts      Options
}

// Options carry the tolerances and index resolution used while building
// sections. Negative tolerances select the defaults: half a sample period
// for time, a relative 1e-4 for rate.
type Options struct {
	TimeTolerance    float64 // seconds
	RateTolerance    float64
	SubIndexInterval time.Duration

	// ScanTimeUpdates seeds each section's Updated field with the scan
	// time instead of the file modification time.
	ScanTimeUpdates bool
}

// DefaultOptions returns the Options the command line tool starts from.
func DefaultOptions() Options {
	return Options{
		TimeTolerance:    -1,
		RateTolerance:    -1,
		SubIndexInterval: time.Hour,
	}
}

// openSection starts a new section with rec as its first record.
func openSection(rec *miniseed.Record, updated time.Time, opts Options) *Section {
	step := opts.SubIndexInterval
	if step <= 0 {
		step = time.Hour
	}

	s := &Section{
		ID:          rec.ID,
		Version:     rec.Version,
		StartOffset: rec.Offset,
		EndOffset:   rec.Offset + rec.Length - 1,
		Earliest:    rec.Start,
		Latest:      rec.End,
		SampleRate:  rec.SampleRate,
		TimeOrdered: true,
		Updated:     updated,
		digest:      xxhash.New(),
		tindex:      newTimeIndex(step, rec.Start, rec.Offset, rec.End),
		spans:       &spanTracker{timeTol: opts.TimeTolerance, rateTol: opts.RateTolerance},
		prevStart:   rec.Start,
		opts:        opts,
	}

	s.digest.Write(rec.Raw)
	if rec.SampleRate != 0 {
		s.spans.fold(rec.Start, rec.End, rec.SampleRate)
	}
	return s
}

// accepts reports whether rec continues this section: same identity and
// version, and byte-contiguous with the last folded record.
func (s *Section) accepts(rec *miniseed.Record) bool {
	return rec.ID == s.ID && rec.Version == s.Version && rec.Offset == s.EndOffset+1
}

// fold absorbs one more record into the section.
func (s *Section) fold(rec *miniseed.Record) {
	s.EndOffset = rec.Offset + rec.Length - 1

	if rec.Start.Before(s.Earliest) {
		s.Earliest = rec.Start
	}
	if rec.End.After(s.Latest) {
		s.Latest = rec.End
	}

	if !rec.Start.After(s.prevStart) {
		s.TimeOrdered = false
	}
	s.prevStart = rec.Start

	s.tindex.fold(rec.Start, rec.Offset, rec.End)

	// Zero-rate records have no time series extent to merge but still
	// participate in the index and the hash.
	if rec.SampleRate != 0 {
		if !ratesTolerable(rec.SampleRate, s.SampleRate, s.opts.RateTolerance) {
			s.RateMismatch = true
		}
		s.spans.fold(rec.Start, rec.End, rec.SampleRate)
	}

	s.digest.Write(rec.Raw)
}

// seal finalizes the content hash, applies the index validity rule and
// publishes the span list. The section must not be folded into afterwards.
func (s *Section) seal() {
	s.Hash = hex.EncodeToString(s.digest.Sum(nil))

	// The index only describes the whole byte range when the earliest
	// data physically occurs first in the file.
	if entries := s.tindex.entries; entries[0].Time.Equal(s.Earliest) {
		s.Index = entries
	}

	s.Spans = s.spans.spans
	s.digest = nil
	s.tindex = nil
	s.spans = nil
}

// ByteCount is the section's length in the file.
func (s *Section) ByteCount() int64 {
	return s.EndOffset - s.StartOffset + 1
}
