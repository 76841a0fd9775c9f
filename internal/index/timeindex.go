package index

import (
	"time"
)

// Entry is one sparse time index checkpoint: the start time of a record
// and the byte offset where that record begins in the file.
type Entry struct {
	Time   time.Time
	Offset int64
}

// timeIndex accumulates checkpoints for one section. Entries are strictly
// increasing in both time and byte offset; resolution is bounded by the
// configured interval regardless of record size.
type timeIndex struct {
	entries []Entry
	horizon time.Time
	step    time.Duration
}

// newTimeIndex seeds the index with the section's first record and places
// the horizon one interval past its start. If the record itself spans past
// the horizon it is fast-forwarded so the same record is never indexed
// twice.
func newTimeIndex(step time.Duration, start time.Time, offset int64, end time.Time) *timeIndex {
	ix := &timeIndex{
		entries: []Entry{{Time: start, Offset: offset}},
		horizon: start.Add(step),
		step:    step,
	}
	ix.advance(end)
	return ix
}

// fold considers one subsequent record for a checkpoint. A checkpoint is
// added when the record ends past the current horizon and its start time
// is later than the last checkpoint, keeping the index monotonic even for
// out-of-order data.
func (ix *timeIndex) fold(start time.Time, offset int64, end time.Time) {
	if !end.After(ix.horizon) {
		return
	}
	if last := ix.entries[len(ix.entries)-1]; start.After(last.Time) {
		ix.entries = append(ix.entries, Entry{Time: start, Offset: offset})
	}
	ix.advance(end)
}

// advance moves the horizon forward by whole steps until it is at or past
// end.
func (ix *timeIndex) advance(end time.Time) {
	for ix.horizon.Before(end) {
		ix.horizon = ix.horizon.Add(ix.step)
	}
}
