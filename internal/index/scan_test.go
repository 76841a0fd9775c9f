package index

import (
	"io"
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/runnerr0/tsindex/internal/miniseed"
)

var testID = miniseed.SourceID{Network: "XX", Station: "TEST", Location: "", Channel: "BHZ", Quality: "D"}

// sliceSource replays a fixed record sequence, optionally ending with an
// error instead of EOF.
type sliceSource struct {
	recs []*miniseed.Record
	err  error
}

func (s *sliceSource) Next() (*miniseed.Record, error) {
	if len(s.recs) == 0 {
		if s.err != nil {
			return nil, s.err
		}
		return nil, io.EOF
	}
	r := s.recs[0]
	s.recs = s.recs[1:]
	return r, nil
}

const testRecLen = 512

func makeRec(id miniseed.SourceID, start time.Time, samples int, rate float64, offset int64, fill byte) *miniseed.Record {
	end := start
	if rate > 0 && samples > 0 {
		end = start.Add(time.Duration(math.Round(float64(samples-1) / rate * float64(time.Second))))
	}
	raw := make([]byte, testRecLen)
	for i := range raw {
		raw[i] = fill
	}
	return &miniseed.Record{
		ID:         id,
		Start:      start,
		End:        end,
		SampleRate: rate,
		SampleCnt:  samples,
		Offset:     offset,
		Length:     testRecLen,
		Raw:        raw,
	}
}

func scanRecs(t *testing.T, opts Options, recs ...*miniseed.Record) *FileScan {
	t.Helper()
	modTime := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	scanTime := modTime.Add(time.Hour)
	fs, err := Scan("/data/test.mseed", modTime, scanTime, &sliceSource{recs: recs}, opts)
	require.NoError(t, err)
	return fs
}

var t0 = time.Date(2023, 5, 1, 0, 0, 0, 0, time.UTC)

// Five contiguous same-identity records spanning two hours at a one hour
// sub-index interval: one section, at least two checkpoints, ordered, one
// coverage span.
func TestScan_ContiguousFile(t *testing.T) {
	var recs []*miniseed.Record
	for i := 0; i < 5; i++ {
		start := t0.Add(time.Duration(i) * 24 * time.Minute)
		recs = append(recs, makeRec(testID, start, 1440, 1, int64(i)*testRecLen, byte(i)))
	}

	fs := scanRecs(t, DefaultOptions(), recs...)
	require.Len(t, fs.Sections, 1)

	s := fs.Sections[0]
	assert.Equal(t, testID, s.ID)
	assert.Equal(t, int64(0), s.StartOffset)
	assert.Equal(t, int64(5*testRecLen-1), s.EndOffset)
	assert.Equal(t, int64(5*testRecLen), s.ByteCount())
	assert.True(t, s.TimeOrdered)
	assert.False(t, s.RateMismatch)
	assert.True(t, s.Earliest.Equal(t0))

	require.NotNil(t, s.Index)
	assert.GreaterOrEqual(t, len(s.Index), 2)
	assert.True(t, s.Index[0].Time.Equal(s.Earliest))

	require.Len(t, s.Spans, 1)
	assert.True(t, s.Spans[0].Start.Equal(t0))

	assert.True(t, fs.Earliest.Equal(s.Earliest))
	assert.True(t, fs.Latest.Equal(s.Latest))
	assert.NotEmpty(t, fs.Hash)
	assert.NotEmpty(t, s.Hash)
}

// An out-of-order record (earlier time, placed last in the file) keeps the
// section together but suppresses the time index: the earliest data is no
// longer first in the file.
func TestScan_OutOfOrderSuppressesIndex(t *testing.T) {
	recs := []*miniseed.Record{
		makeRec(testID, t0, 60, 1, 0, 0),
		makeRec(testID, t0.Add(time.Minute), 60, 1, testRecLen, 1),
		makeRec(testID, t0.Add(-time.Hour), 60, 1, 2*testRecLen, 2),
	}

	fs := scanRecs(t, DefaultOptions(), recs...)
	require.Len(t, fs.Sections, 1)

	s := fs.Sections[0]
	assert.False(t, s.TimeOrdered)
	assert.True(t, s.Earliest.Equal(t0.Add(-time.Hour)))
	assert.Nil(t, s.Index, "index must be suppressed when earliest data is not first")
}

func TestScan_NonContiguousOffsetSplitsSection(t *testing.T) {
	recs := []*miniseed.Record{
		makeRec(testID, t0, 60, 1, 0, 0),
		// One record length gap in the file.
		makeRec(testID, t0.Add(time.Minute), 60, 1, 2*testRecLen, 1),
	}

	fs := scanRecs(t, DefaultOptions(), recs...)
	require.Len(t, fs.Sections, 2)
	assert.Equal(t, int64(0), fs.Sections[0].StartOffset)
	assert.Equal(t, int64(2*testRecLen), fs.Sections[1].StartOffset)
}

func TestScan_IdentityChangeSplitsSection(t *testing.T) {
	other := testID
	other.Channel = "BHN"

	recs := []*miniseed.Record{
		makeRec(testID, t0, 60, 1, 0, 0),
		makeRec(other, t0.Add(time.Minute), 60, 1, testRecLen, 1),
		makeRec(testID, t0.Add(2*time.Minute), 60, 1, 2*testRecLen, 2),
	}

	fs := scanRecs(t, DefaultOptions(), recs...)
	require.Len(t, fs.Sections, 3)
	assert.Equal(t, testID, fs.Sections[0].ID)
	assert.Equal(t, other, fs.Sections[1].ID)
	assert.Equal(t, testID, fs.Sections[2].ID)
}

func TestScan_VersionChangeSplitsSection(t *testing.T) {
	r1 := makeRec(testID, t0, 60, 1, 0, 0)
	r2 := makeRec(testID, t0.Add(time.Minute), 60, 1, testRecLen, 1)
	r2.Version = 2

	fs := scanRecs(t, DefaultOptions(), r1, r2)
	require.Len(t, fs.Sections, 2)
}

// Identical input yields identical hashes on every run.
func TestScan_HashDeterminism(t *testing.T) {
	build := func() *FileScan {
		return scanRecs(t, DefaultOptions(),
			makeRec(testID, t0, 60, 1, 0, 7),
			makeRec(testID, t0.Add(time.Minute), 60, 1, testRecLen, 8),
		)
	}

	a, b := build(), build()
	assert.Equal(t, a.Hash, b.Hash)
	require.Len(t, b.Sections, len(a.Sections))
	for i := range a.Sections {
		assert.Equal(t, a.Sections[i].Hash, b.Sections[i].Hash)
	}
}

func TestScan_ContentChangesHash(t *testing.T) {
	a := scanRecs(t, DefaultOptions(), makeRec(testID, t0, 60, 1, 0, 1))
	b := scanRecs(t, DefaultOptions(), makeRec(testID, t0, 60, 1, 0, 2))
	assert.NotEqual(t, a.Sections[0].Hash, b.Sections[0].Hash)
	assert.NotEqual(t, a.Hash, b.Hash)
}

// A zero-rate record folds into the section (hash, extrema, index) but
// contributes no coverage span.
func TestScan_ZeroRateRecordHasNoSpan(t *testing.T) {
	recs := []*miniseed.Record{
		makeRec(testID, t0, 60, 1, 0, 0),
		makeRec(testID, t0.Add(time.Minute), 0, 0, testRecLen, 1),
		makeRec(testID, t0.Add(2*time.Minute), 60, 1, 2*testRecLen, 2),
	}

	fs := scanRecs(t, DefaultOptions(), recs...)
	require.Len(t, fs.Sections, 1)

	s := fs.Sections[0]
	assert.Equal(t, int64(3*testRecLen), s.ByteCount())
	assert.False(t, s.RateMismatch, "zero-rate records do not count as rate mismatches")
	for _, sp := range s.Spans {
		assert.NotZero(t, sp.Rate)
	}
}

func TestScan_RateMismatchSetsFlag(t *testing.T) {
	recs := []*miniseed.Record{
		makeRec(testID, t0, 60, 1, 0, 0),
		makeRec(testID, t0.Add(time.Minute), 1200, 20, testRecLen, 1),
	}

	fs := scanRecs(t, DefaultOptions(), recs...)
	require.Len(t, fs.Sections, 1)
	s := fs.Sections[0]
	assert.True(t, s.RateMismatch)
	require.Len(t, s.Spans, 2, "mismatched rates must not merge into one span")
}

func TestScan_EmptyStream(t *testing.T) {
	_, err := Scan("/data/empty.mseed", time.Now(), time.Now(), &sliceSource{}, DefaultOptions())
	require.ErrorIs(t, err, ErrNoSections)
}

func TestScan_DecodeErrorAbortsFile(t *testing.T) {
	derr := &miniseed.DecodeError{Path: "/data/bad.mseed", Offset: 512, Reason: "invalid fixed header"}
	src := &sliceSource{
		recs: []*miniseed.Record{makeRec(testID, t0, 60, 1, 0, 0)},
		err:  derr,
	}

	fs, err := Scan("/data/bad.mseed", time.Now(), time.Now(), src, DefaultOptions())
	assert.Nil(t, fs, "no partial sections on a decode error")
	require.ErrorAs(t, err, &derr)
}

func TestScan_UpdatedFromModTime(t *testing.T) {
	modTime := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	scanTime := modTime.Add(time.Hour)

	fs, err := Scan("/data/a.mseed", modTime, scanTime,
		&sliceSource{recs: []*miniseed.Record{makeRec(testID, t0, 60, 1, 0, 0)}}, DefaultOptions())
	require.NoError(t, err)
	assert.True(t, fs.Sections[0].Updated.Equal(modTime))

	opts := DefaultOptions()
	opts.ScanTimeUpdates = true
	fs, err = Scan("/data/a.mseed", modTime, scanTime,
		&sliceSource{recs: []*miniseed.Record{makeRec(testID, t0, 60, 1, 0, 0)}}, opts)
	require.NoError(t, err)
	assert.True(t, fs.Sections[0].Updated.Equal(scanTime))
}

// The index stays monotonic in time and offset for any record stream.
func TestTimeIndex_MonotonicForRandomStreams(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for trial := 0; trial < 50; trial++ {
		var recs []*miniseed.Record
		for i := 0; i < 40; i++ {
			// Random jitter, including out-of-order starts.
			start := t0.Add(time.Duration(rng.Intn(4*3600)-3600) * time.Second)
			recs = append(recs, makeRec(testID, start, 60, 1, int64(i)*testRecLen, byte(i)))
		}

		fs := scanRecs(t, DefaultOptions(), recs...)
		for _, s := range fs.Sections {
			for i := 1; i < len(s.Index); i++ {
				assert.False(t, s.Index[i].Time.Before(s.Index[i-1].Time),
					"index times must be non-decreasing")
				assert.Greater(t, s.Index[i].Offset, s.Index[i-1].Offset,
					"index offsets must be increasing")
			}
		}
	}
}

// A first record longer than the sub-index interval gets exactly one
// checkpoint; the horizon fast-forwards past its end.
func TestTimeIndex_HorizonFastForward(t *testing.T) {
	opts := DefaultOptions()
	opts.SubIndexInterval = time.Minute

	// 10 minutes of data in one record.
	long := makeRec(testID, t0, 600, 1, 0, 0)
	fs := scanRecs(t, opts, long)

	s := fs.Sections[0]
	require.Len(t, s.Index, 1)
	assert.True(t, s.Index[0].Time.Equal(t0))

	// A follow-up record past the fast-forwarded horizon adds exactly one
	// more checkpoint.
	next := makeRec(testID, t0.Add(10*time.Minute), 600, 1, testRecLen, 1)
	fs = scanRecs(t, opts, makeRec(testID, t0, 600, 1, 0, 0), next)
	s = fs.Sections[0]
	require.Len(t, s.Index, 2)
	assert.True(t, s.Index[1].Time.Equal(next.Start))
	assert.Equal(t, next.Offset, s.Index[1].Offset)
}

func TestSpans_GapCreatesSecondSpan(t *testing.T) {
	recs := []*miniseed.Record{
		makeRec(testID, t0, 60, 1, 0, 0),
		// One minute gap beyond tolerance.
		makeRec(testID, t0.Add(2*time.Minute), 60, 1, testRecLen, 1),
	}

	fs := scanRecs(t, DefaultOptions(), recs...)
	require.Len(t, fs.Sections, 1)
	require.Len(t, fs.Sections[0].Spans, 2)
}

func TestSpans_OutOfOrderRecordsMergeBySortedInsert(t *testing.T) {
	recs := []*miniseed.Record{
		makeRec(testID, t0.Add(time.Minute), 60, 1, 0, 0),
		makeRec(testID, t0, 60, 1, testRecLen, 1),
	}

	fs := scanRecs(t, DefaultOptions(), recs...)
	require.Len(t, fs.Sections, 1)
	s := fs.Sections[0]
	require.Len(t, s.Spans, 1, "time-adjacent extents merge regardless of file order")
	assert.True(t, s.Spans[0].Start.Equal(t0))
}
