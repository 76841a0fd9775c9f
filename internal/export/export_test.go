package export

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/runnerr0/tsindex/internal/index"
	"github.com/runnerr0/tsindex/internal/miniseed"
)

var testID = miniseed.SourceID{Network: "XX", Station: "TEST", Location: "", Channel: "BHZ", Quality: "D"}

var t0 = time.Date(2023, 5, 1, 0, 0, 0, 0, time.UTC)

type sliceSource struct {
	recs []*miniseed.Record
}

func (s *sliceSource) Next() (*miniseed.Record, error) {
	if len(s.recs) == 0 {
		return nil, io.EOF
	}
	r := s.recs[0]
	s.recs = s.recs[1:]
	return r, nil
}

func testScan(t *testing.T, path string) *index.FileScan {
	t.Helper()
	recs := make([]*miniseed.Record, 3)
	for i := range recs {
		start := t0.Add(time.Duration(i) * time.Minute)
		raw := make([]byte, 512)
		for j := range raw {
			raw[j] = byte(i)
		}
		recs[i] = &miniseed.Record{
			ID: testID, Start: start, End: start.Add(59 * time.Second),
			SampleRate: 1, SampleCnt: 60,
			Offset: int64(i) * 512, Length: 512, Raw: raw,
		}
	}
	fs, err := index.Scan(path, t0, t0.Add(time.Hour), &sliceSource{recs: recs}, index.DefaultOptions())
	require.NoError(t, err)
	return fs
}

func TestBuild(t *testing.T) {
	fs := testScan(t, "/data/a.mseed")

	rec := Build(fs)
	assert.Equal(t, "/data/a.mseed", rec.Path)
	assert.Equal(t, "miniseed", rec.Format)
	assert.Equal(t, fs.Hash, rec.FileHash)
	require.Len(t, rec.Sections, 1)

	s := rec.Sections[0]
	assert.Equal(t, "XX", s.Network)
	assert.Equal(t, "TEST", s.Station)
	assert.Equal(t, "2023-05-01T00:00:00.000000Z", s.Start)
	assert.Equal(t, 1682899200.0, s.StartEpoch)
	assert.Equal(t, int64(0), s.ByteOffset)
	assert.Equal(t, int64(3*512), s.ByteCount)
	assert.True(t, s.TimeOrdered)
	assert.NotEmpty(t, s.TimeIndex)
	require.Len(t, s.Spans, 1)
	assert.Equal(t, 1.0, s.Spans[0].Rate)
}

func TestBuild_VersionSuffix(t *testing.T) {
	rec := Build(testScan(t, "/data/a.mseed#4"))
	require.Len(t, rec.Sections, 1)
	assert.Equal(t, "/data/a.mseed#4", rec.Path)
	assert.Equal(t, 4, rec.Sections[0].Version)
}

func TestWrite_OneLinePerFile(t *testing.T) {
	scans := []*index.FileScan{
		testScan(t, "/data/a.mseed"),
		testScan(t, "/data/b.mseed"),
	}

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, scans))

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 2)

	var first FileRecord
	require.NoError(t, json.Unmarshal(lines[0], &first))
	assert.Equal(t, "/data/a.mseed", first.Path)
}

func TestWriteFile_Gzip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.jsonl.gz")
	require.NoError(t, WriteFile(path, []*index.FileScan{testScan(t, "/data/a.mseed")}))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	gz, err := gzip.NewReader(f)
	require.NoError(t, err)
	defer gz.Close()

	data, err := io.ReadAll(gz)
	require.NoError(t, err)

	var rec FileRecord
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(data), &rec))
	assert.Equal(t, "/data/a.mseed", rec.Path)
	require.Len(t, rec.Sections, 1)
}
