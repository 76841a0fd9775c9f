// Package export emits structured index records, one per scanned file, as
// JSON lines. Targets ending in .gz are gzip-compressed.
package export

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"

	"github.com/runnerr0/tsindex/internal/catalog"
	"github.com/runnerr0/tsindex/internal/index"
)

const isoLayout = "2006-01-02T15:04:05.000000Z"

// FileRecord is the exported form of one scanned file.
type FileRecord struct {
	Path     string          `json:"path"`
	Format   string          `json:"format"`
	FileHash string          `json:"file_hash"`
	ModTime  string          `json:"mod_time"`
	ScanTime string          `json:"scan_time"`
	Sections []SectionRecord `json:"sections"`
}

// SectionRecord is the exported form of one section.
type SectionRecord struct {
	Network    string  `json:"network"`
	Station    string  `json:"station"`
	Location   string  `json:"location"`
	Channel    string  `json:"channel"`
	Quality    string  `json:"quality"`
	Version    int     `json:"version"`
	Start      string  `json:"start"`
	End        string  `json:"end"`
	StartEpoch float64 `json:"start_epoch"`
	EndEpoch   float64 `json:"end_epoch"`
	SampleRate float64 `json:"sample_rate"`
	ByteOffset int64   `json:"byte_offset"`
	ByteCount  int64   `json:"byte_count"`
	Hash       string  `json:"hash"`

	TimeOrdered bool `json:"time_ordered"`

	// TimeIndex is omitted when the index was suppressed for the
	// section: consumers must then scan the whole section.
	TimeIndex []IndexEntry `json:"time_index,omitempty"`
	Spans     []SpanRecord `json:"spans,omitempty"`
}

// IndexEntry is one sparse (time, byte offset) checkpoint.
type IndexEntry struct {
	Epoch  float64 `json:"epoch"`
	Offset int64   `json:"offset"`
}

// SpanRecord is one gapless coverage span.
type SpanRecord struct {
	StartEpoch float64 `json:"start_epoch"`
	EndEpoch   float64 `json:"end_epoch"`
	Rate       float64 `json:"rate"`
}

func epoch(t time.Time) float64 {
	return float64(t.UnixMicro()) / 1e6
}

// Build converts a file scan into its export record.
func Build(fs *index.FileScan) FileRecord {
	rec := FileRecord{
		Path:     fs.Path,
		Format:   "miniseed",
		FileHash: fs.Hash,
		ModTime:  fs.ModTime.UTC().Format(isoLayout),
		ScanTime: fs.ScanTime.UTC().Format(isoLayout),
		Sections: make([]SectionRecord, 0, len(fs.Sections)),
	}

	_, version, hasVersion, _ := catalog.ParseVersionSuffix(fs.Path)

	for _, s := range fs.Sections {
		v := s.Version
		if hasVersion {
			v = version
		}

		sr := SectionRecord{
			Network:     s.ID.Network,
			Station:     s.ID.Station,
			Location:    s.ID.Location,
			Channel:     s.ID.Channel,
			Quality:     s.ID.Quality,
			Version:     v,
			Start:       s.Earliest.UTC().Format(isoLayout),
			End:         s.Latest.UTC().Format(isoLayout),
			StartEpoch:  epoch(s.Earliest),
			EndEpoch:    epoch(s.Latest),
			SampleRate:  s.SampleRate,
			ByteOffset:  s.StartOffset,
			ByteCount:   s.ByteCount(),
			Hash:        s.Hash,
			TimeOrdered: s.TimeOrdered,
		}

		for _, e := range s.Index {
			sr.TimeIndex = append(sr.TimeIndex, IndexEntry{Epoch: epoch(e.Time), Offset: e.Offset})
		}
		for _, sp := range s.Spans {
			sr.Spans = append(sr.Spans, SpanRecord{
				StartEpoch: epoch(sp.Start),
				EndEpoch:   epoch(sp.End),
				Rate:       sp.Rate,
			})
		}

		rec.Sections = append(rec.Sections, sr)
	}

	return rec
}

// Write emits one JSON line per file scan.
func Write(w io.Writer, scans []*index.FileScan) error {
	enc := json.NewEncoder(w)
	for _, fs := range scans {
		if err := enc.Encode(Build(fs)); err != nil {
			return fmt.Errorf("encode export record for %s: %w", fs.Path, err)
		}
	}
	return nil
}

// WriteFile writes the export to path, or to stdout when path is "-".
// A .gz suffix selects gzip compression.
func WriteFile(path string, scans []*index.FileScan) error {
	if path == "" || path == "-" {
		return Write(os.Stdout, scans)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create export file: %w", err)
	}
	defer f.Close()

	var w io.Writer = f
	var gz *gzip.Writer
	if strings.HasSuffix(path, ".gz") {
		gz = gzip.NewWriter(f)
		w = gz
	}

	if err := Write(w, scans); err != nil {
		return err
	}
	if gz != nil {
		if err := gz.Close(); err != nil {
			return fmt.Errorf("finish gzip stream: %w", err)
		}
	}
	return f.Close()
}
