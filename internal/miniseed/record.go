package miniseed

import (
	"fmt"
	"strings"
	"time"
)

// SourceID identifies a time series source: the SEED network, station,
// location and channel codes plus the record quality indicator.
type SourceID struct {
	Network  string
	Station  string
	Location string
	Channel  string
	Quality  string
}

// String returns the dotted form NET.STA.LOC.CHA.Q.
func (id SourceID) String() string {
	return strings.Join([]string{id.Network, id.Station, id.Location, id.Channel, id.Quality}, ".")
}

// Record describes one decoded miniSEED record: its identity, time extent,
// nominal sample rate and the exact byte range it occupies in the file.
// Raw holds the complete record bytes as read from disk.
type Record struct {
	ID         SourceID
	Version    int
	Start      time.Time
	End        time.Time
	SampleRate float64
	SampleCnt  int
	Offset     int64
	Length     int64
	Raw        []byte
}

// DecodeError indicates a malformed record at a known file offset.
type DecodeError struct {
	Path   string
	Offset int64
	Reason string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s at offset %d: %s", e.Path, e.Offset, e.Reason)
}
