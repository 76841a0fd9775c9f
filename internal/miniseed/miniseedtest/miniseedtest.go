// Package miniseedtest builds synthetic miniSEED records for tests.
package miniseedtest

import (
	"encoding/binary"
	"fmt"
	"os"
	"time"
)

// RecordSpec describes one synthetic record. Zero values select the
// defaults noted on each field.
type RecordSpec struct {
	Network  string // default XX
	Station  string // default TEST
	Location string
	Channel  string // default BHZ
	Quality  string // default D

	Start   time.Time
	Samples int
	Rate    float64

	RecLen int  // default 512; must be a power of two >= 128
	Fill   byte // data area fill byte, varies record content
}

// Encode renders one record as big-endian miniSEED with a Blockette 1000.
func Encode(seq int, spec RecordSpec) []byte {
	if spec.Network == "" {
		spec.Network = "XX"
	}
	if spec.Station == "" {
		spec.Station = "TEST"
	}
	if spec.Channel == "" {
		spec.Channel = "BHZ"
	}
	if spec.Quality == "" {
		spec.Quality = "D"
	}
	if spec.RecLen == 0 {
		spec.RecLen = 512
	}

	raw := make([]byte, spec.RecLen)
	for i := 64; i < spec.RecLen; i++ {
		raw[i] = spec.Fill
	}

	copy(raw[0:6], fmt.Sprintf("%06d", seq))
	raw[6] = spec.Quality[0]
	raw[7] = ' '
	copy(raw[8:13], pad(spec.Station, 5))
	copy(raw[13:15], pad(spec.Location, 2))
	copy(raw[15:18], pad(spec.Channel, 3))
	copy(raw[18:20], pad(spec.Network, 2))

	encodeBTime(raw[20:30], spec.Start)

	binary.BigEndian.PutUint16(raw[30:32], uint16(spec.Samples))
	factor, multiplier := rateFields(spec.Rate)
	binary.BigEndian.PutUint16(raw[32:34], uint16(factor))
	binary.BigEndian.PutUint16(raw[34:36], uint16(multiplier))

	raw[39] = 1                                   // one blockette
	binary.BigEndian.PutUint16(raw[44:46], 64)    // beginning of data
	binary.BigEndian.PutUint16(raw[46:48], 48)    // first blockette

	// Blockette 1000 at offset 48.
	binary.BigEndian.PutUint16(raw[48:50], 1000)
	binary.BigEndian.PutUint16(raw[50:52], 0) // end of chain
	raw[52] = 10                              // Steim-1 encoding
	raw[53] = 1                               // big-endian word order
	raw[54] = recLenExp(spec.RecLen)

	return raw
}

// WriteFile writes the given records to path in order.
func WriteFile(path string, specs ...RecordSpec) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	for i, spec := range specs {
		if _, err := f.Write(Encode(i+1, spec)); err != nil {
			f.Close()
			return err
		}
	}
	return f.Close()
}

func pad(s string, n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = ' '
	}
	copy(b, s)
	return b
}

func encodeBTime(b []byte, t time.Time) {
	t = t.UTC()
	binary.BigEndian.PutUint16(b[0:2], uint16(t.Year()))
	binary.BigEndian.PutUint16(b[2:4], uint16(t.YearDay()))
	b[4] = byte(t.Hour())
	b[5] = byte(t.Minute())
	b[6] = byte(t.Second())
	binary.BigEndian.PutUint16(b[8:10], uint16(t.Nanosecond()/100000))
}

func rateFields(rate float64) (int16, int16) {
	switch {
	case rate == 0:
		return 0, 0
	case rate >= 1:
		return int16(rate), 1
	default:
		return int16(-1 / rate), 1
	}
}

func recLenExp(n int) byte {
	var exp byte
	for n > 1 {
		n >>= 1
		exp++
	}
	return exp
}
