package miniseed

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"strings"
	"time"
)

const (
	fixedHeaderLen = 48
	minRecordLen   = 128
	maxRecordLen   = 1 << 20
)

// Reader produces a forward-only sequence of Records from one file.
// Restartable only by re-opening the file.
type Reader struct {
	path   string
	f      *os.File
	br     *bufio.Reader
	offset int64
}

// Open opens a miniSEED file for sequential record reading.
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return &Reader{path: path, f: f, br: bufio.NewReaderSize(f, 64*1024)}, nil
}

// Close releases the underlying file.
func (r *Reader) Close() error {
	return r.f.Close()
}

// Next decodes and returns the next record. It returns io.EOF at a clean
// end of file and *DecodeError for malformed content, including trailing
// garbage that is not a whole record.
func (r *Reader) Next() (*Record, error) {
	header := make([]byte, fixedHeaderLen)
	n, err := io.ReadFull(r.br, header)
	if err == io.EOF {
		return nil, io.EOF
	}
	if err != nil {
		return nil, r.decodeErr("truncated fixed header (%d bytes)", n)
	}

	if !validHeader(header) {
		return nil, r.decodeErr("invalid fixed header")
	}

	// SEED stores multi-byte fields in either byte order; the year field
	// of the start time discriminates.
	order := headerByteOrder(header)

	reclen, blkBytes, err := r.readBlockettes(header, order)
	if err != nil {
		return nil, err
	}

	raw := make([]byte, reclen)
	copy(raw, header)
	copy(raw[fixedHeaderLen:], blkBytes)
	rest := raw[fixedHeaderLen+len(blkBytes):]
	if _, err := io.ReadFull(r.br, rest); err != nil {
		return nil, r.decodeErr("truncated record body: %v", err)
	}

	rec, err := r.buildRecord(raw, order, reclen)
	if err != nil {
		return nil, err
	}

	r.offset += int64(reclen)
	return rec, nil
}

// readBlockettes follows the blockette chain far enough to locate
// Blockette 1000, which carries the record length. Bytes consumed past the
// fixed header are returned so the full record can be reassembled.
func (r *Reader) readBlockettes(header []byte, order binary.ByteOrder) (int, []byte, error) {
	numBlockettes := int(header[39])
	next := int(order.Uint16(header[46:48]))

	var buf []byte // bytes read past the fixed header, in file order
	ensure := func(upto int) error {
		need := upto - fixedHeaderLen - len(buf)
		if need <= 0 {
			return nil
		}
		ext := make([]byte, need)
		if _, err := io.ReadFull(r.br, ext); err != nil {
			return r.decodeErr("truncated blockette chain: %v", err)
		}
		buf = append(buf, ext...)
		return nil
	}
	at := func(pos int) []byte {
		if pos < fixedHeaderLen {
			return header[pos:]
		}
		return buf[pos-fixedHeaderLen:]
	}

	for i := 0; i < numBlockettes && next >= fixedHeaderLen; i++ {
		if next > maxRecordLen {
			return 0, nil, r.decodeErr("blockette offset %d out of range", next)
		}
		if err := ensure(next + 8); err != nil {
			return 0, nil, err
		}
		b := at(next)
		blktype := order.Uint16(b[0:2])
		if blktype == 1000 {
			exp := b[6]
			if exp < 7 || exp > 20 {
				return 0, nil, r.decodeErr("bad record length exponent %d", exp)
			}
			reclen := 1 << exp
			if reclen < fixedHeaderLen+len(buf) {
				return 0, nil, r.decodeErr("record length %d smaller than header", reclen)
			}
			return reclen, buf, nil
		}
		next = int(order.Uint16(b[2:4]))
	}

	return 0, nil, r.decodeErr("no Blockette 1000, record length unknown")
}

func (r *Reader) buildRecord(raw []byte, order binary.ByteOrder, reclen int) (*Record, error) {
	start, err := decodeBTime(raw[20:30], order)
	if err != nil {
		return nil, r.decodeErr("invalid start time: %v", err)
	}

	// Apply the time correction unless the activity flags mark it as
	// already applied (bit 1).
	correction := int32(order.Uint32(raw[40:44]))
	if raw[36]&0x02 == 0 && correction != 0 {
		start = start.Add(time.Duration(correction) * 100 * time.Microsecond)
	}

	sampleCnt := int(order.Uint16(raw[30:32]))
	factor := int16(order.Uint16(raw[32:34]))
	multiplier := int16(order.Uint16(raw[34:36]))
	rate := nominalRate(factor, multiplier)

	end := start
	if rate > 0 && sampleCnt > 0 {
		span := float64(sampleCnt-1) / rate * float64(time.Second)
		end = start.Add(time.Duration(math.Round(span)))
	}

	return &Record{
		ID: SourceID{
			Network:  headerField(raw[18:20]),
			Station:  headerField(raw[8:13]),
			Location: headerField(raw[13:15]),
			Channel:  headerField(raw[15:18]),
			Quality:  string(raw[6]),
		},
		Start:      start,
		End:        end,
		SampleRate: rate,
		SampleCnt:  sampleCnt,
		Offset:     r.offset,
		Length:     int64(reclen),
		Raw:        raw,
	}, nil
}

func (r *Reader) decodeErr(format string, args ...interface{}) error {
	return &DecodeError{Path: r.path, Offset: r.offset, Reason: fmt.Sprintf(format, args...)}
}

// validHeader checks the sequence number and quality indicator of a fixed
// header, the same sanity test used to locate record boundaries.
func validHeader(h []byte) bool {
	for _, c := range h[0:6] {
		if (c < '0' || c > '9') && c != ' ' {
			return false
		}
	}
	switch h[6] {
	case 'D', 'R', 'Q', 'M':
		return true
	}
	return false
}

func headerByteOrder(h []byte) binary.ByteOrder {
	year := binary.BigEndian.Uint16(h[20:22])
	if year >= 1900 && year <= 2100 {
		return binary.BigEndian
	}
	return binary.LittleEndian
}

func headerField(b []byte) string {
	return strings.TrimRight(string(b), " ")
}

// decodeBTime converts a 10-byte SEED BTIME to a UTC time.Time.
func decodeBTime(b []byte, order binary.ByteOrder) (time.Time, error) {
	year := int(order.Uint16(b[0:2]))
	doy := int(order.Uint16(b[2:4]))
	hour := int(b[4])
	minute := int(b[5])
	sec := int(b[6])
	fract := int(order.Uint16(b[8:10])) // 0.0001 second units

	if year < 1900 || year > 2100 || doy < 1 || doy > 366 {
		return time.Time{}, fmt.Errorf("year %d day %d", year, doy)
	}
	if hour > 23 || minute > 59 || sec > 60 {
		return time.Time{}, fmt.Errorf("time of day %02d:%02d:%02d", hour, minute, sec)
	}

	t := time.Date(year, 1, 1, hour, minute, sec, fract*100000, time.UTC)
	return t.AddDate(0, 0, doy-1), nil
}

// nominalRate derives samples per second from the SEED rate factor and
// multiplier. A zero factor means the record carries no time series data.
func nominalRate(factor, multiplier int16) float64 {
	f, m := float64(factor), float64(multiplier)
	switch {
	case factor == 0 || multiplier == 0:
		return 0
	case factor > 0 && multiplier > 0:
		return f * m
	case factor > 0 && multiplier < 0:
		return -f / m
	case factor < 0 && multiplier > 0:
		return -m / f
	default:
		return 1 / (f * m)
	}
}
