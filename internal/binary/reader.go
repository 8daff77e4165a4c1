package binary

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/dyuri/dstreader/internal/model"
	"golang.org/x/sync/errgroup"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/simplifiedchinese"
)

// HeaderSize is the fixed size of the DST header block in bytes.
const HeaderSize = 512

// ErrTooSmall reports input shorter than the header block. Callers match
// it with errors.Is to map it into their own error surface.
var ErrTooSmall = errors.New("file too small to be a valid DST file")

// Parallel decode thresholds. Payloads below either threshold are decoded
// in a single sequential pass; the dispatch overhead is not worth it for
// small files.
const (
	parallelPayloadBytes = 1024 * 1024
	parallelMinStitches  = 10000
	parallelWorkers      = 4
)

// Reader handles parsing of binary DST files
type Reader struct {
	data    []byte
	decoder *encoding.Decoder // Text decoder for the header block (GBK)

	parallel     bool
	minBytes     int
	minStitches  int
	workerChunks int
}

// NewReader creates a new binary DST reader over the whole file contents.
// Header text uses GBK; DST headers come out of Chinese-locale embroidery
// software.
func NewReader(data []byte) *Reader {
	return &Reader{
		data:         data,
		decoder:      simplifiedchinese.GBK.NewDecoder(),
		parallel:     true,
		minBytes:     parallelPayloadBytes,
		minStitches:  parallelMinStitches,
		workerChunks: parallelWorkers,
	}
}

// SetParallel enables or disables the chunk-parallel stitch decode path.
// Sequential and parallel decoding produce identical results; this only
// affects how large files are processed.
func (r *Reader) SetParallel(enabled bool) {
	r.parallel = enabled
}

// Parse decodes the entire DST file and returns the internal model.
// A malformed header never fails the decode; the returned file carries a
// HeaderWarning and default header fields instead.
func (r *Reader) Parse() (*model.DSTFile, error) {
	if len(r.data) < HeaderSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrTooSmall, len(r.data))
	}

	header, warning := r.ParseHeader()
	stitches := r.parseStitches(r.data[HeaderSize:])

	return &model.DSTFile{
		Header:        header,
		Stitches:      stitches,
		HeaderWarning: warning,
	}, nil
}

// ParseHeader extracts the typed header fields from the first 512 bytes.
// It never fails: if extraction blows up on garbled input, it returns a
// header with default values and a non-empty warning.
func (r *Reader) ParseHeader() (header model.DSTHeader, warning string) {
	defer func() {
		if p := recover(); p != nil {
			header = model.DSTHeader{DesignName: "Unknown"}
			warning = fmt.Sprintf("header parsing failed (%v), using default values", p)
		}
	}()

	if len(r.data) < HeaderSize {
		panic(fmt.Sprintf("header block truncated: %d bytes", len(r.data)))
	}

	text := r.decodeString(r.data[:HeaderSize])

	// Header lines are CR-separated "KEY:value" pairs. Lines without a
	// colon are padding or noise; later duplicates win.
	fields := make(map[string]string)
	for _, line := range strings.Split(text, "\r") {
		line = strings.TrimSpace(line)
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		fields[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}

	h := model.DSTHeader{
		DesignName:  fields["LA"],
		StitchCount: safeInt(fields["ST"]),
		ColorCount:  safeInt(fields["CO"]),
		PosX:        safeInt(fields["+X"]),
		NegX:        safeInt(fields["-X"]),
		PosY:        safeInt(fields["+Y"]),
		NegY:        safeInt(fields["-Y"]),
		AX:          safeInt(fields["AX"]),
		AY:          safeInt(fields["AY"]),
		MX:          safeInt(fields["MX"]),
		MY:          safeInt(fields["MY"]),
		PD:          fields["PD"],
	}
	if err := h.Validate(); err != nil {
		return model.DSTHeader{DesignName: "Unknown"},
			fmt.Sprintf("header parsing failed (%v), using default values", err)
	}
	return h, ""
}

// safeInt parses an integer permissively: every character that is not a
// digit or a minus sign is stripped first. Encoding artifacts and stray
// formatting in header values must not fail the parse; unparsable values
// default to 0.
func safeInt(value string) int {
	var cleaned strings.Builder
	for _, c := range value {
		if (c >= '0' && c <= '9') || c == '-' {
			cleaned.WriteRune(c)
		}
	}
	n, err := strconv.Atoi(cleaned.String())
	if err != nil {
		return 0
	}
	return n
}

// DecodeStitch decodes one 3-byte DST record. Any 3-byte input is
// structurally decodable; there is no failure path.
//
// Displacements are encoded as signed ternary-weighted bit pairs: within
// each pair one bit adds the weight and the other subtracts it. X uses the
// low nibbles of bytes 0 and 1, Y the high nibbles with the in-pair bit
// order mirrored; both take their 81 weight from the shared pair in byte 2,
// with opposite bit order.
func DecodeStitch(b0, b1, b2 byte) model.Stitch {
	x := int(b0&0x01) - int((b0>>1)&0x01)
	x += 9 * (int((b0>>2)&0x01) - int((b0>>3)&0x01))
	x += 3 * (int(b1&0x01) - int((b1>>1)&0x01))
	x += 27 * (int((b1>>2)&0x01) - int((b1>>3)&0x01))
	x += 81 * (int((b2>>2)&0x01) - int((b2>>3)&0x01))

	y := int((b0>>7)&0x01) - int((b0>>6)&0x01)
	y += 9 * (int((b0>>5)&0x01) - int((b0>>4)&0x01))
	y += 3 * (int((b1>>7)&0x01) - int((b1>>6)&0x01))
	y += 27 * (int((b1>>5)&0x01) - int((b1>>4)&0x01))
	y += 81 * (int((b2>>3)&0x01) - int((b2>>2)&0x01))

	return model.Stitch{
		X:           x,
		Y:           y,
		Jump:        b2&0x80 != 0,
		ColorChange: b2&0x40 != 0,
		SetFlag:     int(b2 & 0x03),
	}
}

// parseStitches decodes the whole stitch payload in on-disk order.
// Trailing bytes past the last whole 3-byte record are ignored.
func (r *Reader) parseStitches(payload []byte) []model.Stitch {
	count := len(payload) / 3
	if r.parallel && len(payload) >= r.minBytes && count >= r.minStitches {
		return r.parseStitchesParallel(payload, count)
	}
	return parseStitchRange(payload, make([]model.Stitch, count), 0, count)
}

// parseStitchesParallel splits the record index range into contiguous,
// non-overlapping chunks and decodes them concurrently. Each worker writes
// its own disjoint range of the pre-allocated result, so no locking is
// needed and the final order is identical to a sequential decode.
func (r *Reader) parseStitchesParallel(payload []byte, count int) []model.Stitch {
	stitches := make([]model.Stitch, count)

	chunkSize := count / r.workerChunks
	if chunkSize < 1000 {
		chunkSize = 1000
	}

	var g errgroup.Group
	for start := 0; start < count; start += chunkSize {
		end := start + chunkSize
		if end > count {
			end = count
		}
		start, end := start, end
		g.Go(func() error {
			parseStitchRange(payload, stitches, start, end)
			return nil
		})
	}
	// Workers never return an error; Wait is only the join barrier.
	_ = g.Wait()

	return stitches
}

// parseStitchRange decodes records [start, end) of the payload into the
// matching positions of dst and returns dst.
func parseStitchRange(payload []byte, dst []model.Stitch, start, end int) []model.Stitch {
	for i := start; i < end; i++ {
		off := i * 3
		dst[i] = DecodeStitch(payload[off], payload[off+1], payload[off+2])
	}
	return dst
}

// decodeString decodes header bytes using the GBK decoder, falling back to
// the raw bytes if decoding fails. Header text extraction must never fail
// on malformed byte sequences.
func (r *Reader) decodeString(data []byte) string {
	decoded, err := r.decoder.Bytes(data)
	if err != nil {
		return string(data)
	}
	return string(decoded)
}
