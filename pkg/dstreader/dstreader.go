// Package dstreader provides decoding of Tajima DST embroidery files.
//
// This package can be used as a library to decode DST files and derive
// geometry (stitch paths, bounds, segments) from them programmatically.
//
// Example usage:
//
//	data, _ := os.ReadFile("design.dst")
//
//	dst, err := dstreader.Decode(data)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	fmt.Println(dst.Header.DesignName, dst.StitchCount())
//
// For repeated decoding of files by path, use a Parser, which reads the
// file for you and caches decoded results in a bounded LRU cache:
//
//	p := dstreader.NewParser()
//	dst, err := p.ParseFile("design.dst")
package dstreader

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/dyuri/dstreader/internal/binary"
	"github.com/dyuri/dstreader/internal/cache"
	"github.com/dyuri/dstreader/internal/model"
)

// HeaderSize is the fixed size of the DST header block in bytes. Input
// shorter than this cannot be a DST file.
const HeaderSize = binary.HeaderSize

// Decode decodes a complete DST file from raw bytes. The first 512 bytes
// are the header block, the rest the stitch payload.
//
// A malformed header does not fail the decode; the returned file carries
// default header fields and a non-empty HeaderWarning instead. The only
// fatal condition is input shorter than HeaderSize.
func Decode(data []byte) (*model.DSTFile, error) {
	dst, err := binary.NewReader(data).Parse()
	if err != nil {
		return nil, mapDecodeError(err, len(data))
	}
	return dst, nil
}

// DecodeHeader extracts only the header from the first 512 bytes of a DST
// file, without decoding any stitches. Useful for fast metadata probes.
//
// The warning is non-empty when the header block could not be parsed and
// default field values were substituted; this is not an error.
func DecodeHeader(data []byte) (header model.DSTHeader, warning string, err error) {
	if len(data) < HeaderSize {
		return model.DSTHeader{}, "", sizeError(len(data))
	}
	header, warning = binary.NewReader(data[:HeaderSize]).ParseHeader()
	return header, warning, nil
}

// Validate reports whether the input is plausibly a DST file: header
// extraction succeeds. Stitch data is never inspected.
func Validate(data []byte) bool {
	_, _, err := DecodeHeader(data)
	return err == nil
}

// HeaderInfo summarizes a DST file from its header alone.
type HeaderInfo struct {
	Header   model.DSTHeader
	FileSize int64
	FilePath string

	// Warning carries the fail-soft diagnostic when default header fields
	// were substituted for an unparsable header block.
	Warning string
}

// CacheInfo describes the current state of a Parser's decode cache.
type CacheInfo struct {
	CachedFiles int
	Capacity    int
	CacheKeys   []string // most recently used first
}

// Parser decodes DST files by path and caches decoded results.
//
// The cache is bounded (LRU eviction) and owned by the Parser; callers
// that keep a Parser for a long session should size it via
// NewParserWithCapacity and may drop everything with ClearCache.
type Parser struct {
	cache    *cache.LRU[string, *model.DSTFile]
	parallel bool
}

// NewParser creates a Parser with the default cache capacity.
func NewParser() *Parser {
	return NewParserWithCapacity(cache.DefaultCapacity)
}

// NewParserWithCapacity creates a Parser whose cache holds at most
// capacity decoded files.
func NewParserWithCapacity(capacity int) *Parser {
	return &Parser{
		cache:    cache.NewLRU[string, *model.DSTFile](capacity),
		parallel: true,
	}
}

// SetParallel enables or disables chunk-parallel stitch decoding for large
// files. Results are identical either way.
func (p *Parser) SetParallel(enabled bool) {
	p.parallel = enabled
}

// ParseFile reads and decodes the DST file at path. Decoded files are
// cached by path; a second call for the same path returns the cached
// aggregate without touching the filesystem.
func (p *Parser) ParseFile(path string) (*model.DSTFile, error) {
	if dst, ok := p.cache.Get(path); ok {
		return dst, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &Error{Code: "not_found", Message: fmt.Sprintf("read DST file %s", path), Cause: err}
	}

	reader := binary.NewReader(data)
	reader.SetParallel(p.parallel)
	dst, err := reader.Parse()
	if err != nil {
		return nil, mapDecodeError(err, len(data))
	}
	dst.FilePath = path

	p.cache.Set(path, dst)
	return dst, nil
}

// HeaderInfo reads only the header block of the file at path and returns
// its metadata. At most 512 bytes are read regardless of file size.
func (p *Parser) HeaderInfo(path string) (HeaderInfo, error) {
	f, err := os.Open(path)
	if err != nil {
		return HeaderInfo{}, &Error{Code: "not_found", Message: fmt.Sprintf("open DST file %s", path), Cause: err}
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return HeaderInfo{}, &Error{Code: "not_found", Message: fmt.Sprintf("stat DST file %s", path), Cause: err}
	}

	block := make([]byte, HeaderSize)
	if _, err := io.ReadFull(f, block); err != nil {
		return HeaderInfo{}, sizeError(int(stat.Size()))
	}

	header, warning, err := DecodeHeader(block)
	if err != nil {
		return HeaderInfo{}, err
	}

	return HeaderInfo{
		Header:   header,
		FileSize: stat.Size(),
		FilePath: path,
		Warning:  warning,
	}, nil
}

// ValidateFile reports whether the file at path is plausibly a DST file.
func (p *Parser) ValidateFile(path string) bool {
	_, err := p.HeaderInfo(path)
	return err == nil
}

// ClearCache drops all cached decoded files.
func (p *Parser) ClearCache() {
	p.cache.Clear()
}

// CacheInfo returns the current cache contents.
func (p *Parser) CacheInfo() CacheInfo {
	return CacheInfo{
		CachedFiles: p.cache.Len(),
		Capacity:    p.cache.Capacity(),
		CacheKeys:   p.cache.Keys(),
	}
}

// mapDecodeError translates internal decode failures into the package
// error taxonomy. The only fatal decode failure is short input.
func mapDecodeError(err error, n int) error {
	if errors.Is(err, binary.ErrTooSmall) {
		return sizeError(n)
	}
	return err
}

func sizeError(n int) error {
	return &Error{
		Code:    "file_too_small",
		Message: fmt.Sprintf("file too small to be a valid DST file: %d bytes (need %d)", n, HeaderSize),
	}
}

// Common errors
var (
	ErrFileTooSmall = &Error{Code: "file_too_small", Message: "file too small to be a valid DST file"}
)

// Error represents a dstreader error
type Error struct {
	Code    string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches errors by code, so callers can test against the sentinel
// values without caring about formatted messages.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}
