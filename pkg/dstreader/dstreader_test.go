package dstreader

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
)

// dstBytes assembles an in-memory DST file: header text zero-padded to 512
// bytes followed by the given stitch records.
func dstBytes(headerText string, records ...[3]byte) []byte {
	data := make([]byte, HeaderSize, HeaderSize+3*len(records))
	copy(data, headerText)
	for _, rec := range records {
		data = append(data, rec[0], rec[1], rec[2])
	}
	return data
}

func TestDecode(t *testing.T) {
	data := dstBytes("LA:Test\rST:5\rCO:2\r+X:100\r-X:50\r+Y:80\r-Y:20\r",
		[3]byte{0x01, 0x00, 0x00}, // dx=+1
		[3]byte{0x00, 0x00, 0x80}, // jump
		[3]byte{0x02, 0x00, 0x00}, // dx=-1
	)

	dst, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}

	if dst.Header.DesignName != "Test" {
		t.Errorf("DesignName = %q, want %q", dst.Header.DesignName, "Test")
	}
	if dst.Header.Width() != 150 || dst.Header.Height() != 100 {
		t.Errorf("Dimensions = %dx%d, want 150x100", dst.Header.Width(), dst.Header.Height())
	}
	if dst.StitchCount() != 3 {
		t.Fatalf("StitchCount = %d, want 3", dst.StitchCount())
	}
	if dst.JumpCount() != 1 {
		t.Errorf("JumpCount = %d, want 1", dst.JumpCount())
	}
	if dst.HeaderWarning != "" {
		t.Errorf("unexpected header warning: %s", dst.HeaderWarning)
	}
	if dst.Stitches[0].X != 1 || !dst.Stitches[1].Jump || dst.Stitches[2].X != -1 {
		t.Errorf("unexpected stitches: %v", dst.Stitches)
	}
}

func TestDecodeTooSmall(t *testing.T) {
	_, err := Decode(make([]byte, HeaderSize-1))
	if err == nil {
		t.Fatal("expected error for short input")
	}
	if !errors.Is(err, ErrFileTooSmall) {
		t.Errorf("error %v does not match ErrFileTooSmall", err)
	}
}

func TestDecodeHeader(t *testing.T) {
	data := dstBytes("LA:Probe\rST:1000\r")

	header, warning, err := DecodeHeader(data)
	if err != nil {
		t.Fatalf("DecodeHeader failed: %v", err)
	}
	if warning != "" {
		t.Errorf("unexpected warning: %s", warning)
	}
	if header.DesignName != "Probe" {
		t.Errorf("DesignName = %q, want %q", header.DesignName, "Probe")
	}
	if header.StitchCount != 1000 {
		t.Errorf("StitchCount = %d, want 1000", header.StitchCount)
	}
}

func TestDecodeHeaderWarning(t *testing.T) {
	header, warning, err := DecodeHeader(dstBytes("LA:Neg\rST:-5\rCO:-1\r"))
	if err != nil {
		t.Fatalf("DecodeHeader failed: %v", err)
	}
	if warning == "" {
		t.Error("expected a warning for negative declared counts")
	}
	if header.DesignName != "Unknown" || header.StitchCount != 0 || header.ColorCount != 0 {
		t.Errorf("header = %+v, want all-default with name Unknown", header)
	}

	// A full decode of the same bytes still succeeds and carries the
	// warning on the aggregate.
	dst, err := Decode(dstBytes("LA:Neg\rST:-5\rCO:-1\r", [3]byte{0x01, 0x00, 0x00}))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if dst.HeaderWarning == "" {
		t.Error("expected HeaderWarning on decoded file")
	}
	if dst.StitchCount() != 1 {
		t.Errorf("StitchCount = %d, want 1", dst.StitchCount())
	}
}

func TestValidate(t *testing.T) {
	if !Validate(dstBytes("LA:ok\r")) {
		t.Error("Validate = false for a well-formed file")
	}
	if Validate(make([]byte, 42)) {
		t.Error("Validate = true for a short file")
	}
	// Hostile header content is still "valid": extraction is fail-soft.
	if !Validate(make([]byte, HeaderSize)) {
		t.Error("Validate = false for an all-zero header block")
	}
}

func TestParseFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "design.dst")
	data := dstBytes("LA:Disk\rST:2\r",
		[3]byte{0x01, 0x00, 0x00},
		[3]byte{0x80, 0x00, 0x00},
	)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}

	p := NewParser()
	dst, err := p.ParseFile(path)
	if err != nil {
		t.Fatalf("ParseFile failed: %v", err)
	}
	if dst.FilePath != path {
		t.Errorf("FilePath = %q, want %q", dst.FilePath, path)
	}
	if dst.StitchCount() != 2 {
		t.Errorf("StitchCount = %d, want 2", dst.StitchCount())
	}

	// Second parse hits the cache and returns the same aggregate.
	again, err := p.ParseFile(path)
	if err != nil {
		t.Fatalf("cached ParseFile failed: %v", err)
	}
	if again != dst {
		t.Error("cached ParseFile returned a different aggregate")
	}

	info := p.CacheInfo()
	if info.CachedFiles != 1 {
		t.Errorf("CachedFiles = %d, want 1", info.CachedFiles)
	}
	if len(info.CacheKeys) != 1 || info.CacheKeys[0] != path {
		t.Errorf("CacheKeys = %v, want [%s]", info.CacheKeys, path)
	}

	p.ClearCache()
	if p.CacheInfo().CachedFiles != 0 {
		t.Error("ClearCache left entries behind")
	}
}

func TestParseFileNotFound(t *testing.T) {
	p := NewParser()
	_, err := p.ParseFile(filepath.Join(t.TempDir(), "missing.dst"))
	if err == nil {
		t.Fatal("expected error for missing file")
	}
	if !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("error %v does not wrap fs.ErrNotExist", err)
	}
}

func TestParseFileTooSmall(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tiny.dst")
	if err := os.WriteFile(path, []byte("not a dst"), 0o644); err != nil {
		t.Fatal(err)
	}

	p := NewParser()
	_, err := p.ParseFile(path)
	if !errors.Is(err, ErrFileTooSmall) {
		t.Errorf("error %v does not match ErrFileTooSmall", err)
	}
}

func TestHeaderInfo(t *testing.T) {
	path := filepath.Join(t.TempDir(), "design.dst")
	data := dstBytes("LA:Meta\rST:7\rCO:3\r",
		[3]byte{0x01, 0x00, 0x00},
	)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}

	p := NewParser()
	info, err := p.HeaderInfo(path)
	if err != nil {
		t.Fatalf("HeaderInfo failed: %v", err)
	}
	if info.Header.DesignName != "Meta" {
		t.Errorf("DesignName = %q, want %q", info.Header.DesignName, "Meta")
	}
	if info.Header.ColorCount != 3 {
		t.Errorf("ColorCount = %d, want 3", info.Header.ColorCount)
	}
	if info.FileSize != int64(len(data)) {
		t.Errorf("FileSize = %d, want %d", info.FileSize, len(data))
	}

	if info.Warning != "" {
		t.Errorf("unexpected warning: %s", info.Warning)
	}

	// Header probes never populate the decode cache.
	if p.CacheInfo().CachedFiles != 0 {
		t.Errorf("CachedFiles = %d, want 0", p.CacheInfo().CachedFiles)
	}
}

func TestHeaderInfoWarning(t *testing.T) {
	path := filepath.Join(t.TempDir(), "neg.dst")
	if err := os.WriteFile(path, dstBytes("LA:Neg\rST:-5\r"), 0o644); err != nil {
		t.Fatal(err)
	}

	p := NewParser()
	info, err := p.HeaderInfo(path)
	if err != nil {
		t.Fatalf("HeaderInfo failed: %v", err)
	}
	if info.Warning == "" {
		t.Error("expected a warning for negative declared count")
	}
	if info.Header.DesignName != "Unknown" {
		t.Errorf("DesignName = %q, want %q", info.Header.DesignName, "Unknown")
	}
}

func TestValidateFile(t *testing.T) {
	dir := t.TempDir()

	good := filepath.Join(dir, "good.dst")
	if err := os.WriteFile(good, dstBytes("LA:v\r"), 0o644); err != nil {
		t.Fatal(err)
	}
	bad := filepath.Join(dir, "bad.dst")
	if err := os.WriteFile(bad, []byte("short"), 0o644); err != nil {
		t.Fatal(err)
	}

	p := NewParser()
	if !p.ValidateFile(good) {
		t.Error("ValidateFile(good) = false")
	}
	if p.ValidateFile(bad) {
		t.Error("ValidateFile(bad) = true")
	}
	if p.ValidateFile(filepath.Join(dir, "missing.dst")) {
		t.Error("ValidateFile(missing) = true")
	}
}

func TestParserSetParallel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "design.dst")
	if err := os.WriteFile(path, dstBytes("LA:p\r", [3]byte{0x01, 0x00, 0x00}), 0o644); err != nil {
		t.Fatal(err)
	}

	p := NewParser()
	p.SetParallel(false)
	dst, err := p.ParseFile(path)
	if err != nil {
		t.Fatalf("ParseFile failed: %v", err)
	}
	if dst.StitchCount() != 1 {
		t.Errorf("StitchCount = %d, want 1", dst.StitchCount())
	}
}
