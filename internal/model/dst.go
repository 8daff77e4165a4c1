package model

import "fmt"

// DSTFile represents a complete decoded DST embroidery file.
// This is the unified internal representation handed to rendering,
// statistics and CLI consumers.
type DSTFile struct {
	Header   DSTHeader
	Stitches []Stitch // On-disk order; each stitch is relative to the previous position
	FilePath string   // Originating path, for diagnostics only (may be empty)

	// HeaderWarning is set when the header block could not be parsed and
	// default field values were substituted. Non-fatal by design.
	HeaderWarning string
}

// DSTHeader contains the metadata fields of the 512-byte DST header block.
type DSTHeader struct {
	DesignName  string // LA field (may be empty)
	StitchCount int    // ST field; declared count, may disagree with decoded count
	ColorCount  int    // CO field
	PosX        int    // +X extent from origin
	NegX        int    // -X extent from origin
	PosY        int    // +Y extent from origin
	NegY        int    // -Y extent from origin
	AX          int    // AX field (pass-through, machine-specific)
	AY          int    // AY field (pass-through, machine-specific)
	MX          int    // MX field (pass-through, machine-specific)
	MY          int    // MY field (pass-through, machine-specific)
	PD          string // PD field (pass-through)
}

// Validate checks the structural invariants of the header. The declared
// counts are informational, but they must at least be non-negative.
func (h DSTHeader) Validate() error {
	if h.StitchCount < 0 {
		return fmt.Errorf("stitch count cannot be negative, got %d", h.StitchCount)
	}
	if h.ColorCount < 0 {
		return fmt.Errorf("color count cannot be negative, got %d", h.ColorCount)
	}
	return nil
}

// Width returns the total design width (+X extent plus -X extent).
func (h DSTHeader) Width() int {
	return h.PosX + h.NegX
}

// Height returns the total design height (+Y extent plus -Y extent).
func (h DSTHeader) Height() int {
	return h.PosY + h.NegY
}

// Dimensions returns (width, height).
func (h DSTHeader) Dimensions() (int, int) {
	return h.Width(), h.Height()
}

// Stitch represents a single 3-byte DST record: a relative pen movement
// plus state flags.
type Stitch struct {
	X           int  // Relative X displacement
	Y           int  // Relative Y displacement
	Jump        bool // Pen-up movement (needle does not engage)
	ColorChange bool // Thread change point
	SetFlag     int  // 2-bit opaque flag (0-3), format-defined
}

// NewStitch creates a validated Stitch. SetFlag must be in [0, 3].
func NewStitch(x, y int, jump, colorChange bool, setFlag int) (Stitch, error) {
	s := Stitch{X: x, Y: y, Jump: jump, ColorChange: colorChange, SetFlag: setFlag}
	if err := s.Validate(); err != nil {
		return Stitch{}, err
	}
	return s, nil
}

// Validate checks the structural invariants of the stitch.
func (s Stitch) Validate() error {
	if s.SetFlag < 0 || s.SetFlag > 3 {
		return fmt.Errorf("set flag must be between 0 and 3, got %d", s.SetFlag)
	}
	return nil
}

// IsStitch reports whether this is a regular sewing stitch (not a jump).
func (s Stitch) IsStitch() bool {
	return !s.Jump
}

// Coordinates returns the relative displacement as (x, y).
func (s Stitch) Coordinates() (int, int) {
	return s.X, s.Y
}

func (s Stitch) String() string {
	return fmt.Sprintf("Stitch(x=%d, y=%d, jump=%t, color_change=%t, set=%d)",
		s.X, s.Y, s.Jump, s.ColorChange, s.SetFlag)
}

// Point is an absolute coordinate on the stitch path.
type Point struct {
	X int
	Y int
}

// Bounds is the bounding box of the absolute stitch path.
type Bounds struct {
	MinX int
	MinY int
	MaxX int
	MaxY int
}

// StitchCount returns the actual number of decoded stitches, which may
// differ from the declared Header.StitchCount.
func (f *DSTFile) StitchCount() int {
	return len(f.Stitches)
}

// JumpCount returns the number of jump stitches.
func (f *DSTFile) JumpCount() int {
	n := 0
	for _, s := range f.Stitches {
		if s.Jump {
			n++
		}
	}
	return n
}

// RegularStitchCount returns the number of sewing (non-jump) stitches.
func (f *DSTFile) RegularStitchCount() int {
	n := 0
	for _, s := range f.Stitches {
		if !s.Jump {
			n++
		}
	}
	return n
}

// ColorChangeCount returns the number of color change records.
func (f *DSTFile) ColorChangeCount() int {
	n := 0
	for _, s := range f.Stitches {
		if s.ColorChange {
			n++
		}
	}
	return n
}

// PathCoordinates returns the absolute position of every stitch, in stitch
// order, accumulated from origin (0,0). One point per stitch.
func (f *DSTFile) PathCoordinates() []Point {
	coords := make([]Point, len(f.Stitches))
	x, y := 0, 0
	for i, s := range f.Stitches {
		x += s.X
		y += s.Y
		coords[i] = Point{X: x, Y: y}
	}
	return coords
}

// GetBounds returns the bounding box of the absolute stitch path.
// An empty stitch sequence yields the zero box.
func (f *DSTFile) GetBounds() Bounds {
	if len(f.Stitches) == 0 {
		return Bounds{}
	}
	x, y := 0, 0
	var b Bounds
	first := true
	for _, s := range f.Stitches {
		x += s.X
		y += s.Y
		if first {
			b = Bounds{MinX: x, MinY: y, MaxX: x, MaxY: y}
			first = false
			continue
		}
		if x < b.MinX {
			b.MinX = x
		}
		if x > b.MaxX {
			b.MaxX = x
		}
		if y < b.MinY {
			b.MinY = y
		}
		if y > b.MaxY {
			b.MaxY = y
		}
	}
	return b
}

// StitchSegments splits the absolute path into maximal runs of contiguous
// sewing positions. A jump stitch closes the current run (if non-empty) and
// its own position belongs to no run; a trailing open run is returned even
// if never closed by a jump.
func (f *DSTFile) StitchSegments() [][]Point {
	var segments [][]Point
	var current []Point
	x, y := 0, 0
	for _, s := range f.Stitches {
		x += s.X
		y += s.Y
		if s.Jump {
			if len(current) > 0 {
				segments = append(segments, current)
				current = nil
			}
			continue
		}
		current = append(current, Point{X: x, Y: y})
	}
	if len(current) > 0 {
		segments = append(segments, current)
	}
	return segments
}
