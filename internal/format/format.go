// Package format defines the closed set of clipboard data formats selport
// can carry between selection peers. The set is fixed: adding a format means
// teaching every backend how to negotiate it, so there is deliberately no
// registration API.
package format

// Format identifies one supported clipboard data format. The zero value is
// Text; None is the "unsupported / not available" sentinel and always sorts
// last so backends can iterate formats with `f < format.None`.
type Format int

const (
	Text Format = iota // UTF-8 text
	PNG
	BMP
	TIFF
	JPEG
	None // sentinel: unsupported or no data
)

// Count is the number of concrete formats, excluding the None sentinel.
const Count = int(None)

var mimes = [Count]string{
	Text: "text/plain",
	PNG:  "image/png",
	BMP:  "image/bmp",
	TIFF: "image/tiff",
	JPEG: "image/jpeg",
}

// X11 target atom names. Text uses UTF8_STRING rather than text/plain
// because that is what real X clients advertise.
var atomNames = [Count]string{
	Text: "UTF8_STRING",
	PNG:  "image/png",
	BMP:  "image/bmp",
	TIFF: "image/tiff",
	JPEG: "image/jpeg",
}

// String returns the MIME name of the format, or "none" for the sentinel.
func (f Format) String() string {
	if !f.Valid() {
		return "none"
	}
	return mimes[f]
}

// AtomName returns the X11 target name the format is advertised under.
// Only valid for concrete formats.
func (f Format) AtomName() string { return atomNames[f] }

// Valid reports whether f is a concrete format (not None, not out of range).
func (f Format) Valid() bool { return f >= 0 && f < None }

// FromMIME maps a MIME string to a Format, returning None for anything
// outside the supported set. "text/plain;charset=utf-8" style parameters are
// not understood; callers pass bare MIME types.
func FromMIME(mime string) Format {
	for f, m := range mimes {
		if m == mime {
			return Format(f)
		}
	}
	return None
}

// All returns the concrete formats in preference order.
func All() []Format {
	out := make([]Format, Count)
	for i := range out {
		out[i] = Format(i)
	}
	return out
}
