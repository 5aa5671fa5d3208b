package bthome

import "fmt"

// PutValue writes v into b[off:off+f.Size] low byte first. v is saturated to
// the format's range first; the returned flag reports whether that happened.
// It does not allocate.
func PutValue(b []byte, off int, f Format, v int64) (clamped bool, err error) {
	if off < 0 || off+f.Size > len(b) {
		return false, fmt.Errorf("value at offset %d size %d outside buffer of %d bytes", off, f.Size, len(b))
	}
	c := Clamp(v, f)
	u := uint64(c)
	for i := 0; i < f.Size; i++ {
		b[off+i] = byte(u >> (8 * i))
	}
	return c != v, nil
}

// ReadValue reads a little-endian value of format f at off, sign extending
// signed formats.
func ReadValue(b []byte, off int, f Format) (int64, error) {
	if off < 0 || off+f.Size > len(b) {
		return 0, fmt.Errorf("value at offset %d size %d outside buffer of %d bytes", off, f.Size, len(b))
	}
	var u uint64
	for i := 0; i < f.Size; i++ {
		u |= uint64(b[off+i]) << (8 * i)
	}
	if f.Signed {
		shift := 64 - 8*f.Size
		return int64(u<<shift) >> shift, nil
	}
	return int64(u), nil
}
