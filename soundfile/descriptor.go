package soundfile

import (
	"fmt"
	"os"
)

// Descriptor is the value passed through every codec and handler call —
// the Go analogue of d_soundfile.c's t_soundfile. A nil File is the
// "closed" sentinel.
type Descriptor struct {
	File *os.File

	Type *TypeEntry

	SampleRate     int
	NChannels      int
	BytesPerSample int // 2, 3, or 4
	BigEndian      bool

	// HeaderSize is the byte offset of the first sample frame. A
	// negative value (HeaderSizeUnset) means "detect from the header
	// instead of trusting a caller override".
	HeaderSize int64

	// ByteLimit is the remaining byte budget of sample data from the
	// current file position; it saturates at MaxBytes when unknown and
	// must never go negative.
	ByteLimit int64

	// Data is handler-owned per-file scratch state (d_soundfile.c's
	// sf_data void*, expressed as a typed Go value instead of an
	// untyped pointer).
	Data any
}

// BytesPerFrame returns NChannels * BytesPerSample, the derived invariant
// spec §3 requires of every open Descriptor.
func (d *Descriptor) BytesPerFrame() int {
	return d.NChannels * d.BytesPerSample
}

// IsOpen reports whether the descriptor holds a live file handle.
func (d *Descriptor) IsOpen() bool {
	return d.File != nil
}

// Clear resets the descriptor to its just-constructed state: closed, no
// type, ByteLimit at the "unknown" sentinel. Mirrors soundfile_clear().
func Clear(d *Descriptor) {
	*d = Descriptor{ByteLimit: int64(MaxBytes), HeaderSize: HeaderSizeUnset}
}

// ClearInfo resets the format fields but leaves File/Type untouched,
// mirroring soundfile_clearinfo() which is used when retrying a probe
// against the same open fd.
func ClearInfo(d *Descriptor) {
	d.SampleRate = 0
	d.NChannels = 0
	d.BytesPerSample = 0
	d.BigEndian = false
	d.HeaderSize = 0
	d.ByteLimit = int64(MaxBytes)
}

// Copy returns a shallow copy of d, mirroring soundfile_copy()'s memcpy.
func Copy(d *Descriptor) Descriptor {
	return *d
}

// NeedsByteSwap reports whether d's wire byte order differs from the
// host's, mirroring soundfile_needsbyteswap().
func (d *Descriptor) NeedsByteSwap(nativeBigEndian bool) bool {
	return d.BigEndian != nativeBigEndian
}

// String renders d's format fields on one line, mirroring
// soundfile_print()'s samplerate/nchannels/bytespersample/headersize/
// endianness/bytelimit/bytesperframe dump. Used in diagnostic logging.
func (d *Descriptor) String() string {
	endian := "l"
	if d.BigEndian {
		endian = "b"
	}
	return fmt.Sprintf("%d %d %d %d %s %d %d",
		d.SampleRate, d.NChannels, d.BytesPerSample, d.HeaderSize,
		endian, d.ByteLimit, d.BytesPerFrame())
}
