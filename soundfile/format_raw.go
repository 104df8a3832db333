package soundfile

import (
	"io"
	"os"

	"github.com/drgolem/go-soundfile/sferr"
)

// rawHandler is the headerless passthrough type (spec §4.D, "RAW"):
// unlike the container handlers it never probes or parses a header —
// the caller (bulk.Read or the realtime Reader, driven by a -raw
// request) must have
// already filled in sf.HeaderSize/NChannels/BytesPerSample/BigEndian/
// SampleRate before ReadHeader runs. Grounded on d_soundfile.c's
// sf_rawtype, which is kept outside the probed type list for the same
// reason (Probe always fails; it is only ever selected by explicit
// request).
type rawHandler struct{}

// NewRawHandler returns the built-in RAW singleton handler.
func NewRawHandler() Handler { return &rawHandler{} }

func (*rawHandler) Name() string        { return "raw" }
func (*rawHandler) MinHeaderBytes() int { return 0 }
func (*rawHandler) Open(sf *Descriptor, f *os.File) error { return defaultOpen(sf, f) }
func (*rawHandler) Close(sf *Descriptor) error            { return defaultClose(sf) }
func (*rawHandler) SeekToFrame(sf *Descriptor, frame uint64) error {
	return defaultSeekToFrame(sf, frame)
}
func (*rawHandler) ReadSamples(sf *Descriptor, buf []byte) (int, error)  { return defaultReadSamples(sf, buf) }
func (*rawHandler) WriteSamples(sf *Descriptor, buf []byte) (int, error) { return defaultWriteSamples(sf, buf) }
func (*rawHandler) Strerror(int) string                                 { return "" }
func (*rawHandler) ReadMeta(*Descriptor) (map[string]string, error)     { return nil, ErrNotSupported }
func (*rawHandler) WriteMeta(*Descriptor, map[string]string) error      { return ErrNotSupported }

// Probe never matches; RAW is only ever selected by explicit -raw
// request, never by auto-detection (spec §4.C, first-probe-wins skips
// the RAW singleton entirely).
func (*rawHandler) Probe([]byte) bool { return false }

func (*rawHandler) HasExtension(string) bool     { return false }
func (*rawHandler) AddExtension(f string) string { return f }
func (*rawHandler) Endianness(requested int) bool {
	return requested == 1
}

// ReadHeader trusts the caller-supplied fields and only derives
// ByteLimit from the remaining file size, matching open_soundfile's raw
// branch (which skips header parsing entirely and seeks past
// headerbytes).
func (*rawHandler) ReadHeader(sf *Descriptor) error {
	if !ValidBytesPerSample(sf.BytesPerSample) || sf.NChannels <= 0 {
		return sferr.ErrSampleFormat
	}
	if sf.HeaderSize < 0 {
		sf.HeaderSize = 0
	}
	if _, err := sf.File.Seek(sf.HeaderSize, io.SeekStart); err != nil {
		return sferr.ErrBadHeader
	}
	fi, err := sf.File.Stat()
	if err != nil {
		return sferr.ErrBadHeader
	}
	remaining := fi.Size() - sf.HeaderSize
	if remaining < 0 {
		remaining = 0
	}
	sf.ByteLimit = remaining
	return nil
}

// WriteHeader emits nothing; RAW files have no header to write.
func (*rawHandler) WriteHeader(sf *Descriptor, nframes uint64) (int64, error) {
	if !ValidBytesPerSample(sf.BytesPerSample) {
		return 0, sferr.ErrSampleFormat
	}
	sf.HeaderSize = 0
	return 0, nil
}

// UpdateHeader is a no-op: RAW has no size field to fix up.
func (*rawHandler) UpdateHeader(*Descriptor, uint64) error { return nil }
