package soundfile

import (
	"io"
	"os"
)

// Handler is the per-format capability set spec §4.D requires: pure
// interface polymorphism over probe/open/close/header IO/sample IO/seek/
// extension/endianness, with optional meta hooks and a strerror-style
// mapping. Implement one Handler per on-disk container; never inherit
// from a shared base type (spec §9, Polymorphism).
type Handler interface {
	// Name returns the registered type name, e.g. "wave".
	Name() string

	// MinHeaderBytes is the minimum prefix Probe needs to decide.
	MinHeaderBytes() int

	// Probe examines a header prefix and reports whether this handler
	// owns it.
	Probe(prefix []byte) bool

	// Open acquires any per-file scratch state for sf.Data. The default
	// implementation just records the file handle.
	Open(sf *Descriptor, f *os.File) error

	// Close releases per-file scratch state and the file handle.
	Close(sf *Descriptor) error

	// ReadHeader expects sf.File positioned at file start; on success
	// it fills SampleRate/NChannels/BytesPerSample/BigEndian/
	// HeaderSize/ByteLimit and leaves sf.File at the first sample
	// (HeaderSize), even when it scanned past the sample data for
	// trailing metadata, as WAVE does for a trailing "id3 " chunk.
	// Callers that start elsewhere use SeekToFrame.
	ReadHeader(sf *Descriptor) error

	// WriteHeader emits a header for nframes frames (MaxFrames meaning
	// "unknown/streaming") and returns its length in bytes. A handler
	// that writes MaxFrames must either emit a container UpdateHeader
	// can fix up later, or one that is self-terminating.
	WriteHeader(sf *Descriptor, nframes uint64) (int64, error)

	// UpdateHeader rewrites size fields at known offsets once the
	// number of frames actually written is known. Handlers whose
	// containers are self-sizing may no-op.
	UpdateHeader(sf *Descriptor, framesWritten uint64) error

	// ReadSamples/WriteSamples transport the on-disk byte stream. The
	// default implementations do a blocking read/write on sf.File.
	ReadSamples(sf *Descriptor, buf []byte) (int, error)
	WriteSamples(sf *Descriptor, buf []byte) (int, error)

	// SeekToFrame positions sf.File at HeaderSize + frame*BytesPerFrame.
	SeekToFrame(sf *Descriptor, frame uint64) error

	// HasExtension/AddExtension implement filename extension matching
	// and appension for Create.
	HasExtension(filename string) bool
	AddExtension(filename string) string

	// Endianness resolves a requested byte order against the format's
	// native policy (e.g. AIFF always overrules to big-endian). A
	// negative/unspecified request is passed through as -1.
	Endianness(requested int) bool

	// ReadMeta/WriteMeta are optional; a handler with no metadata
	// support returns ErrNotSupported.
	ReadMeta(sf *Descriptor) (map[string]string, error)
	WriteMeta(sf *Descriptor, meta map[string]string) error

	// Strerror maps a handler-specific error code to a human string.
	// Handlers with no custom codes return "".
	Strerror(code int) string
}

// ErrNotSupported is returned by ReadMeta/WriteMeta on handlers with no
// metadata support.
var ErrNotSupported = errNotSupported{}

type errNotSupported struct{}

func (errNotSupported) Error() string { return "soundfile: operation not supported by this type" }

// defaultOpen/defaultClose/defaultSeekToFrame/defaultReadSamples/
// defaultWriteSamples are the
// shared implementations d_soundfile.c provides as
// soundfile_type_open/_close/_seektoframe/_readsamples/_writesamples;
// format handlers embed calls to these instead of duplicating them.

func defaultOpen(sf *Descriptor, f *os.File) error {
	sf.File = f
	return nil
}

func defaultClose(sf *Descriptor) error {
	if sf.File == nil {
		return nil
	}
	err := sf.File.Close()
	sf.File = nil
	return err
}

func defaultSeekToFrame(sf *Descriptor, frame uint64) error {
	offset := sf.HeaderSize + int64(frame)*int64(sf.BytesPerFrame())
	_, err := sf.File.Seek(offset, io.SeekStart)
	return err
}

func defaultReadSamples(sf *Descriptor, buf []byte) (int, error) {
	n, err := io.ReadFull(sf.File, buf)
	if err == io.ErrUnexpectedEOF {
		return n, nil
	}
	if err == io.EOF {
		return 0, nil
	}
	return n, err
}

func defaultWriteSamples(sf *Descriptor, buf []byte) (int, error) {
	return sf.File.Write(buf)
}
