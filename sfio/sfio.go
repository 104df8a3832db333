// Package sfio implements the synchronous, non-realtime open/create
// algorithm shared by the bulk reader/writer and by anything that just
// wants to slurp a whole soundfile: probe-or-forced-type detection,
// header parsing, seek-past-skip-frames on open; extension completion,
// truncate-create, and header-size bookkeeping on create. Grounded on
// open_soundfile_via_fd/open_soundfile_via_path/create_soundfile/
// soundfile_finishwrite in d_soundfile.c.
package sfio

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/drgolem/go-soundfile/sferr"
	"github.com/drgolem/go-soundfile/soundfile"
)

// Open probes filename's header (or trusts a caller-forced type when
// forced is non-nil) against reg, reads the header, and seeks past
// skipframes. On success it returns an open Descriptor positioned at
// the first frame to be read.
func Open(reg *soundfile.Registry, filename string, forced *soundfile.TypeEntry, skipframes uint64) (*soundfile.Descriptor, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	return OpenFile(reg, f, forced, skipframes)
}

// OpenFile is Open's core, operating on an already-opened file handle —
// used directly by callers (like the bulk package) that resolve
// filenames via their own PathResolver rather than os.Open.
func OpenFile(reg *soundfile.Registry, f *os.File, forced *soundfile.TypeEntry, skipframes uint64) (*soundfile.Descriptor, error) {
	sf := &soundfile.Descriptor{ByteLimit: int64(soundfile.MaxBytes), HeaderSize: soundfile.HeaderSizeUnset}

	entry := forced
	if entry == nil {
		buf := make([]byte, reg.MinHeaderSize())
		n, _ := io.ReadFull(f, buf)
		entry = reg.Probe(buf[:n])
		if entry == nil {
			f.Close()
			return nil, sferr.ErrBadHeader
		}
	}
	sf.Type = entry

	if _, err := f.Seek(0, io.SeekStart); err != nil {
		f.Close()
		return nil, err
	}
	if err := entry.Handler.Open(sf, f); err != nil {
		f.Close()
		return nil, err
	}
	if err := entry.Handler.ReadHeader(sf); err != nil {
		_ = entry.Handler.Close(sf)
		if forced != nil {
			return nil, fmt.Errorf("%w (%s)", err, forced.Name())
		}
		return nil, err
	}

	if err := entry.Handler.SeekToFrame(sf, skipframes); err != nil {
		_ = entry.Handler.Close(sf)
		return nil, err
	}
	sf.ByteLimit -= int64(skipframes) * int64(sf.BytesPerFrame())
	if sf.ByteLimit < 0 {
		sf.ByteLimit = 0
	}
	return sf, nil
}

// Create truncates (or creates) filename, appending the handler's
// preferred extension first if the name doesn't already carry one, and
// writes a header for nframes frames (soundfile.MaxFrames meaning
// "unknown, fix up at FinishWrite/UpdateHeader time").
func Create(entry *soundfile.TypeEntry, filename string, sampleRate, nchannels, bytesPerSample int, bigEndian bool, nframes uint64) (*soundfile.Descriptor, error) {
	h := entry.Handler
	name := filename
	if !h.HasExtension(name) {
		name = h.AddExtension(name)
	}

	f, err := os.OpenFile(name, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0666)
	if err != nil {
		return nil, err
	}
	sf, err := CreateFile(entry, f, sampleRate, nchannels, bytesPerSample, bigEndian, nframes)
	if err != nil {
		f.Close()
		return nil, err
	}
	return sf, nil
}

// ExtendName appends entry's preferred extension to filename if it
// doesn't already carry a recognized one — the part of create_soundfile
// that runs before the file is actually opened, split out so a
// PathResolver can apply it ahead of opening.
func ExtendName(entry *soundfile.TypeEntry, filename string) string {
	if entry.Handler.HasExtension(filename) {
		return filename
	}
	return entry.Handler.AddExtension(filename)
}

// CreateFile is Create's core, operating on an already-opened,
// truncated, write-only file handle.
func CreateFile(entry *soundfile.TypeEntry, f *os.File, sampleRate, nchannels, bytesPerSample int, bigEndian bool, nframes uint64) (*soundfile.Descriptor, error) {
	h := entry.Handler
	sf := &soundfile.Descriptor{
		Type:           entry,
		SampleRate:     sampleRate,
		NChannels:      nchannels,
		BytesPerSample: bytesPerSample,
		BigEndian:      bigEndian,
	}
	if err := h.Open(sf, f); err != nil {
		f.Close()
		return nil, err
	}

	headerSize, err := h.WriteHeader(sf, nframes)
	if err != nil {
		_ = h.Close(sf)
		return nil, err
	}
	sf.HeaderSize = headerSize
	return sf, nil
}

// FinishWrite rewrites the header's size fields to the actual frame
// count when fewer frames were written than requested, logging a
// short-write warning unless nframes == soundfile.MaxFrames (the caller
// never promised a count). When framesWritten >= nframes the header is
// left as written.
func FinishWrite(log *slog.Logger, filename string, sf *soundfile.Descriptor, nframes, framesWritten uint64) {
	if framesWritten >= nframes {
		return
	}
	if nframes < soundfile.MaxFrames {
		if log == nil {
			log = slog.Default()
		}
		log.Warn("soundfile write incomplete", "file", filename, "written", framesWritten, "requested", nframes)
	}
	if err := sf.Type.Handler.UpdateHeader(sf, framesWritten); err != nil {
		sferr.Report(log, "soundfiler_write", filename, err, "")
	}
}
