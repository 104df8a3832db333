package realtime

import (
	"log/slog"
	"os"
	"sync"

	"github.com/drgolem/go-soundfile/byteutil"
	"github.com/drgolem/go-soundfile/sfio"
	"github.com/drgolem/go-soundfile/soundfile"
)

// defaultBufSize is the ring's requested capacity before rounding up to
// a frame-aligned size; 32768 frames of stereo 32-bit audio, about
// two-thirds of a second at 48kHz, generous enough to absorb ordinary
// disk stalls.
const defaultBufSize = 1 << 18

// sigPeriodDefault is how many audio blocks pass between unconditional
// worker wake-ups, bounding how stale the worker's view of the ring can
// get even under light load.
const sigPeriodDefault = 4

// streamState is the object's externally visible lifecycle state.
type streamState int

const (
	stateIdle streamState = iota
	stateStartup
	stateStream
)

// streamRequest is what the worker goroutine has been asked to do.
type streamRequest int

const (
	requestNothing streamRequest = iota
	requestOpen
	requestBusy
	requestClose
	requestQuit
)

// Host is the per-tick binding the audio graph supplies.
type Host interface {
	// Schedule arranges for fn to run once on the host's main/control
	// thread at the next opportunity (used for the reader's EOF "done"
	// bang).
	Schedule(fn func())
}

// PathResolver resolves a bare filename against whatever directory
// convention the host uses, the realtime objects' analogue of the
// bulk package's collaborator of the same name.
type PathResolver interface {
	Resolve(filename string, forWrite bool) (*os.File, error)
}

// RawParams carries the four -raw arguments (header bytes, channel
// count, sample width, endianness tag) used when a stream is opened
// against a headerless file.
type RawParams struct {
	HeaderBytes    int
	Channels       int
	BytesPerSample int
	Endian         byte // 'b', 'l', or 'n'; zero value means "not raw"
}

// streamObject holds the fields shared by Reader and Writer: the
// request/state machine, the byte ring, and the open file's
// descriptor. One mutex and two condition variables guard everything
// named here, per the concurrency model's ordering guarantees — the
// sole exception is state's STARTUP->STREAM transition, made only by
// Start, never by the audio thread.
type streamObject struct {
	mu        sync.Mutex
	requestCV *sync.Cond
	answerCV  *sync.Cond

	state   streamState
	request streamRequest

	ring ringBuffer

	reg      *soundfile.Registry
	resolver PathResolver
	log      *slog.Logger

	sf       *soundfile.Descriptor
	filename string

	// prevSF/prevFilename/prevFramesWritten hold a file displaced by a
	// reopen-while-streaming OPEN request until the worker has a chance
	// to close (and, for writers, finish) it. resetForOpen moves sf here
	// rather than overwriting it directly, since sf/filename/framesWritten
	// are reset to the new stream's values on the calling thread, before
	// the worker goroutine ever sees the request.
	prevSF            *soundfile.Descriptor
	prevFilename      string
	prevFramesWritten uint64

	onsetFrames uint64
	forced      *soundfile.TypeEntry
	raw         RawParams

	sampleRate     int
	nChannels      int
	bytesPerSample int
	bigEndian      bool

	vecSize int

	eof       bool
	fileError bool

	framesWritten uint64
	nFrames       uint64 // requested frame count, for writers; soundfile.MaxFrames if open-ended

	sigPeriod    int
	sigCountdown int

	done chan struct{} // closed when the worker goroutine returns
}

func newStreamObject(reg *soundfile.Registry, resolver PathResolver, log *slog.Logger) *streamObject {
	if log == nil {
		log = slog.Default()
	}
	s := &streamObject{
		reg:          reg,
		resolver:     resolver,
		log:          log,
		sigPeriod:    sigPeriodDefault,
		sigCountdown: sigPeriodDefault,
		nFrames:      soundfile.MaxFrames,
		done:         make(chan struct{}),
	}
	s.requestCV = sync.NewCond(&s.mu)
	s.answerCV = sync.NewCond(&s.mu)
	return s
}

// bytesPerFrame returns the current frame width, defaulting to 1 so a
// not-yet-opened ring still sizes sanely.
func (s *streamObject) bytesPerFrame() int {
	bpf := s.nChannels * s.bytesPerSample
	if bpf <= 0 {
		return 1
	}
	return bpf
}

// resetForOpen prepares shared state for a new OPEN request. Caller
// holds the mutex.
func (s *streamObject) resetForOpen(filename string, onsetFrames uint64, forced *soundfile.TypeEntry, raw RawParams) {
	if s.sf != nil {
		s.prevSF = s.sf
		s.prevFilename = s.filename
		s.prevFramesWritten = s.framesWritten
		s.sf = nil
	}
	s.filename = filename
	s.onsetFrames = onsetFrames
	s.forced = forced
	s.raw = raw
	s.eof = false
	s.fileError = false
	s.framesWritten = 0
	// The ring itself is left untouched here: a displaced writer's
	// queued-but-undrained bytes must survive until finishPrevious has
	// a chance to flush them to prevSF, which runs later on the worker
	// goroutine. Whoever actually opens the new stream (the requestOpen
	// handler, after closing/finishing whatever was previous) is
	// responsible for resetting/resizing it via ring.init.
	s.state = stateStartup
	s.request = requestOpen
}

// openForRead implements the Reader's OPEN step:
// resolve the path and populate sf, either via sfio (container
// formats) or directly against the RAW handler (raw.Endian != 0).
// Caller must NOT hold the mutex (this does blocking I/O).
func (s *streamObject) openForRead() (*soundfile.Descriptor, error) {
	f, err := s.resolver.Resolve(s.filename, false)
	if err != nil {
		return nil, err
	}
	if s.raw.Endian != 0 {
		entry := s.reg.Raw()
		bigEndian := s.raw.Endian == 'b'
		if s.raw.Endian != 'b' && s.raw.Endian != 'l' {
			bigEndian = byteutil.NativeIsBigEndian()
		}
		sf := &soundfile.Descriptor{
			Type:           entry,
			NChannels:      s.raw.Channels,
			BytesPerSample: s.raw.BytesPerSample,
			HeaderSize:     int64(s.raw.HeaderBytes),
			BigEndian:      bigEndian,
		}
		if err := entry.Handler.Open(sf, f); err != nil {
			f.Close()
			return nil, err
		}
		if err := entry.Handler.ReadHeader(sf); err != nil {
			_ = entry.Handler.Close(sf)
			return nil, err
		}
		if err := entry.Handler.SeekToFrame(sf, s.onsetFrames); err != nil {
			_ = entry.Handler.Close(sf)
			return nil, err
		}
		return sf, nil
	}
	return sfio.OpenFile(s.reg, f, s.forced, s.onsetFrames)
}

func (s *streamObject) createForWrite() (*soundfile.Descriptor, error) {
	entry := s.forced
	if entry == nil {
		entry = s.reg.ByExtension(s.filename)
	}
	if entry == nil {
		entry = s.reg.First()
	}
	name := sfio.ExtendName(entry, s.filename)
	f, err := s.resolver.Resolve(name, true)
	if err != nil {
		return nil, err
	}
	s.filename = name
	bigEndian := entry.Handler.Endianness(boolToRequested(s.bigEndian))
	s.bigEndian = bigEndian
	return sfio.CreateFile(entry, f, s.sampleRate, s.nChannels, s.bytesPerSample, bigEndian, soundfile.MaxFrames)
}

// boolToRequested converts Writer.Open's bigEndian bool to the -1/0/1
// "requested endianness" convention Handler.Endianness expects (a
// realtime Open always has an opinion, so this never returns -1).
func boolToRequested(bigEndian bool) int {
	if bigEndian {
		return 1
	}
	return 0
}
