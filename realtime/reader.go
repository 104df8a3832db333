package realtime

import (
	"log/slog"

	"github.com/drgolem/go-soundfile/codec"
	"github.com/drgolem/go-soundfile/soundfile"
)

// Reader streams a soundfile from disk into an audio callback's output
// vectors. The worker goroutine is the ring's producer (fills from
// head); Process, called once per audio block, is the consumer (drains
// from tail). Grounded line-for-line on readsf_child_main/
// readsf_perform/readsf_open/readsf_start/readsf_stop in
// d_soundfile.c:1660-1955.
type Reader struct {
	s      *streamObject
	host   Host
	onDone func()
}

// NewReader creates a Reader and starts its worker goroutine. Call
// Destroy to stop the worker and release resources.
func NewReader(reg *soundfile.Registry, resolver PathResolver, host Host, log *slog.Logger) *Reader {
	s := newStreamObject(reg, resolver, log)
	s.ring.init(defaultBufSize, 1)
	r := &Reader{s: s, host: host}
	go r.workerMain()
	return r
}

// OnDone registers fn to run, via the host's Schedule, when the stream
// reaches end of file — the completion bang spec §6 describes.
func (r *Reader) OnDone(fn func()) {
	r.onDone = fn
}

// Open requests that filename be opened for streaming, starting
// sample-by-sample delivery at onsetFrames. forced, if non-nil,
// overrides format probing; a non-zero raw.Endian selects the raw
// passthrough path instead. The stream does not begin producing audio
// until Start is called.
func (r *Reader) Open(filename string, onsetFrames uint64, forced *soundfile.TypeEntry, raw RawParams) {
	s := r.s
	s.mu.Lock()
	s.resetForOpen(filename, onsetFrames, forced, raw)
	s.requestCV.Signal()
	s.mu.Unlock()
}

// Start transitions the object into streaming once the worker has
// finished opening the file. Single-writer: only the control thread
// calls Start, never the audio thread, per the ordering guarantees.
func (r *Reader) Start() {
	s := r.s
	s.mu.Lock()
	if s.state == stateStartup || s.state == stateIdle {
		s.state = stateStream
		if s.request == requestNothing {
			s.request = requestBusy
		}
		s.requestCV.Signal()
	}
	s.mu.Unlock()
}

// Stop halts streaming and tells the worker to close the file.
func (r *Reader) Stop() {
	s := r.s
	s.mu.Lock()
	s.state = stateIdle
	s.request = requestClose
	s.requestCV.Signal()
	s.mu.Unlock()
}

// Destroy tells the worker to quit and waits for it to exit.
func (r *Reader) Destroy() {
	s := r.s
	s.mu.Lock()
	s.request = requestQuit
	s.requestCV.Signal()
	s.mu.Unlock()
	<-s.done
}

// Process is the audio-callback entry point: it fills out (nChannels x
// vecsize, one slice per channel) with the next vecsize frames of
// decoded sample data, blocking only on the ring's condition variable
// when starved. Called once per audio block by the host.
func (r *Reader) Process(out [][]float64, vecsize int) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != stateStream {
		zeroFill(out, 0, vecsize)
		return
	}

	wantBytes := vecsize * s.bytesPerFrame()
	for !s.eof && s.ring.available() < wantBytes {
		s.requestCV.Signal()
		s.answerCV.Wait()
		wantBytes = vecsize * s.bytesPerFrame()
	}

	if s.eof && s.ring.available() < wantBytes {
		availFrames := s.ring.available() / s.bytesPerFrame()
		if availFrames > 0 {
			r.decodeFrom(out, 0, availFrames)
		}
		zeroFill(out, availFrames, vecsize)
		s.state = stateIdle
		if r.host != nil && r.onDone != nil {
			r.host.Schedule(r.onDone)
		}
		s.requestCV.Signal()
		return
	}

	r.decodeFrom(out, 0, vecsize)
	s.sigCountdown--
	if s.sigCountdown <= 0 {
		s.requestCV.Signal()
		s.sigCountdown = s.sigPeriod
	}
}

// decodeFrom pulls nframes frames out of the ring starting at tail and
// decodes them into out[*][offset:offset+nframes]. Caller holds the
// mutex.
func (r *Reader) decodeFrom(out [][]float64, offset, nframes int) {
	s := r.s
	bytesPerFrame := s.bytesPerFrame()
	need := nframes * bytesPerFrame
	tmp := make([]byte, need)
	got := 0
	for got < need {
		n := s.ring.readContiguous(tmp[got:])
		if n == 0 {
			break
		}
		got += n
	}
	codec.DecodeFrames(out, offset, tmp[:got], got/bytesPerFrame, s.nChannels, s.bytesPerSample, s.bigEndian)
}

func zeroFill(out [][]float64, from, to int) {
	for ch := range out {
		for f := from; f < to && f < len(out[ch]); f++ {
			out[ch][f] = 0
		}
	}
}

// workerMain is the reader's worker goroutine: it opens files on
// request and, while streaming, keeps the ring filled from disk ahead
// of the audio callback's consumption. Grounded on readsf_child_main's
// request loop.
func (r *Reader) workerMain() {
	s := r.s
	defer close(s.done)

	for {
		s.mu.Lock()
		switch s.request {
		case requestNothing:
			s.requestCV.Wait()
			s.mu.Unlock()
			continue
		case requestQuit:
			r.closeCurrent()
			r.closePrevious()
			s.mu.Unlock()
			return
		case requestOpen:
			r.closePrevious()
			s.mu.Unlock()
			sf, err := s.openForRead()
			s.mu.Lock()
			if err != nil {
				s.fileError = true
				s.eof = true
				s.request = requestNothing
				s.mu.Unlock()
				continue
			}
			s.sf = sf
			s.nChannels = sf.NChannels
			s.bytesPerSample = sf.BytesPerSample
			s.bigEndian = sf.BigEndian
			s.ring.init(defaultBufSize, s.bytesPerFrame())
			s.request = requestBusy
			s.mu.Unlock()
		case requestClose:
			// A pending reopen's prevSF can still be open here if Stop
			// landed before the worker ever serviced the OPEN request
			// that displaced it.
			r.closePrevious()
			r.closeCurrent()
			s.request = requestNothing
			s.answerCV.Broadcast()
			s.mu.Unlock()
		case requestBusy:
			r.fillOnce()
			s.mu.Unlock()
		default:
			s.mu.Unlock()
		}
	}
}

// closeCurrent closes any file currently open on the stream, discarding
// whatever remains buffered in the ring. Safe to call when nothing is
// open. Caller holds the mutex.
func (r *Reader) closeCurrent() {
	s := r.s
	if s.sf != nil {
		_ = s.sf.Type.Handler.Close(s.sf)
		s.sf = nil
	}
}

// closePrevious closes a file displaced by a reopen-while-streaming OPEN
// request (see streamObject.prevSF). Safe to call when there is none.
// Caller holds the mutex.
func (r *Reader) closePrevious() {
	s := r.s
	if s.prevSF != nil {
		_ = s.prevSF.Type.Handler.Close(s.prevSF)
		s.prevSF = nil
	}
}

// fillOnce runs one iteration of the fill loop: compute how much can be
// read without overrunning tail (the one-slot gap) or the physical
// buffer wrap point, release the mutex, do the blocking read, and
// reacquire to record the result. Caller holds the mutex on entry and
// on return.
func (r *Reader) fillOnce() {
	s := r.s
	if s.eof || s.fileError {
		s.answerCV.Broadcast()
		s.requestCV.Wait()
		return
	}

	window := s.fillWindow()
	if window <= 0 {
		s.requestCV.Wait()
		return
	}

	sf := s.sf
	s.mu.Unlock()
	buf := make([]byte, window)
	n, err := sf.Type.Handler.ReadSamples(sf, buf)
	s.mu.Lock()

	if n > 0 {
		copied := 0
		for copied < n {
			m := s.ring.writeContiguous(buf[copied:n])
			if m == 0 {
				break
			}
			copied += m
		}
	}
	if n < window {
		s.eof = true
	}
	if err != nil {
		s.fileError = true
		s.eof = true
	}
	sf.ByteLimit -= int64(n)
	if sf.ByteLimit <= 0 {
		s.eof = true
	}
	s.answerCV.Broadcast()
}

// fillWindow computes how many bytes the worker may read into the ring
// right now without writing into the one-byte gap reserved before
// tail, capped at readSize and at the physical buffer's wrap point.
// Caller holds the mutex.
func (s *streamObject) fillWindow() int {
	room := s.ring.room()
	if room <= 0 {
		return 0
	}
	window := room
	if window > readSize {
		window = readSize
	}
	toWrap := s.ring.fifoSize - s.ring.head
	if window > toWrap {
		window = toWrap
	}
	if s.sf != nil && s.sf.ByteLimit >= 0 && int64(window) > s.sf.ByteLimit {
		window = int(s.sf.ByteLimit)
	}
	return window
}
