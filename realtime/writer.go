package realtime

import (
	"log/slog"

	"github.com/drgolem/go-soundfile/codec"
	"github.com/drgolem/go-soundfile/sfio"
	"github.com/drgolem/go-soundfile/soundfile"
)

// Writer records an audio callback's input vectors to disk. Process,
// called once per audio block, is the ring's producer (fills from
// head); the worker goroutine is the consumer, draining to disk from
// tail. Grounded line-for-line on writesf_child_main/writesf_perform/
// writesf_open/writesf_start/writesf_stop in d_soundfile.c:2263-2765.
type Writer struct {
	s *streamObject
}

// NewWriter creates a Writer and starts its worker goroutine. Call
// Destroy to stop the worker and release resources.
func NewWriter(reg *soundfile.Registry, resolver PathResolver, log *slog.Logger) *Writer {
	s := newStreamObject(reg, resolver, log)
	s.ring.init(defaultBufSize, 1)
	w := &Writer{s: s}
	go w.workerMain()
	return w
}

// Open requests that filename be created for recording at the given
// format. forced, if non-nil, picks the container type explicitly;
// otherwise it is inferred from filename's extension. If a file is
// already open (reopen-while-streaming), the worker finishes and
// closes it before the ring is resized for the new stream, so nothing
// already queued for it is lost.
func (w *Writer) Open(filename string, sampleRate, nChannels, bytesPerSample int, bigEndian bool, forced *soundfile.TypeEntry) {
	s := w.s
	s.mu.Lock()
	s.resetForOpen(filename, 0, forced, RawParams{})
	s.sampleRate = sampleRate
	s.nChannels = nChannels
	s.bytesPerSample = bytesPerSample
	s.bigEndian = bigEndian
	s.requestCV.Signal()
	s.mu.Unlock()
}

// Start begins accepting recorded audio once the worker has finished
// creating the file. Single-writer, as with Reader.Start.
func (w *Writer) Start() {
	s := w.s
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

// Stop ends recording and tells the worker to drain remaining buffered
// audio to disk, then close the file and fix up its header.
func (w *Writer) Stop() {
	s := w.s
	s.mu.Lock()
	s.state = stateIdle
	s.request = requestClose
	s.requestCV.Signal()
	s.mu.Unlock()
}

// Destroy tells the worker to quit (draining and closing first, as
// with Stop) and waits for it to exit.
func (w *Writer) Destroy() {
	s := w.s
	s.mu.Lock()
	s.request = requestQuit
	s.requestCV.Signal()
	s.mu.Unlock()
	<-s.done
}

// Process is the audio-callback entry point: it encodes vecsize frames
// from in (one slice per channel) into the ring, blocking when the
// ring has no room (the worker has fallen behind on disk writes) or
// while the worker is still creating the file after Open. No-op when
// not streaming (no outputs to zero, per §5).
func (w *Writer) Process(in [][]float64, vecsize int) {
	s := w.s
	s.mu.Lock()
	defer s.mu.Unlock()

	// The worker's OPEN handler re-initializes the ring once the file
	// exists, so nothing may be queued before then.
	for s.state == stateStream && s.request == requestOpen {
		s.answerCV.Wait()
	}
	if s.state != stateStream {
		return
	}

	wantBytes := vecsize * s.bytesPerFrame()
	for s.ring.room() <= wantBytes {
		s.requestCV.Signal()
		s.answerCV.Wait()
		wantBytes = vecsize * s.bytesPerFrame()
	}

	bytesPerFrame := s.bytesPerFrame()
	buf := make([]byte, vecsize*bytesPerFrame)
	codec.EncodeFrames(buf, in, 0, vecsize, s.nChannels, s.bytesPerSample, s.bigEndian, 1)
	copied := 0
	for copied < len(buf) {
		n := s.ring.writeContiguous(buf[copied:])
		if n == 0 {
			break
		}
		copied += n
	}
	s.framesWritten += uint64(vecsize)

	s.sigCountdown--
	if s.sigCountdown <= 0 {
		s.requestCV.Signal()
		s.sigCountdown = s.sigPeriod
	}
}

// workerMain is the writer's worker goroutine: it creates the file on
// request and, while recording, drains the ring to disk whenever a
// full wrap-window or writeSize's worth of bytes has queued, closing
// and fixing up the header on CLOSE/QUIT. Grounded on
// writesf_child_main's request loop.
func (w *Writer) workerMain() {
	s := w.s
	defer close(s.done)

	for {
		s.mu.Lock()
		switch s.request {
		case requestNothing:
			s.requestCV.Wait()
			s.mu.Unlock()
		case requestQuit:
			// finishPrevious must run first: if QUIT lands while a
			// reopen is still pending, s.sf is nil (resetForOpen
			// already displaced it) and the ring's queued bytes
			// belong to prevSF, not to whatever drainAndClose would
			// otherwise try to write them to.
			w.finishPrevious()
			w.drainAndClose()
			s.mu.Unlock()
			return
		case requestOpen:
			w.finishPrevious()
			s.mu.Unlock()
			sf, err := s.createForWrite()
			s.mu.Lock()
			if err != nil {
				s.fileError = true
				s.eof = true
				s.request = requestNothing
				s.answerCV.Broadcast()
				s.mu.Unlock()
				continue
			}
			s.sf = sf
			s.ring.init(defaultBufSize, s.bytesPerFrame())
			s.request = requestBusy
			s.answerCV.Broadcast()
			s.mu.Unlock()
		case requestClose:
			// A pending reopen's prevSF can still be sitting unfinished
			// here if Stop landed before the worker ever serviced the
			// OPEN request that displaced it.
			w.finishPrevious()
			w.drainAndClose()
			s.request = requestNothing
			s.mu.Unlock()
		case requestBusy:
			w.drainOnce()
			s.mu.Unlock()
		default:
			s.mu.Unlock()
		}
	}
}

// drainOnce writes out whatever has queued, if a full wrap window is
// available (head < tail, the queued bytes running past the buffer's
// physical end) or at least writeSize bytes have queued; otherwise it
// waits. Caller holds the mutex on entry and on return.
func (w *Writer) drainOnce() {
	s := w.s
	avail := s.ring.available()
	wrapWindow := s.ring.head < s.ring.tail
	if !wrapWindow && avail < writeSize {
		s.requestCV.Wait()
		return
	}
	window := avail
	if window > readSize {
		window = readSize
	}
	if window <= 0 {
		s.requestCV.Wait()
		return
	}
	w.writeWindow(s.sf, window)
}

// drainAndClose writes every remaining queued byte (continuing until
// head == tail), then closes the file and fixes up its header. Caller
// holds the mutex on entry and on return.
func (w *Writer) drainAndClose() {
	s := w.s
	for !s.ring.isEmpty() {
		window := s.ring.available()
		if window > readSize {
			window = readSize
		}
		w.writeWindow(s.sf, window)
	}
	if s.sf != nil {
		sfio.FinishWrite(s.log, s.filename, s.sf, s.nFrames, s.framesWritten)
		_ = s.sf.Type.Handler.Close(s.sf)
		s.sf = nil
	}
	s.answerCV.Broadcast()
}

// finishPrevious drains whatever the ring still holds for a file
// displaced by a reopen-while-streaming OPEN request (see
// streamObject.prevSF) to that file, then finishes and closes it,
// fixing up its header with however many frames actually reached disk.
// Safe to call when there is none. Must run before the ring is
// resized for the new stream, since resetForOpen leaves prevSF's
// queued bytes sitting in the ring rather than copying them out.
// Caller holds the mutex.
func (w *Writer) finishPrevious() {
	s := w.s
	if s.prevSF == nil {
		return
	}
	for !s.ring.isEmpty() {
		window := s.ring.available()
		if window > readSize {
			window = readSize
		}
		w.writeWindow(s.prevSF, window)
	}
	sfio.FinishWrite(s.log, s.prevFilename, s.prevSF, s.nFrames, s.prevFramesWritten)
	_ = s.prevSF.Type.Handler.Close(s.prevSF)
	s.prevSF = nil
}

// writeWindow pulls exactly window bytes from the ring's tail and
// writes them to sf, releasing the mutex for the blocking write.
// Caller holds the mutex on entry and on return.
func (w *Writer) writeWindow(sf *soundfile.Descriptor, window int) {
	s := w.s
	buf := make([]byte, window)
	got := 0
	for got < window {
		n := s.ring.readContiguous(buf[got:])
		if n == 0 {
			break
		}
		got += n
	}
	s.mu.Unlock()
	n, err := sf.Type.Handler.WriteSamples(sf, buf[:got])
	s.mu.Lock()
	if err != nil || n < got {
		s.fileError = true
	}
	s.answerCV.Broadcast()
}
