// Package bulk implements the non-realtime bulk reader/writer: a whole
// soundfile slurped into or spilled out of a set of in-memory sample
// tables in one synchronous call, the way the teacher's flac package
// expects a fully-buffered []int32 rather than streaming chunks.
// Grounded on soundfiler_read/soundfiler_readascii/soundfiler_write/
// soundfiler_dowrite in d_soundfile.c:1082-1533.
package bulk

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/drgolem/go-soundfile/byteutil"
	"github.com/drgolem/go-soundfile/cmdline"
	"github.com/drgolem/go-soundfile/codec"
	"github.com/drgolem/go-soundfile/sferr"
	"github.com/drgolem/go-soundfile/sfio"
	"github.com/drgolem/go-soundfile/soundfile"
)

// Table is the array/table-store collaborator bulk read/write operates
// on — the Go analogue of Pd's t_garray, kept minimal on purpose.
type Table interface {
	Resize(frames int)
	Frames() int
	Set(frame int, v float64)
	Get(frame int) float64
}

// PathResolver resolves a bare filename against whatever directory
// convention the host uses (a patch's own directory, a search path,
// etc.), the Go analogue of open_via_path/canvas_open.
type PathResolver interface {
	Resolve(filename string, forWrite bool) (*os.File, error)
}

// sampleBufFrames mirrors SAMPBUFSIZE's role: the read/write loop moves
// this many frames per disk transfer rather than the whole file at
// once, bounding peak memory for very long soundfiles.
const sampleBufFrames = 1024

// ReadResult reports what Read actually did, for the caller to relay to
// its own "bang"/outlet-equivalent: the frame count plus the
// description list (samplerate, headersize, nchannels, bytespersample,
// endianness-tag) soundfiler_read emits on its second outlet.
type ReadResult struct {
	FramesRead     int
	SampleRate     int
	NChannels      int
	HeaderSize     int64
	BytesPerSample int
	Endianness     byte // 'b' or 'l'; 0 for ASCII reads, which carry no format
	Meta           map[string]string
}

// Read implements the "read" operator: parse argv, open filename
// through resolver (with -ascii it is parsed as plain text rather than
// as a soundfile), and fill tables with its sample data. Mirrors
// soundfiler_read's body.
func Read(reg *soundfile.Registry, resolver PathResolver, log *slog.Logger, argv []string, tableLookup func(name string) (Table, bool)) (*ReadResult, error) {
	ra, err := cmdline.ParseRead(reg, argv)
	if err != nil {
		return nil, err
	}

	tables := make([]Table, len(ra.Tables))
	for i, name := range ra.Tables {
		t, ok := tableLookup(name)
		if !ok {
			return nil, fmt.Errorf("bulk: %s: no such table", name)
		}
		tables[i] = t
	}

	if ra.Ascii {
		return readASCII(resolver, ra.Filename, tables, ra.Resize)
	}

	var forced *soundfile.TypeEntry
	var descriptor *soundfile.Descriptor
	if ra.Raw {
		forced = reg.Raw()
	} else {
		forced = ra.ForcedType
	}

	f, err := resolver.Resolve(ra.Filename, false)
	if err != nil {
		sferr.Report(log, "soundfiler_read", ra.Filename, err, "")
		return nil, err
	}

	if ra.Raw {
		descriptor = &soundfile.Descriptor{
			Type:           forced,
			NChannels:      ra.RawChannels,
			BytesPerSample: ra.RawBytesPerSample,
			HeaderSize:     int64(ra.RawHeaderBytes),
		}
		switch ra.RawEndian {
		case 'b':
			descriptor.BigEndian = true
		case 'l':
			descriptor.BigEndian = false
		default:
			descriptor.BigEndian = byteutil.NativeIsBigEndian()
		}
		if err := forced.Handler.Open(descriptor, f); err != nil {
			f.Close()
			return nil, err
		}
		if err := forced.Handler.ReadHeader(descriptor); err != nil {
			_ = forced.Handler.Close(descriptor)
			return nil, err
		}
		if err := forced.Handler.SeekToFrame(descriptor, ra.SkipFrames); err != nil {
			_ = forced.Handler.Close(descriptor)
			return nil, err
		}
		descriptor.ByteLimit -= int64(ra.SkipFrames) * int64(descriptor.BytesPerFrame())
		if descriptor.ByteLimit < 0 {
			descriptor.ByteLimit = 0
		}
	} else {
		descriptor, err = sfio.OpenFile(reg, f, forced, ra.SkipFrames)
		if err != nil {
			sferr.Report(log, "soundfiler_read", ra.Filename, err, forcedName(forced))
			return nil, err
		}
	}
	defer descriptor.Type.Handler.Close(descriptor)

	logger := log
	if logger == nil {
		logger = slog.Default()
	}
	logger.Debug("soundfiler_read: opened file",
		"sf", descriptor.String(),
		"swap", descriptor.NeedsByteSwap(byteutil.NativeIsBigEndian()))

	var meta map[string]string
	if ra.Meta {
		meta, err = descriptor.Type.Handler.ReadMeta(descriptor)
		if err != nil && !errors.Is(err, soundfile.ErrNotSupported) {
			sferr.Report(log, "soundfiler_read", ra.Filename, err, "")
		}
	}

	framesInFile := descriptor.ByteLimit / int64(descriptor.BytesPerFrame())
	finalSize := framesInFile
	if ra.Resize {
		if framesInFile > int64(ra.MaxSize) {
			finalSize = int64(ra.MaxSize)
		}
		for _, t := range tables {
			t.Resize(int(finalSize))
		}
	} else if len(tables) > 0 {
		vecsize := int64(tables[0].Frames())
		if vecsize < finalSize {
			finalSize = vecsize
		}
	}

	framesRead, err := readSamplesInto(descriptor, tables, int(finalSize))
	if err != nil {
		return nil, err
	}
	for _, t := range tables {
		for j := framesRead; j < t.Frames(); j++ {
			t.Set(j, 0)
		}
	}

	endianTag := byte('l')
	if descriptor.BigEndian {
		endianTag = 'b'
	}
	return &ReadResult{
		FramesRead:     framesRead,
		SampleRate:     descriptor.SampleRate,
		NChannels:      descriptor.NChannels,
		HeaderSize:     descriptor.HeaderSize,
		BytesPerSample: descriptor.BytesPerSample,
		Endianness:     endianTag,
		Meta:           meta,
	}, nil
}

func forcedName(entry *soundfile.TypeEntry) string {
	if entry == nil {
		return ""
	}
	return entry.Name()
}

func readSamplesInto(sf *soundfile.Descriptor, tables []Table, finalSize int) (int, error) {
	if finalSize <= 0 || len(tables) == 0 {
		return finalSize, nil
	}
	bytesPerFrame := sf.BytesPerFrame()
	bufFrames := sampleBufFrames
	buf := make([]byte, bufFrames*bytesPerFrame)

	floatBuf := make([][]float64, len(tables))
	framesRead := 0
	for framesRead < finalSize {
		thisRead := finalSize - framesRead
		if thisRead > bufFrames {
			thisRead = bufFrames
		}
		n, err := sf.Type.Handler.ReadSamples(sf, buf[:thisRead*bytesPerFrame])
		if err != nil {
			return framesRead, err
		}
		nframes := n / bytesPerFrame
		if nframes <= 0 {
			break
		}
		for i := range floatBuf {
			if floatBuf[i] == nil {
				floatBuf[i] = make([]float64, nframes)
			} else if len(floatBuf[i]) < nframes {
				floatBuf[i] = make([]float64, nframes)
			}
		}
		if err := codec.DecodeFrames(floatBuf, 0, buf[:n], nframes, sf.NChannels, sf.BytesPerSample, sf.BigEndian); err != nil {
			return framesRead, err
		}
		for ch, t := range tables {
			if ch >= len(floatBuf) {
				break
			}
			for f := 0; f < nframes; f++ {
				t.Set(framesRead+f, floatBuf[ch][f])
			}
		}
		framesRead += nframes
	}
	return framesRead, nil
}

// readASCII implements soundfiler_readascii: a whitespace-separated
// text file of nframes*narray numbers read in row-major (frame, then
// channel) order.
func readASCII(resolver PathResolver, filename string, tables []Table, resize bool) (*ReadResult, error) {
	narray := len(tables)
	if narray == 0 {
		return nil, errors.New("bulk: -ascii requires at least one table")
	}
	f, err := resolver.Resolve(filename, false)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var values []float64
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), 16*1024*1024)
	sc.Split(bufio.ScanWords)
	for sc.Scan() {
		v, err := strconv.ParseFloat(sc.Text(), 64)
		if err != nil {
			return nil, fmt.Errorf("bulk: -ascii: %w", err)
		}
		values = append(values, v)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}

	nframes := len(values) / narray
	if nframes < 1 {
		return nil, fmt.Errorf("bulk: %s: empty or very short file", filename)
	}
	if resize {
		for _, t := range tables {
			t.Resize(nframes)
		}
	} else if tables[0].Frames() < nframes {
		nframes = tables[0].Frames()
	}

	for j := 0; j < nframes; j++ {
		for i, t := range tables {
			t.Set(j, values[j*narray+i])
		}
	}
	for _, t := range tables {
		for j := nframes; j < t.Frames(); j++ {
			t.Set(j, 0)
		}
	}
	return &ReadResult{FramesRead: nframes}, nil
}

// WriteResult reports what Write actually did.
type WriteResult struct {
	FramesWritten int
	Filename      string
}

// Write implements the "write" operator: parse argv, find the biggest
// sample magnitude if -normalize was given, create the file, and spill
// the tables' sample data into it. Mirrors soundfiler_dowrite.
func Write(reg *soundfile.Registry, resolver PathResolver, log *slog.Logger, argv []string, tableLookup func(name string) (Table, bool)) (*WriteResult, error) {
	wa, err := cmdline.ParseWrite(reg, argv)
	if err != nil {
		return nil, err
	}
	if len(wa.Tables) < 1 || len(wa.Tables) > soundfile.MaxChannels {
		return nil, fmt.Errorf("bulk: write: need 1-%d tables", soundfile.MaxChannels)
	}

	tables := make([]Table, len(wa.Tables))
	for i, name := range wa.Tables {
		t, ok := tableLookup(name)
		if !ok {
			return nil, fmt.Errorf("bulk: %s: no such table", name)
		}
		tables[i] = t
		avail := t.Frames() - int(wa.OnsetFrames)
		if avail < 0 {
			avail = 0
		}
		if wa.NFrames > uint64(avail) {
			wa.NFrames = uint64(avail)
		}
	}
	if wa.NFrames == 0 {
		return nil, fmt.Errorf("bulk: write: no samples at onset %d", wa.OnsetFrames)
	}

	sampleRate := wa.SampleRate
	if sampleRate <= 0 {
		sampleRate = 44100
	}

	var peak float64
	for _, t := range tables {
		for j := wa.OnsetFrames; j < wa.OnsetFrames+wa.NFrames; j++ {
			v := t.Get(int(j))
			if v > peak {
				peak = v
			} else if -v > peak {
				peak = -v
			}
		}
	}
	normFactor := codec.NormFactor(wa.Normalize, peak)

	name := sfio.ExtendName(wa.Type, wa.Filename)
	f, err := resolver.Resolve(name, true)
	if err != nil {
		return nil, err
	}

	descriptor, err := sfio.CreateFile(wa.Type, f, sampleRate, len(tables), wa.BytesPerSample, wa.Endianness == 1, wa.NFrames)
	if err != nil {
		return nil, err
	}
	defer descriptor.Type.Handler.Close(descriptor)

	logger := log
	if logger == nil {
		logger = slog.Default()
	}
	logger.Debug("soundfiler_write: created file",
		"sf", descriptor.String(),
		"swap", descriptor.NeedsByteSwap(byteutil.NativeIsBigEndian()))

	written, err := writeSamplesFrom(descriptor, tables, int(wa.OnsetFrames), int(wa.NFrames), normFactor)
	if err != nil {
		sferr.Report(log, "soundfiler_write", name, err, "")
		return nil, err
	}
	sfio.FinishWrite(log, name, descriptor, wa.NFrames, uint64(written))

	if len(wa.Meta) > 0 {
		meta := map[string]string{}
		for _, kv := range wa.Meta {
			if len(kv) >= 2 {
				meta[strings.ToLower(kv[0])] = strings.Join(kv[1:], " ")
			}
		}
		if err := descriptor.Type.Handler.WriteMeta(descriptor, meta); err != nil && !errors.Is(err, soundfile.ErrNotSupported) {
			sferr.Report(log, "soundfiler_write", name, err, "")
		}
	}

	return &WriteResult{FramesWritten: written, Filename: name}, nil
}

func writeSamplesFrom(sf *soundfile.Descriptor, tables []Table, onset, nframes int, normFactor float64) (int, error) {
	bytesPerFrame := sf.BytesPerFrame()
	bufFrames := sampleBufFrames
	buf := make([]byte, bufFrames*bytesPerFrame)

	src := make([][]float64, len(tables))
	written := 0
	for written < nframes {
		thisWrite := nframes - written
		if thisWrite > bufFrames {
			thisWrite = bufFrames
		}
		for ch, t := range tables {
			if len(src[ch]) < thisWrite {
				src[ch] = make([]float64, thisWrite)
			}
			for f := 0; f < thisWrite; f++ {
				src[ch][f] = t.Get(onset + written + f)
			}
		}
		if err := codec.EncodeFrames(buf[:thisWrite*bytesPerFrame], src, 0, thisWrite, sf.NChannels, sf.BytesPerSample, sf.BigEndian, normFactor); err != nil {
			return written, err
		}
		n, err := sf.Type.Handler.WriteSamples(sf, buf[:thisWrite*bytesPerFrame])
		if err != nil {
			return written, err
		}
		if n != thisWrite*bytesPerFrame {
			return written, io.ErrShortWrite
		}
		written += thisWrite
	}
	return written, nil
}
