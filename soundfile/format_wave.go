package soundfile

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/bogem/id3v2/v2"
	"github.com/drgolem/go-soundfile/sferr"
)

// waveHandler implements the RIFF/WAVE container: little-endian by
// default, chunk-based (fmt , data, optional id3 ), grounded on
// dc8dd7ab_metakeule-wav__wav.go.go's wavfileHeader layout and
// husafan-audio's wav.go chunk walk, generalized to read arbitrary chunk
// order and an unknown-length "data" chunk for streaming writes.
type waveHandler struct{}

// NewWaveHandler returns the built-in WAVE format handler.
func NewWaveHandler() Handler { return &waveHandler{} }

func (*waveHandler) Name() string         { return "wave" }
func (*waveHandler) MinHeaderBytes() int  { return 12 }
func (*waveHandler) Open(sf *Descriptor, f *os.File) error  { return defaultOpen(sf, f) }
func (*waveHandler) Close(sf *Descriptor) error             { return defaultClose(sf) }
func (*waveHandler) SeekToFrame(sf *Descriptor, frame uint64) error {
	return defaultSeekToFrame(sf, frame)
}
func (*waveHandler) ReadSamples(sf *Descriptor, buf []byte) (int, error)  { return defaultReadSamples(sf, buf) }
func (*waveHandler) WriteSamples(sf *Descriptor, buf []byte) (int, error) { return defaultWriteSamples(sf, buf) }
func (*waveHandler) Strerror(int) string                                  { return "" }

func (*waveHandler) Probe(prefix []byte) bool {
	if len(prefix) < 12 {
		return false
	}
	return (string(prefix[0:4]) == "RIFF" || string(prefix[0:4]) == "RIFX") &&
		string(prefix[8:12]) == "WAVE"
}

func (*waveHandler) HasExtension(filename string) bool {
	f := normalizeExt(filename)
	return strings.HasSuffix(f, ".wav") || strings.HasSuffix(f, ".wave")
}

func (*waveHandler) AddExtension(filename string) string {
	return filename + ".wav"
}

func (*waveHandler) Endianness(requested int) bool {
	// WAVE's native policy is little-endian unless the caller asked for
	// RIFX (big), which we model as requested==1 meaning "force big".
	return requested == 1
}

type waveScratch struct {
	dataChunkOffset int64 // file offset of the "data" chunk's size field
	riffSizeOffset  int64 // file offset of the RIFF chunk's size field

	// id3ChunkOffset is the file offset of an "id3 " chunk's payload
	// (its first ID3v2 byte), whether it precedes or trails "data"; zero
	// means no id3 chunk was found. id3ChunkSize is its declared size.
	id3ChunkOffset int64
	id3ChunkSize   int64
}

func (*waveHandler) ReadHeader(sf *Descriptor) error {
	hdr := make([]byte, 12)
	if _, err := io.ReadFull(sf.File, hdr); err != nil {
		return sferr.ErrBadHeader
	}
	bigEndian := string(hdr[0:4]) == "RIFX"
	if !bigEndian && string(hdr[0:4]) != "RIFF" {
		return sferr.ErrBadHeader
	}
	if string(hdr[8:12]) != "WAVE" {
		return sferr.ErrBadHeader
	}
	bo := wavByteOrder(bigEndian)

	var (
		sawFmt, sawData bool
		channels        uint16
		sampleRate      uint32
		bitsPerSample   uint16
		audioFormat     uint16
	)
	sc := &waveScratch{riffSizeOffset: 4}
	pos := int64(12)
	for {
		var chunkHdr [8]byte
		n, err := io.ReadFull(sf.File, chunkHdr[:])
		if n < 8 {
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				break
			}
			return sferr.ErrBadHeader
		}
		chunkID := string(chunkHdr[0:4])
		chunkSize := bo.Uint32(chunkHdr[4:8])
		chunkDataPos := pos + 8

		switch chunkID {
		case "fmt ":
			body := make([]byte, chunkSize)
			if _, err := io.ReadFull(sf.File, body); err != nil {
				return sferr.ErrBadHeader
			}
			if len(body) < 16 {
				return sferr.ErrBadHeader
			}
			audioFormat = bo.Uint16(body[0:2])
			channels = bo.Uint16(body[2:4])
			sampleRate = bo.Uint32(body[4:8])
			bitsPerSample = bo.Uint16(body[14:16])
			sawFmt = true
			if chunkSize%2 == 1 {
				sf.File.Seek(1, io.SeekCurrent)
			}
		case "id3 ":
			sc.id3ChunkOffset = chunkDataPos
			sc.id3ChunkSize = int64(chunkSize)
			skip := int64(chunkSize)
			if chunkSize%2 == 1 {
				skip++
			}
			if _, err := sf.File.Seek(skip, io.SeekCurrent); err != nil {
				return sferr.ErrBadHeader
			}
		case "data":
			sc.dataChunkOffset = chunkDataPos - 4
			if !sawFmt {
				return sferr.ErrBadHeader
			}
			if audioFormat != 1 && audioFormat != 3 {
				return fmt.Errorf("wave: unsupported audio format tag %d: %w", audioFormat, sferr.ErrSampleFormat)
			}
			sf.SampleRate = int(sampleRate)
			sf.NChannels = int(channels)
			sf.BytesPerSample = int(bitsPerSample) / 8
			sf.BigEndian = bigEndian
			sf.HeaderSize = chunkDataPos
			sawData = true
			if chunkSize == 0 || chunkSize == 0xFFFFFFFF {
				// Unknown-length data chunk (still being streamed):
				// nothing past it can be trusted, so stop scanning.
				sf.ByteLimit = int64(MaxBytes)
				sf.Data = sc
				return nil
			}
			sf.ByteLimit = int64(chunkSize)
			skip := int64(chunkSize)
			if chunkSize%2 == 1 {
				skip++
			}
			if _, err := sf.File.Seek(skip, io.SeekCurrent); err != nil {
				// Truncated file: no trailing chunks to find either way.
				sf.Data = sc
				return nil
			}
		default:
			skip := int64(chunkSize)
			if chunkSize%2 == 1 {
				skip++
			}
			if _, err := sf.File.Seek(skip, io.SeekCurrent); err != nil {
				return sferr.ErrBadHeader
			}
		}
		pos = chunkDataPos + int64(chunkSize)
		if chunkSize%2 == 1 {
			pos++
		}
	}
	if !sawData {
		return sferr.ErrBadHeader
	}
	// Return to the first sample after scanning for trailing chunks.
	if _, err := sf.File.Seek(sf.HeaderSize, io.SeekStart); err != nil {
		return sferr.ErrBadHeader
	}
	sf.Data = sc
	return nil
}

func (*waveHandler) WriteHeader(sf *Descriptor, nframes uint64) (int64, error) {
	if !ValidBytesPerSample(sf.BytesPerSample) {
		return 0, sferr.ErrSampleFormat
	}
	bo := wavByteOrder(sf.BigEndian)
	bytesPerFrame := sf.BytesPerFrame()
	var dataSize uint32
	if nframes < uint64(MaxFrames) {
		dataSize = uint32(nframes) * uint32(bytesPerFrame)
	}
	riffTag, dataTag := "RIFF", "WAVE"
	if sf.BigEndian {
		riffTag = "RIFX"
	}

	buf := new(bytes.Buffer)
	buf.WriteString(riffTag)
	binary.Write(buf, bo, uint32(36+dataSize))
	buf.WriteString(dataTag)
	buf.WriteString("fmt ")
	binary.Write(buf, bo, uint32(16))
	binary.Write(buf, bo, uint16(1)) // PCM
	binary.Write(buf, bo, uint16(sf.NChannels))
	binary.Write(buf, bo, uint32(sf.SampleRate))
	byteRate := uint32(sf.SampleRate * bytesPerFrame)
	binary.Write(buf, bo, byteRate)
	binary.Write(buf, bo, uint16(bytesPerFrame))
	binary.Write(buf, bo, uint16(sf.BytesPerSample*8))
	buf.WriteString("data")

	sc := &waveScratch{riffSizeOffset: 4, dataChunkOffset: int64(buf.Len())}
	binary.Write(buf, bo, dataSize)

	if _, err := sf.File.Write(buf.Bytes()); err != nil {
		return 0, err
	}
	sf.Data = sc
	return int64(buf.Len()), nil
}

func (*waveHandler) UpdateHeader(sf *Descriptor, framesWritten uint64) error {
	sc, _ := sf.Data.(*waveScratch)
	if sc == nil {
		return nil
	}
	bo := wavByteOrder(sf.BigEndian)
	dataBytes := uint32(framesWritten) * uint32(sf.BytesPerFrame())

	riffSize := make([]byte, 4)
	bo.PutUint32(riffSize, 36+dataBytes)
	if _, err := sf.File.WriteAt(riffSize, sc.riffSizeOffset); err != nil {
		return err
	}
	dataSize := make([]byte, 4)
	bo.PutUint32(dataSize, dataBytes)
	_, err := sf.File.WriteAt(dataSize, sc.dataChunkOffset)
	return err
}

// ReadMeta locates the "id3 " chunk ReadHeader recorded (if any) and
// parses it as an ID3v2 tag, restoring the file's read position
// afterward so a subsequent ReadSamples still starts at HeaderSize.
func (*waveHandler) ReadMeta(sf *Descriptor) (map[string]string, error) {
	sc, _ := sf.Data.(*waveScratch)
	if sc == nil || sc.id3ChunkOffset == 0 {
		return nil, ErrNotSupported
	}

	cur, err := sf.File.Seek(0, io.SeekCurrent)
	if err != nil {
		return nil, err
	}
	defer sf.File.Seek(cur, io.SeekStart)

	if _, err := sf.File.Seek(sc.id3ChunkOffset, io.SeekStart); err != nil {
		return nil, err
	}
	tag, err := id3v2.ParseReader(io.LimitReader(sf.File, sc.id3ChunkSize), id3v2.Options{Parse: true})
	if err != nil {
		return nil, fmt.Errorf("wave: read id3 metadata: %w", err)
	}
	defer tag.Close()
	meta := map[string]string{}
	if v := tag.Title(); v != "" {
		meta["title"] = v
	}
	if v := tag.Artist(); v != "" {
		meta["artist"] = v
	}
	if v := tag.Album(); v != "" {
		meta["album"] = v
	}
	return meta, nil
}

// WriteMeta appends a properly chunked "id3 " RIFF chunk after whatever
// is currently at the end of the file (UpdateHeader/FinishWrite must
// already have run, so the data chunk's size is final) and fixes up the
// RIFF chunk's total size to include it.
func (*waveHandler) WriteMeta(sf *Descriptor, meta map[string]string) error {
	sc, _ := sf.Data.(*waveScratch)
	if sc == nil {
		return ErrNotSupported
	}

	tag := id3v2.NewEmptyTag()
	tag.SetVersion(3)
	if v, ok := meta["title"]; ok {
		tag.SetTitle(v)
	}
	if v, ok := meta["artist"]; ok {
		tag.SetArtist(v)
	}
	if v, ok := meta["album"]; ok {
		tag.SetAlbum(v)
	}

	var tagBuf bytes.Buffer
	if _, err := tag.WriteTo(&tagBuf); err != nil {
		return fmt.Errorf("wave: write id3 metadata: %w", err)
	}
	tagSize := tagBuf.Len()

	end, err := sf.File.Seek(0, io.SeekEnd)
	if err != nil {
		return err
	}

	bo := wavByteOrder(sf.BigEndian)
	var chunk bytes.Buffer
	chunk.WriteString("id3 ")
	binary.Write(&chunk, bo, uint32(tagSize))
	chunk.Write(tagBuf.Bytes())
	if tagSize%2 == 1 {
		chunk.WriteByte(0)
	}
	if _, err := sf.File.Write(chunk.Bytes()); err != nil {
		return err
	}

	riffSize := end + int64(chunk.Len()) - 8
	riffSizeBytes := make([]byte, 4)
	bo.PutUint32(riffSizeBytes, uint32(riffSize))
	if _, err := sf.File.WriteAt(riffSizeBytes, sc.riffSizeOffset); err != nil {
		return err
	}

	sc.id3ChunkOffset = end + 8
	sc.id3ChunkSize = int64(tagSize)
	return nil
}

func wavByteOrder(bigEndian bool) binary.ByteOrder {
	if bigEndian {
		return binary.BigEndian
	}
	return binary.LittleEndian
}
