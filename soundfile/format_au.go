package soundfile

import (
	"bytes"
	"encoding/binary"
	"io"
	"os"
	"strings"

	"github.com/drgolem/go-soundfile/sferr"
)

// auHandler implements Sun/NeXT .au/.snd: always big-endian, a fixed
// 24-byte header (magic, data offset, data size, encoding, sample rate,
// channel count) with no further chunk structure. Grounded on the
// auHeader layout in gonewx-pvz's AU decoder, restricted here to the
// linear PCM and IEEE float encodings the codec package supports
// (mu-law/a-law companding is out of scope, matching spec's compressed-
// codec non-goal).
type auHandler struct{}

// NewAUHandler returns the built-in AU format handler.
func NewAUHandler() Handler { return &auHandler{} }

const auMagic = 0x2e736e64 // ".snd"

const (
	auEncodingPCM8  = 2
	auEncodingPCM16 = 3
	auEncodingPCM24 = 4
	auEncodingPCM32 = 5
	auEncodingFloat = 6
)

func (*auHandler) Name() string        { return "au" }
func (*auHandler) MinHeaderBytes() int { return 24 }
func (*auHandler) Open(sf *Descriptor, f *os.File) error { return defaultOpen(sf, f) }
func (*auHandler) Close(sf *Descriptor) error            { return defaultClose(sf) }
func (*auHandler) SeekToFrame(sf *Descriptor, frame uint64) error {
	return defaultSeekToFrame(sf, frame)
}
func (*auHandler) ReadSamples(sf *Descriptor, buf []byte) (int, error)  { return defaultReadSamples(sf, buf) }
func (*auHandler) WriteSamples(sf *Descriptor, buf []byte) (int, error) { return defaultWriteSamples(sf, buf) }
func (*auHandler) Strerror(int) string                                 { return "" }
func (*auHandler) ReadMeta(*Descriptor) (map[string]string, error)     { return nil, ErrNotSupported }
func (*auHandler) WriteMeta(*Descriptor, map[string]string) error      { return ErrNotSupported }

func (*auHandler) Probe(prefix []byte) bool {
	return len(prefix) >= 4 && binary.BigEndian.Uint32(prefix[0:4]) == auMagic
}

func (*auHandler) HasExtension(filename string) bool {
	f := normalizeExt(filename)
	return strings.HasSuffix(f, ".au") || strings.HasSuffix(f, ".snd")
}

func (*auHandler) AddExtension(filename string) string {
	return filename + ".au"
}

func (*auHandler) Endianness(int) bool { return true } // AU is always big-endian

func encodingToBytesPerSample(enc uint32) (int, error) {
	switch enc {
	case auEncodingPCM16:
		return 2, nil
	case auEncodingPCM24:
		return 3, nil
	case auEncodingFloat:
		return 4, nil
	default:
		return 0, sferr.ErrSampleFormat
	}
}

func bytesPerSampleToEncoding(n int) uint32 {
	switch n {
	case 2:
		return auEncodingPCM16
	case 3:
		return auEncodingPCM24
	default:
		return auEncodingFloat
	}
}

func (*auHandler) ReadHeader(sf *Descriptor) error {
	hdr := make([]byte, 24)
	if _, err := io.ReadFull(sf.File, hdr); err != nil {
		return sferr.ErrBadHeader
	}
	if binary.BigEndian.Uint32(hdr[0:4]) != auMagic {
		return sferr.ErrBadHeader
	}
	dataOffset := binary.BigEndian.Uint32(hdr[4:8])
	dataSize := binary.BigEndian.Uint32(hdr[8:12])
	encoding := binary.BigEndian.Uint32(hdr[12:16])
	sampleRate := binary.BigEndian.Uint32(hdr[16:20])
	channels := binary.BigEndian.Uint32(hdr[20:24])

	bytesPerSample, err := encodingToBytesPerSample(encoding)
	if err != nil {
		return err
	}
	if dataOffset < 24 {
		return sferr.ErrBadHeader
	}

	sf.SampleRate = int(sampleRate)
	sf.NChannels = int(channels)
	sf.BytesPerSample = bytesPerSample
	sf.BigEndian = true
	sf.HeaderSize = int64(dataOffset)
	if dataSize == 0xFFFFFFFF {
		sf.ByteLimit = int64(MaxBytes)
	} else {
		sf.ByteLimit = int64(dataSize)
	}

	if _, err := sf.File.Seek(int64(dataOffset), io.SeekStart); err != nil {
		return sferr.ErrBadHeader
	}
	return nil
}

func (*auHandler) WriteHeader(sf *Descriptor, nframes uint64) (int64, error) {
	if !ValidBytesPerSample(sf.BytesPerSample) {
		return 0, sferr.ErrSampleFormat
	}
	var dataSize uint32 = 0xFFFFFFFF
	if nframes < uint64(MaxFrames) {
		dataSize = uint32(nframes) * uint32(sf.BytesPerFrame())
	}

	buf := new(bytes.Buffer)
	binary.Write(buf, binary.BigEndian, uint32(auMagic))
	binary.Write(buf, binary.BigEndian, uint32(24)) // data offset
	binary.Write(buf, binary.BigEndian, dataSize)
	binary.Write(buf, binary.BigEndian, bytesPerSampleToEncoding(sf.BytesPerSample))
	binary.Write(buf, binary.BigEndian, uint32(sf.SampleRate))
	binary.Write(buf, binary.BigEndian, uint32(sf.NChannels))

	if _, err := sf.File.Write(buf.Bytes()); err != nil {
		return 0, err
	}
	return int64(buf.Len()), nil
}

func (*auHandler) UpdateHeader(sf *Descriptor, framesWritten uint64) error {
	dataSize := make([]byte, 4)
	binary.BigEndian.PutUint32(dataSize, uint32(framesWritten)*uint32(sf.BytesPerFrame()))
	_, err := sf.File.WriteAt(dataSize, 8)
	return err
}
