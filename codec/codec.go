// Package codec implements the interleaved-frame <-> de-interleaved-float
// sample conversion at the heart of the soundfile I/O subsystem: pack/unpack
// at 16-bit, 24-bit, and 32-bit-float widths, both byte orders, with the
// asymmetric clip-on-write d_soundfile.c uses to avoid decoder wraparound.
//
// Grounded on soundfile_xferin_sample/soundfile_xferout_sample in
// d_soundfile.c, generalized from the teacher's int32toInt24LEBytes/
// PCMToInt32 pack/unpack routines (drgolem/go-flac/flac/encoder.go,
// flac/flac.go) from FLAC's single int32 wire width to this format's three
// wire widths plus 32-bit IEEE float.
package codec

import (
	"fmt"
	"math"

	"github.com/drgolem/go-soundfile/sferr"
)

// scale converts a sign-extended 32-bit-high-justified integer to the
// [-1, 1) float range: divide by 2^31, i.e. multiply by 2^-31.
const scale = 1.0 / (1024.0 * 1024.0 * 1024.0 * 2.0)

// ValidBytesPerSample reports whether n is a supported wire sample width.
func ValidBytesPerSample(n int) bool {
	return n == 2 || n == 3 || n == 4
}

// DecodeFrames reads nframes interleaved frames from buf (bytesPerFrame =
// nchannels*bytesPerSample apart) and writes them, de-interleaved, into
// dst[c][offset+f] for c < min(nchannels, len(dst)). Channels in dst beyond
// nchannels are zero-filled for the transferred range, matching the "extra
// output channels" rule in spec §4.B.
func DecodeFrames(dst [][]float64, offset int, buf []byte, nframes, nchannels, bytesPerSample int, bigEndian bool) error {
	if !ValidBytesPerSample(bytesPerSample) {
		return sferr.ErrSampleFormat
	}
	bytesPerFrame := nchannels * bytesPerSample
	nvecs := len(dst)
	nch := nchannels
	if nvecs < nch {
		nch = nvecs
	}

	for c := 0; c < nch; c++ {
		chanOff := c * bytesPerSample
		out := dst[c]
		switch bytesPerSample {
		case 2:
			for f := 0; f < nframes; f++ {
				p := buf[chanOff+f*bytesPerFrame:]
				var hi, lo byte
				if bigEndian {
					hi, lo = p[0], p[1]
				} else {
					hi, lo = p[1], p[0]
				}
				_ = lo
				v := int32(hi)<<24 | int32(lo)<<16
				out[offset+f] = scale * float64(v)
			}
		case 3:
			for f := 0; f < nframes; f++ {
				p := buf[chanOff+f*bytesPerFrame:]
				var b0, b1, b2 byte
				if bigEndian {
					b0, b1, b2 = p[0], p[1], p[2]
				} else {
					b0, b1, b2 = p[2], p[1], p[0]
				}
				v := int32(b0)<<24 | int32(b1)<<16 | int32(b2)<<8
				out[offset+f] = scale * float64(v)
			}
		case 4:
			for f := 0; f < nframes; f++ {
				p := buf[chanOff+f*bytesPerFrame:]
				var bits uint32
				if bigEndian {
					bits = uint32(p[0])<<24 | uint32(p[1])<<16 | uint32(p[2])<<8 | uint32(p[3])
				} else {
					bits = uint32(p[3])<<24 | uint32(p[2])<<16 | uint32(p[1])<<8 | uint32(p[0])
				}
				out[offset+f] = float64(math.Float32frombits(bits))
			}
		}
	}

	for c := nch; c < nvecs; c++ {
		out := dst[c]
		for f := 0; f < nframes; f++ {
			out[offset+f] = 0
		}
	}
	return nil
}

// EncodeFrames is the inverse of DecodeFrames: it packs nframes frames from
// src[c][onset+f] (c < nchannels) into buf, interleaved, applying
// normfactor and the asymmetric clip described in spec §4.B (±32767 at
// 16-bit, ±8388607 at 24-bit — one unit inside full scale, deliberately, to
// avoid wraparound in some decoders).
func EncodeFrames(buf []byte, src [][]float64, onset, nframes, nchannels, bytesPerSample int, bigEndian bool, normfactor float64) error {
	if !ValidBytesPerSample(bytesPerSample) {
		return sferr.ErrSampleFormat
	}
	if len(src) < nchannels {
		return fmt.Errorf("codec: need %d channel vectors, got %d", nchannels, len(src))
	}
	bytesPerFrame := nchannels * bytesPerSample

	for c := 0; c < nchannels; c++ {
		chanOff := c * bytesPerSample
		in := src[c]
		switch bytesPerSample {
		case 2:
			ff := normfactor * 32768.0
			for f := 0; f < nframes; f++ {
				xx := int32(32768.0+in[onset+f]*ff) - 32768
				if xx < -32767 {
					xx = -32767
				}
				if xx > 32767 {
					xx = 32767
				}
				p := buf[chanOff+f*bytesPerFrame:]
				if bigEndian {
					p[0] = byte(xx >> 8)
					p[1] = byte(xx)
				} else {
					p[1] = byte(xx >> 8)
					p[0] = byte(xx)
				}
			}
		case 3:
			ff := normfactor * 8388608.0
			for f := 0; f < nframes; f++ {
				xx := int32(8388608.0+in[onset+f]*ff) - 8388608
				if xx < -8388607 {
					xx = -8388607
				}
				if xx > 8388607 {
					xx = 8388607
				}
				p := buf[chanOff+f*bytesPerFrame:]
				if bigEndian {
					p[0] = byte(xx >> 16)
					p[1] = byte(xx >> 8)
					p[2] = byte(xx)
				} else {
					p[2] = byte(xx >> 16)
					p[1] = byte(xx >> 8)
					p[0] = byte(xx)
				}
			}
		case 4:
			for f := 0; f < nframes; f++ {
				bits := math.Float32bits(float32(in[onset+f] * normfactor))
				p := buf[chanOff+f*bytesPerFrame:]
				if bigEndian {
					p[0] = byte(bits >> 24)
					p[1] = byte(bits >> 16)
					p[2] = byte(bits >> 8)
					p[3] = byte(bits)
				} else {
					p[3] = byte(bits >> 24)
					p[2] = byte(bits >> 16)
					p[1] = byte(bits >> 8)
					p[0] = byte(bits)
				}
			}
		}
	}
	return nil
}

// NormFactor returns the normfactor for a requested peak: 1 when
// normalize is false or peak <= 0, else 32767/(32768*peak), matching
// the glossary's definition exactly.
func NormFactor(normalize bool, peak float64) float64 {
	if !normalize || peak <= 0 {
		return 1
	}
	return 32767.0 / (32768.0 * peak)
}
