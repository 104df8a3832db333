package codec

import (
	"math"
	"testing"
)

func encodeDecodeOne(t *testing.T, x float64, bytesPerSample int, bigEndian bool) float64 {
	t.Helper()
	buf := make([]byte, bytesPerSample)
	src := [][]float64{{x}}
	if err := EncodeFrames(buf, src, 0, 1, 1, bytesPerSample, bigEndian, 1); err != nil {
		t.Fatalf("EncodeFrames: %v", err)
	}
	dst := [][]float64{make([]float64, 1)}
	if err := DecodeFrames(dst, 0, buf, 1, 1, bytesPerSample, bigEndian); err != nil {
		t.Fatalf("DecodeFrames: %v", err)
	}
	return dst[0][0]
}

func TestRoundTrip16(t *testing.T) {
	for _, x := range []float64{0, 0.5, -0.5, 1 - 1.0/32768, -(1 - 1.0/32768)} {
		got := encodeDecodeOne(t, x, 2, false)
		if math.Abs(got-x) > 1.0/32767 {
			t.Errorf("16-bit round trip %v -> %v, diff too large", x, got)
		}
	}
}

func TestRoundTrip24(t *testing.T) {
	for _, x := range []float64{0, 0.5, -0.5, 1 - 1.0/8388608, -(1 - 1.0/8388608)} {
		got := encodeDecodeOne(t, x, 3, true)
		if math.Abs(got-x) > 1.0/8388607 {
			t.Errorf("24-bit round trip %v -> %v, diff too large", x, got)
		}
	}
}

func TestRoundTrip32Float(t *testing.T) {
	for _, x := range []float64{0, 0.5, -0.5, 1.0, -1.0, 123.456} {
		got := encodeDecodeOne(t, x, 4, false)
		want := float64(float32(x))
		if got != want {
			t.Errorf("32-bit float round trip %v -> %v, want bit-exact %v", x, got, want)
		}
	}
}

func TestBoundaryClampAsymmetry16(t *testing.T) {
	buf := make([]byte, 2)
	EncodeFrames(buf, [][]float64{{1.0}}, 0, 1, 1, 2, false, 1)
	v := int16(uint16(buf[0]) | uint16(buf[1])<<8)
	if v != 32767 {
		t.Errorf("encode(1.0) 16-bit little = %d, want 32767", v)
	}
	EncodeFrames(buf, [][]float64{{-1.0}}, 0, 1, 1, 2, false, 1)
	v = int16(uint16(buf[0]) | uint16(buf[1])<<8)
	if v != -32767 {
		t.Errorf("encode(-1.0) 16-bit little = %d, want -32767", v)
	}
}

func TestBoundaryClampAsymmetry24(t *testing.T) {
	buf := make([]byte, 3)
	EncodeFrames(buf, [][]float64{{1.0}}, 0, 1, 1, 3, true, 1)
	v := int32(buf[0])<<16 | int32(buf[1])<<8 | int32(buf[2])
	if v != 8388607 {
		t.Errorf("encode(1.0) 24-bit big = %d, want 8388607", v)
	}
	EncodeFrames(buf, [][]float64{{-1.0}}, 0, 1, 1, 3, true, 1)
	v = int32(buf[0])<<16 | int32(buf[1])<<8 | int32(buf[2])
	// sign-extend 24->32
	if v&0x800000 != 0 {
		v |= ^0xffffff
	}
	if v != -8388607 {
		t.Errorf("encode(-1.0) 24-bit big = %d, want -8388607", v)
	}
}

func TestEndiannessLaw(t *testing.T) {
	for _, bps := range []int{2, 3, 4} {
		bufLE := make([]byte, bps)
		bufBE := make([]byte, bps)
		src := [][]float64{{0.37}}
		EncodeFrames(bufLE, src, 0, 1, 1, bps, false, 1)
		EncodeFrames(bufBE, src, 0, 1, 1, bps, true, 1)
		rev := make([]byte, bps)
		for i := range bufLE {
			rev[i] = bufLE[bps-1-i]
		}
		for i := range rev {
			if rev[i] != bufBE[i] {
				t.Errorf("bps=%d: encode(big) != bytereverse(encode(little)): %v vs %v", bps, bufBE, rev)
				break
			}
		}
	}
}

func TestDecodeExtraChannelsZeroFilled(t *testing.T) {
	// File has 1 channel, listener asks for 3.
	buf := make([]byte, 2)
	EncodeFrames(buf, [][]float64{{0.5}}, 0, 1, 1, 2, false, 1)
	dst := [][]float64{make([]float64, 1), make([]float64, 1), make([]float64, 1)}
	if err := DecodeFrames(dst, 0, buf, 1, 1, 2, false); err != nil {
		t.Fatalf("DecodeFrames: %v", err)
	}
	if dst[1][0] != 0 || dst[2][0] != 0 {
		t.Errorf("extra channels not zero-filled: %v %v", dst[1][0], dst[2][0])
	}
}

func TestUnsupportedSampleWidth(t *testing.T) {
	buf := make([]byte, 5)
	dst := [][]float64{make([]float64, 1)}
	if err := DecodeFrames(dst, 0, buf, 1, 1, 5, false); err == nil {
		t.Error("expected error for unsupported bytesPerSample")
	}
}

func TestNormFactor(t *testing.T) {
	if got := NormFactor(false, 2.0); got != 1 {
		t.Errorf("NormFactor(false, 2.0) = %v, want 1", got)
	}
	if got := NormFactor(true, 0); got != 1 {
		t.Errorf("NormFactor(true, 0) = %v, want 1", got)
	}
	peak := 2.0
	want := 32767.0 / (32768.0 * peak)
	if got := NormFactor(true, peak); got != want {
		t.Errorf("NormFactor(true, %v) = %v, want %v", peak, got, want)
	}
}
