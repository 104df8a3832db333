package soundfile

import (
	"os"
	"path/filepath"
	"testing"
)

func TestCAFProbe(t *testing.T) {
	h := NewCAFHandler()
	if !h.Probe([]byte("caff\x00\x01\x00\x00")) {
		t.Errorf("expected caff magic to probe true")
	}
	if h.Probe([]byte("FORM\x00\x00\x00\x00")) {
		t.Errorf("expected non-CAF prefix to probe false")
	}
}

func TestCAFHeaderRoundTrip(t *testing.T) {
	tests := []struct {
		name           string
		bytesPerSample int
	}{
		{"16bit", 2},
		{"24bit", 3},
		{"32bit-float", 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			path := filepath.Join(dir, "test.caf")
			f, err := os.Create(path)
			if err != nil {
				t.Fatalf("create: %v", err)
			}

			h := NewCAFHandler()
			sf := &Descriptor{SampleRate: 48000, NChannels: 2, BytesPerSample: tt.bytesPerSample, BigEndian: true}
			if err := h.Open(sf, f); err != nil {
				t.Fatalf("Open: %v", err)
			}

			const nframes = 64
			if _, err := h.WriteHeader(sf, nframes); err != nil {
				t.Fatalf("WriteHeader: %v", err)
			}
			payload := make([]byte, nframes*sf.BytesPerFrame())
			for i := range payload {
				payload[i] = byte(i)
			}
			if _, err := h.WriteSamples(sf, payload); err != nil {
				t.Fatalf("WriteSamples: %v", err)
			}
			if err := h.UpdateHeader(sf, nframes); err != nil {
				t.Fatalf("UpdateHeader: %v", err)
			}
			if err := h.Close(sf); err != nil {
				t.Fatalf("Close: %v", err)
			}

			rf, err := os.Open(path)
			if err != nil {
				t.Fatalf("reopen: %v", err)
			}
			rsf := &Descriptor{}
			if err := h.Open(rsf, rf); err != nil {
				t.Fatalf("Open for read: %v", err)
			}
			if err := h.ReadHeader(rsf); err != nil {
				t.Fatalf("ReadHeader: %v", err)
			}
			if rsf.SampleRate != 48000 {
				t.Errorf("SampleRate = %d, want 48000", rsf.SampleRate)
			}
			if rsf.NChannels != 2 {
				t.Errorf("NChannels = %d, want 2", rsf.NChannels)
			}
			if rsf.BytesPerSample != tt.bytesPerSample {
				t.Errorf("BytesPerSample = %d, want %d", rsf.BytesPerSample, tt.bytesPerSample)
			}
			if !rsf.BigEndian {
				t.Errorf("expected BigEndian true")
			}
			if rsf.ByteLimit != int64(len(payload)) {
				t.Errorf("ByteLimit = %d, want %d", rsf.ByteLimit, len(payload))
			}

			readBack := make([]byte, len(payload))
			n, err := h.ReadSamples(rsf, readBack)
			if err != nil {
				t.Fatalf("ReadSamples: %v", err)
			}
			if n != len(payload) {
				t.Fatalf("read %d bytes, want %d", n, len(payload))
			}
			for i := range payload {
				if readBack[i] != payload[i] {
					t.Fatalf("byte %d mismatch: got %d want %d", i, readBack[i], payload[i])
				}
			}
		})
	}
}

func TestCAFRejectsNonLPCMFormat(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.caf")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	buf := []byte("caff\x00\x01\x00\x00")
	buf = append(buf, []byte("desc")...)
	buf = append(buf, 0, 0, 0, 0, 0, 0, 0, 32) // size 32
	buf = append(buf, make([]byte, 8)...)        // sampleRate placeholder
	buf = append(buf, []byte("alac")...)          // not lpcm
	buf = append(buf, make([]byte, 20)...)        // rest of the 32-byte desc body
	if _, err := f.Write(buf); err != nil {
		t.Fatalf("write: %v", err)
	}
	f.Seek(0, 0)

	h := NewCAFHandler()
	sf := &Descriptor{}
	if err := h.Open(sf, f); err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := h.ReadHeader(sf); err == nil {
		t.Errorf("expected ReadHeader to reject non-lpcm formatID")
	}
}

func TestCAFHasExtension(t *testing.T) {
	h := NewCAFHandler()
	if !h.HasExtension("song.caf") || !h.HasExtension("song.CAF") {
		t.Errorf("expected .caf extension match")
	}
	if h.HasExtension("song.wav") {
		t.Errorf("expected .wav to not match CAF handler")
	}
}
