package soundfile

import (
	"os"
	"path/filepath"
	"testing"
)

func TestRawNeverProbes(t *testing.T) {
	h := NewRawHandler()
	if h.Probe([]byte("RIFF....WAVE")) {
		t.Errorf("expected RAW Probe to always return false")
	}
}

func TestRawReadHeaderUsesCallerSuppliedFields(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.raw")

	const headerBytes = 10
	const nframes = 20
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	sf := &Descriptor{
		NChannels:      2,
		BytesPerSample: 2,
		BigEndian:      false,
		SampleRate:     44100,
		HeaderSize:     headerBytes,
	}
	h := NewRawHandler()
	if err := h.Open(sf, f); err != nil {
		t.Fatalf("Open: %v", err)
	}

	skip := make([]byte, headerBytes)
	payload := make([]byte, nframes*sf.BytesPerFrame())
	for i := range payload {
		payload[i] = byte(i)
	}
	if _, err := f.Write(skip); err != nil {
		t.Fatalf("write skip: %v", err)
	}
	if _, err := f.Write(payload); err != nil {
		t.Fatalf("write payload: %v", err)
	}
	if err := h.Close(sf); err != nil {
		t.Fatalf("Close: %v", err)
	}

	rf, err := os.Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	rsf := &Descriptor{
		NChannels:      2,
		BytesPerSample: 2,
		BigEndian:      false,
		SampleRate:     44100,
		HeaderSize:     headerBytes,
	}
	if err := h.Open(rsf, rf); err != nil {
		t.Fatalf("Open for read: %v", err)
	}
	if err := h.ReadHeader(rsf); err != nil {
		t.Fatalf("ReadHeader: %v", err)
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
}

func TestRawRejectsInvalidSampleWidth(t *testing.T) {
	h := NewRawHandler()
	sf := &Descriptor{NChannels: 1, BytesPerSample: 5}
	if err := h.ReadHeader(sf); err == nil {
		t.Errorf("expected ReadHeader to reject bytesPerSample=5")
	}
	if _, err := h.WriteHeader(sf, 0); err == nil {
		t.Errorf("expected WriteHeader to reject bytesPerSample=5")
	}
}
