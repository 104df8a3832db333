package sfio

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/drgolem/go-soundfile/soundfile"
)

func TestCreateThenOpenRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "roundtrip")

	reg := soundfile.Default()
	entry := reg.ByName("wave")
	if entry == nil {
		t.Fatalf("wave type not registered")
	}

	const nframes = 30
	sf, err := Create(entry, path, 44100, 2, 2, false, nframes)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	payload := make([]byte, nframes*sf.BytesPerFrame())
	for i := range payload {
		payload[i] = byte(i)
	}
	n, err := sf.Type.Handler.WriteSamples(sf, payload)
	if err != nil {
		t.Fatalf("WriteSamples: %v", err)
	}
	if n != len(payload) {
		t.Fatalf("wrote %d bytes, want %d", n, len(payload))
	}
	FinishWrite(nil, path, sf, nframes, nframes)
	if err := sf.Type.Handler.Close(sf); err != nil {
		t.Fatalf("Close: %v", err)
	}

	readSf, err := Open(reg, path+".wav", nil, 0)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer readSf.Type.Handler.Close(readSf)

	if readSf.SampleRate != 44100 || readSf.NChannels != 2 || readSf.BytesPerSample != 2 {
		t.Errorf("unexpected header: %+v", readSf)
	}
	if readSf.ByteLimit != int64(len(payload)) {
		t.Errorf("ByteLimit = %d, want %d", readSf.ByteLimit, len(payload))
	}
}

func TestOpenWithSkipframes(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "skip.wav")

	reg := soundfile.Default()
	entry := reg.ByName("wave")

	const nframes = 10
	sf, err := Create(entry, path, 8000, 1, 2, false, nframes)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	payload := make([]byte, nframes*sf.BytesPerFrame())
	for i := range payload {
		payload[i] = byte(i + 1)
	}
	if _, err := sf.Type.Handler.WriteSamples(sf, payload); err != nil {
		t.Fatalf("WriteSamples: %v", err)
	}
	FinishWrite(nil, path, sf, nframes, nframes)
	sf.Type.Handler.Close(sf)

	const skip = 3
	readSf, err := Open(reg, path, nil, skip)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer readSf.Type.Handler.Close(readSf)

	wantRemaining := int64(len(payload)) - skip*int64(readSf.BytesPerFrame())
	if readSf.ByteLimit != wantRemaining {
		t.Errorf("ByteLimit after skip = %d, want %d", readSf.ByteLimit, wantRemaining)
	}

	got := make([]byte, readSf.ByteLimit)
	n, err := readSf.Type.Handler.ReadSamples(readSf, got)
	if err != nil {
		t.Fatalf("ReadSamples: %v", err)
	}
	if n != len(got) {
		t.Fatalf("read %d bytes, want %d", n, len(got))
	}
	want := payload[skip*readSf.BytesPerFrame():]
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("byte %d mismatch: got %d want %d", i, got[i], want[i])
		}
	}
}

func TestOpenRejectsUnrecognizedHeader(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "garbage.bin")
	if err := os.WriteFile(path, []byte("not a soundfile at all, just junk bytes"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}

	reg := soundfile.Default()
	if _, err := Open(reg, path, nil, 0); err == nil {
		t.Errorf("expected Open to reject an unrecognized header")
	}
}

func TestFinishWriteRewritesShortHeader(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "short.wav")

	reg := soundfile.Default()
	entry := reg.ByName("wave")

	const promised = 100
	const actual = 40
	sf, err := Create(entry, path, 44100, 1, 2, false, promised)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	payload := make([]byte, actual*sf.BytesPerFrame())
	if _, err := sf.Type.Handler.WriteSamples(sf, payload); err != nil {
		t.Fatalf("WriteSamples: %v", err)
	}
	FinishWrite(nil, path, sf, promised, actual)
	sf.Type.Handler.Close(sf)

	readSf, err := Open(reg, path, nil, 0)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer readSf.Type.Handler.Close(readSf)
	if readSf.ByteLimit != int64(len(payload)) {
		t.Errorf("ByteLimit after FinishWrite = %d, want %d", readSf.ByteLimit, len(payload))
	}
}
