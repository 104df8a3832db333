package soundfile

import (
	"os"
	"testing"

	"github.com/drgolem/go-soundfile/sferr"
)

func TestDefaultRegistryOrderAndDefaults(t *testing.T) {
	r := Default()

	first := r.First()
	if first == nil || first.Name() != "wave" {
		t.Fatalf("expected wave as first registered type, got %v", first)
	}

	names := map[string]bool{}
	for _, e := range r.All() {
		names[e.Name()] = true
	}
	for _, want := range []string{"wave", "aiff", "caf", "au"} {
		if !names[want] {
			t.Errorf("expected %q registered, got %v", want, names)
		}
	}

	if r.Raw() == nil || r.Raw().Name() != "raw" {
		t.Errorf("expected raw singleton registered separately, got %v", r.Raw())
	}
}

func TestRegistryAddCapsAtMaxTypes(t *testing.T) {
	r := NewRegistry()
	for i := 0; i < MaxTypes; i++ {
		if err := r.Add(&stubHandler{name: fakeName(i)}); err != nil {
			t.Fatalf("Add %d: unexpected error: %v", i, err)
		}
	}
	if err := r.Add(&stubHandler{name: "overflow"}); err != sferr.ErrTooManyTypes {
		t.Errorf("expected ErrTooManyTypes once full, got %v", err)
	}
}

func TestRegistryProbeFirstMatchWins(t *testing.T) {
	r := NewRegistry()
	_ = r.Add(&stubHandler{name: "a", probe: func([]byte) bool { return true }})
	_ = r.Add(&stubHandler{name: "b", probe: func([]byte) bool { return true }})

	got := r.Probe([]byte("anything"))
	if got == nil || got.Name() != "a" {
		t.Errorf("expected first-registered matching type to win, got %v", got)
	}
}

func TestRegistryByExtensionAndByName(t *testing.T) {
	r := Default()

	if e := r.ByExtension("song.WAV"); e == nil || e.Name() != "wave" {
		t.Errorf("expected case-insensitive .wav match, got %v", e)
	}
	if e := r.ByExtension("song.aifc"); e == nil || e.Name() != "aiff" {
		t.Errorf("expected .aifc to match aiff handler, got %v", e)
	}
	if e := r.ByName("au"); e == nil || e.Name() != "au" {
		t.Errorf("expected ByName(\"au\") to find the au handler, got %v", e)
	}
	if e := r.ByName("raw"); e == nil || e.Name() != "raw" {
		t.Errorf("expected ByName(\"raw\") to return the raw singleton, got %v", e)
	}
	if e := r.ByName("nonexistent"); e != nil {
		t.Errorf("expected nil for unregistered name, got %v", e)
	}
}

func TestRegistryTypeArgs(t *testing.T) {
	r := NewRegistry()
	_ = r.Add(&stubHandler{name: "wave"})
	_ = r.Add(&stubHandler{name: "aiff"})
	if got, want := r.TypeArgs(), "-wave -aiff"; got != want {
		t.Errorf("TypeArgs() = %q, want %q", got, want)
	}
}

func fakeName(i int) string {
	return string(rune('a' + i))
}

// stubHandler is a minimal Handler used only to exercise Registry logic
// without pulling in a real container format.
type stubHandler struct {
	name  string
	probe func([]byte) bool
}

func (s *stubHandler) Name() string        { return s.name }
func (s *stubHandler) MinHeaderBytes() int { return 4 }
func (s *stubHandler) Probe(prefix []byte) bool {
	if s.probe == nil {
		return false
	}
	return s.probe(prefix)
}
func (s *stubHandler) Open(*Descriptor, *os.File) error { return nil }
func (s *stubHandler) Close(*Descriptor) error              { return nil }
func (s *stubHandler) ReadHeader(*Descriptor) error          { return nil }
func (s *stubHandler) WriteHeader(*Descriptor, uint64) (int64, error) { return 0, nil }
func (s *stubHandler) UpdateHeader(*Descriptor, uint64) error { return nil }
func (s *stubHandler) ReadSamples(*Descriptor, []byte) (int, error)  { return 0, nil }
func (s *stubHandler) WriteSamples(*Descriptor, []byte) (int, error) { return 0, nil }
func (s *stubHandler) SeekToFrame(*Descriptor, uint64) error          { return nil }
func (s *stubHandler) HasExtension(string) bool     { return false }
func (s *stubHandler) AddExtension(f string) string { return f }
func (s *stubHandler) Endianness(int) bool          { return false }
func (s *stubHandler) ReadMeta(*Descriptor) (map[string]string, error) { return nil, ErrNotSupported }
func (s *stubHandler) WriteMeta(*Descriptor, map[string]string) error  { return ErrNotSupported }
func (s *stubHandler) Strerror(int) string                              { return "" }
