package cmdline

import (
	"testing"

	"github.com/drgolem/go-soundfile/soundfile"
)

func TestParseReadBasic(t *testing.T) {
	reg := soundfile.Default()
	ra, err := ParseRead(reg, []string{"-skip", "100", "-resize", "sound.wav", "array1", "array2"})
	if err != nil {
		t.Fatalf("ParseRead: %v", err)
	}
	if ra.SkipFrames != 100 {
		t.Errorf("SkipFrames = %d, want 100", ra.SkipFrames)
	}
	if !ra.Resize {
		t.Errorf("expected Resize true")
	}
	if ra.Filename != "sound.wav" {
		t.Errorf("Filename = %q, want sound.wav", ra.Filename)
	}
	if len(ra.Tables) != 2 || ra.Tables[0] != "array1" || ra.Tables[1] != "array2" {
		t.Errorf("Tables = %v, want [array1 array2]", ra.Tables)
	}
}

func TestParseReadRaw(t *testing.T) {
	reg := soundfile.Default()
	ra, err := ParseRead(reg, []string{"-raw", "44", "2", "2", "l", "headerless.raw", "arr"})
	if err != nil {
		t.Fatalf("ParseRead: %v", err)
	}
	if !ra.Raw {
		t.Errorf("expected Raw true")
	}
	if ra.RawHeaderBytes != 44 || ra.RawChannels != 2 || ra.RawBytesPerSample != 2 || ra.RawEndian != 'l' {
		t.Errorf("unexpected raw fields: %+v", ra)
	}
}

func TestParseReadAsciiOverridesRaw(t *testing.T) {
	reg := soundfile.Default()
	// Spec semantics: -ascii always wins when both are given, regardless
	// of which flag appears first in argv.
	ra, err := ParseRead(reg, []string{"-raw", "44", "2", "2", "l", "-ascii", "file.raw"})
	if err != nil {
		t.Fatalf("ParseRead: %v", err)
	}
	if !ra.Ascii {
		t.Errorf("expected Ascii true")
	}
	if ra.Raw {
		t.Errorf("expected Raw false once -ascii wins")
	}
}

func TestParseReadForcedType(t *testing.T) {
	reg := soundfile.Default()
	ra, err := ParseRead(reg, []string{"-aiff", "file"})
	if err != nil {
		t.Fatalf("ParseRead: %v", err)
	}
	if ra.ForcedType == nil || ra.ForcedType.Name() != "aiff" {
		t.Errorf("expected forced type aiff, got %v", ra.ForcedType)
	}
}

func TestParseReadUnknownFlag(t *testing.T) {
	reg := soundfile.Default()
	if _, err := ParseRead(reg, []string{"-bogus", "file"}); err == nil {
		t.Errorf("expected error for unknown flag")
	}
}

func TestParseReadMissingFilename(t *testing.T) {
	reg := soundfile.Default()
	if _, err := ParseRead(reg, []string{"-skip", "10"}); err == nil {
		t.Errorf("expected error for missing filename")
	}
}

func TestParseReadDoubleDashStopsParsing(t *testing.T) {
	reg := soundfile.Default()
	ra, err := ParseRead(reg, []string{"--", "-weirdname.wav"})
	if err != nil {
		t.Fatalf("ParseRead: %v", err)
	}
	if ra.Filename != "-weirdname.wav" {
		t.Errorf("Filename = %q, want -weirdname.wav", ra.Filename)
	}
}

func TestParseWriteBasic(t *testing.T) {
	reg := soundfile.Default()
	wa, err := ParseWrite(reg, []string{"-bytes", "3", "-rate", "48000", "-normalize", "out.wav", "arr1"})
	if err != nil {
		t.Fatalf("ParseWrite: %v", err)
	}
	if wa.BytesPerSample != 3 {
		t.Errorf("BytesPerSample = %d, want 3", wa.BytesPerSample)
	}
	if wa.SampleRate != 48000 {
		t.Errorf("SampleRate = %d, want 48000", wa.SampleRate)
	}
	if !wa.Normalize {
		t.Errorf("expected Normalize true")
	}
	if wa.Filename != "out.wav" {
		t.Errorf("Filename = %q, want out.wav", wa.Filename)
	}
	if wa.Type == nil || wa.Type.Name() != "wave" {
		t.Errorf("expected type inferred from .wav extension, got %v", wa.Type)
	}
}

func TestParseWriteAIFFForcesBigEndian(t *testing.T) {
	reg := soundfile.Default()
	wa, err := ParseWrite(reg, []string{"-aiff", "-little", "out.aif"})
	if err != nil {
		t.Fatalf("ParseWrite: %v", err)
	}
	if wa.Endianness != 1 {
		t.Errorf("expected AIFF to force big-endian despite -little, got Endianness=%d", wa.Endianness)
	}
	if !EndianOverridden(0, wa.Endianness) {
		t.Errorf("expected EndianOverridden to report the -little request was overridden")
	}
}

func TestParseWriteMetaVarArgs(t *testing.T) {
	reg := soundfile.Default()
	wa, err := ParseWrite(reg, []string{"-meta", "title", "Test Song", "-rate", "44100", "out.wav"})
	if err != nil {
		t.Fatalf("ParseWrite: %v", err)
	}
	if len(wa.Meta) != 1 || len(wa.Meta[0]) != 2 || wa.Meta[0][0] != "title" {
		t.Errorf("unexpected Meta: %v", wa.Meta)
	}
	if wa.SampleRate != 44100 {
		t.Errorf("SampleRate = %d, want 44100", wa.SampleRate)
	}
}

func TestParseWriteBytesOutOfRange(t *testing.T) {
	reg := soundfile.Default()
	if _, err := ParseWrite(reg, []string{"-bytes", "8", "out.wav"}); err == nil {
		t.Errorf("expected error for out-of-range -bytes value")
	}
}
