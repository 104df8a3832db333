// Package cmdline parses the soundfile read/write argument grammar:
// a run of single-dash flags followed by a filename and, for reads, a
// list of table names. Grounded line-for-line on soundfiler_read's and
// soundfiler_parsewriteargs's argument loops in d_soundfile.c, ported
// from Pd's t_atom array to a plain []string since no atom/message
// system exists in this module.
package cmdline

import (
	"fmt"
	"strconv"

	"github.com/drgolem/go-soundfile/soundfile"
)

// ReadArgs is the parsed result of a "read" invocation's flags.
type ReadArgs struct {
	SkipFrames uint64
	Ascii      bool
	Raw        bool
	RawHeaderBytes int
	RawChannels    int
	RawBytesPerSample int
	RawEndian      byte // 'b', 'l', or 'n'
	Resize     bool
	MaxSize    uint64
	Meta       bool
	ForcedType *soundfile.TypeEntry

	Filename string
	Tables   []string
}

// ParseRead walks argv per soundfiler_read's flag loop (d_soundfile.c:
// 1146-1243): -skip, -ascii, -raw, -resize, -maxsize, -meta, -<typename>,
// and -- to stop flag parsing early.
func ParseRead(reg *soundfile.Registry, argv []string) (*ReadArgs, error) {
	ra := &ReadArgs{MaxSize: soundfile.MaxFrames}
	i := 0
flagLoop:
	for i < len(argv) && len(argv[i]) > 0 && argv[i][0] == '-' {
		flag := argv[i][1:]
		switch flag {
		case "skip":
			v, n, err := takeUint(argv, i)
			if err != nil {
				return nil, err
			}
			ra.SkipFrames = v
			i += n
		case "ascii":
			ra.Ascii = true
			i++
		case "raw":
			if i+4 >= len(argv) {
				return nil, fmt.Errorf("cmdline: -raw requires 4 arguments")
			}
			hb, err := strconv.Atoi(argv[i+1])
			if err != nil || hb < 0 {
				return nil, fmt.Errorf("cmdline: -raw: bad headerbytes %q", argv[i+1])
			}
			ch, err := strconv.Atoi(argv[i+2])
			if err != nil || ch < 1 || ch > soundfile.MaxChannels {
				return nil, fmt.Errorf("cmdline: -raw: bad channels %q", argv[i+2])
			}
			bps, err := strconv.Atoi(argv[i+3])
			if err != nil || bps < 2 || bps > 4 {
				return nil, fmt.Errorf("cmdline: -raw: bad bytespersample %q", argv[i+3])
			}
			e := argv[i+4]
			if len(e) != 1 || (e[0] != 'b' && e[0] != 'l' && e[0] != 'n') {
				return nil, fmt.Errorf("cmdline: -raw: endianness must be b, l, or n, got %q", e)
			}
			ra.Raw = true
			ra.RawHeaderBytes = hb
			ra.RawChannels = ch
			ra.RawBytesPerSample = bps
			ra.RawEndian = e[0]
			i += 5
		case "resize":
			ra.Resize = true
			i++
		case "maxsize":
			v, n, err := takeUint(argv, i)
			if err != nil {
				return nil, err
			}
			if v > soundfile.MaxFrames {
				v = soundfile.MaxFrames
			}
			ra.MaxSize = v
			ra.Resize = true // maxsize implies resize
			i += n
		case "meta":
			ra.Meta = true
			i++
		case "":
			return nil, fmt.Errorf("cmdline: bare '-' flag with no name")
		case "-":
			i++
			break flagLoop
		default:
			t := reg.ByName(flag)
			if t == nil {
				return nil, fmt.Errorf("cmdline: unknown flag -%s", flag)
			}
			ra.ForcedType = t
			i++
		}
	}
	if ra.Ascii && ra.Raw {
		ra.Raw = false // -ascii wins over an earlier -raw, per spec
	}
	if i >= len(argv) {
		return nil, fmt.Errorf("cmdline: missing filename")
	}
	ra.Filename = argv[i]
	ra.Tables = append([]string(nil), argv[i+1:]...)
	return ra, nil
}

// WriteArgs is the parsed result of a "write" invocation's flags.
type WriteArgs struct {
	SampleRate     int // -1 if unspecified
	BytesPerSample int
	Endianness     int // -1 unspecified, 0 little, 1 big
	NFrames        uint64
	OnsetFrames    uint64
	Normalize      bool
	Meta           [][]string
	Type           *soundfile.TypeEntry

	Filename string
	Tables   []string
}

// ParseWrite walks argv per soundfiler_parsewriteargs (d_soundfile.c:
// 638-793): -skip, -nframes, -bytes, -normalize, -big, -little,
// -rate/-r, -meta (vararg run), -<typename>, and -- to stop parsing.
func ParseWrite(reg *soundfile.Registry, argv []string) (*WriteArgs, error) {
	wa := &WriteArgs{
		SampleRate:     -1,
		BytesPerSample: 2,
		Endianness:     -1,
		NFrames:        soundfile.MaxFrames,
	}
	i := 0
flagLoop:
	for i < len(argv) && len(argv[i]) > 0 && argv[i][0] == '-' {
		flag := argv[i][1:]
		switch flag {
		case "skip":
			v, n, err := takeUint(argv, i)
			if err != nil {
				return nil, err
			}
			wa.OnsetFrames = v
			i += n
		case "nframes":
			v, n, err := takeUint(argv, i)
			if err != nil {
				return nil, err
			}
			wa.NFrames = v
			i += n
		case "bytes":
			if i+1 >= len(argv) {
				return nil, fmt.Errorf("cmdline: -bytes requires an argument")
			}
			v, err := strconv.Atoi(argv[i+1])
			if err != nil || v < 2 || v > 4 {
				return nil, fmt.Errorf("cmdline: -bytes: bad value %q", argv[i+1])
			}
			wa.BytesPerSample = v
			i += 2
		case "normalize":
			wa.Normalize = true
			i++
		case "big":
			wa.Endianness = 1
			i++
		case "little":
			wa.Endianness = 0
			i++
		case "rate", "r":
			if i+1 >= len(argv) {
				return nil, fmt.Errorf("cmdline: -%s requires an argument", flag)
			}
			v, err := strconv.Atoi(argv[i+1])
			if err != nil || v <= 0 {
				return nil, fmt.Errorf("cmdline: -%s: bad value %q", flag, argv[i+1])
			}
			wa.SampleRate = v
			i += 2
		case "meta":
			i++
			start := i
			for i < len(argv) && !(len(argv[i]) > 0 && argv[i][0] == '-') {
				i++
			}
			if i == start {
				return nil, fmt.Errorf("cmdline: -meta requires at least one argument")
			}
			wa.Meta = append(wa.Meta, append([]string(nil), argv[start:i]...))
		case "-":
			i++
			break flagLoop
		case "nextstep":
			wa.Type = reg.ByName("au")
			i++
		default:
			t := reg.ByName(flag)
			if t == nil {
				return nil, fmt.Errorf("cmdline: unknown flag -%s", flag)
			}
			wa.Type = t
			i++
		}
	}
	if i >= len(argv) {
		return nil, fmt.Errorf("cmdline: missing filename")
	}
	wa.Filename = argv[i]
	wa.Tables = append([]string(nil), argv[i+1:]...)

	if wa.Type == nil {
		wa.Type = reg.ByExtension(wa.Filename)
		if wa.Type == nil {
			wa.Type = reg.First()
		}
	}
	// The type's own endianness policy always wins (e.g. AIFF forces
	// big-endian); a conflicting -big/-little is overridden, not an
	// error, matching soundfiler_parsewriteargs's pd_error-and-continue.
	bigEndian := wa.Type.Handler.Endianness(wa.Endianness)
	wa.Endianness = boolToInt(bigEndian)
	return wa, nil
}

// EndianOverridden reports whether a requested endianness (0 or 1) lost
// out to the type's own policy, so a caller can log it the way
// soundfiler_parsewriteargs does.
func EndianOverridden(requested, resolved int) bool {
	return requested != -1 && requested != resolved
}

func takeUint(argv []string, i int) (uint64, int, error) {
	if i+1 >= len(argv) {
		return 0, 0, fmt.Errorf("cmdline: -%s requires an argument", argv[i][1:])
	}
	v, err := strconv.ParseInt(argv[i+1], 10, 64)
	if err != nil || v < 0 {
		return 0, 0, fmt.Errorf("cmdline: -%s: bad value %q", argv[i][1:], argv[i+1])
	}
	return uint64(v), 2, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

