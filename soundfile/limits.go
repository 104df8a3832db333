package soundfile

// Constants grouped the way drgolem/go-flac groups its bitDepth*/
// ringBufferCapacity constants in flac/flac.go, rather than a config file:
// these are compile-time invariants of the format, not runtime-tunable
// settings.
const (
	// MaxChannels is the largest nchannels a Descriptor may carry.
	MaxChannels = 64

	// MaxTypes bounds the type registry, matching d_soundfile.c's
	// SFMAXTYPES.
	MaxTypes = 8

	// HeaderProbeBufSize is the scratch buffer size used to probe a
	// file's header before a handler is chosen (d_soundfile.c's
	// SFHDRBUFSIZE).
	HeaderProbeBufSize = 1024

	// MaxFrames is the "unknown/stream" sentinel passed to WriteHeader,
	// matching d_soundfile.c's SFMAXFRAMES.
	MaxFrames = ^uint64(0) >> 1

	// MaxBytes is the BYTES_MAX sentinel a fresh Descriptor's ByteLimit
	// saturates at when the remaining size is not yet known.
	MaxBytes = ^uint64(0) >> 1

	// HeaderSizeUnset marks Descriptor.HeaderSize as "detect from
	// header" rather than a caller override.
	HeaderSizeUnset = -1
)
