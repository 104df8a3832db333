// Package sferr holds the sentinel errors and unified error-reporting
// helper shared by every soundfile I/O component, grounded on
// d_soundfile.c's soundfile_strerror()/object_readerror().
package sferr

import (
	"errors"
	"fmt"
	"log/slog"
)

// ErrSampleFormat is returned whenever bytespersample is not 2, 3, or 4.
var ErrSampleFormat = errors.New("supported sample formats: uncompressed 16 bit int, 24 bit int, or 32 bit float")

// ErrBadHeader is returned when no registered type recognizes a header, or
// when a forced type's probe rejects it. It is the Go equivalent of EIO
// being used as "unrecognized header" in d_soundfile.c.
var ErrBadHeader = errors.New("unknown or bad header format")

// ErrTooManyTypes is returned by Registry.Add once the registry is full.
var ErrTooManyTypes = errors.New("soundfile: max number of type implementations reached")

// ErrShortWrite describes a write that ended before the requested frame
// count. sfio.FinishWrite reports that case as a logged warning and does
// not return this value.
var ErrShortWrite = errors.New("soundfile: fewer frames written than requested")

// Report prints a single-line, unified error report the way
// object_readerror() does: a plain OS error is reported verbatim, while a
// header-recognition failure (ErrBadHeader) additionally names the forced
// type, if any, so the caller can tell "disk error" from "wrong parser"
// apart.
func Report(log *slog.Logger, header, filename string, err error, typeName string) {
	if log == nil {
		log = slog.Default()
	}
	switch {
	case err == nil:
		return
	case errors.Is(err, ErrBadHeader):
		if typeName != "" {
			log.Error(header, "file", filename, "error", fmt.Sprintf("%s (%s)", err, typeName))
		} else {
			log.Error(header, "file", filename, "error", err)
		}
	default:
		log.Error(header, "file", filename, "error", err)
	}
}
