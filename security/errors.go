package security

import (
	"github.com/brickingsoft/errors"
)

var (
	ErrSetup              = errors.Define("security: engine setup failed")
	ErrWantRead           = errors.Define("security: engine wants read")
	ErrWantWrite          = errors.Define("security: engine wants write")
	ErrWantConnect        = errors.Define("security: engine wants connect continuation")
	ErrWantAccept         = errors.Define("security: engine wants accept continuation")
	ErrWantLookup         = errors.Define("security: engine wants external lookup")
	ErrShutdownIncomplete = errors.Define("security: shutdown incomplete")
	ErrFault              = errors.Define("security: protocol fault")
	ErrUnexpectedEOF      = errors.Define("security: connection closed unexpectedly")
	ErrSessionBusy        = errors.Define("security: concurrent session use")
)

const errMetaDiagnosticKey = "diagnostic"

// NewFault builds a fatal protocol fault carrying the engine's
// diagnostic text.
func NewFault(diagnostic string) error {
	return errors.From(ErrFault, errors.WithMeta(errMetaDiagnosticKey, diagnostic))
}

func IsSetup(err error) bool {
	return errors.Is(err, ErrSetup)
}

func IsWantRead(err error) bool {
	return errors.Is(err, ErrWantRead)
}

func IsWantWrite(err error) bool {
	return errors.Is(err, ErrWantWrite)
}

func IsShutdownIncomplete(err error) bool {
	return errors.Is(err, ErrShutdownIncomplete)
}

func IsFault(err error) bool {
	return errors.Is(err, ErrFault)
}

func IsUnexpectedEOF(err error) bool {
	return errors.Is(err, ErrUnexpectedEOF)
}
