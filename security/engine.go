// Package security integrates a protocol engine with a non-blocking
// reactor-driven connection. The Session adapter drives the engine
// handshake, translates engine signals into read/write results and
// readiness interest, and sequences the bidirectional shutdown. The
// engine itself, the record protocol and the credential policy all
// live behind the Engine and Context contracts.
package security

// BIO is the engine's non-blocking view of the wire. Read returns
// io.EOF at end of stream; would-block and interrupt surface as raw
// errno so the engine can decide between suspension and propagation.
type BIO interface {
	Read(p []byte) (n int, err error)
	Write(p []byte) (n int, err error)
}

// Engine is a sans-io protocol state machine bound to one connection.
//
// Every operation is non-blocking. An operation that cannot proceed
// without transport readiness returns ErrWantRead or ErrWantWrite,
// the caller re-invokes it after the readiness is met. Read reports
// the peer's orderly close as io.EOF. Transport-level failures pass
// the raw errno through unmodified. Malformed peer behavior is a
// fault built with NewFault.
type Engine interface {
	// Handshake advances the handshake as far as transport readiness
	// allows. A nil result means the handshake is complete.
	Handshake() (err error)
	Read(p []byte) (n int, err error)
	Write(p []byte) (n int, err error)
	// Shutdown sends the close-notify equivalent. It reports
	// ErrShutdownIncomplete until the peer's close has been seen.
	Shutdown() (err error)
	// Close releases the engine. It never touches the wire.
	Close() (err error)
}

// Context is the engine factory bound to loaded credentials and
// policy, shared across connections. Implementations must return a
// fresh Engine per call.
type Context interface {
	Client(bio BIO) (engine Engine, err error)
	Server(bio BIO) (engine Engine, err error)
}
