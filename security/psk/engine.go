package psk

import (
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"

	"github.com/brickingsoft/errors"
	"github.com/brickingsoft/tlstream/security"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/sys/unix"
)

var ErrWriteAfterClose = errors.Define("psk: write after close notify")

const (
	stateSendHello uint8 = iota
	stateRecvHello
	stateSendKeys
	stateRecvFinished
	stateEstablished
)

// engine is the sans-io channel state machine. All progress is made
// through the BIO, every partial read or write is resumable at the
// byte it stopped on, so a would-block outcome never loses state.
type engine struct {
	bio    security.BIO
	client bool
	psk    []byte
	state  uint8

	localRandom [randomSize]byte
	peerHello   [helloSize]byte
	peerHelloN  int

	seal    cipher.AEAD
	open    cipher.AEAD
	sealSeq uint64
	openSeq uint64
	verify  [sha256.Size]byte

	// out is wire bytes queued but not yet accepted by the BIO.
	out []byte
	// pendingWrite remembers the plaintext length already sealed into
	// out when a data write suspends, so the caller's retry with the
	// same bytes is acknowledged instead of sealed twice.
	pendingWrite int

	hdr   [recordHeaderSize]byte
	hdrN  int
	body  []byte
	bodyN int

	// plain is opened plaintext the caller's buffer could not hold.
	plain []byte

	closeSent bool
	closeRecv bool
}

func newEngine(bio security.BIO, psk []byte, client bool) (e *engine, err error) {
	// Every engine owns its copy, Close zeroes it without touching
	// the context's shared secret.
	key := make([]byte, len(psk))
	copy(key, psk)
	e = &engine{
		bio:    bio,
		client: client,
		psk:    key,
	}
	if _, err = rand.Read(e.localRandom[:]); err != nil {
		e = nil
		return
	}
	if client {
		e.out = buildHello(e.localRandom[:])
		e.state = stateSendHello
	} else {
		e.state = stateRecvHello
	}
	return
}

// Handshake advances the hello and finished exchange as far as the
// BIO allows. It returns nil only once the peer's finished record has
// verified, ErrWantRead or ErrWantWrite when suspended.
func (e *engine) Handshake() (err error) {
	for {
		switch e.state {
		case stateSendHello:
			if err = e.flush(); err != nil {
				return
			}
			e.state = stateRecvHello
		case stateRecvHello:
			if err = e.fill(e.peerHello[:], &e.peerHelloN); err != nil {
				return
			}
			peerRandom, ok := parseHello(e.peerHello[:])
			if !ok {
				err = security.NewFault("malformed hello")
				return
			}
			if err = e.deriveFromHellos(peerRandom); err != nil {
				return
			}
			if !e.client {
				e.out = append(e.out, buildHello(e.localRandom[:])...)
			}
			e.sealRecord(recordFinished, e.verify[:])
			e.state = stateSendKeys
		case stateSendKeys:
			if err = e.flush(); err != nil {
				return
			}
			e.state = stateRecvFinished
		case stateRecvFinished:
			var (
				typ byte
				pt  []byte
			)
			if typ, pt, err = e.readRecord(); err != nil {
				return
			}
			if typ != recordFinished || !hmac.Equal(pt, e.verify[:]) {
				err = security.NewFault("finished verification failed")
				return
			}
			e.state = stateEstablished
		case stateEstablished:
			return
		}
	}
}

// Read returns decrypted application bytes. The peer's close record
// surfaces as io.EOF, a truncated record without one is the abrupt
// disconnect error.
func (e *engine) Read(p []byte) (n int, err error) {
	if len(e.plain) > 0 {
		n = copy(p, e.plain)
		e.plain = e.plain[n:]
		return
	}
	if e.closeRecv {
		err = io.EOF
		return
	}
	typ, pt, rerr := e.readRecord()
	if rerr != nil {
		err = rerr
		return
	}
	switch typ {
	case recordData:
		if len(pt) == 0 {
			err = security.NewFault("empty data record")
			return
		}
		n = copy(p, pt)
		e.plain = pt[n:]
	case recordClose:
		e.closeRecv = true
		err = io.EOF
	default:
		err = security.NewFault(fmt.Sprintf("unexpected record type %d", typ))
	}
	return
}

// Write seals p into data records and pushes them at the BIO. On a
// would-block suspension the sealed records stay queued and the
// retried call with the same bytes completes without sealing again.
func (e *engine) Write(p []byte) (n int, err error) {
	if e.closeSent {
		err = errors.From(ErrWriteAfterClose)
		return
	}
	if e.pendingWrite > 0 {
		if err = e.flush(); err != nil {
			return
		}
		n = e.pendingWrite
		e.pendingWrite = 0
		return
	}
	for n < len(p) {
		chunk := len(p) - n
		if chunk > maxPlaintext {
			chunk = maxPlaintext
		}
		e.sealRecord(recordData, p[n:n+chunk])
		n += chunk
	}
	e.pendingWrite = n
	if err = e.flush(); err != nil {
		n = 0
		return
	}
	e.pendingWrite = 0
	return
}

// Shutdown sends the close record and reports ErrShutdownIncomplete
// until the peer's close has been observed.
func (e *engine) Shutdown() (err error) {
	if e.state != stateEstablished {
		return
	}
	if !e.closeSent {
		e.sealRecord(recordClose, nil)
		e.closeSent = true
	}
	if err = e.flush(); err != nil {
		err = errors.From(security.ErrShutdownIncomplete, errors.WithWrap(err))
		return
	}
	if e.closeRecv {
		return
	}
	typ, _, rerr := e.readRecord()
	if rerr != nil {
		if errors.Is(rerr, io.EOF) {
			// Peer dropped the transport instead of answering, there is
			// nothing left to wait for.
			e.closeRecv = true
			return
		}
		err = errors.From(security.ErrShutdownIncomplete, errors.WithWrap(rerr))
		return
	}
	if typ == recordClose {
		e.closeRecv = true
		return
	}
	// Application data still in flight, the close answer is behind it.
	err = errors.From(security.ErrShutdownIncomplete)
	return
}

// Close releases key material. The BIO is never touched.
func (e *engine) Close() (err error) {
	for i := range e.psk {
		e.psk[i] = 0
	}
	e.seal = nil
	e.open = nil
	e.out = nil
	e.body = nil
	e.plain = nil
	return
}

func (e *engine) deriveFromHellos(peerRandom []byte) (err error) {
	clientRandom, serverRandom := e.localRandom[:], peerRandom
	if !e.client {
		clientRandom, serverRandom = peerRandom, e.localRandom[:]
	}
	clientKey, serverKey, verify, deriveErr := deriveKeys(e.psk, clientRandom, serverRandom)
	if deriveErr != nil {
		err = security.NewFault("key schedule failed")
		return
	}
	sealKey, openKey := clientKey, serverKey
	if !e.client {
		sealKey, openKey = serverKey, clientKey
	}
	if e.seal, err = chacha20poly1305.New(sealKey); err != nil {
		return
	}
	if e.open, err = chacha20poly1305.New(openKey); err != nil {
		return
	}
	e.verify = verify
	return
}

// sealRecord encrypts one record and queues its wire bytes.
func (e *engine) sealRecord(typ byte, plaintext []byte) {
	var hdr [recordHeaderSize]byte
	putRecordHeader(hdr[:], typ, len(plaintext)+chacha20poly1305.Overhead)
	nonce := recordNonce(e.sealSeq)
	e.sealSeq++
	e.out = append(e.out, hdr[:]...)
	e.out = e.seal.Seal(e.out, nonce[:], plaintext, hdr[:])
}

// readRecord reads and opens exactly one record, resuming a partial
// header or body from the previous suspended attempt.
func (e *engine) readRecord() (typ byte, plaintext []byte, err error) {
	if e.hdrN < recordHeaderSize {
		if err = e.fill(e.hdr[:], &e.hdrN); err != nil {
			return
		}
		var ciphertextLen int
		typ, ciphertextLen = parseRecordHeader(e.hdr[:])
		if ciphertextLen < chacha20poly1305.Overhead || ciphertextLen > maxCiphertext {
			err = security.NewFault(fmt.Sprintf("record length %d out of range", ciphertextLen))
			return
		}
		e.body = make([]byte, ciphertextLen)
		e.bodyN = 0
	}
	if err = e.fill(e.body, &e.bodyN); err != nil {
		return
	}
	typ = e.hdr[2]
	nonce := recordNonce(e.openSeq)
	plaintext, err = e.open.Open(nil, nonce[:], e.body, e.hdr[:])
	if err != nil {
		err = security.NewFault("record authentication failed")
		return
	}
	e.openSeq++
	e.hdrN = 0
	e.body = nil
	e.bodyN = 0
	return
}

// fill reads from the BIO until dst is full, tracking progress in got
// across suspensions.
func (e *engine) fill(dst []byte, got *int) (err error) {
	for *got < len(dst) {
		n, rerr := e.bio.Read(dst[*got:])
		*got += n
		if rerr != nil {
			switch {
			case errors.Is(rerr, unix.EAGAIN):
				err = errors.From(security.ErrWantRead, errors.WithWrap(rerr))
			case errors.Is(rerr, io.EOF):
				// EOF without a close record, the peer tore the
				// transport down.
				err = errors.From(security.ErrUnexpectedEOF, errors.WithWrap(rerr))
			default:
				err = rerr
			}
			return
		}
	}
	return
}

// flush pushes queued wire bytes at the BIO until drained.
func (e *engine) flush() (err error) {
	for len(e.out) > 0 {
		n, werr := e.bio.Write(e.out)
		e.out = e.out[n:]
		if werr != nil {
			if errors.Is(werr, unix.EAGAIN) {
				err = errors.From(security.ErrWantWrite, errors.WithWrap(werr))
				return
			}
			err = werr
			return
		}
	}
	e.out = nil
	return
}
