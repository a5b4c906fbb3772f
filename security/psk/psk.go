// Package psk implements a pre-shared-key authenticated channel
// engine behind the security.Engine contract. It is deliberately not
// TLS: two fixed-size hellos, an HKDF key schedule over both nonces,
// then ChaCha20-Poly1305 sealed records with per-direction sequence
// numbers. It exists so the session adapter can be exercised end to
// end against a real sans-io record layer.
package psk

import (
	"github.com/brickingsoft/errors"
	"github.com/brickingsoft/tlstream/security"
)

const minPSKSize = 16

var (
	ErrPSKTooShort = errors.Define("psk: pre-shared key is too short")
)

type Config struct {
	// PSK is the shared secret, at least 16 bytes.
	PSK []byte
}

// NewContext builds an engine factory bound to the shared secret.
func NewContext(config Config) (sc security.Context, err error) {
	if len(config.PSK) < minPSKSize {
		err = errors.From(ErrPSKTooShort)
		return
	}
	psk := make([]byte, len(config.PSK))
	copy(psk, config.PSK)
	sc = &channelContext{psk: psk}
	return
}

type channelContext struct {
	psk []byte
}

func (c *channelContext) Client(bio security.BIO) (engine security.Engine, err error) {
	return newEngine(bio, c.psk, true)
}

func (c *channelContext) Server(bio security.BIO) (engine security.Engine, err error) {
	return newEngine(bio, c.psk, false)
}
