package psk

import (
	"crypto/sha256"
	"encoding/binary"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

const (
	protocolMagic   = "PSC1"
	protocolVersion = 1

	randomSize = 32
	helloSize  = len(protocolMagic) + 1 + randomSize

	recordHeaderSize = 3
	maxPlaintext     = 16 * 1024
	maxCiphertext    = maxPlaintext + chacha20poly1305.Overhead

	recordFinished byte = 1
	recordData     byte = 2
	recordClose    byte = 3
)

var keyScheduleInfo = []byte("tlstream psk channel v1")

// deriveKeys runs the HKDF schedule over the shared secret and both
// hello randoms. The transcript hash doubles as the finished payload
// each side must prove it can seal.
func deriveKeys(psk []byte, clientRandom []byte, serverRandom []byte) (clientKey []byte, serverKey []byte, verify [sha256.Size]byte, err error) {
	salt := make([]byte, 0, randomSize*2)
	salt = append(salt, clientRandom...)
	salt = append(salt, serverRandom...)

	schedule := hkdf.New(sha256.New, psk, salt, keyScheduleInfo)
	clientKey = make([]byte, chacha20poly1305.KeySize)
	if _, err = io.ReadFull(schedule, clientKey); err != nil {
		return
	}
	serverKey = make([]byte, chacha20poly1305.KeySize)
	if _, err = io.ReadFull(schedule, serverKey); err != nil {
		return
	}

	transcript := make([]byte, 0, len(salt)+len(keyScheduleInfo))
	transcript = append(transcript, salt...)
	transcript = append(transcript, keyScheduleInfo...)
	verify = sha256.Sum256(transcript)
	return
}

func recordNonce(seq uint64) (nonce [chacha20poly1305.NonceSize]byte) {
	binary.BigEndian.PutUint64(nonce[4:], seq)
	return
}

func putRecordHeader(hdr []byte, typ byte, ciphertextLen int) {
	binary.BigEndian.PutUint16(hdr[:2], uint16(ciphertextLen))
	hdr[2] = typ
}

func parseRecordHeader(hdr []byte) (typ byte, ciphertextLen int) {
	ciphertextLen = int(binary.BigEndian.Uint16(hdr[:2]))
	typ = hdr[2]
	return
}

func buildHello(random []byte) (hello []byte) {
	hello = make([]byte, 0, helloSize)
	hello = append(hello, protocolMagic...)
	hello = append(hello, protocolVersion)
	hello = append(hello, random...)
	return
}

func parseHello(hello []byte) (random []byte, ok bool) {
	if len(hello) != helloSize {
		return
	}
	if string(hello[:len(protocolMagic)]) != protocolMagic {
		return
	}
	if hello[len(protocolMagic)] != protocolVersion {
		return
	}
	random = hello[len(protocolMagic)+1:]
	ok = true
	return
}
