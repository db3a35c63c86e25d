// Package seal encrypts short secrets, such as the model credential, before
// they are written to the snapshot table.
package seal

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/nacl/secretbox"
)

// Prefix marks a sealed value. Values without it are treated as plaintext
// so snapshots written before a key was configured still load.
const Prefix = "sealed:v1:"

const (
	saltLen  = 16
	nonceLen = 24
	keyLen   = 32
)

var ErrOpen = errors.New("sealed value could not be opened")

// Box seals values with NaCl secretbox under a key derived from a passphrase
// with Argon2id. Every sealed value carries its own salt and nonce.
type Box struct {
	passphrase []byte

	argonTime    uint32
	argonMemory  uint32
	argonThreads uint8
}

func New(passphrase string) (*Box, error) {
	if passphrase == "" {
		return nil, errors.New("seal: empty passphrase")
	}
	return &Box{
		passphrase:   []byte(passphrase),
		argonTime:    1,
		argonMemory:  64 * 1024, // 64 MiB
		argonThreads: 4,
	}, nil
}

func (b *Box) key(salt []byte) *[keyLen]byte {
	var k [keyLen]byte
	copy(k[:], argon2.IDKey(b.passphrase, salt, b.argonTime, b.argonMemory, b.argonThreads, keyLen))
	return &k
}

// Seal encrypts plaintext. The empty string stays empty.
func (b *Box) Seal(plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}
	buf := make([]byte, saltLen+nonceLen)
	if _, err := io.ReadFull(rand.Reader, buf); err != nil {
		return "", fmt.Errorf("seal: read random: %w", err)
	}
	var nonce [nonceLen]byte
	copy(nonce[:], buf[saltLen:])

	out := secretbox.Seal(buf, []byte(plaintext), &nonce, b.key(buf[:saltLen]))
	return Prefix + base64.StdEncoding.EncodeToString(out), nil
}

// Open reverses Seal. Values without Prefix are returned unchanged.
func (b *Box) Open(value string) (string, error) {
	if !strings.HasPrefix(value, Prefix) {
		return value, nil
	}
	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(value, Prefix))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrOpen, err)
	}
	if len(raw) < saltLen+nonceLen+secretbox.Overhead {
		return "", ErrOpen
	}
	var nonce [nonceLen]byte
	copy(nonce[:], raw[saltLen:saltLen+nonceLen])

	plain, ok := secretbox.Open(nil, raw[saltLen+nonceLen:], &nonce, b.key(raw[:saltLen]))
	if !ok {
		return "", ErrOpen
	}
	return string(plain), nil
}
