package storage

import (
	"bytes"
	"crypto/rand"

	"github.com/pkg/errors"
	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
)

// Codec transforms a stored document on its way to and from disk.
type Codec interface {
	Seal(plaintext []byte) ([]byte, error)
	Open(sealed []byte) ([]byte, error)
}

var ErrBadPassphrase = errors.New("store: wrong passphrase or corrupted data")

var sealedMagic = []byte("GRC1")

const (
	saltSize     = 16
	argonTime    = 1
	argonMemory  = 64 * 1024
	argonThreads = 4
)

// PassphraseCodec derives a key with argon2id and seals with XChaCha20-Poly1305.
// Every Seal uses a fresh salt and nonce.
type PassphraseCodec struct {
	passphrase []byte
}

var _ Codec = (*PassphraseCodec)(nil)

func NewPassphraseCodec(passphrase string) *PassphraseCodec {
	return &PassphraseCodec{passphrase: []byte(passphrase)}
}

func (c *PassphraseCodec) key(salt []byte) []byte {
	return argon2.IDKey(c.passphrase, salt, argonTime, argonMemory, argonThreads, chacha20poly1305.KeySize)
}

func (c *PassphraseCodec) Seal(plaintext []byte) ([]byte, error) {
	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, errors.Wrap(err, "PassphraseCodec salt")
	}
	aead, err := chacha20poly1305.NewX(c.key(salt))
	if err != nil {
		return nil, errors.Wrap(err, "PassphraseCodec cipher")
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, errors.Wrap(err, "PassphraseCodec nonce")
	}

	out := make([]byte, 0, len(sealedMagic)+saltSize+len(nonce)+len(plaintext)+aead.Overhead())
	out = append(out, sealedMagic...)
	out = append(out, salt...)
	out = append(out, nonce...)
	return aead.Seal(out, nonce, plaintext, sealedMagic), nil
}

func (c *PassphraseCodec) Open(sealed []byte) ([]byte, error) {
	if !bytes.HasPrefix(sealed, sealedMagic) {
		return nil, ErrBadPassphrase
	}
	rest := sealed[len(sealedMagic):]
	if len(rest) < saltSize+chacha20poly1305.NonceSizeX {
		return nil, ErrBadPassphrase
	}
	salt, rest := rest[:saltSize], rest[saltSize:]
	nonce, ciphertext := rest[:chacha20poly1305.NonceSizeX], rest[chacha20poly1305.NonceSizeX:]

	aead, err := chacha20poly1305.NewX(c.key(salt))
	if err != nil {
		return nil, errors.Wrap(err, "PassphraseCodec cipher")
	}
	plaintext, err := aead.Open(nil, nonce, ciphertext, sealedMagic)
	if err != nil {
		return nil, ErrBadPassphrase
	}
	return plaintext, nil
}
