package sealed

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
)

const (
	KeySize      = 32
	ivSize       = 12
	tagSize      = aes.BlockSize
	versionMagic = byte('G')
	headerSize   = 1 + tagSize + ivSize
)

var (
	ErrShortBox   = errors.New("sealed box is too short")
	ErrBadVersion = errors.New("sealed box has unknown version")
)

// Cipher seals values at rest. The additional data binds a sealed box to the
// row it belongs to, so a box copied to another row fails to open.
type Cipher interface {
	Seal(aad, plainText []byte) ([]byte, error)
	Open(aad, box []byte) ([]byte, error)
}

// AESGCM is an AES-256-GCM Cipher. Boxes are packed as
// version(1) | tag(16) | iv(12) | ciphertext.
type AESGCM struct {
	aead cipher.AEAD
}

// New returns an AES-256-GCM cipher for a 32-byte key.
func New(key []byte) (*AESGCM, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("data key must be %d bytes, got %d", KeySize, len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &AESGCM{aead: aead}, nil
}

func (c *AESGCM) Seal(aad, plainText []byte) ([]byte, error) {
	// Random nonces are safe for well under 2^32 seals per key.
	nonce, err := RandomBytes(ivSize)
	if err != nil {
		return nil, err
	}
	return c.seal(aad, plainText, nonce), nil
}

func (c *AESGCM) seal(aad, plainText, nonce []byte) []byte {
	sealed := c.aead.Seal(nil, nonce, plainText, aad)
	tagStart := len(sealed) - tagSize

	box := make([]byte, 0, headerSize+tagStart)
	box = append(box, versionMagic)
	box = append(box, sealed[tagStart:]...)
	box = append(box, nonce...)
	box = append(box, sealed[:tagStart]...)
	return box
}

func (c *AESGCM) Open(aad, box []byte) ([]byte, error) {
	if len(box) < headerSize {
		return nil, ErrShortBox
	}
	if box[0] != versionMagic {
		return nil, ErrBadVersion
	}

	tag := box[1 : 1+tagSize]
	nonce := box[1+tagSize : headerSize]
	cipherText := make([]byte, 0, len(box)-headerSize+tagSize)
	cipherText = append(cipherText, box[headerSize:]...)
	cipherText = append(cipherText, tag...)

	return c.aead.Open(nil, nonce, cipherText, aad)
}

// RandomBytes returns size bytes from crypto/rand.
func RandomBytes(size int) ([]byte, error) {
	value := make([]byte, size)
	if _, err := io.ReadFull(rand.Reader, value); err != nil {
		return nil, err
	}
	return value, nil
}
