package credential

import (
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/btcsuite/btcutil/base58"

	"github.com/doodlesbykumbi/membership-gateway/pkg/sealed"
)

// SeedSize is the length of an ed25519 seed.
const SeedSize = ed25519.SeedSize

const didKeyPrefix = "did:key:z"

// multicodec varint for ed25519-pub
var ed25519Multicodec = []byte{0xed, 0x01}

var ErrInvalidDID = errors.New("invalid did:key")

// GenerateSeed returns a fresh random seed.
func GenerateSeed() ([]byte, error) {
	return sealed.RandomBytes(SeedSize)
}

// Fingerprint is the hex sha256 of a public key.
func Fingerprint(pub ed25519.PublicKey) string {
	sum := sha256.Sum256(pub)
	return hex.EncodeToString(sum[:])
}

// DIDFromPublicKey encodes pub as a did:key identifier.
func DIDFromPublicKey(pub ed25519.PublicKey) string {
	buf := make([]byte, 0, len(ed25519Multicodec)+len(pub))
	buf = append(buf, ed25519Multicodec...)
	buf = append(buf, pub...)
	return didKeyPrefix + base58.Encode(buf)
}

// PublicKeyFromDID decodes an ed25519 did:key identifier.
func PublicKeyFromDID(did string) (ed25519.PublicKey, error) {
	if !strings.HasPrefix(did, didKeyPrefix) {
		return nil, ErrInvalidDID
	}
	raw := base58.Decode(strings.TrimPrefix(did, didKeyPrefix))
	if len(raw) != len(ed25519Multicodec)+ed25519.PublicKeySize ||
		raw[0] != ed25519Multicodec[0] || raw[1] != ed25519Multicodec[1] {
		return nil, ErrInvalidDID
	}
	return ed25519.PublicKey(raw[len(ed25519Multicodec):]), nil
}

func keyFromSeed(seed []byte) (ed25519.PrivateKey, error) {
	if len(seed) != SeedSize {
		return nil, fmt.Errorf("signing seed must be %d bytes, got %d", SeedSize, len(seed))
	}
	return ed25519.NewKeyFromSeed(seed), nil
}
