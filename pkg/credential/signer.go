package credential

import (
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// RequestTokenTTL bounds how long a signed graph request stays valid.
const RequestTokenTTL = 60 * time.Second

// RequestClaims are carried by the JWS attached to every graph mutation.
type RequestClaims struct {
	BodySHA256 string `json:"body_sha256"`
	jwt.RegisteredClaims
}

// Signer is the resource-scoped signing identity derived from a seed.
type Signer struct {
	resourceID  string
	key         ed25519.PrivateKey
	did         string
	fingerprint string

	now func() time.Time
}

// NewSigner derives the identity of resourceID from its 32-byte seed.
func NewSigner(resourceID string, seed []byte) (*Signer, error) {
	key, err := keyFromSeed(seed)
	if err != nil {
		return nil, err
	}
	pub := key.Public().(ed25519.PublicKey)
	return &Signer{
		resourceID:  resourceID,
		key:         key,
		did:         DIDFromPublicKey(pub),
		fingerprint: Fingerprint(pub),
		now:         time.Now,
	}, nil
}

func (s *Signer) ResourceID() string { return s.resourceID }

// DID is the did:key identifier of the resource identity.
func (s *Signer) DID() string { return s.did }

func (s *Signer) Fingerprint() string { return s.fingerprint }

func (s *Signer) PublicKey() ed25519.PublicKey {
	return s.key.Public().(ed25519.PublicKey)
}

// SignRequest produces a compact EdDSA JWS binding body to this identity.
func (s *Signer) SignRequest(body []byte) (string, error) {
	now := s.now()
	sum := sha256.Sum256(body)
	claims := RequestClaims{
		BodySHA256: hex.EncodeToString(sum[:]),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.did,
			Subject:   s.resourceID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(RequestTokenTTL)),
			ID:        uuid.NewString(),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims)
	token.Header["kid"] = s.did
	return token.SignedString(s.key)
}

var ErrBodyMismatch = errors.New("request body does not match signature")

// VerifyRequest checks a request JWS against body. The verification key is
// recovered from the issuer DID.
func VerifyRequest(raw string, body []byte) (*RequestClaims, error) {
	claims := &RequestClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		iss, err := t.Claims.GetIssuer()
		if err != nil {
			return nil, err
		}
		return PublicKeyFromDID(iss)
	}, jwt.WithValidMethods([]string{jwt.SigningMethodEdDSA.Alg()}), jwt.WithIssuedAt())
	if err != nil {
		return nil, fmt.Errorf("invalid request signature: %w", err)
	}

	sum := sha256.Sum256(body)
	if claims.BodySHA256 != hex.EncodeToString(sum[:]) {
		return nil, ErrBodyMismatch
	}
	return claims, nil
}
