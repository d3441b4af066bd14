// internal/invite/invite.go
package invite

import (
	"crypto/ed25519"
	"fmt"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jason-s-yu/codearena/internal/common"
)

const issuer = "codearena"

// Issuer signs and verifies private-room invites. A token names one room and
// the one user it admits ("sub").
type Issuer struct {
	privateKey ed25519.PrivateKey
	publicKey  ed25519.PublicKey
	ttl        time.Duration
	now        func() time.Time
}

// New generates a fresh ed25519 key pair. Tokens do not survive a restart,
// and neither do the rooms they point at.
func New(ttl time.Duration) (*Issuer, error) {
	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to generate ed25519 key pair: %w", err)
	}
	return &Issuer{privateKey: priv, publicKey: pub, ttl: ttl, now: time.Now}, nil
}

// NewFromPath reads raw ed25519 keys from disk.
func NewFromPath(privatePath, publicPath string, ttl time.Duration) (*Issuer, error) {
	privateKeyData, err := os.ReadFile(privatePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read private key file: %w", err)
	}
	publicKeyData, err := os.ReadFile(publicPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read public key file: %w", err)
	}
	if len(privateKeyData) != ed25519.PrivateKeySize || len(publicKeyData) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("invalid ed25519 key sizes %d/%d", len(privateKeyData), len(publicKeyData))
	}
	return &Issuer{
		privateKey: ed25519.PrivateKey(privateKeyData),
		publicKey:  ed25519.PublicKey(publicKeyData),
		ttl:        ttl,
		now:        time.Now,
	}, nil
}

// Create signs an invite for guestUserID into roomID.
func (i *Issuer) Create(roomID uuid.UUID, guestUserID string) (string, error) {
	if guestUserID == "" {
		return "", common.Errorf(common.ErrInvalidInvite, "guest user id is required")
	}
	now := i.now()
	claims := jwt.MapClaims{
		"sub":  guestUserID,
		"room": roomID.String(),
		"iss":  issuer,
		"iat":  now.Unix(),
	}
	if i.ttl > 0 {
		claims["exp"] = now.Add(i.ttl).Unix()
	}
	token := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims)
	return token.SignedString(i.privateKey)
}

// Verify checks a token and returns the room and guest it names.
func (i *Issuer) Verify(tokenString string) (uuid.UUID, string, error) {
	t, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodEd25519); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return i.publicKey, nil
	}, jwt.WithIssuer(issuer), jwt.WithTimeFunc(i.now))
	if err != nil {
		return uuid.Nil, "", fmt.Errorf("%w: %v", common.ErrInvalidInvite, err)
	}

	claims, ok := t.Claims.(jwt.MapClaims)
	if !ok || !t.Valid {
		return uuid.Nil, "", common.ErrInvalidInvite
	}
	guest, ok := claims["sub"].(string)
	if !ok || guest == "" {
		return uuid.Nil, "", common.Errorf(common.ErrInvalidInvite, "missing sub")
	}
	roomStr, _ := claims["room"].(string)
	roomID, err := uuid.Parse(roomStr)
	if err != nil {
		return uuid.Nil, "", common.Errorf(common.ErrInvalidInvite, "bad room claim")
	}
	return roomID, guest, nil
}
