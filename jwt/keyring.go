package jwt

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"
)

// ErrKeyRotation is returned when rotation is attempted with unusable key
// material. Verification failures never produce it.
var ErrKeyRotation = errors.New("key rotation error")

// SigningMethod selects the token signature scheme.
type SigningMethod string

const (
	// MethodHS256 signs with a shared secret.
	MethodHS256 SigningMethod = "hs256"
	// MethodEd25519 signs with an Ed25519 keypair.
	MethodEd25519 SigningMethod = "ed25519"
)

// Key is one generation of signing material. HS256 uses Secret for both
// signing and verification; Ed25519 uses Private to sign and Public to
// verify. ID is embedded as the kid header of every token signed under it.
type Key struct {
	ID      string
	Secret  []byte
	Private []byte
	Public  []byte
}

// keyMaterial is one immutable rotation snapshot. Readers always observe a
// complete (current, previous, rotatedAt) tuple; rotation swaps the whole
// snapshot through an atomic pointer rather than mutating fields in place.
type keyMaterial struct {
	current   Key
	previous  *Key
	rotatedAt time.Time
}

// Keyring owns signing key material and rotation state. The current key
// signs; the previous key, while present, verifies only, and only until
// rotatedAt + grace elapses.
type Keyring struct {
	method   SigningMethod
	interval time.Duration
	grace    time.Duration
	snap     atomic.Pointer[keyMaterial]

	now func() time.Time
}

// NewKeyring validates the initial key and starts a rotation clock at now.
// grace must cover the longest-lived token the initial key can sign, so
// callers pass max(access TTL, refresh TTL) or more.
func NewKeyring(method SigningMethod, initial Key, interval, grace time.Duration) (*Keyring, error) {
	if interval <= 0 {
		return nil, fmt.Errorf("%w: non-positive rotation interval", ErrKeyRotation)
	}
	if grace <= 0 {
		return nil, fmt.Errorf("%w: non-positive grace period", ErrKeyRotation)
	}
	if err := validateKey(method, initial); err != nil {
		return nil, err
	}

	k := &Keyring{
		method:   method,
		interval: interval,
		grace:    grace,
		now:      time.Now,
	}
	k.snap.Store(&keyMaterial{
		current:   initial,
		rotatedAt: k.now(),
	})
	return k, nil
}

// Method reports the configured signature scheme.
func (k *Keyring) Method() SigningMethod {
	return k.method
}

// ShouldRotate reports whether the rotation interval has elapsed since the
// last rotation (or since construction). It never rotates by itself; the
// operator calls [Keyring.Rotate] with fresh material.
func (k *Keyring) ShouldRotate() bool {
	snap := k.snap.Load()
	return k.now().Sub(snap.rotatedAt) >= k.interval
}

// RotatedAt returns the time of the last rotation.
func (k *Keyring) RotatedAt() time.Time {
	return k.snap.Load().rotatedAt
}

// Rotate atomically replaces the current key with next, demoting the current
// key to verification-only duty for the grace window. In-flight verifications
// see either the full pre-rotation or full post-rotation snapshot.
func (k *Keyring) Rotate(next Key) error {
	if err := validateKey(k.method, next); err != nil {
		return err
	}

	for {
		old := k.snap.Load()
		if next.ID == old.current.ID {
			return fmt.Errorf("%w: new key reuses current key id %q", ErrKeyRotation, next.ID)
		}
		prev := old.current
		updated := &keyMaterial{
			current:   next,
			previous:  &prev,
			rotatedAt: k.now(),
		}
		if k.snap.CompareAndSwap(old, updated) {
			return nil
		}
	}
}

// SigningKey returns the key used to sign new tokens. The previous key is
// never returned here.
func (k *Keyring) SigningKey() Key {
	return k.snap.Load().current
}

// VerificationKey resolves a token's kid to usable key material. The current
// key always verifies; the previous key verifies only inside its grace
// window. Once the window elapses the previous generation is dead and any
// token still bearing its kid fails verification.
func (k *Keyring) VerificationKey(kid string) (Key, bool) {
	snap := k.snap.Load()
	if kid == snap.current.ID {
		return snap.current, true
	}
	if snap.previous != nil && kid == snap.previous.ID {
		if k.now().Before(snap.rotatedAt.Add(k.grace)) {
			return *snap.previous, true
		}
	}
	return Key{}, false
}

func ed25519PrivateKey(key Key) ed25519.PrivateKey {
	return ed25519.PrivateKey(key.Private)
}

func ed25519PublicKey(key Key) ed25519.PublicKey {
	return ed25519.PublicKey(key.Public)
}

func validateKey(method SigningMethod, key Key) error {
	if strings.TrimSpace(key.ID) == "" {
		return fmt.Errorf("%w: empty key id", ErrKeyRotation)
	}
	switch method {
	case MethodHS256:
		if len(key.Secret) == 0 {
			return fmt.Errorf("%w: hs256 requires a secret", ErrKeyRotation)
		}
	case MethodEd25519:
		if len(key.Private) != ed25519.PrivateKeySize {
			return fmt.Errorf("%w: invalid ed25519 private key", ErrKeyRotation)
		}
		if len(key.Public) != ed25519.PublicKeySize {
			return fmt.Errorf("%w: invalid ed25519 public key", ErrKeyRotation)
		}
	default:
		return fmt.Errorf("%w: unsupported signing method %q", ErrKeyRotation, method)
	}
	return nil
}
