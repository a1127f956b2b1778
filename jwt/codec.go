package jwt

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Parse failure classification. Callers match with errors.Is; the wrapped
// text carries the underlying parser reason.
var (
	ErrInvalid = errors.New("invalid token")
	ErrExpired = errors.New("token expired")
)

// TokenType distinguishes the two halves of a pair. A refresh token is never
// accepted where an access token is expected and vice versa.
type TokenType string

const (
	TypeAccess  TokenType = "access"
	TypeRefresh TokenType = "refresh"
)

// Claims is the payload carried by both token types. SessionID binds the
// token to its server-side session record; TokenID (jti, in RegisteredClaims)
// identifies this specific token instance for blacklisting.
type Claims struct {
	SessionID   string    `json:"sid"`
	DeviceID    string    `json:"did,omitempty"`
	Type        TokenType `json:"typ"`
	Permissions []string  `json:"perms,omitempty"`
	jwt.RegisteredClaims
}

// Config holds the token shape options. AccessTTL and RefreshTTL become the
// exp horizon of the respective token type; Issuer and Audience are embedded
// on issue and enforced on parse.
type Config struct {
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	Issuer     string
	Audience   string
	Leeway     time.Duration
}

// Codec signs and verifies token pairs against a [Keyring].
type Codec struct {
	cfg  Config
	keys *Keyring

	now func() time.Time
}

// NewCodec validates cfg and binds the codec to keys.
func NewCodec(cfg Config, keys *Keyring) (*Codec, error) {
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 {
		return nil, errors.New("invalid TTL configuration")
	}
	if cfg.RefreshTTL < cfg.AccessTTL {
		return nil, errors.New("refresh TTL must not be shorter than access TTL")
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("invalid leeway configuration")
	}
	if keys == nil {
		return nil, errors.New("keyring required")
	}
	return &Codec{cfg: cfg, keys: keys, now: time.Now}, nil
}

// AccessTTL reports the configured access-token lifetime.
func (c *Codec) AccessTTL() time.Duration { return c.cfg.AccessTTL }

// RefreshTTL reports the configured refresh-token lifetime.
func (c *Codec) RefreshTTL() time.Duration { return c.cfg.RefreshTTL }

// Issue signs one token of the given type. jti must be fresh per call; the
// same (subject, sid, did, perms) tuple is shared by both halves of a pair
// while each half gets its own jti and expiry horizon.
func (c *Codec) Issue(typ TokenType, subject, sessionID, deviceID, jti string, perms []string) (string, error) {
	ttl := c.cfg.AccessTTL
	if typ == TypeRefresh {
		ttl = c.cfg.RefreshTTL
	}

	now := c.now()
	claims := Claims{
		SessionID:   sessionID,
		DeviceID:    deviceID,
		Type:        typ,
		Permissions: perms,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ID:        jti,
			Issuer:    c.cfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	if c.cfg.Audience != "" {
		claims.Audience = jwt.ClaimStrings{c.cfg.Audience}
	}

	key := c.keys.SigningKey()
	token := jwt.NewWithClaims(c.signingMethod(), claims)
	token.Header["kid"] = key.ID

	signed, err := token.SignedString(signKey(c.keys.method, key))
	if err != nil {
		return "", fmt.Errorf("sign %s token: %w", typ, err)
	}
	return signed, nil
}

// Parse verifies signature, expiry, issuer, and audience. The kid header is
// resolved through the keyring, so tokens signed under the previous key keep
// verifying until the rotation grace window closes. Expiry is reported as
// [ErrExpired]; every other failure is [ErrInvalid] with the parser reason
// attached.
func (c *Codec) Parse(tokenStr string) (*Claims, error) {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{c.signingMethod().Alg()}),
		jwt.WithExpirationRequired(),
	}
	if c.cfg.Leeway > 0 {
		options = append(options, jwt.WithLeeway(c.cfg.Leeway))
	}
	if c.cfg.Issuer != "" {
		options = append(options, jwt.WithIssuer(c.cfg.Issuer))
	}
	if c.cfg.Audience != "" {
		options = append(options, jwt.WithAudience(c.cfg.Audience))
	}

	parser := jwt.NewParser(options...)
	token, err := parser.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		kid, _ := t.Header["kid"].(string)
		if kid == "" {
			return nil, errors.New("missing kid")
		}
		key, ok := c.keys.VerificationKey(kid)
		if !ok {
			return nil, errors.New("unknown kid")
		}
		return verifyKey(c.keys.method, key), nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%w: %v", ErrExpired, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("%w: unexpected claims type", ErrInvalid)
	}
	if claims.ID == "" || claims.SessionID == "" {
		return nil, fmt.Errorf("%w: missing token or session id", ErrInvalid)
	}
	switch claims.Type {
	case TypeAccess, TypeRefresh:
	default:
		return nil, fmt.Errorf("%w: unknown token type %q", ErrInvalid, claims.Type)
	}

	return claims, nil
}

func (c *Codec) signingMethod() jwt.SigningMethod {
	if c.keys.method == MethodHS256 {
		return jwt.SigningMethodHS256
	}
	return jwt.SigningMethodEdDSA
}

func signKey(method SigningMethod, key Key) interface{} {
	if method == MethodHS256 {
		return key.Secret
	}
	return ed25519PrivateKey(key)
}

func verifyKey(method SigningMethod, key Key) interface{} {
	if method == MethodHS256 {
		return key.Secret
	}
	return ed25519PublicKey(key)
}
