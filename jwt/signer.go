package jwt

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// SigningMethod selects the algorithm used by Signer.
type SigningMethod string

const (
	MethodHS256   SigningMethod = "hs256"
	MethodEd25519 SigningMethod = "ed25519"
)

// SignerConfig configures a Signer.
type SignerConfig struct {
	AccessTTL     time.Duration
	SigningMethod SigningMethod
	// PrivateKey is the HMAC secret for HS256, or an Ed25519 private key
	// (raw or PEM).
	PrivateKey []byte
	// PublicKey is the Ed25519 verify key (raw or PEM). Ignored for HS256.
	PublicKey []byte
	Issuer    string
	Leeway    time.Duration
}

// Signer issues and verifies access tokens.
type Signer struct {
	config SignerConfig
	method jwt.SigningMethod
	sign   any
	verify any
	now    func() time.Time
}

// NewSigner validates cfg. Leeway is capped at two minutes.
func NewSigner(cfg SignerConfig) (*Signer, error) {
	if cfg.AccessTTL <= 0 {
		return nil, errors.New("invalid TTL configuration")
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("invalid leeway configuration")
	}
	cfg.Issuer = strings.TrimSpace(cfg.Issuer)

	s := &Signer{config: cfg, now: time.Now}
	switch cfg.SigningMethod {
	case MethodHS256, "":
		if len(cfg.PrivateKey) < 32 {
			return nil, errors.New("hs256 requires a secret of at least 32 bytes")
		}
		s.config.SigningMethod = MethodHS256
		s.method = jwt.SigningMethodHS256
		s.sign, s.verify = cfg.PrivateKey, cfg.PrivateKey
	case MethodEd25519:
		priv, err := parseEdPrivateKey(cfg.PrivateKey)
		if err != nil {
			return nil, err
		}
		s.method = jwt.SigningMethodEdDSA
		s.sign = priv
		if len(cfg.PublicKey) > 0 {
			pub, err := parseEdPublicKey(cfg.PublicKey)
			if err != nil {
				return nil, err
			}
			s.verify = pub
		} else {
			s.verify = priv.Public()
		}
	default:
		return nil, fmt.Errorf("unsupported signing method %q", cfg.SigningMethod)
	}
	return s, nil
}

// Issue mints an access token for subject.
func (s *Signer) Issue(subject string) (string, error) {
	if strings.TrimSpace(subject) == "" {
		return "", errors.New("empty subject")
	}
	now := s.now()
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.config.AccessTTL)),
		Issuer:    s.config.Issuer,
	}
	return jwt.NewWithClaims(s.method, claims).SignedString(s.sign)
}

// Verify checks signature, algorithm, expiry and issuer.
func (s *Signer) Verify(token string) (*Claims, error) {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{s.method.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	}
	if s.config.Leeway > 0 {
		options = append(options, jwt.WithLeeway(s.config.Leeway))
	}
	if s.config.Issuer != "" {
		options = append(options, jwt.WithIssuer(s.config.Issuer))
	}

	var rc jwt.RegisteredClaims
	parsed, err := jwt.NewParser(options...).ParseWithClaims(token, &rc, func(t *jwt.Token) (any, error) {
		if t.Method.Alg() != s.method.Alg() {
			return nil, fmt.Errorf("unexpected signing algorithm: %s", t.Method.Alg())
		}
		return s.verify, nil
	})
	if err != nil {
		return nil, err
	}
	if !parsed.Valid || rc.Subject == "" {
		return nil, jwt.ErrTokenInvalidClaims
	}
	return fromRegistered(&rc), nil
}

func parseEdPrivateKey(key []byte) (ed25519.PrivateKey, error) {
	if len(key) == ed25519.PrivateKeySize {
		return ed25519.PrivateKey(key), nil
	}
	parsed, err := jwt.ParseEdPrivateKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("invalid ed25519 private key")
	}
	edKey, ok := parsed.(ed25519.PrivateKey)
	if !ok {
		return nil, errors.New("invalid ed25519 private key type")
	}
	return edKey, nil
}

func parseEdPublicKey(key []byte) (ed25519.PublicKey, error) {
	if len(key) == ed25519.PublicKeySize {
		return ed25519.PublicKey(key), nil
	}
	parsed, err := jwt.ParseEdPublicKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("invalid ed25519 public key")
	}
	edKey, ok := parsed.(ed25519.PublicKey)
	if !ok {
		return nil, errors.New("invalid ed25519 public key type")
	}
	return edKey, nil
}
