package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"
)

// Session token errors.
var (
	ErrTokenInvalid = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
)

// TokenMaxAge is how long a session token stays valid after issuance.
const TokenMaxAge = 24 * time.Hour

// Claims is the session token payload. Timestamp is issuance time in
// Unix milliseconds. Legacy marks a token that arrived in the deprecated
// unsigned format; it never round-trips back into a serialized token.
type Claims struct {
	UserID    string `json:"userId"`
	Email     string `json:"email"`
	Role      string `json:"role"`
	Timestamp int64  `json:"timestamp"`

	Legacy bool `json:"-"`
}

// TokenCodec creates and verifies session tokens. The wire format is
// base64(payload JSON) + "." + hex(HMAC-SHA256(payload, secret)).
//
// A bare base64 payload with no signature is the deprecated legacy format;
// it is accepted only while allowLegacy is set, is logged on every use, and
// callers must still validate the referenced user against the live store.
type TokenCodec struct {
	secret      []byte
	allowLegacy bool
	logger      *slog.Logger
	now         func() time.Time
}

// NewTokenCodec creates a codec signing with the given secret.
func NewTokenCodec(secret []byte, allowLegacy bool, logger *slog.Logger) *TokenCodec {
	return &TokenCodec{
		secret:      secret,
		allowLegacy: allowLegacy,
		logger:      logger,
		now:         time.Now,
	}
}

// Create issues a signed token for the given identity.
func (c *TokenCodec) Create(userID, email, role string) (string, error) {
	payload, err := json.Marshal(Claims{
		UserID:    userID,
		Email:     email,
		Role:      role,
		Timestamp: c.now().UnixMilli(),
	})
	if err != nil {
		return "", fmt.Errorf("marshal token payload: %w", err)
	}
	return base64.StdEncoding.EncodeToString(payload) + "." + c.sign(payload), nil
}

// Verify checks a token string and returns its claims. It rejects bad
// signatures, malformed or incomplete payloads, and tokens older than
// TokenMaxAge. Callers must additionally check that the referenced user
// still exists and is active before trusting the claims.
func (c *TokenCodec) Verify(token string) (*Claims, error) {
	encoded, sig, signed := strings.Cut(token, ".")

	payload, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, ErrTokenInvalid
	}

	legacy := false
	if signed {
		if !hmac.Equal([]byte(c.sign(payload)), []byte(sig)) {
			return nil, ErrTokenInvalid
		}
	} else {
		if !c.allowLegacy {
			return nil, ErrTokenInvalid
		}
		legacy = true
	}

	var claims Claims
	if err := json.Unmarshal(payload, &claims); err != nil {
		return nil, ErrTokenInvalid
	}
	if claims.UserID == "" || claims.Email == "" || claims.Role == "" {
		return nil, ErrTokenInvalid
	}

	age := c.now().Sub(time.UnixMilli(claims.Timestamp))
	if age > TokenMaxAge || age < 0 {
		return nil, ErrTokenExpired
	}

	if legacy {
		claims.Legacy = true
		c.logger.Warn("accepted legacy unsigned token; client should re-authenticate",
			"user_id", claims.UserID)
	}
	return &claims, nil
}

func (c *TokenCodec) sign(payload []byte) string {
	mac := hmac.New(sha256.New, c.secret)
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// BearerToken extracts the token from an "Authorization: Bearer <token>"
// header value. Returns "" when the header is absent or malformed.
func BearerToken(header string) string {
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}

// DeriveSecret returns the token signing secret. An explicitly configured
// secret is used as-is; otherwise a secret is derived by hashing ambient
// host material, which keeps tokens working across restarts on one host
// but is weaker than a configured secret, so the fallback is logged.
func DeriveSecret(configured string, logger *slog.Logger) []byte {
	if configured != "" {
		return []byte(configured)
	}
	hostname, _ := os.Hostname()
	exe, _ := os.Executable()
	sum := sha256.Sum256([]byte("pitchside:" + hostname + ":" + exe))
	logger.Warn("auth.token_secret not configured; deriving a host-bound secret, set a real secret in production")
	return sum[:]
}
