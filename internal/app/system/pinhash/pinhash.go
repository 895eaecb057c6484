// Package pinhash stores and checks PIN credentials.
//
// Credentials are encoded as
//
//	$pbkdf2-sha256$i=<iterations>$<base64 salt>$<base64 key>
//
// Verify also accepts bcrypt hashes written by older deployments.
package pinhash

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/crypto/pbkdf2"
)

const (
	Algorithm     = "pbkdf2-sha256"
	MinIterations = 100_000
	SaltLen       = 16
	KeyLen        = 32

	// maxIterations bounds the work a stored value can demand.
	maxIterations = 10_000_000
)

var b64 = base64.RawStdEncoding

// Hasher derives and checks salted PIN credentials. It is safe for
// concurrent use.
type Hasher struct {
	iterations int
	log        *zap.Logger
}

// New returns a Hasher using the given PBKDF2 iteration count. Counts below
// MinIterations are raised to it.
func New(iterations int, log *zap.Logger) *Hasher {
	if iterations < MinIterations {
		iterations = MinIterations
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Hasher{iterations: iterations, log: log}
}

// Hash returns a fresh credential for pin. Two calls never return the same
// value because each draws a new salt.
func (h *Hasher) Hash(pin string) (string, error) {
	salt := make([]byte, SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("read salt: %w", err)
	}
	key := pbkdf2.Key([]byte(pin), salt, h.iterations, KeyLen, sha256.New)
	return fmt.Sprintf("$%s$i=%d$%s$%s", Algorithm, h.iterations, b64.EncodeToString(salt), b64.EncodeToString(key)), nil
}

// Verify reports whether pin matches stored. Malformed stored values and
// primitive failures yield false and are logged, never returned.
func (h *Hasher) Verify(pin, stored string) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			h.log.Error("pin credential check panicked", zap.Any("panic", r))
			ok = false
		}
	}()

	if isBcrypt(stored) {
		err := bcrypt.CompareHashAndPassword([]byte(stored), []byte(pin))
		if err != nil && !errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			h.log.Warn("malformed bcrypt pin credential", zap.Error(err))
		}
		return err == nil
	}

	iter, salt, want, err := parse(stored)
	if err != nil {
		h.log.Warn("malformed pin credential", zap.Error(err))
		return false
	}
	got := pbkdf2.Key([]byte(pin), salt, iter, len(want), sha256.New)
	return subtle.ConstantTimeCompare(got, want) == 1
}

// NeedsRehash reports whether stored should be replaced by a fresh Hash,
// either because it uses an older scheme or fewer iterations.
func (h *Hasher) NeedsRehash(stored string) bool {
	iter, _, _, err := parse(stored)
	if err != nil {
		return true
	}
	return iter < h.iterations
}

func isBcrypt(s string) bool {
	return strings.HasPrefix(s, "$2a$") || strings.HasPrefix(s, "$2b$") || strings.HasPrefix(s, "$2y$")
}

func parse(stored string) (iter int, salt, key []byte, err error) {
	parts := strings.Split(stored, "$")
	if len(parts) != 5 || parts[0] != "" {
		return 0, nil, nil, errors.New("unexpected field count")
	}
	if parts[1] != Algorithm {
		return 0, nil, nil, fmt.Errorf("unsupported algorithm %q", parts[1])
	}
	if !strings.HasPrefix(parts[2], "i=") {
		return 0, nil, nil, errors.New("missing iteration count")
	}
	iter, err = strconv.Atoi(strings.TrimPrefix(parts[2], "i="))
	if err != nil || iter < 1 || iter > maxIterations {
		return 0, nil, nil, errors.New("bad iteration count")
	}
	if salt, err = b64.DecodeString(parts[3]); err != nil || len(salt) == 0 {
		return 0, nil, nil, errors.New("bad salt")
	}
	if key, err = b64.DecodeString(parts[4]); err != nil || len(key) == 0 {
		return 0, nil, nil, errors.New("bad key")
	}
	return iter, salt, key, nil
}

// MinIndexKeyLen is the shortest accepted installation key for Indexer.
const MinIndexKeyLen = 16

// Indexer maps a PIN to a deterministic, non-reversible lookup key using an
// installation-wide secret. Equal PINs always map to equal indexes, which is
// what lets the store enforce PIN uniqueness and resolve a bare PIN directly.
type Indexer struct {
	key []byte
}

// NewIndexer returns an Indexer keyed by secret.
func NewIndexer(secret []byte) (*Indexer, error) {
	if len(secret) < MinIndexKeyLen {
		return nil, fmt.Errorf("pin index key must be at least %d bytes", MinIndexKeyLen)
	}
	k := make([]byte, len(secret))
	copy(k, secret)
	return &Indexer{key: k}, nil
}

// Index returns the hex HMAC-SHA256 of pin.
func (ix *Indexer) Index(pin string) string {
	mac := hmac.New(sha256.New, ix.key)
	mac.Write([]byte(pin))
	return hex.EncodeToString(mac.Sum(nil))
}
