// Package protect gates password-protected subtrees. A submitted password is
// sealed into the caller's session under "password:<keyID>" with an expiry;
// every later access to the subtree unseals it and compares it against the
// configured password again. There is no persistent "verified" state.
package protect

import (
	"context"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"time"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

// Credential check outcomes.
var (
	ErrCredentialMissing  = errors.New("protect: no credential submitted")
	ErrCredentialExpired  = errors.New("protect: credential expired")
	ErrCredentialMismatch = errors.New("protect: wrong password")
	ErrUnknownKey         = errors.New("protect: unknown key id")
	ErrInvalidTTL         = errors.New("protect: credential ttl must be positive")
)

// expiryGrace keeps the session entry around past its logical expiry so a
// late access reports ErrCredentialExpired instead of ErrCredentialMissing.
const expiryGrace = 5 * time.Minute

const sealInfo = "onedrive-index credential seal v1"

// SessionStore is the per-session key-value store credentials live in.
type SessionStore interface {
	Put(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Delete(ctx context.Context, key string) error
}

// Subtree is a protected folder and the password that opens it.
type Subtree struct {
	Path     string // virtual path, normalized
	KeyID    string
	Password string
}

// Credential is what a session holds for one key ID. Sealed is the
// submitted password, encrypted and bound to KeyID.
type Credential struct {
	KeyID     string    `json:"key_id"`
	Sealed    []byte    `json:"sealed"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Guard issues and checks credentials.
type Guard struct {
	subtrees []Subtree // longest path first
	byKey    map[string]string
	aead     cipher.AEAD
	logger   *slog.Logger
	nowFunc  func() time.Time
}

// NewGuard builds a Guard. The sealing key is derived from secret; with an
// empty secret a random per-process key is used, so credentials stored in a
// persistent backend do not survive a restart.
func NewGuard(secret string, subtrees []Subtree, logger *slog.Logger) (*Guard, error) {
	if logger == nil {
		logger = slog.Default()
	}

	key := make([]byte, chacha20poly1305.KeySize)

	if secret == "" {
		logger.Warn("no protect secret configured, using an ephemeral sealing key")

		if _, err := rand.Read(key); err != nil {
			return nil, fmt.Errorf("protect: generating sealing key: %w", err)
		}
	} else if _, err := io.ReadFull(hkdf.New(sha256.New, []byte(secret), nil, []byte(sealInfo)), key); err != nil {
		return nil, fmt.Errorf("protect: deriving sealing key: %w", err)
	}

	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("protect: creating cipher: %w", err)
	}

	g := &Guard{
		byKey:   make(map[string]string, len(subtrees)),
		aead:    aead,
		logger:  logger,
		nowFunc: time.Now,
	}

	for _, st := range subtrees {
		if _, dup := g.byKey[st.KeyID]; dup {
			return nil, fmt.Errorf("protect: duplicate key id %q", st.KeyID)
		}

		st.Path = "/" + strings.Trim(st.Path, "/")
		g.byKey[st.KeyID] = st.Password
		g.subtrees = append(g.subtrees, st)
	}

	sort.SliceStable(g.subtrees, func(i, j int) bool {
		return len(g.subtrees[i].Path) > len(g.subtrees[j].Path)
	})

	return g, nil
}

// SubtreeFor returns the innermost protected subtree containing virtual.
func (g *Guard) SubtreeFor(virtual string) (Subtree, bool) {
	p := "/" + strings.Trim(virtual, "/")

	for _, st := range g.subtrees {
		if st.Path == "/" || p == st.Path || strings.HasPrefix(p, st.Path+"/") {
			return st, true
		}
	}

	return Subtree{}, false
}

// Issue seals password into the session for ttl. The password is stored
// whether or not it matches; Check decides on every access.
func (g *Guard) Issue(ctx context.Context, sess SessionStore, keyID, password string, ttl time.Duration) (*Credential, error) {
	if _, ok := g.byKey[keyID]; !ok {
		return nil, fmt.Errorf("%w %q", ErrUnknownKey, keyID)
	}

	if ttl <= 0 {
		return nil, ErrInvalidTTL
	}

	sealed, err := g.seal(keyID, password)
	if err != nil {
		return nil, err
	}

	cred := &Credential{KeyID: keyID, Sealed: sealed, ExpiresAt: g.nowFunc().Add(ttl)}

	data, err := json.Marshal(cred)
	if err != nil {
		return nil, fmt.Errorf("protect: encoding credential: %w", err)
	}

	if err := sess.Put(ctx, sessionKey(keyID), data, ttl+expiryGrace); err != nil {
		return nil, fmt.Errorf("protect: storing credential: %w", err)
	}

	g.logger.Info("credential issued",
		slog.String("key_id", keyID),
		slog.Time("expires_at", cred.ExpiresAt),
	)

	return cred, nil
}

// Check validates the session's credential for keyID. It fails closed: a
// credential that cannot be decoded or unsealed is a mismatch.
func (g *Guard) Check(ctx context.Context, sess SessionStore, keyID string) error {
	expected, ok := g.byKey[keyID]
	if !ok {
		return fmt.Errorf("%w %q", ErrUnknownKey, keyID)
	}

	data, found, err := sess.Get(ctx, sessionKey(keyID))
	if err != nil {
		return fmt.Errorf("protect: reading credential: %w", err)
	}

	if !found {
		return ErrCredentialMissing
	}

	var cred Credential
	if err := json.Unmarshal(data, &cred); err != nil {
		g.logger.Warn("undecodable credential", slog.String("key_id", keyID), slog.String("error", err.Error()))
		return ErrCredentialMismatch
	}

	if g.nowFunc().After(cred.ExpiresAt) {
		return ErrCredentialExpired
	}

	submitted, err := g.unseal(keyID, cred.Sealed)
	if err != nil {
		g.logger.Warn("credential failed to unseal", slog.String("key_id", keyID))
		return ErrCredentialMismatch
	}

	if !Verify(expected, submitted) {
		return ErrCredentialMismatch
	}

	return nil
}

// Clear drops the session's credential for keyID.
func (g *Guard) Clear(ctx context.Context, sess SessionStore, keyID string) error {
	if err := sess.Delete(ctx, sessionKey(keyID)); err != nil {
		return fmt.Errorf("protect: clearing credential: %w", err)
	}

	return nil
}

// Verify compares passwords in constant time.
func Verify(expected, submitted string) bool {
	return subtle.ConstantTimeCompare([]byte(expected), []byte(submitted)) == 1
}

func sessionKey(keyID string) string {
	return "password:" + keyID
}

// seal returns nonce||ciphertext with keyID as associated data, so a sealed
// password cannot be replayed under another key ID.
func (g *Guard) seal(keyID, password string) ([]byte, error) {
	nonce := make([]byte, g.aead.NonceSize(), g.aead.NonceSize()+len(password)+g.aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("protect: generating nonce: %w", err)
	}

	return g.aead.Seal(nonce, nonce, []byte(password), []byte(keyID)), nil
}

func (g *Guard) unseal(keyID string, sealed []byte) (string, error) {
	ns := g.aead.NonceSize()
	if len(sealed) < ns {
		return "", errors.New("protect: sealed value too short")
	}

	plain, err := g.aead.Open(nil, sealed[:ns], sealed[ns:], []byte(keyID))
	if err != nil {
		return "", fmt.Errorf("protect: opening sealed value: %w", err)
	}

	return string(plain), nil
}
