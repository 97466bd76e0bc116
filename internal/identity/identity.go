// Package identity generates, persists and exercises a node's long-lived
// cryptographic identity: an Ed25519 signing keypair used to authenticate
// gossiped messages, and an X25519 encryption keypair used to receive
// sealed-box channel-key invites (internal/e2ecrypto). It also derives the
// deterministic node_id from the signing public key.
package identity

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base32"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/crypto/nacl/box"
)

const (
	signingPrivFile = "signing.key"
	signingPubFile  = "signing.pub"
	encryptPrivFile = "encrypt.key"
	encryptPubFile  = "encrypt.pub"
	profileFile     = "profile.json"

	// NodeIDLength is the byte length of the truncated SHA-256 digest used
	// to derive node_id, per spec: SHA-256 of the signing public key,
	// truncated to 20 bytes, base32-encoded lowercase without padding.
	NodeIDLength = 20
)

var nodeIDEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// Identity is a node's long-lived cryptographic identity. It is created
// once on first boot and loaded thereafter; everything but DisplayName is
// immutable after creation.
type Identity struct {
	mu sync.RWMutex

	dataDir string

	signingPub  ed25519.PublicKey
	signingPriv ed25519.PrivateKey

	encryptPub  *[32]byte
	encryptPriv *[32]byte

	nodeID      string
	displayName string

	closed bool
}

type profile struct {
	DisplayName string `json:"display_name"`
}

// Load opens the identity stored in dataDir, generating and persisting a
// fresh one on first run. dataDir is created with 0o700 permissions if it
// does not exist; private key files are written 0o600 (owner-only) and the
// public signing key is written world-readable for peers to fetch out of
// band if needed.
func Load(dataDir string) (*Identity, error) {
	if err := os.MkdirAll(dataDir, 0o700); err != nil {
		return nil, fmt.Errorf("identity: create data dir: %w", err)
	}

	id := &Identity{dataDir: dataDir}

	signingPrivPath := filepath.Join(dataDir, signingPrivFile)
	if _, err := os.Stat(signingPrivPath); err == nil {
		if err := id.loadKeys(); err != nil {
			return nil, err
		}
	} else if os.IsNotExist(err) {
		if err := id.generateAndPersist(); err != nil {
			return nil, err
		}
	} else {
		return nil, fmt.Errorf("identity: stat key file: %w", err)
	}

	if err := id.loadProfile(); err != nil {
		return nil, err
	}

	id.nodeID = DeriveNodeID(id.signingPub)
	return id, nil
}

func (id *Identity) generateAndPersist() error {
	signingPub, signingPriv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return fmt.Errorf("identity: generate signing key: %w", err)
	}

	encryptPub, encryptPriv, err := box.GenerateKey(rand.Reader)
	if err != nil {
		return fmt.Errorf("identity: generate encryption key: %w", err)
	}

	if err := os.WriteFile(filepath.Join(id.dataDir, signingPrivFile), signingPriv, 0o600); err != nil {
		return fmt.Errorf("identity: write signing private key: %w", err)
	}
	if err := os.WriteFile(filepath.Join(id.dataDir, signingPubFile), signingPub, 0o644); err != nil {
		return fmt.Errorf("identity: write signing public key: %w", err)
	}
	if err := os.WriteFile(filepath.Join(id.dataDir, encryptPrivFile), encryptPriv[:], 0o600); err != nil {
		return fmt.Errorf("identity: write encryption private key: %w", err)
	}
	if err := os.WriteFile(filepath.Join(id.dataDir, encryptPubFile), encryptPub[:], 0o644); err != nil {
		return fmt.Errorf("identity: write encryption public key: %w", err)
	}

	id.signingPub = signingPub
	id.signingPriv = signingPriv
	id.encryptPub = encryptPub
	id.encryptPriv = encryptPriv
	return nil
}

func (id *Identity) loadKeys() error {
	signingPriv, err := os.ReadFile(filepath.Join(id.dataDir, signingPrivFile))
	if err != nil {
		return fmt.Errorf("identity: read signing private key: %w", err)
	}
	if len(signingPriv) != ed25519.PrivateKeySize {
		return ErrCorruptKeyFile
	}

	signingPub, err := os.ReadFile(filepath.Join(id.dataDir, signingPubFile))
	if err != nil {
		return fmt.Errorf("identity: read signing public key: %w", err)
	}
	if len(signingPub) != ed25519.PublicKeySize {
		return ErrCorruptKeyFile
	}

	encryptPriv, err := os.ReadFile(filepath.Join(id.dataDir, encryptPrivFile))
	if err != nil {
		return fmt.Errorf("identity: read encryption private key: %w", err)
	}
	if len(encryptPriv) != 32 {
		return ErrCorruptKeyFile
	}

	encryptPub, err := os.ReadFile(filepath.Join(id.dataDir, encryptPubFile))
	if err != nil {
		return fmt.Errorf("identity: read encryption public key: %w", err)
	}
	if len(encryptPub) != 32 {
		return ErrCorruptKeyFile
	}

	id.signingPriv = ed25519.PrivateKey(signingPriv)
	id.signingPub = ed25519.PublicKey(signingPub)

	var encPriv, encPub [32]byte
	copy(encPriv[:], encryptPriv)
	copy(encPub[:], encryptPub)
	id.encryptPriv = &encPriv
	id.encryptPub = &encPub

	return nil
}

func (id *Identity) loadProfile() error {
	path := filepath.Join(id.dataDir, profileFile)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("identity: read profile: %w", err)
	}
	var p profile
	if err := json.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("identity: parse profile: %w", err)
	}
	id.displayName = p.DisplayName
	return nil
}

// DeriveNodeID computes the deterministic node_id for a signing public
// key: SHA-256 of the key bytes, truncated to NodeIDLength bytes,
// base32-encoded lowercase without padding. Two nodes with the same
// signing public key always share a node_id.
func DeriveNodeID(signingPub ed25519.PublicKey) string {
	digest := sha256.Sum256(signingPub)
	encoded := nodeIDEncoding.EncodeToString(digest[:NodeIDLength])
	return toLower(encoded)
}

func toLower(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}

// NodeID returns this identity's node_id.
func (id *Identity) NodeID() string {
	id.mu.RLock()
	defer id.mu.RUnlock()
	return id.nodeID
}

// SigningPublicKey returns a copy of the raw 32-byte Ed25519 public key.
func (id *Identity) SigningPublicKey() ed25519.PublicKey {
	id.mu.RLock()
	defer id.mu.RUnlock()
	out := make(ed25519.PublicKey, len(id.signingPub))
	copy(out, id.signingPub)
	return out
}

// EncryptPublicKey returns a copy of the raw 32-byte X25519 public key.
func (id *Identity) EncryptPublicKey() [32]byte {
	id.mu.RLock()
	defer id.mu.RUnlock()
	return *id.encryptPub
}

// EncryptPrivateKey returns the X25519 private key, used to open sealed-box
// invites addressed to this node (internal/e2ecrypto).
func (id *Identity) EncryptPrivateKey() *[32]byte {
	id.mu.RLock()
	defer id.mu.RUnlock()
	return id.encryptPriv
}

// DisplayName returns the current unauthenticated display-name hint.
func (id *Identity) DisplayName() string {
	id.mu.RLock()
	defer id.mu.RUnlock()
	return id.displayName
}

// SetDisplayName updates the display name and persists it. This is the
// only mutation Identity allows after creation.
func (id *Identity) SetDisplayName(name string) error {
	id.mu.Lock()
	defer id.mu.Unlock()

	if id.closed {
		return ErrClosed
	}

	p := profile{DisplayName: name}
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("identity: marshal profile: %w", err)
	}
	if err := os.WriteFile(filepath.Join(id.dataDir, profileFile), data, 0o644); err != nil {
		return fmt.Errorf("identity: write profile: %w", err)
	}
	id.displayName = name
	return nil
}

// Sign signs canonical message bytes with the node's Ed25519 private key.
// Signing itself only fails on internal key unavailability, which is
// fatal to the process.
func (id *Identity) Sign(canonical []byte) ([]byte, error) {
	id.mu.RLock()
	defer id.mu.RUnlock()

	if id.closed {
		return nil, ErrClosed
	}
	if len(id.signingPriv) != ed25519.PrivateKeySize {
		return nil, ErrKeyUnavailable
	}
	return ed25519.Sign(id.signingPriv, canonical), nil
}

// Verify checks a signature over canonical message bytes against a remote
// signing public key. It never panics; a public key of the wrong length
// results in ErrInvalidPublicKey, and a malformed or mismatched signature
// in ErrInvalidSignature.
func Verify(canonical, signature, signingPub []byte) error {
	if len(signingPub) != ed25519.PublicKeySize {
		return ErrInvalidPublicKey
	}
	if len(signature) != ed25519.SignatureSize {
		return ErrInvalidSignature
	}
	if !ed25519.Verify(ed25519.PublicKey(signingPub), canonical, signature) {
		return ErrInvalidSignature
	}
	return nil
}

// Close releases the identity. Keys already written to disk remain there
// for the next Load.
func (id *Identity) Close() error {
	id.mu.Lock()
	defer id.mu.Unlock()
	id.closed = true
	return nil
}
