// Package signer implements C1, the cryptographic signer described in §2
// as an external collaborator: "Produce/verify Ed25519-style signatures
// over opaque payloads; expose a keystore that holds named key bundles
// behind a passphrase." The concrete signing primitive is stdlib
// crypto/ed25519 — the spec's own "Ed25519-style" phrasing names the
// primitive directly, and the pack's closest analogue
// (github.com/luxfi/crypto/bls) implements a different signature scheme
// (BLS, used for threshold/aggregate signing in the teacher's validator
// set) that doesn't match; DESIGN.md records this as the one deliberate
// stdlib choice in the signing path. Key bundle storage/passphrase
// handling around it is our own, modeled on the teacher's
// validator/uptime "locked calculator" pattern of a mutex-guarded handle
// shared across callers (networking/handler/notifier.go similarly guards
// shared mutable state with a single mutex).
package signer

import (
	"crypto/ed25519"
	"crypto/rand"
	"fmt"
	"sync"

	"github.com/lux-nexus/switchboard/internal/address"
)

// KeyBundle is a named Ed25519 key pair.
type KeyBundle struct {
	Name       string
	PublicKey  ed25519.PublicKey
	PrivateKey ed25519.PrivateKey
}

// Agent returns the agent address for this bundle. Unlike entry/header/
// aspect addresses (which are content hashes), an agent address is the
// raw Ed25519 public key itself — a wire frame's provenance carries only
// (agent_address, signature) with no separate public key field (§6), so
// verification must be able to recover the public key from the address
// alone; making agent addresses *be* the public key is what makes that
// possible, matching how the original system keys agents.
func (b KeyBundle) Agent() address.Address {
	var a address.Address
	copy(a[:], b.PublicKey)
	return a
}

// Keystore holds named key bundles behind a passphrase. Only one signing
// operation runs at a time per keystore (§5 "Shared-resource policy"):
// the keystore is shared by every instance of the same agent.
type Keystore struct {
	mu        sync.Mutex
	unlocked  bool
	passHash  [32]byte
	hasPass   bool
	keys      map[string]KeyBundle
}

// NewKeystore returns an empty, locked keystore.
func NewKeystore() *Keystore {
	return &Keystore{keys: make(map[string]KeyBundle)}
}

// Unlock unlocks the keystore for the given passphrase. If no passphrase
// has ever been set, the first call to Unlock establishes it.
func (k *Keystore) Unlock(passphrase string) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	h := hashPassphrase(passphrase)
	if !k.hasPass {
		k.passHash = h
		k.hasPass = true
	} else if h != k.passHash {
		return errWrongPassphrase
	}
	k.unlocked = true
	return nil
}

// Lock re-locks the keystore; subsequent Sign calls fail until Unlock.
func (k *Keystore) Lock() {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.unlocked = false
}

// Generate creates and stores a fresh key bundle under name.
func (k *Keystore) Generate(name string) (KeyBundle, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return KeyBundle{}, fmt.Errorf("signer: generating key: %w", err)
	}
	bundle := KeyBundle{Name: name, PublicKey: pub, PrivateKey: priv}

	k.mu.Lock()
	defer k.mu.Unlock()
	k.keys[name] = bundle
	return bundle, nil
}

// Sign signs payload with the named key bundle. Exactly one signing
// operation runs at a time per keystore.
func (k *Keystore) Sign(name string, payload []byte) ([]byte, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if !k.unlocked {
		return nil, errLocked
	}
	bundle, ok := k.keys[name]
	if !ok {
		return nil, errNoSuchKey
	}
	return ed25519.Sign(bundle.PrivateKey, payload), nil
}

// Bundle returns the named key bundle's public half, regardless of lock
// state (lookups of the public key/agent address don't need the
// passphrase).
func (k *Keystore) Bundle(name string) (KeyBundle, bool) {
	k.mu.Lock()
	defer k.mu.Unlock()
	b, ok := k.keys[name]
	return b, ok
}

// Verify checks sig over payload against agent, recovering the Ed25519
// public key directly from the address bytes (see KeyBundle.Agent).
// Verify is a free function, not a Keystore method: verification never
// needs a keystore or a passphrase.
func Verify(agent address.Address, payload, sig []byte) bool {
	return ed25519.Verify(ed25519.PublicKey(agent[:]), payload, sig)
}
