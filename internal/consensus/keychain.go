package consensus

import (
	"context"
	"crypto/ecdsa"
	"crypto/sha256"
	"fmt"
	"math/big"
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum/crypto"
)

// Keychain is the reactor's capability for identity, signing and
// verification. Implementations are not expected to be safe for
// concurrent height ranges that overlap; the reactor only ever calls it
// from its own cooperative loop.
type Keychain interface {
	// Signer returns the local validator identity, if this node has one.
	Signer(ctx context.Context) (Validator, bool)
	// IsValidatorForHeight reports whether the local signer is a member
	// of the validator set at height.
	IsValidatorForHeight(ctx context.Context, height Height) bool
	// Sign signs digest on behalf of the local signer at height.
	Sign(ctx context.Context, height Height, digest [32]byte) ([]byte, error)
	// Verify checks that signature is author's signature over digest.
	Verify(signature []byte, author Validator, digest [32]byte) error
}

// secp256k1Keychain is a production Keychain backed by go-ethereum's
// secp256k1 implementation, one private key per configured height range.
type secp256k1Keychain struct {
	mu      sync.RWMutex
	ranges  []HeightRange
	keys    map[HeightRange]*ecdsa.PrivateKey
	address Validator
	hasKey  bool
}

// NewSecp256k1Keychain builds an empty keychain with no local identity.
// Use AddKeyRange to bind a private key to a height range.
func NewSecp256k1Keychain() *secp256k1Keychain {
	return &secp256k1Keychain{keys: make(map[HeightRange]*ecdsa.PrivateKey)}
}

// GenerateLocalKey generates a fresh random secp256k1 private key for a
// new local validator identity.
func GenerateLocalKey() (*ecdsa.PrivateKey, error) {
	key, err := crypto.GenerateKey()
	if err != nil {
		return nil, fmt.Errorf("generate local key: %w", err)
	}
	return key, nil
}

// AddKeyRange binds key as the local signer's private key for r. All keys
// added to a single keychain must share the same derived address, since a
// Keychain represents one local identity.
func (k *secp256k1Keychain) AddKeyRange(r HeightRange, key *ecdsa.PrivateKey) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.ranges = append(k.ranges, r)
	k.keys[r] = key
	k.address = crypto.PubkeyToAddress(key.PublicKey)
	k.hasKey = true
}

func (k *secp256k1Keychain) keyForHeight(height Height) (*ecdsa.PrivateKey, bool) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	for _, r := range k.ranges {
		if r.Contains(height) {
			return k.keys[r], true
		}
	}
	return nil, false
}

func (k *secp256k1Keychain) Signer(context.Context) (Validator, bool) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.address, k.hasKey
}

func (k *secp256k1Keychain) IsValidatorForHeight(_ context.Context, height Height) bool {
	_, ok := k.keyForHeight(height)
	return ok
}

func (k *secp256k1Keychain) Sign(_ context.Context, height Height, digest [32]byte) ([]byte, error) {
	key, ok := k.keyForHeight(height)
	if !ok {
		return nil, fmt.Errorf("sign: %w", ErrNotRoundValidator)
	}
	sig, err := crypto.Sign(digest[:], key)
	if err != nil {
		return nil, fmt.Errorf("sign: %w", err)
	}
	return sig, nil
}

func (k *secp256k1Keychain) Verify(signature []byte, author Validator, digest [32]byte) error {
	if len(signature) != 65 {
		return fmt.Errorf("verify: %w", ErrInvalidSignature)
	}
	pub, err := crypto.SigToPub(digest[:], signature)
	if err != nil {
		return fmt.Errorf("verify: %w: %w", ErrInvalidSignature, err)
	}
	if crypto.PubkeyToAddress(*pub) != author {
		return fmt.Errorf("verify: %w", ErrInvalidSignature)
	}
	return nil
}

// MemoryKeychain is a deterministic, password-seeded Keychain for tests.
// It derives a distinct secp256k1 key per height range from
// sha256(password), translating the original's seeded-RNG test keychain
// into a direct hash-to-scalar derivation.
type MemoryKeychain struct {
	secp256k1Keychain
}

// NewMemoryKeychain creates a MemoryKeychain with no bound identity.
func NewMemoryKeychain() *MemoryKeychain {
	return &MemoryKeychain{secp256k1Keychain: secp256k1Keychain{keys: make(map[HeightRange]*ecdsa.PrivateKey)}}
}

// Insert derives a private key deterministically from password and binds
// it to heightRange, mirroring the original memory keychain's
// insert(height_range, password) contract.
func (k *MemoryKeychain) Insert(heightRange HeightRange, password string) (Validator, error) {
	seed := sha256.Sum256([]byte(password))
	key, err := deriveKeyFromSeed(seed)
	if err != nil {
		return Validator{}, fmt.Errorf("insert keychain range: %w", err)
	}
	k.AddKeyRange(heightRange, key)
	return crypto.PubkeyToAddress(key.PublicKey), nil
}

func deriveKeyFromSeed(seed [32]byte) (*ecdsa.PrivateKey, error) {
	d := new(big.Int).SetBytes(seed[:])
	curve := crypto.S256()
	d.Mod(d, new(big.Int).Sub(curve.Params().N, big.NewInt(1)))
	d.Add(d, big.NewInt(1))
	priv := new(ecdsa.PrivateKey)
	priv.PublicKey.Curve = curve
	priv.D = d
	priv.PublicKey.X, priv.PublicKey.Y = curve.ScalarBaseMult(d.Bytes())
	return priv, nil
}

// sortValidators returns validators in the canonical ascending-address
// order used for round-robin leader selection.
func sortValidators(validators []Validator) []Validator {
	out := append([]Validator(nil), validators...)
	sort.Slice(out, func(i, j int) bool {
		return string(out[i].Bytes()) < string(out[j].Bytes())
	})
	return out
}
