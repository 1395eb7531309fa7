// Package authority derives the program-owned signing identity. The identity
// has no private key: it is authorized for a call only when the runtime is
// handed the same seed and nonce the address was derived from.
package authority

import (
	"bytes"
	"math"

	"ammcpi/internal/errors"
	"ammcpi/pkg/exception"

	"github.com/gagliardetto/solana-go"
)

// Deriver computes program-derived signing identities for one program.
type Deriver struct {
	programID solana.PublicKey
}

func NewDeriver(programID solana.PublicKey) Deriver {
	return Deriver{programID: programID}
}

// ProgramID returns the program the identities are derived under.
func (d Deriver) ProgramID() solana.PublicKey {
	return d.programID
}

// Derive re-derives the signing identity for seed and nonce. nonce must be
// the bump chosen when the address was first computed; any other value
// yields a different identity, which only the runtime will notice.
func (d Deriver) Derive(seed []byte, nonce uint8) (Signer, error) {
	if d.programID.IsZero() {
		return Signer{}, exception.ErrAuthorityZeroProgramID
	}
	if len(seed) > solana.MaxSeedLength {
		return Signer{}, errors.Wrapf(exception.ErrAuthoritySeedTooLong, "len: %d", len(seed))
	}

	owned := bytes.Clone(seed)
	address, err := solana.CreateProgramAddress([][]byte{owned, {nonce}}, d.programID)
	if err != nil {
		return Signer{}, errors.Wrapf(exception.ErrAuthorityInvalidSeeds, "nonce: %d, cause: %v", nonce, err)
	}

	return Signer{
		programID: d.programID,
		seed:      owned,
		nonce:     nonce,
		address:   address,
	}, nil
}

// Find searches the canonical nonce for seed, starting at 255 and walking
// down. Pool creation uses it once; afterwards the stored nonce is replayed
// through Derive.
func (d Deriver) Find(seed []byte) (Signer, error) {
	for nonce := math.MaxUint8; nonce > 0; nonce-- {
		signer, err := d.Derive(seed, uint8(nonce))
		if err == nil {
			return signer, nil
		}
		if !errors.Is(err, exception.ErrAuthorityInvalidSeeds) {
			return Signer{}, err
		}
	}

	return Signer{}, exception.ErrAuthorityBumpNotFound
}

// Signer is the capability produced by Derive. Callers thread it through
// invocations; only the dispatcher opens it.
type Signer struct {
	programID solana.PublicKey
	seed      []byte
	nonce     uint8
	address   solana.PublicKey
}

// IsZero reports whether s carries no signer seeds.
func (s Signer) IsZero() bool {
	return s.address.IsZero()
}

// Address returns the derived identity.
func (s Signer) Address() solana.PublicKey {
	return s.address
}

// Nonce returns the bump the identity was derived with.
func (s Signer) Nonce() uint8 {
	return s.nonce
}

// SignerSeeds returns the seed set the runtime replays in place of a
// signature: [seed, [nonce]]. Each call returns fresh slices.
func (s Signer) SignerSeeds() [][]byte {
	if s.IsZero() {
		return nil
	}
	return [][]byte{bytes.Clone(s.seed), {s.nonce}}
}

// Seed is the stored seed and nonce of a pool authority.
type Seed struct {
	Bytes []byte
	Nonce uint8
}

// DeriveSeed is Derive for a stored Seed.
func (d Deriver) DeriveSeed(s Seed) (Signer, error) {
	return d.Derive(s.Bytes, s.Nonce)
}
