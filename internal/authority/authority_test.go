package authority

import (
	"testing"

	"ammcpi/pkg/exception"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	ammProgramID = solana.MustPublicKeyFromBase58("675kPX9MHTjS2zt1qfr1NYHuzeLXfQM9H24wFSUt1Mp8")
	ammSeed      = []byte("amm authority")
)

func TestDeriveKnownAuthority(t *testing.T) {
	signer, err := NewDeriver(ammProgramID).Derive(ammSeed, 254)
	require.NoError(t, err)

	assert.Equal(t, "5Q544fKrFoe6tsEbD7S8EmxGTJYAKtTVhAW5Q5pge4j1", signer.Address().String())
	assert.Equal(t, uint8(254), signer.Nonce())
}

func TestDeriveIsDeterministic(t *testing.T) {
	d := NewDeriver(ammProgramID)
	for _, nonce := range []uint8{254, 252, 250, 200, 100} {
		first, err1 := d.Derive(ammSeed, nonce)
		second, err2 := d.Derive(ammSeed, nonce)
		if err1 != nil || err2 != nil {
			require.ErrorIs(t, err1, exception.ErrAuthorityInvalidSeeds)
			require.ErrorIs(t, err2, exception.ErrAuthorityInvalidSeeds)
			continue
		}

		assert.Equal(t, first, second, "nonce %d", nonce)
		assert.Equal(t, first.Address(), second.Address(), "nonce %d", nonce)
		assert.Equal(t, first.SignerSeeds(), second.SignerSeeds(), "nonce %d", nonce)
	}
}

func TestDeriveMatchesProgramAddress(t *testing.T) {
	signer, err := NewDeriver(ammProgramID).Derive(ammSeed, 254)
	require.NoError(t, err)

	want, err := solana.CreateProgramAddress(signer.SignerSeeds(), ammProgramID)
	require.NoError(t, err)
	assert.Equal(t, want, signer.Address())
}

func TestDeriveWrongNonceYieldsOtherIdentity(t *testing.T) {
	d := NewDeriver(ammProgramID)
	right, err := d.Derive(ammSeed, 254)
	require.NoError(t, err)

	// 253 and 255 land on the curve for this seed.
	_, err = d.Derive(ammSeed, 253)
	require.ErrorIs(t, err, exception.ErrAuthorityInvalidSeeds)
	_, err = d.Derive(ammSeed, 255)
	require.ErrorIs(t, err, exception.ErrAuthorityInvalidSeeds)

	for nonce := 252; nonce > 0; nonce-- {
		other, err := d.Derive(ammSeed, uint8(nonce))
		if err != nil {
			continue
		}
		assert.NotEqual(t, right.Address(), other.Address())
		return
	}
	t.Fatal("expected at least one other valid nonce")
}

func TestFindCanonicalNonce(t *testing.T) {
	signer, err := NewDeriver(ammProgramID).Find(ammSeed)
	require.NoError(t, err)

	assert.Equal(t, uint8(254), signer.Nonce())
	assert.Equal(t, "5Q544fKrFoe6tsEbD7S8EmxGTJYAKtTVhAW5Q5pge4j1", signer.Address().String())
}

func TestDeriveRejectsLongSeed(t *testing.T) {
	_, err := NewDeriver(ammProgramID).Derive(make([]byte, solana.MaxSeedLength+1), 254)
	require.ErrorIs(t, err, exception.ErrAuthoritySeedTooLong)
}

func TestDeriveRejectsZeroProgram(t *testing.T) {
	_, err := NewDeriver(solana.PublicKey{}).Derive(ammSeed, 254)
	require.ErrorIs(t, err, exception.ErrAuthorityZeroProgramID)
}

func TestSignerSeedsAreCopies(t *testing.T) {
	seed := []byte("amm authority")
	signer, err := NewDeriver(ammProgramID).Derive(seed, 254)
	require.NoError(t, err)

	seed[0] = 'x'
	seeds := signer.SignerSeeds()
	seeds[0][1] = 'y'

	assert.Equal(t, [][]byte{[]byte("amm authority"), {254}}, signer.SignerSeeds())
}

func TestZeroSigner(t *testing.T) {
	var s Signer
	assert.True(t, s.IsZero())
	assert.Nil(t, s.SignerSeeds())
}

func TestDeriveSeed(t *testing.T) {
	d := NewDeriver(ammProgramID)
	fromSeed, err := d.DeriveSeed(Seed{Bytes: ammSeed, Nonce: 254})
	require.NoError(t, err)
	direct, err := d.Derive(ammSeed, 254)
	require.NoError(t, err)

	assert.Equal(t, direct, fromSeed)
}
