package codec

import (
	"encoding/binary"

	"ammcpi/internal/schema"

	"github.com/gagliardetto/solana-go"
)

// SPL Token instruction tags.
const (
	TokenTagTransfer     uint8 = 3
	TokenTagSetAuthority uint8 = 6
	TokenTagMintTo       uint8 = 7
	TokenTagBurn         uint8 = 8
	TokenTagCloseAccount uint8 = 9
)

const (
	TokenAmountDataSize       = 9
	TokenCloseDataSize        = 1
	TokenSetAuthorityDataSize = 35
)

// TokenInstruction is a decoded SPL Token instruction of the subset this
// layer issues.
type TokenInstruction struct {
	Tag          uint8
	Amount       uint64
	Role         schema.AuthorityType
	NewAuthority solana.PublicKey
}

// EncodeTokenAmount serializes the [tag, amount] form shared by Transfer,
// MintTo and Burn.
func EncodeTokenAmount(dst []byte, tag uint8, amount uint64) []byte {
	dst = sized(dst, TokenAmountDataSize)
	dst[0] = tag
	binary.LittleEndian.PutUint64(dst[1:9], amount)
	return dst
}

// EncodeTokenClose serializes CloseAccount.
func EncodeTokenClose(dst []byte) []byte {
	dst = sized(dst, TokenCloseDataSize)
	dst[0] = TokenTagCloseAccount
	return dst
}

// EncodeTokenSetAuthority serializes SetAuthority with a present new
// authority. The role must be available.
func EncodeTokenSetAuthority(dst []byte, role schema.AuthorityType, newAuthority solana.PublicKey) []byte {
	dst = sized(dst, TokenSetAuthorityDataSize)
	dst[0] = TokenTagSetAuthority
	dst[1] = tokenAuthorityType(role)
	dst[2] = 1
	copy(dst[3:35], newAuthority[:])
	return dst
}

// DecodeTokenInstruction parses the token instructions this layer issues.
// SetAuthority with an absent new authority is not supported.
func DecodeTokenInstruction(src []byte) (TokenInstruction, bool) {
	if len(src) == 0 {
		return TokenInstruction{}, false
	}

	switch tag := src[0]; tag {
	case TokenTagTransfer, TokenTagMintTo, TokenTagBurn:
		if len(src) != TokenAmountDataSize {
			return TokenInstruction{}, false
		}
		return TokenInstruction{Tag: tag, Amount: binary.LittleEndian.Uint64(src[1:9])}, true
	case TokenTagCloseAccount:
		if len(src) != TokenCloseDataSize {
			return TokenInstruction{}, false
		}
		return TokenInstruction{Tag: tag}, true
	case TokenTagSetAuthority:
		if len(src) != TokenSetAuthorityDataSize || src[2] != 1 {
			return TokenInstruction{}, false
		}
		role, ok := authorityTypeFromToken(src[1])
		if !ok {
			return TokenInstruction{}, false
		}
		return TokenInstruction{
			Tag:          tag,
			Role:         role,
			NewAuthority: solana.PublicKeyFromBytes(src[3:35]),
		}, true
	default:
		return TokenInstruction{}, false
	}
}

func tokenAuthorityType(t schema.AuthorityType) uint8 {
	switch t {
	case schema.AuthorityMintTokens:
		return 0
	case schema.AuthorityFreezeAccount:
		return 1
	case schema.AuthorityAccountOwner:
		return 2
	case schema.AuthorityCloseAccount:
		return 3
	default:
		return 0xff
	}
}

func authorityTypeFromToken(v uint8) (schema.AuthorityType, bool) {
	switch v {
	case 0:
		return schema.AuthorityMintTokens, true
	case 1:
		return schema.AuthorityFreezeAccount, true
	case 2:
		return schema.AuthorityAccountOwner, true
	case 3:
		return schema.AuthorityCloseAccount, true
	default:
		return 0, false
	}
}

func sized(dst []byte, n int) []byte {
	if cap(dst) < n {
		return make([]byte, n)
	}
	dst = dst[:n]
	clear(dst)
	return dst
}
