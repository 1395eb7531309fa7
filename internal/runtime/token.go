package runtime

import (
	"math/bits"

	"ammcpi/internal/codec"
	"ammcpi/internal/errors"
	"ammcpi/internal/schema"
	"ammcpi/pkg/exception"

	"github.com/gagliardetto/solana-go"
)

// TokenAccountRent is the rent-exempt reserve of a token account.
const TokenAccountRent uint64 = 2_039_280

// Mint is the state of a token mint. A zero authority means the role is
// not set.
type Mint struct {
	Supply          uint64
	Decimals        uint8
	MintAuthority   solana.PublicKey
	FreezeAuthority solana.PublicKey
}

// TokenAccount is the state of a token account. A zero close authority
// means the owner closes.
type TokenAccount struct {
	Mint           solana.PublicKey
	Owner          solana.PublicKey
	Amount         uint64
	CloseAuthority solana.PublicKey
}

func (a TokenAccount) closer() solana.PublicKey {
	if a.CloseAuthority.IsZero() {
		return a.Owner
	}
	return a.CloseAuthority
}

// CreateMint registers a mint.
func (r *Runtime) CreateMint(key, mintAuthority solana.PublicKey, decimals uint8) error {
	if r.state.exists(key) {
		return errors.Wrapf(exception.ErrRuntimeAccountInUse, "mint: %s", key)
	}
	r.state.mints[key] = Mint{Decimals: decimals, MintAuthority: mintAuthority}
	return nil
}

// CreateTokenAccount registers a token account holding amount, minted out
// of thin air, and funds its rent reserve.
func (r *Runtime) CreateTokenAccount(key, mint, owner solana.PublicKey, amount uint64) error {
	if r.state.exists(key) {
		return errors.Wrapf(exception.ErrRuntimeAccountInUse, "token account: %s", key)
	}
	m, ok := r.state.mints[mint]
	if !ok {
		return errors.Wrapf(exception.ErrRuntimeAccountNotFound, "mint: %s", mint)
	}
	supply, carry := bits.Add64(m.Supply, amount, 0)
	if carry != 0 {
		return exception.ErrTokenOverflow
	}
	m.Supply = supply
	r.state.mints[mint] = m
	r.state.tokens[key] = TokenAccount{Mint: mint, Owner: owner, Amount: amount}
	r.state.lamports[key] += TokenAccountRent
	return nil
}

func (r *Runtime) Mint(key solana.PublicKey) (Mint, bool) {
	m, ok := r.state.mints[key]
	return m, ok
}

func (r *Runtime) TokenAccount(key solana.PublicKey) (TokenAccount, bool) {
	a, ok := r.state.tokens[key]
	return a, ok
}

// Balance returns the token amount of key, zero when it does not exist.
func (r *Runtime) Balance(key solana.PublicKey) uint64 {
	return r.state.tokens[key].Amount
}

func (r *Runtime) execToken(c *call) error {
	ins, ok := codec.DecodeTokenInstruction(c.data)
	if !ok {
		return errors.Wrap(exception.ErrInstructionMalformedData, "token program")
	}

	switch ins.Tag {
	case codec.TokenTagTransfer:
		if err := c.require(3); err != nil {
			return err
		}
		return r.state.transfer(c.key(0), c.key(1), c.key(2), ins.Amount)
	case codec.TokenTagMintTo:
		if err := c.require(3); err != nil {
			return err
		}
		return r.state.mintTo(c.key(0), c.key(1), c.key(2), ins.Amount)
	case codec.TokenTagBurn:
		if err := c.require(3); err != nil {
			return err
		}
		return r.state.burn(c.key(0), c.key(1), c.key(2), ins.Amount)
	case codec.TokenTagCloseAccount:
		if err := c.require(3); err != nil {
			return err
		}
		return r.state.closeAccount(c.key(0), c.key(1), c.key(2))
	case codec.TokenTagSetAuthority:
		if err := c.require(2); err != nil {
			return err
		}
		return r.state.setAuthority(c.key(0), c.key(1), ins.Role, ins.NewAuthority)
	default:
		return errors.Wrapf(exception.ErrInstructionMalformedData, "token tag: %d", ins.Tag)
	}
}

func (s *state) token(key solana.PublicKey) (TokenAccount, error) {
	a, ok := s.tokens[key]
	if !ok {
		return TokenAccount{}, errors.Wrapf(exception.ErrRuntimeAccountNotFound, "token account: %s", key)
	}
	return a, nil
}

func (s *state) transfer(source, destination, owner solana.PublicKey, amount uint64) error {
	src, err := s.token(source)
	if err != nil {
		return err
	}
	dst, err := s.token(destination)
	if err != nil {
		return err
	}
	if src.Mint != dst.Mint {
		return errors.Wrapf(exception.ErrTokenMintMismatch, "source: %s, destination: %s", source, destination)
	}
	if src.Owner != owner {
		return errors.Wrapf(exception.ErrTokenOwnerMismatch, "account: %s", source)
	}
	if src.Amount < amount {
		return errors.Wrapf(exception.ErrTokenInsufficientFunds, "account: %s, balance: %d, amount: %d", source, src.Amount, amount)
	}
	if source == destination {
		return nil
	}

	total, carry := bits.Add64(dst.Amount, amount, 0)
	if carry != 0 {
		return exception.ErrTokenOverflow
	}
	src.Amount -= amount
	dst.Amount = total
	s.tokens[source] = src
	s.tokens[destination] = dst
	return nil
}

func (s *state) mintTo(mint, destination, authority solana.PublicKey, amount uint64) error {
	m, ok := s.mints[mint]
	if !ok {
		return errors.Wrapf(exception.ErrRuntimeAccountNotFound, "mint: %s", mint)
	}
	dst, err := s.token(destination)
	if err != nil {
		return err
	}
	if dst.Mint != mint {
		return errors.Wrapf(exception.ErrTokenMintMismatch, "destination: %s", destination)
	}
	if m.MintAuthority.IsZero() {
		return errors.Wrapf(exception.ErrTokenAuthorityNotSet, "mint: %s", mint)
	}
	if m.MintAuthority != authority {
		return errors.Wrapf(exception.ErrTokenOwnerMismatch, "mint authority of %s", mint)
	}

	supply, carry := bits.Add64(m.Supply, amount, 0)
	if carry != 0 {
		return exception.ErrTokenOverflow
	}
	balance, carry := bits.Add64(dst.Amount, amount, 0)
	if carry != 0 {
		return exception.ErrTokenOverflow
	}
	m.Supply = supply
	dst.Amount = balance
	s.mints[mint] = m
	s.tokens[destination] = dst
	return nil
}

func (s *state) burn(account, mint, owner solana.PublicKey, amount uint64) error {
	acc, err := s.token(account)
	if err != nil {
		return err
	}
	m, ok := s.mints[mint]
	if !ok {
		return errors.Wrapf(exception.ErrRuntimeAccountNotFound, "mint: %s", mint)
	}
	if acc.Mint != mint {
		return errors.Wrapf(exception.ErrTokenMintMismatch, "account: %s", account)
	}
	if acc.Owner != owner {
		return errors.Wrapf(exception.ErrTokenOwnerMismatch, "account: %s", account)
	}
	if acc.Amount < amount {
		return errors.Wrapf(exception.ErrTokenInsufficientFunds, "account: %s, balance: %d, amount: %d", account, acc.Amount, amount)
	}

	acc.Amount -= amount
	m.Supply -= amount
	s.tokens[account] = acc
	s.mints[mint] = m
	return nil
}

func (s *state) closeAccount(account, destination, authority solana.PublicKey) error {
	acc, err := s.token(account)
	if err != nil {
		return err
	}
	if acc.closer() != authority {
		return errors.Wrapf(exception.ErrTokenOwnerMismatch, "close authority of %s", account)
	}
	if acc.Amount != 0 {
		return errors.Wrapf(exception.ErrTokenNonZeroBalance, "account: %s, balance: %d", account, acc.Amount)
	}

	s.lamports[destination] += s.lamports[account]
	delete(s.lamports, account)
	delete(s.tokens, account)
	return nil
}

func (s *state) setAuthority(account, current solana.PublicKey, role schema.AuthorityType, next solana.PublicKey) error {
	if m, ok := s.mints[account]; ok {
		switch role {
		case schema.AuthorityMintTokens:
			if err := checkAuthority(m.MintAuthority, current, account); err != nil {
				return err
			}
			m.MintAuthority = next
		case schema.AuthorityFreezeAccount:
			if err := checkAuthority(m.FreezeAuthority, current, account); err != nil {
				return err
			}
			m.FreezeAuthority = next
		default:
			return errors.Wrapf(exception.ErrTokenInvalidRole, "role %s on mint %s", role, account)
		}
		s.mints[account] = m
		return nil
	}

	acc, err := s.token(account)
	if err != nil {
		return err
	}
	switch role {
	case schema.AuthorityAccountOwner:
		if acc.Owner != current {
			return errors.Wrapf(exception.ErrTokenOwnerMismatch, "account: %s", account)
		}
		acc.Owner = next
	case schema.AuthorityCloseAccount:
		if acc.closer() != current {
			return errors.Wrapf(exception.ErrTokenOwnerMismatch, "close authority of %s", account)
		}
		acc.CloseAuthority = next
	default:
		return errors.Wrapf(exception.ErrTokenInvalidRole, "role %s on account %s", role, account)
	}
	s.tokens[account] = acc
	return nil
}

func checkAuthority(registered, current, account solana.PublicKey) error {
	if registered.IsZero() {
		return errors.Wrapf(exception.ErrTokenAuthorityNotSet, "account: %s", account)
	}
	if registered != current {
		return errors.Wrapf(exception.ErrTokenOwnerMismatch, "authority of %s", account)
	}
	return nil
}
