// Package runtime is an in-memory stand-in for the chain: it executes the
// token, associated-account and order-book programs against local state and
// verifies signer seeds the way the real runtime does.
package runtime

import (
	"context"
	"time"

	"ammcpi/internal/errors"
	"ammcpi/internal/schema"
	"ammcpi/pkg/exception"

	"github.com/gagliardetto/solana-go"
)

// Config names the programs the runtime executes.
type Config struct {
	// Program is the calling program; signer seeds derive under it.
	Program           solana.PublicKey
	TokenProgram      solana.PublicKey
	AssociatedProgram solana.PublicKey
	SystemProgram     solana.PublicKey
	DexProgram        solana.PublicKey
	Rent              solana.PublicKey
	// Clock is used for order expiry. Defaults to time.Now.
	Clock func() time.Time
}

// DefaultConfig returns the mainnet program ids for program.
func DefaultConfig(program solana.PublicKey) Config {
	return Config{
		Program:           program,
		TokenProgram:      solana.TokenProgramID,
		AssociatedProgram: solana.SPLAssociatedTokenAccountProgramID,
		SystemProgram:     solana.SystemProgramID,
		DexProgram:        DexProgramID,
		Rent:              solana.SysVarRentPubkey,
	}
}

// DexProgramID is the OpenBook v3 program.
var DexProgramID = solana.MustPublicKeyFromBase58("srmqPvymJeFKQ4zGQed1GFppgkRHL9kaELCbyksJtPX")

// Invocation is one executed call, recorded in issue order.
type Invocation struct {
	Program  solana.PublicKey
	Accounts []schema.AccountRef
	Data     []byte
	Signers  []solana.PublicKey
}

// Runtime executes invocations against in-memory state. It is not safe for
// concurrent use; calls execute in the order they are issued.
type Runtime struct {
	cfg     Config
	state   *state
	history []Invocation
}

func New(cfg Config) *Runtime {
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	return &Runtime{cfg: cfg, state: newState()}
}

func (r *Runtime) Config() Config {
	return r.cfg
}

// Invocations returns the executed calls in order.
func (r *Runtime) Invocations() []Invocation {
	out := make([]Invocation, len(r.history))
	copy(out, r.history)
	return out
}

// Transaction runs fn as one enclosing transaction: if fn fails, every
// mutation made inside it is discarded.
func (r *Runtime) Transaction(fn func() error) error {
	snapshot := r.state.clone()
	recorded := len(r.history)
	if err := fn(); err != nil {
		r.state = snapshot
		r.history = r.history[:recorded]
		return err
	}
	return nil
}

// InvokeSigned executes ix. A failing call leaves state untouched.
func (r *Runtime) InvokeSigned(ctx context.Context, ix solana.Instruction, accounts []schema.AccountRef, signerSeeds [][][]byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := ix.Data()
	if err != nil {
		return err
	}

	c, err := r.resolve(ix.ProgramID(), ix.Accounts(), accounts, signerSeeds)
	if err != nil {
		return err
	}
	c.data = data

	snapshot := r.state.clone()
	if err := r.execute(c); err != nil {
		r.state = snapshot
		return err
	}

	r.history = append(r.history, Invocation{
		Program:  c.program,
		Accounts: append([]schema.AccountRef(nil), accounts...),
		Data:     data,
		Signers:  c.signers(),
	})
	return nil
}

func (r *Runtime) execute(c *call) error {
	switch c.program {
	case r.cfg.TokenProgram:
		return r.execToken(c)
	case r.cfg.AssociatedProgram:
		return r.execAssociated(c)
	case r.cfg.DexProgram:
		return r.execDex(c)
	default:
		return errors.Wrapf(exception.ErrRuntimeUnknownProgram, "program: %s", c.program)
	}
}

// call is one resolved invocation.
type call struct {
	program solana.PublicKey
	metas   []*solana.AccountMeta
	data    []byte
	signed  map[solana.PublicKey]bool
}

func (c *call) key(i int) solana.PublicKey {
	return c.metas[i].PublicKey
}

// require checks the call carries at least n accounts.
func (c *call) require(n int) error {
	if len(c.metas) < n {
		return errors.Wrapf(exception.ErrRuntimeAccountNotProvided, "want %d accounts, got %d", n, len(c.metas))
	}
	return nil
}

func (c *call) signers() []solana.PublicKey {
	var out []solana.PublicKey
	for _, m := range c.metas {
		if m.IsSigner && c.signed[m.PublicKey] {
			out = append(out, m.PublicKey)
		}
	}
	return out
}

func (r *Runtime) resolve(program solana.PublicKey, metas []*solana.AccountMeta, accounts []schema.AccountRef, signerSeeds [][][]byte) (*call, error) {
	supplied := make(map[solana.PublicKey]bool, len(accounts))
	signed := make(map[solana.PublicKey]bool)
	for _, a := range accounts {
		supplied[a.Key] = true
		if a.IsSigner {
			signed[a.Key] = true
		}
	}

	for i, seeds := range signerSeeds {
		address, err := solana.CreateProgramAddress(seeds, r.cfg.Program)
		if err != nil {
			return nil, errors.Wrapf(exception.ErrRuntimeInvalidSeeds, "seed set %d, cause: %v", i, err)
		}
		signed[address] = true
	}

	if !supplied[program] {
		return nil, errors.Wrapf(exception.ErrRuntimeAccountNotProvided, "program: %s", program)
	}
	for i, m := range metas {
		if !supplied[m.PublicKey] {
			return nil, errors.Wrapf(exception.ErrRuntimeAccountNotProvided, "index: %d, key: %s", i, m.PublicKey)
		}
		if m.IsSigner && !signed[m.PublicKey] {
			return nil, errors.Wrapf(exception.ErrRuntimeMissingSignature, "index: %d, key: %s", i, m.PublicKey)
		}
	}

	return &call{program: program, metas: metas, signed: signed}, nil
}

// Lamports returns the lamport balance held by key.
func (r *Runtime) Lamports(key solana.PublicKey) uint64 {
	return r.state.lamports[key]
}

// SetLamports sets the lamport balance of key.
func (r *Runtime) SetLamports(key solana.PublicKey, lamports uint64) {
	r.state.lamports[key] = lamports
}

type state struct {
	lamports   map[solana.PublicKey]uint64
	mints      map[solana.PublicKey]Mint
	tokens     map[solana.PublicKey]TokenAccount
	markets    map[solana.PublicKey]*market
	openOrders map[solana.PublicKey]*OpenOrders
}

func newState() *state {
	return &state{
		lamports:   make(map[solana.PublicKey]uint64),
		mints:      make(map[solana.PublicKey]Mint),
		tokens:     make(map[solana.PublicKey]TokenAccount),
		markets:    make(map[solana.PublicKey]*market),
		openOrders: make(map[solana.PublicKey]*OpenOrders),
	}
}

func (s *state) clone() *state {
	out := &state{
		lamports:   make(map[solana.PublicKey]uint64, len(s.lamports)),
		mints:      make(map[solana.PublicKey]Mint, len(s.mints)),
		tokens:     make(map[solana.PublicKey]TokenAccount, len(s.tokens)),
		markets:    make(map[solana.PublicKey]*market, len(s.markets)),
		openOrders: make(map[solana.PublicKey]*OpenOrders, len(s.openOrders)),
	}
	for k, v := range s.lamports {
		out.lamports[k] = v
	}
	for k, v := range s.mints {
		out.mints[k] = v
	}
	for k, v := range s.tokens {
		out.tokens[k] = v
	}
	for k, v := range s.markets {
		out.markets[k] = v.clone()
	}
	for k, v := range s.openOrders {
		cp := *v
		out.openOrders[k] = &cp
	}
	return out
}

// exists reports whether key holds any account known to the runtime.
func (s *state) exists(key solana.PublicKey) bool {
	if _, ok := s.mints[key]; ok {
		return true
	}
	if _, ok := s.tokens[key]; ok {
		return true
	}
	if _, ok := s.markets[key]; ok {
		return true
	}
	_, ok := s.openOrders[key]
	return ok
}
