package ops

import (
	"fmt"

	"ammcpi/internal/codec"
	"ammcpi/internal/errors"
	"ammcpi/internal/instruction"
	"ammcpi/internal/runtime"
	"ammcpi/internal/schema"
	"ammcpi/pkg/exception"

	"github.com/gagliardetto/solana-go"
)

// DefaultOrderLimit bounds matched price levels when a step sets none.
const DefaultOrderLimit = 10

// StepConfig is one scenario step. Only the fields its op reads are used.
type StepConfig struct {
	Op     string `yaml:"op"`
	Expect string `yaml:"expect"`

	Source       string `yaml:"source"`
	Destination  string `yaml:"destination"`
	Owner        string `yaml:"owner"`
	Account      string `yaml:"account"`
	Mint         string `yaml:"mint"`
	Amount       uint64 `yaml:"amount"`
	Role         string `yaml:"role"`
	NewAuthority string `yaml:"new_authority"`
	Wallet       string `yaml:"wallet"`
	Funding      string `yaml:"funding"`
	Associated   string `yaml:"associated"`

	Market     string   `yaml:"market"`
	OpenOrders string   `yaml:"open_orders"`
	Payer      string   `yaml:"payer"`
	Side       string   `yaml:"side"`
	Type       string   `yaml:"type"`
	Price      uint64   `yaml:"price"`
	Qty        uint64   `yaml:"qty"`
	MaxPC      uint64   `yaml:"max_pc"`
	ClientID   uint64   `yaml:"client_id"`
	ClientIDs  []uint64 `yaml:"client_ids"`
	Limit      uint16   `yaml:"limit"`
	Referral   string   `yaml:"referral"`
	CoinWallet string   `yaml:"coin_wallet"`
	PCWallet   string   `yaml:"pc_wallet"`
	Referrer   string   `yaml:"referrer"`
}

// Step is a resolved scenario step. Keys a step does not use are zero.
type Step struct {
	Index         int
	Op            instruction.Op
	ExpectFailure bool

	Source       solana.PublicKey
	Destination  solana.PublicKey
	Owner        solana.PublicKey
	Account      solana.PublicKey
	Mint         solana.PublicKey
	Amount       uint64
	Role         schema.AuthorityType
	NewAuthority solana.PublicKey
	Wallet       solana.PublicKey
	Funding      solana.PublicKey
	Associated   solana.PublicKey

	Market     runtime.MarketConfig
	OpenOrders solana.PublicKey
	Payer      solana.PublicKey
	Side       schema.OrderSide
	Type       schema.OrderType
	Price      uint64
	Qty        uint64
	MaxPC      uint64
	ClientID   schema.ClientOrderID
	ClientIDs  [codec.ClientIDSlots]schema.ClientOrderID
	Limit      uint16
	Referral   solana.PublicKey
	CoinWallet solana.PublicKey
	PCWallet   solana.PublicKey
	Referrer   solana.PublicKey
}

func (s Step) String() string {
	return fmt.Sprintf("#%d %s", s.Index, s.Op)
}

// stepResolver resolves the named fields of one step, keeping the first
// error.
type stepResolver struct {
	reg  *schema.Registry
	step string
	err  error
}

func (r *stepResolver) key(field, name string) solana.PublicKey {
	if r.err != nil {
		return solana.PublicKey{}
	}
	if name == "" {
		r.err = errors.Wrapf(exception.ErrConfigMissingField, "step %s: %s", r.step, field)
		return solana.PublicKey{}
	}
	key, err := r.reg.Resolve(name)
	if err != nil {
		r.err = errors.Wrapf(err, "step %s: %s", r.step, field)
	}
	return key
}

func (r *stepResolver) optional(field, name string) solana.PublicKey {
	if name == "" {
		return solana.PublicKey{}
	}
	return r.key(field, name)
}

func (r *stepResolver) fail(err error, format string, args ...any) {
	if r.err == nil {
		r.err = errors.Wrapf(err, "step %s: "+format, append([]any{r.step}, args...)...)
	}
}

func resolveSteps(reg *schema.Registry, programs runtime.Config, markets []Market, cfgs []StepConfig) ([]Step, error) {
	byName := make(map[string]runtime.MarketConfig, len(markets))
	for _, m := range markets {
		byName[m.Name] = m.MarketConfig
	}

	out := make([]Step, 0, len(cfgs))
	for i, cfg := range cfgs {
		step, err := resolveStep(reg, programs, byName, i+1, cfg)
		if err != nil {
			return nil, err
		}
		out = append(out, step)
	}
	return out, nil
}

func resolveStep(reg *schema.Registry, programs runtime.Config, markets map[string]runtime.MarketConfig, index int, cfg StepConfig) (Step, error) {
	op, ok := instruction.ParseOp(cfg.Op)
	if !ok {
		return Step{}, errors.Wrapf(exception.ErrConfigUnknownStep, "step #%d: %q", index, cfg.Op)
	}
	step := Step{Index: index, Op: op}
	r := &stepResolver{reg: reg, step: step.String()}

	switch cfg.Expect {
	case "", "ok":
	case "fail":
		step.ExpectFailure = true
	default:
		r.fail(exception.ErrConfigInvalidValue, "expect: %q", cfg.Expect)
	}

	switch op {
	case instruction.OpTransfer:
		step.Source = r.key("source", cfg.Source)
		step.Destination = r.key("destination", cfg.Destination)
		step.Owner = r.key("owner", cfg.Owner)
		step.Amount = cfg.Amount
	case instruction.OpMintTo:
		step.Mint = r.key("mint", cfg.Mint)
		step.Destination = r.key("destination", cfg.Destination)
		step.Amount = cfg.Amount
	case instruction.OpBurn:
		step.Account = r.key("account", cfg.Account)
		step.Mint = r.key("mint", cfg.Mint)
		step.Owner = r.key("owner", cfg.Owner)
		step.Amount = cfg.Amount
	case instruction.OpCloseAccount:
		step.Account = r.key("account", cfg.Account)
		step.Destination = r.key("destination", cfg.Destination)
	case instruction.OpSetAuthority:
		step.Account = r.key("account", cfg.Account)
		step.NewAuthority = r.key("new_authority", cfg.NewAuthority)
		role, ok := schema.ParseAuthorityType(cfg.Role)
		if !ok {
			r.fail(exception.ErrConfigInvalidValue, "role: %q", cfg.Role)
		}
		step.Role = role
	case instruction.OpCreateAssociated:
		step.Wallet = r.key("wallet", cfg.Wallet)
		step.Mint = r.key("mint", cfg.Mint)
		step.Funding = r.key("funding", cfg.Funding)
		if r.err == nil {
			step.Associated = registerAssociated(r, programs, cfg.Associated, step.Wallet, step.Mint)
		}
	default:
		resolveVenueStep(r, markets, &step, cfg)
	}

	if r.err != nil {
		return Step{}, r.err
	}
	return step, nil
}

func resolveVenueStep(r *stepResolver, markets map[string]runtime.MarketConfig, step *Step, cfg StepConfig) {
	if cfg.Market == "" {
		r.fail(exception.ErrConfigMissingField, "market")
		return
	}
	market, ok := markets[cfg.Market]
	if !ok {
		r.fail(exception.ErrConfigUnknownAccount, "market: %s", cfg.Market)
		return
	}
	step.Market = market
	step.OpenOrders = r.key("open_orders", cfg.OpenOrders)

	switch step.Op {
	case instruction.OpInitOpenOrders:
	case instruction.OpCloseOpenOrders:
		step.Destination = r.key("destination", cfg.Destination)
	case instruction.OpNewOrder, instruction.OpReplaceOrderByClientID:
		step.Payer = r.key("payer", cfg.Payer)
		step.Referral = r.optional("referral", cfg.Referral)
		step.Side = side(r, cfg.Side)
		step.Type = schema.OrderTypeLimit
		if cfg.Type != "" {
			t, ok := schema.ParseOrderType(cfg.Type)
			if !ok {
				r.fail(exception.ErrConfigInvalidValue, "type: %q", cfg.Type)
			}
			step.Type = t
		}
		step.Price, step.Qty, step.ClientID = cfg.Price, cfg.Qty, cfg.ClientID
		step.MaxPC = cfg.MaxPC
		if step.MaxPC == 0 {
			step.MaxPC = cfg.Price * cfg.Qty * market.PCLotSize
		}
		step.Limit = cfg.Limit
		if step.Limit == 0 {
			step.Limit = DefaultOrderLimit
		}
	case instruction.OpCancelOrder:
		step.Side = side(r, cfg.Side)
		step.ClientID = cfg.ClientID
		if cfg.ClientID == 0 {
			r.fail(exception.ErrConfigMissingField, "client_id")
		}
	case instruction.OpCancelOrdersByClientIDs:
		if len(cfg.ClientIDs) > codec.ClientIDSlots {
			r.fail(exception.ErrConfigInvalidValue, "client_ids: %d ids, at most %d", len(cfg.ClientIDs), codec.ClientIDSlots)
			return
		}
		copy(step.ClientIDs[:], cfg.ClientIDs)
	case instruction.OpSettleFunds:
		step.CoinWallet = r.key("coin_wallet", cfg.CoinWallet)
		step.PCWallet = r.key("pc_wallet", cfg.PCWallet)
		step.Referrer = r.optional("referrer", cfg.Referrer)
	}
}

func side(r *stepResolver, s string) schema.OrderSide {
	v, ok := schema.ParseOrderSide(s)
	if !ok {
		r.fail(exception.ErrConfigInvalidValue, "side: %q", s)
	}
	return v
}

// registerAssociated derives the associated token account of wallet for
// mint and registers it under name, when given.
func registerAssociated(r *stepResolver, programs runtime.Config, name string, wallet, mint solana.PublicKey) solana.PublicKey {
	address, _, err := solana.FindProgramAddress(
		[][]byte{wallet[:], programs.TokenProgram[:], mint[:]},
		programs.AssociatedProgram,
	)
	if err != nil {
		r.fail(exception.ErrConfigInvalidKey, "associated: %v", err)
		return solana.PublicKey{}
	}
	if name == "" {
		return address
	}
	if existing, ok := r.reg.Key(name); ok {
		if existing != address {
			r.fail(exception.ErrConfigDuplicateName, "associated: %s", name)
		}
		return address
	}
	if err := r.reg.Add(name, address); err != nil {
		r.fail(err, "associated: %s", name)
	}
	return address
}
