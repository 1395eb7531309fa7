package ops

import (
	"bytes"
	"crypto/sha256"
	"os"

	"ammcpi/internal/authority"
	"ammcpi/internal/errors"
	"ammcpi/internal/runtime"
	"ammcpi/internal/schema"
	"ammcpi/pkg/exception"

	"github.com/gagliardetto/solana-go"
	"gopkg.in/yaml.v3"
)

// AuthorityName is the reserved account name of the derived authority.
const AuthorityName = "authority"

// FileConfig mirrors the YAML config layout.
type FileConfig struct {
	Programs  ProgramsConfig  `yaml:"programs"`
	Authority AuthorityConfig `yaml:"authority"`
	Accounts  []AccountConfig `yaml:"accounts"`
	Mints     []MintConfig    `yaml:"mints"`
	Wallets   []WalletConfig  `yaml:"wallets"`
	Markets   []MarketConfig  `yaml:"markets"`
	Steps     []StepConfig    `yaml:"steps"`
}

// ProgramsConfig holds base58 program ids. Everything but amm defaults to
// mainnet.
type ProgramsConfig struct {
	AMM        string `yaml:"amm"`
	Token      string `yaml:"token"`
	Associated string `yaml:"associated"`
	System     string `yaml:"system"`
	Dex        string `yaml:"dex"`
	Rent       string `yaml:"rent"`
}

// AuthorityConfig is the pool authority seed. Without a nonce the canonical
// bump is searched.
type AuthorityConfig struct {
	Seed  string `yaml:"seed"`
	Nonce *uint8 `yaml:"nonce"`
}

// AccountConfig names an externally signed account or a key used as an
// account address (open orders, referral). Key defaults to one derived from
// the name.
type AccountConfig struct {
	Name     string `yaml:"name"`
	Key      string `yaml:"key"`
	Lamports uint64 `yaml:"lamports"`
}

type MintConfig struct {
	Name      string `yaml:"name"`
	Key       string `yaml:"key"`
	Decimals  uint8  `yaml:"decimals"`
	Authority string `yaml:"authority"`
}

// WalletConfig is a token account.
type WalletConfig struct {
	Name   string `yaml:"name"`
	Key    string `yaml:"key"`
	Mint   string `yaml:"mint"`
	Owner  string `yaml:"owner"`
	Amount uint64 `yaml:"amount"`
}

// MarketConfig describes a venue market. Its vaults, book sides, queues and
// vault signer are registered as "<name>/coin_vault", "<name>/bids" and so
// on.
type MarketConfig struct {
	Name        string `yaml:"name"`
	CoinMint    string `yaml:"coin_mint"`
	PCMint      string `yaml:"pc_mint"`
	CoinLotSize uint64 `yaml:"coin_lot_size"`
	PCLotSize   uint64 `yaml:"pc_lot_size"`
}

// Loaded is the resolved configuration ready for use.
type Loaded struct {
	Runtime  runtime.Config
	Seed     authority.Seed
	Signer   authority.Signer
	Registry *schema.Registry
	Accounts []Account
	Mints    []Mint
	Wallets  []Wallet
	Markets  []Market
	Steps    []Step
}

type Account struct {
	Name     string
	Key      solana.PublicKey
	Lamports uint64
}

type Mint struct {
	Name      string
	Key       solana.PublicKey
	Decimals  uint8
	Authority solana.PublicKey
}

type Wallet struct {
	Name   string
	Key    solana.PublicKey
	Mint   solana.PublicKey
	Owner  solana.PublicKey
	Amount uint64
}

type Market struct {
	Name string
	runtime.MarketConfig
}

// Load reads a YAML config file.
func Load(path string) (Loaded, error) {
	if path == "" {
		return Loaded{}, exception.ErrConfigEmptyPath
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Loaded{}, err
	}
	loaded, err := Parse(data)
	if err != nil {
		return Loaded{}, errors.Wrapf(err, "config: %s", path)
	}
	return loaded, nil
}

// Parse resolves a YAML document. Unknown fields are rejected.
func Parse(data []byte) (Loaded, error) {
	var cfg FileConfig
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return Loaded{}, err
	}
	return Resolve(cfg)
}

// Resolve validates cfg and resolves every name to a key.
func Resolve(cfg FileConfig) (Loaded, error) {
	programs, err := resolvePrograms(cfg.Programs)
	if err != nil {
		return Loaded{}, err
	}
	seed, signer, err := resolveAuthority(cfg.Authority, programs.Program)
	if err != nil {
		return Loaded{}, err
	}

	reg := schema.NewRegistry()
	if err := reg.Add(AuthorityName, signer.Address()); err != nil {
		return Loaded{}, err
	}

	loaded := Loaded{
		Runtime:  programs,
		Seed:     seed,
		Signer:   signer,
		Registry: reg,
	}
	if loaded.Accounts, err = buildAccounts(reg, cfg.Accounts); err != nil {
		return Loaded{}, err
	}
	if loaded.Mints, err = buildMints(reg, cfg.Mints); err != nil {
		return Loaded{}, err
	}
	if loaded.Wallets, err = buildWallets(reg, cfg.Wallets); err != nil {
		return Loaded{}, err
	}
	if loaded.Markets, err = buildMarkets(reg, cfg.Markets); err != nil {
		return Loaded{}, err
	}
	if loaded.Steps, err = resolveSteps(reg, programs, loaded.Markets, cfg.Steps); err != nil {
		return Loaded{}, err
	}
	return loaded, nil
}

func resolvePrograms(cfg ProgramsConfig) (runtime.Config, error) {
	if cfg.AMM == "" {
		return runtime.Config{}, errors.Wrap(exception.ErrConfigInvalidKey, "programs.amm is required")
	}
	program, err := parseKey("programs.amm", cfg.AMM)
	if err != nil {
		return runtime.Config{}, err
	}

	out := runtime.DefaultConfig(program)
	for _, p := range []struct {
		field string
		value string
		dst   *solana.PublicKey
		zero  bool
	}{
		{"programs.token", cfg.Token, &out.TokenProgram, false},
		{"programs.associated", cfg.Associated, &out.AssociatedProgram, false},
		// the system program id is the all-zero key
		{"programs.system", cfg.System, &out.SystemProgram, true},
		{"programs.dex", cfg.Dex, &out.DexProgram, false},
		{"programs.rent", cfg.Rent, &out.Rent, false},
	} {
		if p.value == "" {
			continue
		}
		key, err := decodeKey(p.field, p.value)
		if err == nil && key.IsZero() && !p.zero {
			err = errors.Wrapf(exception.ErrConfigInvalidKey, "%s: zero key", p.field)
		}
		if err != nil {
			return runtime.Config{}, err
		}
		*p.dst = key
	}
	return out, nil
}

func resolveAuthority(cfg AuthorityConfig, program solana.PublicKey) (authority.Seed, authority.Signer, error) {
	if cfg.Seed == "" {
		return authority.Seed{}, authority.Signer{}, errors.Wrap(exception.ErrInvalidArgument, "authority.seed is required")
	}

	d := authority.NewDeriver(program)
	seed := []byte(cfg.Seed)
	var (
		signer authority.Signer
		err    error
	)
	if cfg.Nonce != nil {
		signer, err = d.Derive(seed, *cfg.Nonce)
	} else {
		signer, err = d.Find(seed)
	}
	if err != nil {
		return authority.Seed{}, authority.Signer{}, err
	}
	return authority.Seed{Bytes: seed, Nonce: signer.Nonce()}, signer, nil
}

func buildAccounts(reg *schema.Registry, cfgs []AccountConfig) ([]Account, error) {
	out := make([]Account, 0, len(cfgs))
	for _, cfg := range cfgs {
		key, err := register(reg, cfg.Name, cfg.Key)
		if err != nil {
			return nil, err
		}
		out = append(out, Account{Name: cfg.Name, Key: key, Lamports: cfg.Lamports})
	}
	return out, nil
}

func buildMints(reg *schema.Registry, cfgs []MintConfig) ([]Mint, error) {
	out := make([]Mint, 0, len(cfgs))
	for _, cfg := range cfgs {
		key, err := register(reg, cfg.Name, cfg.Key)
		if err != nil {
			return nil, err
		}
		mintAuthority := AuthorityName
		if cfg.Authority != "" {
			mintAuthority = cfg.Authority
		}
		authorityKey, err := reg.Resolve(mintAuthority)
		if err != nil {
			return nil, errors.Wrapf(err, "mint: %s", cfg.Name)
		}
		out = append(out, Mint{Name: cfg.Name, Key: key, Decimals: cfg.Decimals, Authority: authorityKey})
	}
	return out, nil
}

func buildWallets(reg *schema.Registry, cfgs []WalletConfig) ([]Wallet, error) {
	out := make([]Wallet, 0, len(cfgs))
	for _, cfg := range cfgs {
		mint, err := reg.Resolve(cfg.Mint)
		if err != nil {
			return nil, errors.Wrapf(err, "wallet: %s", cfg.Name)
		}
		owner, err := reg.Resolve(cfg.Owner)
		if err != nil {
			return nil, errors.Wrapf(err, "wallet: %s", cfg.Name)
		}
		key, err := register(reg, cfg.Name, cfg.Key)
		if err != nil {
			return nil, err
		}
		out = append(out, Wallet{Name: cfg.Name, Key: key, Mint: mint, Owner: owner, Amount: cfg.Amount})
	}
	return out, nil
}

func buildMarkets(reg *schema.Registry, cfgs []MarketConfig) ([]Market, error) {
	out := make([]Market, 0, len(cfgs))
	for _, cfg := range cfgs {
		coinMint, err := reg.Resolve(cfg.CoinMint)
		if err != nil {
			return nil, errors.Wrapf(err, "market: %s", cfg.Name)
		}
		pcMint, err := reg.Resolve(cfg.PCMint)
		if err != nil {
			return nil, errors.Wrapf(err, "market: %s", cfg.Name)
		}
		m := Market{Name: cfg.Name, MarketConfig: runtime.MarketConfig{
			CoinMint:    coinMint,
			PCMint:      pcMint,
			CoinLotSize: cfg.CoinLotSize,
			PCLotSize:   cfg.PCLotSize,
		}}
		for _, part := range []struct {
			suffix string
			dst    *solana.PublicKey
		}{
			{"", &m.Market},
			{"/coin_vault", &m.CoinVault},
			{"/pc_vault", &m.PCVault},
			{"/vault_signer", &m.VaultSigner},
			{"/bids", &m.Bids},
			{"/asks", &m.Asks},
			{"/request_queue", &m.RequestQueue},
			{"/event_queue", &m.EventQueue},
		} {
			if *part.dst, err = register(reg, cfg.Name+part.suffix, ""); err != nil {
				return nil, err
			}
		}
		if m.CoinLotSize == 0 {
			m.CoinLotSize = 1
		}
		if m.PCLotSize == 0 {
			m.PCLotSize = 1
		}
		out = append(out, m)
	}
	return out, nil
}

// register adds name with the base58 key, or a key derived from the name
// when key is empty.
func register(reg *schema.Registry, name, key string) (solana.PublicKey, error) {
	if name == AuthorityName {
		return solana.PublicKey{}, errors.Wrapf(exception.ErrConfigDuplicateName, "name %q is reserved", name)
	}
	pk := NameKey(name)
	if key != "" {
		var err error
		if pk, err = parseKey(name, key); err != nil {
			return solana.PublicKey{}, err
		}
	}
	if err := reg.Add(name, pk); err != nil {
		return solana.PublicKey{}, err
	}
	return pk, nil
}

// NameKey derives a stable key for an account configured by name only.
func NameKey(name string) solana.PublicKey {
	sum := sha256.Sum256([]byte(name))
	return solana.PublicKeyFromBytes(sum[:])
}

func decodeKey(field, value string) (solana.PublicKey, error) {
	key, err := solana.PublicKeyFromBase58(value)
	if err != nil {
		return solana.PublicKey{}, errors.Wrapf(exception.ErrConfigInvalidKey, "%s: %q, cause: %v", field, value, err)
	}
	return key, nil
}

func parseKey(field, value string) (solana.PublicKey, error) {
	key, err := decodeKey(field, value)
	if err != nil {
		return solana.PublicKey{}, err
	}
	if key.IsZero() {
		return solana.PublicKey{}, errors.Wrapf(exception.ErrConfigInvalidKey, "%s: zero key", field)
	}
	return key, nil
}
