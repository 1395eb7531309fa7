package instruction

import (
	"ammcpi/internal/codec"
	"ammcpi/internal/errors"
	"ammcpi/internal/schema"
	"ammcpi/pkg/exception"

	"github.com/gagliardetto/solana-go"
)

type InitOpenOrdersAccounts struct {
	OpenOrders schema.AccountRef
	Owner      schema.AccountRef
	Market     schema.AccountRef
	Rent       schema.AccountRef
	DexProgram schema.AccountRef
}

func InitOpenOrders(accounts InitOpenOrdersAccounts) (Descriptor, error) {
	r := required{op: OpInitOpenOrders}
	metas := solana.AccountMetaSlice{
		solana.Meta(r.key("open_orders", accounts.OpenOrders)).WRITE(),
		solana.Meta(r.key("owner", accounts.Owner)).SIGNER(),
		solana.Meta(r.key("market", accounts.Market)),
		solana.Meta(r.key("rent", accounts.Rent)),
	}
	r.program(accounts.DexProgram.Key)
	if r.err != nil {
		return Descriptor{}, r.err
	}

	return newDescriptor(OpInitOpenOrders, accounts.DexProgram.Key, metas,
		codec.EncodeDexHeader(nil, codec.DexTagInitOpenOrders)), nil
}

type CloseOpenOrdersAccounts struct {
	OpenOrders  schema.AccountRef
	Owner       schema.AccountRef
	Destination schema.AccountRef
	Market      schema.AccountRef
	DexProgram  schema.AccountRef
}

func CloseOpenOrders(accounts CloseOpenOrdersAccounts) (Descriptor, error) {
	r := required{op: OpCloseOpenOrders}
	metas := solana.AccountMetaSlice{
		solana.Meta(r.key("open_orders", accounts.OpenOrders)).WRITE(),
		solana.Meta(r.key("owner", accounts.Owner)).SIGNER(),
		solana.Meta(r.key("destination", accounts.Destination)).WRITE(),
		solana.Meta(r.key("market", accounts.Market)),
	}
	r.program(accounts.DexProgram.Key)
	if r.err != nil {
		return Descriptor{}, r.err
	}

	return newDescriptor(OpCloseOpenOrders, accounts.DexProgram.Key, metas,
		codec.EncodeDexHeader(nil, codec.DexTagCloseOpenOrders)), nil
}

// OrderAccounts are shared by NewOrder and ReplaceOrderByClientID.
type OrderAccounts struct {
	Market       schema.AccountRef
	OpenOrders   schema.AccountRef
	RequestQueue schema.AccountRef
	EventQueue   schema.AccountRef
	Bids         schema.AccountRef
	Asks         schema.AccountRef
	Payer        schema.AccountRef
	Owner        schema.AccountRef
	CoinVault    schema.AccountRef
	PCVault      schema.AccountRef
	TokenProgram schema.AccountRef
	Rent         schema.AccountRef
	DexProgram   schema.AccountRef
	// Referral is the optional fee-discount account, appended last.
	Referral *schema.AccountRef
}

// OrderArgs are the caller-chosen fields of an order. Self-trade behavior
// and expiry are fixed by the layer.
type OrderArgs struct {
	Side           schema.OrderSide
	LimitPrice     uint64
	MaxCoinQty     uint64
	MaxNativePCQty uint64
	OrderType      schema.OrderType
	ClientOrderID  schema.ClientOrderID
	Limit          uint16
}

func (a OrderArgs) validate() error {
	if !a.Side.IsAvailable() {
		return errors.Wrapf(exception.ErrInstructionInvalidSide, "side: %d", a.Side)
	}
	if !a.OrderType.IsAvailable() {
		return errors.Wrapf(exception.ErrInstructionInvalidType, "type: %d", a.OrderType)
	}
	switch {
	case a.LimitPrice == 0:
		return errors.Wrap(exception.ErrInstructionZeroQuantity, "limit_price")
	case a.MaxCoinQty == 0:
		return errors.Wrap(exception.ErrInstructionZeroQuantity, "max_coin_qty")
	case a.MaxNativePCQty == 0:
		return errors.Wrap(exception.ErrInstructionZeroQuantity, "max_native_pc_qty")
	}
	return nil
}

func (a OrderArgs) wire() codec.NewOrderV3 {
	return codec.NewOrderV3{
		Side:              a.Side,
		LimitPrice:        a.LimitPrice,
		MaxCoinQty:        a.MaxCoinQty,
		MaxNativePCQty:    a.MaxNativePCQty,
		SelfTradeBehavior: schema.SelfTradeCancelProvide,
		OrderType:         a.OrderType,
		ClientOrderID:     a.ClientOrderID,
		Limit:             a.Limit,
		MaxTS:             schema.MaxTimestamp,
	}
}

// NewOrder places an order.
func NewOrder(accounts OrderAccounts, args OrderArgs) (Descriptor, error) {
	return order(OpNewOrder, codec.DexTagNewOrderV3, accounts, args)
}

// ReplaceOrderByClientID cancels the live order tagged args.ClientOrderID,
// if any, and places args in the same step.
func ReplaceOrderByClientID(accounts OrderAccounts, args OrderArgs) (Descriptor, error) {
	return order(OpReplaceOrderByClientID, codec.DexTagReplaceOrderByClientID, accounts, args)
}

func order(op Op, tag uint32, accounts OrderAccounts, args OrderArgs) (Descriptor, error) {
	if err := args.validate(); err != nil {
		return Descriptor{}, err
	}

	r := required{op: op}
	metas := make(solana.AccountMetaSlice, 0, 13)
	metas = append(metas,
		solana.Meta(r.key("market", accounts.Market)).WRITE(),
		solana.Meta(r.key("open_orders", accounts.OpenOrders)).WRITE(),
		solana.Meta(r.key("request_queue", accounts.RequestQueue)).WRITE(),
		solana.Meta(r.key("event_queue", accounts.EventQueue)).WRITE(),
		solana.Meta(r.key("bids", accounts.Bids)).WRITE(),
		solana.Meta(r.key("asks", accounts.Asks)).WRITE(),
		solana.Meta(r.key("payer", accounts.Payer)).WRITE(),
		solana.Meta(r.key("owner", accounts.Owner)).SIGNER(),
		solana.Meta(r.key("coin_vault", accounts.CoinVault)).WRITE(),
		solana.Meta(r.key("pc_vault", accounts.PCVault)).WRITE(),
		solana.Meta(r.key("token_program", accounts.TokenProgram)),
		solana.Meta(r.key("rent", accounts.Rent)),
	)
	if accounts.Referral != nil {
		metas = append(metas, solana.Meta(r.key("referral", *accounts.Referral)))
	}
	r.program(accounts.DexProgram.Key)
	if r.err != nil {
		return Descriptor{}, r.err
	}

	return newDescriptor(op, accounts.DexProgram.Key, metas,
		codec.EncodeNewOrderV3(nil, tag, args.wire())), nil
}

// CancelAccounts are shared by both cancel operations.
type CancelAccounts struct {
	Market     schema.AccountRef
	Bids       schema.AccountRef
	Asks       schema.AccountRef
	OpenOrders schema.AccountRef
	Owner      schema.AccountRef
	EventQueue schema.AccountRef
	DexProgram schema.AccountRef
}

func (accounts CancelAccounts) metas(op Op) (solana.AccountMetaSlice, error) {
	r := required{op: op}
	metas := solana.AccountMetaSlice{
		solana.Meta(r.key("market", accounts.Market)).WRITE(),
		solana.Meta(r.key("bids", accounts.Bids)).WRITE(),
		solana.Meta(r.key("asks", accounts.Asks)).WRITE(),
		solana.Meta(r.key("open_orders", accounts.OpenOrders)).WRITE(),
		solana.Meta(r.key("owner", accounts.Owner)).SIGNER(),
		solana.Meta(r.key("event_queue", accounts.EventQueue)).WRITE(),
	}
	r.program(accounts.DexProgram.Key)
	return metas, r.err
}

// CancelOrder cancels one live order by venue id.
func CancelOrder(accounts CancelAccounts, side schema.OrderSide, orderID schema.OrderID) (Descriptor, error) {
	if !side.IsAvailable() {
		return Descriptor{}, errors.Wrapf(exception.ErrInstructionInvalidSide, "side: %d", side)
	}
	metas, err := accounts.metas(OpCancelOrder)
	if err != nil {
		return Descriptor{}, err
	}

	return newDescriptor(OpCancelOrder, accounts.DexProgram.Key, metas,
		codec.EncodeCancelOrderV2(nil, codec.CancelOrderV2{Side: side, OrderID: orderID})), nil
}

// CancelOrdersByClientIDs cancels up to eight orders by client id. Ids with
// no live order are ignored by the venue.
func CancelOrdersByClientIDs(accounts CancelAccounts, ids [codec.ClientIDSlots]schema.ClientOrderID) (Descriptor, error) {
	metas, err := accounts.metas(OpCancelOrdersByClientIDs)
	if err != nil {
		return Descriptor{}, err
	}

	return newDescriptor(OpCancelOrdersByClientIDs, accounts.DexProgram.Key, metas,
		codec.EncodeCancelOrdersByClientIDs(nil, ids)), nil
}

type SettleAccounts struct {
	Market       schema.AccountRef
	OpenOrders   schema.AccountRef
	Owner        schema.AccountRef
	CoinVault    schema.AccountRef
	PCVault      schema.AccountRef
	CoinWallet   schema.AccountRef
	PCWallet     schema.AccountRef
	VaultSigner  schema.AccountRef
	TokenProgram schema.AccountRef
	DexProgram   schema.AccountRef
	// Referrer optionally receives the referral rebate in the quote
	// currency, appended last.
	Referrer *schema.AccountRef
}

// SettleFunds moves free balances of open orders to the owner's wallets.
func SettleFunds(accounts SettleAccounts) (Descriptor, error) {
	r := required{op: OpSettleFunds}
	metas := make(solana.AccountMetaSlice, 0, 10)
	metas = append(metas,
		solana.Meta(r.key("market", accounts.Market)).WRITE(),
		solana.Meta(r.key("open_orders", accounts.OpenOrders)).WRITE(),
		solana.Meta(r.key("owner", accounts.Owner)).SIGNER(),
		solana.Meta(r.key("coin_vault", accounts.CoinVault)).WRITE(),
		solana.Meta(r.key("pc_vault", accounts.PCVault)).WRITE(),
		solana.Meta(r.key("coin_wallet", accounts.CoinWallet)).WRITE(),
		solana.Meta(r.key("pc_wallet", accounts.PCWallet)).WRITE(),
		solana.Meta(r.key("vault_signer", accounts.VaultSigner)),
		solana.Meta(r.key("token_program", accounts.TokenProgram)),
	)
	if accounts.Referrer != nil {
		metas = append(metas, solana.Meta(r.key("referrer", *accounts.Referrer)).WRITE())
	}
	r.program(accounts.DexProgram.Key)
	if r.err != nil {
		return Descriptor{}, r.err
	}

	return newDescriptor(OpSettleFunds, accounts.DexProgram.Key, metas,
		codec.EncodeDexHeader(nil, codec.DexTagSettleFunds)), nil
}
