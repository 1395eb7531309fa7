package runtime

import (
	"math/bits"
	"slices"

	"ammcpi/internal/codec"
	"ammcpi/internal/errors"
	"ammcpi/internal/schema"
	"ammcpi/pkg/exception"

	"github.com/gagliardetto/solana-go"
)

// MaxOpenOrders bounds the live orders of one open-orders account.
const MaxOpenOrders = 128

// MarketConfig describes a venue market. Lot sizes default to 1.
type MarketConfig struct {
	Market       solana.PublicKey
	CoinMint     solana.PublicKey
	PCMint       solana.PublicKey
	CoinVault    solana.PublicKey
	PCVault      solana.PublicKey
	VaultSigner  solana.PublicKey
	Bids         solana.PublicKey
	Asks         solana.PublicKey
	RequestQueue solana.PublicKey
	EventQueue   solana.PublicKey
	CoinLotSize  uint64
	PCLotSize    uint64
}

// Order is a resting order. Price is in quote lots per base lot, Qty in
// base lots.
type Order struct {
	ID            schema.OrderID
	Side          schema.OrderSide
	Price         uint64
	Qty           uint64
	ClientOrderID schema.ClientOrderID
	OpenOrders    solana.PublicKey
}

// OpenOrders is the per-owner, per-market venue record. Balances are in
// native units; Locked backs resting orders.
type OpenOrders struct {
	Market     solana.PublicKey
	Owner      solana.PublicKey
	CoinFree   uint64
	CoinLocked uint64
	PCFree     uint64
	PCLocked   uint64
}

func (o OpenOrders) isEmpty() bool {
	return o.CoinFree == 0 && o.CoinLocked == 0 && o.PCFree == 0 && o.PCLocked == 0
}

type market struct {
	cfg  MarketConfig
	bids []Order
	asks []Order
	seq  uint64
}

func (m *market) clone() *market {
	cp := *m
	cp.bids = slices.Clone(m.bids)
	cp.asks = slices.Clone(m.asks)
	return &cp
}

func (m *market) book(side schema.OrderSide) *[]Order {
	if side == schema.OrderSideBuy {
		return &m.bids
	}
	return &m.asks
}

// insert keeps bids by price descending and asks ascending, earlier orders
// first within a level.
func (m *market) insert(o Order) {
	book := m.book(o.Side)
	i := len(*book)
	for j, resting := range *book {
		if better(o.Side, o.Price, resting.Price) {
			i = j
			break
		}
	}
	*book = slices.Insert(*book, i, o)
}

func better(side schema.OrderSide, price, than uint64) bool {
	if side == schema.OrderSideBuy {
		return price > than
	}
	return price < than
}

func crosses(side schema.OrderSide, price, resting uint64) bool {
	if side == schema.OrderSideBuy {
		return resting <= price
	}
	return resting >= price
}

func (m *market) liveOrders(openOrders solana.PublicKey) int {
	n := 0
	for _, book := range [][]Order{m.bids, m.asks} {
		for _, o := range book {
			if o.OpenOrders == openOrders {
				n++
			}
		}
	}
	return n
}

// CreateMarket registers a market and its two vaults, owned by the vault
// signer.
func (r *Runtime) CreateMarket(cfg MarketConfig) error {
	if cfg.CoinLotSize == 0 {
		cfg.CoinLotSize = 1
	}
	if cfg.PCLotSize == 0 {
		cfg.PCLotSize = 1
	}
	if r.state.exists(cfg.Market) {
		return errors.Wrapf(exception.ErrRuntimeAccountInUse, "market: %s", cfg.Market)
	}
	if err := r.CreateTokenAccount(cfg.CoinVault, cfg.CoinMint, cfg.VaultSigner, 0); err != nil {
		return err
	}
	if err := r.CreateTokenAccount(cfg.PCVault, cfg.PCMint, cfg.VaultSigner, 0); err != nil {
		return err
	}
	r.state.markets[cfg.Market] = &market{cfg: cfg}
	return nil
}

// OpenOrders returns the open-orders record at key.
func (r *Runtime) OpenOrders(key solana.PublicKey) (OpenOrders, bool) {
	o, ok := r.state.openOrders[key]
	if !ok {
		return OpenOrders{}, false
	}
	return *o, true
}

// Book returns copies of both sides of market, best first.
func (r *Runtime) Book(key solana.PublicKey) (bids, asks []Order) {
	m, ok := r.state.markets[key]
	if !ok {
		return nil, nil
	}
	return slices.Clone(m.bids), slices.Clone(m.asks)
}

func (r *Runtime) execDex(c *call) error {
	tag, payload, ok := codec.DecodeDexHeader(c.data)
	if !ok {
		return errors.Wrap(exception.ErrInstructionMalformedData, "dex program")
	}

	switch tag {
	case codec.DexTagInitOpenOrders:
		return r.initOpenOrders(c)
	case codec.DexTagCloseOpenOrders:
		return r.closeOpenOrders(c)
	case codec.DexTagNewOrderV3, codec.DexTagReplaceOrderByClientID:
		order, ok := codec.DecodeNewOrderV3(payload)
		if !ok {
			return errors.Wrap(exception.ErrInstructionMalformedData, "new order payload")
		}
		return r.newOrder(c, order, tag == codec.DexTagReplaceOrderByClientID)
	case codec.DexTagCancelOrderV2:
		cancel, ok := codec.DecodeCancelOrderV2(payload)
		if !ok {
			return errors.Wrap(exception.ErrInstructionMalformedData, "cancel order payload")
		}
		return r.cancelOrder(c, cancel)
	case codec.DexTagCancelOrdersByClientIDs:
		ids, ok := codec.DecodeCancelOrdersByClientIDs(payload)
		if !ok {
			return errors.Wrap(exception.ErrInstructionMalformedData, "cancel by client ids payload")
		}
		return r.cancelByClientIDs(c, ids)
	case codec.DexTagSettleFunds:
		return r.settleFunds(c)
	default:
		return errors.Wrapf(exception.ErrInstructionMalformedData, "dex tag: %d", tag)
	}
}

func (r *Runtime) market(key solana.PublicKey) (*market, error) {
	m, ok := r.state.markets[key]
	if !ok {
		return nil, errors.Wrapf(exception.ErrVenueMarketNotFound, "market: %s", key)
	}
	return m, nil
}

// openOrdersFor loads key and checks it belongs to owner on market.
func (r *Runtime) openOrdersFor(key, owner, market solana.PublicKey) (*OpenOrders, error) {
	oo, ok := r.state.openOrders[key]
	if !ok {
		return nil, errors.Wrapf(exception.ErrVenueOpenOrdersNotFound, "open orders: %s", key)
	}
	if oo.Owner != owner {
		return nil, errors.Wrapf(exception.ErrVenueOpenOrdersOwner, "open orders: %s", key)
	}
	if oo.Market != market {
		return nil, errors.Wrapf(exception.ErrVenueOpenOrdersMarket, "open orders: %s", key)
	}
	return oo, nil
}

// InitOpenOrders: open_orders, owner, market, rent.
func (r *Runtime) initOpenOrders(c *call) error {
	if err := c.require(4); err != nil {
		return err
	}
	key, owner := c.key(0), c.key(1)
	if _, err := r.market(c.key(2)); err != nil {
		return err
	}
	if r.state.exists(key) {
		return errors.Wrapf(exception.ErrVenueOpenOrdersInUse, "open orders: %s", key)
	}
	r.state.openOrders[key] = &OpenOrders{Market: c.key(2), Owner: owner}
	return nil
}

// CloseOpenOrders: open_orders, owner, destination, market.
func (r *Runtime) closeOpenOrders(c *call) error {
	if err := c.require(4); err != nil {
		return err
	}
	key, destination := c.key(0), c.key(2)
	m, err := r.market(c.key(3))
	if err != nil {
		return err
	}
	oo, err := r.openOrdersFor(key, c.key(1), c.key(3))
	if err != nil {
		return err
	}
	if !oo.isEmpty() || m.liveOrders(key) > 0 {
		return errors.Wrapf(exception.ErrVenueOpenOrdersNotEmpty, "open orders: %s", key)
	}

	r.state.lamports[destination] += r.state.lamports[key]
	delete(r.state.lamports, key)
	delete(r.state.openOrders, key)
	return nil
}

// newOrder: market, open_orders, request_queue, event_queue, bids, asks,
// payer, owner, coin_vault, pc_vault, token_program, rent, [referral].
func (r *Runtime) newOrder(c *call, order codec.NewOrderV3, replace bool) error {
	if err := c.require(12); err != nil {
		return err
	}
	m, err := r.market(c.key(0))
	if err != nil {
		return err
	}
	if err := m.checkQueues(c.key(2), c.key(3), c.key(4), c.key(5)); err != nil {
		return err
	}
	if err := m.checkVaults(c.key(8), c.key(9)); err != nil {
		return err
	}
	ooKey, owner := c.key(1), c.key(7)
	oo, err := r.openOrdersFor(ooKey, owner, m.cfg.Market)
	if err != nil {
		return err
	}
	if order.LimitPrice == 0 || order.MaxCoinQty == 0 || order.MaxNativePCQty == 0 {
		return errors.Wrap(exception.ErrInstructionZeroQuantity, "new order payload")
	}
	if order.MaxTS < r.cfg.Clock().Unix() {
		return errors.Wrapf(exception.ErrVenueExpired, "max_ts: %d", order.MaxTS)
	}

	if replace {
		m.cancelClientID(oo, ooKey, order.ClientOrderID)
	}
	return r.place(m, oo, ooKey, c.key(6), owner, order)
}

func (m *market) checkQueues(requestQueue, eventQueue, bids, asks solana.PublicKey) error {
	if requestQueue != m.cfg.RequestQueue || eventQueue != m.cfg.EventQueue {
		return errors.Wrapf(exception.ErrRuntimeInvalidAddress, "queues of market %s", m.cfg.Market)
	}
	return m.checkSides(bids, asks)
}

func (m *market) checkSides(bids, asks solana.PublicKey) error {
	if bids != m.cfg.Bids || asks != m.cfg.Asks {
		return errors.Wrapf(exception.ErrRuntimeInvalidAddress, "book of market %s", m.cfg.Market)
	}
	return nil
}

func (m *market) checkVaults(coinVault, pcVault solana.PublicKey) error {
	if coinVault != m.cfg.CoinVault || pcVault != m.cfg.PCVault {
		return errors.Wrapf(exception.ErrVenueVaultMismatch, "market: %s", m.cfg.Market)
	}
	return nil
}

func (r *Runtime) place(m *market, oo *OpenOrders, ooKey, payer, owner solana.PublicKey, order codec.NewOrderV3) error {
	qty := order.MaxCoinQty
	overflow, pcPerLot := bits.Mul64(order.LimitPrice, m.cfg.PCLotSize)
	if overflow != 0 {
		return exception.ErrTokenOverflow
	}
	if pcPerLot == 0 {
		return nil
	}
	if order.Side == schema.OrderSideBuy {
		if byPC := order.MaxNativePCQty / pcPerLot; byPC < qty {
			qty = byPC
		}
	}
	if qty == 0 {
		return nil
	}

	if order.OrderType == schema.OrderTypePostOnly && m.wouldCross(order.Side, order.LimitPrice) {
		return nil
	}

	// native units reserved per base lot
	unit := m.cfg.CoinLotSize
	if order.Side == schema.OrderSideBuy {
		unit = pcPerLot
	}
	hi, need := bits.Mul64(qty, unit)
	if hi != 0 {
		return exception.ErrTokenOverflow
	}
	if err := r.reserve(m, oo, payer, owner, order.Side, need); err != nil {
		return err
	}

	remaining, exhausted, err := r.match(m, oo, ooKey, order, qty)
	if err != nil {
		return err
	}
	if remaining == 0 {
		return nil
	}

	rest := order.OrderType != schema.OrderTypeImmediateOrCancel && !exhausted
	if rest && m.liveOrders(ooKey) >= MaxOpenOrders {
		return errors.Wrapf(exception.ErrVenueTooManyOrders, "open orders: %s", ooKey)
	}
	if !rest {
		release(oo, order.Side, remaining*unit)
		return nil
	}

	m.seq++
	m.insert(Order{
		ID:            schema.NewOrderID(order.Side, order.LimitPrice, m.seq),
		Side:          order.Side,
		Price:         order.LimitPrice,
		Qty:           remaining,
		ClientOrderID: order.ClientOrderID,
		OpenOrders:    ooKey,
	})
	lock(oo, order.Side, remaining*unit)
	return nil
}

func (m *market) wouldCross(side schema.OrderSide, price uint64) bool {
	opposite := m.asks
	if side == schema.OrderSideSell {
		opposite = m.bids
	}
	return len(opposite) > 0 && crosses(side, price, opposite[0].Price)
}

// reserve takes need native units for an order on side, free balance first
// and the payer for the rest. Reserved funds are held neither free nor
// locked until matching settles where they go.
func (r *Runtime) reserve(m *market, oo *OpenOrders, payer, owner solana.PublicKey, side schema.OrderSide, need uint64) error {
	free, mint, vault := &oo.CoinFree, m.cfg.CoinMint, m.cfg.CoinVault
	if side == schema.OrderSideBuy {
		free, mint, vault = &oo.PCFree, m.cfg.PCMint, m.cfg.PCVault
	}

	fromFree := min(*free, need)
	*free -= fromFree
	fromPayer := need - fromFree
	if fromPayer == 0 {
		return nil
	}

	p, err := r.state.token(payer)
	if err != nil {
		return err
	}
	if p.Mint != mint {
		return errors.Wrapf(exception.ErrTokenMintMismatch, "payer: %s", payer)
	}
	if p.Amount < fromPayer {
		return errors.Wrapf(exception.ErrVenueInsufficientPayer, "payer: %s, balance: %d, need: %d", payer, p.Amount, fromPayer)
	}
	return r.state.transfer(payer, vault, owner, fromPayer)
}

// match crosses qty base lots of order against the opposite book. It stops
// when the order is filled, the book no longer crosses, or order.Limit
// price levels have been touched (exhausted). Own orders canceled under
// CancelProvide do not touch a level.
func (r *Runtime) match(m *market, taker *OpenOrders, takerKey solana.PublicKey, order codec.NewOrderV3, qty uint64) (uint64, bool, error) {
	opposite := m.book(oppositeSide(order.Side))
	levels := uint16(0)
	var level uint64
	touched := false

	for qty > 0 && len(*opposite) > 0 {
		maker := &(*opposite)[0]
		if !crosses(order.Side, order.LimitPrice, maker.Price) {
			return qty, false, nil
		}
		self := maker.OpenOrders == takerKey
		if self && order.SelfTradeBehavior == schema.SelfTradeCancelProvide {
			m.removeAt(taker, 0, oppositeSide(order.Side))
			continue
		}
		if !touched || maker.Price != level {
			if levels == order.Limit {
				return qty, true, nil
			}
			levels++
			level, touched = maker.Price, true
		}

		fill := min(qty, maker.Qty)
		if self {
			switch order.SelfTradeBehavior {
			case schema.SelfTradeAbortTransaction:
				return 0, false, errors.Wrapf(exception.ErrVenueWouldSelfTrade, "order: %s", maker.ID)
			default:
				// decrement take: both sides shrink, nothing trades
				m.unlockFill(taker, *maker, fill)
				release(taker, order.Side, fill*m.takerUnit(order))
				qty -= fill
				m.shrinkFront(oppositeSide(order.Side), fill)
				continue
			}
		}

		makerOO, ok := r.state.openOrders[maker.OpenOrders]
		if !ok {
			return 0, false, errors.Wrapf(exception.ErrVenueOpenOrdersNotFound, "maker of %s", maker.ID)
		}
		m.trade(taker, makerOO, *maker, order, fill)
		qty -= fill
		m.shrinkFront(oppositeSide(order.Side), fill)
	}
	return qty, false, nil
}

func (m *market) takerUnit(order codec.NewOrderV3) uint64 {
	if order.Side == schema.OrderSideBuy {
		return order.LimitPrice * m.cfg.PCLotSize
	}
	return m.cfg.CoinLotSize
}

// trade fills fill base lots at the maker's price.
func (m *market) trade(taker, maker *OpenOrders, resting Order, order codec.NewOrderV3, fill uint64) {
	coin := fill * m.cfg.CoinLotSize
	pc := fill * resting.Price * m.cfg.PCLotSize

	if order.Side == schema.OrderSideBuy {
		// taker reserved at its own limit; the improvement returns free
		reserved := fill * order.LimitPrice * m.cfg.PCLotSize
		taker.PCFree += reserved - pc
		taker.CoinFree += coin
		maker.CoinLocked -= coin
		maker.PCFree += pc
		return
	}

	taker.PCFree += pc
	maker.PCLocked -= pc
	maker.CoinFree += coin
}

// unlockFill moves fill lots of a resting order's lock back to free.
func (m *market) unlockFill(oo *OpenOrders, resting Order, fill uint64) {
	if resting.Side == schema.OrderSideBuy {
		amount := fill * resting.Price * m.cfg.PCLotSize
		oo.PCLocked -= amount
		oo.PCFree += amount
		return
	}
	amount := fill * m.cfg.CoinLotSize
	oo.CoinLocked -= amount
	oo.CoinFree += amount
}

func (m *market) shrinkFront(side schema.OrderSide, fill uint64) {
	book := m.book(side)
	(*book)[0].Qty -= fill
	if (*book)[0].Qty == 0 {
		*book = slices.Delete(*book, 0, 1)
	}
}

// removeAt cancels the order at index i of side, unlocking its funds.
func (m *market) removeAt(oo *OpenOrders, i int, side schema.OrderSide) {
	book := m.book(side)
	m.unlockFill(oo, (*book)[i], (*book)[i].Qty)
	*book = slices.Delete(*book, i, i+1)
}

func (m *market) cancelClientID(oo *OpenOrders, ooKey solana.PublicKey, clientID schema.ClientOrderID) int {
	canceled := 0
	for _, side := range []schema.OrderSide{schema.OrderSideBuy, schema.OrderSideSell} {
		book := m.book(side)
		for i := 0; i < len(*book); {
			o := (*book)[i]
			if o.OpenOrders == ooKey && o.ClientOrderID == clientID {
				m.removeAt(oo, i, side)
				canceled++
				continue
			}
			i++
		}
	}
	return canceled
}

func oppositeSide(side schema.OrderSide) schema.OrderSide {
	if side == schema.OrderSideBuy {
		return schema.OrderSideSell
	}
	return schema.OrderSideBuy
}

func lock(oo *OpenOrders, side schema.OrderSide, amount uint64) {
	if side == schema.OrderSideBuy {
		oo.PCLocked += amount
		return
	}
	oo.CoinLocked += amount
}

func release(oo *OpenOrders, side schema.OrderSide, amount uint64) {
	if side == schema.OrderSideBuy {
		oo.PCFree += amount
		return
	}
	oo.CoinFree += amount
}

// cancelOrder: market, bids, asks, open_orders, owner, event_queue.
func (r *Runtime) cancelOrder(c *call, cancel codec.CancelOrderV2) error {
	m, ooKey, oo, err := r.cancelContext(c)
	if err != nil {
		return err
	}

	book := m.book(cancel.Side)
	for i, o := range *book {
		if o.ID == cancel.OrderID && o.OpenOrders == ooKey {
			m.removeAt(oo, i, cancel.Side)
			return nil
		}
	}
	return errors.Wrapf(exception.ErrVenueOrderNotFound, "order: %s", cancel.OrderID)
}

func (r *Runtime) cancelByClientIDs(c *call, ids [codec.ClientIDSlots]uint64) error {
	m, ooKey, oo, err := r.cancelContext(c)
	if err != nil {
		return err
	}
	for _, id := range ids {
		if id == 0 {
			continue
		}
		m.cancelClientID(oo, ooKey, id)
	}
	return nil
}

func (r *Runtime) cancelContext(c *call) (*market, solana.PublicKey, *OpenOrders, error) {
	if err := c.require(6); err != nil {
		return nil, solana.PublicKey{}, nil, err
	}
	m, err := r.market(c.key(0))
	if err != nil {
		return nil, solana.PublicKey{}, nil, err
	}
	if err := m.checkSides(c.key(1), c.key(2)); err != nil {
		return nil, solana.PublicKey{}, nil, err
	}
	if c.key(5) != m.cfg.EventQueue {
		return nil, solana.PublicKey{}, nil, errors.Wrapf(exception.ErrRuntimeInvalidAddress, "event queue of market %s", m.cfg.Market)
	}
	ooKey := c.key(3)
	oo, err := r.openOrdersFor(ooKey, c.key(4), m.cfg.Market)
	if err != nil {
		return nil, solana.PublicKey{}, nil, err
	}
	return m, ooKey, oo, nil
}

// settleFunds: market, open_orders, owner, coin_vault, pc_vault,
// coin_wallet, pc_wallet, vault_signer, token_program, [referrer]. Fees
// are zero, so the referrer rebate is always zero.
func (r *Runtime) settleFunds(c *call) error {
	if err := c.require(9); err != nil {
		return err
	}
	m, err := r.market(c.key(0))
	if err != nil {
		return err
	}
	oo, err := r.openOrdersFor(c.key(1), c.key(2), m.cfg.Market)
	if err != nil {
		return err
	}
	if err := m.checkVaults(c.key(3), c.key(4)); err != nil {
		return err
	}
	if c.key(7) != m.cfg.VaultSigner {
		return errors.Wrapf(exception.ErrRuntimeInvalidAddress, "vault signer of market %s", m.cfg.Market)
	}

	coinWallet, pcWallet := c.key(5), c.key(6)
	if err := r.checkWallet(coinWallet, m.cfg.CoinMint); err != nil {
		return err
	}
	if err := r.checkWallet(pcWallet, m.cfg.PCMint); err != nil {
		return err
	}
	if len(c.metas) > 9 {
		if err := r.checkWallet(c.key(9), m.cfg.PCMint); err != nil {
			return err
		}
	}

	if oo.CoinFree > 0 {
		if err := r.state.transfer(m.cfg.CoinVault, coinWallet, m.cfg.VaultSigner, oo.CoinFree); err != nil {
			return err
		}
		oo.CoinFree = 0
	}
	if oo.PCFree > 0 {
		if err := r.state.transfer(m.cfg.PCVault, pcWallet, m.cfg.VaultSigner, oo.PCFree); err != nil {
			return err
		}
		oo.PCFree = 0
	}
	return nil
}

func (r *Runtime) checkWallet(key, mint solana.PublicKey) error {
	w, err := r.state.token(key)
	if err != nil {
		return err
	}
	if w.Mint != mint {
		return errors.Wrapf(exception.ErrTokenMintMismatch, "wallet: %s", key)
	}
	return nil
}
