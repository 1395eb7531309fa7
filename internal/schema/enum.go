package schema

// OrderSide buy, sell
type OrderSide uint8

const (
	_order_side_beg OrderSide = iota
	OrderSideBuy
	OrderSideSell
	_order_side_end
)

func (s OrderSide) IsAvailable() bool {
	return s > _order_side_beg && s < _order_side_end
}

func (s OrderSide) String() string {
	switch s {
	case OrderSideBuy:
		return "buy"
	case OrderSideSell:
		return "sell"
	default:
		return "unknown"
	}
}

// OrderType limit, immediate-or-cancel, post-only
type OrderType uint8

const (
	_order_type_beg OrderType = iota
	OrderTypeLimit
	OrderTypeImmediateOrCancel
	OrderTypePostOnly
	_order_type_end
)

func (t OrderType) IsAvailable() bool {
	return t > _order_type_beg && t < _order_type_end
}

func (t OrderType) String() string {
	switch t {
	case OrderTypeLimit:
		return "limit"
	case OrderTypeImmediateOrCancel:
		return "ioc"
	case OrderTypePostOnly:
		return "post_only"
	default:
		return "unknown"
	}
}

// SelfTradeBehavior decrement-take, cancel-provide, abort-transaction
type SelfTradeBehavior uint8

const (
	_self_trade_beg SelfTradeBehavior = iota
	SelfTradeDecrementTake
	SelfTradeCancelProvide
	SelfTradeAbortTransaction
	_self_trade_end
)

func (b SelfTradeBehavior) IsAvailable() bool {
	return b > _self_trade_beg && b < _self_trade_end
}

// AuthorityType selects which authority role SetAuthority reassigns.
type AuthorityType uint8

const (
	_authority_type_beg AuthorityType = iota
	AuthorityMintTokens
	AuthorityFreezeAccount
	AuthorityAccountOwner
	AuthorityCloseAccount
	_authority_type_end
)

func (t AuthorityType) IsAvailable() bool {
	return t > _authority_type_beg && t < _authority_type_end
}

func (t AuthorityType) String() string {
	switch t {
	case AuthorityMintTokens:
		return "mint_tokens"
	case AuthorityFreezeAccount:
		return "freeze_account"
	case AuthorityAccountOwner:
		return "account_owner"
	case AuthorityCloseAccount:
		return "close_account"
	default:
		return "unknown"
	}
}

// ParseOrderSide is the inverse of OrderSide.String.
func ParseOrderSide(s string) (OrderSide, bool) {
	for v := _order_side_beg + 1; v < _order_side_end; v++ {
		if v.String() == s {
			return v, true
		}
	}
	return 0, false
}

// ParseOrderType is the inverse of OrderType.String.
func ParseOrderType(s string) (OrderType, bool) {
	for v := _order_type_beg + 1; v < _order_type_end; v++ {
		if v.String() == s {
			return v, true
		}
	}
	return 0, false
}

// ParseAuthorityType is the inverse of AuthorityType.String.
func ParseAuthorityType(s string) (AuthorityType, bool) {
	for v := _authority_type_beg + 1; v < _authority_type_end; v++ {
		if v.String() == s {
			return v, true
		}
	}
	return 0, false
}
