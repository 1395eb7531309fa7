package instruction

// Op names the cross-program operation a Descriptor encodes.
type Op uint8

const (
	_op_beg Op = iota
	OpTransfer
	OpMintTo
	OpBurn
	OpCloseAccount
	OpSetAuthority
	OpCreateAssociated
	OpInitOpenOrders
	OpCloseOpenOrders
	OpNewOrder
	OpReplaceOrderByClientID
	OpCancelOrder
	OpCancelOrdersByClientIDs
	OpSettleFunds
	_op_end
)

func (op Op) IsAvailable() bool {
	return op > _op_beg && op < _op_end
}

// IsToken reports whether op targets the token-custody service.
func (op Op) IsToken() bool {
	return op >= OpTransfer && op <= OpCreateAssociated
}

// IsVenue reports whether op targets the order-book venue.
func (op Op) IsVenue() bool {
	return op >= OpInitOpenOrders && op <= OpSettleFunds
}

func (op Op) String() string {
	switch op {
	case OpTransfer:
		return "transfer"
	case OpMintTo:
		return "mint_to"
	case OpBurn:
		return "burn"
	case OpCloseAccount:
		return "close_account"
	case OpSetAuthority:
		return "set_authority"
	case OpCreateAssociated:
		return "create_associated_account"
	case OpInitOpenOrders:
		return "init_open_orders"
	case OpCloseOpenOrders:
		return "close_open_orders"
	case OpNewOrder:
		return "new_order"
	case OpReplaceOrderByClientID:
		return "replace_order_by_client_id"
	case OpCancelOrder:
		return "cancel_order"
	case OpCancelOrdersByClientIDs:
		return "cancel_orders_by_client_ids"
	case OpSettleFunds:
		return "settle_funds"
	default:
		return "unknown"
	}
}

// Ops returns every available op in declaration order.
func Ops() []Op {
	out := make([]Op, 0, int(_op_end-_op_beg-1))
	for op := _op_beg + 1; op < _op_end; op++ {
		out = append(out, op)
	}
	return out
}

// ParseOp is the inverse of Op.String.
func ParseOp(s string) (Op, bool) {
	for _, op := range Ops() {
		if op.String() == s {
			return op, true
		}
	}
	return 0, false
}
