package schema

import (
	"fmt"
	"math"
)

// MaxTimestamp is the expiry sentinel: orders placed by this layer never
// expire by time.
const MaxTimestamp int64 = math.MaxInt64

// ClientOrderID is the caller-assigned 64-bit order tag.
type ClientOrderID = uint64

// OrderID is the venue-assigned 128-bit order id. The venue packs the limit
// price into the high half and a sequence number into the low half.
type OrderID struct {
	Hi uint64
	Lo uint64
}

// NewOrderID builds a venue order id from a price and sequence number. Bids
// store the inverted sequence so earlier bids sort first at equal price.
func NewOrderID(side OrderSide, price, seq uint64) OrderID {
	if side == OrderSideBuy {
		seq = ^seq
	}
	return OrderID{Hi: price, Lo: seq}
}

// Price returns the limit price packed into the id.
func (id OrderID) Price() uint64 {
	return id.Hi
}

func (id OrderID) IsZero() bool {
	return id.Hi == 0 && id.Lo == 0
}

func (id OrderID) String() string {
	return fmt.Sprintf("%016x%016x", id.Hi, id.Lo)
}
