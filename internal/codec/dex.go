package codec

import (
	"encoding/binary"

	"ammcpi/internal/schema"
)

// DexVersion is the leading version byte of every order-book instruction.
const DexVersion uint8 = 0

// Order-book instruction tags.
const (
	DexTagSettleFunds             uint32 = 5
	DexTagNewOrderV3              uint32 = 10
	DexTagCancelOrderV2           uint32 = 11
	DexTagCloseOpenOrders         uint32 = 14
	DexTagInitOpenOrders          uint32 = 15
	DexTagCancelOrdersByClientIDs uint32 = 18
	DexTagReplaceOrderByClientID  uint32 = 19
)

const (
	DexHeaderSize            = 5
	NewOrderV3PayloadSize    = 54
	CancelOrderV2PayloadSize = 20
	ClientIDSlots            = 8
	ClientIDsPayloadSize     = ClientIDSlots * 8
)

// NewOrderV3 is the payload of NewOrderV3 and ReplaceOrderByClientId.
type NewOrderV3 struct {
	Side              schema.OrderSide
	LimitPrice        uint64
	MaxCoinQty        uint64
	MaxNativePCQty    uint64
	SelfTradeBehavior schema.SelfTradeBehavior
	OrderType         schema.OrderType
	ClientOrderID     uint64
	Limit             uint16
	MaxTS             int64
}

// CancelOrderV2 is the payload of CancelOrderV2.
type CancelOrderV2 struct {
	Side    schema.OrderSide
	OrderID schema.OrderID
}

// EncodeDexHeader serializes an instruction with no payload.
func EncodeDexHeader(dst []byte, tag uint32) []byte {
	dst = sized(dst, DexHeaderSize)
	putDexHeader(dst, tag)
	return dst
}

// DecodeDexHeader splits an order-book instruction into tag and payload.
func DecodeDexHeader(src []byte) (uint32, []byte, bool) {
	if len(src) < DexHeaderSize || src[0] != DexVersion {
		return 0, nil, false
	}
	return binary.LittleEndian.Uint32(src[1:5]), src[DexHeaderSize:], true
}

// EncodeNewOrderV3 serializes order under tag, which is either
// DexTagNewOrderV3 or DexTagReplaceOrderByClientID.
func EncodeNewOrderV3(dst []byte, tag uint32, order NewOrderV3) []byte {
	dst = sized(dst, DexHeaderSize+NewOrderV3PayloadSize)
	putDexHeader(dst, tag)

	p := dst[DexHeaderSize:]
	binary.LittleEndian.PutUint32(p[0:4], dexSide(order.Side))
	binary.LittleEndian.PutUint64(p[4:12], order.LimitPrice)
	binary.LittleEndian.PutUint64(p[12:20], order.MaxCoinQty)
	binary.LittleEndian.PutUint64(p[20:28], order.MaxNativePCQty)
	binary.LittleEndian.PutUint32(p[28:32], dexSelfTrade(order.SelfTradeBehavior))
	binary.LittleEndian.PutUint32(p[32:36], dexOrderType(order.OrderType))
	binary.LittleEndian.PutUint64(p[36:44], order.ClientOrderID)
	binary.LittleEndian.PutUint16(p[44:46], order.Limit)
	binary.LittleEndian.PutUint64(p[46:54], uint64(order.MaxTS))

	return dst
}

// DecodeNewOrderV3 parses the payload that follows the header.
func DecodeNewOrderV3(payload []byte) (NewOrderV3, bool) {
	if len(payload) != NewOrderV3PayloadSize {
		return NewOrderV3{}, false
	}

	side, ok := sideFromDex(binary.LittleEndian.Uint32(payload[0:4]))
	if !ok {
		return NewOrderV3{}, false
	}
	selfTrade, ok := selfTradeFromDex(binary.LittleEndian.Uint32(payload[28:32]))
	if !ok {
		return NewOrderV3{}, false
	}
	orderType, ok := orderTypeFromDex(binary.LittleEndian.Uint32(payload[32:36]))
	if !ok {
		return NewOrderV3{}, false
	}

	return NewOrderV3{
		Side:              side,
		LimitPrice:        binary.LittleEndian.Uint64(payload[4:12]),
		MaxCoinQty:        binary.LittleEndian.Uint64(payload[12:20]),
		MaxNativePCQty:    binary.LittleEndian.Uint64(payload[20:28]),
		SelfTradeBehavior: selfTrade,
		OrderType:         orderType,
		ClientOrderID:     binary.LittleEndian.Uint64(payload[36:44]),
		Limit:             binary.LittleEndian.Uint16(payload[44:46]),
		MaxTS:             int64(binary.LittleEndian.Uint64(payload[46:54])),
	}, true
}

// EncodeCancelOrderV2 serializes a cancel by venue order id. The id is a
// little-endian u128.
func EncodeCancelOrderV2(dst []byte, cancel CancelOrderV2) []byte {
	dst = sized(dst, DexHeaderSize+CancelOrderV2PayloadSize)
	putDexHeader(dst, DexTagCancelOrderV2)

	p := dst[DexHeaderSize:]
	binary.LittleEndian.PutUint32(p[0:4], dexSide(cancel.Side))
	binary.LittleEndian.PutUint64(p[4:12], cancel.OrderID.Lo)
	binary.LittleEndian.PutUint64(p[12:20], cancel.OrderID.Hi)

	return dst
}

func DecodeCancelOrderV2(payload []byte) (CancelOrderV2, bool) {
	if len(payload) != CancelOrderV2PayloadSize {
		return CancelOrderV2{}, false
	}
	side, ok := sideFromDex(binary.LittleEndian.Uint32(payload[0:4]))
	if !ok {
		return CancelOrderV2{}, false
	}
	return CancelOrderV2{
		Side: side,
		OrderID: schema.OrderID{
			Lo: binary.LittleEndian.Uint64(payload[4:12]),
			Hi: binary.LittleEndian.Uint64(payload[12:20]),
		},
	}, true
}

// EncodeCancelOrdersByClientIDs serializes exactly eight client ids.
func EncodeCancelOrdersByClientIDs(dst []byte, ids [ClientIDSlots]uint64) []byte {
	dst = sized(dst, DexHeaderSize+ClientIDsPayloadSize)
	putDexHeader(dst, DexTagCancelOrdersByClientIDs)

	p := dst[DexHeaderSize:]
	for i, id := range ids {
		binary.LittleEndian.PutUint64(p[i*8:i*8+8], id)
	}

	return dst
}

func DecodeCancelOrdersByClientIDs(payload []byte) ([ClientIDSlots]uint64, bool) {
	var ids [ClientIDSlots]uint64
	if len(payload) != ClientIDsPayloadSize {
		return ids, false
	}
	for i := range ids {
		ids[i] = binary.LittleEndian.Uint64(payload[i*8 : i*8+8])
	}
	return ids, true
}

func putDexHeader(dst []byte, tag uint32) {
	dst[0] = DexVersion
	binary.LittleEndian.PutUint32(dst[1:5], tag)
}

func dexSide(side schema.OrderSide) uint32 {
	switch side {
	case schema.OrderSideBuy:
		return 0
	case schema.OrderSideSell:
		return 1
	default:
		return 0xffffffff
	}
}

func sideFromDex(v uint32) (schema.OrderSide, bool) {
	switch v {
	case 0:
		return schema.OrderSideBuy, true
	case 1:
		return schema.OrderSideSell, true
	default:
		return 0, false
	}
}

func dexOrderType(t schema.OrderType) uint32 {
	switch t {
	case schema.OrderTypeLimit:
		return 0
	case schema.OrderTypeImmediateOrCancel:
		return 1
	case schema.OrderTypePostOnly:
		return 2
	default:
		return 0xffffffff
	}
}

func orderTypeFromDex(v uint32) (schema.OrderType, bool) {
	switch v {
	case 0:
		return schema.OrderTypeLimit, true
	case 1:
		return schema.OrderTypeImmediateOrCancel, true
	case 2:
		return schema.OrderTypePostOnly, true
	default:
		return 0, false
	}
}

func dexSelfTrade(b schema.SelfTradeBehavior) uint32 {
	switch b {
	case schema.SelfTradeDecrementTake:
		return 0
	case schema.SelfTradeCancelProvide:
		return 1
	case schema.SelfTradeAbortTransaction:
		return 2
	default:
		return 0xffffffff
	}
}

func selfTradeFromDex(v uint32) (schema.SelfTradeBehavior, bool) {
	switch v {
	case 0:
		return schema.SelfTradeDecrementTake, true
	case 1:
		return schema.SelfTradeCancelProvide, true
	case 2:
		return schema.SelfTradeAbortTransaction, true
	default:
		return 0, false
	}
}
