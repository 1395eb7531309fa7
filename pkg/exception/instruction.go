package exception

import "github.com/yanun0323/errors"

// Instruction construction errors. These are caller-side failures: the
// descriptor never reaches the runtime.
var (
	ErrInstructionMissingAccount = errors.New("instruction: missing required account")
	ErrInstructionZeroQuantity   = errors.New("instruction: quantity must be nonzero")
	ErrInstructionInvalidSide    = errors.New("instruction: invalid order side")
	ErrInstructionInvalidType    = errors.New("instruction: invalid order type")
	ErrInstructionInvalidRole    = errors.New("instruction: invalid authority role")
	ErrInstructionMalformedData  = errors.New("instruction: malformed data")
	ErrInstructionUnknownOp      = errors.New("instruction: unknown operation")
)
