package exception

import "github.com/yanun0323/errors"

var (
	ErrDispatchNilRuntime      = errors.New("dispatch: nil runtime")
	ErrDispatchEmptyDescriptor = errors.New("dispatch: empty descriptor")
	ErrDispatchMissingAccount  = errors.New("dispatch: descriptor account not supplied")
	ErrDispatchMissingProgram  = errors.New("dispatch: program account not supplied")
	ErrDispatchMissingSigner   = errors.New("dispatch: derived signer required")
)
