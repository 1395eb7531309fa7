package exception

import "github.com/yanun0323/errors"

var (
	ErrConfigEmptyPath      = errors.New("config: empty path")
	ErrConfigInvalidKey     = errors.New("config: invalid public key")
	ErrConfigUnknownAccount = errors.New("config: unknown account name")
	ErrConfigUnknownStep    = errors.New("config: unknown scenario step")
	ErrConfigDuplicateName  = errors.New("config: duplicate name")
	ErrConfigMissingField   = errors.New("config: missing required field")
	ErrConfigInvalidValue   = errors.New("config: invalid value")
)
