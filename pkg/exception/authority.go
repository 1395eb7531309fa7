package exception

import "github.com/yanun0323/errors"

var (
	ErrAuthorityInvalidSeeds  = errors.New("authority: invalid seeds")
	ErrAuthoritySeedTooLong   = errors.New("authority: seed exceeds max seed length")
	ErrAuthorityBumpNotFound  = errors.New("authority: no valid bump")
	ErrAuthorityZeroProgramID = errors.New("authority: zero program id")
)
