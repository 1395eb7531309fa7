package exception

import "github.com/yanun0323/errors"

var (
	ErrScenarioUnexpectedFailure = errors.New("scenario: step failed unexpectedly")
	ErrScenarioUnexpectedSuccess = errors.New("scenario: step expected to fail succeeded")
	ErrScenarioOrderNotFound     = errors.New("scenario: no resting order with client id")
)
