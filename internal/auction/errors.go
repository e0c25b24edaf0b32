package auction

import "errors"

var ErrNotAuthorized = errors.New("not authorized")
var ErrInvalidTransition = errors.New("invalid status transition")
var ErrInvalidState = errors.New("command not valid in current state")
var ErrBudgetExceeded = errors.New("bid exceeds budget ceiling")
var ErrInvalidSlot = errors.New("invalid roster slot")
var ErrNotFound = errors.New("not found")
var ErrInvalidSession = errors.New("invalid session")
var ErrGenerationExhausted = errors.New("unique code generation exhausted")
var ErrUnsupportedCommand = errors.New("unsupported command")
