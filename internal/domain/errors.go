package domain

import "errors"

// Infrastructure errors.
var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrUnauthorized  = errors.New("unauthorized")
	ErrSigningFailed = errors.New("signing failed")
	ErrLockHeld      = errors.New("lock already held")
)

// Validation errors.
var (
	ErrInvalidAuctionID      = errors.New("invalid auction id")
	ErrZeroCurator           = errors.New("curator must be non-null")
	ErrZeroFundsRecipient    = errors.New("funds recipient must be non-null")
	ErrCuratorFeeTooHigh     = errors.New("curator fee percentage must be less than 100")
	ErrPaymentMismatch       = errors.New("sent value does not match declared bid amount")
	ErrZeroBid               = errors.New("bid amount must be greater than zero")
	ErrBelowReserve          = errors.New("must send at least reserve price")
	ErrBidIncrementTooLow    = errors.New("must send more than last bid by minimum increment amount")
	ErrZeroAmount            = errors.New("amount must be greater than zero")
	ErrInsufficientFunds     = errors.New("insufficient funds")
	ErrNotItemOwnerOrApprove = errors.New("caller must be approved or owner of the item")
	ErrItemTransfer          = errors.New("item custody transfer failed")
	ErrDurationTooLong       = errors.New("duration overflows the closing time")
)

// Access-control errors.
var (
	ErrNotCurator         = errors.New("caller must be the curator")
	ErrNotRecoveryAdmin   = errors.New("caller must be the recovery address")
	ErrRecoveryDisabled   = errors.New("recovery is disabled")
	ErrPaused             = errors.New("engine is paused")
	ErrNotPaused          = errors.New("engine is not paused")
	ErrRecoveryTransition = errors.New("recovery can only move from enabled to disabled")
)

// Temporal errors.
var (
	ErrAuctionExists      = errors.New("auction already exists")
	ErrAuctionNotFound    = errors.New("auction does not exist")
	ErrAuctionExpired     = errors.New("auction expired")
	ErrAuctionNotStarted  = errors.New("auction has not started")
	ErrAuctionNotComplete = errors.New("auction has not completed")
	ErrAuctionStarted     = errors.New("cannot cancel an auction once it has begun")
)

// ErrReentrant is returned when a guarded entry point is invoked while
// another guarded call is still executing.
var ErrReentrant = errors.New("reentrant call")

// ErrorClass groups engine failures for callers that map them to transport
// status codes.
type ErrorClass int

const (
	ClassUnknown ErrorClass = iota
	ClassValidation
	ClassAccess
	ClassTemporal
	ClassNotFound
	ClassReentrancy
)

var classes = map[error]ErrorClass{
	ErrInvalidAuctionID:      ClassValidation,
	ErrZeroCurator:           ClassValidation,
	ErrZeroFundsRecipient:    ClassValidation,
	ErrCuratorFeeTooHigh:     ClassValidation,
	ErrPaymentMismatch:       ClassValidation,
	ErrZeroBid:               ClassValidation,
	ErrBelowReserve:          ClassValidation,
	ErrBidIncrementTooLow:    ClassValidation,
	ErrZeroAmount:            ClassValidation,
	ErrInsufficientFunds:     ClassValidation,
	ErrNotItemOwnerOrApprove: ClassValidation,
	ErrItemTransfer:          ClassValidation,
	ErrDurationTooLong:       ClassValidation,
	ErrNotCurator:            ClassAccess,
	ErrNotRecoveryAdmin:      ClassAccess,
	ErrRecoveryDisabled:      ClassAccess,
	ErrPaused:                ClassAccess,
	ErrNotPaused:             ClassAccess,
	ErrRecoveryTransition:    ClassAccess,
	ErrUnauthorized:          ClassAccess,
	ErrAuctionExists:         ClassTemporal,
	ErrAuctionExpired:        ClassTemporal,
	ErrAuctionNotStarted:     ClassTemporal,
	ErrAuctionNotComplete:    ClassTemporal,
	ErrAuctionStarted:        ClassTemporal,
	ErrAuctionNotFound:       ClassNotFound,
	ErrNotFound:              ClassNotFound,
	ErrReentrant:             ClassReentrancy,
}

// Classify returns the class of the first known sentinel wrapped by err.
func Classify(err error) ErrorClass {
	if err == nil {
		return ClassUnknown
	}
	// Reentrancy wins: an inner rejection wrapped by another failure is
	// still a reentrancy failure.
	if errors.Is(err, ErrReentrant) {
		return ClassReentrancy
	}
	for sentinel, class := range classes {
		if errors.Is(err, sentinel) {
			return class
		}
	}
	return ClassUnknown
}
