package services

import "errors"

// User-visible failures. Handlers map each of these to a distinct response.
var (
	ErrDuplicateReport      = errors.New("target already reported")
	ErrInvalidTarget        = errors.New("unknown target")
	ErrAlreadyAppealed      = errors.New("decision already appealed")
	ErrUnknownReferenceCode = errors.New("unknown reference code")
)

// Internal failures. These never reach an end user as-is.
var (
	ErrClassifierTimeout      = errors.New("classifier did not answer in time")
	ErrInvalidTransition      = errors.New("status transition not allowed")
	ErrInvalidDecision        = errors.New("invalid decision type")
	ErrReferenceCodeExhausted = errors.New("could not allocate a unique reference code")
	ErrAppealNotFound         = errors.New("no appeal for this reference code")
	ErrAppealResolved         = errors.New("appeal already resolved")
	ErrInvalidPolicy          = errors.New("invalid policy setting")
	ErrContentRejected        = errors.New("content rejected")
	ErrAccountInactive        = errors.New("account is not active")
	ErrInvalidTrustScore      = errors.New("trust score must be between 0 and 100")
	ErrGraceExpired           = errors.New("deletion grace period has ended")

	// errSLASuperseded means a moderator acted before the sweep reached the target.
	errSLASuperseded = errors.New("review SLA no longer applies")
)
