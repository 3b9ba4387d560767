package domain

import "errors"

var (
	ErrUnknownInfluencer     = errors.New("unknown influencer")
	ErrUnknownBrand          = errors.New("unknown brand")
	ErrInvalidSeason         = errors.New("invalid season")
	ErrInvalidMonth          = errors.New("invalid month")
	ErrDuplicateAssignment   = errors.New("assignment already exists")
	ErrQuotaExhausted        = errors.New("no remaining quota")
	ErrGateBlocked           = errors.New("earlier month executions are not complete")
	ErrAssignmentNotFound    = errors.New("assignment not found")
	ErrExecutionCompleted    = errors.New("execution already completed")
	ErrInvalidExecutionCount = errors.New("execution count must be 0 or 1")
	ErrInvalidURL            = errors.New("invalid execution url")
	ErrMissingColumns        = errors.New("missing required columns")
	ErrRosterMissing         = errors.New("influencer roster not found")
)
