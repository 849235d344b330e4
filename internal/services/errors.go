// Package services defines the business logic for personality scoring,
// consultations, counselor matching and the request lifecycle. This file
// centralizes service-level error values so that they can be consistently
// returned by service methods and checked by callers.
//
// Every sentinel belongs to exactly one Kind. Handlers translate kinds to
// HTTP status codes; the service layer never formats user-facing messages.
package services

import (
	"errors"

	"github.com/tbourn/go-counsel-backend/internal/repo"
	"github.com/tbourn/go-counsel-backend/internal/scoring"
)

// Kind classifies an error for the boundary layer.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindNotFound
	KindForbidden
	KindConflict
	KindUnavailable
)

// String returns a stable lowercase name.
func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindForbidden:
		return "forbidden"
	case KindConflict:
		return "conflict"
	case KindUnavailable:
		return "unavailable"
	default:
		return "internal"
	}
}

// Validation errors.
var (
	// ErrInvalidNickname is returned when a nickname is blank or longer than
	// 100 characters.
	ErrInvalidNickname = errors.New("nickname must be 1-100 characters")

	// ErrInvalidStatus is returned for an unknown counselor status.
	ErrInvalidStatus = errors.New("invalid counselor status")

	// ErrEmptyMessage is returned when a message has no content.
	ErrEmptyMessage = errors.New("message is empty")

	// ErrMessageTooLong is returned when a message exceeds the configured limit.
	ErrMessageTooLong = errors.New("message too long")

	// ErrInvalidSender is returned for a sender type other than user or
	// counselor.
	ErrInvalidSender = errors.New("invalid sender type")

	// ErrInvalidTake is returned when a music request asks for fewer than 1
	// or more than 10 tracks.
	ErrInvalidTake = errors.New("take must be between 1 and 10")

	// ErrNotEnoughText is returned when a consultation has too little
	// conversation to analyze.
	ErrNotEnoughText = errors.New("not enough conversation to analyze")
)

// Not-found errors.
var (
	ErrConsultationNotFound = errors.New("consultation not found")
	ErrCounselorNotFound    = errors.New("counselor not found")
	ErrRequestNotFound      = errors.New("consultation request not found")
	ErrCharacterNotFound    = errors.New("character type not found")
	ErrCategoryNotFound     = errors.New("category not found")
	ErrCardNotFound         = errors.New("consultation card not found")
)

// Forbidden errors.
var (
	// ErrNotRequestOwner is returned when a counselor answers a request that
	// was sent to someone else.
	ErrNotRequestOwner = errors.New("request belongs to another counselor")

	// ErrNotAssignedCounselor is returned when a counselor acts on a
	// consultation they are not assigned to.
	ErrNotAssignedCounselor = errors.New("counselor is not assigned to this consultation")

	// ErrCounselorNotApproved is returned when an inactive or unapproved
	// counselor tries to work.
	ErrCounselorNotApproved = errors.New("counselor is not approved")
)

// Conflict errors.
var (
	// ErrRequestNotPending is returned when a request was already accepted,
	// rejected or expired, including when a concurrent caller won the race.
	ErrRequestNotPending = errors.New("request already processed")

	// ErrCounselorUnavailable is returned at accept time when the counselor's
	// status no longer allows taking a session.
	ErrCounselorUnavailable = errors.New("counselor is not available")

	// ErrCapacityExceeded is returned at accept time when the counselor is
	// already at max_concurrent_sessions.
	ErrCapacityExceeded = errors.New("counselor is at capacity")

	// ErrConsultationClosed is returned for operations on a completed or
	// terminated consultation.
	ErrConsultationClosed = errors.New("consultation is closed")

	// ErrConsultationNotWaiting is returned when a consultation left the
	// waiting state before a request for it was accepted.
	ErrConsultationNotWaiting = errors.New("consultation is no longer waiting")

	// ErrConsultationNotCompleted is returned when a card is requested for a
	// consultation that has not finished.
	ErrConsultationNotCompleted = errors.New("consultation is not completed")

	// ErrCardAlreadyIssued is returned when a second card is requested.
	ErrCardAlreadyIssued = errors.New("card already issued")

	// ErrDuplicateCode is returned when a unique consultation code could not
	// be generated.
	ErrDuplicateCode = errors.New("could not allocate a unique consultation code")
)

// Unavailable errors.
var (
	// ErrMusicUnavailable wraps failures of the external music API.
	ErrMusicUnavailable = errors.New("music service unavailable")
)

// kinds is ordered so that an error wrapping sentinels of several kinds is
// classified deterministically: the first match wins.
var kinds = []struct {
	sentinel error
	kind     Kind
}{
	{ErrInvalidNickname, KindValidation},
	{ErrInvalidStatus, KindValidation},
	{ErrEmptyMessage, KindValidation},
	{ErrMessageTooLong, KindValidation},
	{ErrInvalidSender, KindValidation},
	{ErrInvalidTake, KindValidation},
	{ErrNotEnoughText, KindValidation},

	{scoring.ErrNoSelections, KindValidation},
	{scoring.ErrEmptyCategory, KindValidation},
	{scoring.ErrTooManySelections, KindValidation},
	{scoring.ErrUnknownKeyword, KindValidation},
	{scoring.ErrInvalidCategory, KindValidation},
	{scoring.ErrDuplicateKeyword, KindValidation},

	{ErrConsultationNotFound, KindNotFound},
	{ErrCounselorNotFound, KindNotFound},
	{ErrRequestNotFound, KindNotFound},
	{ErrCharacterNotFound, KindNotFound},
	{ErrCategoryNotFound, KindNotFound},
	{ErrCardNotFound, KindNotFound},

	{ErrNotRequestOwner, KindForbidden},
	{ErrNotAssignedCounselor, KindForbidden},
	{ErrCounselorNotApproved, KindForbidden},

	{ErrRequestNotPending, KindConflict},
	{ErrCounselorUnavailable, KindConflict},
	{ErrCapacityExceeded, KindConflict},
	{ErrConsultationClosed, KindConflict},
	{ErrConsultationNotWaiting, KindConflict},
	{ErrConsultationNotCompleted, KindConflict},
	{ErrCardAlreadyIssued, KindConflict},
	{ErrDuplicateCode, KindConflict},

	{ErrMusicUnavailable, KindUnavailable},
}

// KindOf classifies err by walking its wrap chain. Unclassified errors are
// KindInternal.
func KindOf(err error) Kind {
	if err == nil {
		return KindInternal
	}
	for _, k := range kinds {
		if errors.Is(err, k.sentinel) {
			return k.kind
		}
	}
	return KindInternal
}

// isNotFound treats repo-level not found sentinels as "not found" in a
// driver-agnostic way.
func isNotFound(err error) bool {
	return errors.Is(err, repo.ErrNotFound)
}

// isDuplicate detects unique-constraint violations across drivers.
func isDuplicate(err error) bool {
	return repo.IsUniqueViolation(err)
}
