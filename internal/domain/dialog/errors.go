package dialog

import apperrors "github.com/louisbranch/parley/internal/platform/errors"

var (
	// ErrEmptyDialogID indicates a missing dialog id.
	ErrEmptyDialogID = apperrors.New(apperrors.CodeDialogEmptyID, "dialog id is required")
	// ErrInvalidStatusTransition indicates a disallowed lifecycle change.
	ErrInvalidStatusTransition = apperrors.New(apperrors.CodeDialogInvalidStatusTransition, "dialog status transition is not allowed")
	// ErrStatusDisallowsOperation indicates the current status forbids the operation.
	ErrStatusDisallowsOperation = apperrors.New(apperrors.CodeDialogStatusDisallowsOp, "dialog status does not allow this operation")
	// ErrParticipantEmptyName indicates a participant without a display name.
	ErrParticipantEmptyName = apperrors.New(apperrors.CodeParticipantEmptyName, "participant name is required")
	// ErrParticipantAlreadyPresent indicates a duplicate participant id.
	ErrParticipantAlreadyPresent = apperrors.New(apperrors.CodeParticipantAlreadyPresent, "participant is already part of the dialog")
	// ErrParticipantNotFound indicates the participant is not part of the dialog.
	ErrParticipantNotFound = apperrors.New(apperrors.CodeParticipantNotFound, "participant is not part of the dialog")
	// ErrPrimaryParticipantProtected indicates an attempt to remove the primary participant.
	ErrPrimaryParticipantProtected = apperrors.New(apperrors.CodePrimaryParticipantProtected, "the primary participant cannot be removed")
	// ErrTurnParticipantUnknown indicates a turn from a non-member.
	ErrTurnParticipantUnknown = apperrors.New(apperrors.CodeTurnParticipantUnknown, "turn participant is not part of the dialog")
	// ErrTurnEmptyMessages indicates a turn without any message.
	ErrTurnEmptyMessages = apperrors.New(apperrors.CodeTurnEmptyMessages, "turn requires at least one message")
	// ErrTopicEmptyName indicates a topic without a name.
	ErrTopicEmptyName = apperrors.New(apperrors.CodeTopicEmptyName, "topic name is required")
	// ErrTopicNotFound indicates the topic is not part of the dialog.
	ErrTopicNotFound = apperrors.New(apperrors.CodeTopicNotFound, "topic is not part of the dialog")
	// ErrContextVariableEmptyKey indicates a context variable without a name.
	ErrContextVariableEmptyKey = apperrors.New(apperrors.CodeContextVariableEmptyKey, "context variable name is required")
	// ErrContextInvalidScope indicates an unrecognized context scope.
	ErrContextInvalidScope = apperrors.New(apperrors.CodeContextInvalidScope, "context variable scope is not supported")
)

// newStateError reports a disallowed status transition, carrying from/to for
// diagnostics without leaking internal state representation.
func newStateError(from, to Status) error {
	return apperrors.WithMetadata(apperrors.CodeDialogInvalidStatusTransition, "dialog status transition is not allowed", map[string]string{
		"from": string(from),
		"to":   string(to),
	})
}

// newStatusDisallowsError reports an operation forbidden by the current status.
func newStatusDisallowsError(op string, status Status) error {
	return apperrors.WithMetadata(apperrors.CodeDialogStatusDisallowsOp, "dialog status does not allow this operation", map[string]string{
		"operation": op,
		"status":    string(status),
	})
}
