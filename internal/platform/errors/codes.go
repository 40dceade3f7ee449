// Package errors provides structured error handling with gRPC status mapping.
package errors

import "google.golang.org/grpc/codes"

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Dialog errors
	CodeDialogEmptyID                 Code = "DIALOG_EMPTY_ID"
	CodeDialogInvalidType             Code = "DIALOG_INVALID_TYPE"
	CodeDialogNoParticipants          Code = "DIALOG_NO_PARTICIPANTS"
	CodeDialogInvalidStatusTransition Code = "DIALOG_INVALID_STATUS_TRANSITION"
	CodeDialogStatusDisallowsOp       Code = "DIALOG_STATUS_DISALLOWS_OPERATION"

	// Participant errors
	CodeParticipantEmptyName        Code = "PARTICIPANT_EMPTY_NAME"
	CodeParticipantInvalidRole      Code = "PARTICIPANT_INVALID_ROLE"
	CodeParticipantAlreadyPresent   Code = "PARTICIPANT_ALREADY_PRESENT"
	CodeParticipantNotFound         Code = "PARTICIPANT_NOT_FOUND"
	CodePrimaryParticipantProtected Code = "PRIMARY_PARTICIPANT_PROTECTED"

	// Turn errors
	CodeTurnParticipantUnknown Code = "TURN_PARTICIPANT_UNKNOWN"
	CodeTurnEmptyMessages      Code = "TURN_EMPTY_MESSAGES"

	// Topic errors
	CodeTopicEmptyName Code = "TOPIC_EMPTY_NAME"
	CodeTopicNotFound  Code = "TOPIC_NOT_FOUND"

	// Context errors
	CodeContextVariableEmptyKey Code = "CONTEXT_VARIABLE_EMPTY_KEY"
	CodeContextInvalidScope     Code = "CONTEXT_INVALID_SCOPE"

	// Metadata errors
	CodeMetadataEmptyKey Code = "METADATA_EMPTY_KEY"

	// Storage errors
	CodeNotFound         Code = "NOT_FOUND"
	CodeVersionConflict  Code = "VERSION_CONFLICT"
	CodeEventSequenceGap Code = "EVENT_SEQUENCE_GAP"
)

// GRPCCode maps domain codes to gRPC status codes.
func (c Code) GRPCCode() codes.Code {
	switch c {
	// InvalidArgument - validation failures, bad input
	case CodeDialogEmptyID,
		CodeDialogInvalidType,
		CodeDialogNoParticipants,
		CodeParticipantEmptyName,
		CodeParticipantInvalidRole,
		CodeTurnEmptyMessages,
		CodeTopicEmptyName,
		CodeContextVariableEmptyKey,
		CodeContextInvalidScope,
		CodeMetadataEmptyKey:
		return codes.InvalidArgument

	// FailedPrecondition - state doesn't allow operation
	case CodeDialogInvalidStatusTransition,
		CodeDialogStatusDisallowsOp,
		CodePrimaryParticipantProtected,
		CodeTurnParticipantUnknown,
		CodeEventSequenceGap:
		return codes.FailedPrecondition

	// NotFound - resource doesn't exist
	case CodeNotFound,
		CodeParticipantNotFound,
		CodeTopicNotFound:
		return codes.NotFound

	// AlreadyExists - unique resource constraint
	case CodeParticipantAlreadyPresent:
		return codes.AlreadyExists

	// Aborted - optimistic concurrency failure, safe to retry
	case CodeVersionConflict:
		return codes.Aborted

	default:
		return codes.Internal
	}
}
