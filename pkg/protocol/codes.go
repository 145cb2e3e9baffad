package protocol

// Reason codes carried in answer_ack and error messages.
const (
	// Answer rejections
	ReasonRoundNotActive       = "round_not_active"
	ReasonAlreadyAnswered      = "already_answered"
	ReasonObserverCannotAnswer = "observer_cannot_answer"

	// Join rejections
	ReasonEmptyName = "empty_name"
	ReasonNameTaken = "name_taken"

	// Message problems
	ReasonInvalidMessage = "invalid_message"
	ReasonUnknownType    = "unknown_message_type"
	ReasonUnexpected     = "unexpected_message"

	ReasonInternalError = "internal_error"
)
