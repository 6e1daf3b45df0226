package response

// ErrCode is a typed error code enum for consistent API error identification.
type ErrCode string

const (
	// ─── Authentication ────────────────────────────────────────────────
	ErrInvalidAccessCode  ErrCode = "INVALID_ACCESS_CODE"
	ErrTokenRequired      ErrCode = "TOKEN_REQUIRED"
	ErrTokenInvalid       ErrCode = "TOKEN_INVALID"
	ErrSessionInvalidated ErrCode = "SESSION_INVALIDATED"

	// ─── Validation ────────────────────────────────────────────────────
	ErrValidation     ErrCode = "VALIDATION_ERROR"
	ErrInvalidID      ErrCode = "INVALID_ID"
	ErrInvalidPayload ErrCode = "INVALID_PAYLOAD"

	// ─── Invitation / Test ─────────────────────────────────────────────
	ErrNotFound          ErrCode = "NOT_FOUND"
	ErrInvitationExpired ErrCode = "INVITATION_EXPIRED"
	ErrAlreadyCompleted  ErrCode = "ALREADY_COMPLETED"

	// ─── Verification ──────────────────────────────────────────────────
	ErrVerificationRequired ErrCode = "VERIFICATION_REQUIRED"
	ErrChecksFailed         ErrCode = "SYSTEM_CHECKS_FAILED"
	ErrPermissionDenied     ErrCode = "PERMISSION_DENIED"
	ErrWrongStep            ErrCode = "WRONG_VERIFICATION_STEP"

	// ─── Media ─────────────────────────────────────────────────────────
	ErrFileRequired    ErrCode = "FILE_REQUIRED"
	ErrUnsupportedFile ErrCode = "UNSUPPORTED_FILE_TYPE"
	ErrFileTooLarge    ErrCode = "FILE_TOO_LARGE"
	ErrUploadFailed    ErrCode = "UPLOAD_ERROR"

	// ─── Session / Submission ──────────────────────────────────────────
	ErrNoActiveSession ErrCode = "NO_ACTIVE_SESSION"
	ErrSubmission      ErrCode = "SUBMISSION_ERROR"
	ErrDegenerateTest  ErrCode = "DEGENERATE_TEST"

	// ─── Rate Limiting ─────────────────────────────────────────────────
	ErrRateLimitExceeded ErrCode = "RATE_LIMIT_EXCEEDED"

	// ─── Server ────────────────────────────────────────────────────────
	ErrInternal ErrCode = "INTERNAL_ERROR"
)

// GetMessage returns a human-readable message for a given error code.
func GetMessage(code ErrCode) string {
	switch code {
	// ─── Authentication ────────────────────────────────────────────────
	case ErrInvalidAccessCode:
		return "The access code is incorrect."
	case ErrTokenRequired:
		return "An authentication token is required."
	case ErrTokenInvalid:
		return "The authentication token is not valid."
	case ErrSessionInvalidated:
		return "Your session has ended. Please re-open your invitation link."

	// ─── Validation ────────────────────────────────────────────────────
	case ErrValidation:
		return "Validation failed. Please check your input."
	case ErrInvalidID:
		return "The identifier format is not valid."
	case ErrInvalidPayload:
		return "The request payload is not valid."

	// ─── Invitation / Test ─────────────────────────────────────────────
	case ErrNotFound:
		return "The requested resource was not found."
	case ErrInvitationExpired:
		return "This invitation has expired."
	case ErrAlreadyCompleted:
		return "This assessment has already been completed."

	// ─── Verification ──────────────────────────────────────────────────
	case ErrVerificationRequired:
		return "Identity verification must be completed before the assessment."
	case ErrChecksFailed:
		return "One or more system checks did not pass."
	case ErrPermissionDenied:
		return "A required browser permission was denied."
	case ErrWrongStep:
		return "This action is not valid for the current verification step."

	// ─── Media ─────────────────────────────────────────────────────────
	case ErrFileRequired:
		return "A file upload is required."
	case ErrUnsupportedFile:
		return "The file type is not supported."
	case ErrFileTooLarge:
		return "The file exceeds the size limit."
	case ErrUploadFailed:
		return "The upload failed. You can retry the capture."

	// ─── Session / Submission ──────────────────────────────────────────
	case ErrNoActiveSession:
		return "No active assessment session was found."
	case ErrSubmission:
		return "Submitting your assessment failed. Please retry."
	case ErrDegenerateTest:
		return "This test cannot be scored because it carries no points."

	// ─── Rate Limiting ─────────────────────────────────────────────────
	case ErrRateLimitExceeded:
		return "Too many requests. Please try again later."

	// ─── Server ────────────────────────────────────────────────────────
	case ErrInternal:
		return "An internal server error occurred."
	default:
		return "An unexpected error occurred."
	}
}
