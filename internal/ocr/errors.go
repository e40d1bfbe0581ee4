package ocr

import "errors"

// Classified OCR failures. The service layer maps each class to a
// user-facing message instead of leaking raw API errors.
var (
	// ErrNotConfigured means no API key was provided.
	ErrNotConfigured = errors.New("ocr is not configured")

	// ErrBadImage covers rejected inputs: too large, unsupported format.
	ErrBadImage = errors.New("image was rejected by the ocr service")

	// ErrModelNotFound means the configured model does not exist or the
	// API is not enabled for the project.
	ErrModelNotFound = errors.New("ocr model not found")

	// ErrRateLimited means the quota was exceeded.
	ErrRateLimited = errors.New("ocr quota exceeded")

	// ErrAuthFailed means the API key is invalid or restricted.
	ErrAuthFailed = errors.New("ocr authentication failed")

	// ErrContentBlocked means safety filters rejected the image.
	ErrContentBlocked = errors.New("image blocked by safety filters")

	// ErrInvalidResponse means the model returned something that could
	// not be parsed as a receipt item list.
	ErrInvalidResponse = errors.New("ocr returned an unparseable response")
)
