package users

import "errors"

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrNotVerified        = errors.New("account not verified")
	ErrInvalidOTP         = errors.New("invalid or expired otp")
	ErrUnsupportedRole    = errors.New("unsupported role")
	ErrMailFailed         = errors.New("email delivery failed")
	ErrGoogleDisabled     = errors.New("google sign-in is not configured")
	ErrUploadFailed       = errors.New("profile image upload failed")
)
