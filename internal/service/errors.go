package service

import "errors"

var (
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrIncorrectPassword   = errors.New("current password is incorrect")
	ErrEmailTaken          = errors.New("email already registered")
	ErrUserNotFound        = errors.New("user not found")
	ErrInvalidRefreshToken = errors.New("invalid refresh token")
	ErrRefreshTokenExpired = errors.New("refresh token expired")
	ErrSessionNotFound     = errors.New("session not found")
	ErrResetTokenInvalid   = errors.New("invalid or expired reset token")
	ErrResetTokenUsed      = errors.New("reset token already used")
	ErrResetTokenExpired   = errors.New("reset token expired")
)
