// Package web defines common components for a web application.
package web

import (
	"time"

	"github.com/go-playground/validator/v10"
)

// Response holds the common response type for all APIs.
type Response struct {
	Message               string `json:"message,omitempty"`
	AccessToken           string `json:"access_token,omitempty"`
	AccessTokenExpiresAt  string `json:"access_token_expires_at,omitempty"`
	RefreshToken          string `json:"refresh_token,omitempty"`
	RefreshTokenExpiresAt string `json:"refresh_token_expires_at,omitempty"`
	Data                  any    `json:"data,omitempty"`
	Error                 string `json:"error,omitempty"`
}

// Error wraps a given err into the response envelope.
func Error(err error) Response {
	return Response{Error: err.Error()}
}

// Timestamp formats a token expiry for the response envelope.
func Timestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// GetErrorMsg returns a human readable suffix for a failed validation of the field.
func GetErrorMsg(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return " field is required"
	case "min":
		return " must be at least " + fe.Param() + " characters long"
	case "max", "lte":
		return " must be less than " + fe.Param()
	case "email":
		return " must be a valid email"
	case "datetime":
		return " must be a date in " + fe.Param() + " format"
	case "reward_interval":
		return " must be one of daily, weekly, monthly"
	case "gt":
		return " must be greater than " + fe.Param()
	}

	return " is invalid"
}

// ValidationError returns the message of the first failed field validation.
func ValidationError(ve validator.ValidationErrors) Response {
	if len(ve) == 0 {
		return Response{Error: "invalid request"}
	}

	field := ve[0]

	return Response{Error: field.Field() + GetErrorMsg(field)}
}
