package app

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUserIDRequired is returned when a send is attempted without an
	// authenticated user id. No network call is made in that case.
	ErrUserIDRequired = errors.New("user id is required")

	// ErrSendInFlight is returned when a send is attempted while a previous
	// one has not resolved yet.
	ErrSendInFlight = errors.New("a message send is already in flight")
)

// APIError is a response the backend actually produced with a non-2xx
// status. Message carries the backend's own error text when it sent one.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api error: status %d", e.Status)
	}
	return fmt.Sprintf("api error: status %d: %s", e.Status, e.Message)
}

// ConnectionError means the request was sent but no response came back.
type ConnectionError struct {
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connection error: %v", e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// FormatAssistantError converts a failed backend call into the assistant
// message text shown inline in the chat. The texts and the leading sentinel
// match what the dashboard has always shipped.
func FormatAssistantError(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		switch apiErr.Status {
		case 404:
			return ErrorSentinel + " AI Service Not Found (404)\n\nThe AI service endpoint is not yet configured. Please set up the AI service and try again."
		case 500:
			msg := apiErr.Message
			if msg == "" {
				msg = "Internal server error occurred. Please try again later."
			}
			return ErrorSentinel + " Server Error (500)\n\n" + msg
		case 503:
			return ErrorSentinel + " Service Unavailable (503)\n\nThe AI service is currently unavailable. Please try again later."
		default:
			msg := apiErr.Message
			if msg == "" {
				msg = "An error occurred while processing your request."
			}
			return fmt.Sprintf("%s Error (%d)\n\n%s", ErrorSentinel, apiErr.Status, msg)
		}
	}

	var connErr *ConnectionError
	if errors.As(err, &connErr) {
		return ErrorSentinel + " Connection Error\n\nUnable to connect to the AI service. Please check if the service is running."
	}

	msg := ""
	if err != nil {
		msg = strings.TrimSpace(err.Error())
	}
	if msg == "" {
		msg = "An unexpected error occurred."
	}
	return ErrorSentinel + " Error\n\n" + msg
}
