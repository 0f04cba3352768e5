package domain

import "fmt"

// ConfigurationError is a missing or invalid setting. It is always fatal.
type ConfigurationError struct {
	Key    string
	Reason string
}

func (e *ConfigurationError) Error() string {
	if e.Key == "" {
		return "configuration: " + e.Reason
	}
	return fmt.Sprintf("configuration %s: %s", e.Key, e.Reason)
}

// RemoteServiceError is a non-success response from an external service.
type RemoteServiceError struct {
	Service    string
	StatusCode int
	Code       string
	Message    string
}

func (e *RemoteServiceError) Error() string {
	msg := fmt.Sprintf("%s: unexpected status %d", e.Service, e.StatusCode)
	if e.Code != "" {
		msg += " (" + e.Code + ")"
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	return msg
}

// ParseError is a single malformed source entry.
type ParseError struct {
	Entry  string
	Reason string
}

func (e *ParseError) Error() string {
	if e.Entry == "" {
		return "parse entry: " + e.Reason
	}
	return fmt.Sprintf("parse entry %q: %s", e.Entry, e.Reason)
}

// TransportError is a network-level failure talking to an external service.
type TransportError struct {
	Service string
	Op      string
	Err     error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Service, e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }
