package push

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// ErrorKind is the shape of a failed delivery as seen at the client boundary
type ErrorKind int

const (
	// ErrorKindStatus is an HTTP response with a non-success status
	ErrorKindStatus ErrorKind = iota
	// ErrorKindTimeout means no response arrived within the send timeout
	ErrorKindTimeout
	// ErrorKindOther covers transport, encoding and any other failure
	ErrorKindOther
)

func (k ErrorKind) String() string {
	switch k {
	case ErrorKindStatus:
		return "status"
	case ErrorKindTimeout:
		return "timeout"
	default:
		return "other"
	}
}

// DeliveryError is returned by DeliveryClient implementations.
type DeliveryError struct {
	Kind       ErrorKind
	StatusCode int
	Body       string
	Err        error
}

func (e *DeliveryError) Error() string {
	switch e.Kind {
	case ErrorKindStatus:
		return fmt.Sprintf("provider returned status %d: %s", e.StatusCode, truncate(e.Body, 256))
	case ErrorKindTimeout:
		return fmt.Sprintf("provider request timed out: %v", e.Err)
	default:
		return fmt.Sprintf("provider request failed: %v", e.Err)
	}
}

func (e *DeliveryError) Unwrap() error { return e.Err }

// StatusError builds a status-kind DeliveryError.
func StatusError(code int, body string) *DeliveryError {
	return &DeliveryError{Kind: ErrorKindStatus, StatusCode: code, Body: body}
}

// Classification is how the retry executor treats one attempt's outcome
type Classification int

const (
	// ClassSuccess means the provider accepted the message
	ClassSuccess Classification = iota
	// ClassStaleRecipient means the token or topic is no longer valid (400, 404)
	ClassStaleRecipient
	// ClassTransientServer is a provider-side failure worth retrying (500, 503)
	ClassTransientServer
	// ClassPermanentClient is any other status; the message is dropped
	ClassPermanentClient
	// ClassTransientTimeout means the attempt hit its deadline
	ClassTransientTimeout
	// ClassUnclassified covers transport errors that fit no other class
	ClassUnclassified
)

func (c Classification) String() string {
	switch c {
	case ClassSuccess:
		return "success"
	case ClassStaleRecipient:
		return "stale_recipient"
	case ClassTransientServer:
		return "transient_server"
	case ClassPermanentClient:
		return "permanent_client"
	case ClassTransientTimeout:
		return "timeout"
	default:
		return "unclassified"
	}
}

// Retryable reports whether another attempt may follow.
func (c Classification) Retryable() bool {
	return c == ClassTransientServer || c == ClassTransientTimeout
}

// Classify maps a send result onto a Classification.
//
//	nil                        -> success
//	400, 404                   -> stale recipient
//	500, 503                   -> transient server error
//	any other status           -> permanent client error
//	timeout                    -> transient timeout
//	anything else              -> unclassified
func Classify(err error) Classification {
	if err == nil {
		return ClassSuccess
	}

	var de *DeliveryError
	if errors.As(err, &de) {
		switch de.Kind {
		case ErrorKindStatus:
			return classifyStatus(de.StatusCode)
		case ErrorKindTimeout:
			return ClassTransientTimeout
		}
	}

	if isTimeout(err) {
		return ClassTransientTimeout
	}
	return ClassUnclassified
}

func classifyStatus(code int) Classification {
	switch code {
	case http.StatusBadRequest, http.StatusNotFound:
		return ClassStaleRecipient
	case http.StatusInternalServerError, http.StatusServiceUnavailable:
		return ClassTransientServer
	default:
		return ClassPermanentClient
	}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "..."
}
