// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package llms

import (
	"context"
	"errors"
	"fmt"
	"net"
)

var (
	ErrHTTP               = errors.New("HTTP error")
	ErrJSON               = errors.New("JSON parse error")
	ErrAPI                = errors.New("API error")
	ErrInvalidAPIKey      = errors.New("invalid API key")
	ErrRateLimitExceeded  = errors.New("rate limit exceeded")
	ErrServerError        = errors.New("server error")
	ErrTimeout            = errors.New("request timed out")
	ErrMaxRetriesExceeded = errors.New("maximum retries exceeded")
)

// ClientError is every failure SendMessage can return.
type ClientError struct {
	Kind       error
	StatusCode int
	Message    string
	Err        error
}

func (e *ClientError) Error() string {
	switch e.Kind {
	case ErrInvalidAPIKey:
		return "Invalid API key - please check your settings"
	case ErrRateLimitExceeded:
		return "Rate limit exceeded - please wait a moment"
	case ErrTimeout:
		return "Request timed out - please check your connection"
	case ErrHTTP:
		return fmt.Sprintf("HTTP error: %v", e.Err)
	case ErrJSON:
		return fmt.Sprintf("JSON parse error: %v", e.Err)
	case ErrAPI:
		return "API error: " + e.Message
	case ErrServerError:
		return "Server error: " + e.Message
	case ErrMaxRetriesExceeded:
		return fmt.Sprintf("Maximum retries exceeded: %v", e.Err)
	default:
		return fmt.Sprintf("%v: %s", e.Kind, e.Message)
	}
}

func (e *ClientError) Unwrap() error {
	return e.Err
}

func (e *ClientError) Is(target error) bool {
	return target == e.Kind
}

// IsRetryable reports whether the same request may succeed later.
func (e *ClientError) IsRetryable() bool {
	switch e.Kind {
	case ErrRateLimitExceeded, ErrServerError, ErrTimeout:
		return true
	case ErrHTTP:
		return !errors.Is(e.Err, context.Canceled)
	default:
		return false
	}
}

// UserMessage is a short explanation suitable for an end user.
func (e *ClientError) UserMessage() string {
	switch e.Kind {
	case ErrInvalidAPIKey:
		return "Your API key is invalid. Please update it in your configuration."
	case ErrRateLimitExceeded:
		return "You've hit the rate limit. Please wait a moment and try again."
	case ErrServerError:
		return "The API server is experiencing issues. Please try again in a moment."
	case ErrTimeout:
		return "The request timed out. Please check your internet connection."
	case ErrMaxRetriesExceeded:
		return "Could not complete the request after multiple attempts. Please try again later."
	case ErrHTTP:
		var opErr *net.OpError
		if errors.As(e.Err, &opErr) && opErr.Op == "dial" {
			return "Could not connect to the API. Please check your internet connection."
		}
	}
	return "An error occurred: " + e.Error()
}

// IsRetryable reports whether err is a retryable *ClientError.
func IsRetryable(err error) bool {
	var ce *ClientError
	return errors.As(err, &ce) && ce.IsRetryable()
}

func statusError(status int, message string) *ClientError {
	e := &ClientError{StatusCode: status, Message: fmt.Sprintf("%d: %s", status, message)}
	switch {
	case status == 401 || status == 403:
		e.Kind = ErrInvalidAPIKey
	case status == 429:
		e.Kind = ErrRateLimitExceeded
	case status >= 500 && status <= 599:
		e.Kind = ErrServerError
	default:
		e.Kind = ErrAPI
	}
	return e
}

func transportError(err error) *ClientError {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return &ClientError{Kind: ErrTimeout, Err: err}
	}
	return &ClientError{Kind: ErrHTTP, Err: err}
}
