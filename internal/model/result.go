package model

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Result is the outcome of a top-level operation: either a payload or a
// human-readable failure reason, never both.
type Result[T any] struct {
	ok     bool
	value  T
	reason string
}

func Succeed[T any](v T) Result[T] {
	return Result[T]{ok: true, value: v}
}

func Fail[T any](reason string) Result[T] {
	return Result[T]{reason: reason}
}

func Failf[T any](format string, args ...any) Result[T] {
	return Fail[T](fmt.Sprintf(format, args...))
}

func (r Result[T]) OK() bool       { return r.ok }
func (r Result[T]) Value() T       { return r.value }
func (r Result[T]) Reason() string { return r.reason }

// Unwrap converts the result back into Go's (value, error) convention.
func (r Result[T]) Unwrap() (T, error) {
	if !r.ok {
		return r.value, errors.New(r.reason)
	}
	return r.value, nil
}

// MarshalJSON renders {"success": true, "result": ...} or
// {"success": false, "error": "..."}.
func (r Result[T]) MarshalJSON() ([]byte, error) {
	if !r.ok {
		return json.Marshal(struct {
			Success bool   `json:"success"`
			Error   string `json:"error"`
		}{false, r.reason})
	}
	return json.Marshal(struct {
		Success bool `json:"success"`
		Result  T    `json:"result"`
	}{true, r.value})
}

// Guard runs fn and translates a panic into a failure result named after op.
func Guard[T any](op string, fn func() Result[T]) (res Result[T]) {
	defer func() {
		if rec := recover(); rec != nil {
			res = Failf[T]("%s: unexpected failure: %v", op, rec)
		}
	}()
	return fn()
}
