// Package unit defines the schedulable test unit abstraction and the
// resolvers that discover units for a category.
package unit

import (
	"context"
	"errors"
	"fmt"

	"github.com/jj-shen99/testbench/internal/model"
)

// Result is what a unit reports when it runs to completion.
type Result struct {
	Passed bool
	Stdout string
	Stderr string
	Cases  *model.CaseCounts // Optional per-case totals
}

// Unit is one schedulable test invocation. Run must return a non-nil error
// only when the unit could not be started or failed before producing a
// pass/fail signal; a unit that ran and failed returns Result{Passed: false}.
//
// Run should observe ctx cancellation. The executor stops waiting on timeout
// regardless, so a unit that ignores ctx keeps running in the background.
type Unit interface {
	Ref() string      // Unique reference within the category (e.g., file path)
	Category() string // Owning category name
	Run(ctx context.Context) (Result, error)
}

// Failure marks an expected test failure returned from a Func unit.
type Failure struct {
	Message string
}

func (f *Failure) Error() string {
	return f.Message
}

// Fail returns a Failure with a formatted message.
func Fail(format string, args ...interface{}) error {
	return &Failure{Message: fmt.Sprintf(format, args...)}
}

// IsFailure reports whether err is or wraps a Failure.
func IsFailure(err error) bool {
	var f *Failure
	return errors.As(err, &f)
}

// Func adapts a Go function into a Unit.
//
// A nil return is a pass, a Failure is a fail, and any other error means the
// unit errored before producing a status.
type Func struct {
	ref      string
	category string
	fn       func(ctx context.Context) error
}

// NewFunc creates a Func unit.
func NewFunc(category, ref string, fn func(ctx context.Context) error) *Func {
	return &Func{ref: ref, category: category, fn: fn}
}

func (u *Func) Ref() string      { return u.ref }
func (u *Func) Category() string { return u.category }

// Run invokes the wrapped function. Panics are converted into errors.
func (u *Func) Run(ctx context.Context) (res Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	if ferr := u.fn(ctx); ferr != nil {
		if IsFailure(ferr) {
			return Result{Passed: false, Stderr: ferr.Error()}, nil
		}
		return Result{}, ferr
	}
	return Result{Passed: true}, nil
}
