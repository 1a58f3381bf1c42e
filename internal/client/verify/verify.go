// Package verify collects a one-time code and hands it to a caller-supplied
// verification action once it is complete.
package verify

import (
	"context"
	"errors"
	"strings"
	"sync"
)

// CodeLength is the number of digits in a verification code.
const CodeLength = 6

// IncompleteNotice is shown when a code is submitted before all digits are entered.
const IncompleteNotice = "Please enter the 6-digit verification code"

// ErrIncompleteCode is returned by Submit when the code is not CodeLength digits.
var ErrIncompleteCode = errors.New("verification code must be 6 digits")

// Func performs the verification. Flow does not interpret its outcome.
type Func func(ctx context.Context, code string) error

// Notifier shows a transient message to the user.
type Notifier interface {
	Notify(message string)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(message string)

func (f NotifierFunc) Notify(message string) { f(message) }

type Flow struct {
	mu       sync.Mutex
	code     string
	verify   Func
	notifier Notifier
}

func New(verify Func, notifier Notifier) *Flow {
	return &Flow{verify: verify, notifier: notifier}
}

// Input replaces the code with the digits of s, keeping at most CodeLength of
// them, and returns the resulting code.
func (f *Flow) Input(s string) string {
	var b strings.Builder
	for _, r := range s {
		if b.Len() == CodeLength {
			break
		}
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.code = b.String()
	return f.code
}

func (f *Flow) Code() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.code
}

// Submit runs the verification with the current code. An incomplete code is
// rejected locally and the verification is not attempted.
func (f *Flow) Submit(ctx context.Context) error {
	code := f.Code()
	if len(code) != CodeLength {
		f.notifier.Notify(IncompleteNotice)
		return ErrIncompleteCode
	}
	return f.verify(ctx, code)
}
