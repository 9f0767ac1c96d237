package payment

import (
	"context"
	"fmt"
	"log"
	"sync"
)

// GenericSetupErrorMessage is shown when setup "succeeds" without a usable
// token, or when the confirm call fails in an unexpected way. It is
// deliberately distinct from processor-reported messages: this branch is an
// integration fault, not something the user can correct.
const GenericSetupErrorMessage = "Failed to set up payment method."

// SetupForm drives one payment-method setup surface. It is bound to a single
// client secret; a new payment attempt needs a new form with a fresh secret.
//
// At most one confirm call is in flight at a time: Submit is a no-op while
// busy, enforced by the busy flag rather than any queueing.
type SetupForm struct {
	mu           sync.Mutex
	processor    Processor
	clientSecret string

	ready     bool
	busy      bool
	succeeded bool
	errMsg    string

	onSuccess func(paymentMethodToken string)
	onCancel  func()
}

// NewSetupForm creates a form for one setup attempt. onSuccess receives the
// payment-method token and fires at most once; onCancel is invoked by
// Cancel with no other side effects.
func NewSetupForm(processor Processor, clientSecret string, onSuccess func(string), onCancel func()) *SetupForm {
	return &SetupForm{
		processor:    processor,
		clientSecret: clientSecret,
		onSuccess:    onSuccess,
		onCancel:     onCancel,
	}
}

// MarkReady reports that the embedded payment surface finished initializing.
// Until then Submit is a no-op.
func (f *SetupForm) MarkReady() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ready = true
}

// Ready reports whether the payment surface finished initializing
func (f *SetupForm) Ready() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ready
}

// Busy reports whether a confirm call is in flight
func (f *SetupForm) Busy() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.busy
}

// ErrorMessage returns the currently surfaced error, empty when none
func (f *SetupForm) ErrorMessage() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.errMsg
}

// Succeeded reports whether the success callback has fired
func (f *SetupForm) Succeeded() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.succeeded
}

// Submit runs one confirm-setup attempt. Outcomes:
//   - processor setup error: its message is surfaced, retry allowed
//   - success with a string payment-method token: onSuccess fires once
//   - success without a usable token: generic error surfaced
//   - anything unexpected (including a panicking processor): recovered and
//     surfaced as the generic error, never a stuck busy state
func (f *SetupForm) Submit(ctx context.Context) {
	f.mu.Lock()
	if !f.ready || f.busy || f.succeeded {
		f.mu.Unlock()
		return
	}
	f.busy = true
	f.errMsg = ""
	secret := f.clientSecret
	f.mu.Unlock()

	result, err := f.confirm(ctx, secret)

	f.mu.Lock()
	f.busy = false
	switch {
	case err != nil:
		log.Printf("[PAYMENT] unexpected confirm-setup failure: %v", err)
		f.errMsg = GenericSetupErrorMessage
		f.mu.Unlock()
	case result.Err != nil:
		f.errMsg = result.Err.Message
		f.mu.Unlock()
	default:
		token, ok := result.Intent.PaymentMethodToken()
		if !ok {
			f.errMsg = GenericSetupErrorMessage
			f.mu.Unlock()
			return
		}
		f.succeeded = true
		onSuccess := f.onSuccess
		f.mu.Unlock()
		if onSuccess != nil {
			onSuccess(token)
		}
	}
}

// confirm isolates the processor call so a panic inside the SDK cannot
// leave the form stuck busy.
func (f *SetupForm) confirm(ctx context.Context, secret string) (result *ConfirmResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = fmt.Errorf("recovered from confirm-setup panic: %v", r)
		}
	}()
	return f.processor.ConfirmSetup(ctx, secret, RedirectIfRequired)
}

// Cancel invokes the caller-supplied cancel callback
func (f *SetupForm) Cancel() {
	f.mu.Lock()
	onCancel := f.onCancel
	f.mu.Unlock()
	if onCancel != nil {
		onCancel()
	}
}
