package resource

import (
	"context"
	"errors"
	"strings"

	"adminconsole/services/console/internal/notify"
)

var (
	// ErrNotConfirmed is returned when a delete was not confirmed.
	ErrNotConfirmed = errors.New("delete not confirmed")
	// ErrValidation marks input rejected before any network call.
	ErrValidation = errors.New("validation failed")
)

// DefaultMutationError is the fallback failure toast.
const DefaultMutationError = "Terjadi kesalahan"

// UserMessager is implemented by errors that carry a message meant for the
// user, such as remote API error payloads.
type UserMessager interface {
	UserMessage() string
}

// MessageFor returns the user message carried by err, or fallback.
func MessageFor(err error, fallback string) string {
	var um UserMessager
	if errors.As(err, &um) {
		if msg := strings.TrimSpace(um.UserMessage()); msg != "" {
			return msg
		}
	}
	return fallback
}

// Messages are the toasts shown around one mutation.
type Messages struct {
	Pending string
	Success string
	Failure string
}

// Confirm asks the user to confirm a destructive action.
type Confirm func() bool

// Confirmed is a Confirm that always agrees; used when confirmation was
// collected upstream.
func Confirmed() bool { return true }

// Run performs one mutation: a loading toast, exactly one call, then a
// success toast or an error toast carrying the remote message. It does not
// touch any list state.
func Run(ctx context.Context, n notify.Notifier, msgs Messages, call func(context.Context) error) error {
	failure := msgs.Failure
	if failure == "" {
		failure = DefaultMutationError
	}
	id := n.Loading(msgs.Pending)
	err := call(ctx)
	n.Dismiss(id)
	if err != nil {
		n.Error(MessageFor(err, failure))
		return err
	}
	if msgs.Success != "" {
		n.Success(msgs.Success)
	}
	return nil
}

// Mutate runs call under the mutation protocol and re-reads the list after a
// success. On failure the list state is left exactly as it was.
func (c *Controller[T]) Mutate(ctx context.Context, msgs Messages, call func(context.Context) error) error {
	if err := Run(ctx, c.notifier, msgs, call); err != nil {
		c.logger.Warn("mutation failed", "err", err)
		return err
	}
	_ = c.Fetch(ctx)
	return nil
}

// Delete asks confirm first; nothing is sent and no toast shown when the user
// declines.
func (c *Controller[T]) Delete(ctx context.Context, confirm Confirm, msgs Messages, call func(context.Context) error) error {
	if confirm == nil || !confirm() {
		return ErrNotConfirmed
	}
	return c.Mutate(ctx, msgs, call)
}
