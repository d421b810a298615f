package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/idlehelper/bot/idlehelper/calculator"
	"github.com/idlehelper/bot/idlehelper/database/repositories"
	"github.com/idlehelper/bot/idlehelper/energy"
	"github.com/idlehelper/bot/idlehelper/reminders"
	"github.com/idlehelper/bot/idlehelper/timestring"
	"github.com/idlehelper/bot/idlehelper/transport"
)

var (
	// ErrUserNotFound is returned when no user could be tied to a game message.
	ErrUserNotFound = errors.New("could not resolve the player of this message")
	// ErrBotDisabled is returned for users that turned the helper off.
	ErrBotDisabled = errors.New("helper is disabled for this user")
)

// InputError is a user mistake. Its text is shown to the user as is.
type InputError struct {
	Reason string
}

func (e *InputError) Error() string { return e.Reason }

// Invalid builds an InputError.
func Invalid(format string, args ...any) error {
	return &InputError{Reason: fmt.Sprintf(format, args...)}
}

type Kind int

const (
	KindUnknown Kind = iota
	KindNotRegistered
	KindNotFound
	KindConflict
	KindInvalidInput
	KindTransportForbidden
	KindTransportTimeout
	KindAborted
	KindEnergyOutdated
	KindStore
)

func (k Kind) String() string {
	switch k {
	case KindNotRegistered:
		return "not_registered"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindInvalidInput:
		return "invalid_input"
	case KindTransportForbidden:
		return "transport_forbidden"
	case KindTransportTimeout:
		return "transport_timeout"
	case KindAborted:
		return "aborted"
	case KindEnergyOutdated:
		return "energy_outdated"
	case KindStore:
		return "store"
	}
	return "unknown"
}

// Classify maps err onto the error kinds the pipeline and commands act on.
func Classify(err error) Kind {
	var input *InputError
	switch {
	case err == nil:
		return KindUnknown
	case repositories.IsFirstTimeUser(err), errors.Is(err, ErrBotDisabled):
		return KindNotRegistered
	case repositories.IsNotFound(err), errors.Is(err, ErrUserNotFound):
		return KindNotFound
	case repositories.IsConflict(err), errors.Is(err, repositories.ErrRecordExists):
		return KindConflict
	case errors.Is(err, timestring.ErrInvalid), errors.Is(err, timestring.ErrTooLong),
		errors.Is(err, reminders.ErrUnknownPlaceholder), errors.Is(err, reminders.ErrMessageTooLong),
		errors.Is(err, repositories.ErrNoArguments), errors.Is(err, repositories.ErrUnknownField),
		errors.Is(err, calculator.ErrInvalidCharacter), errors.Is(err, calculator.ErrInvalidExpression),
		errors.As(err, &input):
		return KindInvalidInput
	case errors.Is(err, transport.ErrForbidden):
		return KindTransportForbidden
	case errors.Is(err, transport.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return KindTransportTimeout
	case errors.Is(err, transport.ErrAborted):
		return KindAborted
	case errors.Is(err, energy.ErrFullTimeOutdated):
		return KindEnergyOutdated
	case repositories.IsRepositoryError(err):
		return KindStore
	}
	return KindUnknown
}

// Silent reports whether err ends processing without being reported.
func Silent(err error) bool {
	switch Classify(err) {
	case KindNotRegistered, KindNotFound, KindTransportForbidden:
		return true
	}
	return errors.Is(err, context.Canceled)
}
