package negotiation

import (
	"errors"
	"log/slog"

	"github.com/sudo-init-do/bidroom/internal/db"
)

// Every error leaving the engine is one of these.
var (
	ErrUnavailable   = errors.New("temporarily unavailable")
	ErrForbidden     = errors.New("permission denied")
	ErrNotFound      = errors.New("not found")
	ErrConflict      = errors.New("already handled")
	ErrInvalidFormat = errors.New("invalid format")
)

// Classify translates storage errors into the taxonomy above. Anything it
// does not recognize is logged with attrs and reported as ErrUnavailable.
func Classify(op string, err error, attrs ...any) error {
	err = db.Classify(err)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrUnavailable), errors.Is(err, ErrForbidden), errors.Is(err, ErrNotFound),
		errors.Is(err, ErrConflict), errors.Is(err, ErrInvalidFormat):
		return err
	case errors.Is(err, db.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, db.ErrRequestClosed), errors.Is(err, db.ErrOfferResolved):
		return ErrConflict
	case errors.Is(err, db.ErrInvalidValue):
		slog.Warn("value rejected by storage", append([]any{"op", op, "error", err}, attrs...)...)
		return ErrInvalidFormat
	case errors.Is(err, db.ErrUnavailable):
		slog.Warn("storage unavailable", append([]any{"op", op, "error", err}, attrs...)...)
		return ErrUnavailable
	}
	slog.Error("unclassified storage failure", append([]any{"op", op, "error", err}, attrs...)...)
	return ErrUnavailable
}

// UserMessage is the short, role-agnostic text shown for err.
func UserMessage(err error) string {
	switch {
	case errors.Is(err, ErrForbidden):
		return "You don't have permission to do that."
	case errors.Is(err, ErrNotFound):
		return "That item no longer exists."
	case errors.Is(err, ErrConflict):
		return "This has already been handled."
	case errors.Is(err, ErrInvalidFormat):
		return "Invalid format. Use: description, price (price > 0)"
	}
	return "Something went wrong on our side. Please try again in a moment."
}
