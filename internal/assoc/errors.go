package assoc

import (
	"errors"
	"fmt"
)

// Kind classifies association errors.
type Kind int

const (
	// KindDeclaration reports an association declared against a missing attribute.
	KindDeclaration Kind = iota + 1
	// KindConfiguration reports a missing batch fetch method or key selector.
	KindConfiguration
	// KindNotFound reports a foreign key with no matching fetched object.
	KindNotFound
	// KindArgument reports an include request without association names.
	KindArgument
)

func (k Kind) String() string {
	switch k {
	case KindDeclaration:
		return "declaration"
	case KindConfiguration:
		return "configuration"
	case KindNotFound:
		return "not_found"
	case KindArgument:
		return "argument"
	default:
		return "unknown"
	}
}

// Error is the single error type returned by the package.
type Error struct {
	Kind        Kind
	Type        string
	Association string
	Msg         string
	Err         error
}

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" {
		msg = e.Kind.String() + " error"
	}
	if e.Err != nil {
		return fmt.Sprintf("assoc: %s: %v", msg, e.Err)
	}
	return "assoc: " + msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same kind when target is one of the sentinels.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Msg == "" && t.Kind == e.Kind
}

// Sentinels for errors.Is checks.
var (
	ErrDeclaration   = &Error{Kind: KindDeclaration}
	ErrConfiguration = &Error{Kind: KindConfiguration}
	ErrNotFound      = &Error{Kind: KindNotFound}
	ErrArgument      = &Error{Kind: KindArgument}
)

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return 0, false
}

func newError(kind Kind, typeName, association, format string, args ...any) *Error {
	return &Error{
		Kind:        kind,
		Type:        typeName,
		Association: association,
		Msg:         fmt.Sprintf(format, args...),
	}
}
