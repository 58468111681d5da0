package editor

import "fmt"

// FailureKind classifies a failed command.
type FailureKind int

const (
	Internal FailureKind = iota
	NotFound
	Unsupported
	InvalidArgument
)

func (k FailureKind) String() string {
	switch k {
	case NotFound:
		return "not_found"
	case Unsupported:
		return "unsupported"
	case InvalidArgument:
		return "invalid_argument"
	}
	return "internal"
}

// Failure is a recoverable command error. Message is meant for the user.
type Failure struct {
	Kind    FailureKind
	Message string
}

func (f *Failure) Error() string {
	return fmt.Sprintf("%s: %s", f.Kind, f.Message)
}

func notFound(format string, args ...any) *Failure {
	return &Failure{Kind: NotFound, Message: fmt.Sprintf(format, args...)}
}

func invalid(msg string) *Failure {
	return &Failure{Kind: InvalidArgument, Message: msg}
}
