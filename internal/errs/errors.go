package errs

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/MimeLyc/video-uploader/pkg/log"
)

type Kind int

const (
	KindValidation Kind = iota
	KindFileNotFound
	KindEmptyContent
	KindMalformedSubtitle
	KindTransfer
	KindPersistence
	KindBusy
	KindNotFound
	KindConfig
	KindUnknown
)

// Error is the single error type crossing package boundaries. Callers branch on Kind.
type Error struct {
	Kind    Kind
	Message string
	Context map[string]any
	Cause   error
}

func New(kind Kind, message string) *Error {
	return &Error{
		Kind:    kind,
		Message: message,
		Context: make(map[string]any),
	}
}

func Newf(kind Kind, format string, args ...any) *Error {
	return New(kind, fmt.Sprintf(format, args...))
}

func Wrap(cause error, kind Kind, message string) *Error {
	return &Error{
		Kind:    kind,
		Message: message,
		Context: make(map[string]any),
		Cause:   cause,
	}
}

func (e *Error) Error() string {
	var parts []string
	parts = append(parts, fmt.Sprintf("[%s] %s", e.Kind.String(), e.Message))

	if len(e.Context) > 0 {
		keys := make([]string, 0, len(e.Context))
		for k := range e.Context {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		ctxParts := make([]string, 0, len(keys))
		for _, k := range keys {
			ctxParts = append(ctxParts, fmt.Sprintf("%s=%v", k, e.Context[k]))
		}
		parts = append(parts, fmt.Sprintf("context: %s", strings.Join(ctxParts, ", ")))
	}

	if e.Cause != nil {
		parts = append(parts, fmt.Sprintf("cause: %v", e.Cause))
	}

	return strings.Join(parts, " | ")
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func (e *Error) With(key string, value any) *Error {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "Validation"
	case KindFileNotFound:
		return "FileNotFound"
	case KindEmptyContent:
		return "EmptyContent"
	case KindMalformedSubtitle:
		return "MalformedSubtitle"
	case KindTransfer:
		return "Transfer"
	case KindPersistence:
		return "Persistence"
	case KindBusy:
		return "Busy"
	case KindNotFound:
		return "NotFound"
	case KindConfig:
		return "Config"
	default:
		return "Unknown"
	}
}

// Is reports whether any error in err's chain is an *Error of the given kind.
func Is(err error, kind Kind) bool {
	for err != nil {
		var e *Error
		if !errors.As(err, &e) {
			return false
		}
		if e.Kind == kind {
			return true
		}
		err = e.Cause
	}
	return false
}

// KindOf returns the kind of the first *Error in the chain, or KindUnknown.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// Advice returns operator-facing guidance for an error.
func Advice(err error) string {
	switch KindOf(err) {
	case KindValidation:
		return "Fill in the video path, subtitle path, category and sub-category"
	case KindFileNotFound:
		return "Check that the video and subtitle paths point at existing files"
	case KindEmptyContent:
		return "The subtitle file is empty; export it again before uploading"
	case KindMalformedSubtitle:
		return "Each SRT cue needs a timing line followed by exactly two text lines (source, then target language)"
	case KindTransfer:
		return "Check object store credentials, endpoint and network connectivity"
	case KindPersistence:
		return "Check database connectivity; the upload can be retried from the ledger"
	case KindBusy:
		return "Wait for the current upload to finish before submitting another"
	case KindNotFound:
		return "The referenced item no longer exists"
	case KindConfig:
		return "Check environment variables, the .env file and the account file"
	default:
		return "Review the detailed error and the log output"
	}
}

// Report logs err with its advice and reports whether it was one of ours.
func Report(err error) bool {
	var e *Error
	if !errors.As(err, &e) {
		log.Error("Unknown Error: %v", err)
		return false
	}
	log.Error("Error Detail: %v\n advice: %s", err, Advice(err))
	return true
}
