package common

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound = errors.New("not found")
	ErrClosed   = errors.New("store closed")
)

// Kind classifies the outcome of a command. It travels to the client as the
// status code in front of every response message.
type Kind int

const (
	KindOK Kind = iota
	KindNotFound
	KindAlreadyExists
	KindInvalidPrimaryKey
	KindInvalidForeignKey
	KindUnknownReference
	KindReferentialIntegrity
	KindUnknownColumn
	KindUnknownField
	KindMissingKeyField
	KindInvalidValue
	KindDuplicateKey
	KindRecordNotFound
	KindNoDatabaseSelected
	KindInvalidCommand
	KindUnknownCommand
	KindCatalogUnavailable
	KindCatalogConflict
	KindStorage
	KindPartialFailure
	KindInternal
)

var kindNames = []string{
	KindOK:                   "OK",
	KindNotFound:             "NOT_FOUND",
	KindAlreadyExists:        "ALREADY_EXISTS",
	KindInvalidPrimaryKey:    "INVALID_PRIMARY_KEY",
	KindInvalidForeignKey:    "INVALID_FOREIGN_KEY",
	KindUnknownReference:     "UNKNOWN_REFERENCE",
	KindReferentialIntegrity: "REFERENTIAL_INTEGRITY_VIOLATION",
	KindUnknownColumn:        "UNKNOWN_COLUMN",
	KindUnknownField:         "UNKNOWN_FIELD",
	KindMissingKeyField:      "MISSING_KEY_FIELD",
	KindInvalidValue:         "INVALID_VALUE",
	KindDuplicateKey:         "DUPLICATE_KEY",
	KindRecordNotFound:       "RECORD_NOT_FOUND",
	KindNoDatabaseSelected:   "NO_DATABASE_SELECTED",
	KindInvalidCommand:       "INVALID_COMMAND",
	KindUnknownCommand:       "UNKNOWN_COMMAND",
	KindCatalogUnavailable:   "CATALOG_UNAVAILABLE",
	KindCatalogConflict:      "CATALOG_CONFLICT",
	KindStorage:              "STORAGE_ERROR",
	KindPartialFailure:       "PARTIAL_FAILURE",
	KindInternal:             "INTERNAL_ERROR",
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return "UNKNOWN"
	}
	return kindNames[k]
}

// Error is a classified failure. Executors return it for every validation
// failure so the interpreter can render the message and status separately.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil && e.Msg == "" {
		return e.Err.Error()
	}
	if e.Err != nil {
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

// Errorf builds a classified error with a formatted message.
func Errorf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap classifies err under kind, keeping it reachable through errors.Is/As.
func Wrap(kind Kind, err error, msg string) *Error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// KindOf reports the kind carried by err. Unclassified errors are internal.
func KindOf(err error) Kind {
	if err == nil {
		return KindOK
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}
