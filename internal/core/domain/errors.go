package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for the failure kinds the pipeline distinguishes.
// Infrastructure adapters wrap these via E so callers can classify with
// errors.Is while keeping operation context in the message.
var (
	// ErrConfigInvalid indicates malformed or inconsistent configuration.
	ErrConfigInvalid = errors.New("invalid configuration")

	// ErrPathEscape indicates a path that resolves outside the data root.
	ErrPathEscape = errors.New("path escapes data root")

	// ErrSyncConflict indicates the remote diverged and cannot be
	// fast-forwarded. Automatic reset is never performed.
	ErrSyncConflict = errors.New("sync conflict")

	// ErrUnauthorized indicates the remote rejected our credentials.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrFileUnreadable indicates a file could not be read.
	ErrFileUnreadable = errors.New("file unreadable")

	// ErrNotText indicates file content is not valid UTF-8 text.
	ErrNotText = errors.New("not text")

	// ErrTooLarge indicates a file exceeds the configured size cap.
	ErrTooLarge = errors.New("file too large")

	// ErrEmbeddingUnavailable indicates no embedding provider could serve
	// the request within the retry budget.
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")

	// ErrEmbeddingRejected indicates the provider rejected the request
	// outright (4xx other than 429); retrying cannot help.
	ErrEmbeddingRejected = errors.New("embedding request rejected")

	// ErrSchemaMismatch indicates an existing table whose schema or
	// embedding dimension disagrees with the configuration.
	ErrSchemaMismatch = errors.New("schema mismatch")

	// ErrStoreUnavailable indicates the vector store cannot be reached.
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrLockTimeout indicates a bounded lock wait expired.
	ErrLockTimeout = errors.New("lock timeout")

	// ErrCancelled indicates the operation was cancelled by the caller.
	ErrCancelled = errors.New("cancelled")

	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInternal indicates a bug; it should be reported, not handled.
	ErrInternal = errors.New("internal error")
)

// Error carries the context mandated for every pipeline failure: the
// operation, the repository, and the relative path when known. Credentials
// never appear in the rendered message.
type Error struct {
	Kind error  // one of the sentinels above
	Op   string // e.g. "sync", "scan", "embed", "insert"
	Repo string // canonical repository URL, if known
	Path string // repo-relative path, if known
	Err  error  // underlying cause
}

// E wraps err with a kind and operation context.
func E(kind error, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// WithRepo attaches the repository URL.
func (e *Error) WithRepo(url string) *Error {
	e.Repo = RedactURL(url)
	return e
}

// WithPath attaches the repo-relative path.
func (e *Error) WithPath(path string) *Error {
	e.Path = path
	return e
}

func (e *Error) Error() string {
	msg := e.Op + ": " + e.Kind.Error()
	if e.Repo != "" {
		msg += " (repo " + e.Repo + ")"
	}
	if e.Path != "" {
		msg += " (path " + e.Path + ")"
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap exposes the sentinel kind so errors.Is classifies the error.
// The underlying cause stays reachable through the second value.
func (e *Error) Unwrap() []error {
	if e.Err != nil {
		return []error{e.Kind, e.Err}
	}
	return []error{e.Kind}
}

// Code returns the stable wire code for the error kind.
func (e *Error) Code() string {
	return CodeFor(e.Kind)
}

// CodeFor maps an error to its stable code. Unknown errors map to internal.
func CodeFor(err error) string {
	switch {
	case errors.Is(err, ErrConfigInvalid):
		return "config_invalid"
	case errors.Is(err, ErrPathEscape):
		return "path_escape"
	case errors.Is(err, ErrSyncConflict):
		return "sync_conflict"
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, ErrFileUnreadable):
		return "file_unreadable"
	case errors.Is(err, ErrNotText):
		return "not_text"
	case errors.Is(err, ErrTooLarge):
		return "too_large"
	case errors.Is(err, ErrEmbeddingUnavailable):
		return "embedding_unavailable"
	case errors.Is(err, ErrEmbeddingRejected):
		return "embedding_rejected"
	case errors.Is(err, ErrSchemaMismatch):
		return "schema_mismatch"
	case errors.Is(err, ErrStoreUnavailable):
		return "store_unavailable"
	case errors.Is(err, ErrLockTimeout):
		return "lock_timeout"
	case errors.Is(err, ErrCancelled):
		return "cancelled"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	default:
		return "internal"
	}
}
