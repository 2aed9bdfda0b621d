package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/fatih/color"

	"github.com/custodia-labs/repovec/internal/core/domain"
)

// Exit codes, by failure category.
const (
	ExitSuccess   = 0
	ExitUsage     = 2 // user or configuration error
	ExitSync      = 3 // repository sync error
	ExitStore     = 4 // vector store error
	ExitEmbedding = 5 // embedding provider error
)

var (
	colorError = color.New(color.FgRed, color.Bold)
	colorHint  = color.New(color.FgYellow)
)

// exitCodeFor maps a domain error kind to the CLI exit code.
func exitCodeFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrConfigInvalid),
		errors.Is(err, domain.ErrPathEscape),
		errors.Is(err, domain.ErrNotFound):
		return ExitUsage
	case errors.Is(err, domain.ErrSyncConflict),
		errors.Is(err, domain.ErrUnauthorized):
		return ExitSync
	case errors.Is(err, domain.ErrSchemaMismatch),
		errors.Is(err, domain.ErrStoreUnavailable),
		errors.Is(err, domain.ErrLockTimeout):
		return ExitStore
	case errors.Is(err, domain.ErrEmbeddingUnavailable),
		errors.Is(err, domain.ErrEmbeddingRejected):
		return ExitEmbedding
	default:
		return ExitUsage
	}
}

// hintFor suggests a next step for common failures.
func hintFor(err error) string {
	switch {
	case errors.Is(err, domain.ErrSyncConflict):
		return "The local work tree diverged from the remote. Remove it and re-run, or resolve the divergence manually."
	case errors.Is(err, domain.ErrUnauthorized):
		return "Check the repository URL and any access token it embeds."
	case errors.Is(err, domain.ErrSchemaMismatch):
		return "The table was created with a different embedding dimension. Run 'repovec reset --confirm' or change database.embedding_dim back."
	case errors.Is(err, domain.ErrEmbeddingUnavailable):
		return "Check embedding.api_url and network connectivity, or set embedding.provider = \"local\"."
	case errors.Is(err, domain.ErrNotFound):
		return "Run 'repovec stats' or the list_repositories tool to see what is registered."
	default:
		return ""
	}
}

// exitWith prints the error and terminates with the mapped exit code.
// Never returns.
func exitWith(err error) {
	fmt.Fprintf(os.Stderr, "%s %v\n", colorError.Sprint("Error:"), err)
	if hint := hintFor(err); hint != "" {
		fmt.Fprintf(os.Stderr, "%s %s\n", colorHint.Sprint("Hint:"), hint)
	}
	os.Exit(exitCodeFor(err))
}
