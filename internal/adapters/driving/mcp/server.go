package mcp

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/repovec/internal/core/domain"
)

// Version is the MCP server version.
const Version = "0.1.0"

// lockTimeout bounds every lock acquisition inside the server.
const lockTimeout = 30 * time.Second

// Server is the MCP server for repovec.
type Server struct {
	ports  *Ports
	server *mcp.Server

	// ingestSlot serializes long-running ingest/update tools. One token;
	// acquisition is bounded by lockTimeout.
	ingestSlot chan struct{}
}

// NewServer creates a new MCP server with the given ports.
func NewServer(ports *Ports) (*Server, error) {
	if err := ports.Validate(); err != nil {
		return nil, fmt.Errorf("validating ports: %w", err)
	}

	impl := &mcp.Implementation{
		Name:    "repovec",
		Version: Version,
	}

	s := &Server{
		ports:      ports,
		server:     mcp.NewServer(impl, nil),
		ingestSlot: make(chan struct{}, 1),
	}
	s.ingestSlot <- struct{}{}

	s.registerTools()

	return s, nil
}

// acquireIngest takes the ingest slot within the lock timeout.
func (s *Server) acquireIngest(ctx context.Context) error {
	select {
	case <-s.ingestSlot:
		return nil
	case <-ctx.Done():
		return domain.E(domain.ErrCancelled, "ingest", ctx.Err())
	case <-time.After(lockTimeout):
		return domain.E(domain.ErrLockTimeout, "ingest",
			fmt.Errorf("another ingest is still running"))
	}
}

func (s *Server) releaseIngest() {
	s.ingestSlot <- struct{}{}
}

// Run starts the MCP server over stdio.
// It blocks until the context is cancelled or an error occurs.
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

// RunHTTP starts the MCP server over HTTP on the specified address.
// It blocks until the context is cancelled or an error occurs.
func (s *Server) RunHTTP(ctx context.Context, addr string) error {
	handler := mcp.NewStreamableHTTPHandler(func(_ *http.Request) *mcp.Server {
		return s.server
	}, nil)

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Graceful shutdown when context is cancelled
	go func() {
		<-ctx.Done()
		httpServer.Shutdown(context.Background()) //nolint:errcheck
	}()

	err := httpServer.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}
