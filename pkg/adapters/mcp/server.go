package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/aretw0/gokernel"
	"github.com/aretw0/gokernel/internal/logging"
	"github.com/aretw0/gokernel/pkg/directive"
	"github.com/aretw0/gokernel/pkg/domain"
	"github.com/aretw0/gokernel/pkg/runner"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"golang.org/x/sync/errgroup"
)

// DefaultSession is used when submit_code names no session.
const DefaultSession = "default"

// KernelPool hands out the kernel serving a session.
type KernelPool interface {
	Get(ctx context.Context, sessionID string) (gokernel.Interactive, error)
}

// SessionLister lists persisted sessions.
type SessionLister interface {
	List(ctx context.Context) ([]string, error)
}

// SubmitArgs are the arguments of the submit_code tool.
type SubmitArgs struct {
	Code    string `json:"code"`
	Session string `json:"session,omitempty"`
}

// SubmitResult aligns with the HTTP submit response.
type SubmitResult struct {
	Session string         `json:"session" jsonschema_description:"The session the code ran in"`
	Output  string         `json:"output" jsonschema_description:"Text rendering of the produced values"`
	Events  []domain.Event `json:"events" jsonschema_description:"Lifecycle events of the submission"`
	Error   string         `json:"error,omitempty" jsonschema_description:"Failure message, if any"`
}

// Server exposes session kernels as MCP tools.
type Server struct {
	pool       KernelPool
	sessions   SessionLister
	directives *directive.Registry
	logger     *slog.Logger
	mcpServer  *server.MCPServer
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the server logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithDirectives backs list_directives with r.
func WithDirectives(r *directive.Registry) Option {
	return func(s *Server) {
		s.directives = r
	}
}

// WithSessions backs list_sessions with l.
func WithSessions(l SessionLister) Option {
	return func(s *Server) {
		s.sessions = l
	}
}

// NewServer creates a new MCP Server instance.
func NewServer(pool KernelPool, opts ...Option) *Server {
	s := &Server{
		pool:      pool,
		logger:    logging.NewNop(),
		mcpServer: server.NewMCPServer("gokernel-mcp", strings.TrimSpace(gokernel.Version)),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.registerTools()
	s.registerResources()
	return s
}

// MCPServer returns the underlying mcp-go server.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// ServeStdio starts the server on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE serves over SSE on port until ctx is done.
func (s *Server) ServeSSE(ctx context.Context, port int) error {
	addr := fmt.Sprintf(":%d", port)
	baseURL := fmt.Sprintf("http://localhost:%d", port)

	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL(baseURL))

	mux := http.NewServeMux()
	mux.Handle("/sse", corsMiddleware(sseServer.SSEHandler()))
	mux.Handle("/message", corsMiddleware(sseServer.MessageHandler()))

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.logger.Info("MCP server listening (SSE)", "address", addr)
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		return nil
	})
	return g.Wait()
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) registerTools() {
	submitTool := mcp.NewTool("submit_code",
		mcp.WithDescription("Submit code to a session kernel. State persists across calls of the same session."),
		mcp.WithString("code", mcp.Required(), mcp.Description("Source code, optionally starting with a magic such as %%time")),
		mcp.WithString("session", mcp.Description("Session ID (defaults to \"default\")")),
		mcp.WithOutputSchema[SubmitResult](),
	)
	s.mcpServer.AddTool(submitTool, mcp.NewStructuredToolHandler(s.handleSubmit))

	s.mcpServer.AddTool(mcp.NewTool("list_directives",
		mcp.WithDescription("List the magic commands the kernel understands."),
	), func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		jsonBytes, _ := json.Marshal(s.directiveList())
		return mcp.NewToolResultText(string(jsonBytes)), nil
	})

	s.mcpServer.AddTool(mcp.NewTool("list_sessions",
		mcp.WithDescription("List persisted sessions."),
	), func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		ids := []string{}
		if s.sessions != nil {
			list, err := s.sessions.List(ctx)
			if err != nil {
				return mcp.NewToolResultError(fmt.Sprintf("list failed: %v", err)), nil
			}
			ids = append(ids, list...)
		}
		jsonBytes, _ := json.Marshal(ids)
		return mcp.NewToolResultText(string(jsonBytes)), nil
	})
}

func (s *Server) handleSubmit(ctx context.Context, request mcp.CallToolRequest, args SubmitArgs) (SubmitResult, error) {
	sessionID := args.Session
	if sessionID == "" {
		sessionID = DefaultSession
	}

	code, err := runner.SanitizeInput(args.Code)
	if err != nil {
		s.logger.Warn("MCP submit: input rejected", "err", err, "size", len(args.Code))
		return SubmitResult{}, fmt.Errorf("input rejected: %w", err)
	}

	k, err := s.pool.Get(ctx, sessionID)
	if err != nil {
		return SubmitResult{}, err
	}

	res, err := k.Send(ctx, domain.NewSubmitCode(code))
	if err == nil {
		err = res.Err()
	}
	out := SubmitResult{
		Session: sessionID,
		Output:  renderText(res.Events),
		Events:  res.Events,
	}
	if out.Events == nil {
		out.Events = []domain.Event{}
	}
	if err != nil {
		out.Error = err.Error()
	}
	return out, nil
}

func (s *Server) directiveList() []directive.Directive {
	if s.directives == nil {
		return []directive.Directive{}
	}
	return s.directives.Directives()
}

// renderText flattens values and failures into what a model reads.
func renderText(events []domain.Event) string {
	var sb strings.Builder
	for _, e := range events {
		switch ev := e.(type) {
		case domain.ValueProduced:
			sb.WriteString(ev.Value.Value)
			sb.WriteString("\n")
		case domain.DisplayedValueProduced:
			v := ev.Value
			if alt, ok := ev.Preferred(domain.MimeTextPlain, domain.MimeTextMarkdown); ok {
				v = alt
			}
			sb.WriteString(v.Value)
			if !strings.HasSuffix(v.Value, "\n") {
				sb.WriteString("\n")
			}
		case domain.EvaluationFailed:
			sb.WriteString("Error: ")
			sb.WriteString(ev.Message)
			sb.WriteString("\n")
		}
	}
	return sb.String()
}

func (s *Server) registerResources() {
	s.mcpServer.AddResource(mcp.NewResource("gokernel://directives", "Registered Directives",
		mcp.WithMIMEType("application/json"),
	), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		jsonBytes, _ := json.Marshal(s.directiveList())
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      "gokernel://directives",
				MIMEType: "application/json",
				Text:     string(jsonBytes),
			},
		}, nil
	})
}
