package server

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/ironsheep/xray-cdss/internal/config"
	"github.com/ironsheep/xray-cdss/internal/detection"
	"github.com/ironsheep/xray-cdss/internal/imaging"
	"github.com/ironsheep/xray-cdss/internal/pipeline"
	"github.com/ironsheep/xray-cdss/internal/report"
)

// Version is reported in the initialize handshake.
var Version = "0.1.0"

// Server handles MCP protocol communication
type Server struct {
	cache    *imaging.ImageCache
	settings config.Settings
	log      *slog.Logger

	in  io.Reader
	out io.Writer

	// openDetector is called once, on the first tool that needs inference.
	openDetector func(ctx context.Context) (detection.Detector, error)

	mu       sync.Mutex
	detector detection.Detector
	analyzer *report.Analyzer
}

// MCPRequest represents an incoming JSON-RPC request
type MCPRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      interface{}     `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// MCPResponse represents an outgoing JSON-RPC response
type MCPResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *MCPError   `json:"error,omitempty"`
}

// MCPError represents a JSON-RPC error
type MCPError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// Option customises a Server.
type Option func(*Server)

// WithDetector uses d instead of loading the configured model.
func WithDetector(d detection.Detector) Option {
	return func(s *Server) {
		s.openDetector = func(context.Context) (detection.Detector, error) { return d, nil }
	}
}

// WithIO replaces stdin/stdout.
func WithIO(in io.Reader, out io.Writer) Option {
	return func(s *Server) {
		s.in = in
		s.out = out
	}
}

// New creates a new MCP server instance
func New(settings *config.Settings, logger *slog.Logger, opts ...Option) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		cache:    imaging.NewImageCache(),
		settings: *settings,
		log:      logger.With("module", "mcp"),
		in:       os.Stdin,
		out:      os.Stdout,
	}
	s.openDetector = func(ctx context.Context) (detection.Detector, error) {
		return pipeline.OpenDetector(ctx, s.settings.Model, logger)
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run reads requests until the input is exhausted or ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	scanner := bufio.NewScanner(s.in)
	// Increase buffer size for large requests
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 1024*1024)

	encoder := json.NewEncoder(s.out)

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var req MCPRequest
		if err := json.Unmarshal(line, &req); err != nil {
			s.log.Warn("failed to parse request", "error", err)
			continue
		}

		resp := s.handleRequest(ctx, &req)
		if resp != nil {
			if err := encoder.Encode(resp); err != nil {
				s.log.Error("failed to encode response", "error", err)
			}
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("scanner error: %w", err)
	}

	return nil
}

// Close releases the detector if one was loaded.
func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.detector == nil {
		return nil
	}
	err := s.detector.Close()
	s.detector = nil
	s.analyzer = nil
	return err
}

// getAnalyzer loads the detector on first use.
func (s *Server) getAnalyzer(ctx context.Context) (*report.Analyzer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.analyzer != nil {
		return s.analyzer, nil
	}
	d, err := s.openDetector(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load detector: %w", err)
	}
	s.detector = d
	s.analyzer = report.NewAnalyzer(d, s.log)
	return s.analyzer, nil
}

// handleRequest routes requests to appropriate handlers
func (s *Server) handleRequest(ctx context.Context, req *MCPRequest) *MCPResponse {
	switch req.Method {
	case "initialize":
		return s.handleInitialize(req)
	case "notifications/initialized":
		// Client acknowledgment, no response needed
		return nil
	case "tools/list":
		return s.handleToolsList(req)
	case "tools/call":
		return s.handleToolsCall(ctx, req)
	case "ping":
		return &MCPResponse{
			JSONRPC: "2.0",
			ID:      req.ID,
			Result:  map[string]interface{}{},
		}
	default:
		return &MCPResponse{
			JSONRPC: "2.0",
			ID:      req.ID,
			Error: &MCPError{
				Code:    -32601,
				Message: fmt.Sprintf("Method not found: %s", req.Method),
			},
		}
	}
}

// handleInitialize responds to the initialize request
func (s *Server) handleInitialize(req *MCPRequest) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"protocolVersion": "2024-11-05",
			"capabilities": map[string]interface{}{
				"tools": map[string]interface{}{},
			},
			"serverInfo": map[string]interface{}{
				"name":    "xray-cdss",
				"version": Version,
			},
		},
	}
}
