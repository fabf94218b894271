package runner

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/aretw0/gokernel/pkg/domain"
)

// Request is one NDJSON input line. A bare JSON string or a plain text line
// is accepted as shorthand for {"code": ...}.
type Request struct {
	// Command is "submit" (default) or "diagnostics".
	Command string `json:"command,omitempty"`
	Code    string `json:"code"`
}

// SystemMessage is written for SystemOutput.
type SystemMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// JSONHandler implements the IOHandler interface for structured JSON-Lines communication.
type JSONHandler struct {
	Reader   *bufio.Reader
	Writer   io.Writer
	Encoder  *json.Encoder
	maxInput int

	mu sync.Mutex
}

// NewJSONHandler creates a handler for JSON IO.
func NewJSONHandler(r io.Reader, w io.Writer) *JSONHandler {
	if r == nil {
		r = os.Stdin
	}
	if w == nil {
		w = os.Stdout
	}
	return &JSONHandler{
		Reader:  bufio.NewReader(r),
		Writer:  w,
		Encoder: json.NewEncoder(w),
	}
}

// WithMaxInput overrides the input size limit.
func (h *JSONHandler) WithMaxInput(limit int) *JSONHandler {
	h.maxInput = limit
	return h
}

// Input reads one request line. Blank lines between requests are skipped.
// Reads are not interruptible; ctx is only checked between lines.
func (h *JSONHandler) Input(ctx context.Context, continuation bool) (domain.Command, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		text, err := h.Reader.ReadString('\n')
		if err != nil && (err != io.EOF || text == "") {
			return nil, err
		}
		text = strings.TrimSpace(text)
		if text == "" {
			if err == io.EOF {
				return nil, io.EOF
			}
			continue
		}

		req := parseRequest(text)
		code, serr := SanitizeInputLimit(req.Code, h.maxInput)
		if serr != nil {
			h.encode(SystemMessage{Type: "error", Message: serr.Error()})
			continue
		}

		switch req.Command {
		case "", "submit":
			return domain.NewSubmitCode(code), nil
		case "diagnostics":
			return domain.RequestDiagnostics{Sub: domain.NewSubmission(code)}, nil
		default:
			h.encode(SystemMessage{Type: "error", Message: fmt.Sprintf("unknown command %q", req.Command)})
		}
	}
}

func parseRequest(text string) Request {
	var req Request
	if strings.HasPrefix(text, "{") && json.Unmarshal([]byte(text), &req) == nil {
		return req
	}
	var code string
	if json.Unmarshal([]byte(text), &code) == nil {
		return Request{Code: code}
	}
	return Request{Code: text}
}

// Output writes every event as its own JSON line.
func (h *JSONHandler) Output(ctx context.Context, events []domain.Event) error {
	for _, e := range events {
		if err := h.encode(e); err != nil {
			return err
		}
	}
	return nil
}

func (h *JSONHandler) SystemOutput(ctx context.Context, msg string) error {
	return h.encode(SystemMessage{Type: "system", Message: msg})
}

func (h *JSONHandler) encode(v any) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.Encoder.Encode(v)
}
