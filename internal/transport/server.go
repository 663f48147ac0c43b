package transport

import (
	"bufio"
	"encoding/json"
	"errors"
	"io"

	"github.com/ternarybob/safeexec/internal/broker"
)

const (
	serverName      = "SafeExecMCP"
	protocolVersion = "2024-11-05"
)

// Server adapts a broker.Broker to the line-oriented JSON-RPC transport.
type Server struct {
	broker *broker.Broker
}

// NewServer builds a transport server around b.
func NewServer(b *broker.Broker) *Server {
	return &Server{broker: b}
}

// Serve reads one JSON-RPC request per line from r and writes one response
// per line to w, until r is exhausted. It returns the first read error
// other than io.EOF.
func (s *Server) Serve(r io.Reader, w io.Writer) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		out := s.HandleLine(line)
		if out == nil {
			continue
		}
		if _, err := w.Write(append(out, '\n')); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// HandleLine processes one request line and returns the encoded response
// line, or nil if the request was a notification (a request without an id,
// whatever its method). A line that is not valid JSON, including an empty
// one, yields a parse-error response; Serve skips empty lines before
// calling HandleLine.
func (s *Server) HandleLine(line []byte) []byte {
	var req request
	if err := json.Unmarshal(line, &req); err != nil {
		return encode(errorResponse(nil, codeParseError, "parse error: "+err.Error()))
	}

	if req.JSONRPC != "" && req.JSONRPC != jsonrpcVersion {
		if req.isNotification() {
			return nil
		}
		return encode(errorResponse(req.ID, codeInvalidRequest, "unsupported jsonrpc version"))
	}
	if req.Method == "" {
		if req.isNotification() {
			return nil
		}
		return encode(errorResponse(req.ID, codeInvalidRequest, "missing method"))
	}

	resp, hasResponse := s.dispatch(req)
	if !hasResponse || req.isNotification() {
		return nil
	}
	return encode(resp)
}

func (s *Server) dispatch(req request) (response, bool) {
	switch req.Method {
	case "initialize":
		return resultResponse(req.ID, initializeResult()), true
	case "initialized":
		return response{}, false
	case "list_tools":
		return resultResponse(req.ID, listToolsResult(s.broker.Catalog())), true
	case "call_tool":
		return s.handleCallTool(req), true
	case "ping":
		return resultResponse(req.ID, struct{}{}), true
	case "notifications/cancelled":
		return response{}, false
	default:
		if req.isNotification() {
			return response{}, false
		}
		return errorResponse(req.ID, codeMethodNotFound, "method not found: "+req.Method), true
	}
}

func encode(resp response) []byte {
	out, err := json.Marshal(resp)
	if err != nil {
		out, _ = json.Marshal(errorResponse(resp.ID, codeInternalError, "failed to encode response"))
	}
	return out
}

func initializeResult() map[string]interface{} {
	return map[string]interface{}{
		"protocolVersion": protocolVersion,
		"serverInfo": map[string]interface{}{
			"name": serverName,
		},
		"capabilities": map[string]interface{}{
			"tools": map[string]interface{}{},
		},
	}
}
