package transport

import (
	"encoding/json"
	"errors"

	"github.com/ternarybob/safeexec/internal/broker"
	"github.com/ternarybob/safeexec/internal/interp"
)

// listToolsResult shapes the broker's catalog into the wire tool list,
// each entry carrying a JSON-schema-flavored input description.
func listToolsResult(tools []broker.Tool) map[string]interface{} {
	out := make([]map[string]interface{}, 0, len(tools))
	for _, t := range tools {
		properties := map[string]interface{}{}
		required := make([]string, 0, len(t.Arguments))
		for _, arg := range t.Arguments {
			properties[arg.Name] = map[string]interface{}{"type": "string"}
			required = append(required, arg.Name)
		}
		out = append(out, map[string]interface{}{
			"name":        t.Name,
			"description": t.Description,
			"inputSchema": map[string]interface{}{
				"type":       "object",
				"properties": properties,
				"required":   required,
			},
		})
	}
	return map[string]interface{}{"tools": out}
}

type callToolParams struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

type callToolArgs struct {
	Code      string `json:"code"`
	SessionID string `json:"session_id"`
}

var errUnknownTool = errors.New("unknown tool")

func (s *Server) handleCallTool(req request) response {
	var params callToolParams
	if err := json.Unmarshal(req.Params, &params); err != nil || params.Name == "" {
		return errorResponse(req.ID, codeInvalidParams, "call_tool requires a tool name")
	}

	var args callToolArgs
	if len(params.Arguments) > 0 {
		if err := json.Unmarshal(params.Arguments, &args); err != nil {
			return errorResponse(req.ID, codeInvalidParams, "invalid tool arguments: "+err.Error())
		}
	}

	result, err := s.callTool(params.Name, args)
	if err != nil {
		var sessErr *interp.SessionError
		if errors.Is(err, broker.ErrSessionsDisabled) || errors.Is(err, errUnknownTool) || errors.As(err, &sessErr) {
			return errorResponse(req.ID, codeInvalidParams, err.Error())
		}
		return errorResponse(req.ID, codeInternalError, err.Error())
	}

	payload := map[string]interface{}{
		"content": []map[string]interface{}{
			{"type": "text", "text": result.Text},
		},
	}
	if result.IsError {
		payload["is_error"] = true
	}
	return resultResponse(req.ID, payload)
}

func (s *Server) callTool(name string, args callToolArgs) (broker.CallResult, error) {
	switch name {
	case "execute_stateless":
		return s.broker.ExecuteStateless(args.Code), nil
	case "create_session":
		return s.broker.CreateSession()
	case "execute_in_session":
		return s.broker.ExecuteInSession(args.SessionID, args.Code)
	case "delete_session":
		return s.broker.DeleteSession(args.SessionID)
	case "list_sessions":
		return s.broker.ListSessions()
	case "show_interface":
		return s.broker.ShowInterface(), nil
	default:
		return broker.CallResult{}, errUnknownTool
	}
}
