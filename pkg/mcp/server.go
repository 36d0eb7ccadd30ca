package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// ToolFunc executes one provider tool. Errors are reported to the caller as
// an isError tool result, not as a protocol failure.
type ToolFunc func(ctx context.Context, args map[string]interface{}) ([]ContentBlock, error)

type serverTool struct {
	def Tool
	fn  ToolFunc
}

// Server is the provider side of the tool protocol. A capability provider
// registers its tools, then serves requests from one transport endpoint —
// either the server half of a linked pair or a process's stdio.
type Server struct {
	info ServerInfo

	mu    sync.Mutex
	tools map[string]serverTool
	order []string
}

// NewServer creates a provider server with the given identity.
func NewServer(name, version string) *Server {
	return &Server{
		info:  ServerInfo{Name: name, Version: version},
		tools: make(map[string]serverTool),
	}
}

// RegisterTool adds a tool to the provider's catalogue.
// Must be called before Serve; duplicate names are rejected.
func (s *Server) RegisterTool(def Tool, fn ToolFunc) error {
	if def.Name == "" {
		return fmt.Errorf("mcp: tool name cannot be empty")
	}
	if fn == nil {
		return fmt.Errorf("mcp: tool %q has no handler", def.Name)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.tools[def.Name]; exists {
		return fmt.Errorf("mcp: tool %q already registered", def.Name)
	}
	s.tools[def.Name] = serverTool{def: def, fn: fn}
	s.order = append(s.order, def.Name)
	return nil
}

// Serve answers requests from the transport until the context is canceled
// or the transport closes. A clean close (client close notification or
// closed transport) returns nil.
func (s *Server) Serve(ctx context.Context, transport Transport) error {
	for {
		message, err := transport.Receive(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			// Transport closed by the peer: normal shutdown.
			return nil
		}

		if message.Method == "" {
			continue // response-shaped message; not ours to handle
		}

		// Notifications carry no ID and get no response.
		if message.ID == 0 {
			if message.Method == "close" {
				return nil
			}
			continue
		}

		response := s.handle(ctx, message)
		if err := transport.Send(ctx, response); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return nil
		}
	}
}

func (s *Server) handle(ctx context.Context, request Message) Message {
	switch request.Method {
	case "initialize":
		return s.respond(request.ID, InitializeResult{
			ProtocolVersion: defaultProtocolVersion,
			ServerInfo:      s.info,
		})
	case "tools/list":
		return s.respond(request.ID, ToolsListResult{Tools: s.catalogue()})
	case "tools/call":
		return s.handleCall(ctx, request)
	default:
		return s.respondError(request.ID, codeMethodNotFound,
			fmt.Sprintf("unknown method %q", request.Method))
	}
}

func (s *Server) handleCall(ctx context.Context, request Message) Message {
	var params ToolsCallParams
	if err := json.Unmarshal(request.Params, &params); err != nil {
		return s.respondError(request.ID, codeInvalidParams,
			fmt.Sprintf("invalid tools/call params: %v", err))
	}

	s.mu.Lock()
	tool, ok := s.tools[params.Name]
	s.mu.Unlock()
	if !ok {
		return s.respondError(request.ID, codeInvalidParams,
			fmt.Sprintf("unknown tool %q", params.Name))
	}

	content, err := tool.fn(ctx, params.Arguments)
	if err != nil {
		// Tool failures travel as isError results so the caller sees a
		// failed tool call, not a broken protocol session.
		return s.respond(request.ID, ToolsCallResult{
			Content: TextContent(err.Error()),
			IsError: true,
		})
	}
	return s.respond(request.ID, ToolsCallResult{Content: content})
}

func (s *Server) catalogue() []Tool {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Tool, 0, len(s.order))
	for _, name := range s.order {
		out = append(out, s.tools[name].def)
	}
	return out
}

func (s *Server) respond(id int64, result interface{}) Message {
	data, err := json.Marshal(result)
	if err != nil {
		return s.respondError(id, codeInternalError, fmt.Sprintf("encode result: %v", err))
	}
	return Message{JSONRPC: jsonRPCVersion, ID: id, Result: data}
}

func (s *Server) respondError(id int64, code int, message string) Message {
	return Message{
		JSONRPC: jsonRPCVersion,
		ID:      id,
		Error:   &RPCError{Code: code, Message: message},
	}
}
