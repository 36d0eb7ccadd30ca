// Package types defines the session event model shared between the
// capability environment and the agent loop. Events describe tool calls,
// their results, and browser observations emitted by the GUI controller.
package types

// SessionEventType defines the type of event emitted during a session.
type SessionEventType string

const (
	EventTypeToolCall           SessionEventType = "tool_call"            // EventTypeToolCall indicates a tool is being invoked.
	EventTypeToolResult         SessionEventType = "tool_result"          // EventTypeToolResult indicates a successful tool call result.
	EventTypeToolResultError    SessionEventType = "tool_result_error"    // EventTypeToolResultError indicates a tool call resulted in an error.
	EventTypeBrowserObservation SessionEventType = "browser_observation"  // EventTypeBrowserObservation indicates a screenshot-grounded browser observation.
	EventTypeEnvironmentReady   SessionEventType = "environment_ready"    // EventTypeEnvironmentReady indicates the capability environment finished initializing.
	EventTypeEnvironmentError   SessionEventType = "environment_error"    // EventTypeEnvironmentError indicates a non-fatal environment failure.
)

// SessionEvent represents one event in a session's event stream.
type SessionEvent struct {
	// Type indicates the kind of event.
	Type SessionEventType

	// ToolName is the name of the tool being called (for tool events).
	ToolName string

	// ToolInput is the input being sent to the tool (for tool call events).
	ToolInput map[string]interface{}

	// ToolOutput is the result from the tool (for tool result events).
	ToolOutput interface{}

	// Error contains error information for error events.
	Error error

	// Observation holds browser observation data (for observation events).
	Observation *BrowserObservation

	// Metadata holds optional additional information about the event.
	Metadata map[string]interface{}
}

// BrowserObservation captures the browser's visible state at a point in time.
type BrowserObservation struct {
	// URL is the page URL at capture time.
	URL string

	// Title is the page title at capture time.
	Title string

	// Screenshot is a compressed JPEG capture of the viewport.
	// Empty when capture failed or was skipped.
	Screenshot []byte
}

// NewToolCallEvent creates a tool call event.
func NewToolCallEvent(toolName string, input map[string]interface{}) *SessionEvent {
	return &SessionEvent{
		Type:      EventTypeToolCall,
		ToolName:  toolName,
		ToolInput: input,
		Metadata:  make(map[string]interface{}),
	}
}

// NewToolResultEvent creates a tool result event.
func NewToolResultEvent(toolName string, output interface{}) *SessionEvent {
	return &SessionEvent{
		Type:       EventTypeToolResult,
		ToolName:   toolName,
		ToolOutput: output,
		Metadata:   make(map[string]interface{}),
	}
}

// NewToolResultErrorEvent creates a tool result error event.
func NewToolResultErrorEvent(toolName string, err error) *SessionEvent {
	return &SessionEvent{
		Type:     EventTypeToolResultError,
		ToolName: toolName,
		Error:    err,
		Metadata: make(map[string]interface{}),
	}
}

// NewBrowserObservationEvent creates a browser observation event.
func NewBrowserObservationEvent(obs *BrowserObservation) *SessionEvent {
	return &SessionEvent{
		Type:        EventTypeBrowserObservation,
		Observation: obs,
		Metadata:    make(map[string]interface{}),
	}
}

// NewEnvironmentReadyEvent creates an environment ready event carrying the
// registered tool names.
func NewEnvironmentReadyEvent(toolNames []string) *SessionEvent {
	return &SessionEvent{
		Type:     EventTypeEnvironmentReady,
		Metadata: map[string]interface{}{"tools": toolNames},
	}
}

// NewEnvironmentErrorEvent creates an environment error event.
func NewEnvironmentErrorEvent(err error) *SessionEvent {
	return &SessionEvent{
		Type:     EventTypeEnvironmentError,
		Error:    err,
		Metadata: make(map[string]interface{}),
	}
}

// WithMetadata adds metadata to the event and returns the event for chaining.
func (e *SessionEvent) WithMetadata(key string, value interface{}) *SessionEvent {
	if e.Metadata == nil {
		e.Metadata = make(map[string]interface{})
	}
	e.Metadata[key] = value
	return e
}

// IsToolEvent returns true if this is any tool-related event.
func (e *SessionEvent) IsToolEvent() bool {
	return e.Type == EventTypeToolCall ||
		e.Type == EventTypeToolResult ||
		e.Type == EventTypeToolResultError
}
