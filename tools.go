package ultravox

import (
	"fmt"
	"sync"
)

// ClientToolResult is the outcome of a successful client tool invocation.
type ClientToolResult struct {
	// Result is the tool's output, treated as opaque text by the agent
	// (commonly a JSON document).
	Result string
	// ResponseType optionally tells the agent how to interpret the result.
	ResponseType string
}

// ClientToolImplementation is a locally registered tool callable. It is
// invoked with the parameters supplied by the agent and must produce exactly
// one result or fail with an error. Implementations run on their own
// goroutine and may block; they never stall the inbound message stream.
type ClientToolImplementation func(parameters map[string]any) (ClientToolResult, error)

// Error type names carried by outbound client_tool_result messages.
const (
	toolErrorUndefined      = "undefined"
	toolErrorImplementation = "implementation-error"
)

// toolRegistry maps tool names to implementations. Entries are added,
// never removed, for the session's lifetime.
type toolRegistry struct {
	mu    sync.RWMutex
	tools map[string]ClientToolImplementation
}

func (r *toolRegistry) register(name string, impl ClientToolImplementation) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.tools == nil {
		r.tools = make(map[string]ClientToolImplementation)
	}
	r.tools[name] = impl
}

func (r *toolRegistry) lookup(name string) (ClientToolImplementation, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	impl, ok := r.tools[name]
	return impl, ok
}

// run executes an implementation, converting a panic into an error so a
// misbehaving tool cannot take down the session.
func runClientTool(impl ClientToolImplementation, parameters map[string]any) (result ClientToolResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("tool panicked: %v", r)
		}
	}()
	return impl(parameters)
}

// resultMessage converts an invocation outcome into the single outbound
// correlation message the protocol requires.
func toolResultMessage(invocationID string, result ClientToolResult, err error) clientToolResultMessage {
	if err != nil {
		return clientToolResultMessage{
			Type:         typeClientToolResult,
			InvocationID: invocationID,
			ErrorType:    toolErrorImplementation,
			ErrorMessage: err.Error(),
		}
	}
	return clientToolResultMessage{
		Type:         typeClientToolResult,
		InvocationID: invocationID,
		Result:       result.Result,
		ResponseType: result.ResponseType,
	}
}

// undefinedToolMessage is the correlation message for an invocation naming
// a tool that was never registered.
func undefinedToolMessage(invocationID, toolName string) clientToolResultMessage {
	return clientToolResultMessage{
		Type:         typeClientToolResult,
		InvocationID: invocationID,
		ErrorType:    toolErrorUndefined,
		ErrorMessage: fmt.Sprintf("Client tool %s is not registered", toolName),
	}
}
