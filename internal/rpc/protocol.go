package rpc

import "encoding/json"

// JSON-RPC style error codes.
const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
)

// EventLogger is the fixed logger tag carried by pass notifications so
// downstream consumers can route them.
const EventLogger = "iracing.events"

// Request is one client message on the WebSocket: a method call with an
// opaque id the response echoes back.
type Request struct {
	ID     json.RawMessage `json:"id,omitempty"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params,omitempty"`
}

type Response struct {
	ID     json.RawMessage `json:"id,omitempty"`
	Result any             `json:"result,omitempty"`
	Error  *RespError      `json:"error,omitempty"`
}

type RespError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Notification is a server-initiated message; no id, never answered.
type Notification struct {
	Method string             `json:"method"`
	Params NotificationParams `json:"params"`
}

type NotificationParams struct {
	Logger string          `json:"logger"`
	Level  string          `json:"level"`
	Data   json.RawMessage `json:"data"`
}

// passNotification wraps a serialized pass event in the notification
// envelope delivered to sessions.
func passNotification(payload []byte) ([]byte, error) {
	return json.Marshal(Notification{
		Method: "notifications/message",
		Params: NotificationParams{
			Logger: EventLogger,
			Level:  "info",
			Data:   json.RawMessage(payload),
		},
	})
}

// Tool describes one invokable tool for tools/list.
type Tool struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// CallParams are the params of a tools/call request.
type CallParams struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

// ToolResult is the result of a tools/call: one or more content blocks.
type ToolResult struct {
	Content []Content `json:"content"`
}

type Content struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

func textResult(text string) ToolResult {
	return ToolResult{Content: []Content{{Type: "text", Text: text}}}
}

type ListResult struct {
	Tools []Tool `json:"tools"`
}
