// Package protocol defines the JSON protocol spoken on the control and preview channels.
//
// Every message is a single JSON document terminated by a newline ('\n').
// Binary payloads such as encoded images are carried as base64 strings.
package protocol

import (
	"encoding/json"
	"fmt"
)

// Command represents a request sent on the control channel.
type Command struct {
	Type   string         `json:"type"`
	Params map[string]any `json:"params,omitempty"`
}

// Response represents the reply to exactly one Command.
type Response struct {
	Status  string `json:"status"` // "ok" or "error"
	Result  any    `json:"result,omitempty"`
	Message string `json:"message,omitempty"`
	Code    string `json:"code,omitempty"`
}

// Command types
const (
	CmdGetSceneInfo     = "get_scene_info"
	CmdGetObjectInfo    = "get_object_info"
	CmdCreateObject     = "create_object"
	CmdModifyObject     = "modify_object"
	CmdDeleteObject     = "delete_object"
	CmdSetMaterial      = "set_material"
	CmdExecuteCode      = "execute_code"
	CmdGetViewportImage = "get_viewport_image"
	CmdGetSceneMetrics  = "get_scene_metrics"
	CmdStartLivePreview = "start_live_preview"
	CmdStopLivePreview  = "stop_live_preview"
	CmdListLivePreviews = "list_live_previews"
	CmdGetServerStatus  = "get_server_status"
)

// Commands lists every command type the server understands, in documentation order.
var Commands = []string{
	CmdGetSceneInfo,
	CmdGetObjectInfo,
	CmdCreateObject,
	CmdModifyObject,
	CmdDeleteObject,
	CmdSetMaterial,
	CmdExecuteCode,
	CmdGetViewportImage,
	CmdGetSceneMetrics,
	CmdStartLivePreview,
	CmdStopLivePreview,
	CmdListLivePreviews,
	CmdGetServerStatus,
}

// Status values
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// Error codes
const (
	ErrCodeUnknownCommand  = "unknown_command"
	ErrCodeInvalidRequest  = "invalid_request"
	ErrCodeInvalidParams   = "invalid_params"
	ErrCodeMessageTooLarge = "message_too_large"
	ErrCodeEncodingFailed  = "encoding_failed"
	ErrCodeHostError       = "host_error"
	ErrCodeBindFailed      = "bind_failed"
	ErrCodeExecDisabled    = "exec_disabled"
	ErrCodeNotFound        = "not_found"
)

// NewCommand creates a new command with the given type and params.
func NewCommand(cmdType string, params map[string]any) *Command {
	return &Command{
		Type:   cmdType,
		Params: params,
	}
}

// NewOKResponse creates a successful response carrying result.
func NewOKResponse(result any) *Response {
	return &Response{
		Status: StatusOK,
		Result: result,
	}
}

// NewErrorResponse creates an error response.
func NewErrorResponse(message string) *Response {
	return &Response{
		Status:  StatusError,
		Message: message,
	}
}

// NewErrorResponseWithCode creates an error response with a machine-readable code.
func NewErrorResponseWithCode(code, message string) *Response {
	return &Response{
		Status:  StatusError,
		Message: message,
		Code:    code,
	}
}

// OK reports whether the response has status "ok".
func (r *Response) OK() bool {
	return r.Status == StatusOK
}

// ResultMap returns the result as a generic JSON object.
// Responses decoded from the wire carry map[string]any results; typed results
// produced in-process are round-tripped through JSON.
func (r *Response) ResultMap() map[string]any {
	switch v := r.Result.(type) {
	case nil:
		return nil
	case map[string]any:
		return v
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return nil
		}
		var m map[string]any
		if err := json.Unmarshal(data, &m); err != nil {
			return nil
		}
		return m
	}
}

// DecodeResult decodes the result into v, which must be a pointer.
func (r *Response) DecodeResult(v any) error {
	data, err := json.Marshal(r.Result)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode result: %w", err)
	}
	return nil
}
