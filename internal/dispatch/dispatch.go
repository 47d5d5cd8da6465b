// Package dispatch maps control-channel commands to handlers.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/d2verb/scenebridge/internal/frame"
	"github.com/d2verb/scenebridge/internal/host"
	"github.com/d2verb/scenebridge/internal/metrics"
	"github.com/d2verb/scenebridge/internal/preview"
	"github.com/d2verb/scenebridge/internal/protocol"
)

// HandlerFunc executes one command type. A nil error produces an ok response
// carrying the returned result.
type HandlerFunc func(ctx context.Context, params Params) (any, error)

// PreviewController manages live preview sessions.
type PreviewController interface {
	Start(opts preview.Options) (preview.Info, error)
	Stop(port int) error
	StopAll() int
	List() []preview.Info
}

// Options configures a Dispatcher.
type Options struct {
	// AllowExec enables the execute_code command.
	AllowExec bool
	// Previews enables the live preview commands when non-nil.
	Previews PreviewController
	// PreviewDefaults fills unset start_live_preview params.
	PreviewDefaults preview.Options
	// CommandTimeout bounds a single command; zero means no limit.
	CommandTimeout time.Duration
	Logger         *slog.Logger
}

// Dispatcher resolves a command type to its handler and turns every outcome,
// including handler panics, into exactly one Response.
type Dispatcher struct {
	handlers  map[string]HandlerFunc
	exec      *host.Executor
	capturer  *frame.Capturer
	collector *metrics.Collector
	opts      Options
	logger    *slog.Logger
}

// New creates a dispatcher with the built-in command set registered.
func New(exec *host.Executor, opts Options) *Dispatcher {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if opts.PreviewDefaults.FPS == 0 {
		opts.PreviewDefaults = preview.DefaultOptions()
	}
	d := &Dispatcher{
		handlers:  make(map[string]HandlerFunc),
		exec:      exec,
		capturer:  frame.NewCapturer(exec),
		collector: metrics.New(exec),
		opts:      opts,
		logger:    logger,
	}
	d.registerBuiltins()
	return d
}

// Register adds or replaces the handler for a command type.
func (d *Dispatcher) Register(cmdType string, h HandlerFunc) {
	d.handlers[cmdType] = h
}

// Commands returns the registered command types, sorted.
func (d *Dispatcher) Commands() []string {
	names := make([]string, 0, len(d.handlers))
	for name := range d.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Dispatch runs cmd and returns its response. It never panics and never
// returns nil.
func (d *Dispatcher) Dispatch(ctx context.Context, cmd *protocol.Command) (resp *protocol.Response) {
	if cmd == nil || cmd.Type == "" {
		return protocol.NewErrorResponseWithCode(protocol.ErrCodeInvalidRequest, "missing command type")
	}

	handler, ok := d.handlers[cmd.Type]
	if !ok {
		return protocol.NewErrorResponseWithCode(protocol.ErrCodeUnknownCommand, "unknown command: "+cmd.Type)
	}

	if d.opts.CommandTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.opts.CommandTimeout)
		defer cancel()
	}

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("command panicked", "type", cmd.Type, "panic", r)
			resp = protocol.NewErrorResponseWithCode(protocol.ErrCodeHostError, fmt.Sprintf("%s failed: internal error: %v", cmd.Type, r))
		}
	}()

	params := Params(cmd.Params)
	if params == nil {
		params = Params{}
	}
	result, err := handler(ctx, params)
	if err != nil {
		code, msg := classifyError(err)
		d.logger.Warn("command failed", "type", cmd.Type, "code", code, "error", msg, "duration", time.Since(start))
		return protocol.NewErrorResponseWithCode(code, msg)
	}
	d.logger.Debug("command ok", "type", cmd.Type, "duration", time.Since(start))
	return protocol.NewOKResponse(result)
}

// classifyError determines the error code based on the error type.
func classifyError(err error) (code, message string) {
	msg := err.Error()
	if msg == "" {
		msg = "command failed"
	}

	switch {
	case IsValidation(err), frame.IsValidation(err):
		return protocol.ErrCodeInvalidParams, msg
	case errors.Is(err, ErrExecDisabled):
		return protocol.ErrCodeExecDisabled, msg
	case preview.IsBind(err):
		return protocol.ErrCodeBindFailed, msg
	case IsPartialFailure(err):
		return protocol.ErrCodeHostError, msg
	case errors.Is(err, preview.ErrSessionNotFound), host.IsNotFound(err):
		return protocol.ErrCodeNotFound, msg
	case frame.IsEncoding(err):
		return protocol.ErrCodeEncodingFailed, msg
	case host.IsExecutionError(err), errors.Is(err, host.ErrExecutorStopped):
		return protocol.ErrCodeHostError, msg
	case errors.Is(err, context.DeadlineExceeded):
		return protocol.ErrCodeHostError, "command timed out: " + msg
	}
	return "", msg
}
