package server

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/mj1618/uibridge/internal/errs"
	"github.com/mj1618/uibridge/internal/output"
)

// toolFunc implements one tool. It returns a value rendered as YAML, or a
// ready *mcp.CallToolResult for image content.
type toolFunc func(ctx context.Context, a args) (any, error)

// ErrorBody is the YAML body of a failed tool call.
type ErrorBody struct {
	Error   string `yaml:"error" json:"error"`
	Message string `yaml:"message" json:"message"`
}

// okBody acknowledges tools with nothing else to report.
type okBody struct {
	OK bool `yaml:"ok" json:"ok"`
}

var ok = okBody{OK: true}

// handler adapts fn to mcp-go. Domain failures become error results; the
// Go error return stays nil so a failing tool never ends the session.
func (s *Server) handler(name string, fn toolFunc) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		start := time.Now()
		v, err := fn(ctx, newArgs(name, request.GetArguments()))
		elapsed := time.Since(start)
		if err != nil {
			kind := kindOf(err)
			s.metrics.ObserveTool(name, string(kind), elapsed)
			s.log.Warn("tool failed", "tool", name, "kind", kind, "elapsed", elapsed, "err", err)
			return errorResult(kind, err, v), nil
		}
		s.metrics.ObserveTool(name, "ok", elapsed)
		s.log.Debug("tool done", "tool", name, "elapsed", elapsed)
		if r, isResult := v.(*mcp.CallToolResult); isResult {
			return r, nil
		}
		return textResult(v), nil
	}
}

func kindOf(err error) errs.Kind {
	if errors.Is(err, context.Canceled) {
		return "canceled"
	}
	if k := errs.KindOf(err); k != "" {
		return k
	}
	return errs.KindTransport
}

func textResult(v any) *mcp.CallToolResult {
	text, err := output.YAML(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("error: transport\nmessage: render result: %v\n", err))
	}
	return mcp.NewToolResultText(text)
}

// errorResult renders the error body. A partial value, such as the last
// observation of an expired wait, is appended after it.
func errorResult(kind errs.Kind, err error, partial any) *mcp.CallToolResult {
	text, rerr := output.YAML(ErrorBody{Error: string(kind), Message: err.Error()})
	if rerr != nil {
		text = fmt.Sprintf("error: %s\nmessage: %q\n", kind, err.Error())
	}
	if partial != nil {
		if _, isResult := partial.(*mcp.CallToolResult); !isResult {
			if extra, perr := output.YAML(map[string]any{"result": partial}); perr == nil {
				text += extra
			}
		}
	}
	return mcp.NewToolResultError(text)
}
