package common

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/nedasvi/notion-mcp-server-remote/internal/notion"
	"github.com/nedasvi/notion-mcp-server-remote/internal/server"
)

// JSONResult returns a Notion response as indented JSON text.
func JSONResult(raw json.RawMessage) *mcp.CallToolResult {
	var out bytes.Buffer
	if err := json.Indent(&out, raw, "", "  "); err != nil {
		return mcp.NewToolResultText(string(raw))
	}
	return mcp.NewToolResultText(out.String())
}

// ErrorResult turns a failed Notion call into a tool error. Notion's own
// error message is kept since it names the offending property or id.
func ErrorResult(action string, err error) *mcp.CallToolResult {
	var apiErr *notion.APIError
	switch {
	case errors.Is(err, server.ErrNoCredential):
		return mcp.NewToolResultError(err.Error())
	case notion.IsRateLimited(err):
		return mcp.NewToolResultError(fmt.Sprintf("Failed to %s: Notion rate limit reached, retry later", action))
	case errors.As(err, &apiErr):
		return mcp.NewToolResultError(fmt.Sprintf("Failed to %s: %s (%s)", action, apiErr.Message, apiErr.Code))
	}
	return mcp.NewToolResultError(fmt.Sprintf("Failed to %s: %v", action, err))
}

// StringArg returns a string argument, or "" when absent or not a string.
func StringArg(args map[string]any, key string) string {
	v, _ := args[key].(string)
	return v
}

// RequiredStringArg is StringArg that errors on an empty value.
func RequiredStringArg(args map[string]any, key string) (string, error) {
	v := StringArg(args, key)
	if v == "" {
		return "", fmt.Errorf("%s is required", key)
	}
	return v, nil
}

// IntArg reads a numeric argument. JSON numbers arrive as float64.
func IntArg(args map[string]any, key string) (int, error) {
	switch v := args[key].(type) {
	case nil:
		return 0, nil
	case float64:
		if v < 0 || v != float64(int(v)) {
			return 0, fmt.Errorf("%s must be a non-negative integer", key)
		}
		return int(v), nil
	case int:
		if v < 0 {
			return 0, fmt.Errorf("%s must be a non-negative integer", key)
		}
		return v, nil
	}
	return 0, fmt.Errorf("%s must be a number", key)
}

// BoolArg reads an optional boolean argument; nil means absent.
func BoolArg(args map[string]any, key string) (*bool, error) {
	switch v := args[key].(type) {
	case nil:
		return nil, nil
	case bool:
		return &v, nil
	}
	return nil, fmt.Errorf("%s must be a boolean", key)
}

// JSONArg parses an object-or-array argument given as JSON text or as a
// structured value.
func JSONArg(args map[string]any, key string) (notion.JSONValue, error) {
	v, err := notion.ParseJSONValue(args[key])
	if err != nil {
		return notion.JSONValue{}, fmt.Errorf("%s: %w", key, err)
	}
	return v, nil
}

// PaginationArgs reads start_cursor and page_size.
func PaginationArgs(args map[string]any) (notion.Pagination, error) {
	size, err := IntArg(args, "page_size")
	if err != nil {
		return notion.Pagination{}, err
	}
	return notion.Pagination{StartCursor: StringArg(args, "start_cursor"), PageSize: size}, nil
}
