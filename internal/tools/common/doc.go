// Package common provides helpers shared by the MCP tool packages: the
// instrumentation wrapper, identity resolution and result formatting.
package common
