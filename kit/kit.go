// Package kit holds small transport-agnostic service plumbing.
package kit

import "context"

// Endpoint is one service operation: typed request in, response out.
// Transports (MCP, HTTP) adapt their wire formats onto Endpoints.
type Endpoint func(ctx context.Context, req any) (any, error)
