// Package mcp exposes the narrative state tracker to MCP clients: projection,
// event listing, relationship and milestone queries over stored sessions.
package mcp

import (
	"context"
	"net/http"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog"

	"talekeeper/internal/persist"
)

type Server struct {
	sessions persist.Sessions
	log      zerolog.Logger
	mcp      *sdk.Server
}

func NewServer(sessions persist.Sessions, log zerolog.Logger, version string) *Server {
	s := &Server{
		sessions: sessions,
		log:      log,
		mcp: sdk.NewServer(&sdk.Implementation{
			Name:    "talekeeper",
			Version: version,
		}, nil),
	}
	s.registerTools()
	return s
}

func (s *Server) Run(ctx context.Context, transport sdk.Transport) error {
	return s.mcp.Run(ctx, transport)
}

// HTTPHandler serves the same tool set over streamable HTTP.
func (s *Server) HTTPHandler() http.Handler {
	return sdk.NewStreamableHTTPHandler(func(*http.Request) *sdk.Server { return s.mcp }, nil)
}
