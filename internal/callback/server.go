package callback

import (
	"context"
	"errors"
	"html"
	"net"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// Handler consumes the redirect URL delivered by the provider. It is the
// orchestrator's HandleCallback in production.
type Handler func(ctx context.Context, rawURL string) error

const successPage = `<!DOCTYPE html>
<html><body>
<p>Login complete. You can close this window and return to the app.</p>
</body></html>`

// Server is the loopback half of the OAuth redirect URI: it listens on the
// configured address, hands each redirect to the handler, and shows the user
// a minimal confirmation page.
type Server struct {
	echo    *echo.Echo
	addr    string
	handler Handler
	logger  zerolog.Logger
}

// New creates a callback server for the given listen address and redirect
// path.
func New(addr, path string, handler Handler, logger zerolog.Logger) *Server {
	s := &Server{
		addr:    addr,
		handler: handler,
		logger:  logger.With().Str("component", "callback").Logger(),
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.GET(path, s.handleRedirect)
	s.echo = e

	return s
}

func (s *Server) handleRedirect(c echo.Context) error {
	raw := c.Request().URL.String()
	s.logger.Debug().Msg("received oauth redirect")

	if err := s.handler(c.Request().Context(), raw); err != nil {
		s.logger.Warn().Err(err).Msg("redirect rejected")
		return c.HTML(http.StatusBadRequest,
			"<!DOCTYPE html><html><body><p>Login failed: "+
				html.EscapeString(err.Error())+"</p></body></html>")
	}
	return c.HTML(http.StatusOK, successPage)
}

// Start begins listening in a background goroutine.
func (s *Server) Start() {
	go func() {
		if err := s.echo.Start(s.addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error().Err(err).Msg("callback listener failed")
		}
	}()
}

// Addr returns the bound listener address, or nil before Start has bound it.
func (s *Server) Addr() net.Addr {
	return s.echo.ListenerAddr()
}

// Shutdown stops the listener gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}
