package browser

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"
)

const (
	// DefaultFeedURL is visited to check the session.
	DefaultFeedURL = "https://www.linkedin.com/feed/"
	// DefaultLoginURL is opened for a manual sign-in.
	DefaultLoginURL = "https://www.linkedin.com/login"
	// DefaultSignedInMarker only renders for a signed-in member.
	DefaultSignedInMarker = "#global-nav"
	// DefaultSessionCheckTimeout bounds the wait for the marker.
	DefaultSessionCheckTimeout = 15 * time.Second
)

// navigator is the part of Page a Session needs.
type navigator interface {
	Goto(ctx context.Context, url string) error
	WaitForSelector(ctx context.Context, selector string, timeout time.Duration) (bool, error)
}

// Session checks and establishes the signed-in state of the browser
// profile. Sign-in itself is left to the operator.
type Session struct {
	nav     navigator
	in      io.Reader
	out     io.Writer
	feed    string
	login   string
	marker  string
	timeout time.Duration
	logger  *slog.Logger
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithSessionURLs overrides the feed and login addresses.
func WithSessionURLs(feed, login string) SessionOption {
	return func(s *Session) {
		if feed != "" {
			s.feed = feed
		}
		if login != "" {
			s.login = login
		}
	}
}

// WithSignedInMarker overrides the selector that proves a signed-in session.
func WithSignedInMarker(selector string, timeout time.Duration) SessionOption {
	return func(s *Session) {
		if selector != "" {
			s.marker = selector
		}
		if timeout > 0 {
			s.timeout = timeout
		}
	}
}

// WithSessionLogger sets the logger.
func WithSessionLogger(l *slog.Logger) SessionOption {
	return func(s *Session) {
		s.logger = l
	}
}

// NewSession returns a Session that prompts on out and waits for a line on in.
func NewSession(nav navigator, in io.Reader, out io.Writer, opts ...SessionOption) *Session {
	s := &Session{
		nav:     nav,
		in:      in,
		out:     out,
		feed:    DefaultFeedURL,
		login:   DefaultLoginURL,
		marker:  DefaultSignedInMarker,
		timeout: DefaultSessionCheckTimeout,
		logger:  slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// IsAuthenticated implements crawler.Session by loading the feed and
// looking for the signed-in marker.
func (s *Session) IsAuthenticated(ctx context.Context) (bool, error) {
	if err := s.nav.Goto(ctx, s.feed); err != nil {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		// A signed-out feed usually redirects to a login wall.
		s.logger.Debug("feed did not load", "error", err)
		return false, nil
	}
	return s.nav.WaitForSelector(ctx, s.marker, s.timeout)
}

// AwaitManualAuthentication implements crawler.Session.
func (s *Session) AwaitManualAuthentication(ctx context.Context) error {
	if err := s.nav.Goto(ctx, s.login); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		s.logger.Debug("login page reported", "error", err)
	}

	fmt.Fprintln(s.out, "Sign in in the browser window, then press Enter here to continue.")
	if err := s.readLine(ctx); err != nil {
		return err
	}

	ok, err := s.IsAuthenticated(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotAuthenticated
	}
	return nil
}

// readLine blocks until a line arrives on the input or ctx is done.
func (s *Session) readLine(ctx context.Context) error {
	done := make(chan error, 1)
	go func() {
		line, err := bufio.NewReader(s.in).ReadString('\n')
		if errors.Is(err, io.EOF) {
			if line == "" {
				err = ErrNoInput
			} else {
				err = nil
			}
		}
		done <- err
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-done:
		return err
	}
}
