// Package session is the client side of one account's server session. It
// forwards every blocking port call to the server with a request deadline
// and reports timeouts and cancellations as network errors.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/haukened/rr-block/internal/block/common/log"
	"github.com/haukened/rr-block/internal/block/domain"
	"github.com/haukened/rr-block/internal/block/services/blocking"
)

// Error message constants for consistent error handling
const (
	errServerRequired = "session requires a server"
)

// Server is everything the session forwards to.
type Server interface {
	blocking.PrivacyListStore
	blocking.BlockCommander
	blocking.FeatureDiscoverer
}

// Options defines configuration parameters for a Session.
type Options struct {
	// required parameters
	Server  Server
	Timeout time.Duration
	// options to inject for testing purposes
	Logger log.Logger
	NewID  func() string
}

// Session implements the blocking ports over a Server. A request that
// outlives its deadline is reported as failed even though the server may
// still apply it, as on a real connection.
type Session struct {
	server  Server
	timeout time.Duration
	logger  log.Logger
	newID   func() string
}

// New creates a Session. The default request timeout is 5 seconds.
func New(opts Options) (*Session, error) {
	if opts.Server == nil {
		return nil, errors.New(errServerRequired)
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = log.NewNoopLogger()
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}
	return &Session{
		server:  opts.Server,
		timeout: opts.Timeout,
		logger:  log.With(opts.Logger, map[string]any{"component": "session"}),
		newID:   opts.NewID,
	}, nil
}

// ensureContextDeadline ensures the context has a deadline, adding the session's default timeout if needed.
// Returns the context (potentially with added timeout) and a cancel function if one was created.
func (s *Session) ensureContextDeadline(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); !ok {
		return context.WithTimeout(ctx, s.timeout)
	}
	return ctx, nil
}

// call runs fn as request op and waits for its result or for ctx to end.
func call[T any](s *Session, ctx context.Context, op string, fn func(context.Context) (T, error)) (T, error) {
	ctx, cancel := s.ensureContextDeadline(ctx)
	if cancel != nil {
		defer cancel()
	}
	id := s.newID()
	start := time.Now()

	type result struct {
		v   T
		err error
	}
	done := make(chan result, 1)
	go func() {
		v, err := fn(ctx)
		done <- result{v, err}
	}()

	var (
		v   T
		err error
	)
	select {
	case r := <-done:
		v, err = r.v, r.err
	case <-ctx.Done():
		err = ctx.Err()
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		var ne *domain.NetworkError
		if !errors.As(err, &ne) {
			err = &domain.NetworkError{Op: op, Err: err}
		}
	}

	fields := map[string]any{"id": id, "op": op, "elapsed": time.Since(start).String()}
	if err != nil {
		fields["error"] = err.Error()
	}
	s.logger.Debug(fields, "request completed")
	return v, err
}

// exec is call for requests without a result.
func exec(s *Session, ctx context.Context, op string, fn func(context.Context) error) error {
	_, err := call(s, ctx, op, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

func (s *Session) ListNames(ctx context.Context) ([]string, error) {
	return call(s, ctx, "privacy.names", s.server.ListNames)
}

func (s *Session) GetList(ctx context.Context, name string) (domain.RuleList, error) {
	return call(s, ctx, "privacy.get", func(ctx context.Context) (domain.RuleList, error) {
		return s.server.GetList(ctx, name)
	})
}

func (s *Session) DefaultListName(ctx context.Context) (string, error) {
	return call(s, ctx, "privacy.default", s.server.DefaultListName)
}

func (s *Session) SetDefaultListName(ctx context.Context, name string) error {
	return exec(s, ctx, "privacy.set-default", func(ctx context.Context) error {
		return s.server.SetDefaultListName(ctx, name)
	})
}

func (s *Session) SetActiveListName(ctx context.Context, name string) error {
	return exec(s, ctx, "privacy.set-active", func(ctx context.Context) error {
		return s.server.SetActiveListName(ctx, name)
	})
}

func (s *Session) SaveList(ctx context.Context, l domain.RuleList) error {
	return exec(s, ctx, "privacy.save", func(ctx context.Context) error {
		return s.server.SaveList(ctx, l.Clone())
	})
}

func (s *Session) RemoveList(ctx context.Context, name string) error {
	return exec(s, ctx, "privacy.remove", func(ctx context.Context) error {
		return s.server.RemoveList(ctx, name)
	})
}

func (s *Session) SendBlockCommand(ctx context.Context, op domain.BlockOp, addr domain.Address) error {
	return exec(s, ctx, fmt.Sprintf("blocking.%s", op), func(ctx context.Context) error {
		return s.server.SendBlockCommand(ctx, op, addr)
	})
}

func (s *Session) QueryNativeBlocklist(ctx context.Context) (domain.BlockedSet, error) {
	return call(s, ctx, "blocking.query", s.server.QueryNativeBlocklist)
}

func (s *Session) IsFeatureSupported(ctx context.Context, feature string) (bool, error) {
	return call(s, ctx, "disco.info", func(ctx context.Context) (bool, error) {
		return s.server.IsFeatureSupported(ctx, feature)
	})
}

var _ Server = (*Session)(nil)
