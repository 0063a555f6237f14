package db

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/mongo"

	"github.com/vainnor/session-stats/logger"
	"github.com/vainnor/session-stats/models"
)

// Logical names of the session collection. They are fixed by contract and
// not configurable.
const (
	DatabaseName   = "myapp"
	CollectionName = "user_sessions"
)

const DefaultConnectTimeout = 10 * time.Second

// codeUnauthorized is the MongoDB server code for an unauthenticated command.
const codeUnauthorized = 13

var ErrUnsupportedTarget = errors.New("unsupported connection target")

// Store is a read-only view over the session collection.
type Store interface {
	// FindSessions returns every record whose user_id equals userID.
	FindSessions(ctx context.Context, userID string) ([]models.SessionRecord, error)
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

type Options struct {
	ConnectTimeout time.Duration
}

func (o Options) connectTimeout() time.Duration {
	if o.ConnectTimeout <= 0 {
		return DefaultConnectTimeout
	}
	return o.ConnectTimeout
}

// ConnectError marks a failure to reach or authenticate to the store.
type ConnectError struct {
	Target string
	Err    error
}

func (e *ConnectError) Error() string {
	return e.Err.Error()
}

func (e *ConnectError) Unwrap() error {
	return e.Err
}

// Open connects to the store named by target and verifies it is reachable.
// The scheme selects the backend: mongodb, postgres or sqlite.
func Open(ctx context.Context, target string, opts Options) (Store, error) {
	ctx, cancel := context.WithTimeout(ctx, opts.connectTimeout())
	defer cancel()

	var (
		store Store
		err   error
	)
	switch scheme(target) {
	case "mongodb", "mongodb+srv":
		store, err = openMongo(ctx, target, opts)
	case "postgres", "postgresql":
		store, err = openSQL(driverPostgres, target)
	case "sqlite":
		store, err = openSQL(driverSQLite, sqliteDSN(sqlitePath(target)))
	default:
		err = fmt.Errorf("%w: %q", ErrUnsupportedTarget, redact(target))
	}
	if err != nil {
		return nil, &ConnectError{Target: redact(target), Err: err}
	}

	if err := store.Ping(ctx); err != nil {
		closeCtx, closeCancel := context.WithTimeout(context.Background(), opts.connectTimeout())
		defer closeCancel()
		if closeErr := store.Close(closeCtx); closeErr != nil {
			logger.Warn("error closing session store", "target", redact(target), "error", closeErr)
		}
		return nil, &ConnectError{Target: redact(target), Err: err}
	}

	logger.Debug("connected to session store", "target", redact(target))

	return store, nil
}

func scheme(target string) string {
	i := strings.Index(target, ":")
	if i <= 0 {
		return ""
	}
	return strings.ToLower(target[:i])
}

func sqlitePath(target string) string {
	path := target[len("sqlite:"):]
	return strings.TrimPrefix(path, "//")
}

// sqliteDSN opens path read-only, so a missing file fails instead of being
// created.
func sqliteDSN(path string) string {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return "file:" + path + sep + "mode=ro"
}

// redact strips credentials from a URI-shaped target so it can be logged.
func redact(target string) string {
	at := strings.LastIndex(target, "@")
	sep := strings.Index(target, "://")
	if at < 0 || sep < 0 || at < sep {
		return target
	}
	return target[:sep+3] + "***" + target[at:]
}

// IsConnectivity reports whether err came from failing to reach the store
// rather than from the data it returned.
func IsConnectivity(err error) bool {
	if err == nil {
		return false
	}
	var connErr *ConnectError
	if errors.As(err, &connErr) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, driver.ErrBadConn) {
		return true
	}
	if mongo.IsNetworkError(err) || mongo.IsTimeout(err) {
		return true
	}
	var srvErr mongo.ServerError
	if errors.As(err, &srvErr) && srvErr.HasErrorCode(codeUnauthorized) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
