// Package redisctl sends administrative commands to the managed redis server.
package redisctl

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stone-age-io/redis-service/internal/config"
	"github.com/stone-age-io/redis-service/internal/logging"
	"go.uber.org/zap"
)

// ErrConnect is wrapped by errors returned when the control endpoint is unreachable
var ErrConnect = errors.New("could not connect to redis")

var errConnUsed = errors.New("control connection already used")

// Client talks to a single redis control endpoint
type Client struct {
	address        string
	dialTimeout    time.Duration
	commandTimeout time.Duration
	logger         *logging.Logger
}

// Conn is an established control connection. It carries exactly one TCP
// connection; it never redials.
type Conn struct {
	address string
	netConn net.Conn
	rdb     *redis.Client
	logger  *logging.Logger
}

// New creates a client for the endpoint described by cfg
func New(cfg config.RedisConfig, logger *logging.Logger) *Client {
	return &Client{
		address:        net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		dialTimeout:    cfg.DialTimeout,
		commandTimeout: cfg.CommandTimeout,
		logger:         logger,
	}
}

// Address returns the host:port the client connects to
func (c *Client) Address() string {
	return c.address
}

// Connect opens a TCP connection to the control endpoint. Failing here is
// expected when the server has already exited or is still starting.
func (c *Client) Connect(ctx context.Context) (*Conn, error) {
	dialer := &net.Dialer{Timeout: c.dialTimeout}
	netConn, err := dialer.DialContext(ctx, "tcp", c.address)
	if err != nil {
		c.logger.Error("Failed to connect to redis",
			zap.String("address", c.address),
			zap.Error(err))
		return nil, fmt.Errorf("%w at %s: %w", ErrConnect, c.address, err)
	}

	var used atomic.Bool
	rdb := redis.NewClient(&redis.Options{
		Addr:             c.address,
		Protocol:         2,
		MaxRetries:       -1,
		PoolSize:         1,
		DisableIdentity:  true,
		ReadTimeout:      c.commandTimeout,
		WriteTimeout:     c.commandTimeout,
		Dialer: func(ctx context.Context, network, addr string) (net.Conn, error) {
			if used.Swap(true) {
				return nil, errConnUsed
			}
			return netConn, nil
		},
	})

	return &Conn{
		address: c.address,
		netConn: netConn,
		rdb:     rdb,
		logger:  c.logger,
	}, nil
}

// RequestShutdown connects, sends SHUTDOWN and closes the connection. It does
// not wait for the server process to exit.
func (c *Client) RequestShutdown(ctx context.Context) error {
	conn, err := c.Connect(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	ctx, cancel := context.WithTimeout(ctx, c.commandTimeout)
	defer cancel()

	return conn.Shutdown(ctx)
}

// Shutdown sends the SHUTDOWN command. The server closing the connection is
// the normal outcome; any reply it sends instead is accepted as well.
func (c *Conn) Shutdown(ctx context.Context) error {
	err := c.rdb.Shutdown(ctx).Err()
	switch classifyShutdown(err) {
	case shutdownClosed:
		c.logger.Debug("Redis closed the connection after SHUTDOWN",
			zap.String("address", c.address),
			zap.Error(err))
		return nil
	case shutdownReplied:
		c.logger.Warn("Redis replied to SHUTDOWN", zap.String("reply", err.Error()))
		return nil
	default:
		return fmt.Errorf("failed to send SHUTDOWN to %s: %w", c.address, err)
	}
}

// Close releases the connection
func (c *Conn) Close() error {
	err := c.rdb.Close()
	_ = c.netConn.Close()
	return err
}

type shutdownOutcome int

const (
	shutdownClosed  shutdownOutcome = iota // connection closed or reset by the server
	shutdownReplied                        // server sent a reply and kept running
	shutdownFailed                         // command could not be delivered
)

// classifyShutdown sorts the result of a SHUTDOWN call. go-redis already maps
// a clean EOF to nil.
func classifyShutdown(err error) shutdownOutcome {
	var netErr net.Error
	switch {
	case err == nil, errors.Is(err, syscall.ECONNRESET):
		return shutdownClosed
	case errors.As(err, &netErr),
		errors.Is(err, io.ErrUnexpectedEOF),
		errors.Is(err, net.ErrClosed),
		errors.Is(err, redis.ErrClosed),
		errors.Is(err, errConnUsed):
		return shutdownFailed
	default:
		return shutdownReplied
	}
}
