// Package sshexec executes commands on fleet nodes over SSH.
//
// Each Execute call opens its own connection, authenticates with the fleet
// private key, runs one command, and closes the channel; sessions are never
// reused across stages. Exit codes are surfaced so callers can classify
// convergence outcomes rather than treating every non-zero exit as an error.
//
// Host key verification is disabled: nodes are ephemeral and re-provisioned
// with fresh host keys on every apply.
package sshexec

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"time"

	"golang.org/x/crypto/ssh"

	"github.com/todofleet/fleetctl/internal/util/retry"
)

const (
	defaultPort        = 22
	defaultDialTimeout = 10 * time.Second
	defaultMaxRetries  = 5
	defaultRetryDelay  = 3 * time.Second
	defaultMaxDelay    = 15 * time.Second
)

// Result is the outcome of one remote command.
type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// Runner executes a command on a remote address. It is the seam the
// bootstrap, credential, and convergence stages mock in tests.
type Runner interface {
	Execute(ctx context.Context, address, command string) (Result, error)
}

// Config holds SSH client configuration.
type Config struct {
	User    string
	KeyPath string
	Port    int

	// DialTimeout is the timeout for establishing the TCP connection.
	DialTimeout time.Duration

	// MaxRetries is the maximum number of connection retry attempts.
	MaxRetries int

	// RetryDelay is the initial delay between retry attempts.
	RetryDelay time.Duration

	// CommandTimeout bounds a single command; zero means the caller's
	// context alone bounds it.
	CommandTimeout time.Duration
}

// Client executes commands on remote nodes. The private key is loaded and
// parsed once during construction.
type Client struct {
	config Config
	signer ssh.Signer
}

// NewClient loads the private key and returns a ready client. The key file
// must exist; its permissions are restricted to 0600 before reading.
func NewClient(cfg Config) (*Client, error) {
	if cfg.User == "" {
		return nil, fmt.Errorf("ssh user cannot be empty")
	}
	if cfg.KeyPath == "" {
		return nil, fmt.Errorf("ssh key path cannot be empty")
	}

	info, err := os.Stat(cfg.KeyPath)
	if err != nil {
		return nil, fmt.Errorf("ssh private key %s: %w", cfg.KeyPath, err)
	}
	if info.Mode().Perm() != 0o600 {
		if err := os.Chmod(cfg.KeyPath, 0o600); err != nil {
			return nil, fmt.Errorf("failed to restrict key permissions: %w", err)
		}
	}

	// #nosec G304
	keyData, err := os.ReadFile(cfg.KeyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read ssh private key: %w", err)
	}
	signer, err := ssh.ParsePrivateKey(keyData)
	if err != nil {
		return nil, fmt.Errorf("failed to parse ssh private key: %w", err)
	}

	if cfg.Port == 0 {
		cfg.Port = defaultPort
	}
	if cfg.DialTimeout == 0 {
		cfg.DialTimeout = defaultDialTimeout
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = defaultMaxRetries
	}
	if cfg.RetryDelay == 0 {
		cfg.RetryDelay = defaultRetryDelay
	}

	return &Client{config: cfg, signer: signer}, nil
}

// Execute runs one command on the remote host. A non-zero exit status is
// returned in Result with a nil error; errors are reserved for connection
// and channel failures.
func (c *Client) Execute(ctx context.Context, address, command string) (Result, error) {
	if c.config.CommandTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.config.CommandTimeout)
		defer cancel()
	}

	client, err := c.connect(ctx, address)
	if err != nil {
		return Result{}, err
	}
	defer func() { _ = client.Close() }()

	return c.runCommand(ctx, client, address, command)
}

// connect establishes the SSH connection with retry; boot-fresh nodes can
// take a while to accept connections.
func (c *Client) connect(ctx context.Context, address string) (*ssh.Client, error) {
	config := &ssh.ClientConfig{
		User:            c.config.User,
		Auth:            []ssh.AuthMethod{ssh.PublicKeys(c.signer)},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(), //nolint:gosec // ephemeral fleet nodes
		Timeout:         c.config.DialTimeout,
	}

	addr := net.JoinHostPort(address, fmt.Sprintf("%d", c.config.Port))
	var client *ssh.Client

	err := retry.Do(ctx, func() error {
		var dialErr error
		client, dialErr = ssh.Dial("tcp", addr, config)
		return dialErr
	},
		retry.WithMaxRetries(c.config.MaxRetries),
		retry.WithInitialDelay(c.config.RetryDelay),
		retry.WithMaxDelay(defaultMaxDelay),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to establish SSH connection to %s: %w", addr, err)
	}

	return client, nil
}

// runCommand executes the command on a fresh session and separates the
// output streams.
func (c *Client) runCommand(ctx context.Context, client *ssh.Client, address, command string) (Result, error) {
	session, err := client.NewSession()
	if err != nil {
		return Result{}, fmt.Errorf("failed to create SSH session on %s: %w", address, err)
	}
	defer func() { _ = session.Close() }()

	var stdout, stderr bytes.Buffer
	session.Stdout = &stdout
	session.Stderr = &stderr

	done := make(chan error, 1)
	go func() { done <- session.Run(command) }()

	select {
	case <-ctx.Done():
		// Closing the connection unblocks Run; the remote process is
		// left to the node (cancellation is local-only).
		_ = client.Close()
		return Result{}, fmt.Errorf("command timed out on %s: %w", address, ctx.Err())
	case err = <-done:
	}

	result := Result{Stdout: stdout.String(), Stderr: stderr.String()}
	if err != nil {
		var exitErr *ssh.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitStatus()
			return result, nil
		}
		return result, fmt.Errorf("command failed on %s: %w", address, err)
	}
	return result, nil
}
