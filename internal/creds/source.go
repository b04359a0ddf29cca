// Package creds distributes registry credentials to fleet nodes and
// abstracts where those credentials come from.
//
// Secret values are write-only: they are pushed to each node's secret
// store and never echoed, logged, or embedded in error messages.
package creds

import (
	"context"
	"fmt"
	"os"
	"strings"

	"golang.org/x/term"
)

// Credentials is the registry credential pair.
type Credentials struct {
	Username string
	Token    string
}

// Source supplies registry credentials. Implementations: terminal prompt,
// environment variables, external secret manager. The pipeline takes the
// interface so it is testable without a terminal.
type Source interface {
	RegistryCredentials(ctx context.Context) (Credentials, error)
}

// EnvSource reads credentials from the environment.
type EnvSource struct {
	UsernameVar string
	TokenVar    string
}

// NewEnvSource returns a Source backed by the conventional variables.
func NewEnvSource() EnvSource {
	return EnvSource{UsernameVar: "REGISTRY_USERNAME", TokenVar: "REGISTRY_TOKEN"}
}

func (s EnvSource) RegistryCredentials(context.Context) (Credentials, error) {
	username := os.Getenv(s.UsernameVar)
	token := os.Getenv(s.TokenVar)
	if username == "" || token == "" {
		return Credentials{}, fmt.Errorf("registry credentials not set; export %s and %s", s.UsernameVar, s.TokenVar)
	}
	return Credentials{Username: username, Token: token}, nil
}

// PromptSource asks the operator interactively. The token is read with
// echo disabled.
type PromptSource struct{}

func (PromptSource) RegistryCredentials(context.Context) (Credentials, error) {
	username, err := PromptValue("Registry username", false)
	if err != nil {
		return Credentials{}, err
	}
	token, err := PromptValue("Registry token", true)
	if err != nil {
		return Credentials{}, err
	}
	return Credentials{Username: username, Token: token}, nil
}

// PromptValue reads one value from the terminal. When secret is true the
// input is not echoed.
func PromptValue(label string, secret bool) (string, error) {
	fmt.Fprintf(os.Stderr, "%s: ", label)
	if secret {
		data, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", fmt.Errorf("failed to read %s: %w", label, err)
		}
		value := strings.TrimSpace(string(data))
		if value == "" {
			return "", fmt.Errorf("%s cannot be empty", label)
		}
		return value, nil
	}

	var value string
	if _, err := fmt.Fscanln(os.Stdin, &value); err != nil {
		return "", fmt.Errorf("failed to read %s: %w", label, err)
	}
	return strings.TrimSpace(value), nil
}

// SecretGetter fetches one named secret value. Satisfied by the secretstore
// client.
type SecretGetter interface {
	Get(ctx context.Context, name string) (string, error)
}

// ManagerSource reads credentials from an external secret manager under the
// given name prefix.
type ManagerSource struct {
	Getter SecretGetter
	Prefix string
}

func (s ManagerSource) RegistryCredentials(ctx context.Context) (Credentials, error) {
	username, err := s.Getter.Get(ctx, s.Prefix+"/registry-username")
	if err != nil {
		return Credentials{}, fmt.Errorf("failed to fetch registry username: %w", err)
	}
	token, err := s.Getter.Get(ctx, s.Prefix+"/registry-token")
	if err != nil {
		return Credentials{}, fmt.Errorf("failed to fetch registry token: %w", err)
	}
	return Credentials{Username: username, Token: token}, nil
}

// Static is a fixed-value Source for tests.
type Static Credentials

func (s Static) RegistryCredentials(context.Context) (Credentials, error) {
	return Credentials(s), nil
}
