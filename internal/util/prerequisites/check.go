// Package prerequisites checks for the client tools and files a deployment
// needs before any remote call is made.
package prerequisites

import (
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// Tool represents a client tool that may be required.
type Tool struct {
	// Name is the binary name to look for in PATH.
	Name string

	// Required indicates if this tool is mandatory.
	Required bool

	// Description explains what the tool is used for.
	Description string

	// InstallURL provides a URL for installation instructions.
	InstallURL string
}

// ProvisionTools returns the tools needed to provision infrastructure.
func ProvisionTools() []Tool {
	return []Tool{
		{
			Name:        "terraform",
			Required:    true,
			Description: "Required for provisioning fleet infrastructure",
			InstallURL:  "https://developer.hashicorp.com/terraform/install",
		},
	}
}

// DevTools returns the tools needed for local development commands.
func DevTools() []Tool {
	return []Tool{
		{
			Name:        "docker",
			Required:    true,
			Description: "Required for running the application stack locally",
			InstallURL:  "https://docs.docker.com/get-docker/",
		},
		{
			Name:        "npm",
			Required:    false,
			Description: "Useful for running the frontend dev server outside Docker",
			InstallURL:  "https://nodejs.org/",
		},
	}
}

// CheckResult contains the result of checking a single tool.
type CheckResult struct {
	Tool    Tool
	Found   bool
	Path    string
	Version string
}

// CheckResults contains the results of checking multiple tools.
type CheckResults struct {
	Results []CheckResult
	Missing []Tool
}

// HasErrors returns true if any required tools are missing.
func (r *CheckResults) HasErrors() bool {
	for _, tool := range r.Missing {
		if tool.Required {
			return true
		}
	}
	return false
}

// ErrorMessage builds an operator-facing message listing missing required tools.
func (r *CheckResults) ErrorMessage() string {
	var b strings.Builder
	for _, tool := range r.Missing {
		if !tool.Required {
			continue
		}
		fmt.Fprintf(&b, "missing required tool %q: %s (install: %s)\n",
			tool.Name, tool.Description, tool.InstallURL)
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// Check looks up each tool in PATH and records its version when available.
func Check(tools []Tool) *CheckResults {
	results := &CheckResults{}
	for _, tool := range tools {
		result := CheckResult{Tool: tool}
		if path, err := exec.LookPath(tool.Name); err == nil {
			result.Found = true
			result.Path = path
			result.Version = toolVersion(tool.Name)
		} else {
			results.Missing = append(results.Missing, tool)
		}
		results.Results = append(results.Results, result)
	}
	return results
}

// toolVersion asks the tool for its version; best effort only.
func toolVersion(name string) string {
	out, err := exec.Command(name, "--version").Output()
	if err != nil {
		return ""
	}
	line := strings.SplitN(strings.TrimSpace(string(out)), "\n", 2)[0]
	return line
}

// EnsureKeyFile verifies the SSH private key exists and restricts its
// permissions to owner read/write. A missing key fails fast: every remote
// call depends on it.
func EnsureKeyFile(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("SSH private key not found at %s", path)
		}
		return fmt.Errorf("failed to stat SSH private key %s: %w", path, err)
	}
	if info.IsDir() {
		return fmt.Errorf("SSH private key path %s is a directory", path)
	}
	if info.Mode().Perm() != 0o600 {
		if err := os.Chmod(path, 0o600); err != nil {
			return fmt.Errorf("failed to restrict permissions on %s: %w", path, err)
		}
	}
	return nil
}
