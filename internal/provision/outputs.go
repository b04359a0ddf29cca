package provision

import (
	"context"
	"encoding/json"
	"fmt"
)

// Output names published by the resource specification.
const (
	outputControl  = "control_node_address"
	outputFrontend = "frontend_address"
	outputBackend  = "backend_address"
)

// Outputs are the named addresses the resource specification publishes.
// They are re-read from the provisioner on every run rather than cached.
type Outputs struct {
	ControlAddr  string
	FrontendAddr string
	BackendAddr  string
}

// outputValue is the wrapper terraform emits per output in -json mode.
type outputValue struct {
	Value     json.RawMessage `json:"value"`
	Sensitive bool            `json:"sensitive"`
}

// Outputs reads the published addresses via `terraform output -json` and
// returns an explicit error for any missing or non-string output.
func (p *Provisioner) Outputs(ctx context.Context) (Outputs, error) {
	stdout, stderr, err := p.runner.Run(ctx, p.workDir, "output", "-json")
	if err != nil {
		return Outputs{}, &Error{Op: "output", Output: stderr, Err: err}
	}
	return parseOutputs([]byte(stdout))
}

func parseOutputs(data []byte) (Outputs, error) {
	var raw map[string]outputValue
	if err := json.Unmarshal(data, &raw); err != nil {
		return Outputs{}, fmt.Errorf("failed to parse terraform outputs: %w", err)
	}

	var out Outputs
	for _, spec := range []struct {
		name string
		dst  *string
	}{
		{outputControl, &out.ControlAddr},
		{outputFrontend, &out.FrontendAddr},
		{outputBackend, &out.BackendAddr},
	} {
		entry, ok := raw[spec.name]
		if !ok {
			return Outputs{}, fmt.Errorf("provisioner output %q is missing; was the fleet provisioned?", spec.name)
		}
		var value string
		if err := json.Unmarshal(entry.Value, &value); err != nil {
			return Outputs{}, fmt.Errorf("provisioner output %q is not a string", spec.name)
		}
		if value == "" {
			return Outputs{}, fmt.Errorf("provisioner output %q is empty", spec.name)
		}
		*spec.dst = value
	}
	return out, nil
}
