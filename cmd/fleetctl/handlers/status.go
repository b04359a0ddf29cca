package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/todofleet/fleetctl/internal/creds"
	"github.com/todofleet/fleetctl/internal/health"
)

// watchInterval is the re-probe cadence in watch mode.
const watchInterval = 5 * time.Second

// serviceStatus is one probed service in the JSON report.
type serviceStatus struct {
	Node      string    `json:"node"`
	Address   string    `json:"address"`
	Status    string    `json:"status"`
	Detail    string    `json:"detail,omitempty"`
	CheckedAt time.Time `json:"checkedAt"`
}

// Status probes every deployed service and reports.
//
// The stage always runs to completion: an unreachable service is reported
// as down rather than aborting the pass, and the command exits zero as long
// as the report was produced. With watch set it re-probes every few seconds
// until interrupted.
func Status(ctx context.Context, configPath string, watch, jsonOutput bool) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	orch, err := newOrchestrator(ctx, cfg, creds.PromptSource{})
	if err != nil {
		return err
	}

	if watch {
		return watchStatus(ctx, orch, jsonOutput)
	}
	return showStatus(ctx, orch, jsonOutput)
}

// showStatus runs one verification pass.
func showStatus(ctx context.Context, orch stageRunner, jsonOutput bool) error {
	reports, err := orch.VerifyStatus(ctx)
	if err != nil {
		return err
	}
	if jsonOutput {
		return printStatusJSON(reports)
	}
	return nil
}

// watchStatus re-probes continuously until the context is cancelled.
func watchStatus(ctx context.Context, orch stageRunner, jsonOutput bool) error {
	ticker := time.NewTicker(watchInterval)
	defer ticker.Stop()

	if err := showStatus(ctx, orch, jsonOutput); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if !jsonOutput {
				fmt.Print("\033[H\033[2J")
			}
			if err := showStatus(ctx, orch, jsonOutput); err != nil {
				fmt.Printf("Error: %v\n", err)
			}
		}
	}
}

// printStatusJSON emits the health report as a JSON array.
func printStatusJSON(reports []health.Report) error {
	statuses := make([]serviceStatus, 0, len(reports))
	for _, r := range reports {
		statuses = append(statuses, serviceStatus{
			Node:      r.Node.Name(),
			Address:   r.Node.Address,
			Status:    string(r.Status),
			Detail:    r.Detail,
			CheckedAt: r.CheckedAt,
		})
	}

	data, err := json.MarshalIndent(statuses, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal status report: %w", err)
	}
	fmt.Println(string(data))
	return nil
}
