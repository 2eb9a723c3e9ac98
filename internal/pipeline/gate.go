// Gamebot - Survivor Dataset Medallion Warehouse
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gamebot

package pipeline

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/tomtom215/gamebot/internal/config"
)

// GateError means the environment may not be loaded from the current branch.
type GateError struct {
	Environment string
	Branch      string
	Reason      string
}

func (e *GateError) Error() string {
	if e.Branch == "" {
		return fmt.Sprintf("%s load refused: %s", e.Environment, e.Reason)
	}
	return fmt.Sprintf("%s load refused on branch %q: %s", e.Environment, e.Branch, e.Reason)
}

// GitInfo identifies the checkout a load runs from.
type GitInfo struct {
	Branch string
	Commit string
}

// CheckBranch enforces the production branch policy. Non-prod environments
// and container deployments always pass. Patterns ending in "/*" match any
// branch with that prefix.
func CheckBranch(environment, branch string, allowed []string, container bool) error {
	if environment != config.EnvProd || container {
		return nil
	}
	if branch == "" {
		return &GateError{Environment: environment, Reason: "git branch could not be detected"}
	}
	if branchAllowed(branch, allowed) {
		return nil
	}
	return &GateError{
		Environment: environment,
		Branch:      branch,
		Reason:      fmt.Sprintf("allowed branches are %s", strings.Join(allowed, ", ")),
	}
}

func branchAllowed(branch string, allowed []string) bool {
	for _, pattern := range allowed {
		if prefix, ok := strings.CutSuffix(pattern, "/*"); ok {
			if strings.HasPrefix(branch, prefix+"/") {
				return true
			}
			continue
		}
		if branch == pattern {
			return true
		}
	}
	return false
}

// DetectGit resolves the branch and commit. Configured values win; the
// local checkout is asked only for what is missing, and never inside a
// container deployment.
func DetectGit(ctx context.Context, cfg *config.PipelineConfig) GitInfo {
	info := GitInfo{Branch: cfg.GitBranch, Commit: cfg.GitCommit}
	if cfg.ContainerDeployment {
		return info
	}
	if info.Branch == "" {
		info.Branch = git(ctx, "rev-parse", "--abbrev-ref", "HEAD")
		if info.Branch == "HEAD" {
			// Detached checkout.
			info.Branch = ""
		}
	}
	if info.Commit == "" {
		info.Commit = git(ctx, "rev-parse", "HEAD")
	}
	return info
}

func git(ctx context.Context, args ...string) string {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	out, err := exec.CommandContext(ctx, "git", args...).Output()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(out))
}
