// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package docker checks that the container runtime can start the MCP
// server before a session launches it.
package docker

import (
	"context"
	"fmt"
	"io"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/client"
	"github.com/docker/docker/errdefs"
	"go.uber.org/zap"
)

// PreflightConfig configures Preflight.
type PreflightConfig struct {
	// Host is the daemon address. Empty means detect (DOCKER_HOST, then
	// SocketPaths, then the default socket).
	Host        string
	SocketPaths []string

	// Image is the MCP server image. Empty skips the image checks.
	Image string

	// Pull fetches Image when it is not present locally.
	Pull bool

	Logger *zap.Logger
}

// PreflightReport describes what Preflight found.
type PreflightReport struct {
	Host       string
	APIVersion string
	OSType     string
	ImageID    string
	Pulled     bool
}

// daemonAPI is the part of *client.Client Preflight uses.
type daemonAPI interface {
	Ping(ctx context.Context) (types.Ping, error)
	ImageInspectWithRaw(ctx context.Context, imageID string) (types.ImageInspect, []byte, error)
	ImagePull(ctx context.Context, refStr string, options image.PullOptions) (io.ReadCloser, error)
}

// Preflight pings the daemon and makes sure the image is available.
func Preflight(ctx context.Context, cfg PreflightConfig) (*PreflightReport, error) {
	if cfg.Host == "" {
		cfg.Host = detectDockerHost(cfg.SocketPaths)
	}

	dockerClient, err := client.NewClientWithOpts(
		client.WithHost(cfg.Host),
		client.WithAPIVersionNegotiation(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create Docker client: %w", err)
	}
	defer dockerClient.Close()

	return preflight(ctx, dockerClient, cfg)
}

func preflight(ctx context.Context, api daemonAPI, cfg PreflightConfig) (*PreflightReport, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	logger.Debug("pinging Docker daemon", zap.String("docker_host", cfg.Host))
	ping, err := api.Ping(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to ping Docker daemon at %s: %w", cfg.Host, err)
	}

	report := &PreflightReport{
		Host:       cfg.Host,
		APIVersion: ping.APIVersion,
		OSType:     ping.OSType,
	}
	if cfg.Image == "" {
		return report, nil
	}

	inspect, _, err := api.ImageInspectWithRaw(ctx, cfg.Image)
	if err == nil {
		report.ImageID = inspect.ID
		logger.Debug("image present", zap.String("image", cfg.Image), zap.String("id", inspect.ID))
		return report, nil
	}
	if !errdefs.IsNotFound(err) {
		return nil, fmt.Errorf("failed to inspect image %s: %w", cfg.Image, err)
	}
	if !cfg.Pull {
		return nil, fmt.Errorf("image %s not present locally (run docker pull or enable mcp.pull): %w", cfg.Image, err)
	}

	logger.Info("pulling image", zap.String("image", cfg.Image))
	stream, err := api.ImagePull(ctx, cfg.Image, image.PullOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to pull image %s: %w", cfg.Image, err)
	}
	// The pull completes when the progress stream is drained.
	_, copyErr := io.Copy(io.Discard, stream)
	closeErr := stream.Close()
	if copyErr != nil {
		return nil, fmt.Errorf("failed to pull image %s: %w", cfg.Image, copyErr)
	}
	if closeErr != nil {
		logger.Debug("closing pull stream", zap.Error(closeErr))
	}

	inspect, _, err = api.ImageInspectWithRaw(ctx, cfg.Image)
	if err != nil {
		return nil, fmt.Errorf("image %s missing after pull: %w", cfg.Image, err)
	}
	report.ImageID = inspect.ID
	report.Pulled = true
	return report, nil
}
