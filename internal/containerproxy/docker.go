package containerproxy

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
)

// dockerSpawner runs the agent inside a short-lived Docker container,
// bind-mounting the workspace and session directories and passing
// credentials as plain environment variables (Docker's -e equivalent
// is reliable, unlike Apple's container runtime).
//
// There is no in-pack example of docker/docker client usage to ground
// this on — it rides along as a go.mod dependency of nevindra-oasis
// without ever being imported there (confirmed: no
// "github.com/docker/docker" import exists in that repo's source).
// This file follows the SDK's own documented client/container API
// instead of a pack-internal usage pattern.
type dockerSpawner struct {
	cli *client.Client
}

func newDockerSpawner() (*dockerSpawner, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("containerproxy: docker client unavailable: %w", err)
	}
	return &dockerSpawner{cli: cli}, nil
}

func (d *dockerSpawner) spawn(ctx context.Context, cfg Config, requestLine string) (string, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	env := make([]string, 0, len(cfg.Env))
	for k, v := range cfg.Env {
		env = append(env, k+"="+v)
	}

	var binds []string
	if cfg.WorkspaceDir != "" {
		binds = append(binds, cfg.WorkspaceDir+":/workspace")
	}
	if cfg.SessionDir != "" {
		binds = append(binds, cfg.SessionDir+":/session")
	}

	created, err := d.cli.ContainerCreate(ctx, &container.Config{
		Image:        cfg.Image,
		Env:          env,
		AttachStdin:  true,
		AttachStdout: true,
		AttachStderr: true,
		OpenStdin:    true,
		StdinOnce:    true,
	}, &container.HostConfig{
		Binds:      binds,
		AutoRemove: true,
	}, nil, nil, "")
	if err != nil {
		return "", fmt.Errorf("containerproxy: create container: %w", err)
	}

	attach, err := d.cli.ContainerAttach(ctx, created.ID, container.AttachOptions{
		Stream: true,
		Stdin:  true,
		Stdout: true,
		Stderr: true,
	})
	if err != nil {
		return "", fmt.Errorf("containerproxy: attach container: %w", err)
	}
	defer attach.Close()

	if err := d.cli.ContainerStart(ctx, created.ID, container.StartOptions{}); err != nil {
		return "", fmt.Errorf("containerproxy: start container: %w", err)
	}

	if _, err := io.WriteString(attach.Conn, requestLine); err != nil {
		return "", fmt.Errorf("containerproxy: write request: %w", err)
	}
	attach.CloseWrite()

	var stdout bytes.Buffer
	copyDone := make(chan error, 1)
	go func() {
		_, err := stdcopy.StdCopy(&stdout, io.Discard, attach.Reader)
		copyDone <- err
	}()

	waitCh, waitErrCh := d.cli.ContainerWait(ctx, created.ID, container.WaitConditionNotRunning)
	select {
	case err := <-waitErrCh:
		return "", fmt.Errorf("containerproxy: wait for container: %w", err)
	case <-waitCh:
	case <-ctx.Done():
		return "", ctx.Err()
	}
	<-copyDone

	return stdout.String(), nil
}
