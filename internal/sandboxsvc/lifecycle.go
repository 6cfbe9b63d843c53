package sandboxsvc

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"sandboxd/internal/runtime"
	"sandboxd/internal/store"
)

const (
	sandboxLabelKey   = "python-sandbox"
	sandboxLabelValue = "true"
	resultsWorkDir    = "/app/results"
	containerMemBytes = 1 << 30 // 1 GiB
)

// Create makes a new sandbox: quota check, container create+start, then a
// durable registry record binding sandbox_id -> container_id.
func (m *Manager) Create(ctx context.Context, userID, name string) (SandboxView, error) {
	n, err := m.db.CountByUser(ctx, userID)
	if err != nil {
		return SandboxView{}, err
	}
	if n >= m.opts.UserSandboxLimit {
		return SandboxView{}, &quotaExceededError{limit: m.opts.UserSandboxLimit}
	}

	containerName, err := newContainerName()
	if err != nil {
		return SandboxView{}, err
	}
	spec := runtime.ContainerSpec{
		Name:        containerName,
		Image:       m.opts.Image,
		Labels:      map[string]string{sandboxLabelKey: sandboxLabelValue},
		WorkDir:     resultsWorkDir,
		MemLimit:    containerMemBytes,
		MemSwap:     containerMemBytes,
		Privileged:  false,
		CapDrop:     []string{"ALL"},
		SecurityOpt: []string{"no-new-privileges"},
		NetworkMode: "bridge",
	}

	containerID, err := m.rt.Create(ctx, spec)
	if err != nil {
		return SandboxView{}, fmt.Errorf("create container: %w", err)
	}
	if err := m.rt.Start(ctx, containerID); err != nil {
		_ = m.rt.Remove(ctx, containerID, true)
		return SandboxView{}, fmt.Errorf("start container: %w", err)
	}

	rec, err := m.db.CreateSandbox(ctx, userID, name, containerID)
	if err != nil {
		_ = m.rt.Remove(ctx, containerID, true)
		return SandboxView{}, fmt.Errorf("persist sandbox: %w", err)
	}

	return toView(rec), nil
}

func newContainerName() (string, error) {
	buf := make([]byte, 4)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return "python-sandbox-" + hex.EncodeToString(buf), nil
}

func toView(rec store.Sandbox) SandboxView {
	return SandboxView{
		SandboxID: rec.ID,
		UserID:    rec.UserID,
		Name:      rec.Name,
		CreatedAt: rec.CreatedAt.Format(time.RFC3339),
	}
}

// IsOwner is the ownership check every tool dispatch except
// list_sandboxes/create_sandbox must pass.
func (m *Manager) IsOwner(ctx context.Context, userID, sandboxID string) (bool, error) {
	return m.db.IsOwner(ctx, userID, sandboxID)
}

// resolved is the internal handle returned by resolve/resolveRunning: a
// registry record plus its live container info.
type resolved struct {
	record    store.Sandbox
	container *runtime.ContainerInfo
}

// resolve looks up the registry record and fetches the live container,
// updating the last-used clock.
func (m *Manager) resolve(ctx context.Context, sandboxID string) (resolved, error) {
	rec, err := m.db.GetSandbox(ctx, sandboxID)
	if err != nil {
		if err == store.ErrNotFound {
			return resolved{}, ErrSandboxNotFound
		}
		return resolved{}, err
	}
	info, err := m.rt.Get(ctx, rec.ContainerID)
	if err != nil {
		if runtime.IsNotFound(err) {
			return resolved{}, ErrContainerGone
		}
		return resolved{}, err
	}
	m.touch(sandboxID)
	return resolved{record: rec, container: info}, nil
}

// resolveRunning is resolve plus "ensure running": if the container isn't
// running, it logs recent output (when exited) for diagnostics, then
// starts it. No implicit cleanup on scope exit; the container persists
// across calls.
func (m *Manager) resolveRunning(ctx context.Context, sandboxID string) (resolved, error) {
	r, err := m.resolve(ctx, sandboxID)
	if err != nil {
		return resolved{}, err
	}
	if r.container.State == "running" {
		return r, nil
	}
	if r.container.State == "exited" {
		if dr, ok := m.rt.(interface {
			Logs(ctx context.Context, id string, tail int) (string, error)
		}); ok {
			if logs, logErr := dr.Logs(ctx, r.record.ContainerID, 50); logErr == nil {
				m.log.Printf("sandbox %s container exited, last output:\n%s", sandboxID, logs)
			}
		}
	}
	if err := m.rt.Start(ctx, r.record.ContainerID); err != nil {
		if runtime.IsNotFound(err) {
			return resolved{}, ErrContainerGone
		}
		return resolved{}, err
	}
	info, err := m.rt.Get(ctx, r.record.ContainerID)
	if err != nil {
		if runtime.IsNotFound(err) {
			return resolved{}, ErrContainerGone
		}
		return resolved{}, err
	}
	r.container = info
	return r, nil
}

// Delete tears down a sandbox: a permissive id/label/name match against
// all containers, stop+force-remove each, then always drop the registry
// record and in-memory state, even if container removal partially failed.
func (m *Manager) Delete(ctx context.Context, sandboxID string) (DeleteResult, error) {
	rec, err := m.db.GetSandbox(ctx, sandboxID)
	if err != nil {
		if err == store.ErrNotFound {
			return DeleteResult{}, ErrSandboxNotFound
		}
		return DeleteResult{}, err
	}

	all, err := m.rt.List(ctx, nil)
	if err != nil {
		m.log.Printf("delete %s: list containers: %v", sandboxID, err)
		all = nil
	}

	removed := 0
	for _, c := range all {
		if !matchesDeleteTarget(c, rec) {
			continue
		}
		if err := m.rt.Stop(ctx, c.ID, 0); err != nil {
			m.log.Printf("delete %s: stop %s: %v", sandboxID, c.ID, err)
		}
		if err := m.rt.Remove(ctx, c.ID, true); err != nil {
			m.log.Printf("delete %s: remove %s: %v", sandboxID, c.ID, err)
			continue
		}
		removed++
	}

	ok, err := m.db.DeleteSandbox(ctx, sandboxID)
	if err != nil {
		return DeleteResult{}, err
	}
	m.dropSandboxState(sandboxID)

	return DeleteResult{
		Success:      ok,
		Message:      fmt.Sprintf("removed %d container(s)", removed),
		RemovedCount: removed,
	}, nil
}

// matchesDeleteTarget matches by exact container id or id prefix first,
// and only then by name substring gated on the sandbox label, so an
// unlabelled container with a colliding name is never touched.
func matchesDeleteTarget(c runtime.ContainerInfo, rec store.Sandbox) bool {
	if c.ID == rec.ContainerID || strings.HasPrefix(c.ID, rec.ContainerID) || strings.HasPrefix(rec.ContainerID, c.ID) {
		return true
	}
	if c.Labels[sandboxLabelKey] == sandboxLabelValue && strings.Contains(c.Name, rec.ID) {
		return true
	}
	return false
}

// List returns the user's records augmented with a best-effort
// installed-package snapshot.
func (m *Manager) List(ctx context.Context, userID string) ([]SandboxView, map[string][]string, error) {
	recs, err := m.db.ListByUser(ctx, userID)
	if err != nil {
		return nil, nil, err
	}
	views := make([]SandboxView, 0, len(recs))
	installed := make(map[string][]string, len(recs))
	for _, rec := range recs {
		views = append(views, toView(rec))
		pkgs, err := m.ListInstalled(ctx, rec.ID)
		if err != nil {
			pkgs = nil // snapshot is best-effort
		}
		installed[rec.ID] = pkgs
	}
	return views, installed, nil
}
