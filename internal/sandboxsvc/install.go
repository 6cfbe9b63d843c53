package sandboxsvc

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"sandboxd/internal/runtime"
)

const installPollWindow = 5 * time.Second
const installPollInterval = 100 * time.Millisecond

func installKey(sandboxID, pkg string) string {
	return sandboxID + "|" + pkg
}

// Install dedupes concurrent installs for the same key, spawns a
// background worker, then polls for up to 5s so already-cached packages
// appear to install synchronously.
func (m *Manager) Install(ctx context.Context, sandboxID, pkg string) InstallStatus {
	if _, err := m.resolve(ctx, sandboxID); err != nil {
		return InstallStatus{Package: pkg, State: InstallStateError, Message: err.Error(), Complete: true}
	}

	key := installKey(sandboxID, pkg)

	m.mu.Lock()
	if existing, ok := m.installTable[key]; ok && existing.State == InstallStateInstalling && !existing.Complete {
		m.mu.Unlock()
		return InstallStatus{Package: pkg, State: InstallStateInstalling, Message: "already in progress"}
	}
	started := time.Now()
	m.installTable[key] = &InstallStatus{
		Package:   pkg,
		State:     InstallStateInstalling,
		StartedAt: started.Format(time.RFC3339),
	}
	m.mu.Unlock()

	go m.runInstall(context.Background(), sandboxID, pkg, key)

	if final, ok := m.pollInstall(key, installPollWindow); ok {
		return final
	}
	return InstallStatus{Package: pkg, State: InstallStateInstalling, Message: "in progress; poll check_status"}
}

func (m *Manager) runInstall(ctx context.Context, sandboxID, pkg, key string) {
	r, err := m.resolveRunning(ctx, sandboxID)
	if err != nil {
		m.finishInstall(key, InstallStateError, "", err.Error())
		return
	}
	cmd := []string{"uv", "pip", "install"}
	if m.opts.InstallIndexURL != "" {
		cmd = append(cmd, "--index-url", m.opts.InstallIndexURL)
	}
	cmd = append(cmd, pkg)

	res, err := m.rt.Exec(ctx, r.record.ContainerID, runtime.ExecOptions{Cmd: cmd, WorkDir: resultsWorkDir})
	if err != nil {
		m.finishInstall(key, InstallStateError, "", err.Error())
		return
	}
	if res.ExitCode != 0 {
		m.finishInstall(key, InstallStateFailed, res.Stdout, res.Stderr)
		return
	}
	m.finishInstall(key, InstallStateSuccess, res.Stdout, res.Stderr)
}

func (m *Manager) finishInstall(key string, state InstallState, message, stderr string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.installTable[key]
	if !ok {
		entry = &InstallStatus{}
		m.installTable[key] = entry
	}
	entry.State = state
	entry.Message = message
	entry.Stderr = stderr
	entry.Complete = true
	entry.EndedAt = time.Now().Format(time.RFC3339)
}

// pollInstall polls the table for up to window, sleeping installPollInterval
// between checks: a bounded wait on a shared table rather than a condition
// variable, so semantics are identical whether the worker runs in-process
// or not.
func (m *Manager) pollInstall(key string, window time.Duration) (InstallStatus, bool) {
	deadline := time.Now().Add(window)
	for {
		m.mu.Lock()
		entry, ok := m.installTable[key]
		var snapshot InstallStatus
		if ok {
			snapshot = *entry
		}
		m.mu.Unlock()
		if ok && snapshot.Complete {
			return snapshot, true
		}
		if time.Now().After(deadline) {
			return InstallStatus{}, false
		}
		time.Sleep(installPollInterval)
	}
}

// CheckStatus reports the state of an install, probing the container
// directly when no table entry exists.
func (m *Manager) CheckStatus(ctx context.Context, sandboxID, pkg string) InstallStatus {
	key := installKey(sandboxID, pkg)

	m.mu.Lock()
	entry, ok := m.installTable[key]
	var snapshot InstallStatus
	if ok {
		snapshot = *entry
	}
	m.mu.Unlock()

	if ok && snapshot.Complete {
		return snapshot
	}
	if ok {
		if final, done := m.pollInstall(key, installPollWindow); done {
			return final
		}
		m.mu.Lock()
		if entry, ok = m.installTable[key]; ok {
			snapshot = *entry
		}
		m.mu.Unlock()
		if started, err := time.Parse(time.RFC3339, snapshot.StartedAt); err == nil {
			snapshot.ElapsedSeconds = time.Since(started).Seconds()
		}
		return snapshot
	}

	r, err := m.resolveRunning(ctx, sandboxID)
	if err != nil {
		return InstallStatus{Package: pkg, State: InstallStateError, Message: err.Error(), Complete: true}
	}
	res, err := m.rt.Exec(ctx, r.record.ContainerID, runtime.ExecOptions{
		Cmd: []string{"sh", "-c", "uv pip list | grep -i " + shellQuote(pkg)},
	})
	if err == nil && res.ExitCode == 0 && strings.TrimSpace(res.Stdout) != "" {
		return InstallStatus{Package: pkg, State: InstallStateSuccess, AlreadyInstalled: true, Complete: true}
	}
	return InstallStatus{Package: pkg, State: InstallStateNotFound, Complete: true}
}

// ListInstalled runs `uv pip list --format=json` and robustly extracts
// the first JSON array from output that may carry startup-banner noise.
func (m *Manager) ListInstalled(ctx context.Context, sandboxID string) ([]string, error) {
	r, err := m.resolveRunning(ctx, sandboxID)
	if err != nil {
		return nil, err
	}
	res, err := m.rt.Exec(ctx, r.record.ContainerID, runtime.ExecOptions{
		Cmd: []string{"uv", "pip", "list", "--format=json"},
	})
	if err != nil {
		return nil, err
	}
	jsonStart := strings.Index(res.Stdout, "[")
	jsonEnd := strings.LastIndex(res.Stdout, "]")
	if jsonStart < 0 || jsonEnd < jsonStart {
		return []string{}, nil
	}
	var entries []struct {
		Name    string `json:"name"`
		Version string `json:"version"`
	}
	if err := json.Unmarshal([]byte(res.Stdout[jsonStart:jsonEnd+1]), &entries); err != nil {
		return []string{}, nil
	}
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Name)
	}
	return out, nil
}

func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
