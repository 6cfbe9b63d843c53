package sandboxsvc

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"sandboxd/internal/runtime"
)

const codeFilePath = "/tmp/code_to_run.py"

// ExecuteCode writes source into the container via a here-doc, runs it,
// then discovers newly produced files in /app/results by a ctime
// watermark.
func (m *Manager) ExecuteCode(ctx context.Context, sandboxID, source string) ExecutionResult {
	lock := m.sandboxLock(sandboxID)
	lock.Lock()
	defer lock.Unlock()

	r, err := m.resolveRunning(ctx, sandboxID)
	if err != nil {
		return errorExecutionResult(err)
	}

	startTS := time.Now().Unix()

	writeScript := "cat <<'EOL' > " + codeFilePath + "\n" + source + "\nEOL\n"
	writeRes, err := m.rt.Exec(ctx, r.record.ContainerID, runtime.ExecOptions{
		Cmd: []string{"sh", "-c", writeScript},
	})
	if err != nil {
		return errorExecutionResult(err)
	}
	if writeRes.ExitCode != 0 {
		return ExecutionResult{
			Stdout:    "",
			Stderr:    writeRes.Stderr + writeRes.Stdout,
			ExitCode:  writeRes.ExitCode,
			Files:     []string{},
			FileLinks: []string{},
			Error:     "prepare failed",
		}
	}

	runRes, err := m.rt.Exec(ctx, r.record.ContainerID, runtime.ExecOptions{
		Cmd:     []string{"python", codeFilePath},
		WorkDir: resultsWorkDir,
	})
	if err != nil {
		return errorExecutionResult(err)
	}

	_, _ = m.rt.Exec(ctx, r.record.ContainerID, runtime.ExecOptions{
		Cmd: []string{"rm", "-f", codeFilePath},
	})

	files := m.discoverNewFiles(ctx, r.record.ContainerID, startTS)
	links := m.fileLinks(ctx, sandboxID, r.record.UserID, files)

	return ExecutionResult{
		Stdout:    runRes.Stdout,
		Stderr:    runRes.Stderr,
		ExitCode:  runRes.ExitCode,
		Files:     files,
		FileLinks: links,
	}
}

func errorExecutionResult(err error) ExecutionResult {
	return ExecutionResult{
		Stdout:    "",
		Stderr:    err.Error(),
		ExitCode:  1,
		Files:     []string{},
		FileLinks: []string{},
		Error:     err.Error(),
	}
}

// discoverNewFiles lists regular files directly under /app/results whose
// ctime is at or after startTS, inclusive to one-second resolution.
func (m *Manager) discoverNewFiles(ctx context.Context, containerID string, startTS int64) []string {
	res, err := m.rt.Exec(ctx, containerID, runtime.ExecOptions{
		Cmd: []string{"sh", "-c", "find " + resultsWorkDir + " -maxdepth 1 -type f -exec stat -c '%n|%Z' {} +"},
	})
	if err != nil || res.ExitCode != 0 {
		return []string{}
	}
	var out []string
	for _, line := range strings.Split(strings.TrimSpace(res.Stdout), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		idx := strings.LastIndex(line, "|")
		if idx < 0 {
			continue
		}
		name := line[:idx]
		ctimeStr := line[idx+1:]
		ctime, err := strconv.ParseInt(strings.TrimSpace(ctimeStr), 10, 64)
		if err != nil {
			continue
		}
		if ctime >= startTS {
			out = append(out, name)
		}
	}
	if out == nil {
		out = []string{}
	}
	return out
}

// fileLinks synthesizes download URLs for newly produced files, appending
// the owning user's API key when one is on record and the config opts in.
func (m *Manager) fileLinks(ctx context.Context, sandboxID, ownerUserID string, files []string) []string {
	links := make([]string, 0, len(files))
	if m.opts.BaseURL == "" {
		return links
	}
	apiKey := ""
	if m.opts.AppendAPIKeyToURL {
		if u, err := m.db.GetUserByID(ctx, ownerUserID); err == nil {
			apiKey = u.APIKey
		}
	}
	for _, f := range files {
		url := fmt.Sprintf("%s/sandbox/file?sandbox_id=%s&file_path=%s", m.opts.BaseURL, sandboxID, f)
		if apiKey != "" {
			url += "&api_key=" + apiKey
		}
		links = append(links, url)
	}
	return links
}

// ExecuteCommand runs a shell command in the sandbox with demultiplexed
// output capture.
func (m *Manager) ExecuteCommand(ctx context.Context, sandboxID, command string) CommandResult {
	r, err := m.resolveRunning(ctx, sandboxID)
	if err != nil {
		return CommandResult{Stdout: "", Stderr: err.Error(), ExitCode: -1}
	}
	res, err := m.rt.Exec(ctx, r.record.ContainerID, runtime.ExecOptions{
		Cmd:     []string{"sh", "-c", command},
		WorkDir: resultsWorkDir,
	})
	if err != nil {
		return CommandResult{Stdout: "", Stderr: err.Error(), ExitCode: -1}
	}
	return CommandResult{Stdout: res.Stdout, Stderr: res.Stderr, ExitCode: res.ExitCode}
}
