package runtime

import (
	"archive/tar"
	"bytes"
	"context"
	"errors"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/archive"
	"github.com/docker/docker/pkg/stdcopy"
)

// DockerRuntime implements Runtime over the moby/moby client. It is safe
// for concurrent use: the underlying *client.Client is.
type DockerRuntime struct {
	api *client.Client
}

// NewDockerRuntime dials the local docker daemon via the standard
// DOCKER_HOST/DOCKER_CERT_PATH environment, negotiating the API version.
func NewDockerRuntime() (*DockerRuntime, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, runtimeErr("new-client", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := cli.Ping(ctx); err != nil {
		_ = cli.Close()
		return nil, runtimeErr("ping", err)
	}
	return &DockerRuntime{api: cli}, nil
}

func (d *DockerRuntime) Close() error {
	if d == nil || d.api == nil {
		return nil
	}
	return d.api.Close()
}

func (d *DockerRuntime) Get(ctx context.Context, id string) (*ContainerInfo, error) {
	info, err := d.api.ContainerInspect(ctx, id)
	if err != nil {
		if client.IsErrNotFound(err) {
			return nil, notFound("get", err)
		}
		return nil, runtimeErr("get", err)
	}
	state := ""
	if info.State != nil {
		state = info.State.Status
	}
	return &ContainerInfo{
		ID:     info.ID,
		Name:   strings.TrimPrefix(info.Name, "/"),
		State:  state,
		Labels: info.Config.Labels,
	}, nil
}

func (d *DockerRuntime) Create(ctx context.Context, spec ContainerSpec) (string, error) {
	memSwap := spec.MemSwap
	if memSwap == 0 && spec.MemLimit > 0 {
		memSwap = spec.MemLimit // swap disabled: memswap == mem means no extra swap
	}
	cfg := &container.Config{
		Image:      spec.Image,
		Labels:     spec.Labels,
		WorkingDir: spec.WorkDir,
		Env:        spec.Env,
		Tty:        false,
		Cmd:        []string{"sleep", "infinity"},
	}
	hostCfg := &container.HostConfig{
		Resources: container.Resources{
			Memory:     spec.MemLimit,
			MemorySwap: memSwap,
		},
		NetworkMode: container.NetworkMode(orDefault(spec.NetworkMode, "bridge")),
		Privileged:  spec.Privileged,
		CapDrop:     spec.CapDrop,
		SecurityOpt: spec.SecurityOpt,
	}
	resp, err := d.api.ContainerCreate(ctx, cfg, hostCfg, nil, nil, spec.Name)
	if err != nil {
		return "", runtimeErr("create", err)
	}
	return resp.ID, nil
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}

func (d *DockerRuntime) Start(ctx context.Context, id string) error {
	if err := d.api.ContainerStart(ctx, id, container.StartOptions{}); err != nil {
		if client.IsErrNotFound(err) {
			return notFound("start", err)
		}
		return runtimeErr("start", err)
	}
	return nil
}

func (d *DockerRuntime) Stop(ctx context.Context, id string, grace time.Duration) error {
	seconds := int(grace.Seconds())
	if err := d.api.ContainerStop(ctx, id, container.StopOptions{Timeout: &seconds}); err != nil {
		if client.IsErrNotFound(err) {
			return notFound("stop", err)
		}
		return runtimeErr("stop", err)
	}
	return nil
}

func (d *DockerRuntime) Remove(ctx context.Context, id string, force bool) error {
	err := d.api.ContainerRemove(ctx, id, container.RemoveOptions{Force: force, RemoveVolumes: true})
	if err != nil {
		if client.IsErrNotFound(err) {
			return notFound("remove", err)
		}
		return runtimeErr("remove", err)
	}
	return nil
}

// Exec runs a non-interactive, non-TTY command with demultiplexed output
// capture.
func (d *DockerRuntime) Exec(ctx context.Context, id string, opts ExecOptions) (ExecResult, error) {
	if len(opts.Cmd) == 0 {
		return ExecResult{}, runtimeErr("exec", errors.New("command required"))
	}
	execResp, err := d.api.ContainerExecCreate(ctx, id, types.ExecConfig{
		AttachStdout: true,
		AttachStderr: true,
		Cmd:          opts.Cmd,
		Env:          opts.Env,
		WorkingDir:   opts.WorkDir,
		Privileged:   opts.Privileged,
		Tty:          false,
	})
	if err != nil {
		if client.IsErrNotFound(err) {
			return ExecResult{}, notFound("exec-create", err)
		}
		return ExecResult{}, runtimeErr("exec-create", err)
	}

	attach, err := d.api.ContainerExecAttach(ctx, execResp.ID, types.ExecStartCheck{Tty: false})
	if err != nil {
		return ExecResult{}, runtimeErr("exec-attach", err)
	}
	defer attach.Close()

	var stdout, stderr bytes.Buffer
	if _, err := stdcopy.StdCopy(&stdout, &stderr, attach.Reader); err != nil && err != io.EOF {
		return ExecResult{}, runtimeErr("exec-read", err)
	}

	inspect, err := d.api.ContainerExecInspect(ctx, execResp.ID)
	if err != nil {
		return ExecResult{}, runtimeErr("exec-inspect", err)
	}
	return ExecResult{
		ExitCode: inspect.ExitCode,
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
	}, nil
}

func (d *DockerRuntime) PutArchive(ctx context.Context, id, destDir string, tarBytes []byte) error {
	err := d.api.CopyToContainer(ctx, id, destDir, bytes.NewReader(tarBytes), types.CopyToContainerOptions{
		AllowOverwriteDirWithFile: true,
	})
	if err != nil {
		if client.IsErrNotFound(err) {
			return notFound("put-archive", err)
		}
		return runtimeErr("put-archive", err)
	}
	return nil
}

func (d *DockerRuntime) GetArchive(ctx context.Context, id, path string) (io.ReadCloser, error) {
	rc, _, err := d.api.CopyFromContainer(ctx, id, path)
	if err != nil {
		if client.IsErrNotFound(err) {
			return nil, notFound("get-archive", err)
		}
		return nil, runtimeErr("get-archive", err)
	}
	return rc, nil
}

func (d *DockerRuntime) List(ctx context.Context, labels map[string]string) ([]ContainerInfo, error) {
	args := filters.NewArgs()
	for k, v := range labels {
		if k == "" {
			continue
		}
		if v == "" {
			args.Add("label", k)
		} else {
			args.Add("label", k+"="+v)
		}
	}
	list, err := d.api.ContainerList(ctx, container.ListOptions{All: true, Filters: args})
	if err != nil {
		return nil, runtimeErr("list", err)
	}
	out := make([]ContainerInfo, 0, len(list))
	for _, c := range list {
		name := ""
		if len(c.Names) > 0 {
			name = strings.TrimPrefix(c.Names[0], "/")
		}
		out = append(out, ContainerInfo{
			ID:     c.ID,
			Name:   name,
			State:  c.State,
			Labels: c.Labels,
		})
	}
	return out, nil
}

// Logs returns the last `tail` lines of combined container output, used
// for exited-container diagnostics before a lazy restart.
func (d *DockerRuntime) Logs(ctx context.Context, id string, tail int) (string, error) {
	opts := container.LogsOptions{ShowStdout: true, ShowStderr: true}
	if tail > 0 {
		opts.Tail = strconv.Itoa(tail)
	}
	reader, err := d.api.ContainerLogs(ctx, id, opts)
	if err != nil {
		return "", runtimeErr("logs", err)
	}
	defer reader.Close()
	var buf bytes.Buffer
	if _, err := stdcopy.StdCopy(&buf, &buf, reader); err != nil && err != io.EOF {
		_, _ = io.Copy(&buf, reader)
	}
	return buf.String(), nil
}

func (d *DockerRuntime) Images() Images {
	return &dockerImages{api: d.api}
}

type dockerImages struct {
	api *client.Client
}

func (i *dockerImages) Exists(ctx context.Context, tag string) (bool, error) {
	_, _, err := i.api.ImageInspectWithRaw(ctx, tag)
	if err != nil {
		if client.IsErrNotFound(err) {
			return false, nil
		}
		return false, runtimeErr("image-inspect", err)
	}
	return true, nil
}

// Build tars up contextDir and streams it through the daemon's build
// API, pruning intermediate containers.
func (i *dockerImages) Build(ctx context.Context, contextDir, dockerfile, tag string) (io.ReadCloser, error) {
	buildCtx, err := archive.TarWithOptions(contextDir, &archive.TarOptions{})
	if err != nil {
		return nil, runtimeErr("tar-context", err)
	}
	defer buildCtx.Close()

	relDockerfile := dockerfile
	if relDockerfile == "" {
		relDockerfile = "Dockerfile"
	}
	resp, err := i.api.ImageBuild(ctx, buildCtx, types.ImageBuildOptions{
		Tags:           []string{tag},
		Dockerfile:     relDockerfile,
		Remove:         true,
		ForceRemove:    true,
		SuppressOutput: false,
	})
	if err != nil {
		return nil, runtimeErr("image-build", err)
	}
	return resp.Body, nil
}

// SingleFileTar packs one file into a tar archive with the given archive
// name, the format PutArchive expects.
func SingleFileTar(name string, data []byte, mode int64) ([]byte, error) {
	if mode == 0 {
		mode = 0o644
	}
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	hdr := &tar.Header{
		Name:    name,
		Mode:    mode,
		Size:    int64(len(data)),
		ModTime: time.Now(),
	}
	if err := tw.WriteHeader(hdr); err != nil {
		return nil, err
	}
	if _, err := tw.Write(data); err != nil {
		return nil, err
	}
	if err := tw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
