// Package runtime is the thin typed facade over the container engine used
// by the rest of the service (the container runtime adapter). Nothing
// outside this package imports the docker SDK directly.
package runtime

import (
	"context"
	"io"
	"time"
)

// ContainerSpec is the declarative shape of a sandbox container. Every
// field here is set by internal/sandboxsvc from the fixed security
// posture; nothing about it is caller-tunable beyond image/name/labels.
type ContainerSpec struct {
	Name        string
	Image       string
	Labels      map[string]string
	WorkDir     string
	Env         []string
	MemLimit    int64 // bytes
	MemSwap     int64 // bytes; equal to MemLimit disables swap
	Privileged  bool
	CapDrop     []string
	SecurityOpt []string
	NetworkMode string
}

// ExecOptions configures a single exec call against a running container.
type ExecOptions struct {
	Cmd        []string
	WorkDir    string
	Env        []string
	Privileged bool
}

// ExecResult is the demultiplexed output of a completed exec.
type ExecResult struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// ContainerInfo is the subset of inspect data callers of this package need.
type ContainerInfo struct {
	ID     string
	Name   string
	State  string // "running", "exited", "created", ...
	Labels map[string]string
}

// Runtime is the full adapter surface: create, start, exec, archive,
// remove, list, plus an Images sub-facade for the provisioner.
type Runtime interface {
	Get(ctx context.Context, id string) (*ContainerInfo, error)
	Create(ctx context.Context, spec ContainerSpec) (string, error)
	Start(ctx context.Context, id string) error
	Stop(ctx context.Context, id string, grace time.Duration) error
	Remove(ctx context.Context, id string, force bool) error
	Exec(ctx context.Context, id string, opts ExecOptions) (ExecResult, error)
	PutArchive(ctx context.Context, id, destDir string, tarBytes []byte) error
	GetArchive(ctx context.Context, id, path string) (io.ReadCloser, error)
	List(ctx context.Context, labels map[string]string) ([]ContainerInfo, error)
	Images() Images
	Close() error
}

// Images is the image half of the adapter: existence checks and builds.
type Images interface {
	Exists(ctx context.Context, tag string) (bool, error)
	Build(ctx context.Context, contextDir, dockerfile, tag string) (io.ReadCloser, error)
}
