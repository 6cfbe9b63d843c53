// Package mcptools exposes the sandbox service as named MCP tools with
// per-call ownership authorization, built on
// github.com/modelcontextprotocol/go-sdk/mcp.
package mcptools

import (
	"context"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"sandboxd/internal/auth"
	"sandboxd/internal/logging"
	"sandboxd/internal/sandboxsvc"
)

// Service is the subset of *sandboxsvc.Manager the dispatch layer needs,
// kept as an interface so it can be exercised against a fake in tests.
type Service interface {
	Create(ctx context.Context, userID, name string) (sandboxsvc.SandboxView, error)
	IsOwner(ctx context.Context, userID, sandboxID string) (bool, error)
	List(ctx context.Context, userID string) ([]sandboxsvc.SandboxView, map[string][]string, error)
	Install(ctx context.Context, sandboxID, pkg string) sandboxsvc.InstallStatus
	CheckStatus(ctx context.Context, sandboxID, pkg string) sandboxsvc.InstallStatus
	ExecuteCode(ctx context.Context, sandboxID, code string) sandboxsvc.ExecutionResult
	ExecuteCommand(ctx context.Context, sandboxID, command string) sandboxsvc.CommandResult
	Upload(ctx context.Context, sandboxID, localPath, destPath string) error
}

const accessDenied = "Access denied."

type dispatcher struct {
	svc    Service
	userID string
	log    *logging.Logger
}

// authorize performs the ownership check every tool except
// list_sandboxes/create_sandbox must pass: ownership failure returns
// "Access denied." without invoking the service.
func (d *dispatcher) authorize(ctx context.Context, sandboxID string) bool {
	ok, err := d.svc.IsOwner(ctx, d.userID, sandboxID)
	if err != nil {
		d.log.Printf("authorize %s: %v", sandboxID, err)
		return false
	}
	return ok
}

// NewServerFactory returns the per-connection server constructor the MCP
// transport calls for each new session. Identity is resolved once, by the
// auth middleware, before this is invoked; the tool closures below bind
// to that identity for the lifetime of the connection.
func NewServerFactory(svc Service, log *logging.Logger) func(r *http.Request) *mcp.Server {
	return func(r *http.Request) *mcp.Server {
		id, _ := auth.FromContext(r.Context())
		d := &dispatcher{svc: svc, userID: id.UserID, log: log}

		impl := &mcp.Implementation{
			Name:    "sandboxd",
			Title:   "Code Execution Sandbox",
			Version: "1.0.0",
		}
		server := mcp.NewServer(impl, &mcp.ServerOptions{HasTools: true})

		mcp.AddTool(server, &mcp.Tool{
			Name:        "list_sandboxes",
			Description: "List the caller's sandboxes with their installed packages.",
		}, d.listSandboxes)

		mcp.AddTool(server, &mcp.Tool{
			Name:        "create_sandbox",
			Description: "Create a new code-execution sandbox for the caller.",
		}, d.createSandbox)

		mcp.AddTool(server, &mcp.Tool{
			Name:        "install_package_in_sandbox",
			Description: "Install a package into a sandbox via uv pip install.",
		}, d.installPackage)

		mcp.AddTool(server, &mcp.Tool{
			Name:        "check_package_installation_status",
			Description: "Check the status of a package install in a sandbox.",
		}, d.checkPackageStatus)

		mcp.AddTool(server, &mcp.Tool{
			Name:        "execute_python_code",
			Description: "Execute Python source inside a sandbox and capture output plus produced files.",
		}, d.executePythonCode)

		mcp.AddTool(server, &mcp.Tool{
			Name:        "execute_terminal_command",
			Description: "Run a shell command inside a sandbox.",
		}, d.executeTerminalCommand)

		mcp.AddTool(server, &mcp.Tool{
			Name:        "upload_file_to_sandbox",
			Description: "Upload a local file into a sandbox's results directory.",
		}, d.uploadFile)

		return server
	}
}
