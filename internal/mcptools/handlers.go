package mcptools

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"sandboxd/internal/sandboxsvc"
)

type sandboxSummary struct {
	SandboxID string   `json:"sandbox_id"`
	Name      string   `json:"name"`
	CreatedAt string   `json:"created_at"`
	Packages  []string `json:"installed_packages"`
}

type listSandboxesInput struct{}

type listSandboxesOutput struct {
	Sandboxes []sandboxSummary `json:"sandboxes"`
	Error     string           `json:"error,omitempty"`
}

func (d *dispatcher) listSandboxes(ctx context.Context, _ *mcp.CallToolRequest, _ listSandboxesInput) (*mcp.CallToolResult, listSandboxesOutput, error) {
	views, packages, err := d.svc.List(ctx, d.userID)
	if err != nil {
		return nil, listSandboxesOutput{Error: err.Error()}, nil
	}
	out := make([]sandboxSummary, 0, len(views))
	for _, v := range views {
		out = append(out, sandboxSummary{
			SandboxID: v.SandboxID,
			Name:      v.Name,
			CreatedAt: v.CreatedAt,
			Packages:  packages[v.SandboxID],
		})
	}
	return nil, listSandboxesOutput{Sandboxes: out}, nil
}

type createSandboxInput struct {
	Name string `json:"name,omitempty"`
}

type createSandboxOutput struct {
	SandboxID string `json:"sandbox_id"`
	UserID    string `json:"user_id"`
	Name      string `json:"name"`
	Status    string `json:"status,omitempty"`
	CreatedAt string `json:"created_at"`
	Error     string `json:"error,omitempty"`
}

func (d *dispatcher) createSandbox(ctx context.Context, _ *mcp.CallToolRequest, in createSandboxInput) (*mcp.CallToolResult, createSandboxOutput, error) {
	view, err := d.svc.Create(ctx, d.userID, in.Name)
	if err != nil {
		return nil, createSandboxOutput{Error: err.Error()}, nil
	}
	return nil, createSandboxOutput{
		SandboxID: view.SandboxID,
		UserID:    view.UserID,
		Name:      view.Name,
		Status:    "active",
		CreatedAt: view.CreatedAt,
	}, nil
}

type installPackageInput struct {
	SandboxID string `json:"sandbox_id"`
	Package   string `json:"package_name"`
}

type installPackageOutput struct {
	Package  string `json:"package"`
	State    string `json:"state"`
	Message  string `json:"message,omitempty"`
	Complete bool   `json:"complete"`
	Error    string `json:"error,omitempty"`
}

func (d *dispatcher) installPackage(ctx context.Context, _ *mcp.CallToolRequest, in installPackageInput) (*mcp.CallToolResult, installPackageOutput, error) {
	if !d.authorize(ctx, in.SandboxID) {
		return nil, installPackageOutput{Error: accessDenied}, nil
	}
	status := d.svc.Install(ctx, in.SandboxID, in.Package)
	return nil, installOutputFromStatus(status), nil
}

type checkInstallStatusInput struct {
	SandboxID string `json:"sandbox_id"`
	Package   string `json:"package_name"`
}

type checkInstallStatusOutput struct {
	Package          string  `json:"package"`
	State            string  `json:"state"`
	Message          string  `json:"message,omitempty"`
	Complete         bool    `json:"complete"`
	AlreadyInstalled bool    `json:"already_installed,omitempty"`
	ElapsedSeconds   float64 `json:"elapsed_seconds,omitempty"`
	Error            string  `json:"error,omitempty"`
}

func (d *dispatcher) checkPackageStatus(ctx context.Context, _ *mcp.CallToolRequest, in checkInstallStatusInput) (*mcp.CallToolResult, checkInstallStatusOutput, error) {
	if !d.authorize(ctx, in.SandboxID) {
		return nil, checkInstallStatusOutput{Error: accessDenied}, nil
	}
	status := d.svc.CheckStatus(ctx, in.SandboxID, in.Package)
	return nil, checkInstallStatusOutput{
		Package:          status.Package,
		State:            string(status.State),
		Message:          status.Message,
		Complete:         status.Complete,
		AlreadyInstalled: status.AlreadyInstalled,
		ElapsedSeconds:   status.ElapsedSeconds,
	}, nil
}

func installOutputFromStatus(s sandboxsvc.InstallStatus) installPackageOutput {
	return installPackageOutput{Package: s.Package, State: string(s.State), Message: s.Message, Complete: s.Complete}
}

type executePythonCodeInput struct {
	SandboxID string `json:"sandbox_id"`
	Code      string `json:"code"`
}

type executePythonCodeOutput struct {
	Stdout    string   `json:"stdout"`
	Stderr    string   `json:"stderr"`
	ExitCode  int      `json:"exit_code"`
	Files     []string `json:"files"`
	FileLinks []string `json:"file_links"`
	Error     string   `json:"error,omitempty"`
}

func (d *dispatcher) executePythonCode(ctx context.Context, _ *mcp.CallToolRequest, in executePythonCodeInput) (*mcp.CallToolResult, executePythonCodeOutput, error) {
	if !d.authorize(ctx, in.SandboxID) {
		return nil, executePythonCodeOutput{Error: accessDenied}, nil
	}
	res := d.svc.ExecuteCode(ctx, in.SandboxID, in.Code)
	return nil, executePythonCodeOutput{
		Stdout:    res.Stdout,
		Stderr:    res.Stderr,
		ExitCode:  res.ExitCode,
		Files:     res.Files,
		FileLinks: res.FileLinks,
		Error:     res.Error,
	}, nil
}

type executeTerminalCommandInput struct {
	SandboxID string `json:"sandbox_id"`
	Command   string `json:"command"`
}

type executeTerminalCommandOutput struct {
	Stdout   string `json:"stdout"`
	Stderr   string `json:"stderr"`
	ExitCode int    `json:"exit_code"`
	Error    string `json:"error,omitempty"`
}

func (d *dispatcher) executeTerminalCommand(ctx context.Context, _ *mcp.CallToolRequest, in executeTerminalCommandInput) (*mcp.CallToolResult, executeTerminalCommandOutput, error) {
	if !d.authorize(ctx, in.SandboxID) {
		return nil, executeTerminalCommandOutput{Error: accessDenied}, nil
	}
	res := d.svc.ExecuteCommand(ctx, in.SandboxID, in.Command)
	return nil, executeTerminalCommandOutput{Stdout: res.Stdout, Stderr: res.Stderr, ExitCode: res.ExitCode}, nil
}

type uploadFileInput struct {
	SandboxID string `json:"sandbox_id"`
	LocalPath string `json:"local_file_path"`
	DestPath  string `json:"dest_path,omitempty"`
}

type uploadFileOutput struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

func (d *dispatcher) uploadFile(ctx context.Context, _ *mcp.CallToolRequest, in uploadFileInput) (*mcp.CallToolResult, uploadFileOutput, error) {
	if !d.authorize(ctx, in.SandboxID) {
		return nil, uploadFileOutput{Error: accessDenied}, nil
	}
	if err := d.svc.Upload(ctx, in.SandboxID, in.LocalPath, in.DestPath); err != nil {
		return nil, uploadFileOutput{Error: err.Error()}, nil
	}
	return nil, uploadFileOutput{Success: true, Message: "file uploaded"}, nil
}
