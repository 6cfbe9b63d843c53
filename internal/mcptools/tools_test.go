package mcptools

import (
	"context"
	"testing"

	"sandboxd/internal/config"
	"sandboxd/internal/logging"
	"sandboxd/internal/sandboxsvc"
)

// fakeService is a stand-in Service used to test ownership enforcement at
// the tool dispatch layer without a real Manager/runtime.
type fakeService struct {
	owners        map[string]string // sandboxID -> userID
	installCalled bool
	execCalled    bool
}

func (f *fakeService) Create(_ context.Context, userID, name string) (sandboxsvc.SandboxView, error) {
	return sandboxsvc.SandboxView{SandboxID: "new-sandbox", UserID: userID, Name: name}, nil
}

func (f *fakeService) IsOwner(_ context.Context, userID, sandboxID string) (bool, error) {
	return f.owners[sandboxID] == userID, nil
}

func (f *fakeService) List(_ context.Context, userID string) ([]sandboxsvc.SandboxView, map[string][]string, error) {
	var out []sandboxsvc.SandboxView
	for sid, uid := range f.owners {
		if uid == userID {
			out = append(out, sandboxsvc.SandboxView{SandboxID: sid, UserID: uid})
		}
	}
	return out, map[string][]string{}, nil
}

func (f *fakeService) Install(_ context.Context, sandboxID, pkg string) sandboxsvc.InstallStatus {
	f.installCalled = true
	return sandboxsvc.InstallStatus{Package: pkg, State: sandboxsvc.InstallStateSuccess, Complete: true}
}

func (f *fakeService) CheckStatus(_ context.Context, sandboxID, pkg string) sandboxsvc.InstallStatus {
	return sandboxsvc.InstallStatus{Package: pkg, State: sandboxsvc.InstallStateSuccess, Complete: true}
}

func (f *fakeService) ExecuteCode(_ context.Context, sandboxID, code string) sandboxsvc.ExecutionResult {
	f.execCalled = true
	return sandboxsvc.ExecutionResult{Stdout: "ok", ExitCode: 0, Files: []string{}, FileLinks: []string{}}
}

func (f *fakeService) ExecuteCommand(_ context.Context, sandboxID, command string) sandboxsvc.CommandResult {
	return sandboxsvc.CommandResult{Stdout: "ok", ExitCode: 0}
}

func (f *fakeService) Upload(_ context.Context, sandboxID, localPath, destPath string) error {
	return nil
}

func testDispatcher(svc Service, userID string) *dispatcher {
	log, _ := logging.New(config.LoggingConfig{Level: "info"}, "test")
	return &dispatcher{svc: svc, userID: userID, log: log}
}

func TestExecutePythonCodeDeniesNonOwner(t *testing.T) {
	svc := &fakeService{owners: map[string]string{"sbx-1": "owner-user"}}
	d := testDispatcher(svc, "intruder")

	_, out, err := d.executePythonCode(context.Background(), nil, executePythonCodeInput{SandboxID: "sbx-1", Code: "print(1)"})
	if err != nil {
		t.Fatalf("expected no transport error, got %v", err)
	}
	if out.Error != accessDenied {
		t.Fatalf("expected access denied, got %+v", out)
	}
	if svc.execCalled {
		t.Fatalf("expected underlying ExecuteCode to never be invoked for a non-owner")
	}
}

func TestExecutePythonCodeAllowsOwner(t *testing.T) {
	svc := &fakeService{owners: map[string]string{"sbx-1": "owner-user"}}
	d := testDispatcher(svc, "owner-user")

	_, out, err := d.executePythonCode(context.Background(), nil, executePythonCodeInput{SandboxID: "sbx-1", Code: "print(1)"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Error != "" {
		t.Fatalf("expected no error for owner, got %q", out.Error)
	}
	if !svc.execCalled {
		t.Fatalf("expected underlying ExecuteCode to be invoked for the owner")
	}
}

func TestInstallPackageDeniesNonOwner(t *testing.T) {
	svc := &fakeService{owners: map[string]string{"sbx-1": "owner-user"}}
	d := testDispatcher(svc, "intruder")

	_, out, err := d.installPackage(context.Background(), nil, installPackageInput{SandboxID: "sbx-1", Package: "numpy"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Error != accessDenied {
		t.Fatalf("expected access denied, got %+v", out)
	}
	if svc.installCalled {
		t.Fatalf("expected underlying Install to never be invoked for a non-owner")
	}
}

func TestListAndCreateSandboxesRequireNoOwnershipCheck(t *testing.T) {
	svc := &fakeService{owners: map[string]string{"sbx-1": "user-a", "sbx-2": "user-b"}}
	d := testDispatcher(svc, "user-a")

	_, listOut, err := d.listSandboxes(context.Background(), nil, listSandboxesInput{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(listOut.Sandboxes) != 1 || listOut.Sandboxes[0].SandboxID != "sbx-1" {
		t.Fatalf("expected only user-a's sandbox listed, got %+v", listOut.Sandboxes)
	}

	_, createOut, err := d.createSandbox(context.Background(), nil, createSandboxInput{Name: "fresh"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if createOut.Name != "fresh" {
		t.Fatalf("expected created sandbox name preserved, got %q", createOut.Name)
	}
}
