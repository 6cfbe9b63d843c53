// Package image is the image provisioner: ensure the sandbox image
// exists, rebuilding when its build recipe's content hash changes.
package image

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"time"

	"sandboxd/internal/config"
	"sandboxd/internal/logging"
	"sandboxd/internal/runtime"
)

// BuildRecord is the small JSON side-record persisted next to the recipe.
type BuildRecord struct {
	RecipeHash string    `json:"dockerfile_hash"`
	BuiltAt    time.Time `json:"build_time"`
	ImageName  string    `json:"image_name"`
}

type Provisioner struct {
	rt  runtime.Runtime
	log *logging.Logger
}

func New(rt runtime.Runtime, log *logging.Logger) *Provisioner {
	return &Provisioner{rt: rt, log: log}
}

// Ensure builds from the recipe's parent directory when the image is
// absent or the recipe's hash has changed, pruning intermediate
// containers. On failure it logs and returns nil; sandbox creation will
// still attempt to use the tag if it already exists.
func (p *Provisioner) Ensure(ctx context.Context, cfg config.DockerConfig) error {
	exists, err := p.rt.Images().Exists(ctx, cfg.DefaultImage)
	if err != nil {
		p.log.Printf("image provisioner: check %s: %v", cfg.DefaultImage, err)
		exists = false
	}

	hash, hashErr := hashFile(cfg.DockerfilePath)
	if hashErr != nil {
		p.log.Printf("image provisioner: hash recipe %s: %v", cfg.DockerfilePath, hashErr)
	}

	needsBuild := !exists
	if exists && cfg.CheckDockerfileChanges && hashErr == nil {
		if rec, err := loadRecord(cfg.BuildInfoFile); err != nil || rec.RecipeHash != hash {
			needsBuild = true
		}
	}
	if !needsBuild {
		return nil
	}
	if hashErr != nil {
		p.log.Printf("image provisioner: cannot rebuild %s without a readable recipe, leaving existing image in place", cfg.DefaultImage)
		return nil
	}

	contextDir := filepath.Dir(cfg.DockerfilePath)
	logStream, err := p.rt.Images().Build(ctx, contextDir, filepath.Base(cfg.DockerfilePath), cfg.DefaultImage)
	if err != nil {
		p.log.Printf("image provisioner: build %s: %v", cfg.DefaultImage, err)
		return nil
	}
	defer logStream.Close()
	if _, err := io.Copy(io.Discard, logStream); err != nil {
		p.log.Printf("image provisioner: drain build log: %v", err)
	}

	rec := BuildRecord{RecipeHash: hash, BuiltAt: time.Now().UTC(), ImageName: cfg.DefaultImage}
	if err := saveRecord(cfg.BuildInfoFile, rec); err != nil {
		p.log.Printf("image provisioner: persist build record: %v", err)
	}
	p.log.Printf("image provisioner: built %s from %s", cfg.DefaultImage, cfg.DockerfilePath)
	return nil
}

func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func loadRecord(path string) (BuildRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return BuildRecord{}, err
	}
	var rec BuildRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return BuildRecord{}, err
	}
	return rec, nil
}

// saveRecord atomically rewrites the build record.
func saveRecord(path string, rec BuildRecord) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
