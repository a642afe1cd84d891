// Package seed holds the default drive tree and loads it into a repository.
package seed

import (
	"context"
	_ "embed"
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"

	"navidrive/internal/domain/drive"
)

//go:embed seed.yaml
var defaultTree []byte

// Folder is a folder node of a seed tree. A non-zero corruptionLevel marks
// the item corrupted.
type Folder struct {
	Name            string   `yaml:"name"`
	Modified        string   `yaml:"modified"`
	Reveal          int      `yaml:"reveal"`
	CorruptionLevel int      `yaml:"corruptionLevel"`
	Folders         []Folder `yaml:"folders"`
	Files           []File   `yaml:"files"`
}

// File is a file leaf of a seed tree.
type File struct {
	Name            string `yaml:"name"`
	Size            int64  `yaml:"size"`
	URL             string `yaml:"url"`
	Modified        string `yaml:"modified"`
	Reveal          int    `yaml:"reveal"`
	CorruptionLevel int    `yaml:"corruptionLevel"`
}

// Result counts what Apply created.
type Result struct {
	Skipped bool `json:"skipped"`
	Folders int  `json:"folders"`
	Files   int  `json:"files"`
}

// Default parses the embedded tree.
func Default() (*Folder, error) {
	return Parse(defaultTree)
}

// Parse decodes a YAML seed tree.
func Parse(data []byte) (*Folder, error) {
	var root Folder
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("parse seed tree: %w", err)
	}
	if root.Name == "" {
		return nil, fmt.Errorf("seed tree has no root name")
	}
	return &root, nil
}

// Apply writes tree into repo unless a root folder already exists.
func Apply(ctx context.Context, repo drive.Repository, tree *Folder) (Result, error) {
	if _, err := repo.Root(ctx); err == nil {
		return Result{Skipped: true}, nil
	} else if !errors.Is(err, drive.ErrNotFound) {
		return Result{}, err
	}

	var res Result
	if err := applyFolder(ctx, repo, tree, nil, &res); err != nil {
		return res, err
	}
	return res, nil
}

func reveal(n int) int {
	if n < 1 {
		return 1
	}
	return n
}

func applyFolder(ctx context.Context, repo drive.Repository, node *Folder, parent *int64, res *Result) error {
	if err := drive.ValidateCorruption(node.CorruptionLevel > 0, node.CorruptionLevel); err != nil {
		return fmt.Errorf("folder %q: %w", node.Name, err)
	}
	f := &drive.Folder{
		Name:            node.Name,
		ParentID:        parent,
		Corrupted:       node.CorruptionLevel > 0,
		CorruptionLevel: node.CorruptionLevel,
		RevealLevel:     reveal(node.Reveal),
		Modified:        node.Modified,
	}
	if err := repo.CreateFolder(ctx, f); err != nil {
		return fmt.Errorf("seed folder %q: %w", node.Name, err)
	}
	res.Folders++

	for i := range node.Folders {
		if err := applyFolder(ctx, repo, &node.Folders[i], &f.ID, res); err != nil {
			return err
		}
	}
	for _, leaf := range node.Files {
		if err := drive.ValidateCorruption(leaf.CorruptionLevel > 0, leaf.CorruptionLevel); err != nil {
			return fmt.Errorf("file %q: %w", leaf.Name, err)
		}
		file := &drive.File{
			Name:            leaf.Name,
			Size:            leaf.Size,
			URL:             leaf.URL,
			ParentID:        f.ID,
			Corrupted:       leaf.CorruptionLevel > 0,
			CorruptionLevel: leaf.CorruptionLevel,
			RevealLevel:     reveal(leaf.Reveal),
			FileType:        drive.DetectFileType(leaf.Name),
			Modified:        leaf.Modified,
		}
		if err := repo.CreateFile(ctx, file); err != nil {
			return fmt.Errorf("seed file %q: %w", leaf.Name, err)
		}
		res.Files++
	}
	return nil
}
