package hcl

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"

	"github.com/specialistvlad/pipeforge/internal/ctxlog"
	"github.com/specialistvlad/pipeforge/internal/model"
)

// Loader parses HCL pipeline files into the agnostic model.
type Loader struct {
	parser *hclparse.Parser
}

// NewLoader creates a new HCL pipeline loader.
func NewLoader() *Loader {
	return &Loader{parser: hclparse.NewParser()}
}

// Load discovers .hcl files under the given paths and assembles them into a
// single pipeline. Exactly one pipeline block must appear across all files;
// step blocks may be spread over any number of them.
func (l *Loader) Load(ctx context.Context, paths ...string) (*model.Pipeline, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("HCL loader started.", "path_count", len(paths))

	files, err := findAllHCLFiles(paths)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no .hcl files found under %v", paths)
	}
	logger.Debug("Discovered HCL files.", "count", len(files))

	var roots []*fileRoot
	for _, file := range files {
		hclFile, diags := l.parser.ParseHCLFile(file)
		if diags.HasErrors() {
			return nil, fmt.Errorf("failed to parse HCL file %s: %w", file, diags)
		}
		root, err := decodeRoot(hclFile.Body, file)
		if err != nil {
			return nil, err
		}
		roots = append(roots, root)
	}

	pipeline, err := assemble(roots)
	if err != nil {
		return nil, err
	}
	logger.Debug("HCL loading complete.", "pipeline", pipeline.Name, "steps", len(pipeline.Invocations))
	return pipeline, nil
}

// Parse loads a pipeline from a single in-memory HCL document.
func (l *Loader) Parse(ctx context.Context, filename string, src []byte) (*model.Pipeline, error) {
	hclFile, diags := l.parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL %s: %w", filename, diags)
	}
	root, err := decodeRoot(hclFile.Body, filename)
	if err != nil {
		return nil, err
	}
	return assemble([]*fileRoot{root})
}

func decodeRoot(body hcl.Body, filename string) (*fileRoot, error) {
	var root fileRoot
	diags := gohcl.DecodeBody(body, nil, &root)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode HCL file %s: %w", filename, diags)
	}
	return &root, nil
}

// assemble merges decoded file roots into one pipeline model.
func assemble(roots []*fileRoot) (*model.Pipeline, error) {
	var pipeline *pipelineBlock
	var steps []*stepBlock
	for _, root := range roots {
		for _, p := range root.Pipelines {
			if pipeline != nil {
				return nil, fmt.Errorf("duplicate pipeline block: %q and %q", pipeline.Name, p.Name)
			}
			pipeline = p
		}
		steps = append(steps, root.Steps...)
	}
	if pipeline == nil {
		return nil, fmt.Errorf("no pipeline block found")
	}
	return translatePipeline(pipeline, steps)
}

// findAllHCLFiles walks all given paths and returns a flat list of all .hcl
// files found.
func findAllHCLFiles(paths []string) ([]string, error) {
	var allFiles []string
	seen := make(map[string]struct{})

	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, fmt.Errorf("error accessing path %s: %w", path, err)
		}

		if info.IsDir() {
			err := filepath.Walk(path, func(p string, info os.FileInfo, err error) error {
				if err != nil {
					return err
				}
				if !info.IsDir() && filepath.Ext(p) == ".hcl" {
					if _, wasSeen := seen[p]; !wasSeen {
						allFiles = append(allFiles, p)
						seen[p] = struct{}{}
					}
				}
				return nil
			})
			if err != nil {
				return nil, err
			}
		} else if filepath.Ext(path) == ".hcl" {
			if _, wasSeen := seen[path]; !wasSeen {
				allFiles = append(allFiles, path)
				seen[path] = struct{}{}
			}
		}
	}
	return allFiles, nil
}
