package hcl_adapter

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/specialistvlad/imageburst/internal/config"
	"github.com/specialistvlad/imageburst/internal/ctxlog"
	"github.com/specialistvlad/imageburst/internal/fsutil"
)

// Loader is the HCL-specific implementation of the config.Loader interface.
type Loader struct {
	env map[string]string
	fs  billy.Filesystem
}

var _ config.Loader = (*Loader)(nil)

// NewLoader creates a loader whose expressions see the process environment.
func NewLoader() *Loader {
	return &Loader{env: processEnv(), fs: osfs.New("/")}
}

// NewLoaderWithEnv creates a loader whose expressions see only env.
func NewLoaderWithEnv(env map[string]string) *Loader {
	return &Loader{env: env, fs: osfs.New("/")}
}

// Load parses every .hcl file found under paths, in order, and merges them
// into one model.
func (l *Loader) Load(ctx context.Context, paths ...string) (*config.Model, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("HCL loader started.", "path_count", len(paths))

	hclFiles, err := l.findAllHCLFiles(paths)
	if err != nil {
		return nil, err
	}
	logger.Debug("Discovered HCL files.", "count", len(hclFiles))

	parser := hclparse.NewParser()
	evalCtx := newEvalContext(l.env)
	model := &config.Model{}

	for _, file := range hclFiles {
		src, err := util.ReadFile(l.fs, file)
		if err != nil {
			return nil, fmt.Errorf("failed to read HCL file %s: %w", file, err)
		}
		hclFile, diags := parser.ParseHCL(src, file)
		if diags.HasErrors() {
			return nil, fmt.Errorf("failed to parse HCL file %s: %w", file, diags)
		}

		var root fileRoot
		diags = gohcl.DecodeBody(hclFile.Body, nil, &root)
		if diags.HasErrors() {
			return nil, fmt.Errorf("failed to decode HCL file %s: %w", file, diags)
		}

		fileModel, err := l.translateFile(ctx, file, &root, evalCtx)
		if err != nil {
			return nil, fmt.Errorf("failed to load HCL file %s: %w", file, err)
		}
		model.Merge(fileModel)
	}

	logger.Debug("HCL loading complete.", "files", len(hclFiles), "url", model.Endpoint.URL, "transport", model.Endpoint.Transport)
	return model, nil
}

func (l *Loader) translateFile(ctx context.Context, file string, root *fileRoot, evalCtx *hcl.EvalContext) (*config.Model, error) {
	if len(root.Endpoints) > 1 {
		return nil, fmt.Errorf("endpoint block declared %d times, expected at most once", len(root.Endpoints))
	}
	if len(root.Uploads) > 1 {
		return nil, fmt.Errorf("upload block declared %d times, expected at most once", len(root.Uploads))
	}

	m := &config.Model{}
	if len(root.Endpoints) == 1 {
		ep, err := translateEndpoint(ctx, root.Endpoints[0], evalCtx)
		if err != nil {
			return nil, err
		}
		m.Endpoint = ep
	}
	if len(root.Uploads) == 1 {
		up, err := translateUpload(ctx, root.Uploads[0], evalCtx, filepath.Dir(file))
		if err != nil {
			return nil, err
		}
		m.Upload = up
	}
	return m, nil
}

func translateEndpoint(ctx context.Context, b *EndpointBlock, evalCtx *hcl.EvalContext) (config.Endpoint, error) {
	var ep config.Endpoint
	var err error

	if _, err = decodeAttr(ctx, b.URL, "url", evalCtx, &ep.URL); err != nil {
		return ep, err
	}
	if _, err = decodeAttr(ctx, b.Transport, "transport", evalCtx, &ep.Transport); err != nil {
		return ep, err
	}
	if ep.DialTimeout, err = decodeDuration(ctx, b.DialTimeout, "dial_timeout", evalCtx); err != nil {
		return ep, err
	}
	if ep.WriteTimeout, err = decodeDuration(ctx, b.WriteTimeout, "write_timeout", evalCtx); err != nil {
		return ep, err
	}
	var insecure bool
	ok, err := decodeAttr(ctx, b.InsecureSkipVerify, "insecure_skip_verify", evalCtx, &insecure)
	if err != nil {
		return ep, err
	}
	if ok {
		ep.InsecureSkipVerify = &insecure
	}
	if _, err = decodeAttr(ctx, b.Headers, "headers", evalCtx, &ep.Headers); err != nil {
		return ep, err
	}
	if _, err = decodeAttr(ctx, b.Namespace, "namespace", evalCtx, &ep.Namespace); err != nil {
		return ep, err
	}
	return ep, nil
}

func translateUpload(ctx context.Context, b *UploadBlock, evalCtx *hcl.EvalContext, baseDir string) (config.Upload, error) {
	var up config.Upload
	var err error

	if _, err = decodeAttr(ctx, b.Paths, "paths", evalCtx, &up.Paths); err != nil {
		return up, err
	}
	for i, p := range up.Paths {
		if !filepath.IsAbs(p) {
			up.Paths[i] = filepath.Join(baseDir, p)
		}
	}
	if _, err = decodeAttr(ctx, b.Accept, "accept", evalCtx, &up.Accept); err != nil {
		return up, err
	}
	if _, err = decodeAttr(ctx, b.Repeat, "repeat", evalCtx, &up.Repeat); err != nil {
		return up, err
	}
	if up.Repeat < 0 {
		return up, fmt.Errorf("invalid repeat %d at %s: must not be negative", up.Repeat, b.Repeat.Range())
	}
	if up.WaitAcks, err = decodeDuration(ctx, b.WaitAcks, "wait_acks", evalCtx); err != nil {
		return up, err
	}
	return up, nil
}

// findAllHCLFiles expands paths into .hcl files: a file path is kept as
// given, a directory contributes its .hcl files in lexical order. A path
// given explicitly must exist.
func (l *Loader) findAllHCLFiles(paths []string) ([]string, error) {
	var allFiles []string
	seen := make(map[string]struct{})

	for _, path := range paths {
		abs, err := filepath.Abs(path)
		if err != nil {
			return nil, fmt.Errorf("error accessing path %s: %w", path, err)
		}
		info, err := l.fs.Stat(abs)
		if err != nil {
			return nil, fmt.Errorf("error accessing path %s: %w", path, err)
		}

		found := []string{abs}
		if info.IsDir() {
			if found, err = fsutil.FindFilesByExtension(l.fs, abs, ".hcl"); err != nil {
				return nil, err
			}
		}
		for _, f := range found {
			if _, wasSeen := seen[f]; !wasSeen {
				allFiles = append(allFiles, f)
				seen[f] = struct{}{}
			}
		}
	}
	return allFiles, nil
}
