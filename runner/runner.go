// Package runner runs the semantics over IR files and directories.
package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/gnolang/opsem/formatter"
	"github.com/gnolang/opsem/internal/cache"
	"github.com/gnolang/opsem/internal/ir"
	"github.com/gnolang/opsem/internal/opsem"
	"github.com/gnolang/opsem/scanner"
)

// Extensions are the file extensions of IR modules.
var Extensions = []string{".yaml", ".yml"}

var ErrNoFunction = errors.New("function not defined")

type Engine interface {
	Run(ctx context.Context, path string) (*Outcome, error)
}

// Outcome is the rendered result of one file.
type Outcome struct {
	Filename string
	Output   string
	Cached   bool
	Err      error
}

type Options struct {
	Config opsem.Config
	// Function is the function to run. It defaults to main.
	Function string
	// Path names the blocks to follow. When empty the first successor of
	// every block is followed from the entry.
	Path          []string
	SMT           bool
	PromoteMalloc bool
	Cache         *cache.Cache
}

type Runner struct {
	opts Options
	log  *zap.Logger
}

// New builds a runner. The configuration is read from configPath when the
// file exists, otherwise opts.Config is used.
func New(logger *zap.Logger, configPath string, opts Options) (*Runner, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if configPath != "" {
		cfg, err := opsem.LoadConfig(configPath)
		switch {
		case err == nil:
			opts.Config = cfg
		case errors.Is(err, os.ErrNotExist):
			logger.Debug("no configuration file, using defaults", zap.String("path", configPath))
		default:
			return nil, err
		}
	}
	if err := opts.Config.Validate(); err != nil {
		return nil, err
	}
	if opts.Function == "" {
		opts.Function = "main"
	}
	return &Runner{opts: opts, log: logger}, nil
}

func (r *Runner) Options() Options { return r.opts }

// settings lists everything besides the input that changes the output.
func (r *Runner) settings() []string {
	cfg, _ := yaml.Marshal(r.opts.Config)
	return []string{
		string(cfg),
		r.opts.Function,
		strings.Join(r.opts.Path, ","),
		strconv.FormatBool(r.opts.SMT),
		strconv.FormatBool(r.opts.PromoteMalloc),
		strconv.FormatBool(color.NoColor),
	}
}

func (r *Runner) Run(ctx context.Context, path string) (*Outcome, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var key uint64
	if r.opts.Cache != nil {
		key = cache.Key(data, r.settings()...)
		if out, ok := r.opts.Cache.Get(key); ok {
			r.log.Debug("cache hit", zap.String("file", path))
			return &Outcome{Filename: path, Output: out, Cached: true}, nil
		}
	}

	out, err := r.run(ctx, path, data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	if r.opts.Cache != nil {
		if err := r.opts.Cache.Set(key, out); err != nil {
			r.log.Warn("failed to update cache", zap.String("file", path), zap.Error(err))
		}
	}
	return &Outcome{Filename: path, Output: out}, nil
}

func (r *Runner) run(ctx context.Context, path string, data []byte) (string, error) {
	mod, err := ir.LoadYAML(data)
	if err != nil {
		return "", err
	}
	if r.opts.PromoteMalloc && ir.PromoteMalloc(mod) {
		r.log.Debug("promoted heap allocations", zap.String("file", path))
	}

	fn := mod.Function(r.opts.Function)
	if fn == nil || fn.IsDeclaration() {
		return "", fmt.Errorf("%s: %w", r.opts.Function, ErrNoFunction)
	}

	m, err := opsem.NewMachine(mod, r.opts.Config, opsem.WithLogger(r.log))
	if err != nil {
		return "", err
	}

	blocks := opsem.FirstSuccessorPath(fn)
	if len(r.opts.Path) > 0 {
		if blocks, err = opsem.ParsePath(fn, r.opts.Path); err != nil {
			return "", err
		}
	}

	res, err := m.NewContext().RunPath(ctx, blocks)
	if err != nil {
		return "", err
	}

	if r.opts.SMT {
		var buf bytes.Buffer
		if err := res.WriteSMTLib(&buf); err != nil {
			return "", err
		}
		return buf.String(), nil
	}
	return formatter.FormatReport(formatter.Report{
		Filename: path,
		Function: fn.Name(),
		Path:     blocks,
		Result:   res,
	}), nil
}

// ProcessFiles runs engine over every path. Directories are searched for IR
// files.
func ProcessFiles(ctx context.Context, logger *zap.Logger, engine Engine, paths []string) ([]*Outcome, error) {
	var all []*Outcome
	for _, path := range paths {
		outcomes, err := ProcessPath(ctx, logger, engine, path)
		all = append(all, outcomes...)
		if err != nil {
			if logger != nil {
				logger.Error("Error processing path", zap.String("path", path), zap.Error(err))
			}
			return all, err
		}
	}
	return all, nil
}

// ProcessPath runs engine over a file, or over the IR files under a
// directory with a bounded worker pool. Outcomes keep the order of the
// files. A file that fails yields an outcome carrying its error.
func ProcessPath(ctx context.Context, logger *zap.Logger, engine Engine, path string) ([]*Outcome, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("error accessing %s: %w", path, err)
	}
	if !info.IsDir() {
		return []*Outcome{runOne(ctx, logger, engine, path)}, nil
	}

	files, err := scanner.New(path, Extensions...).Scan()
	if err != nil {
		return nil, fmt.Errorf("error scanning %s: %w", path, err)
	}

	bar := progressbar.NewOptions(len(files),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetDescription(path),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionSetVisibility(len(files) > 1),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}))
	defer bar.Finish()

	outcomes := make([]*Outcome, len(files))
	done := make(chan struct{}, len(files))
	sem := make(chan struct{}, runtime.NumCPU())

	started := 0
	wait := func() {
		for range started {
			<-done
		}
	}
	for i, file := range files {
		if err := ctx.Err(); err != nil {
			wait()
			return collect(outcomes), err
		}
		select {
		case <-ctx.Done():
			wait()
			return collect(outcomes), ctx.Err()
		case sem <- struct{}{}:
		}
		started++
		go func(i int, fp string) {
			defer func() {
				<-sem
				done <- struct{}{}
			}()
			outcomes[i] = runOne(ctx, logger, engine, fp)
			_ = bar.Add(1)
		}(i, file.Path)
	}
	wait()
	return outcomes, nil
}

func runOne(ctx context.Context, logger *zap.Logger, engine Engine, path string) *Outcome {
	out, err := engine.Run(ctx, path)
	if err != nil {
		if logger != nil {
			logger.Error("Error processing file", zap.String("file", path), zap.Error(err))
		}
		return &Outcome{Filename: path, Err: err}
	}
	return out
}

func collect(outcomes []*Outcome) []*Outcome {
	out := make([]*Outcome, 0, len(outcomes))
	for _, o := range outcomes {
		if o != nil {
			out = append(out, o)
		}
	}
	return out
}
