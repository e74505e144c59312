package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/edashow/mediaflow/internal/domain"
	"github.com/edashow/mediaflow/internal/optimizer"
)

const (
	SourceTypeLocalFile = domain.SourceTypeLocalFile
	OptimizedPrefix     = "optimized"
)

var (
	ErrUnsupportedSourceType = errors.New("unsupported source_type")
	ErrSourceOutsideRoot     = errors.New("source path escapes input directory")
)

type Request struct {
	MediaID    string
	SourceType string
	ObjectKey  string
	// Options selects an explicit optimize call; nil runs the persisted settings.
	Options *optimizer.Options
}

type Output struct {
	Key         string
	Format      domain.Format
	MimeType    string
	Bytes       int
	Width       int
	Height      int
	Watermarked bool
}

type Result struct {
	SourceBytes int
	// Skipped is set when optimization is disabled; nothing was emitted and the
	// original object should be served.
	Skipped bool
	Output  Output
}

type Fetcher interface {
	Fetch(ctx context.Context, req Request) ([]byte, error)
}

type Emitter interface {
	Emit(ctx context.Context, req Request, res optimizer.Result) (Output, error)
}

// Engine is the subset of *optimizer.Optimizer the processor drives.
type Engine interface {
	Optimize(ctx context.Context, input []byte, opts optimizer.Options) (optimizer.Result, error)
	ProcessWithSettings(ctx context.Context, input []byte) (optimizer.Outcome, error)
}

type Processor struct {
	fetcher Fetcher
	engine  Engine
	emitter Emitter
}

func NewProcessor(fetcher Fetcher, engine Engine, emitter Emitter) (*Processor, error) {
	if fetcher == nil {
		return nil, errors.New("fetcher is required")
	}
	if engine == nil {
		return nil, errors.New("optimizer is required")
	}
	if emitter == nil {
		return nil, errors.New("emitter is required")
	}
	return &Processor{fetcher: fetcher, engine: engine, emitter: emitter}, nil
}

func NewLocalProcessor(inputDir, outputDir string, engine Engine) (*Processor, error) {
	return NewProcessor(
		LocalFileFetcher{BaseDir: inputDir},
		engine,
		LocalFileEmitter{OutputDir: outputDir},
	)
}

func (p *Processor) Process(ctx context.Context, req Request) (Result, error) {
	if strings.TrimSpace(req.MediaID) == "" {
		return Result{}, errors.New("media_id is required")
	}

	sourceBytes, err := p.fetcher.Fetch(ctx, req)
	if err != nil {
		return Result{}, fmt.Errorf("fetch stage: %w", err)
	}
	out := Result{SourceBytes: len(sourceBytes)}

	var optimized optimizer.Result
	if req.Options != nil {
		optimized, err = p.engine.Optimize(ctx, sourceBytes, *req.Options)
		if err != nil {
			return Result{}, fmt.Errorf("optimize stage: %w", err)
		}
	} else {
		outcome, err := p.engine.ProcessWithSettings(ctx, sourceBytes)
		if err != nil {
			return Result{}, fmt.Errorf("optimize stage: %w", err)
		}
		if !outcome.Applied() {
			out.Skipped = true
			return out, nil
		}
		optimized = *outcome.Result
	}

	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	written, err := p.emitter.Emit(ctx, req, optimized)
	if err != nil {
		return Result{}, fmt.Errorf("emit stage: %w", err)
	}
	out.Output = written
	return out, nil
}

// OutputKey is where the optimized rendition of a media item is stored.
func OutputKey(mediaID string, format domain.Format) string {
	return path.Join(OptimizedPrefix, sanitizePathToken(mediaID)+"."+optimizer.Extension(format))
}

type LocalFileFetcher struct {
	// BaseDir confines object keys to one directory. Empty means keys are
	// used as paths verbatim.
	BaseDir string
}

func (f LocalFileFetcher) Fetch(ctx context.Context, req Request) ([]byte, error) {
	if !strings.EqualFold(req.SourceType, SourceTypeLocalFile) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedSourceType, req.SourceType)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	fullPath, err := f.resolve(req.ObjectKey)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(fullPath)
	if err != nil {
		return nil, fmt.Errorf("read input file %s: %w", req.ObjectKey, err)
	}
	return data, nil
}

// Exists reports whether key names a regular file under BaseDir.
func (f LocalFileFetcher) Exists(key string) (bool, error) {
	fullPath, err := f.resolve(key)
	if err != nil {
		return false, err
	}
	info, err := os.Stat(fullPath)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("stat input file %s: %w", key, err)
	}
	return info.Mode().IsRegular(), nil
}

func (f LocalFileFetcher) resolve(key string) (string, error) {
	if strings.TrimSpace(f.BaseDir) == "" {
		return key, nil
	}
	base, err := filepath.Abs(f.BaseDir)
	if err != nil {
		return "", fmt.Errorf("resolve input dir: %w", err)
	}
	full := filepath.Join(base, filepath.FromSlash(key))
	if full != base && !strings.HasPrefix(full, base+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", ErrSourceOutsideRoot, key)
	}
	return full, nil
}

// LocalFileEmitter writes under OutputDir. The reported key is relative to
// OutputDir, the same shape ObjectStoreEmitter reports.
type LocalFileEmitter struct {
	OutputDir string
}

func (e LocalFileEmitter) Emit(_ context.Context, req Request, res optimizer.Result) (Output, error) {
	if strings.TrimSpace(e.OutputDir) == "" {
		return Output{}, errors.New("output directory is required")
	}

	key := OutputKey(req.MediaID, res.Format)
	fullPath := filepath.Join(e.OutputDir, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		return Output{}, fmt.Errorf("create output dir: %w", err)
	}
	if err := os.WriteFile(fullPath, res.Data, 0o644); err != nil {
		return Output{}, fmt.Errorf("write output file: %w", err)
	}

	return outputFor(key, res), nil
}

func outputFor(key string, res optimizer.Result) Output {
	return Output{
		Key:         key,
		Format:      res.Format,
		MimeType:    optimizer.MimeType(res.Format),
		Bytes:       len(res.Data),
		Width:       res.Width,
		Height:      res.Height,
		Watermarked: res.Watermarked,
	}
}

func sanitizePathToken(in string) string {
	in = strings.TrimSpace(in)
	if in == "" {
		return "unknown"
	}

	var b strings.Builder
	b.Grow(len(in))
	for _, r := range in {
		switch {
		case r >= 'a' && r <= 'z':
			b.WriteRune(r)
		case r >= 'A' && r <= 'Z':
			b.WriteRune(r)
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '-' || r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}
