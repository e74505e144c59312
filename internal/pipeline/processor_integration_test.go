package pipeline

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/edashow/mediaflow/internal/domain"
	"github.com/edashow/mediaflow/internal/optimizer"
	"github.com/edashow/mediaflow/internal/settings"
	"go.uber.org/zap"
)

func newEngine(t *testing.T, s *domain.ImageSettings) *optimizer.Optimizer {
	t.Helper()

	store := settings.NewMemoryStore()
	if s != nil {
		if err := store.Save(context.Background(), *s); err != nil {
			t.Fatalf("save settings: %v", err)
		}
	}
	return optimizer.New(zap.NewNop(), optimizer.WithSettings(store))
}

func TestLocalProcessor_FileInOptimizeFileOut(t *testing.T) {
	tmp := t.TempDir()
	inputDir := filepath.Join(tmp, "in")
	outputDir := filepath.Join(tmp, "out")
	if err := os.MkdirAll(inputDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	srcBytes := buildTestPNG(t, 240, 120)
	if err := os.WriteFile(filepath.Join(inputDir, "input.png"), srcBytes, 0o644); err != nil {
		t.Fatalf("write input image: %v", err)
	}

	s := domain.DefaultImageSettings()
	s.Enabled = true
	s.Format = domain.FormatJPEG
	s.MaxWidth = 80
	s.MaxHeight = 80

	processor, err := NewLocalProcessor(inputDir, outputDir, newEngine(t, &s))
	if err != nil {
		t.Fatalf("new local processor: %v", err)
	}

	result, err := processor.Process(context.Background(), Request{
		MediaID:    "media-local-1",
		SourceType: SourceTypeLocalFile,
		ObjectKey:  "input.png",
	})
	if err != nil {
		t.Fatalf("process request: %v", err)
	}

	if result.Skipped {
		t.Fatal("expected optimization to run")
	}
	if result.SourceBytes != len(srcBytes) {
		t.Fatalf("expected source bytes %d, got %d", len(srcBytes), result.SourceBytes)
	}
	out := result.Output
	if out.Format != domain.FormatJPEG || out.MimeType != "image/jpeg" {
		t.Fatalf("unexpected output format %s %s", out.Format, out.MimeType)
	}
	if want := OutputKey("media-local-1", domain.FormatJPEG); out.Key != want {
		t.Fatalf("expected relative key %s, got %s", want, out.Key)
	}
	if filepath.IsAbs(out.Key) {
		t.Fatalf("expected a key relative to the output dir, got %s", out.Key)
	}
	if out.Width != 80 || out.Height != 40 {
		t.Fatalf("expected 80x40, got %dx%d", out.Width, out.Height)
	}
	verifyImageWidth(t, filepath.Join(outputDir, filepath.FromSlash(out.Key)), 80)
}

func TestLocalProcessor_DisabledSettingsSkip(t *testing.T) {
	tmp := t.TempDir()
	input := filepath.Join(tmp, "input.png")
	if err := os.WriteFile(input, buildTestPNG(t, 50, 50), 0o644); err != nil {
		t.Fatalf("write input image: %v", err)
	}
	outputDir := filepath.Join(tmp, "out")

	processor, err := NewLocalProcessor("", outputDir, newEngine(t, nil))
	if err != nil {
		t.Fatalf("new local processor: %v", err)
	}

	result, err := processor.Process(context.Background(), Request{
		MediaID:    "media-disabled",
		SourceType: SourceTypeLocalFile,
		ObjectKey:  input,
	})
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if !result.Skipped {
		t.Fatal("expected skipped result")
	}
	if _, err := os.Stat(outputDir); !os.IsNotExist(err) {
		t.Fatalf("expected nothing emitted, stat err=%v", err)
	}
}

func TestLocalProcessor_ExplicitOptionsIgnoreSettings(t *testing.T) {
	tmp := t.TempDir()
	input := filepath.Join(tmp, "input.png")
	if err := os.WriteFile(input, buildTestPNG(t, 300, 150), 0o644); err != nil {
		t.Fatalf("write input image: %v", err)
	}

	processor, err := NewLocalProcessor("", filepath.Join(tmp, "out"), newEngine(t, nil))
	if err != nil {
		t.Fatalf("new local processor: %v", err)
	}

	result, err := processor.Process(context.Background(), Request{
		MediaID:    "media-explicit",
		SourceType: SourceTypeLocalFile,
		ObjectKey:  input,
		Options:    &optimizer.Options{Format: domain.FormatPNG, MaxWidth: 100, MaxHeight: 100},
	})
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if result.Skipped || result.Output.Width != 100 || result.Output.Height != 50 {
		t.Fatalf("unexpected result %+v", result)
	}
}

func TestLocalProcessor_RejectsEscapingKeys(t *testing.T) {
	processor, err := NewLocalProcessor(t.TempDir(), t.TempDir(), newEngine(t, nil))
	if err != nil {
		t.Fatalf("new local processor: %v", err)
	}

	_, err = processor.Process(context.Background(), Request{
		MediaID:    "media-escape",
		SourceType: SourceTypeLocalFile,
		ObjectKey:  "../../etc/passwd",
	})
	if !errors.Is(err, ErrSourceOutsideRoot) {
		t.Fatalf("expected ErrSourceOutsideRoot, got %v", err)
	}
}

func TestLocalProcessor_UnsupportedSourceType(t *testing.T) {
	processor, err := NewLocalProcessor("", t.TempDir(), newEngine(t, nil))
	if err != nil {
		t.Fatalf("new local processor: %v", err)
	}

	_, err = processor.Process(context.Background(), Request{
		MediaID:    "media-unsupported",
		SourceType: "s3_presigned",
		ObjectKey:  "uploads/media/source",
	})
	if !errors.Is(err, ErrUnsupportedSourceType) {
		t.Fatalf("expected unsupported source_type error, got %v", err)
	}
}

func TestProcessor_DecodeFailureSurfaces(t *testing.T) {
	s := domain.DefaultImageSettings()
	s.Enabled = true

	processor, err := NewProcessor(staticFetcher{data: []byte("garbage")}, newEngine(t, &s), discardEmitter{})
	if err != nil {
		t.Fatalf("new processor: %v", err)
	}

	_, err = processor.Process(context.Background(), Request{MediaID: "m", SourceType: SourceTypeLocalFile})
	if !errors.Is(err, optimizer.ErrDecode) {
		t.Fatalf("expected ErrDecode, got %v", err)
	}
}

func TestObjectStoreProcessor_WritesOptimizedKey(t *testing.T) {
	store := newMemoryObjectStore()
	store.objects["uploads/m1/source"] = buildTestPNG(t, 64, 64)

	s := domain.DefaultImageSettings()
	s.Enabled = true
	s.Format = domain.FormatPNG

	processor, err := NewObjectStoreProcessor(store, newEngine(t, &s))
	if err != nil {
		t.Fatalf("new object processor: %v", err)
	}

	result, err := processor.Process(context.Background(), Request{
		MediaID:    "m1",
		SourceType: domain.SourceTypeS3Presigned,
		ObjectKey:  "uploads/m1/source",
	})
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if result.Output.Key != "optimized/m1.png" {
		t.Fatalf("unexpected key %s", result.Output.Key)
	}
	if store.contentTypes["optimized/m1.png"] != "image/png" {
		t.Fatalf("unexpected content type %q", store.contentTypes["optimized/m1.png"])
	}
	if len(store.objects["optimized/m1.png"]) != result.Output.Bytes {
		t.Fatal("stored bytes do not match reported size")
	}
}

func TestOutputKeySanitizesIDs(t *testing.T) {
	if got := OutputKey("../evil id", domain.FormatWebP); got != "optimized/___evil_id.webp" {
		t.Fatalf("unexpected key %s", got)
	}
}

type memoryObjectStore struct {
	mu           sync.Mutex
	objects      map[string][]byte
	contentTypes map[string]string
}

func newMemoryObjectStore() *memoryObjectStore {
	return &memoryObjectStore{objects: map[string][]byte{}, contentTypes: map[string]string{}}
}

func (m *memoryObjectStore) ReadObject(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[key]
	if !ok {
		return nil, errors.New("no such object")
	}
	return data, nil
}

func (m *memoryObjectStore) WriteObject(_ context.Context, key string, data []byte, contentType string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = data
	m.contentTypes[key] = contentType
	return nil
}

func (m *memoryObjectStore) ObjectExists(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.objects[key]
	return ok, nil
}

func (m *memoryObjectStore) PresignedPutURL(_ context.Context, key string, _ time.Duration) (string, error) {
	return "https://storage.test/" + key + "?signed", nil
}

func (m *memoryObjectStore) PublicURL(key string) string {
	return "https://storage.test/" + key
}

func buildTestPNG(t testing.TB, w, h int) []byte {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{
				R: uint8((x * 255) / w),
				G: uint8((y * 255) / h),
				B: 140,
				A: 255,
			})
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode source png: %v", err)
	}
	return buf.Bytes()
}

func verifyImageWidth(t *testing.T, path string, want int) {
	t.Helper()

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open image %s: %v", path, err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		t.Fatalf("decode image %s: %v", path, err)
	}

	if got := img.Bounds().Dx(); got != want {
		t.Fatalf("expected width %d, got %d", want, got)
	}
}

func TestLocalFileFetcher_Exists(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "present.png"), []byte("x"), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	if err := os.Mkdir(filepath.Join(dir, "folder"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	f := LocalFileFetcher{BaseDir: dir}

	if ok, err := f.Exists("present.png"); err != nil || !ok {
		t.Fatalf("expected present file, got ok=%v err=%v", ok, err)
	}
	if ok, err := f.Exists("absent.png"); err != nil || ok {
		t.Fatalf("expected missing file, got ok=%v err=%v", ok, err)
	}
	if ok, _ := f.Exists("folder"); ok {
		t.Fatal("expected directories to be rejected")
	}
	if _, err := f.Exists("../outside.png"); !errors.Is(err, ErrSourceOutsideRoot) {
		t.Fatalf("expected ErrSourceOutsideRoot, got %v", err)
	}
}
