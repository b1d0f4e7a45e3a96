package service

import (
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"os"
	"path/filepath"
	"testing"
	"time"

	"snapsort/internal/category"
	"snapsort/internal/classify"
	"snapsort/internal/filter"
	"snapsort/internal/ingest"
	"snapsort/internal/observer"
	"snapsort/internal/store"
	"snapsort/pkg/models"
)

type fakeClassifier struct {
	result classify.Result
	err    error
}

func (f *fakeClassifier) Classify(ctx context.Context, img image.Image) (classify.Result, error) {
	return f.result, f.err
}

func (f *fakeClassifier) Close() error { return nil }

func rankedResult(label string, confidence float64) classify.Result {
	top := []classify.Prediction{{Label: label, Confidence: confidence}}
	return classify.Result{Top: top, All: top}
}

type pipelineFixture struct {
	pipeline   *Pipeline
	store      *store.Store
	stagingDir string
	metrics    *observer.MetricsObserver
}

func newPipelineFixture(t *testing.T, classifier classify.Classifier) *pipelineFixture {
	t.Helper()
	base := t.TempDir()
	stagingDir := filepath.Join(base, "uploads")
	if err := os.MkdirAll(stagingDir, 0o755); err != nil {
		t.Fatalf("Failed to create staging dir: %v", err)
	}
	st, err := store.New(filepath.Join(base, "gallery"))
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}

	publisher := observer.NewEventPublisher()
	metrics := observer.NewMetricsObserver()
	publisher.Subscribe(metrics)

	resolver := category.NewResolver(0.15, 0.10, 0.05)
	return &pipelineFixture{
		pipeline:   NewPipeline(classifier, resolver, st, publisher),
		store:      st,
		stagingDir: stagingDir,
		metrics:    metrics,
	}
}

// stageJPEG writes a small uniform-color JPEG into staging and returns the
// upload describing it.
func (f *pipelineFixture) stageJPEG(t *testing.T, filename string, c color.Color, filterID string) ingest.Upload {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 64, 64))
	for y := 0; y < 64; y++ {
		for x := 0; x < 64; x++ {
			img.Set(x, y, c)
		}
	}
	path := filepath.Join(f.stagingDir, filename)
	file, err := os.Create(path)
	if err != nil {
		t.Fatalf("Failed to create staged file: %v", err)
	}
	if err := jpeg.Encode(file, img, &jpeg.Options{Quality: 95}); err != nil {
		file.Close()
		t.Fatalf("Failed to encode staged file: %v", err)
	}
	file.Close()
	return ingest.Upload{
		ConnID:        "test-conn",
		Filename:      filename,
		StagingPath:   path,
		Filter:        filterID,
		FilterDisplay: filter.DisplayName(filterID),
		ReceivedAt:    time.Now(),
	}
}

func (f *pipelineFixture) stageBytes(t *testing.T, filename string, data []byte, filterID string) ingest.Upload {
	t.Helper()
	path := filepath.Join(f.stagingDir, filename)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("Failed to stage bytes: %v", err)
	}
	return ingest.Upload{
		ConnID:        "test-conn",
		Filename:      filename,
		StagingPath:   path,
		Filter:        filterID,
		FilterDisplay: filter.DisplayName(filterID),
		ReceivedAt:    time.Now(),
	}
}

func (f *pipelineFixture) readSidecar(t *testing.T, cat category.Category, filename string) models.PhotoMetadata {
	t.Helper()
	base := filename[:len(filename)-len(filepath.Ext(filename))]
	path := filepath.Join(f.store.Root(), cat.String(), base+".json")
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read sidecar %s: %v", path, err)
	}
	var meta models.PhotoMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		t.Fatalf("Failed to parse sidecar: %v", err)
	}
	return meta
}

func (f *pipelineFixture) galleryPath(cat category.Category, filename string) string {
	return filepath.Join(f.store.Root(), cat.String(), filename)
}

func (f *pipelineFixture) assertStagingEmpty(t *testing.T) {
	t.Helper()
	entries, err := os.ReadDir(f.stagingDir)
	if err != nil {
		t.Fatalf("Failed to read staging dir: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("Expected empty staging dir, found %d entries", len(entries))
	}
}

// waitForMetrics polls until the metrics snapshot satisfies the condition;
// observers run asynchronously.
func waitForMetrics(t *testing.T, m *observer.MetricsObserver, ok func(models.PipelineMetrics) bool) models.PipelineMetrics {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		snapshot := m.Metrics()
		if ok(snapshot) {
			return snapshot
		}
		if time.Now().After(deadline) {
			t.Fatalf("Metrics never reached expected state: %+v", snapshot)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestPipeline_StoresClassifiedPhoto(t *testing.T) {
	fx := newPipelineFixture(t, &fakeClassifier{result: rankedResult("golden retriever", 0.91)})
	up := fx.stageJPEG(t, "photo_001.jpg", color.RGBA{R: 200, G: 150, B: 100, A: 255}, filter.Normal)

	if err := fx.pipeline.Process(context.Background(), up); err != nil {
		t.Fatalf("Process returned error: %v", err)
	}

	if _, err := os.Stat(fx.galleryPath(category.Dog, "photo_001.jpg")); err != nil {
		t.Fatalf("Expected photo in dog category: %v", err)
	}
	meta := fx.readSidecar(t, category.Dog, "photo_001.jpg")
	if meta.AILabel != "Dog" {
		t.Errorf("Expected canonical label Dog, got %q", meta.AILabel)
	}
	if meta.Confidence != "91.00%" {
		t.Errorf("Expected confidence 91.00%%, got %q", meta.Confidence)
	}
	if !meta.IsAnimal {
		t.Error("Expected is_animal true for a dog")
	}
	fx.assertStagingEmpty(t)

	m := waitForMetrics(t, fx.metrics, func(m models.PipelineMetrics) bool {
		return m.Received == 1 && m.Stored == 1
	})
	if m.Failed != 0 {
		t.Errorf("Expected no failures, got %d", m.Failed)
	}
}

func TestPipeline_AppliesFilterBeforeStore(t *testing.T) {
	fx := newPipelineFixture(t, &fakeClassifier{result: rankedResult("tabby", 0.82)})
	up := fx.stageJPEG(t, "red.jpg", color.RGBA{R: 255, A: 255}, filter.BW)

	if err := fx.pipeline.Process(context.Background(), up); err != nil {
		t.Fatalf("Process returned error: %v", err)
	}

	file, err := os.Open(fx.galleryPath(category.Cat, "red.jpg"))
	if err != nil {
		t.Fatalf("Expected photo in cat category: %v", err)
	}
	defer file.Close()
	img, err := jpeg.Decode(file)
	if err != nil {
		t.Fatalf("Stored photo is not a JPEG: %v", err)
	}

	r, g, b, _ := img.At(32, 32).RGBA()
	r8, g8, b8 := int(r>>8), int(g>>8), int(b>>8)
	if abs(r8-g8) > 3 || abs(g8-b8) > 3 {
		t.Errorf("Expected grayscale pixel after bw filter, got (%d, %d, %d)", r8, g8, b8)
	}
	// Pure red maps to luma ~76; well away from the original 255.
	if r8 < 60 || r8 > 95 {
		t.Errorf("Expected darkened luma for pure red, got %d", r8)
	}

	meta := fx.readSidecar(t, category.Cat, "red.jpg")
	if meta.Filter != "Black & White" {
		t.Errorf("Expected filter display recorded, got %q", meta.Filter)
	}
}

func TestPipeline_UndecodableUploadGoesToErrorCategory(t *testing.T) {
	fx := newPipelineFixture(t, &fakeClassifier{result: rankedResult("tabby", 0.9)})
	raw := []byte("definitely not a jpeg, but big enough to have cleared the wire")
	up := fx.stageBytes(t, "broken.jpg", raw, filter.Vintage)

	if err := fx.pipeline.Process(context.Background(), up); err != nil {
		t.Fatalf("Process returned error: %v", err)
	}

	stored, err := os.ReadFile(fx.galleryPath(category.Error, "broken.jpg"))
	if err != nil {
		t.Fatalf("Expected photo in error category: %v", err)
	}
	if string(stored) != string(raw) {
		t.Error("Undecodable upload should be stored byte-for-byte as received")
	}
	meta := fx.readSidecar(t, category.Error, "broken.jpg")
	if meta.AILabel == "" {
		t.Error("Expected failure reason recorded in sidecar")
	}
	if meta.Confidence != "0.00%" {
		t.Errorf("Expected zero confidence, got %q", meta.Confidence)
	}
	if meta.IsAnimal {
		t.Error("Error category must not be flagged as animal")
	}

	waitForMetrics(t, fx.metrics, func(m models.PipelineMetrics) bool {
		return m.Received == 1 && m.Failed == 1 && m.Stored == 0
	})
}

func TestPipeline_ClassifierFaultGoesToErrorCategory(t *testing.T) {
	fx := newPipelineFixture(t, &fakeClassifier{err: errors.New("session run failed")})
	up := fx.stageJPEG(t, "photo_007.jpg", color.RGBA{R: 10, G: 20, B: 30, A: 255}, filter.Normal)

	if err := fx.pipeline.Process(context.Background(), up); err != nil {
		t.Fatalf("Process returned error: %v", err)
	}

	if _, err := os.Stat(fx.galleryPath(category.Error, "photo_007.jpg")); err != nil {
		t.Fatalf("Expected photo in error category: %v", err)
	}
	fx.assertStagingEmpty(t)
}

func TestPipeline_NonAnimalFallsBackToOther(t *testing.T) {
	fx := newPipelineFixture(t, &fakeClassifier{result: rankedResult("laptop", 0.42)})
	up := fx.stageJPEG(t, "desk.jpg", color.RGBA{R: 90, G: 90, B: 90, A: 255}, filter.Normal)

	if err := fx.pipeline.Process(context.Background(), up); err != nil {
		t.Fatalf("Process returned error: %v", err)
	}

	meta := fx.readSidecar(t, category.NonAnimal, "desk.jpg")
	if meta.AILabel != "Other" {
		t.Errorf("Expected label Other, got %q", meta.AILabel)
	}
	if meta.Confidence != "42.00%" {
		t.Errorf("Expected top-1 confidence carried through, got %q", meta.Confidence)
	}
}

func TestPipeline_MissingStagingFileIsAnError(t *testing.T) {
	fx := newPipelineFixture(t, &fakeClassifier{result: rankedResult("tabby", 0.9)})
	up := ingest.Upload{
		ConnID:        "test-conn",
		Filename:      "ghost.jpg",
		StagingPath:   filepath.Join(fx.stagingDir, "ghost.jpg"),
		Filter:        filter.Normal,
		FilterDisplay: "Normal Color",
		ReceivedAt:    time.Now(),
	}

	if err := fx.pipeline.Process(context.Background(), up); err == nil {
		t.Fatal("Expected error for missing staging file")
	}

	waitForMetrics(t, fx.metrics, func(m models.PipelineMetrics) bool {
		return m.Failed == 1
	})
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
