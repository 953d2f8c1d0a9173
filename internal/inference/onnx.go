package inference

import (
	"bufio"
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/mmynk/plantid/internal/observability"
)

// ONNXConfig configures an ONNXClassifier.
type ONNXConfig struct {
	ModelPath   string
	LabelsPath  string
	LibraryPath string
	Version     string
	InputSize   int
	InputName   string
	OutputName  string

	// Softmax converts raw logits to probabilities before ranking.
	Softmax bool

	// TopK caps the number of candidates returned per image.
	TopK int
}

// label maps one output class to a catalog species.
type label struct {
	speciesID      string
	scientificName string
	commonNames    []string
}

// ONNXClassifier is a Predictor running an image classifier with ONNX Runtime.
// The model is loaded on the first Predict call.
type ONNXClassifier struct {
	cfg ONNXConfig

	mu           sync.Mutex
	loaded       bool
	session      *ort.AdvancedSession
	inputTensor  *ort.Tensor[float32]
	outputTensor *ort.Tensor[float32]
	labels       []label
}

var _ Predictor = (*ONNXClassifier)(nil)

// NewONNXClassifier creates a classifier. Nothing is loaded until the first prediction.
func NewONNXClassifier(cfg ONNXConfig) *ONNXClassifier {
	if cfg.InputSize == 0 {
		cfg.InputSize = 224
	}
	if cfg.InputName == "" {
		cfg.InputName = "input"
	}
	if cfg.OutputName == "" {
		cfg.OutputName = "output"
	}
	if cfg.TopK == 0 {
		cfg.TopK = 5
	}
	return &ONNXClassifier{cfg: cfg}
}

// Predict classifies the image at handle (a local path or file:// URI).
func (c *ONNXClassifier) Predict(ctx context.Context, handle string) ([]Candidate, error) {
	img, err := loadImage(handle)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.loadLocked(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrModelNotReady, err)
	}

	start := time.Now()
	copy(c.inputTensor.GetData(), imageToFloat32CHW(img, c.cfg.InputSize, c.cfg.InputSize, imageNetMean, imageNetStd))
	if err := c.session.Run(); err != nil {
		return nil, fmt.Errorf("%w: run classifier: %v", ErrModelNotReady, err)
	}
	observability.InferenceDuration.Observe(time.Since(start).Seconds())

	scores := make([]float32, len(c.labels))
	copy(scores, c.outputTensor.GetData())
	if c.cfg.Softmax {
		softmax(scores)
	}

	var candidates []Candidate
	for _, i := range topK(scores, c.cfg.TopK) {
		l := c.labels[i]
		candidates = append(candidates, Candidate{
			SpeciesID:      l.speciesID,
			Confidence:     float64(scores[i]),
			ScientificName: l.scientificName,
			CommonNames:    l.commonNames,
		})
	}
	return candidates, nil
}

// Load creates the model session ahead of the first prediction.
func (c *ONNXClassifier) Load() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.loadLocked(); err != nil {
		return fmt.Errorf("%w: %v", ErrModelNotReady, err)
	}
	return nil
}

// Loaded reports whether the model session has been created.
func (c *ONNXClassifier) Loaded() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loaded
}

// Info describes the model.
func (c *ONNXClassifier) Info() ModelInfo {
	c.mu.Lock()
	defer c.mu.Unlock()
	return ModelInfo{
		Version:       c.cfg.Version,
		InputShape:    []int64{1, 3, int64(c.cfg.InputSize), int64(c.cfg.InputSize)},
		OutputClasses: len(c.labels),
		Loaded:        c.loaded,
	}
}

// Close releases the ONNX session and tensors.
func (c *ONNXClassifier) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session != nil {
		c.session.Destroy()
	}
	if c.inputTensor != nil {
		c.inputTensor.Destroy()
	}
	if c.outputTensor != nil {
		c.outputTensor.Destroy()
	}
	c.session, c.inputTensor, c.outputTensor = nil, nil, nil
	c.loaded = false
}

func (c *ONNXClassifier) loadLocked() error {
	if c.loaded {
		return nil
	}
	if c.cfg.ModelPath == "" {
		return fmt.Errorf("no model path configured")
	}

	labels, err := readLabels(c.cfg.LabelsPath)
	if err != nil {
		return err
	}

	if !ort.IsInitialized() {
		if c.cfg.LibraryPath != "" {
			ort.SetSharedLibraryPath(c.cfg.LibraryPath)
		}
		if err := ort.InitializeEnvironment(); err != nil {
			return fmt.Errorf("init onnxruntime: %w", err)
		}
	}

	size := int64(c.cfg.InputSize)
	inputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(1, 3, size, size))
	if err != nil {
		return fmt.Errorf("create input tensor: %w", err)
	}
	outputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(1, int64(len(labels))))
	if err != nil {
		inputTensor.Destroy()
		return fmt.Errorf("create output tensor: %w", err)
	}

	session, err := ort.NewAdvancedSession(c.cfg.ModelPath,
		[]string{c.cfg.InputName},
		[]string{c.cfg.OutputName},
		[]ort.Value{inputTensor},
		[]ort.Value{outputTensor},
		nil,
	)
	if err != nil {
		inputTensor.Destroy()
		outputTensor.Destroy()
		return fmt.Errorf("create classifier session: %w", err)
	}

	c.session = session
	c.inputTensor = inputTensor
	c.outputTensor = outputTensor
	c.labels = labels
	c.loaded = true
	slog.Info("Identification model loaded", "model", c.cfg.ModelPath, "classes", len(labels), "version", c.cfg.Version)
	return nil
}

// readLabels parses a labels file: one class per line, in output order, as
// tab-separated species ID, scientific name and semicolon-separated common names.
func readLabels(path string) ([]label, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open labels: %w", err)
	}
	defer f.Close()

	labels, err := parseLabels(bufio.NewScanner(f))
	if err != nil {
		return nil, fmt.Errorf("read labels %s: %w", path, err)
	}
	return labels, nil
}

func parseLabels(scanner *bufio.Scanner) ([]label, error) {
	var labels []label
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Split(line, "\t")
		l := label{speciesID: strings.TrimSpace(fields[0])}
		if len(fields) > 1 {
			l.scientificName = strings.TrimSpace(fields[1])
		}
		if len(fields) > 2 && fields[2] != "" {
			for _, name := range strings.Split(fields[2], ";") {
				if name = strings.TrimSpace(name); name != "" {
					l.commonNames = append(l.commonNames, name)
				}
			}
		}
		labels = append(labels, l)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if len(labels) == 0 {
		return nil, fmt.Errorf("no labels")
	}
	return labels, nil
}

func loadImage(handle string) (image.Image, error) {
	path := strings.TrimPrefix(handle, "file://")
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", ErrInvalidImage, path, err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%w: decode %s: %v", ErrInvalidImage, path, err)
	}
	return img, nil
}
