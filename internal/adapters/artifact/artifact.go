// Package artifact loads fitted model parameters from disk.
//
// An artifact is a YAML (or JSON) document:
//
//	version: "2024-03-01"
//	features: [Pclass, Age, SibSp, Parch, Fare, Sex_male, Embarked_Q, Embarked_S]
//	weights: [-1.05, -0.039, ...]
//	bias: 4.98
//
// weights and bias are required. features is optional; when present it must
// equal schema.FeatureOrder exactly.
package artifact

import (
	"context"
	"fmt"
	"io"
	"os"
	"slices"

	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"

	"github.com/okian/lifeboat/internal/domain/schema"
	"github.com/okian/lifeboat/internal/domain/scoring"
)

// maxArtifactBytes bounds how much of the file is read.
const maxArtifactBytes = 1 << 20

// Metadata describes a loaded artifact.
type Metadata struct {
	Path        string   `json:"path"`
	Version     string   `json:"version,omitempty"`
	TrainedAt   string   `json:"trained_at,omitempty"`
	Description string   `json:"description,omitempty"`
	Features    []string `json:"features"`
}

type document struct {
	Version     string    `koanf:"version"`
	TrainedAt   string    `koanf:"trained_at"`
	Description string    `koanf:"description"`
	Features    []string  `koanf:"features"`
	Weights     []float64 `koanf:"weights"`
	Bias        float64   `koanf:"bias"`
}

// Load reads the artifact at path and builds the scoring model. Any failure
// is wrapped with ErrModelLoad; callers should refuse to serve on error.
func Load(ctx context.Context, path string) (*scoring.Model, Metadata, error) {
	if err := ctx.Err(); err != nil {
		return nil, Metadata{}, fmt.Errorf("%w: %w", ErrModelLoad, err)
	}
	if path == "" {
		return nil, Metadata{}, fmt.Errorf("%w: empty model path", ErrModelLoad)
	}

	raw, err := readFile(path)
	if err != nil {
		return nil, Metadata{}, fmt.Errorf("%w: %w", ErrModelLoad, err)
	}

	m, meta, err := Parse(raw)
	if err != nil {
		return nil, Metadata{}, fmt.Errorf("%w: %s: %w", ErrModelLoad, path, err)
	}
	meta.Path = path
	return m, meta, nil
}

// Parse decodes artifact bytes. It does not wrap errors with ErrModelLoad.
func Parse(raw []byte) (*scoring.Model, Metadata, error) {
	k := koanf.New(".")
	if err := k.Load(rawbytes.Provider(raw), yaml.Parser()); err != nil {
		return nil, Metadata{}, fmt.Errorf("%w: %w", ErrMalformed, err)
	}

	for _, key := range []string{"weights", "bias"} {
		if k.Get(key) == nil {
			return nil, Metadata{}, fmt.Errorf("%w: %q", ErrMissingField, key)
		}
	}

	// Values are taken as written: a quoted number or a boolean weight is a
	// malformed artifact, not something to coerce.
	var doc document
	if err := k.UnmarshalWithConf("", &doc, koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			Result:           &doc,
			WeaklyTypedInput: false,
		},
	}); err != nil {
		return nil, Metadata{}, fmt.Errorf("%w: %w", ErrMalformed, err)
	}

	order := schema.FeatureOrder()
	if len(doc.Features) > 0 && !slices.Equal(doc.Features, order) {
		return nil, Metadata{}, fmt.Errorf("%w: artifact has %v, encoder produces %v",
			ErrFeatureOrder, doc.Features, order)
	}
	if len(doc.Weights) != len(order) {
		return nil, Metadata{}, fmt.Errorf("%w: %d weights for %d features",
			ErrFeatureOrder, len(doc.Weights), len(order))
	}

	m, err := scoring.New(doc.Weights, doc.Bias)
	if err != nil {
		return nil, Metadata{}, err
	}

	return m, Metadata{
		Version:     doc.Version,
		TrainedAt:   doc.TrainedAt,
		Description: doc.Description,
		Features:    order,
	}, nil
}

// readFile holds the file handle only for the duration of the read.
func readFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	b, err := io.ReadAll(io.LimitReader(f, maxArtifactBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if len(b) > maxArtifactBytes {
		return nil, fmt.Errorf("%w: %s exceeds %d bytes", ErrMalformed, path, maxArtifactBytes)
	}
	return b, nil
}
