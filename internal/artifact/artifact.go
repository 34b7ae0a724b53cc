// Package artifact reads the training artifact bundle produced by the
// offline trainer. A bundle is a directory of JSON files:
//
//	feature_names.json   ordered training column list
//	label_encoders.json  column -> ordered class list (code = index)
//	target_encoder.json  ordered target classes, e.g. ["N","Y"]
//	model.json           classifier export, {"type": ..., ...}
//	metadata.json        optional {"version": ..., "trained_at": ...}
//
// The scikit-learn trainer pickles its objects; exporting them is a few
// json.dump calls after fitting:
//
//	feature_names.json   list(X.columns)
//	label_encoders.json  {col: le.classes_.tolist() for col, le in label_encoders.items()}
//	target_encoder.json  le_target.classes_.tolist()
//	model.json           {"type": "random_forest", "trees": [...]}, one entry per
//	                     estimators_[i].tree_ with children_left, children_right,
//	                     feature, threshold and value[:, 0, :] as lists
//
// Leaf values may be class counts or fractions; each leaf is normalised
// before the trees are averaged. A LogisticRegression exports as
// {"type": "logistic", "intercept": intercept_[0], "coefficients": coef_[0]}.
package artifact

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"
)

// Bundle file names.
const (
	FeatureNamesFile  = "feature_names.json"
	LabelEncodersFile = "label_encoders.json"
	TargetEncoderFile = "target_encoder.json"
	ModelFile         = "model.json"
	MetadataFile      = "metadata.json"
)

// ModelSpec is the raw classifier export. Type selects the implementation;
// Raw is the whole model.json document.
type ModelSpec struct {
	Type string
	Raw  json.RawMessage
}

// Metadata describes where a bundle came from.
type Metadata struct {
	Version   string    `json:"version"`
	TrainedAt time.Time `json:"trained_at,omitempty"`
}

// Bundle is a fully loaded artifact set.
type Bundle struct {
	Dir           string
	FeatureNames  []string
	LabelEncoders map[string][]string
	TargetClasses []string
	Model         ModelSpec
	Metadata      Metadata
}

// Load reads and checks the bundle in dir. The files are read concurrently.
func Load(ctx context.Context, dir string) (*Bundle, error) {
	b := &Bundle{Dir: dir}
	var modelRaw []byte
	var meta *Metadata

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return readJSON(gctx, dir, FeatureNamesFile, &b.FeatureNames) })
	g.Go(func() error { return readJSON(gctx, dir, LabelEncodersFile, &b.LabelEncoders) })
	g.Go(func() error { return readJSON(gctx, dir, TargetEncoderFile, &b.TargetClasses) })
	g.Go(func() error {
		raw, err := readFile(gctx, dir, ModelFile)
		modelRaw = raw
		return err
	})
	g.Go(func() error {
		var m Metadata
		err := readJSON(gctx, dir, MetadataFile, &m)
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		if err == nil {
			meta = &m
		}
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(modelRaw, &head); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", ModelFile, err)
	}
	b.Model = ModelSpec{Type: head.Type, Raw: modelRaw}

	if meta != nil {
		b.Metadata = *meta
	}
	if b.Metadata.Version == "" {
		b.Metadata.Version = contentVersion(modelRaw)
	}

	if err := b.Check(); err != nil {
		return nil, err
	}
	return b, nil
}

// Check validates the bundle's internal consistency.
func (b *Bundle) Check() error {
	if len(b.FeatureNames) == 0 {
		return fmt.Errorf("artifact: %s is empty", FeatureNamesFile)
	}
	seen := make(map[string]bool, len(b.FeatureNames))
	for _, name := range b.FeatureNames {
		if seen[name] {
			return fmt.Errorf("artifact: duplicate feature %q", name)
		}
		seen[name] = true
	}
	for col, classes := range b.LabelEncoders {
		if len(classes) == 0 {
			return fmt.Errorf("artifact: category table for %q is empty", col)
		}
	}
	if len(b.TargetClasses) < 2 {
		return fmt.Errorf("artifact: %s needs at least two classes, got %d", TargetEncoderFile, len(b.TargetClasses))
	}
	if b.Model.Type == "" {
		return fmt.Errorf("artifact: %s has no type", ModelFile)
	}
	return nil
}

// Save writes b to dir in bundle layout. Metadata is written only when it
// carries a version.
func Save(dir string, b *Bundle) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create artifact dir: %w", err)
	}
	files := map[string]any{
		FeatureNamesFile:  b.FeatureNames,
		LabelEncodersFile: b.LabelEncoders,
		TargetEncoderFile: b.TargetClasses,
		ModelFile:         b.Model.Raw,
	}
	if b.Metadata.Version != "" {
		files[MetadataFile] = b.Metadata
	}
	for name, v := range files {
		data, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode %s: %w", name, err)
		}
		if err := os.WriteFile(filepath.Join(dir, name), data, 0o644); err != nil {
			return fmt.Errorf("failed to write %s: %w", name, err)
		}
	}
	return nil
}

func readFile(ctx context.Context, dir, name string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", name, err)
	}
	return data, nil
}

func readJSON(ctx context.Context, dir, name string, v any) error {
	data, err := readFile(ctx, dir, name)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to parse %s: %w", name, err)
	}
	return nil
}

func contentVersion(raw []byte) string {
	sum := sha256.Sum256(raw)
	return "sha256:" + hex.EncodeToString(sum[:6])
}
