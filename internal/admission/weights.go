package admission

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"gopkg.in/yaml.v3"
)

// Weights — параметры эвристики.
//
//	threshold: 6
//	per_task: 1
//	keywords:
//	  parallel: 4
//	  refactor: 2
type Weights struct {
	Threshold float64            `yaml:"threshold" json:"threshold"`
	PerTask   float64            `yaml:"per_task" json:"per_task"`
	Keywords  map[string]float64 `yaml:"keywords" json:"keywords"`
}

// DefaultWeights возвращает веса по умолчанию.
func DefaultWeights() Weights {
	return Weights{
		Threshold: 6,
		PerTask:   1,
		Keywords: map[string]float64{
			"parallel":     4,
			"concurrent":   4,
			"complex":      3,
			"architecture": 3,
			"migrate":      3,
			"migration":    3,
			"refactor":     2,
			"integration":  2,
			"multiple":     2,
			"system":       1,
		},
	}
}

// ParseWeights декодирует веса из YAML.
// Незаданные поля берутся из DefaultWeights.
func ParseWeights(data []byte) (Weights, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return Weights{}, fmt.Errorf("admission: weights payload is empty")
	}

	var raw struct {
		Threshold *float64           `yaml:"threshold"`
		PerTask   *float64           `yaml:"per_task"`
		Keywords  map[string]float64 `yaml:"keywords"`
	}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return Weights{}, fmt.Errorf("admission: decode weights: %w", err)
	}

	w := DefaultWeights()
	if raw.Threshold != nil {
		w.Threshold = *raw.Threshold
	}
	if raw.PerTask != nil {
		w.PerTask = *raw.PerTask
	}
	if raw.Keywords != nil {
		w.Keywords = raw.Keywords
	}
	return normalize(w)
}

// hclWeights — схема HCL-файла весов.
//
//	threshold = 6
//	per_task  = 1
//	keywords = {
//	  parallel = 4
//	  refactor = 2
//	}
type hclWeights struct {
	Threshold float64            `hcl:"threshold,optional"`
	PerTask   float64            `hcl:"per_task,optional"`
	Keywords  map[string]float64 `hcl:"keywords,optional"`
}

// ParseWeightsHCL декодирует веса из HCL.
// Незаданные атрибуты берутся из DefaultWeights.
func ParseWeightsHCL(data []byte, filename string) (Weights, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return Weights{}, fmt.Errorf("admission: weights payload is empty")
	}

	file, diags := hclparse.NewParser().ParseHCL(data, filename)
	if diags.HasErrors() {
		return Weights{}, fmt.Errorf("admission: parse weights: %w", diags)
	}

	// Отсутствующие атрибуты gohcl не трогает
	def := DefaultWeights()
	raw := hclWeights{
		Threshold: def.Threshold,
		PerTask:   def.PerTask,
		Keywords:  def.Keywords,
	}
	if diags := gohcl.DecodeBody(file.Body, nil, &raw); diags.HasErrors() {
		return Weights{}, fmt.Errorf("admission: decode weights: %w", diags)
	}

	return normalize(Weights{
		Threshold: raw.Threshold,
		PerTask:   raw.PerTask,
		Keywords:  raw.Keywords,
	})
}

// normalize приводит ключевые слова к нижнему регистру и проверяет значения.
func normalize(w Weights) (Weights, error) {
	if w.Threshold < 0 || w.PerTask < 0 {
		return Weights{}, fmt.Errorf("admission: threshold and per_task must not be negative")
	}

	keywords := make(map[string]float64, len(w.Keywords))
	for k, v := range w.Keywords {
		if v < 0 {
			return Weights{}, fmt.Errorf("admission: keyword %q has negative weight", k)
		}
		keywords[strings.ToLower(strings.TrimSpace(k))] = v
	}
	w.Keywords = keywords
	return w, nil
}

// LoadWeights читает веса из файла: .hcl — HCL, иначе YAML.
func LoadWeights(path string) (Weights, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Weights{}, fmt.Errorf("admission: read %s: %w", path, err)
	}

	var w Weights
	if filepath.Ext(path) == ".hcl" {
		w, err = ParseWeightsHCL(data, path)
	} else {
		w, err = ParseWeights(data)
	}
	if err != nil {
		return Weights{}, fmt.Errorf("admission: %s: %w", path, err)
	}
	return w, nil
}

// LoadPolicy строит ThresholdPolicy из файла весов (пустой путь —
// DefaultWeights). threshold > 0 переопределяет порог из файла.
func LoadPolicy(path string, threshold float64) (*ThresholdPolicy, error) {
	w := DefaultWeights()
	if path != "" {
		var err error
		if w, err = LoadWeights(path); err != nil {
			return nil, err
		}
	}
	if threshold > 0 {
		w.Threshold = threshold
	}
	return NewPolicy(w), nil
}
