// Package imaging defines the image-analysis collaborator boundary: zero-shot
// classification against a closed label set, free-text description, and
// comparison against a prior report. Model inference itself lives behind the
// Classifier and Analyzer interfaces.
package imaging

import (
	"context"
	"math"
	"sort"
)

// LabelScore is one zero-shot classification result. Scores are softmax
// probabilities over the label set, so a result list sums to 1.
type LabelScore struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

// Default label sets per supported modality.
var (
	ChestXRayLabels = []string{
		"Pneumonia",
		"Cardiomegaly",
		"Pleural Effusion",
		"Pneumothorax",
		"Atelectasis",
		"Fracture",
		"Consolidation",
		"Edema",
		"Nodule",
		"Normal",
	}

	PathologyLabels = []string{
		"Benign tissue",
		"Malignant tumor",
		"Adenocarcinoma",
		"Squamous cell carcinoma",
		"Normal tissue",
		"Inflammatory infiltrate",
		"Necrosis",
	}

	DermatologyLabels = []string{
		"Melanoma",
		"Basal cell carcinoma",
		"Squamous cell carcinoma",
		"Benign nevus",
		"Seborrheic keratosis",
		"Actinic keratosis",
		"Normal skin",
	}
)

// LabelSets maps modality display names to their default label sets.
var LabelSets = map[string][]string{
	"Chest X-Ray":     ChestXRayLabels,
	"Pathology Slide": PathologyLabels,
	"Dermatology":     DermatologyLabels,
}

// LabelsFor returns the default label set for a modality, falling back to
// chest X-ray labels for unknown modalities.
func LabelsFor(modality string) []string {
	if labels, ok := LabelSets[modality]; ok {
		return labels
	}
	return ChestXRayLabels
}

// Classifier scores an image against a closed label set.
type Classifier interface {
	// Classify returns one score per label, ordered by descending score.
	Classify(ctx context.Context, image []byte, labels []string) ([]LabelScore, error)
	Available() bool
}

// Analyzer produces free-text findings from an image.
type Analyzer interface {
	// Describe generates a structured radiological description.
	Describe(ctx context.Context, image []byte, modality string) (string, error)
	// Compare analyzes the current image against a prior report.
	Compare(ctx context.Context, image []byte, priorReport, modality string) (string, error)
	Available() bool
}

// Softmax converts raw per-label logits into probabilities paired with their
// labels, ordered by descending score. The returned scores sum to 1.
func Softmax(labels []string, logits []float64) []LabelScore {
	if len(labels) == 0 || len(labels) != len(logits) {
		return nil
	}

	// Subtract the max for numerical stability.
	maxLogit := logits[0]
	for _, l := range logits[1:] {
		if l > maxLogit {
			maxLogit = l
		}
	}

	var sum float64
	exps := make([]float64, len(logits))
	for i, l := range logits {
		exps[i] = math.Exp(l - maxLogit)
		sum += exps[i]
	}

	scores := make([]LabelScore, len(labels))
	for i, label := range labels {
		scores[i] = LabelScore{Label: label, Score: exps[i] / sum}
	}
	sort.SliceStable(scores, func(i, j int) bool { return scores[i].Score > scores[j].Score })
	return scores
}
