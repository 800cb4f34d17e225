// Package review holds the SME topic comparison: similarity scoring, the approval threshold and review drafts.
package review

import (
	"math"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/cts/core"
)

// DefaultThreshold is the minimal average similarity for a subject to be approved.
const DefaultThreshold = 80.0

type PastTopic struct {
	Topic string `json:"topic"`
}

// TopicComparison compares one topic of the new course to the matching topics of the past subjects.
type TopicComparison struct {
	NewSubjectTopic      string      `json:"newSubjectTopic"`
	PastSubjectTopics    []PastTopic `json:"pastSubjectTopics"`
	SimilarityPercentage float64     `json:"similarityPercentage" validate:"percentage"`
}

func (tc TopicComparison) isEmpty() bool {
	if tc.NewSubjectTopic != "" || tc.SimilarityPercentage != 0 {
		return false
	}
	for _, pt := range tc.PastSubjectTopics {
		if pt.Topic != "" {
			return false
		}
	}
	return true
}

// Percentages returns the similarity percentage of each comparison.
func Percentages(topics []TopicComparison) []float64 {
	pcts := make([]float64, 0, len(topics))
	for _, tc := range topics {
		pcts = append(pcts, tc.SimilarityPercentage)
	}
	return pcts
}

// AverageSimilarity returns the mean of the positive percentages rounded to one decimal, 0 if there is none.
func AverageSimilarity(percentages []float64) float64 {
	var sum float64
	var n int
	for _, p := range percentages {
		if p > 0 {
			sum += p
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return roundPercentage(sum / float64(n))
}

// MeanPercentage returns the mean of all percentages, zeros included, rounded to one decimal, 0 if there is none.
func MeanPercentage(percentages []float64) float64 {
	if len(percentages) == 0 {
		return 0
	}
	var sum float64
	for _, p := range percentages {
		sum += p
	}
	return roundPercentage(sum / float64(len(percentages)))
}

func roundPercentage(p float64) float64 {
	return math.Round(p*10) / 10
}

// Qualifies reports whether `avg` reaches `threshold`.
func Qualifies(avg, threshold float64) bool {
	return avg >= threshold
}

// FormatPercentage renders a percentage the way it is shown to users ("85.5%").
func FormatPercentage(p float64) string {
	return strconv.FormatFloat(p, 'f', -1, 64) + "%"
}

// Review is an SME decision on a new course and its past subjects.
type Review struct {
	// SimilarityPercentage sent by clients is ignored; it is recomputed from the topics.
	SimilarityPercentage float64           `json:"similarity_percentage"`
	Notes                string            `json:"sme_review_notes"`
	Topics               []TopicComparison `json:"topics_comparison" validate:"required,min=1,dive"`
}

// Validate cleans the review and recomputes its average similarity.
func (r *Review) Validate(validate *validator.Validate) error {
	r.Notes = core.CleanString(r.Notes)
	for i := range r.Topics {
		r.Topics[i].NewSubjectTopic = core.CleanString(r.Topics[i].NewSubjectTopic)
		for j := range r.Topics[i].PastSubjectTopics {
			r.Topics[i].PastSubjectTopics[j].Topic = core.CleanString(r.Topics[i].PastSubjectTopics[j].Topic)
		}
	}
	if err := validate.Struct(r); err != nil {
		return err
	}
	r.SimilarityPercentage = AverageSimilarity(Percentages(r.Topics))
	if r.SimilarityPercentage <= 0 {
		return core.NewValidationError(nil, core.FieldError{
			Field: "topics_comparison",
			Error: "at least one topic must have a similarity percentage",
		})
	}
	return nil
}

// Draft is an SME review in progress, kept per application subject and SME.
type Draft struct {
	ApplicationSubjectID int               `json:"application_subject_id"`
	SMEUserID            string            `json:"-"`
	Topics               []TopicComparison `json:"topics"`
	SMENotes             string            `json:"smeNotes"`
	AverageSimilarity    float64           `json:"averageSimilarity"`
	SavedAt              time.Time         `json:"savedAt"`
}

// DraftKey names the draft of an application subject for local stores.
func DraftKey(applicationSubjectID int) string {
	return "sme_review_" + strconv.Itoa(applicationSubjectID)
}

// IsEmpty reports whether the draft carries nothing worth saving.
func (d Draft) IsEmpty() bool {
	if d.SMENotes != "" {
		return false
	}
	for _, tc := range d.Topics {
		if !tc.isEmpty() {
			return false
		}
	}
	return true
}
