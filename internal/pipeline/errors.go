package pipeline

import (
	"errors"
	"fmt"
)

// Kind classifies why a record did not complete
type Kind string

const (
	KindSourceIndex Kind = "source_index"
	KindEligibility Kind = "eligibility"
	KindService     Kind = "service"
	KindPersist     Kind = "persist"
)

// Step names a stage of the per-record chain
type Step string

const (
	StepResolve  Step = "resolve"
	StepValidate Step = "validate"
	StepInput    Step = "input"
	StepPrompt   Step = "prompt"
	StepImage    Step = "image"
	StepStore    Step = "store"
	StepUpload   Step = "upload"
)

// ErrIneligible is wrapped by every eligibility failure
var ErrIneligible = errors.New("record is not eligible for processing")

// Failure is the failed result of a step. A nil *Failure means the step
// succeeded.
type Failure struct {
	Kind     Kind
	Step     Step
	RecordID string
	Err      error
}

func (f *Failure) Error() string {
	return fmt.Sprintf("%s failed for record %q (%s): %v", f.Step, f.RecordID, f.Kind, f.Err)
}

func (f *Failure) Unwrap() error {
	return f.Err
}

func fail(kind Kind, step Step, id string, err error) *Failure {
	return &Failure{Kind: kind, Step: step, RecordID: id, Err: err}
}
