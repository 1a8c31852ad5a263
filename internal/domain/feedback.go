package domain

import "fmt"

// Feedback classifies how relevant a change was to the user.
type Feedback string

const (
	FeedbackNoise    Feedback = "noise"
	FeedbackUseful   Feedback = "useful"
	FeedbackCritical Feedback = "critical"
)

// FeedbackValues lists the accepted values in display order.
var FeedbackValues = []Feedback{FeedbackNoise, FeedbackUseful, FeedbackCritical}

func (f Feedback) String() string { return string(f) }

func (f Feedback) IsValid() bool {
	switch f {
	case FeedbackNoise, FeedbackUseful, FeedbackCritical:
		return true
	}
	return false
}

// ParseFeedback converts raw input into a Feedback value.
func ParseFeedback(s string) (Feedback, error) {
	f := Feedback(s)
	if !f.IsValid() {
		return "", NewValidationError("feedback", fmt.Sprintf("unknown value %q", s))
	}
	return f, nil
}
