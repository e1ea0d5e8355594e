package pricing

// InvalidRuleError is returned when a rule cannot be evaluated.
// It is surfaced to the caller that requested the evaluation and is
// never silently clamped away.
type InvalidRuleError struct {
	Field  string
	Reason string
}

func (e InvalidRuleError) Error() string {
	return e.Field + ": " + e.Reason
}
