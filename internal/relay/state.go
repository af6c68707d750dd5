package relay

// State is where a single relay request sits in the pipeline.
type State int

const (
	Idle State = iota
	AwaitingMap
	AwaitingTranslation
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case AwaitingMap:
		return "awaiting_map"
	case AwaitingTranslation:
		return "awaiting_translation"
	default:
		return "unknown"
	}
}

// Step is an input to the request state machine.
type Step int

const (
	// StepSubmit starts mapping for text with content.
	StepSubmit Step = iota
	// StepMapped hands mapped text to the translator.
	StepMapped
	// StepDetected completes a detect-only request after mapping.
	StepDetected
	// StepTranslated completes a translation.
	StepTranslated
	// StepFailed abandons the request from any state.
	StepFailed
)

func (s Step) String() string {
	switch s {
	case StepSubmit:
		return "submit"
	case StepMapped:
		return "mapped"
	case StepDetected:
		return "detected"
	case StepTranslated:
		return "translated"
	case StepFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Next returns the state reached from s on step. Steps that do not apply to
// s leave it unchanged.
func Next(s State, step Step) State {
	if step == StepFailed {
		return Idle
	}
	switch s {
	case Idle:
		if step == StepSubmit {
			return AwaitingMap
		}
	case AwaitingMap:
		switch step {
		case StepMapped:
			return AwaitingTranslation
		case StepDetected:
			return Idle
		}
	case AwaitingTranslation:
		if step == StepTranslated {
			return Idle
		}
	}
	return s
}
