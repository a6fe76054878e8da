package pipeline

// Stage is a state of a pipeline run
type Stage int

const (
	StageIdle Stage = iota
	StageNormalizing
	StageSplitting
	StageTranscribing
	StageAggregating
	StageDone
	StageAborted
)

// String returns the string representation of the stage
func (s Stage) String() string {
	switch s {
	case StageIdle:
		return "idle"
	case StageNormalizing:
		return "normalizing"
	case StageSplitting:
		return "splitting"
	case StageTranscribing:
		return "transcribing"
	case StageAggregating:
		return "aggregating"
	case StageDone:
		return "done"
	case StageAborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transitions follow s
func (s Stage) Terminal() bool {
	return s == StageDone || s == StageAborted
}
