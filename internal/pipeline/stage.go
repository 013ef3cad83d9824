package pipeline

// Stage is one phase of a run, in execution order.
type Stage int

const (
	StageAcquire Stage = iota
	StageValidate
	StageScreen
	StageFlagOutliers
	StageIndicators
	StageAggregate
	StagePersist
)

var stageNames = [...]string{
	StageAcquire:      "acquire",
	StageValidate:     "validate",
	StageScreen:       "screen",
	StageFlagOutliers: "flag_outliers",
	StageIndicators:   "indicators",
	StageAggregate:    "aggregate",
	StagePersist:      "persist",
}

func (s Stage) String() string {
	if s < 0 || int(s) >= len(stageNames) {
		return "unknown"
	}
	return stageNames[s]
}
