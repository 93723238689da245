package models

const (
	FocusEnergy       = "energy"
	FocusEmissions    = "emissions"
	FocusTransactions = "transactions"
)

// Learning goal keys, each rated 0..5.
const (
	GoalEnergyEfficiency = "energyEfficiency"
	GoalEmissions        = "emissions"
)

// AlertThresholds holds per-metric limits. Zero disables a metric.
type AlertThresholds struct {
	Energy       float64 `json:"energy"`
	Emissions    float64 `json:"emissions"`
	Transactions float64 `json:"transactions"`
}

type UserPreferences struct {
	FocusAreas      []string        `json:"focusAreas"`
	AlertThresholds AlertThresholds `json:"alertThresholds"`
}

type LearningGoals map[string]float64

// DefaultPreferences focuses on every area with all alerts disabled.
func DefaultPreferences() UserPreferences {
	return UserPreferences{
		FocusAreas: []string{FocusEmissions, FocusEnergy, FocusTransactions},
	}
}

func (p UserPreferences) Focused(area string) bool {
	for _, a := range p.FocusAreas {
		if a == area {
			return true
		}
	}
	return false
}

func (p *UserPreferences) Validate() error {
	for _, a := range p.FocusAreas {
		switch a {
		case FocusEnergy, FocusEmissions, FocusTransactions:
		default:
			return &ValidationError{Field: "focusAreas", Reason: "unknown focus area " + a}
		}
	}
	t := p.AlertThresholds
	if t.Energy < 0 || t.Emissions < 0 || t.Transactions < 0 {
		return &ValidationError{Field: "alertThresholds", Reason: "must be non-negative"}
	}
	return nil
}

func (g LearningGoals) Validate() error {
	for k, v := range g {
		if v < 0 || v > 5 {
			return &ValidationError{Field: "learningGoals." + k, Reason: "must be between 0 and 5"}
		}
	}
	return nil
}
