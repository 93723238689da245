package ml

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"go.uber.org/zap"

	"greenchain-insights/models"
)

const RecommenderName = "blockchain_recommender"

// Scoring criteria in feature order.
const (
	CriterionEnergyEfficiency    = "energy_efficiency"
	CriterionTransactionSpeed    = "transaction_speed"
	CriterionDecentralization    = "decentralization"
	CriterionSustainabilityScore = "sustainability_score"
)

var Criteria = []string{
	CriterionEnergyEfficiency,
	CriterionTransactionSpeed,
	CriterionDecentralization,
	CriterionSustainabilityScore,
}

// Recommender ranks networks by a weighted sum of min-max normalised
// criteria. Scores are relative to the submitted batch: the same entity can
// score differently when the batch around it changes.
//
// The embedded model can be trained on observed scores to calibrate the
// criterion weights; see CalibrateWeights.
type Recommender struct {
	*BaseModel
	weights map[string]float64
}

func NewRecommender(opts Options, log *zap.Logger) *Recommender {
	r := &Recommender{BaseModel: newBaseModel(RecommenderName, Criteria, opts, log)}
	r.Build()
	return r
}

// Build resets the weights to their defaults and installs an unfitted estimator.
func (r *Recommender) Build() {
	r.reset(NewRidgeRegressor(r.opts.RidgeLambda), NewMinMaxScaler(), nil)
	r.weights = map[string]float64{
		CriterionEnergyEfficiency:    0.4,
		CriterionTransactionSpeed:    0.2,
		CriterionDecentralization:    0.2,
		CriterionSustainabilityScore: 0.2,
	}
}

func (r *Recommender) Weights() map[string]float64 {
	out := make(map[string]float64, len(r.weights))
	for k, v := range r.weights {
		out[k] = v
	}
	return out
}

// UpdateWeights replaces the weights with w renormalised to sum to 1.
// Criteria missing from w contribute nothing to subsequent scores; keys
// outside Criteria are rejected.
func (r *Recommender) UpdateWeights(w map[string]float64) error {
	next, err := normaliseWeights(w)
	if err != nil {
		return err
	}
	r.weights = next
	return nil
}

func normaliseWeights(w map[string]float64) (map[string]float64, error) {
	var total float64
	for k, v := range w {
		if !isCriterion(k) {
			return nil, &models.ValidationError{Field: "weights." + k, Reason: "unknown criterion"}
		}
		if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, &models.ValidationError{Field: "weights." + k, Reason: "must be a non-negative number"}
		}
		total += v
	}
	if total == 0 {
		return nil, &models.ValidationError{Field: "weights", Reason: "must contain a positive weight"}
	}
	next := make(map[string]float64, len(w))
	for k, v := range w {
		next[k] = v / total
	}
	return next, nil
}

func isCriterion(name string) bool {
	for _, c := range Criteria {
		if c == name {
			return true
		}
	}
	return false
}

// WithWeights returns a copy of r scoring with w. The trained model is
// shared, so the copy is cheap and r is left unchanged.
func (r *Recommender) WithWeights(w map[string]float64) (*Recommender, error) {
	c := &Recommender{BaseModel: r.BaseModel}
	if err := c.UpdateWeights(w); err != nil {
		return nil, err
	}
	return c, nil
}

// CriteriaFeatures derives the raw criteria of an entity in Criteria order.
func CriteriaFeatures(e models.Entity) []float64 {
	return []float64{
		1 - e.EnergyPerTransaction(),
		1 / math.Max(e.BlockTime, 0.1),
		math.Min(e.ActiveValidators/1000, 1),
		e.SustainabilityScore / 100,
	}
}

// CalculateScores ranks entities, highest score first. Ties keep input order.
func (r *Recommender) CalculateScores(entities []models.Entity) ([]models.Recommendation, error) {
	if len(entities) == 0 {
		return []models.Recommendation{}, nil
	}
	raw := make([][]float64, len(entities))
	for i, e := range entities {
		raw[i] = CriteriaFeatures(e)
	}

	scaler, err := NewMinMaxScaler().Fit(raw)
	if err != nil {
		return nil, err
	}
	norm, err := scaler.Transform(raw)
	if err != nil {
		return nil, err
	}

	out := make([]models.Recommendation, len(entities))
	for i, e := range entities {
		contributions := make([]rankedFeature, len(Criteria))
		var score float64
		for j, c := range Criteria {
			v := norm[i][j] * r.weights[c]
			contributions[j] = rankedFeature{name: c, score: v}
			score += v
		}
		out[i] = models.Recommendation{
			EntityName:    e.Name,
			WeightedScore: math.Max(0, math.Min(100, score*100)),
			Explanation:   explainRecommendation(e, contributions),
		}
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].WeightedScore > out[j].WeightedScore })
	return out, nil
}

func explainRecommendation(e models.Entity, contributions []rankedFeature) string {
	sort.SliceStable(contributions, func(i, j int) bool { return contributions[i].score > contributions[j].score })

	var sb strings.Builder
	fmt.Fprintf(&sb, "%s is recommended because:\n", e.Name)
	if e.ConsensusMechanism == models.ProofOfStake {
		sb.WriteString("- Uses energy-efficient Proof of Stake consensus\n")
	}
	for _, c := range contributions[:2] {
		fmt.Fprintf(&sb, "- Strong %s (contributing %.1f%% to score)\n", titleize(c.name), c.score*100)
	}
	fmt.Fprintf(&sb, "- Energy usage: %.6f kWh per transaction\n", e.EnergyPerTransaction())
	return sb.String()
}

// CalibrateWeights fits the embedded model to observed scores and adopts the
// positive part of the learned coefficients as the new weights. When no
// coefficient is positive the previous model and weights are kept.
func (r *Recommender) CalibrateWeights(entities []models.Entity, observed []float64) (Metrics, error) {
	X := make([][]float64, len(entities))
	for i, e := range entities {
		X[i] = CriteriaFeatures(e)
	}
	prev := r.snapshot()
	m, err := r.Train(X, observed, 0)
	if err != nil {
		return Metrics{}, err
	}
	if err := r.adoptEstimatorWeights(); err != nil {
		r.restore(prev)
		return Metrics{}, err
	}
	return m, nil
}

// Load restores a calibrated recommender and its derived weights. An
// artifact without usable weights leaves the recommender untouched.
func (r *Recommender) Load(dir string) error {
	prev := r.snapshot()
	if err := r.BaseModel.Load(dir); err != nil {
		return err
	}
	if err := r.adoptEstimatorWeights(); err != nil {
		r.restore(prev)
		return err
	}
	return nil
}

func (r *Recommender) adoptEstimatorWeights() error {
	w := make(map[string]float64, len(Criteria))
	for j, c := range Criteria {
		w[c] = math.Max(r.estimator.Coef[j], 0)
	}
	next, err := normaliseWeights(w)
	if err != nil {
		return fmt.Errorf("%s: no positive coefficients: %w", r.name, ErrComputation)
	}
	r.weights = next
	return nil
}

// SuggestOptimizations applies a fixed checklist of independent rules.
func (r *Recommender) SuggestOptimizations(e models.Entity) []models.Suggestion {
	suggestions := []models.Suggestion{}

	if e.AvgBlockSpaceUsed < 0.8 {
		priority := models.SeverityMedium
		if e.AvgBlockSpaceUsed < 0.5 {
			priority = models.SeverityHigh
		}
		suggestions = append(suggestions, models.Suggestion{
			Type:            "batching",
			Title:           "Implement Transaction Batching",
			Description:     "Combine multiple transactions to reduce overall energy usage",
			PotentialSaving: fmt.Sprintf("%.1f%% energy reduction per transaction", (1-e.AvgBlockSpaceUsed)*100),
			Priority:        priority,
		})
	}

	if e.PeakHourUsage {
		suggestions = append(suggestions, models.Suggestion{
			Type:            "timing",
			Title:           "Optimize Transaction Timing",
			Description:     "Schedule non-urgent transactions during off-peak hours",
			PotentialSaving: "Up to 20% energy cost reduction",
			Priority:        models.SeverityMedium,
		})
	}

	if e.ConsensusMechanism == models.ProofOfStake && e.ActiveValidators > 1000 {
		suggestions = append(suggestions, models.Suggestion{
			Type:            "validation",
			Title:           "Optimize Validator Setup",
			Description:     "Consider reducing validator redundancy while maintaining security",
			PotentialSaving: "Up to 15% energy reduction",
			Priority:        models.SeverityLow,
		})
	}

	return suggestions
}

var _ Model = (*Recommender)(nil)
