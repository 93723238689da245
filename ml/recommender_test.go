package ml

import (
	"errors"
	"math"
	"strings"
	"testing"

	"greenchain-insights/models"
)

func equalWeights() map[string]float64 {
	return map[string]float64{
		CriterionEnergyEfficiency:    1,
		CriterionTransactionSpeed:    1,
		CriterionDecentralization:    1,
		CriterionSustainabilityScore: 1,
	}
}

func TestDefaultWeights(t *testing.T) {
	w := NewRecommender(DefaultOptions(), nil).Weights()
	var total float64
	for _, v := range w {
		total += v
	}
	if math.Abs(total-1) > 1e-12 {
		t.Fatalf("default weights should sum to 1, got %f", total)
	}
	if w[CriterionEnergyEfficiency] != 0.4 {
		t.Fatalf("expected energy efficiency weight 0.4, got %f", w[CriterionEnergyEfficiency])
	}
}

func TestUpdateWeightsNormalises(t *testing.T) {
	r := NewRecommender(DefaultOptions(), nil)
	if err := r.UpdateWeights(map[string]float64{CriterionEnergyEfficiency: 3, CriterionDecentralization: 1}); err != nil {
		t.Fatalf("update: %v", err)
	}
	w := r.Weights()
	if w[CriterionEnergyEfficiency] != 0.75 || w[CriterionDecentralization] != 0.25 {
		t.Fatalf("unexpected weights: %v", w)
	}
	if w[CriterionTransactionSpeed] != 0 {
		t.Fatalf("missing criteria should weigh nothing, got %v", w)
	}
}

func TestUpdateWeightsRejectsInvalid(t *testing.T) {
	r := NewRecommender(DefaultOptions(), nil)
	before := r.Weights()

	var ve *models.ValidationError
	if err := r.UpdateWeights(map[string]float64{CriterionEnergyEfficiency: -1}); !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError for negative weight, got %v", err)
	}
	if err := r.UpdateWeights(map[string]float64{CriterionEnergyEfficiency: 0}); !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError for all-zero weights, got %v", err)
	}
	if err := r.UpdateWeights(map[string]float64{"energy_effciency": 1}); !errors.As(err, &ve) || ve.Field != "weights.energy_effciency" {
		t.Fatalf("expected ValidationError for unknown criterion, got %v", err)
	}
	after := r.Weights()
	for k, v := range before {
		if after[k] != v {
			t.Fatalf("rejected update changed weight %s: %f -> %f", k, v, after[k])
		}
	}
}

func TestWithWeightsLeavesOriginal(t *testing.T) {
	r := NewRecommender(DefaultOptions(), nil)
	c, err := r.WithWeights(equalWeights())
	if err != nil {
		t.Fatalf("with weights: %v", err)
	}
	if c.Weights()[CriterionEnergyEfficiency] != 0.25 {
		t.Fatalf("copy should use equal weights, got %v", c.Weights())
	}
	if r.Weights()[CriterionEnergyEfficiency] != 0.4 {
		t.Fatalf("original weights changed: %v", r.Weights())
	}
}

func TestCalculateScoresLowerEnergyWins(t *testing.T) {
	r, err := NewRecommender(DefaultOptions(), nil).WithWeights(equalWeights())
	if err != nil {
		t.Fatalf("with weights: %v", err)
	}
	entities := []models.Entity{
		{Name: "heavy", TransactionCount: 1000, EnergyUsageKWh: 10, BlockTime: 5, ActiveValidators: 100},
		{Name: "light", TransactionCount: 1000, EnergyUsageKWh: 0.1, BlockTime: 5, ActiveValidators: 100, ConsensusMechanism: models.ProofOfStake},
	}

	ranked, err := r.CalculateScores(entities)
	if err != nil {
		t.Fatalf("score: %v", err)
	}
	if ranked[0].EntityName != "light" {
		t.Fatalf("expected light first, got %+v", ranked)
	}
	if ranked[0].WeightedScore < ranked[1].WeightedScore {
		t.Fatalf("scores not descending: %+v", ranked)
	}
	if math.Abs(ranked[0].WeightedScore-25) > 1e-9 || ranked[1].WeightedScore != 0 {
		t.Fatalf("expected scores 25 and 0, got %f and %f", ranked[0].WeightedScore, ranked[1].WeightedScore)
	}
	for _, want := range []string{"light is recommended because:", "Proof of Stake", "0.000100 kWh per transaction"} {
		if !strings.Contains(ranked[0].Explanation, want) {
			t.Fatalf("explanation missing %q:\n%s", want, ranked[0].Explanation)
		}
	}
}

func TestCalculateScoresStableTies(t *testing.T) {
	r := NewRecommender(DefaultOptions(), nil)
	entities := []models.Entity{
		{Name: "a", TransactionCount: 10, EnergyUsageKWh: 1, BlockTime: 2},
		{Name: "b", TransactionCount: 10, EnergyUsageKWh: 1, BlockTime: 2},
		{Name: "c", TransactionCount: 10, EnergyUsageKWh: 1, BlockTime: 2},
	}
	ranked, err := r.CalculateScores(entities)
	if err != nil {
		t.Fatalf("score: %v", err)
	}
	for i, name := range []string{"a", "b", "c"} {
		if ranked[i].EntityName != name {
			t.Fatalf("ties should keep input order, got %+v", ranked)
		}
		if ranked[i].WeightedScore < 0 || ranked[i].WeightedScore > 100 {
			t.Fatalf("score out of range: %f", ranked[i].WeightedScore)
		}
	}

	empty, err := r.CalculateScores(nil)
	if err != nil || len(empty) != 0 {
		t.Fatalf("expected empty ranking, got %v, %v", empty, err)
	}
}

func calibrationSet() ([]models.Entity, []float64) {
	var entities []models.Entity
	var observed []float64
	for i := 0; i < 30; i++ {
		e := models.Entity{
			Name:                "net",
			TransactionCount:    1000,
			EnergyUsageKWh:      float64(i%10) * 10,
			BlockTime:           float64(1 + (i*7)%5),
			ActiveValidators:    float64(100 * ((i * 3) % 8)),
			SustainabilityScore: float64(10 * ((i * 13) % 9)),
		}
		f := CriteriaFeatures(e)
		entities = append(entities, e)
		observed = append(observed, 100*f[0]+50*f[3])
	}
	return entities, observed
}

func TestCalibrateWeights(t *testing.T) {
	opts := DefaultOptions()
	opts.RidgeLambda = 0.01
	r := NewRecommender(opts, nil)

	entities, observed := calibrationSet()
	if _, err := r.CalibrateWeights(entities, observed); err != nil {
		t.Fatalf("calibrate: %v", err)
	}
	w := r.Weights()
	if w[CriterionEnergyEfficiency]+w[CriterionSustainabilityScore] < 0.95 {
		t.Fatalf("calibrated weights should favour the observed criteria: %v", w)
	}

	dir := t.TempDir()
	if _, err := r.Save(dir); err != nil {
		t.Fatalf("save: %v", err)
	}
	loaded := NewRecommender(opts, nil)
	if err := loaded.Load(dir); err != nil {
		t.Fatalf("load: %v", err)
	}
	for k, v := range w {
		if math.Abs(loaded.Weights()[k]-v) > 1e-12 {
			t.Fatalf("weight %s not restored: %f vs %f", k, loaded.Weights()[k], v)
		}
	}
}

// penalisingScores falls as every criterion improves, so no learned
// coefficient is positive.
func penalisingScores(entities []models.Entity) []float64 {
	out := make([]float64, len(entities))
	for i, e := range entities {
		f := CriteriaFeatures(e)
		out[i] = 100 - 100*f[0] - 20*f[1] - 30*f[2] - 40*f[3]
	}
	return out
}

func TestCalibrateWeightsWithoutPositiveCoefficients(t *testing.T) {
	opts := DefaultOptions()
	opts.RidgeLambda = 0.01
	entities, observed := calibrationSet()

	fresh := NewRecommender(opts, nil)
	if _, err := fresh.CalibrateWeights(entities, penalisingScores(entities)); !errors.Is(err, ErrComputation) {
		t.Fatalf("expected ErrComputation, got %v", err)
	}
	if fresh.Trained() {
		t.Fatalf("rejected calibration must leave the recommender untrained")
	}
	if fresh.Weights()[CriterionEnergyEfficiency] != 0.4 {
		t.Fatalf("rejected calibration changed the weights: %v", fresh.Weights())
	}

	r := NewRecommender(opts, nil)
	if _, err := r.CalibrateWeights(entities, observed); err != nil {
		t.Fatalf("calibrate: %v", err)
	}
	before, metrics := r.Weights(), r.Metrics()
	if _, err := r.CalibrateWeights(entities, penalisingScores(entities)); !errors.Is(err, ErrComputation) {
		t.Fatalf("expected ErrComputation, got %v", err)
	}
	if !r.Trained() || r.Metrics() != metrics {
		t.Fatalf("rejected calibration replaced the model: %+v vs %+v", r.Metrics(), metrics)
	}
	for k, v := range before {
		if r.Weights()[k] != v {
			t.Fatalf("weight %s changed: %f -> %f", k, v, r.Weights()[k])
		}
	}

	dir := t.TempDir()
	if _, err := r.Save(dir); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := NewRecommender(opts, nil).Load(dir); err != nil {
		t.Fatalf("artifact saved after a rejected calibration must load: %v", err)
	}
}

func TestLoadRejectsArtifactWithoutPositiveCoefficients(t *testing.T) {
	opts := DefaultOptions()
	opts.RidgeLambda = 0.01
	entities, _ := calibrationSet()
	X := make([][]float64, len(entities))
	for i, e := range entities {
		X[i] = CriteriaFeatures(e)
	}

	bad := NewRecommender(opts, nil)
	if _, err := bad.BaseModel.Train(X, penalisingScores(entities), 0); err != nil {
		t.Fatalf("train: %v", err)
	}
	dir := t.TempDir()
	if _, err := bad.Save(dir); err != nil {
		t.Fatalf("save: %v", err)
	}

	r := NewRecommender(opts, nil)
	if err := r.Load(dir); !errors.Is(err, ErrComputation) {
		t.Fatalf("expected ErrComputation, got %v", err)
	}
	if r.Trained() || r.Weights()[CriterionEnergyEfficiency] != 0.4 {
		t.Fatalf("rejected artifact changed the recommender: trained=%v weights=%v", r.Trained(), r.Weights())
	}
}

func TestSuggestOptimizations(t *testing.T) {
	r := NewRecommender(DefaultOptions(), nil)

	all := r.SuggestOptimizations(models.Entity{
		Name:               "busy",
		ConsensusMechanism: models.ProofOfStake,
		ActiveValidators:   1500,
		AvgBlockSpaceUsed:  0.3,
		PeakHourUsage:      true,
	})
	if len(all) != 3 {
		t.Fatalf("expected 3 suggestions, got %+v", all)
	}
	if all[0].Type != "batching" || all[0].Priority != models.SeverityHigh {
		t.Fatalf("unexpected batching suggestion: %+v", all[0])
	}
	if all[0].PotentialSaving != "70.0% energy reduction per transaction" {
		t.Fatalf("unexpected saving: %q", all[0].PotentialSaving)
	}
	if all[1].Type != "timing" || all[2].Type != "validation" || all[2].Priority != models.SeverityLow {
		t.Fatalf("unexpected suggestions: %+v", all)
	}

	medium := r.SuggestOptimizations(models.Entity{Name: "half", AvgBlockSpaceUsed: 0.6})
	if len(medium) != 1 || medium[0].Priority != models.SeverityMedium {
		t.Fatalf("expected one medium batching suggestion, got %+v", medium)
	}

	none := r.SuggestOptimizations(models.Entity{Name: "full", AvgBlockSpaceUsed: 0.9, ConsensusMechanism: models.ProofOfWork, ActiveValidators: 5000})
	if none == nil || len(none) != 0 {
		t.Fatalf("expected an empty, non-nil list, got %#v", none)
	}
}
