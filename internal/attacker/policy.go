package attacker

// ActivationPolicy controls how instance memory turns into a per-candidate
// activation score:
//
//	A = RecencyWeight   * ln(Σ w_j (t - t_j + 1)^-d)
//	  + FrequencyWeight * ln(1 + Σ w_j)
//	  + OutcomeWeight   * (Σ w_j o_j / Σ w_j)
//	  + noise * ξ
//
// where w_j is the instance weight, t_j its step, o_j = +1 on success and
// -1 on failure, d the decay rate and ξ ~ N(0,1). Candidates without
// instances score UnseenActivation + noise * ξ.
type ActivationPolicy struct {
	RecencyWeight    float64
	FrequencyWeight  float64
	OutcomeWeight    float64
	UnseenActivation float64

	// ExplorationScale is the probability of a uniform exploratory pick when
	// confidence is zero; it shrinks linearly as confidence grows.
	ExplorationScale float64
}

// DefaultActivationPolicy returns the default blend.
func DefaultActivationPolicy() ActivationPolicy {
	return ActivationPolicy{
		RecencyWeight:    1.0,
		FrequencyWeight:  0.5,
		OutcomeWeight:    1.0,
		UnseenActivation: 0.0,
		ExplorationScale: 0.2,
	}
}

// LearningPolicy controls confidence updates and memory bounds.
type LearningPolicy struct {
	// InitialConfidence is the confidence at episode start. Default: 0.5.
	InitialConfidence float64

	// SuccessGain moves confidence toward 1 on an unambiguous success,
	// scaled by the learning rate. Default: 0.1.
	SuccessGain float64

	// FailureLoss moves confidence toward 0 on a failed attack, scaled by
	// the learning rate. Default: 0.05.
	FailureLoss float64

	// DeceptionLoss is the fraction of confidence lost whenever a decoy was
	// involved. Default: 0.2.
	DeceptionLoss float64

	// PoisonWeightMin and PoisonWeightMax bound the weight multiplier of
	// instances recorded from a successful deception. Default: 0.3-0.5.
	PoisonWeightMin float64
	PoisonWeightMax float64

	// DeceptionResistance is the confidence above which decoys are seen
	// through. Default: 0.85.
	DeceptionResistance float64

	// MemoryLimit triggers pruning down to MemoryKeep instances.
	// Defaults: 150 and 100.
	MemoryLimit int
	MemoryKeep  int
}

// DefaultLearningPolicy returns the default learning policy.
func DefaultLearningPolicy() LearningPolicy {
	return LearningPolicy{
		InitialConfidence:   0.5,
		SuccessGain:         0.1,
		FailureLoss:         0.05,
		DeceptionLoss:       0.2,
		PoisonWeightMin:     0.3,
		PoisonWeightMax:     0.5,
		DeceptionResistance: 0.85,
		MemoryLimit:         150,
		MemoryKeep:          100,
	}
}
