package models

// EpisodeResult is the outcome of a single simulated episode.
// It is produced once by the environment and treated as immutable afterwards.
type EpisodeResult struct {
	// Identity
	EpisodeIndex int    `json:"episode_index" yaml:"episode_index"`
	Seed         int64  `json:"seed" yaml:"seed"`
	Strategy     string `json:"strategy" yaml:"strategy"`

	// Reward
	TotalReward         float64   `json:"total_reward" yaml:"total_reward"`
	TimestepRewards     []float64 `json:"timestep_rewards" yaml:"timestep_rewards"`
	CostComponent       float64   `json:"cost_component" yaml:"cost_component"`
	CompromiseComponent float64   `json:"compromise_component" yaml:"compromise_component"`
	BonusComponent      float64   `json:"bonus_component" yaml:"bonus_component"`

	// CostByAction holds each action's (negative) contribution to CostComponent.
	CostByAction map[Action]float64 `json:"cost_by_action" yaml:"cost_by_action"`

	// Defender activity
	ActionCounts       map[Action]int `json:"action_counts" yaml:"action_counts"`
	RestoreNodeCount   int            `json:"restore_node_count" yaml:"restore_node_count"`
	DeceptionsDeployed int            `json:"deceptions_deployed" yaml:"deceptions_deployed"`

	// CognitiveLatencyExploitations counts deceptions deployed inside the
	// attacker's latency window that the attacker then fell for.
	CognitiveLatencyExploitations int `json:"cognitive_latency_exploitations" yaml:"cognitive_latency_exploitations"`

	// Attacker activity
	AttacksAttempted        int     `json:"attacks_attempted" yaml:"attacks_attempted"`
	AttacksSucceeded        int     `json:"attacks_succeeded" yaml:"attacks_succeeded"`
	AttacksDeceived         int     `json:"attacks_deceived" yaml:"attacks_deceived"`
	DeceptionsSeenThrough   int     `json:"deceptions_seen_through" yaml:"deceptions_seen_through"`
	FinalAttackerConfidence float64 `json:"final_attacker_confidence" yaml:"final_attacker_confidence"`

	// Network outcome. Steps excludes the WarmupSteps played before
	// recording started.
	Steps                 int             `json:"steps" yaml:"steps"`
	WarmupSteps           int             `json:"warmup_steps" yaml:"warmup_steps"`
	FinalCompromisedRatio float64         `json:"final_compromised_ratio" yaml:"final_compromised_ratio"`
	TerminationReason     string          `json:"termination_reason" yaml:"termination_reason"`
	TopologyMetrics       TopologyMetrics `json:"topology_metrics" yaml:"topology_metrics"`
}

// TopologyMetrics summarises the structure of an episode's network.
type TopologyMetrics struct {
	Type                string  `json:"type" yaml:"type"`
	Nodes               int     `json:"nodes" yaml:"nodes"`
	Edges               int     `json:"edges" yaml:"edges"`
	Hubs                int     `json:"hubs" yaml:"hubs"`
	Density             float64 `json:"density" yaml:"density"`
	AverageClustering   float64 `json:"average_clustering" yaml:"average_clustering"`
	MeanDegree          float64 `json:"mean_degree" yaml:"mean_degree"`
	MaxDegreeCentrality float64 `json:"max_degree_centrality" yaml:"max_degree_centrality"`
	AveragePathLength   float64 `json:"average_path_length" yaml:"average_path_length"`
	Diameter            int     `json:"diameter" yaml:"diameter"`
	Assortativity       float64 `json:"assortativity" yaml:"assortativity"`
}

// EpisodeFailure records an episode that was aborted.
type EpisodeFailure struct {
	EpisodeIndex int            `json:"episode_index" yaml:"episode_index"`
	Seed         int64          `json:"seed" yaml:"seed"`
	Strategy     string         `json:"strategy" yaml:"strategy"`
	Error        string         `json:"error" yaml:"error"`
	Diagnostic   map[string]any `json:"diagnostic,omitempty" yaml:"diagnostic,omitempty"`
}

// Rewards returns the total rewards of results in order.
func Rewards(results []EpisodeResult) []float64 {
	out := make([]float64, len(results))
	for i, r := range results {
		out[i] = r.TotalReward
	}
	return out
}
