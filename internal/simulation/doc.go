// Package simulation provides a scenario harness for validating the
// emergent behaviour of the defender strategies over whole experiments.
//
// Scenarios run the real experiment runner, environment and statistics
// engine with no mocks, persist every report to an isolated SQLite result
// store via t.TempDir(), and hand back the stored copy so that assertions
// also cover the store round trip.
//
// Usage:
//
//	func TestACPBeatsPessimistic(t *testing.T) {
//	    r := simulation.NewRunner(t)
//	    result := r.Run(simulation.Scenario{
//	        Name:     "acp-vs-pessimistic",
//	        Episodes: 100,
//	    })
//	    simulation.AssertMeanRewardGreater(t, result, "optimistic_acp", "pessimistic")
//	}
package simulation
