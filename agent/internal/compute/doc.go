// Package compute scores agent pipeline health from successive metrics
// snapshots.
//
// score.go holds the pure Compute(Input) function: overrun(30%) +
// backlog(30%) + delivery(30%) + uptime(10%), mapped to healthy ≥85,
// degraded 60–84, critical <60, or unknown when the agent was never reached.
//
// engine.go holds the stateful Engine that keeps the previous snapshot and a
// rolling window of scrape outcomes. Engine.Process takes the time
// explicitly so tests are deterministic.
package compute
