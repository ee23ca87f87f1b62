// Package resmgr provides an adaptive resource governor for Go.
//
// Resmgr groups runtime-managed resources (caches, rate-limited components,
// background-work controllers) into named pools that share a budget of
// controlled tags, and periodically runs a pluggable control algorithm that
// observes aggregated usage and adjusts per-resource limits so the pool
// tracks its configured targets.
//
// # Quick Start
//
//	registry := resmgr.NewRegistry()
//	_ = cachesize.Register(registry)
//
//	mgr := resmgr.NewManager(resmgr.NewDefaultFactory(registry),
//	    resmgr.WithDefaultInterval(10*time.Second),
//	)
//	defer mgr.Close()
//
//	pool, _ := mgr.CreatePool("searcher-caches", cachesize.TypeName,
//	    map[string]float64{cachesize.TagMaxSizeBytes: 512 << 20}, nil)
//
//	_ = pool.AddResource(queryCache)   // any resmgr.ManagedResource
//	_ = pool.AddResource(filterCache)
//
// On every tick the pool collects monitored values from its members, computes
// additive totals, and hands control to the pool's plugin, which pushes new
// limits to individual resources.
//
// # Contracts
//
// Governed components implement ManagedResource; control algorithms implement
// Plugin and are resolved by pool type through a Registry. The core never
// depends on concrete resource or algorithm types.
//
// # Concurrency
//
// Resource membership is safe for concurrent mutation while a tick is running.
// Aggregation and total reads serialize through a per-pool lock that honors
// context cancellation, so a blocked tick is interrupted by pool close or
// process shutdown instead of hanging.
//
// # Key Features
//
//   - Pool/plugin control loop with partial-failure aggregation
//   - Explicit type registry (no reflection) for control algorithms
//   - Fixed-delay scheduling with injectable clock for tests
//   - Ready-made governors (plugins/cachesize, plugins/ratecap) and adapters
//     (managed/lrucache, managed/redismem, managed/throttle)
//   - Pluggable metrics (metrics/prom for Prometheus)
package resmgr
