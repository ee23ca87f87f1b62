// Package redismem adapts a Redis server's memory into a managed resource
// for pools of type "memory".
//
// Usage is read from INFO memory; limits are applied with
// CONFIG SET maxmemory, so the governing plugin effectively divides a shared
// memory budget among several Redis instances.
package redismem

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/hupe1980/resmgr"
)

// Tags reported and accepted by the adapter.
const (
	// TagUsedBytes is the monitored used_memory of the server.
	TagUsedBytes = "memory.usedBytes"
	// TagMaxBytes is the controlled maxmemory of the server. It is also
	// reported if the server has one configured.
	TagMaxBytes = "memory.maxBytes"
)

// Resource adapts one Redis server.
type Resource struct {
	name      string
	poolTypes []string
	client    redis.UniversalClient
}

// Compile time check to ensure Resource satisfies the interface.
var _ resmgr.ManagedResource = (*Resource)(nil)

// Option configures a Resource.
type Option func(*Resource)

// WithPoolTypes sets the pool types the resource can join. Defaults to
// ["memory"].
func WithPoolTypes(types ...string) Option {
	return func(r *Resource) {
		if len(types) > 0 {
			r.poolTypes = types
		}
	}
}

// New creates an adapter for the Redis server behind client.
func New(name string, client redis.UniversalClient, optFns ...Option) *Resource {
	r := &Resource{
		name:      name,
		poolTypes: []string{"memory"},
		client:    client,
	}
	for _, fn := range optFns {
		fn(r)
	}
	return r
}

// Name implements resmgr.ManagedResource.
func (r *Resource) Name() string { return r.name }

// SupportedPoolTypes implements resmgr.ManagedResource.
func (r *Resource) SupportedPoolTypes() []string { return r.poolTypes }

// GetMonitoredValues implements resmgr.ManagedResource.
func (r *Resource) GetMonitoredValues(ctx context.Context, tags []string) (map[string]float64, error) {
	info, err := r.client.Info(ctx, "memory").Result()
	if err != nil {
		return nil, fmt.Errorf("redis INFO memory: %w", err)
	}

	fields := parseInfo(info)

	out := make(map[string]float64)
	for _, tag := range tags {
		switch tag {
		case TagUsedBytes:
			if v, ok := fields["used_memory"]; ok {
				out[tag] = v
			}
		case TagMaxBytes:
			if v, ok := fields["maxmemory"]; ok && v > 0 {
				out[tag] = v
			}
		}
	}

	return out, nil
}

// SetLimit implements resmgr.ManagedResource.
func (r *Resource) SetLimit(ctx context.Context, tag string, value float64) error {
	if tag != TagMaxBytes {
		return fmt.Errorf("unsupported limit tag %q", tag)
	}
	if value < 0 {
		return fmt.Errorf("negative memory limit %v", value)
	}

	bytes := strconv.FormatInt(int64(value), 10)
	if err := r.client.ConfigSet(ctx, "maxmemory", bytes).Err(); err != nil {
		return fmt.Errorf("redis CONFIG SET maxmemory: %w", err)
	}

	return nil
}

// parseInfo extracts numeric fields from an INFO section response
// ("key:value" lines, comments starting with '#').
func parseInfo(info string) map[string]float64 {
	out := make(map[string]float64)
	for _, line := range strings.Split(info, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		n, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil {
			continue
		}
		out[key] = n
	}
	return out
}
