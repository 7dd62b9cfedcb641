// Package stats implements buffered event counters which flush to a
// provided client on a schedule.
//
// Counter, Gauge and Timing handles are cheap to update (one relaxed
// atomic op) but comparatively expensive to construct and close, since
// both ends acquire the registry lock. Callers should keep handles
// long lived.
//
// Two handles with the same name emit as one combined value. Names may
// carry tags of the form "stat#tag:val"; every tagged stat also rolls
// up into "<base>.total" at publish time, and the registry aborts on
// names that would collide with a generated total.
package stats
