// Package qsbr implements single-writer, multi-reader quiescent-state
// based memory reclamation.
//
// The writer owns a global epoch counter which it advances as it
// collects, and every reader records the epoch it last saw while
// *outside* a critical section. Instead of freeing replaced objects,
// the writer retires them onto a garbage queue tagged with the current
// epoch; an object is destroyed only once every registered reader has
// quiesced past the epoch at which it was retired.
//
// The read path is lock-free: quiescing is one atomic load and one
// atomic store on thread-confined state. The only mutex in the package
// guards reader registration, deregistration, and the membership scan
// during collection.
package qsbr
