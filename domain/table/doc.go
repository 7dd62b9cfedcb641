// Package table implements the in-memory key/value table the
// reclamation engine protects. Exactly one writer mutates it; readers
// traverse bucket chains lock-free under qsbr reader handles and
// quiesce between lookups.
//
// Entries are immutable once published. The writer never frees a
// replaced or deleted entry directly: it unlinks the entry and hands
// it to the reclaimer, which returns it to the entry pool once no
// reader can still be holding it.
package table
