// Package mixing groups packets that share a grouping key into time bounded
// batches.
//
// A Queue keeps one open window per key. Packets arriving while the window is
// open accumulate in a Buffer; once the window closes the whole set is handed
// to the subscribers as a single Batch and the buffer for that key is cleared.
//
// Two knobs shape the behaviour, both fixed at construction:
//
//   - signature specific delay: when set, a window closes no earlier than the
//     mixing delay after it opened. When unset the scheduler flushes windows as
//     soon as it is free, so only packets arriving while storage calls are in
//     flight get merged.
//   - allow duplicates: when unset, a second packet from the same origin for a
//     key with an open window pushes the window out immediately and opens a
//     fresh one holding only the new packet.
package mixing
