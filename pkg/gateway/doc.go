// Package gateway implements the mutation gate: every graph store write is
// performed inside WithResourceCredential, which acquires the target
// resource's signing identity, binds it to a graph client for exactly one
// logical mutation and releases it afterwards.
//
// In isolated mode each acquisition gets its own client copy, so concurrent
// mutations share no identity state. In serialized mode a single shared
// client is used and bind, mutate and release run one at a time behind a
// weighted semaphore with a bounded wait. Both modes bound the mutation by a
// deadline.
package gateway
