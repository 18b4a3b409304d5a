/*
Package session serializes concurrent access to a keyed resource.

The engine uses it to guard each workflow's bookkeeping: a local,
reference-counted mutex per key, optionally backed by a DistributedLocker so
that several replicas sharing a State Store never interleave writes to the
same workflow.
*/
package session
