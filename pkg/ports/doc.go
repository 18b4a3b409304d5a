/*
Package ports defines the driven ports (interfaces) of the Arbiter core.

These interfaces decouple the engine and the decision framework from external
implementations, allowing them to work with various storage backends and
verification services.

# Key Interfaces

  - StateStore: Persists sessions, memories and the execution log per agent.
  - DistributedLocker: Provides distributed locking for serializing workflow access across replicas.
  - ContentVerifier: Checks content authenticity for the verify_content action.
*/
package ports
