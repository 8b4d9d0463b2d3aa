/*
Package ports defines the driven ports (interfaces) of the caregraph orchestrator.

These interfaces decouple the turn loop from storage backends, lock services,
file storage and the external reasoning engine.

# Key Interfaces

  - ThreadStore: Persists conversation threads.
  - DistributedLocker: Provides distributed locking for concurrent access to a thread.
  - Classifier: Assigns a capability tag to a user message.
  - Generator: Streams the content of a responder's reply.
  - AttachmentStore: Durably stores uploaded files and returns an opaque reference.
*/
package ports
