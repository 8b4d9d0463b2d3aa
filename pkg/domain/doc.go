/*
Package domain contains the core models of the caregraph orchestrator.

It defines the closed set of responders, the static handoff topology they live on,
the conversation thread and its turns, and the event union streamed to clients.
This package is kept pure and free of I/O or persistence concerns.

# Key Entities

  - Responder: One of the fixed specialized handlers (Triage, Clinical, Scheduling, Billing).
  - Topology: The static handoff graph (nodes, labelled edges, hub).
  - Thread: A conversation identity with its active responder and turn history.
  - Event: One frame of a turn's stream (thread_id, agent_event, token, message, error).
*/
package domain
