// Package services implements the driving ports: the risk scorer, the
// knowledge store and retrieval, conversation lifecycle, the chat
// orchestrator and the maintenance scheduler.
//
// Services depend only on domain types and driven ports. Backends that
// are not configured are passed as nil and each service degrades: no
// embedder means keyword-only retrieval, no generator means rule-based
// replies, no crypto means plaintext storage.
package services
