// Package connector groups the connector framework used by Nebula.
//
//   - core: Source and Destination interfaces and the message stream
//     passed between them.
//   - base: BaseConnector with the shared HTTP client, retry policy,
//     circuit breaker, rate limiting, state and health checks. Sources
//     embed it.
//   - registry: name to factory lookup. Connectors register themselves
//     from init.
//   - sources/facebook_marketing: the Facebook Marketing source.
//   - destinations/json: the JSON lines destination.
package connector
