// Package http is the HTTP plumbing shared by the REST-speaking connectors:
// the relational gateway, the object store liveness check and the hosted
// platform. It provides a rate-limited retrying Client, request
// authenticators, and a Base that connectors embed for status handshakes.
package http
