// Package proxy relays authenticated requests to the upstream API.
//
// A Classifier decides whether a request is an upstream call and whether
// it streams. ProjectIdentity stamps the verified caller identity into the
// payload. The Forwarder then sends the request with rewritten headers and
// returns either a buffered Response or an open Stream.
//
// Timeouts apply per socket operation: every read and write on an upstream
// connection gets its own deadline, so a long stream stays open as long as
// chunks keep arriving.
package proxy
