// Package middleware provides the net/http middleware wrapped around the
// gateway pipeline: request IDs, access logging, panic recovery and rate
// limiting.
package middleware
