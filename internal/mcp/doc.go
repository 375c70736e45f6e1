// Package mcp renders catalog entries and invocation results as Model Context
// Protocol payloads.
//
// Everything here is a pure mapping onto the go-sdk wire types; the session
// that sends them lives in package protocol.
package mcp
