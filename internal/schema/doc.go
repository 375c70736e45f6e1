// Package schema infers a tool's parameter schema from its docstring.
//
// The docstring convention is a public contract shared by every tool file:
//
//	Say hello to someone.
//
//	Parameters:
//	- name: Who to greet (default: World)
//	- shout: Optional, upper-cases the greeting
//
// The first non-blank line is the summary. The "Parameters:" block lists one
// "- name: description" entry per line until a blank line. Nothing is typed;
// every parameter is free-form text and type coercion is the tool's own job.
package schema
