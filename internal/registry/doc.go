// Package registry holds the static operation table: each node type tag maps
// to an explicit descriptor carrying the ordered, typed parameter list, the
// declared output ports, and the Go handler. Registration happens once at
// startup through the Module interface; the table is read-only during
// execution.
package registry
