// Package graphio loads graph definitions from HCL documents and builds
// wired engine graphs from them. The engine itself has no dependency on
// this package; hosts that construct graphs programmatically can skip it.
package graphio
