// Package pipeline assembles the dataset, detection and reporting packages
// from config.Settings. The command line, the MCP server and the HTTP API
// all drive the same operations through it.
package pipeline
