// Package server implements the MCP (Model Context Protocol) server for the
// pneumonia detection and dataset tools.
//
// # Protocol
//
// The server communicates over stdio using JSON-RPC 2.0:
//   - Input: JSON-RPC requests on stdin (one per line)
//   - Output: JSON-RPC responses on stdout
//
// Supported MCP methods:
//   - initialize: Protocol handshake
//   - tools/list: Enumerate available tools
//   - tools/call: Execute a tool with arguments
//   - ping: Health check
//
// Logs go to stderr so stdout carries protocol traffic only.
//
// # Available Tools
//
// Dataset Preparation:
//   - dataset_convert: DICOM + annotation CSV to PNG images and YOLO labels
//   - dataset_split: capped positive/negative sampling into train/val
//
// Detection:
//   - xray_detect: findings report with summary, caption and optional overlay
//   - xray_report_csv: findings as CSV
//   - xray_finding_crop: zoomed crop of a single finding
//
// Label QA:
//   - label_inspect: map a label file back onto its image
//
// # Detector Lifecycle
//
// The detector is loaded on the first detection tool call, not at startup,
// so dataset tools work on machines without a model or ONNX Runtime. Once
// loaded it is reused until Close.
//
// # Error Handling
//
// Tool execution errors are returned as JSON-RPC error responses with:
//   - code: -32000 (tool execution failure) or standard JSON-RPC codes
//   - message: Human-readable error description
//   - data: Additional error details (typically the Go error string)
package server
