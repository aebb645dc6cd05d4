// Package detection finds pneumonia opacity regions in chest radiographs.
//
// Inference is delegated to ONNX Runtime running a YOLOv8-style detector
// exported to ONNX. The package owns everything around the session:
// locating the model file, preparing the input tensor, decoding the raw
// output and suppressing overlapping boxes.
//
// # Model Loading
//
// A model is obtained through a ModelLoader. LocalLoader points at a file on
// disk; RemoteLoader downloads the model once into a cache directory and
// optionally verifies its SHA-256 checksum. NewLoader picks the remote
// strategy whenever a URL is configured.
//
// # Output Decoding
//
// The exported detector produces a tensor of shape [1, 4+C, A] where C is
// the number of classes and A is the number of anchor points (8400 for a
// 640x640 input). Each column holds a center-format box followed by one
// score per class. Columns whose best score reaches the threshold become
// findings; overlapping findings of the same class are then reduced with
// non-maximum suppression.
//
// # Coordinate System
//
// Findings are reported in source image pixels:
//   - Origin (0, 0) at top-left corner
//   - X increases rightward
//   - Y increases downward
package detection
