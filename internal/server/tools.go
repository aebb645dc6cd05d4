package server

// Tool represents an MCP tool definition
type Tool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"inputSchema"`
}

func stringProp(desc string) map[string]interface{} {
	return map[string]interface{}{"type": "string", "description": desc}
}

func intProp(desc string) map[string]interface{} {
	return map[string]interface{}{"type": "integer", "description": desc}
}

func numberProp(desc string) map[string]interface{} {
	return map[string]interface{}{"type": "number", "description": desc}
}

func boolProp(desc string) map[string]interface{} {
	return map[string]interface{}{"type": "boolean", "description": desc}
}

var thresholdProp = map[string]interface{}{
	"type":        "number",
	"description": "Confidence threshold between 0.10 and 1.0. Defaults to the configured model threshold (0.25)",
	"minimum":     0.10,
	"maximum":     1.0,
}

// GetToolDefinitions returns all available tools
func GetToolDefinitions() []Tool {
	return []Tool{
		// Dataset Preparation
		{
			Name:        "dataset_convert",
			Description: "Convert annotated DICOM radiographs into normalized 8-bit PNG images and YOLO label files. Patients without a source file are skipped.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"annotations": stringProp("Annotation CSV (patientId, x, y, width, height, Target). Default Train_Labels.csv"),
					"source_dir":  stringProp("Directory of <patientId>.dcm files"),
					"image_dir":   stringProp("Output directory for PNG images"),
					"label_dir":   stringProp("Output directory for label files"),
					"workers":     intProp("Number of patients converted concurrently. Default 1"),
					"screen_text": boolProp("Flag images that carry burned-in text (requires Tesseract)"),
				},
			},
		},
		{
			Name:        "dataset_split",
			Description: "Sample up to N positive and N negative patients, shuffle, and move their images and labels into train/val partitions. Writes a data.yaml descriptor.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"annotations":    stringProp("Annotation CSV used to classify patients"),
					"image_dir":      stringProp("Directory holding the converted PNG images"),
					"label_dir":      stringProp("Directory holding the label files"),
					"positive_count": intProp("Maximum positive patients. Default 500"),
					"negative_count": intProp("Maximum negative patients. Default 500"),
					"val_fraction":   numberProp("Fraction of the sample used for validation. Default 0.2"),
					"seed":           intProp("Random seed; 0 draws a fresh seed"),
					"data_yaml":      stringProp("Where to write the dataset descriptor. Empty string skips it"),
				},
			},
		},

		// Detection
		{
			Name:        "xray_detect",
			Description: "Detect pneumonia opacity regions in a chest X-ray (PNG/JPG). Returns the findings report with summary and caption.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path":            stringProp("Absolute path to the X-ray image"),
					"threshold":       thresholdProp,
					"include_overlay": boolProp("Return the annotated image as base64-encoded PNG"),
					"overlay_path":    stringProp("Optional path to save the annotated image as PNG"),
				},
				"required": []string{"path"},
			},
		},
		{
			Name:        "xray_report_csv",
			Description: "Detect findings and return them as CSV (Class, Confidence, xmin, ymin, xmax, ymax).",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path":        stringProp("Absolute path to the X-ray image"),
					"threshold":   thresholdProp,
					"output_path": stringProp("Optional path to also write the CSV to"),
				},
				"required": []string{"path"},
			},
		},
		{
			Name:        "xray_finding_crop",
			Description: "Detect findings and return a zoomed crop of one finding with surrounding context as base64-encoded PNG.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path":      stringProp("Absolute path to the X-ray image"),
					"threshold": thresholdProp,
					"index":     intProp("Finding index, 0 is the most confident"),
					"padding":   intProp("Context pixels around the finding. Default 32"),
					"scale": map[string]interface{}{
						"type":        "number",
						"description": "Optional scale factor (e.g., 2.0 to double size). Default 2.0",
						"default":     2.0,
					},
				},
				"required": []string{"path"},
			},
		},

		// Label QA
		{
			Name:        "label_inspect",
			Description: "Map a YOLO label file back onto its image and report each box in pixels. Optionally returns the boxes drawn on the image.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"image_path":      stringProp("Absolute path to the PNG image"),
					"label_path":      stringProp("Absolute path to the label file"),
					"include_overlay": boolProp("Return the labelled image as base64-encoded PNG"),
				},
				"required": []string{"image_path", "label_path"},
			},
		},
	}
}

// handleToolsList returns the list of available tools
func (s *Server) handleToolsList(req *MCPRequest) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"tools": GetToolDefinitions(),
		},
	}
}
