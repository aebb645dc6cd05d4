package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"os"

	"github.com/ironsheep/xray-cdss/internal/imaging"
	"github.com/ironsheep/xray-cdss/internal/pipeline"
	"github.com/ironsheep/xray-cdss/internal/report"
)

// ToolCallParams represents the parameters for a tools/call MCP request.
type ToolCallParams struct {
	// Name is the tool to invoke (e.g., "xray_detect", "dataset_split").
	Name string `json:"name"`

	// Arguments contains the tool-specific parameters as JSON.
	Arguments json.RawMessage `json:"arguments"`
}

// handleToolsCall processes a tools/call request and executes the specified tool.
//
// The response wraps the tool result in MCP's content format:
//
//	{
//	  "content": [{"type": "text", "text": "<JSON result>"}]
//	}
//
// Tool execution errors return a JSON-RPC error response with code -32000.
func (s *Server) handleToolsCall(ctx context.Context, req *MCPRequest) *MCPResponse {
	var params ToolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return s.errorResponse(req.ID, -32602, "Invalid params", err.Error())
	}

	result, err := s.executeTool(ctx, params.Name, params.Arguments)
	if err != nil {
		s.log.Warn("tool failed", "tool", params.Name, "error", err)
		return s.errorResponse(req.ID, -32000, "Tool execution failed", err.Error())
	}

	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"content": []map[string]interface{}{
				{
					"type": "text",
					"text": mustMarshalJSON(result),
				},
			},
		},
	}
}

// executeTool dispatches tool execution to the appropriate handler function.
func (s *Server) executeTool(ctx context.Context, name string, args json.RawMessage) (interface{}, error) {
	if len(args) == 0 {
		args = json.RawMessage("{}")
	}

	switch name {
	// Dataset Preparation
	case "dataset_convert":
		return s.handleDatasetConvert(ctx, args)
	case "dataset_split":
		return s.handleDatasetSplit(args)

	// Detection
	case "xray_detect":
		return s.handleXrayDetect(ctx, args)
	case "xray_report_csv":
		return s.handleXrayReportCSV(ctx, args)
	case "xray_finding_crop":
		return s.handleXrayFindingCrop(ctx, args)

	// Label QA
	case "label_inspect":
		return s.handleLabelInspect(args)

	default:
		return nil, fmt.Errorf("unknown tool: %s", name)
	}
}

// errorResponse creates a JSON-RPC error response with the given details.
func (s *Server) errorResponse(id interface{}, code int, message, data string) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error: &MCPError{
			Code:    code,
			Message: message,
			Data:    data,
		},
	}
}

// mustMarshalJSON converts a value to pretty-printed JSON string.
// On marshal failure, returns an empty string.
func mustMarshalJSON(v interface{}) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}

// === Dataset Handlers ===

type datasetConvertArgs struct {
	Annotations string `json:"annotations"`
	SourceDir   string `json:"source_dir"`
	ImageDir    string `json:"image_dir"`
	LabelDir    string `json:"label_dir"`
	Workers     *int   `json:"workers"`
	ScreenText  *bool  `json:"screen_text"`
}

func (s *Server) handleDatasetConvert(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a datasetConvertArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}

	ds := s.settings.Dataset
	overrideString(&ds.Annotations, a.Annotations)
	overrideString(&ds.SourceDir, a.SourceDir)
	overrideString(&ds.ImageDir, a.ImageDir)
	overrideString(&ds.LabelDir, a.LabelDir)
	if a.Workers != nil {
		ds.Workers = *a.Workers
	}
	if a.ScreenText != nil {
		ds.ScreenText = *a.ScreenText
	}

	stats, err := pipeline.Convert(ctx, ds, s.log)
	if err != nil {
		return nil, err
	}
	// Converted images replace whatever was cached under the same paths.
	s.cache.Clear()
	return stats, nil
}

type datasetSplitArgs struct {
	Annotations   string   `json:"annotations"`
	ImageDir      string   `json:"image_dir"`
	LabelDir      string   `json:"label_dir"`
	PositiveCount *int     `json:"positive_count"`
	NegativeCount *int     `json:"negative_count"`
	ValFraction   *float64 `json:"val_fraction"`
	Seed          *int64   `json:"seed"`
	DataYAML      *string  `json:"data_yaml"`
}

func (s *Server) handleDatasetSplit(args json.RawMessage) (interface{}, error) {
	var a datasetSplitArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}

	ds := s.settings.Dataset
	overrideString(&ds.Annotations, a.Annotations)
	overrideString(&ds.ImageDir, a.ImageDir)
	overrideString(&ds.LabelDir, a.LabelDir)

	ss := s.settings.Split
	if a.PositiveCount != nil {
		ss.PositiveCount = *a.PositiveCount
	}
	if a.NegativeCount != nil {
		ss.NegativeCount = *a.NegativeCount
	}
	if a.ValFraction != nil {
		ss.ValFraction = *a.ValFraction
	}
	if a.Seed != nil {
		ss.Seed = *a.Seed
	}
	if a.DataYAML != nil {
		ss.DataYAML = *a.DataYAML
	}

	res, err := pipeline.Split(ds, ss, s.settings.Model.Classes, s.log)
	if err != nil {
		return nil, err
	}
	s.cache.Clear()
	return res, nil
}

func overrideString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

// === Detection Handlers ===

// analyze loads the image at path and runs the detector over it.
func (s *Server) analyze(ctx context.Context, path string, threshold *float64) (*report.Report, image.Image, error) {
	t := s.settings.Model.Threshold
	if threshold != nil {
		t = *threshold
	}
	if err := report.ValidateThreshold(t); err != nil {
		return nil, nil, err
	}

	img, err := s.cache.Load(path)
	if err != nil {
		return nil, nil, err
	}

	analyzer, err := s.getAnalyzer(ctx)
	if err != nil {
		return nil, nil, err
	}

	r, err := analyzer.Analyze(ctx, img, t)
	if err != nil {
		return nil, nil, err
	}
	return r, img, nil
}

type xrayDetectArgs struct {
	Path           string   `json:"path"`
	Threshold      *float64 `json:"threshold"`
	IncludeOverlay bool     `json:"include_overlay"`
	OverlayPath    string   `json:"overlay_path"`
}

type xrayDetectResult struct {
	Report      *report.Report        `json:"report"`
	Image       *imaging.ImageInfo    `json:"image"`
	Summary     string                `json:"summary"`
	Caption     string                `json:"caption"`
	OverlayPath string                `json:"overlay_path,omitempty"`
	Overlay     *imaging.EncodedImage `json:"overlay,omitempty"`
}

func (s *Server) handleXrayDetect(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a xrayDetectArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}

	r, img, err := s.analyze(ctx, a.Path, a.Threshold)
	if err != nil {
		return nil, err
	}

	info, err := imaging.LoadImageInfo(s.cache, a.Path)
	if err != nil {
		return nil, err
	}

	res := &xrayDetectResult{
		Report:  r,
		Image:   info,
		Summary: r.Summary(),
		Caption: r.Caption(),
	}
	if !a.IncludeOverlay && a.OverlayPath == "" {
		return res, nil
	}

	overlay, err := r.Overlay(img, imaging.DefaultOverlayStyle())
	if err != nil {
		return nil, err
	}
	if a.OverlayPath != "" {
		if err := imaging.SavePNG(a.OverlayPath, overlay); err != nil {
			return nil, err
		}
		s.cache.Evict(a.OverlayPath)
		res.OverlayPath = a.OverlayPath
	}
	if a.IncludeOverlay {
		if res.Overlay, err = imaging.EncodeBase64PNG(overlay); err != nil {
			return nil, err
		}
	}
	return res, nil
}

type xrayReportCSVArgs struct {
	Path       string   `json:"path"`
	Threshold  *float64 `json:"threshold"`
	OutputPath string   `json:"output_path"`
}

func (s *Server) handleXrayReportCSV(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a xrayReportCSVArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}

	r, _, err := s.analyze(ctx, a.Path, a.Threshold)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := r.WriteCSV(&buf); err != nil {
		return nil, err
	}
	if a.OutputPath != "" {
		if err := os.WriteFile(a.OutputPath, buf.Bytes(), 0o644); err != nil {
			return nil, fmt.Errorf("failed to write report: %w", err)
		}
	}

	return map[string]interface{}{
		"filename":    report.CSVFilename,
		"summary":     r.Summary(),
		"csv":         buf.String(),
		"output_path": a.OutputPath,
	}, nil
}

type xrayFindingCropArgs struct {
	Path      string   `json:"path"`
	Threshold *float64 `json:"threshold"`
	Index     int      `json:"index"`
	Padding   *int     `json:"padding"`
	Scale     float64  `json:"scale"`
}

func (s *Server) handleXrayFindingCrop(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a xrayFindingCropArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if a.Scale == 0 {
		a.Scale = 2.0
	}
	pad := 32
	if a.Padding != nil {
		pad = *a.Padding
	}

	r, img, err := s.analyze(ctx, a.Path, a.Threshold)
	if err != nil {
		return nil, err
	}
	crop, err := r.FindingCrop(img, a.Index, pad, a.Scale)
	if err != nil {
		return nil, err
	}
	return imaging.EncodeBase64PNG(crop)
}

// === Label QA Handlers ===

type labelInspectArgs struct {
	ImagePath      string `json:"image_path"`
	LabelPath      string `json:"label_path"`
	IncludeOverlay bool   `json:"include_overlay"`
}

func (s *Server) handleLabelInspect(args json.RawMessage) (interface{}, error) {
	var a labelInspectArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}

	li, err := pipeline.InspectLabels(s.cache, a.ImagePath, a.LabelPath)
	if err != nil {
		return nil, err
	}
	if !a.IncludeOverlay {
		return li, nil
	}

	overlay, err := li.Overlay(s.cache)
	if err != nil {
		return nil, err
	}
	enc, err := imaging.EncodeBase64PNG(overlay)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"inspection": li,
		"overlay":    enc,
	}, nil
}
