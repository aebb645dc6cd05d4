package httpapi

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/ironsheep/xray-cdss/internal/imaging"
	"github.com/ironsheep/xray-cdss/internal/report"
)

// ErrorResponse is the JSON body of every error reply.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

// DetectResponse is returned by POST /v1/detect and GET /v1/reports/{id}.
type DetectResponse struct {
	*report.Report
	Summary string `json:"summary"`
	Caption string `json:"caption"`
	Links   Links  `json:"links"`
}

// Links points at the report's derived resources.
type Links struct {
	CSV     string `json:"csv"`
	Overlay string `json:"overlay"`
}

func newDetectResponse(r *report.Report) DetectResponse {
	base := "/v1/reports/" + r.ID.String()
	return DetectResponse{
		Report:  r,
		Summary: r.Summary(),
		Caption: r.Caption(),
		Links: Links{
			CSV:     base + ".csv",
			Overlay: base + "/overlay.png",
		},
	}
}

func (s *Server) handleDetect(w http.ResponseWriter, r *http.Request) {
	threshold := s.opts.DefaultThreshold
	if v := r.URL.Query().Get("conf"); v != "" {
		t, err := strconv.ParseFloat(v, 64)
		if err != nil {
			s.sendError(w, "invalid_request", fmt.Sprintf("invalid conf %q", v), http.StatusBadRequest)
			return
		}
		threshold = t
	}
	if err := report.ValidateThreshold(threshold); err != nil {
		s.sendError(w, "invalid_request", err.Error(), http.StatusBadRequest)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxUploadBytes)
	data, err := readUpload(r)
	if err != nil {
		status := http.StatusBadRequest
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			status = http.StatusRequestEntityTooLarge
		}
		s.metrics.DetectErrors.WithLabelValues("invalid_request").Inc()
		s.sendError(w, "invalid_request", err.Error(), status)
		return
	}

	img, format, err := imaging.DecodeBytes(data)
	if err != nil {
		s.metrics.DetectErrors.WithLabelValues("invalid_image").Inc()
		s.sendError(w, "invalid_image", "Failed to decode image", http.StatusBadRequest)
		return
	}

	start := time.Now()
	rep, err := s.analyzer.Analyze(r.Context(), img, threshold)
	s.metrics.DetectDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		s.metrics.DetectErrors.WithLabelValues("processing_error").Inc()
		s.log.Error("analysis failed", "error", err)
		s.sendError(w, "processing_error", err.Error(), http.StatusInternalServerError)
		return
	}
	s.metrics.Findings.Add(float64(len(rep.Findings)))

	s.reports.SetDefault(rep.ID.String(), &cachedReport{Report: rep, Image: img})
	s.log.Info("report created",
		"report_id", rep.ID,
		"format", format,
		"findings", len(rep.Findings))

	s.sendJSON(w, http.StatusOK, newDetectResponse(rep))
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	cr, ok := s.lookup(w, r)
	if !ok {
		return
	}
	s.sendJSON(w, http.StatusOK, newDetectResponse(cr.Report))
}

func (s *Server) handleReportCSV(w http.ResponseWriter, r *http.Request) {
	cr, ok := s.lookup(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", report.CSVFilename))
	if err := cr.Report.WriteCSV(w); err != nil {
		s.log.Error("failed to write CSV", "report_id", cr.Report.ID, "error", err)
	}
}

func (s *Server) handleOverlay(w http.ResponseWriter, r *http.Request) {
	cr, ok := s.lookup(w, r)
	if !ok {
		return
	}
	overlay, err := cr.Report.Overlay(cr.Image, imaging.DefaultOverlayStyle())
	if err != nil {
		s.sendError(w, "render_error", err.Error(), http.StatusInternalServerError)
		return
	}
	data, err := imaging.EncodePNG(overlay)
	if err != nil {
		s.sendError(w, "render_error", err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("X-Caption", cr.Report.Caption())
	_, _ = w.Write(data)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.sendJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "ok",
		"reports": s.reports.ItemCount(),
	})
}

func (s *Server) lookup(w http.ResponseWriter, r *http.Request) (*cachedReport, bool) {
	id := mux.Vars(r)["id"]
	v, ok := s.reports.Get(id)
	if !ok {
		s.sendError(w, "not_found", "report not found or expired", http.StatusNotFound)
		return nil, false
	}
	return v.(*cachedReport), true
}

// readUpload extracts the image bytes from a multipart, JSON or raw body.
func readUpload(r *http.Request) ([]byte, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))

	switch {
	case mediaType == "multipart/form-data":
		file, _, err := r.FormFile("file")
		if err != nil {
			return nil, fmt.Errorf("missing form file %q: %w", "file", err)
		}
		defer file.Close()
		return io.ReadAll(file)

	case mediaType == "application/json":
		var req struct {
			Image string `json:"image"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return nil, fmt.Errorf("invalid JSON body: %w", err)
		}
		if req.Image == "" {
			return nil, errors.New("image field is empty")
		}
		// Accept data URLs as well as bare base64.
		if i := strings.Index(req.Image, ","); strings.HasPrefix(req.Image, "data:") && i >= 0 {
			req.Image = req.Image[i+1:]
		}
		data, err := base64.StdEncoding.DecodeString(req.Image)
		if err != nil {
			return nil, fmt.Errorf("invalid base64 image: %w", err)
		}
		return data, nil

	default:
		data, err := io.ReadAll(r.Body)
		if err != nil {
			return nil, err
		}
		if len(data) == 0 {
			return nil, errors.New("empty request body")
		}
		return data, nil
	}
}

func (s *Server) sendJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Error("failed to encode response", "error", err)
	}
}

func (s *Server) sendError(w http.ResponseWriter, errType, message string, status int) {
	s.sendJSON(w, status, ErrorResponse{Error: errType, Message: message, Code: status})
}
