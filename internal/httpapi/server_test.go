package httpapi

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ironsheep/xray-cdss/internal/detection"
	"github.com/ironsheep/xray-cdss/internal/report"
)

type fakeDetector struct {
	findings []detection.Finding
	err      error
	lastConf float64
}

func (f *fakeDetector) Detect(_ context.Context, _ image.Image, threshold float64) ([]detection.Finding, error) {
	f.lastConf = threshold
	return f.findings, f.err
}

func (f *fakeDetector) Classes() []string { return []string{"pneumonia"} }
func (f *fakeDetector) Close() error      { return nil }

func newTestServer(t *testing.T, det *fakeDetector) *Server {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s, err := New(report.NewAnalyzer(det, logger), Options{MaxUploadBytes: 1 << 20}, logger)
	require.NoError(t, err)
	return s
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = 70
	}
	img.Set(1, 1, color.Gray{Y: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func decodeDetect(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

var oneFinding = []detection.Finding{
	{Class: "pneumonia", Confidence: 0.8, XMin: 4, YMin: 4, XMax: 20, YMax: 24},
}

func TestDetect_RawBody(t *testing.T) {
	det := &fakeDetector{findings: oneFinding}
	s := newTestServer(t, det)

	req := httptest.NewRequest(http.MethodPost, "/v1/detect?conf=0.5", bytes.NewReader(pngBytes(t, 32, 32)))
	req.Header.Set("Content-Type", "image/png")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	body := decodeDetect(t, rec)
	assert.Equal(t, "Findings: 1 opacity regions detected.", body["summary"])
	assert.Equal(t, "Detections at 50% Confidence", body["caption"])
	assert.InDelta(t, 0.5, det.lastConf, 1e-9)
	assert.EqualValues(t, 32, body["width"])

	findings := body["findings"].([]interface{})
	assert.Len(t, findings, 1)

	links := body["links"].(map[string]interface{})
	assert.Equal(t, "/v1/reports/"+body["id"].(string)+".csv", links["csv"])
}

func TestDetect_Multipart(t *testing.T) {
	s := newTestServer(t, &fakeDetector{})

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "xray.png")
	require.NoError(t, err)
	_, err = fw.Write(pngBytes(t, 16, 16))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/v1/detect", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	body := decodeDetect(t, rec)
	assert.Equal(t, "No pneumonia detected at this threshold.", body["summary"])
	assert.Equal(t, "Detections at 25% Confidence", body["caption"])
}

func TestDetect_JSONBase64(t *testing.T) {
	s := newTestServer(t, &fakeDetector{findings: oneFinding})

	for _, prefix := range []string{"", "data:image/png;base64,"} {
		payload, _ := json.Marshal(map[string]string{
			"image": prefix + base64.StdEncoding.EncodeToString(pngBytes(t, 24, 24)),
		})
		req := httptest.NewRequest(http.MethodPost, "/v1/detect", bytes.NewReader(payload))
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		s.Handler().ServeHTTP(rec, req)

		body := decodeDetect(t, rec)
		assert.EqualValues(t, 24, body["height"])
	}
}

func TestDetect_BadRequests(t *testing.T) {
	s := newTestServer(t, &fakeDetector{})

	tests := []struct {
		name        string
		url         string
		contentType string
		body        []byte
		wantStatus  int
		wantError   string
	}{
		{"conf not a number", "/v1/detect?conf=abc", "image/png", pngBytes(t, 8, 8), http.StatusBadRequest, "invalid_request"},
		{"conf below range", "/v1/detect?conf=0.01", "image/png", pngBytes(t, 8, 8), http.StatusBadRequest, "invalid_request"},
		{"empty body", "/v1/detect", "image/png", nil, http.StatusBadRequest, "invalid_request"},
		{"not an image", "/v1/detect", "image/png", []byte("hello"), http.StatusBadRequest, "invalid_image"},
		{"bad json", "/v1/detect", "application/json", []byte("{"), http.StatusBadRequest, "invalid_request"},
		{"bad base64", "/v1/detect", "application/json", []byte(`{"image":"***"}`), http.StatusBadRequest, "invalid_request"},
		{"too large", "/v1/detect", "image/png", make([]byte, 2<<20), http.StatusRequestEntityTooLarge, "invalid_request"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, tt.url, bytes.NewReader(tt.body))
			req.Header.Set("Content-Type", tt.contentType)
			rec := httptest.NewRecorder()
			s.Handler().ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			var er ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &er))
			assert.Equal(t, tt.wantError, er.Error)
			assert.Equal(t, tt.wantStatus, er.Code)
		})
	}
}

func TestDetect_DetectorError(t *testing.T) {
	s := newTestServer(t, &fakeDetector{err: errors.New("session crashed")})

	req := httptest.NewRequest(http.MethodPost, "/v1/detect", bytes.NewReader(pngBytes(t, 8, 8)))
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "session crashed")
}

func createReport(t *testing.T, s *Server) string {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/v1/detect", bytes.NewReader(pngBytes(t, 32, 32)))
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return decodeDetect(t, rec)["id"].(string)
}

func TestReportResources(t *testing.T) {
	s := newTestServer(t, &fakeDetector{findings: oneFinding})
	id := createReport(t, s)

	t.Run("json", func(t *testing.T) {
		rec := httptest.NewRecorder()
		s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/reports/"+id, nil))
		body := decodeDetect(t, rec)
		assert.Equal(t, id, body["id"])
	})

	t.Run("csv", func(t *testing.T) {
		rec := httptest.NewRecorder()
		s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/reports/"+id+".csv", nil))
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))
		assert.Contains(t, rec.Header().Get("Content-Disposition"), "pneumonia_report.csv")

		lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
		require.Len(t, lines, 2)
		assert.Equal(t, "Class,Confidence,xmin,ymin,xmax,ymax", lines[0])
		assert.Equal(t, "pneumonia,0.8,4,4,20,24", lines[1])
	})

	t.Run("overlay", func(t *testing.T) {
		rec := httptest.NewRecorder()
		s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/reports/"+id+"/overlay.png", nil))
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
		assert.Equal(t, "Detections at 25% Confidence", rec.Header().Get("X-Caption"))

		img, err := png.Decode(rec.Body)
		require.NoError(t, err)
		assert.Equal(t, 32, img.Bounds().Dx())
	})
}

func TestReport_NotFound(t *testing.T) {
	s := newTestServer(t, &fakeDetector{})
	for _, path := range []string{
		"/v1/reports/00000000-0000-0000-0000-000000000000",
		"/v1/reports/00000000-0000-0000-0000-000000000000.csv",
		"/v1/reports/00000000-0000-0000-0000-000000000000/overlay.png",
	} {
		rec := httptest.NewRecorder()
		s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusNotFound, rec.Code, path)
	}
}

func TestHealthAndMetrics(t *testing.T) {
	s := newTestServer(t, &fakeDetector{findings: oneFinding})
	createReport(t, s)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"reports":1`)

	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	out := rec.Body.String()
	assert.Contains(t, out, "xray_findings_total 1")
	assert.Contains(t, out, `xray_http_requests_total{method="POST",route="/v1/detect",status="200"} 1`)
	assert.Contains(t, out, "xray_detect_duration_seconds_count 1")
}

func TestMethodNotAllowed(t *testing.T) {
	s := newTestServer(t, &fakeDetector{})
	id := "0b6e4f0c-3c7a-4a53-9d8e-5b8f1c2d3e4f"

	tests := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/v1/detect"},
		{http.MethodPut, "/v1/detect"},
		{http.MethodPost, "/v1/reports/" + id},
		{http.MethodDelete, "/v1/reports/" + id + ".csv"},
		{http.MethodPost, "/v1/reports/" + id + "/overlay.png"},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			s.Handler().ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, nil))
			assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
		})
	}
}

func TestListenAndServe_StopsOnCancel(t *testing.T) {
	s := newTestServer(t, &fakeDetector{})
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- s.ListenAndServe(ctx, "127.0.0.1:0") }()
	cancel()

	assert.NoError(t, <-done)
}
