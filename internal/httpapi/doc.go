// Package httpapi exposes the pneumonia detector over HTTP.
//
// Routes:
//
//	POST /v1/detect                  upload an X-ray, get a findings report
//	GET  /v1/reports/{id}            the report as JSON
//	GET  /v1/reports/{id}.csv        the findings as CSV
//	GET  /v1/reports/{id}/overlay.png the image with findings drawn on it
//	GET  /healthz                    liveness
//	GET  /metrics                    Prometheus metrics
//
// Uploads are accepted as multipart form data (field "file"), as a JSON
// body {"image": "<base64>"} or as a raw image body. The confidence
// threshold comes from the "conf" query parameter.
//
// Reports live in memory for the configured TTL and are not persisted.
package httpapi
