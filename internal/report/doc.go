// Package report turns detector output into a clinical findings report.
//
// A Report carries the findings for one uploaded radiograph together with
// the threshold used to produce them. It renders the headline summary, the
// overlay caption, a CSV export and an annotated overlay image.
package report
