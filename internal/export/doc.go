// Package export renders daily attendance reports as CSV or XLSX and keeps
// a per-day CSV copy in the export directory up to date.
package export
