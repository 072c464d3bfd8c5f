// Package pipeline filters saved or fetched pages offline.
//
// A page goes through load, parse, filter and write steps. The filter step
// runs the same engine the live loop uses, with one full pass, so the
// output shows exactly what a user would see: blocked fragments carry the
// suppression class and every attributable fragment has a block control.
//
// BatchProcessor runs one fresh pipeline per page with bounded concurrency
// using errgroup.
package pipeline
