// Package shape is the Identity Extractor.
//
// The host page renders the same channel byline differently depending on
// where it appears: a comment header, a home-feed card, a sidebar card or a
// search result. Each of these is described by a Rule that knows how to
// locate the fragment, read a handle and a display name from it, find the
// suppression unit that is hidden when the channel is blocked, and find the
// anchor a block control is appended to.
//
// Every rule lives in a Registry. Default returns the registry for the
// layouts currently served by the host page; when the host page changes
// its markup, Default is the only place that needs updating.
//
// Extraction is a pure function of the fragment's current markup. Missing
// sub-elements produce empty fields, never errors.
package shape
