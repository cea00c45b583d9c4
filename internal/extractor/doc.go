// Package extractor fetches transcripts for individual videos. The shipped
// implementation shells out to a helper binary and parses its JSON output;
// per-video failures come back as *Error with a stable code so the
// orchestrator can cache and report them.
package extractor
