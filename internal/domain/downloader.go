package domain

import "context"

// ProbeResult is the outcome of looking up one identifier
type ProbeResult struct {
	Identifier int64
	Valid      bool
	Title      string
	// Reason explains an invalid result; it is informational only
	Reason string
}

// ValidProbe builds a positive probe result
func ValidProbe(id int64, title string) ProbeResult {
	return ProbeResult{Identifier: id, Valid: true, Title: title}
}

// InvalidProbe builds a negative probe result
func InvalidProbe(id int64, reason string) ProbeResult {
	return ProbeResult{Identifier: id, Valid: false, Reason: reason}
}

// IdentifierProbe decides whether an identifier is a real resource.
// Implementations never fail: every problem becomes an invalid result.
type IdentifierProbe interface {
	Probe(ctx context.Context, id int64) ProbeResult
}

// FormatResolver picks the content format of a validated identifier.
// It always returns a member of CandidateFormats.
type FormatResolver interface {
	Resolve(ctx context.Context, id int64) Format
}

// Payload is the body of a fetched resource
type Payload struct {
	Data        []byte
	ContentType string
}

// PayloadFetcher downloads the content of an identifier in a given format
type PayloadFetcher interface {
	Fetch(ctx context.Context, id int64, format Format) (*Payload, error)
}

// ArchiveBuilder packages downloaded items into one container
type ArchiveBuilder interface {
	Build(items []*DownloadedItem) (*Archive, error)
}
