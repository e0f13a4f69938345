// Package render turns queued jobs into looped video artifacts. It plans the
// FFmpeg invocation for a job, supervises the encode, and translates the
// tool's clock output into persisted progress and an arrival estimate.
package render
