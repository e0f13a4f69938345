// Package services holds cross-cutting helpers shared by the render and
// upload services: sentinel error markers, stage-aware error wrapping, and
// context annotations used for log correlation.
package services
