// Package dedupe tracks recently handled Matrix event IDs so that
// replayed or overlapping sync responses never process an event twice.
package dedupe
