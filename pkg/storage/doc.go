/*
Package storage persists PixelForge's task/image/provider metadata in an
embedded BoltDB file (one bucket per entity type, JSON-encoded rows) and
the generated image bytes themselves in a local directory tree addressed
by task ID and index. Storage composes the two: callers get one handle
that can create a task row, land an image's bytes, and cascade-delete
both together.
*/
package storage
