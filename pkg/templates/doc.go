/*
Package templates serves PixelForge's read-only prompt/style template
catalog. It is pure data: a small set of prompt templates baked into
the binary (optionally overridden by a catalog file on disk), filtered
by category or keyword, and handed back to the caller. Nothing here
ever mutates a Template or talks to an upstream provider.
*/
package templates
