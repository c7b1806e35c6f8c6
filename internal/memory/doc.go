// Package memory implements the per-project external memory document.
//
// Each project is one Markdown file, PROJECT_MEMORY_<id>.md, holding a fixed
// preamble and an insertion-ordered list of "## <name>" sections:
//
//	# PROJECT_MEMORY: acme
//
//	**Created**: 2026-10-14T09:00:00Z
//	**Version**: 4.0
//	**Last Updated**: 2026-10-14T09:05:12Z
//
//	---
//
//	## user_query
//	Evaluate the solid-state battery market
//
// WriteSection replaces a section body in place or appends a new section,
// rewrites the Last Updated line, and leaves every other byte of the
// document untouched. The file is replaced atomically (temp file + rename),
// so a failed write never leaves a partial document behind.
//
// Store hands out one *Memory per project id. Writes on a Memory are
// serialized by its mutex, which gives the single-writer discipline the
// phase pipeline relies on when executor results arrive concurrently.
package memory
