// Package ingest parses JSON deltas into raw triples.
//
// Three delta shapes are accepted:
//
//	{"additions": [{"s": "...", "p": "...", "o": "..."}], "removals": []}
//	[{"s": "...", "p": "...", "o": "..."}]
//	{"@graph": [{"@id": "...", "<predicate>": "<object>", ...}]}
//
// Triple objects accept long field names (subject, predicate, object,
// graph) as well as the short ones (s, p, o, g). Objects may be strings,
// numbers or booleans. Removals are read but not applied.
package ingest
