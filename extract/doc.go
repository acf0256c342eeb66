// Package extract turns downloaded ontology source files into per-concept
// class records.
//
// Each ontology yields one gzip artifact with a JSON class record per line,
// resolved through the annotation property cascades of package ontology.
// Expanded archive directories are handled by identifying the main source
// file; an existing non-empty artifact makes an ontology a no-op on re-runs.
// Parsing failures are logged and never stop the remaining ontologies.
package extract
