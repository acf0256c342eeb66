// Package mappings downloads the cross-ontology concept mappings for every
// ontology of the catalog, one array-framed gzip artifact per ontology.
//
// Artifacts are written through a temp file and renamed on success, so an
// aborted run never leaves a partial mapping file behind; existing non-empty
// artifacts are skipped on re-runs. An incomplete pagination walk still
// yields an artifact with the records obtained so far and is called out in
// the run report.
package mappings
