// Package batch runs the three request flows of tafsync: Analyze reads file
// headers and ranks reference catalog candidates, SearchMetadata looks up
// cover images, and ProcessBatch turns confirmed selections into custom
// catalog entries committed with a single save.
//
// A Service owns no I/O of its own. Directory listings, catalog documents,
// cover search and the journal are injected through Dependencies so the same
// flows run against a live media server or a local library tree.
package batch
