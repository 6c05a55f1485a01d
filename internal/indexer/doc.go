// Package indexer reconciles the uploads directory with the asset records.
//
// Every stored file should belong to exactly one asset. A crash between
// writing a file and recording it, or a failed cleanup after a rejected
// save, leaves a file no record points at. The Reconciler walks the uploads
// root, compares each regular file against the recorded paths and removes
// the ones nothing references.
//
// Files younger than the grace period are never touched, so a save that is
// still in flight keeps its file. Hidden files and directories (prefixed
// with '.') are skipped.
package indexer
