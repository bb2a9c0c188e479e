// Package importers reconstructs books from portable export documents.
//
// # Flow
//
//	raw bytes → Decode → ValidateDocument → Importer.Import → LibraryService.ImportBook
//
// Decode and ValidateDocument reject anything that is not a well-formed
// BookExport before any file or record is written. Import then:
//
//  1. issues a fresh book id and fresh chapter ids (never reusing the
//     document's ids), keeping the old→new chapter mapping in the Result
//  2. materializes the inlined cover and chapter images concurrently,
//     keeping each chapter's image order
//  3. appends the book and its chapters through the service in one call
//
// If any asset fails to materialize, the files already written are removed
// and nothing reaches the store.
//
// # Schema
//
// Schema returns the JSON Schema of the document format, generated from the
// entities.BookExport struct.
package importers
