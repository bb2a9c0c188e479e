// Package database provides the local key-value store the application keeps
// its data in.
//
// # Architecture
//
//	database/
//	├── database.go      # Connection setup, migration, Get/Set/Delete/Keys
//	└── records/         # Typed record collections (books, chapters, comments)
//
// The store is a single sqlite table (kv_entries) accessed through gorm. Each
// record collection is serialized as one JSON array under a namespaced key,
// e.g. "@LoveBooks:books". There are no row-level writes: callers load a
// whole collection, transform it in memory and save it back.
//
// # Usage
//
//	db, err := database.NewDatabase("./lovebooks.db")
//	store := records.NewStore(db, "@LoveBooks", logger)
//	books := store.Books.Load(ctx)
package database
