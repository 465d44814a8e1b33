// Package spreadsheet rewrites the header row of exported sales reports.
//
// The console exports a report whose first row is a merged title band and
// whose second row carries headers that change between releases. Normalize
// drops the title row and writes the canonical sixteen column names over
// the old headers, so downstream consumers always see the same columns.
//
// Normalize is not idempotent. Running it twice on the same file removes the
// first data row, so callers rename a file before normalizing it and never
// normalize the renamed file again.
package spreadsheet
