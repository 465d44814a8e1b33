// Package files provides the file system operations of the report flows.
//
// Discovery lists finished spreadsheets in a directory, skipping lock files
// and partial downloads. Manager moves, copies and deletes files and reports
// failures as STORAGE errors.
//
//	discovery := files.NewDiscovery(".xlsx")
//	found, err := discovery.Find(downloadsDir)
//
//	manager := files.NewManager(logger)
//	err = manager.MoveFile(found[0].Path, target)
package files
