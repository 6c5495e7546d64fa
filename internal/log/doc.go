// Package log provides leveled logging shared by every component, backed by
// a zap SugaredLogger so format strings stay Printf-style without giving up
// zap's structured core.
//
// # Log Levels
//
//   - DEBUG: only emitted once SetVerbose(true) has been called
//   - INFO, WARN, ERROR: always emitted
//
// # Example Usage
//
//	log.Infof("starting routerd")
//	log.SetVerbose(true)
//	log.Debugf("snapshot: %+v", snap)
//	log.Fatalf("config load failed: %v", err) // exits with code 1
package log
