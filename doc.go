// Package logging is the test-suite logging facility: named rs/zerolog
// loggers rendered through configurable line templates into per-logger
// rotating files, with warning deduplication, named-interval performance
// timers, worker-scoped log renaming and delivery of every record to an
// artifact collector.
//
// Key features
//   - Trace level below debug, critical level above error; disabled levels
//     cost no formatting and no caller capture
//   - Per-record source overrides (SourceFile/SourceLine) so helpers can
//     attribute records to their real call sites
//   - Layered configuration from env.yaml plus env.local.yaml: defaults,
//     then the logging section, then the per-logger subsection
//   - Rotation via lumberjack with byte-exact caps; a zero cap appends to a
//     plain file, zero backups retains none
//   - Graceful shutdown that waits for in-flight records (bounded timeout)
//   - Error history enrichment: for any Err/AnErr the record includes the
//     full error chain (outermost -> root), the root cause string and a
//     joined human-readable history
//
// Typical usage
//
//	svc := logging.NewService(workdir)
//	if err := svc.Initialize(); err != nil {
//		panic(err)
//	}
//	defer svc.Close()
//
//	log := svc.Default()
//	log.InfoWith().Str("appliance", name).Msg("provision requested")
//	log.Errorf("provision failed: %v", err)
//
//	svc.Perf().Start("appliance-boot")
//	// ...
//	svc.Perf().Stop("appliance-boot")
package logging
