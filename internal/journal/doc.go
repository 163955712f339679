// Package journal records every committed batch in a SQLite database so past
// runs and the entries they created can be reviewed later.
//
// The database is append-only from the application's point of view. Each run
// stores its per-file outcomes in run_items, keyed by the run id that also
// serves as the logging correlation id.
package journal
