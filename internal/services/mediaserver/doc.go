// Package mediaserver talks to the HTTP API of the box server that hosts the
// TAF library: directory listings with pre-parsed headers, the reference
// catalog, and the trigger that makes the server re-read its catalogs.
package mediaserver
