// Package main hosts the tafsync CLI entrypoint and command graph.
//
// Commands wire configuration into the batch service: parse inspects TAF
// files, analyze ranks reference catalog candidates, search looks up covers,
// process commits confirmed selections to the custom catalog, and history
// reads the commit journal. Every command can emit JSON with --json so the
// output can feed a review front end.
//
// Keep this package thin. Behaviour belongs in the internal packages; the
// commands only resolve configuration, build collaborators and render.
package main
