// Command corpusbuilder acquires weakly-labeled fastText training lines.
//
// Subcommands:
//
//	papers    search CrossRef, resolve open-access copies via Unpaywall, and
//	          label abstract and full-text sentences
//	sites     crawl a site manifest breadth-first and label page sentences
//	keywords  derive a per-label keyword report from labeled examples
//	dataset   export labeled examples from CSV or Postgres as training lines
//
// The persistent --config flag points at a YAML/JSON/TOML file read by Viper;
// CORPUS_* environment variables and a .env file override it, and flags set on
// the command line override both.
package main
