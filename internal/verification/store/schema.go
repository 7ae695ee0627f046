package store

import _ "embed"

// Schema is the PostgreSQL DDL for all verification tables. Integration tests
// apply it against a disposable container; deployments apply it via tooling.
//
//go:embed schema.sql
var Schema string
