// Package provider holds batch fetch sources that can back a declared
// association: an in-memory set, a SQL table, and an HTTP endpoint. Each
// source exposes a Fetch method with the assoc.FetchFunc signature.
package provider
