// Package storage provides the durable key/value store behind the response
// cache's durable tier and the monthly usage counters.
//
// Two backends are provided: MemoryStore (default, process lifetime) and
// SQLiteStore (survives restarts). The namespaced key scheme and value
// shapes are the compatibility contract, not the backend: any store that
// preserves "api_*" keys and their blobs can be swapped in.
package storage
