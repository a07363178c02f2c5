// Package credential persists the session Credential Record ({token, email})
// in an encrypted key-value namespace and mirrors the token in a process-local
// cache for non-blocking reads.
//
// # Storage layout
//
// A record is two named entries, [EntryAccessToken] and [EntryUserEmail],
// sealed independently by a [Sealer] and written in one backend operation.
// Backends: [MemoryBackend], [RedisBackend], [SQLiteBackend].
//
// # Cache invariant
//
// The [Cache] is either empty or equal to the most recently written durable
// token. [Store.Save] writes durable storage first and replaces the cache
// before returning; [Store.Clear] always empties the cache.
//
// # What this package must NOT do
//
//   - Log or return plaintext tokens in errors.
//   - Contact the identity service.
package credential
