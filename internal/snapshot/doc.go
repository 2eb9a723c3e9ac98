// Gamebot - Survivor Dataset Medallion Warehouse
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gamebot

/*
Package snapshot retrieves the published survivoR exports and presents them as
an immutable Snapshot of named tables.

# Values and Records

Upstream tables have loose, revision-dependent schemas, so rows are carried
as Records: ordered, named Values tagged with a Kind. Decoding keeps the
observed kind (a JSON string stays Text, a whole number becomes Int) so drift
detection can compare what arrived with what the registry declares. Conform
then renames, coerces and drops columns to match a declared table.

# Fetching

For every dataset the Fetcher:

 1. asks the commits API which export (primary or JSON) changed last
 2. probes a signature for that file (HEAD validators, or a sha256 of the body)
 3. serves the payload from the Cache when the signature is already known
 4. otherwise downloads, caches and decodes it

Every upstream request passes a token-bucket limiter and a circuit breaker.
HTTP 429 responses are retried with exponential backoff, honoring Retry-After.
Network and decode failures surface as *FetchError. An unchanged upstream is
a cache hit, not an error.

The snapshot signature is a sha256 over the sorted per-dataset signatures, so
two fetches of the same upstream revision produce the same value.
*/
package snapshot
