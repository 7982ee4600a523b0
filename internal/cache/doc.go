// Package cache implements the pixel cache: the storage behind every image
// and the per-worker nexus buffers through which pixels are read and written.
//
// # Storage
//
// A Cache stores Columns x Rows pixels of interleaved channels (see
// pixel.Layout) plus an optional fixed number of metacontent bytes per pixel.
// Small caches live in memory. When the pixel data exceeds
// Options.MemoryLimit the cache spills to a temporary file and keeps a
// bounded LRU of decoded rows resident.
//
// # Nexus
//
// A Nexus is a cursor plus staging buffer owned by exactly one worker. Every
// request names a region and a nexus; the returned slice is valid only until
// the next request on the same nexus. When a region is contiguous in a
// memory cache (a single row, or full-width rows) the nexus points straight
// into storage and no copy is made. Otherwise pixels are staged in the
// nexus' own buffer and SyncAuthenticPixels copies them back.
//
// # Thread Safety
//
// Distinct nexuses may be used concurrently. Overlapping writes from
// different nexuses race exactly as overlapping writes to a shared slice do;
// callers partition work so that regions do not overlap. Disk storage
// serializes file access internally.
//
// # Error Handling
//
// Request failures are thrown into the supplied exception context as
// CacheError records and returned as errors wrapping one of the package
// sentinels.
package cache
