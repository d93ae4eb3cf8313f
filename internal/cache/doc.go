// Package cache keeps synthesized audio clips on disk, zstd-compressed and
// bounded by size and age, so repeated fallback phrases skip the network.
package cache
