// Package cache provides a byte-bounded LRU cache for immutable blobs such as
// reference images and reference texts.
//
// The cache integrates with resource.Controller: every cached byte is
// reserved against the controller's memory budget and released on eviction.
// When the controller refuses memory the value is simply not cached.
package cache
