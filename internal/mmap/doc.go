// Package mmap provides read-only memory-mapped file access.
//
// LocalStore uses it to serve reference images and trace segments without
// copying file contents through kernel buffers.
//
//	m, err := mmap.Open("refs/0001.png")
//	if err != nil { ... }
//	defer m.Close()
//	data := m.Bytes()
//
// Unix platforms use mmap(2) via golang.org/x/sys/unix; Windows uses
// CreateFileMapping/MapViewOfFile. Callers must not touch Bytes() after Close.
package mmap
