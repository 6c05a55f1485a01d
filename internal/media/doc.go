// Package media wraps the image libraries used by the editor.
//
// Probing (ProbeFile, ProbeBytes) reads only the image header, so dimensions
// can be checked before any pixels are decoded. Pixel work goes through the
// Library and Handle interfaces, implemented by a pure Go backend built on
// disintegration/imaging and a libvips backend built on govips. Handles own
// decoded pixel buffers and must be closed.
package media
