// Package storage keeps uploaded and edited image files on the local
// uploads volume, laid out as YYYY/MM/<name>. Paths handed to and returned by
// this package are relative to the uploads root and may not escape it.
package storage
