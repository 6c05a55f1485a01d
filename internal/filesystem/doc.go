/*
Package filesystem wraps the file operations used on the uploads volume with
retry logic for NFS stale file handle errors (ESTALE).

Only ESTALE is retried, with capped exponential backoff. Every other error is
returned on the first attempt. Volume labels for metrics come from a
VolumeResolver configured at startup, and metrics are reported through an
Observer so this package does not depend on the metrics package.

	filesystem.SetDefaultVolumeResolver(filesystem.NewVolumeResolver(map[string]string{
	    "uploads":  cfg.UploadsDir,
	    "database": cfg.DatabaseDir,
	}))
	info, err := filesystem.StatWithRetry(path, filesystem.DefaultRetryConfig())
*/
package filesystem
