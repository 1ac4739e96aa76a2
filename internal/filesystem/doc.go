/*
Package filesystem wraps the few filesystem calls the variant engine makes
(stat, open, remove) with retry logic for NFS stale file handle errors.

Uploads directories are often NFS or SMB mounts shared with the web server.
ESTALE (errno 116) shows up there when a file is replaced on the server while
a handle is cached on the client. Those calls are retried with exponential
backoff. Any other error is returned immediately.

	info, err := filesystem.StatWithRetry(path, filesystem.DefaultRetryConfig())

RemoveIfExists treats a missing file as success, which is what variant purges
need in order to be idempotent.

Retries, stale errors and final failures are counted in the
avif_everywhere_filesystem_* metrics.
*/
package filesystem
