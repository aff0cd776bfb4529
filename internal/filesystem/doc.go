/*
Package filesystem wraps os.Stat and os.Open with retries for stale NFS
file handles.

Photo libraries are often mounted over NFS. When the server side changes
underneath a client, reads fail with ESTALE (errno 116) until the handle is
refreshed; a short retry normally succeeds. Every other error is returned
immediately.

	f, err := filesystem.OpenWithRetry(path, filesystem.DefaultRetryConfig())
	if err != nil {
		return err
	}
	defer f.Close()

Backoff starts at InitialBackoff and doubles up to MaxBackoff. Retries,
recoveries, final failures and operation durations are exported through the
petscan_filesystem_* Prometheus metrics, labelled by operation.
*/
package filesystem
