/*
Package workers sizes worker pools from the CPUs available to the process.

Go sets GOMAXPROCS from the container CPU quota, so the counts returned here
track the real parallelism of the host. Each helper accepts the name of an
environment variable whose positive integer value replaces the computed
count, and a limit that caps the result.

	decoders := workers.ForCPU("DECODE_WORKERS", 8)
	walkers := workers.ForIO("INDEX_WORKERS", 16)

Invalid or non-positive overrides are ignored.
*/
package workers
