/*
Package workers sizes worker pools in containerized environments.

runtime.NumCPU() reports the host's CPU count even when a cgroup limits the
container to a fraction of it. Since Go 1.19 GOMAXPROCS follows the container
limit, so worker counts are derived from it instead:

	limit := workers.ForCPU(batchSize)

Encoding AVIF and WebP is CPU bound and memory hungry, so batch runs use
ForCPU capped by the batch size.

# Environment Variable Override

TRANSCODE_WORKERS pins the count regardless of available CPUs. The chunk
size passed to ForCPU still caps it:

	env:
	- name: TRANSCODE_WORKERS
	  value: "2"
*/
package workers
