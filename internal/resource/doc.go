// Package resource bounds the resources a sampling run may use.
//
// A Controller governs three things:
//
//   - Memory: byte budget for caches (reference images, decoded embeddings).
//     Acquisition is non-blocking and fails fast with ErrMemoryLimitExceeded.
//   - Workers: concurrent per-particle scoring jobs (weighted semaphore).
//   - Requests: token-bucket rate for calls to remote scoring services.
//
// All methods are nil-safe; a nil *Controller imposes no limits.
//
//	rc := resource.NewController(resource.Config{
//	    MaxWorkers:     4,
//	    RequestsPerSec: 20,
//	})
//	if err := rc.AcquireWorker(ctx); err != nil {
//	    return err
//	}
//	defer rc.ReleaseWorker()
package resource
