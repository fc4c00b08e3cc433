// Package s3 provides an S3 implementation of the blobstore.BlobStore interface.
//
// # Usage
//
//	cfg, _ := config.LoadDefaultConfig(ctx)
//	store := s3.NewStore(awss3.NewFromConfig(cfg), "my-bucket", "rewardsearch/")
//	catalog, _ := reference.NewCatalog(ctx, store, "faces/", reference.ImageExtensions)
//
// # Features
//
//   - Range reads for partial fetches
//   - Multipart uploads for large trace segments
//   - Automatic pagination for listing
//   - Configurable prefix for multi-tenant isolation
package s3
