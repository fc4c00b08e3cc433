// Package minio provides a BlobStore implementation using the MinIO client.
//
// It works against MinIO and other S3-compatible systems (Ceph, SeaweedFS,
// Garage) and needs no AWS SDK.
//
// # Basic Usage
//
//	client, err := minio.New("localhost:9000", &minio.Options{
//	    Creds:  credentials.NewStaticV4("minioadmin", "minioadmin", ""),
//	    Secure: false,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	store := minioblob.NewStore(client, "my-bucket", "rewardsearch/")
//	catalog, err := reference.NewCatalog(ctx, store, "faces/", reference.ImageExtensions)
package minio
