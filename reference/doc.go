// Package reference loads side information for reward providers: reference
// images and prompt texts stored in a blobstore.
//
// A Catalog is an index-addressable, sorted view over the blobs under a prefix
// whose extension is in a fixed set. Reward providers bind to a catalog item
// by index.
//
//	store := blobstore.NewLocalStore("data")
//	faces, err := reference.NewCatalog(ctx, store, "additional_images/", reference.ImageExtensions)
//	img, err := faces.LoadImage(ctx, 3, 256)
package reference
