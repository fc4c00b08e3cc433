// Package distance provides the vector arithmetic used by embedding-based
// rewards: squared L2, dot product, norms and cosine similarity over float32
// embeddings.
//
// # Usage
//
//	dist := distance.SquaredL2(a, b)
//	sim := distance.Cosine(a, b)
//	ok := distance.NormalizeL2InPlace(v)
package distance
