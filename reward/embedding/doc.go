// Package embedding implements an identity reward: particles are scored by
// the negative Euclidean distance between their embedding and the embedding
// of a reference image.
//
// The embedding model is supplied by the caller through the Embedder
// interface. An Embedder that also implements GradientEmbedder enables
// gradient guidance.
package embedding
