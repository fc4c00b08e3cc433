// Package alignment implements a text/image alignment reward: particles are
// ranked against a prompt by an external preference model.
//
// The model is supplied through the Ranker interface; package remote provides
// an HTTP client for a scoring service. Alignment rewards offer no gradients.
package alignment
