// Package measurement implements a data-consistency reward for inverse
// problems: particles are scored by how well their forward measurement
// A(x) matches the observed measurement y.
//
// The observation is passed per call in the payload under
// reward.PayloadMeasurements. Mask (inpainting) and Downsample
// (super-resolution) are provided as forward operators.
package measurement
