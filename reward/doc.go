// Package reward defines the contract between reward providers and the
// search loop.
//
// A Provider scores every particle of a population with a scalar, larger is
// better. Providers may also return the gradient of their loss with respect
// to the particles for gradient guidance. Providers are bound to a target
// with SetSideInfo before use.
//
// Failures on individual particles never abort scoring: the provider logs
// them and substitutes a worst-case score so ranking still works.
//
// Built-in providers live in sub-packages:
//
//   - embedding: identity reward from a reference image embedding
//   - measurement: data-consistency reward from a forward operator
//   - alignment: text/image alignment reward from a ranking model
package reward
