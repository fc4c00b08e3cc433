// Package remote implements alignment.Ranker against an HTTP scoring service.
//
// Each Rank call POSTs one request:
//
//	{"prompt": "...", "images": ["<base64 png>", ...]}
//
// and expects
//
//	{"scores": [0.12, -0.4, ...]}
//
// Calls pass through a request-rate limiter and a circuit breaker so a
// failing service is not hammered by every sampling step.
package remote
