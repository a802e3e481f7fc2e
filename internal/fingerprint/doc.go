// Package fingerprint computes the deterministic cache identity of step
// execution attempts. A step's key combines its code digest, canonical
// parameters, upstream keys and cache-relevant settings; identical keys
// mean interchangeable results.
package fingerprint
