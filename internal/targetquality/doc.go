// Package targetquality finds, per chunk, the quantizer whose probe encode
// scores closest to the user's perceptual target. The search is an
// interpolation-biased bisection over the integer quantizer interval with
// the two interval endpoints probed first as early-exit anchors. Probe
// encodes and metric runs are external subprocesses; the search only steers
// them and never exceeds its probe budget.
package targetquality
