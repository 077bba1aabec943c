// Package encoder models the supported external video encoders as a tagged
// variant with a shared capability set: default arguments, quantizer ranges
// and substitution, probe argument construction, pass composition, and
// progress-line parsing. The encoder binaries themselves are external
// collaborators; this package only builds their argument lists and interprets
// their output.
package encoder
