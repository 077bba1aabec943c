// Package framesource exposes, for a given chunk, a subprocess whose stdout
// is a y4m stream of exactly the chunk's frames, suitable as standard input
// to an encoder. Backends differ in accuracy and intermediate-file cost:
// the script-indexed methods (lsmash, ffms2, bestsource, dgdecnv) are
// frame-exact with no intermediate video files, segment pre-splits the
// source on keyframes, select decodes from the start of the file for every
// chunk, and hybrid seeks to the previous keyframe before selecting.
package framesource
