// Package vspipe generates VapourSynth scripts for the frame-indexed source
// plugins and runs them through the vspipe binary. The scripts are the
// contract with the script runtime: lathe never links VapourSynth, it only
// writes .vpy files and consumes y4m from vspipe's stdout.
package vspipe
