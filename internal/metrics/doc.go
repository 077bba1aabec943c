// Package metrics names the perceptual quality metrics the target-quality
// search can aim at, runs the external tools that compute them, and
// aggregates per-frame score streams into a single probe score. The tools
// are external collaborators: libvmaf and xpsnr run as ffmpeg filters, the
// remaining metrics run inside the script runtime.
package metrics
