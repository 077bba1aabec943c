// Package ffprobe inspects the source container with the external ffprobe
// binary and answers the questions the planner needs: frame count, frame
// rate, resolution, pixel format, and audio presence.
package ffprobe
