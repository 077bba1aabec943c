// Package scenedetect runs the external av-scenechange detector over a y4m
// stream decoded by ffmpeg and parses its JSON result. Detection quality is
// the detector's business; lathe only consumes the cut list.
package scenedetect
