// Package scenes turns the output of the external scene-change detector,
// user-forced keyframes, and zone overrides into the deterministic scene
// list the chunk queue is built from. The planner owns the min/max scene
// length rules; everything downstream treats the scene list as frozen.
package scenes
