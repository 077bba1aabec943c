// Package concat joins the finished per-chunk segments plus the audio track
// into the final container. Three muxer strategies exist with distinct
// failure modes: mkvmerge (appends segments, most robust), ffmpeg (demuxer
// concat list), and ivf (in-process header-level merge, AV1/VP9 ivf only).
// Concat is a linear read-merge; no re-encode happens here.
package concat
