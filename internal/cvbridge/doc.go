// Package cvbridge connects the simulator to OpenCV through gocv: a Farneback
// optical-flow engine, a video capture source and a display window sink.
//
// Everything except this file requires the gocv build tag and a local OpenCV
// install. Without the tag, Available reports false and the command line
// falls back to the remote engine and the ffmpeg or image sources.
package cvbridge
