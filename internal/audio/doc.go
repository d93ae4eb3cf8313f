// Package audio moves encoded audio from a source into a playback process.
// A Sink spawns one child per call, a Bridge pipes the stream into the
// child's stdin, and the child's exit code decides the outcome. The player
// side (Play) decodes MP3 or raw PCM with oto/v3 and is what the default
// child process runs.
package audio
