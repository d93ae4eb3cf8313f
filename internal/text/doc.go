// Package text prepares text for speech synthesis: case-insensitive word
// replacements from a user file, then digits spelled out as words.
package text
