// Package srt receives live transport streams over SRT, either by
// listening for publishers (Server) or by dialing a remote listener
// (Caller), and registers them with the ingest registry for playback.
package srt
