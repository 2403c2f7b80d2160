// Package logger wraps zap and carries a sugared logger through contexts.
//
// Components never reach for a process-wide logger directly: they call the
// helpers here with the context they were given, so a caller (or a test) decides
// which logger and level a component writes to. Without one in the context the
// package default is used.
package logger
