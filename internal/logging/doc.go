// Package logging provides leveled logging for the image editor service.
//
// Levels, from most to least verbose:
//   - DEBUG: request-level detail, validation rejections
//   - INFO: lifecycle and configuration messages
//   - WARN: degraded behaviour such as a rate-limit store outage
//   - ERROR: processing and persistence failures
//   - FATAL: unrecoverable startup errors
//
// The level is read once from DEBUG or LOG_LEVEL. Fields renders
// key=value context that is appended to a message. Output goes to stderr and,
// after SetOutputFile, to a rotated log file as well.
package logging
