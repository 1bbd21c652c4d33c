// Package logs reads the JSON log file written when logging.file is enabled.
//
// Last returns the final lines of the file, Follow streams lines appended
// after an offset, and Filter narrows JSON records to one job or a minimum
// level.
package logs
