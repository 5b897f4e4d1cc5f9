// Package validation checks input files and output directories before a run
// touches them, so a misplaced or locked file fails with a clear LOAD error
// instead of a decoder message.
package validation
