// Package entry is the command journal: every command the service accepts
// is framed, checksummed and appended here before it touches the domain.
//
// Frame: [type:1][seq:8][time:8][len:4][payload][crc:4], big endian.
// Segments are named segment-NNNNNN.wal; each Open starts a new one.
package entry
