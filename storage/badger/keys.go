package badger

import (
	"encoding/binary"
)

// Key prefixes for different data types
const (
	collectionPrefix = "col:"
	revisionPrefix   = "rev:"
	logEntryPrefix   = "log:"
	logSeqPrefix     = "logseq:"
)

// makeCollectionKey generates the key holding a collection document.
func makeCollectionKey(name string) []byte {
	return []byte(collectionPrefix + name)
}

// makeRevisionKey generates the key holding a collection's revision counter.
func makeRevisionKey(name string) []byte {
	return []byte(revisionPrefix + name)
}

// makeLogSeqKey names the sequence that orders a log's entries.
func makeLogSeqKey(name string) string {
	return logSeqPrefix + name
}

// makePartialLogKey generates the prefix shared by every entry of a log.
// Format: prefix:name:
func makePartialLogKey(name string) []byte {
	return []byte(logEntryPrefix + name + ":")
}

// makeLogEntryKey generates a composite key for one log entry.
// Format: prefix:name:seq
func makeLogEntryKey(name string, seq uint64) []byte {
	prefix := makePartialLogKey(name)
	buf := make([]byte, len(prefix)+8)
	offset := copy(buf, prefix)
	// Write in BigEndian order so lexicographic sort works correctly
	binary.BigEndian.PutUint64(buf[offset:], seq)
	return buf
}
