package entry

import (
	"encoding/binary"
	"io"
	"os"

	"github.com/cockroachdb/errors"
)

// maxSeqInSegment scans a WAL segment and returns the maximum sequence ID found.
// It is used ONLY for snapshot-based truncation.
func maxSeqInSegment(path string) (uint64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	var max uint64
	header := make([]byte, headerSize)

	for {
		if _, err := io.ReadFull(f, header); err != nil {
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				return max, nil
			}
			return max, err
		}

		seq := binary.BigEndian.Uint64(header[1:9])
		if seq > max {
			max = seq
		}

		payloadLen := binary.BigEndian.Uint32(header[17:21])

		// Skip payload + CRC
		if _, err := f.Seek(int64(payloadLen)+crcSize, io.SeekCurrent); err != nil {
			return max, err
		}
	}
}

// repairTail cuts a torn frame off the end of a segment left by a crash
// mid-append, so later segments can follow it.
func repairTail(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}

	var valid int64
	for {
		rec, err := readRecord(f)
		if err == io.EOF {
			f.Close()
			return nil
		}
		if errors.Is(err, io.ErrUnexpectedEOF) {
			f.Close()
			return os.Truncate(path, valid)
		}
		if err != nil {
			// corruption is reported by Replay
			f.Close()
			return nil
		}
		valid += int64(headerSize + len(rec.Data) + crcSize)
	}
}
