package gps

import (
	"bufio"
	"io"
	"strings"

	nmea "github.com/adrianmo/go-nmea"
)

// Scan reads NMEA lines from r, merging them into a running Fix, and calls
// emit after every RMC sentence. It returns the first read error, or nil
// at EOF.
func Scan(r io.Reader, emit func(Fix)) error {
	reader := bufio.NewReader(r)
	var current Fix

	for {
		line, err := reader.ReadString('\n')
		if line = strings.TrimSpace(line); strings.HasPrefix(line, "$") {
			// noisy GPS or partial sentences are skipped
			if sentence, perr := nmea.Parse(line); perr == nil {
				if current.Apply(sentence) && sentence.DataType() == nmea.TypeRMC {
					emit(current)
				}
			}
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
	}
}
