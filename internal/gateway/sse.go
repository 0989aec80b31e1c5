package gateway

import (
	"bufio"
	"errors"
	"io"
	"strings"
)

// readSSE calls onData with the joined data lines of every server-sent
// event in r. It stops early if onData returns errStopStream.
func readSSE(r io.Reader, onData func(data string) error) error {
	br := bufio.NewReaderSize(r, 64*1024)
	var dataLines []string

	flush := func() error {
		if len(dataLines) == 0 {
			return nil
		}
		data := strings.Join(dataLines, "\n")
		dataLines = nil
		return onData(data)
	}

	for {
		line, err := br.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return err
		}
		eof := errors.Is(err, io.EOF)
		line = strings.TrimRight(line, "\r\n")

		switch {
		case line == "":
			if ferr := flush(); ferr != nil {
				return stopped(ferr)
			}
		case strings.HasPrefix(line, ":"):
		case strings.HasPrefix(line, "data:"):
			dataLines = append(dataLines, strings.TrimSpace(strings.TrimPrefix(line, "data:")))
		}

		if eof {
			return stopped(flush())
		}
	}
}

var errStopStream = errors.New("stop stream")

func stopped(err error) error {
	if errors.Is(err, errStopStream) {
		return nil
	}
	return err
}
