package app

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/pterm/pterm"

	"github.com/1ureka/genpkt/internal/stream"
)

const (
	previewLen  = 32      // payload bytes shown per row by Dump
	maxLineSize = 8 << 20 // longest input line accepted by Pack and RunClient
)

// newLineScanner returns a line scanner accepting lines up to maxLineSize.
func newLineScanner(in io.Reader) *bufio.Scanner {
	sc := bufio.NewScanner(in)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	return sc
}

// Dump reads a file of concatenated packets and writes one table row per
// packet to out. Rows for every complete packet are written even when the
// file ends mid-packet; that case is reported as io.ErrUnexpectedEOF.
func Dump(path string, f stream.Framer, out io.Writer, opts ...stream.Option) (int, error) {
	file, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer file.Close()

	rows := [][]string{{"#", "Offset", "Type", "Size", "Payload"}}
	r := stream.NewReader(bufio.NewReader(file), f, opts...)

	var offset int
	var readErr error
	for {
		fr, err := r.ReadFrame()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				readErr = err
			}
			break
		}
		rows = append(rows, []string{
			strconv.Itoa(len(rows)),
			strconv.Itoa(offset),
			describeType(fr.Type),
			strconv.Itoa(len(fr.Payload)),
			preview(fr.Payload),
		})
		offset += f.HeaderLen() + len(fr.Payload)
	}

	count := len(rows) - 1
	table, err := pterm.DefaultTable.WithHasHeader().WithData(rows).Srender()
	if err != nil {
		return count, err
	}
	fmt.Fprintln(out, table)
	fmt.Fprintf(out, "%d packet(s), %d bytes, layout %d/%d\n", count, offset, f.SizeBits(), f.TypeBits())

	if readErr != nil {
		return count, fmt.Errorf("%s at offset %d: %w", path, offset, readErr)
	}
	return count, nil
}

// Pack writes each line read from in to path as a packet of type typ,
// replacing the file. It returns the number of packets written.
func Pack(path string, f stream.Framer, typ uint32, in io.Reader) (int, error) {
	file, err := os.Create(path)
	if err != nil {
		return 0, err
	}
	defer file.Close()

	bw := bufio.NewWriter(file)
	w := stream.NewWriter(bw, f)

	var count int
	sc := newLineScanner(in)
	for sc.Scan() {
		if _, err := w.WriteFrame(stream.Frame{Type: typ, Payload: sc.Bytes()}); err != nil {
			return count, fmt.Errorf("line %d: %w", count+1, err)
		}
		count++
	}
	if err := sc.Err(); err != nil {
		return count, fmt.Errorf("failed to read input: %w", err)
	}

	if err := bw.Flush(); err != nil {
		return count, err
	}
	return count, file.Close()
}

func describeType(typ uint32) string {
	if name := typeName(typ); name != "" {
		return fmt.Sprintf("%d (%s)", typ, name)
	}
	return strconv.FormatUint(uint64(typ), 10)
}

// preview renders a payload prefix as quoted text when it is printable UTF-8
// and as hex otherwise.
func preview(p []byte) string {
	b, more := p, ""
	if len(b) > previewLen {
		b, more = b[:previewLen], "…"
	}
	s := string(b)
	if utf8.ValidString(s) && strings.IndexFunc(s, func(r rune) bool { return !unicode.IsPrint(r) }) < 0 {
		return strconv.Quote(s) + more
	}
	return fmt.Sprintf("% X", b) + more
}
