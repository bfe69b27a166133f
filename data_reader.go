package measplot

import (
	"bufio"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
)

// Loading a table goes io.Reader -> StringReader (splits lines into fields)
// -> TextToDataRowReader (parses fields into a DataRow) -> ReadTable, which
// collects the rows. FileTableSource wraps the whole chain for a file path
// and is what the live loop re-reads on every iteration.

// When Read is called, return an array of strings which are the columns.
type StringReader interface {
	Read(context.Context) ([]string, error)
}

// When Read is called, return the DataRow.
type DataRowReader interface {
	Read(context.Context) (DataRow, error)
}

// This implements a StringReader and reads an io.Reader using the Golang
// csv module. This means the input data must strictly conform to CSV data. If
// the input data is whitespace separated, use the RelaxedStringReader.
type CsvStringReader struct {
	input     io.Reader
	csvReader *csv.Reader

	lineCount int
}

func NewCsvStringReader(input io.Reader) *CsvStringReader {
	csvReader := csv.NewReader(input)
	csvReader.Comment = '#'
	csvReader.FieldsPerRecord = -1

	return &CsvStringReader{
		input:     input,
		csvReader: csvReader,
		lineCount: 0,
	}
}

func (r *CsvStringReader) Read(ctx context.Context) ([]string, error) {
	line, err := r.csvReader.Read()
	if err == io.EOF {
		return nil, io.EOF
	}

	r.lineCount++

	if err != nil {
		logger := logrus.WithFields(logrus.Fields{
			"tag":     "CsvString",
			"line":    line,
			"lineNum": r.lineCount,
		})

		var parseErr *csv.ParseError
		if errors.As(err, &parseErr) {
			logger.WithError(err).Debug("unable to parse CSV")
			return nil, fmt.Errorf("%w: line %d: %v", ErrFormat, r.lineCount, err)
		}

		logger.WithError(err).Error("unable to read CSV")
		return nil, err
	}

	return line, nil
}

// This is a more relaxed reader that splits on spaces, tabs or commas, the
// way numeric text dumps are usually written. Everything after a '#' is a
// comment. This is the default.
type RelaxedStringReader struct {
	input   io.Reader
	scanner *bufio.Scanner

	lineCount int
}

// Longest line the relaxed reader accepts.
const maxLineLength = 1 << 20

func NewRelaxedStringReader(input io.Reader) *RelaxedStringReader {
	scanner := bufio.NewScanner(input)
	scanner.Buffer(make([]byte, 0, bufio.MaxScanTokenSize), maxLineLength)

	return &RelaxedStringReader{
		input:   input,
		scanner: scanner,

		lineCount: 0,
	}
}

// Split on either comma or any number of spaces or tabs
var relaxedSplitter = regexp.MustCompile("[ \t]+|,")

func (r *RelaxedStringReader) Read(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if !r.scanner.Scan() {
		err := r.scanner.Err()
		if errors.Is(err, bufio.ErrTooLong) {
			return nil, fmt.Errorf("%w: line %d is longer than %d bytes", ErrFormat, r.lineCount+1, maxLineLength)
		}
		if err != nil {
			logrus.WithField("tag", "RelaxedString").WithError(err).Error("unable to read line")
			return nil, err
		}
		return nil, io.EOF
	}

	r.lineCount++
	line := r.scanner.Text()
	if i := strings.IndexByte(line, '#'); i >= 0 {
		line = line[:i]
	}

	// Return only non-empty fields
	splittedLine := Filter(relaxedSplitter.Split(strings.TrimSpace(line), -1), func(value string) bool {
		return len(value) > 0
	})

	return splittedLine, nil
}

// Converts text fields into DataRows. The first field is the timestamp.
type TextToDataRowReader struct {
	// The input reader object (either CsvStringReader or RelaxedStringReader)
	Input StringReader

	// If set, a field that is not a number fails the read with ErrFormat.
	// Otherwise the row is skipped with a warning.
	Strict bool
}

func (r *TextToDataRowReader) Read(ctx context.Context) (DataRow, error) {
	line, err := r.Input.Read(ctx)
	if err != nil {
		return DataRow{}, err
	}

	if len(line) == 0 {
		return DataRow{}, errIgnoreThisRow
	}

	logger := logrus.WithFields(logrus.Fields{
		"tag":  "TextToData",
		"line": line,
	})

	dataRow := DataRow{Ys: make([]float64, 0, len(line)-1)}

	for i, value := range line {
		floatValue, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil {
			if r.Strict {
				return DataRow{}, fmt.Errorf("%w: cannot parse %q as a number", ErrFormat, value)
			}
			logger.Warn("cannot parse float, ignoring...")
			return DataRow{}, errIgnoreThisRow
		}

		if i == 0 {
			dataRow.X = floatValue
			continue
		}

		dataRow.Ys = append(dataRow.Ys, floatValue)
	}

	return dataRow, nil
}

// ReadTable reads rows until EOF. Blank and comment lines are skipped. The
// table is not validated here.
func ReadTable(ctx context.Context, input DataRowReader) (Table, error) {
	var table Table
	for {
		row, err := input.Read(ctx)
		if err == errIgnoreThisRow {
			continue
		} else if err == io.EOF {
			return table, nil
		} else if err != nil {
			return nil, err
		}

		table = append(table, row)
	}
}

// TableSource produces a fresh copy of a table every time Load is called.
type TableSource interface {
	Load(context.Context) (Table, error)
}

// Loads a whitespace (or comma, with CSV set) delimited numeric text file,
// the way numpy.loadtxt does. Each call re-opens the file from scratch.
type FileTableSource struct {
	Path string
	CSV  bool
}

func (s FileTableSource) Load(ctx context.Context) (Table, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var input StringReader
	if s.CSV {
		input = NewCsvStringReader(f)
	} else {
		input = NewRelaxedStringReader(f)
	}

	table, err := ReadTable(ctx, &TextToDataRowReader{Input: input, Strict: true})
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", s.Path, err)
	}

	if err := table.Validate(); err != nil {
		return nil, fmt.Errorf("reading %s: %w", s.Path, err)
	}

	return table, nil
}
