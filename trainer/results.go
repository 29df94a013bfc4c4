package trainer

import (
	"encoding/csv"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// ResultsFile is written by the trainer into the run directory, one row per epoch
const ResultsFile = "results.csv"

type Metric struct {
	Name  string
	Value float64
}

// ReadMetrics returns the last epoch's row of a results.csv in column order.
// Non-numeric cells are skipped.
func ReadMetrics(path string) ([]Metric, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "opening results")
	}
	defer f.Close()
	return parseMetrics(f)
}

func parseMetrics(r io.Reader) ([]Metric, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err == io.EOF {
		return nil, errors.New("results file is empty")
	}
	if err != nil {
		return nil, errors.Wrap(err, "reading results header")
	}

	var last []string
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, "reading results row")
		}
		last = row
	}
	if last == nil {
		return nil, errors.New("results file has no epochs")
	}

	metrics := make([]Metric, 0, len(header))
	for i, name := range header {
		if i >= len(last) {
			break
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(last[i]), 64)
		if err != nil {
			continue
		}
		metrics = append(metrics, Metric{Name: strings.TrimSpace(name), Value: v})
	}
	return metrics, nil
}
