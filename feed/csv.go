package feed

import (
	"fmt"
	"os"
	"slices"
	"time"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/mitchellh/mapstructure"
)

var requiredColumns = []string{"solar_kw", "wind_kw", "load_kw", "price_per_kwh", "carbon_kg_per_kwh"}

// ReadCSV loads a feed from the CSV file at `path`, which must have a header row naming at least the columns
// solar_kw, wind_kw, load_kw, price_per_kwh and carbon_kg_per_kwh. Other columns are ignored. The whole file is
// read up front.
func ReadCSV(path string, start time.Time, step time.Duration) (*Series, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open feed file: %w", err)
	}
	defer file.Close()

	df := dataframe.ReadCSV(file, dataframe.DetectTypes(false), dataframe.DefaultType(series.Float))
	if df.Err != nil {
		return nil, fmt.Errorf("parse feed file: %w", df.Err)
	}

	names := df.Names()
	for _, col := range requiredColumns {
		if !slices.Contains(names, col) {
			return nil, fmt.Errorf("feed file is missing column '%s'", col)
		}
	}

	rows := df.Select(requiredColumns).Maps()
	samples := make([]Sample, 0, len(rows))
	for i, row := range rows {
		var sample Sample
		decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
			WeaklyTypedInput: true,
			ErrorUnused:      true,
			Result:           &sample,
		})
		if err != nil {
			return nil, fmt.Errorf("create decoder: %w", err)
		}
		err = decoder.Decode(row)
		if err != nil {
			return nil, fmt.Errorf("decode feed row %d: %w", i, err)
		}
		samples = append(samples, sample)
	}

	return NewSeries(start, step, samples)
}
