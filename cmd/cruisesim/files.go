package main

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"go.uber.org/multierr"

	"github.com/erh/cruisesim"
)

var csvHeader = []string{
	"time_s", "speed_ms", "speed_kmh", "error", "command",
	"traction_n", "brake_n", "integral", "derivative", "resistance_n", "gravity_n",
}

func writeJSON(path string, v interface{}) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Combine(err, f.Close())
	}()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func writeCSV(path string, rec *cruisesim.Record) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Combine(err, f.Close())
	}()

	format := func(x float64) string { return strconv.FormatFloat(x, 'g', -1, 64) }

	w := csv.NewWriter(f)
	if err := w.Write(csvHeader); err != nil {
		return err
	}
	for n := 0; n < rec.Len(); n++ {
		row := []string{
			format(rec.Time[n]),
			format(rec.Velocity[n]),
			format(cruisesim.MsToKmh(rec.Velocity[n])),
			format(rec.Error[n]),
			format(rec.Command[n]),
			format(rec.TractionForce[n]),
			format(rec.BrakeForce[n]),
			format(rec.IntegralTerm[n]),
			format(rec.DerivativeTerm[n]),
			format(rec.ResistanceForce[n]),
			format(rec.GravityForce[n]),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

// readTrace loads a saved trace. A missing file is not an error, there is
// just nothing to overlay.
func readTrace(path string) (*cruisesim.Trace, error) {
	ok, err := fileExists(path)
	if err != nil || !ok {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var tr cruisesim.Trace
	if err := json.Unmarshal(data, &tr); err != nil {
		return nil, fmt.Errorf("read trace %s: %w", path, err)
	}
	if len(tr.Time) != len(tr.Velocity) {
		return nil, fmt.Errorf("read trace %s: %d times but %d velocities", path, len(tr.Time), len(tr.Velocity))
	}
	return &tr, nil
}
