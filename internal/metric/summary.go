// Copyright ©2022 Evolution. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package metric

import (
	"fmt"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Stat holds descriptive statistics of a duration series.
type Stat struct {
	Min    time.Duration `json:"min"`
	Max    time.Duration `json:"max"`
	Mean   time.Duration `json:"mean"`
	StdDev time.Duration `json:"stddev"`
}

func (s Stat) String() string {
	return fmt.Sprintf("min=%s max=%s mean=%s stddev=%s", s.Min, s.Max, s.Mean, s.StdDev)
}

// Summary aggregates all per-frame records.
type Summary struct {
	Frames  int  `json:"frames"`
	Combine Stat `json:"combine"`
	Write   Stat `json:"write"`
	// Interval is distance between presentation timestamps of consecutive
	// frames.
	Interval Stat `json:"interval"`
}

// Summarize calculates Summary of records stored in s.
func Summarize(s *Store) Summary {
	records := s.Records()
	sum := Summary{Frames: len(records)}
	if len(records) == 0 {
		return sum
	}

	combine := make([]float64, len(records))
	write := make([]float64, len(records))
	interval := make([]float64, 0, len(records)-1)
	for i, r := range records {
		combine[i] = float64(r.CombineTime)
		write[i] = float64(r.WriteTime)
		if i > 0 {
			interval = append(interval, float64(r.PTS-records[i-1].PTS))
		}
	}
	sum.Combine = newStat(combine)
	sum.Write = newStat(write)
	sum.Interval = newStat(interval)

	return sum
}

// Durations returns named series of record fields in seconds, suitable for
// plotting.
func Durations(s *Store) (combine, write []float64) {
	records := s.Records()
	combine = make([]float64, len(records))
	write = make([]float64, len(records))
	for i, r := range records {
		combine[i] = r.CombineTime.Seconds()
		write[i] = r.WriteTime.Seconds()
	}
	return combine, write
}

func newStat(values []float64) Stat {
	if len(values) == 0 {
		return Stat{}
	}
	st := Stat{
		Min:  time.Duration(floats.Min(values)),
		Max:  time.Duration(floats.Max(values)),
		Mean: time.Duration(stat.Mean(values, nil)),
	}
	// Sample standard deviation is undefined for a single value.
	if len(values) > 1 {
		st.StdDev = time.Duration(stat.StdDev(values, nil))
	}
	return st
}
