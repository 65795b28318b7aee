// Copyright ©2022 Evolution. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package video

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"time"
)

var ErrInvalidRational = errors.New("invalid rational")

// Rational is a fraction as reported by ffprobe, e.g. "30000/1001" frame rate
// or "1/600" time base.
type Rational struct {
	Num int64
	Den int64
}

// ParseRational parses "num/den" or a plain integer.
func ParseRational(s string) (Rational, error) {
	var r Rational
	num, den, found := strings.Cut(strings.TrimSpace(s), "/")
	n, err := strconv.ParseInt(num, 10, 64)
	if err != nil {
		return r, fmt.Errorf("%w %q: %s", ErrInvalidRational, s, err)
	}
	d := int64(1)
	if found {
		d, err = strconv.ParseInt(den, 10, 64)
		if err != nil {
			return r, fmt.Errorf("%w %q: %s", ErrInvalidRational, s, err)
		}
	}
	// ffprobe reports unknown values as "0/0".
	if d == 0 && n != 0 {
		return r, fmt.Errorf("%w %q: zero denominator", ErrInvalidRational, s)
	}
	return Rational{Num: n, Den: d}, nil
}

// IsZero reports whether r is zero or undefined.
func (r Rational) IsZero() bool {
	return r.Num == 0 || r.Den == 0
}

// Float64 returns r as floating point value, 0 for undefined r.
func (r Rational) Float64() float64 {
	if r.Den == 0 {
		return 0
	}
	return float64(r.Num) / float64(r.Den)
}

// Duration converts ticks counted in r units (a time base) to time.Duration.
func (r Rational) Duration(ticks int64) time.Duration {
	if r.Den == 0 {
		return 0
	}
	// Large timestamps of 90 kHz time bases overflow int64 when multiplied
	// out, so compute exactly and truncate like integer division.
	n := new(big.Int).Mul(big.NewInt(ticks), big.NewInt(r.Num))
	n.Mul(n, big.NewInt(int64(time.Second)))
	n.Quo(n, big.NewInt(r.Den))
	return time.Duration(n.Int64())
}

func (r Rational) String() string {
	return fmt.Sprintf("%d/%d", r.Num, r.Den)
}

// MarshalJSON implements json.Marshaler interface for Rational.
func (r Rational) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.String())
}

// UnmarshalJSON implements json.Unmarshaler interface for Rational.
func (r *Rational) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	v, err := ParseRational(s)
	if err != nil {
		return err
	}
	*r = v
	return nil
}
