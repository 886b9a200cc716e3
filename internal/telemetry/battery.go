package telemetry

import (
	"context"
	"math"

	"codeberg.org/mutker/socmonitor/internal/errors"
	"codeberg.org/mutker/socmonitor/internal/logger"
	"github.com/distatus/battery"
)

const secondsPerHour = 3600

// BatterySource reads the aggregated state of every battery in the system.
type BatterySource struct {
	getAll func() ([]*battery.Battery, error)
}

func NewBatterySource() *BatterySource {
	return &BatterySource{getAll: battery.GetAll}
}

func (s *BatterySource) Read(ctx context.Context) (Reading, error) {
	errFactory := errors.New()

	if err := ctx.Err(); err != nil {
		return Reading{}, errFactory.Wrap(ErrCancelled, err)
	}

	batteries, err := s.getAll()
	partial, isPartial := err.(battery.Errors)
	if err != nil && !isPartial {
		return Reading{}, errFactory.Wrap(ErrReadFailed, err)
	}

	var current, full, rate float64
	var charging, discharging bool
	usable := 0

	for i, bat := range batteries {
		if isPartial && i < len(partial) && partial[i] != nil {
			logger.Debug().Err(partial[i]).Int("battery", i).Msg("Skipping battery with read errors")
			continue
		}
		// Some platforms report ghost batteries with no capacity.
		if bat == nil || bat.Full <= 0 {
			continue
		}

		usable++
		current += bat.Current
		full += bat.Full
		rate += bat.ChargeRate

		switch bat.State.Raw {
		case battery.Charging:
			charging = true
		case battery.Discharging:
			discharging = true
		}
	}

	if usable == 0 {
		return Reading{}, errFactory.New(ErrUnavailable)
	}

	reading := Reading{
		StateOfCharge: clampPercent(math.Round(current/full*100*100) / 100),
	}

	switch {
	case rate <= 0:
	case discharging:
		reading.SecondsRemaining = int(math.Round(current / rate * secondsPerHour))
		reading.RemainingKnown = true
	case charging:
		reading.SecondsRemaining = int(math.Round((full - current) / rate * secondsPerHour))
		reading.RemainingKnown = true
	}

	return reading, nil
}

func clampPercent(v float64) float64 {
	return math.Max(0, math.Min(100, v))
}
