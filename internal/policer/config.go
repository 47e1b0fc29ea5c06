package policer

// Config is the logical, user-facing policer configuration ("qos_pol_cfg"),
// validated and converted into a Runtime by logicalToPhysical.
type Config struct {
	Type       Type
	RateUnit   RateUnit
	Round      RoundMode
	ColorAware bool

	// CIR/CB are the committed information rate and burst, always
	// present. PIR/EB are the peak/excess rate and burst, meaningful
	// only for dual-rate types.
	CIR uint64
	CB  uint64
	PIR uint64
	EB  uint64

	ConformAction Action
	ExceedAction  Action
	ViolateAction Action
}

// ticksPerSecond is the tick rate the runtime bucket math assumes: the
// hot path advances buckets by elapsed microseconds, matching the
// pacer's own microsecond tick convention.
const ticksPerSecond = 1_000_000

// scaleBits is the fixed-point shift tokens-per-period is carried at, so
// that sub-byte-per-tick rates (e.g. a 64kbps policer ticked every
// microsecond) don't collapse to zero.
const scaleBits = 20

// Runtime is the physical, hot-path-ready policer state produced by
// logicalToPhysical, matching policer_t's runtime fields.
type Runtime struct {
	Type       Type
	ColorAware bool

	CIRTokensPerPeriod uint64
	PIRTokensPerPeriod uint64
	Scale              uint8

	CurrentLimit   int64
	CurrentBucket  int64
	ExtendedLimit  int64
	ExtendedBucket int64

	ConformAction Action
	ExceedAction  Action
	ViolateAction Action
}

// ratePerSecond converts a rate expressed in cfg.RateUnit into the
// internal per-second unit the bucket math runs in: bytes/sec for Kbps,
// packets/sec (unchanged) for Pps.
func ratePerSecond(rate uint64, unit RateUnit) uint64 {
	if unit == RateKbps {
		return rate * 1000 / 8
	}
	return rate
}

func roundedTokensPerPeriod(ratePerSec uint64, mode RoundMode) uint64 {
	numerator := ratePerSec << scaleBits
	switch mode {
	case RoundUp:
		return (numerator + ticksPerSecond - 1) / ticksPerSecond
	case RoundDown:
		return numerator / ticksPerSecond
	default: // RoundClosest
		return (numerator + ticksPerSecond/2) / ticksPerSecond
	}
}

// logicalToPhysical is the pure conversion from a validated logical
// config to hot-path runtime state, grounded on pol_logical_2_physical's
// contract in spec section 4.2: deterministic, failing on overflow,
// preserving rate ordering, and producing tokens_per_period/limit/scale
// such that `bucket <- min(limit, bucket + elapsed*tokens_per_period>>scale)`
// reproduces the requested rate.
func logicalToPhysical(cfg Config) (Runtime, error) {
	if cfg.CIR == 0 || cfg.CB == 0 {
		return Runtime{}, ErrInvalid
	}
	if cfg.Type.isDualRate() {
		if cfg.PIR == 0 || cfg.EB == 0 {
			return Runtime{}, ErrInvalid
		}
		if cfg.PIR < cfg.CIR {
			return Runtime{}, ErrInvalid
		}
	}

	cirRate := ratePerSecond(cfg.CIR, cfg.RateUnit)
	cirTPP := roundedTokensPerPeriod(cirRate, cfg.Round)
	if cirTPP == 0 {
		return Runtime{}, ErrInvalid
	}

	rt := Runtime{
		Type:               cfg.Type,
		ColorAware:         cfg.ColorAware,
		CIRTokensPerPeriod: cirTPP,
		Scale:              scaleBits,
		CurrentLimit:       int64(cfg.CB),
		CurrentBucket:      int64(cfg.CB),
		ConformAction:      cfg.ConformAction,
		ExceedAction:       cfg.ExceedAction,
		ViolateAction:      cfg.ViolateAction,
	}

	if cfg.Type.isDualRate() {
		pirRate := ratePerSecond(cfg.PIR, cfg.RateUnit)
		pirTPP := roundedTokensPerPeriod(pirRate, cfg.Round)
		if pirTPP == 0 {
			return Runtime{}, ErrInvalid
		}
		rt.PIRTokensPerPeriod = pirTPP
		rt.ExtendedLimit = int64(cfg.EB)
		rt.ExtendedBucket = int64(cfg.EB)
	}

	return rt, nil
}
