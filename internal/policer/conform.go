package policer

// advance lazily replenishes bucket by the tokens accrued since
// lastUpdate at the given tokens-per-period rate, clamped to limit,
// matching the hot-path formula in spec section 4.2:
//
//	bucket <- min(limit, bucket + (now-last)*tokens_per_period>>scale)
func advance(bucket, limit int64, lastUpdate, now int64, tokensPerPeriod uint64, scale uint8) int64 {
	if now <= lastUpdate {
		return bucket
	}
	elapsed := uint64(now - lastUpdate)
	inc := (elapsed * tokensPerPeriod) >> scale
	next := bucket + int64(inc)
	if next > limit {
		next = limit
	}
	return next
}

// Conform runs the hot-path conformance check for a packet/unit of size
// bytes (or 1, for packets-per-second policers), classifying it green
// (conform), yellow (exceed), or red (violate) and debiting the
// corresponding bucket(s). suggestedColor is consulted only when the
// policer is color-aware; it represents an upstream classification the
// caller has already performed (e.g. from a DSCP marking).
func (p *Policer) Conform(now int64, size uint64, suggestedColor Color) Color {
	p.mu.Lock()
	defer p.mu.Unlock()

	rt := &p.Runtime
	rt.CurrentBucket = advance(rt.CurrentBucket, rt.CurrentLimit, p.lastUpdate, now, rt.CIRTokensPerPeriod, rt.Scale)
	if rt.Type.isDualRate() {
		rt.ExtendedBucket = advance(rt.ExtendedBucket, rt.ExtendedLimit, p.lastUpdate, now, rt.PIRTokensPerPeriod, rt.Scale)
	}
	p.lastUpdate = now

	color := p.classify(size, suggestedColor)
	p.countResult(color, size)
	return color
}

func (p *Policer) classify(size uint64, suggestedColor Color) Color {
	rt := &p.Runtime

	if rt.ColorAware && suggestedColor == ColorRed {
		return ColorRed
	}

	switch rt.Type {
	case Type1R2C:
		if rt.CurrentBucket >= int64(size) {
			rt.CurrentBucket -= int64(size)
			return ColorGreen
		}
		return ColorYellow

	case Type1R3C2697:
		if rt.ColorAware && suggestedColor == ColorYellow {
			if rt.ExtendedBucket >= int64(size) {
				rt.ExtendedBucket -= int64(size)
				return ColorYellow
			}
			return ColorRed
		}
		if rt.CurrentBucket >= int64(size) {
			rt.CurrentBucket -= int64(size)
			return ColorGreen
		}
		if rt.ExtendedBucket >= int64(size) {
			rt.ExtendedBucket -= int64(size)
			return ColorYellow
		}
		return ColorRed

	default: // Type2R3C2698, Type2R3C4115, Type2R3CMEF5CF1: RFC 2698-family
		if rt.ExtendedBucket < int64(size) {
			return ColorRed
		}
		if rt.CurrentBucket < int64(size) {
			rt.ExtendedBucket -= int64(size)
			return ColorYellow
		}
		rt.CurrentBucket -= int64(size)
		rt.ExtendedBucket -= int64(size)
		return ColorGreen
	}
}

func (p *Policer) countResult(color Color, size uint64) {
	c := &p.counters[color]
	c.Packets++
	c.Bytes += size
}

// ActionFor returns the configured action for a classified color.
func (p *Policer) ActionFor(color Color) Action {
	switch color {
	case ColorGreen:
		return p.Config.ConformAction
	case ColorYellow:
		return p.Config.ExceedAction
	default:
		return p.Config.ViolateAction
	}
}
