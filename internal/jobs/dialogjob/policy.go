package dialogjob

import "time"

// Policy holds the scheduling intervals and retry caps of the state machine.
type Policy struct {
	Quiescence   time.Duration
	StuckTimeout time.Duration

	RateLimitCooldown   time.Duration
	RateLimitMaxRetries int
	FailedCooldown      time.Duration
	FailedMaxRetries    int

	Retention time.Duration
	// BatchSize caps SelectDue. Zero means no cap.
	BatchSize int
}

func DefaultPolicy() Policy {
	return Policy{
		Quiescence:          30 * time.Second,
		StuckTimeout:        5 * time.Minute,
		RateLimitCooldown:   5 * time.Minute,
		RateLimitMaxRetries: 5,
		FailedCooldown:      2 * time.Minute,
		FailedMaxRetries:    3,
		Retention:           7 * 24 * time.Hour,
	}
}

// withDefaults fills unset fields from DefaultPolicy.
func (p Policy) withDefaults() Policy {
	d := DefaultPolicy()
	if p.Quiescence <= 0 {
		p.Quiescence = d.Quiescence
	}
	if p.StuckTimeout <= 0 {
		p.StuckTimeout = d.StuckTimeout
	}
	if p.RateLimitCooldown <= 0 {
		p.RateLimitCooldown = d.RateLimitCooldown
	}
	if p.RateLimitMaxRetries <= 0 {
		p.RateLimitMaxRetries = d.RateLimitMaxRetries
	}
	if p.FailedCooldown <= 0 {
		p.FailedCooldown = d.FailedCooldown
	}
	if p.FailedMaxRetries <= 0 {
		p.FailedMaxRetries = d.FailedMaxRetries
	}
	if p.Retention <= 0 {
		p.Retention = d.Retention
	}
	if p.BatchSize < 0 {
		p.BatchSize = 0
	}
	return p
}
