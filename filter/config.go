package filter

import (
	"fmt"

	"github.com/hupe1980/agentplay/core"
	"github.com/hupe1980/agentplay/logging"
)

// Config names one filter of a session pipeline. Order in a slice is execution order.
type Config struct {
	Name string `json:"name"`
	Mode Mode   `json:"mode,omitempty"`
}

// Validate checks name and mode.
func (c Config) Validate() error {
	switch c.Name {
	case PIIFilterName:
		if c.Mode != "" && c.Mode != ModeAdvisory && c.Mode != ModeBlock {
			return &core.ValidationError{Field: "filters.mode", Value: c.Mode, Message: fmt.Sprintf("unknown mode %q", c.Mode)}
		}
	case LoggingFilterName:
		if c.Mode == ModeBlock {
			return &core.ValidationError{Field: "filters.mode", Value: c.Mode, Message: "invocation_logging cannot block"}
		}
	default:
		return &core.ValidationError{Field: "filters.name", Value: c.Name, Message: fmt.Sprintf("unknown filter %q", c.Name)}
	}

	return nil
}

// FromConfig builds a pipeline from configs. Logging filters share audit.
func FromConfig(cfgs []Config, audit *AuditLog, logger logging.Logger) (*Pipeline, error) {
	filters := make([]Filter, 0, len(cfgs))

	for _, c := range cfgs {
		if err := c.Validate(); err != nil {
			return nil, err
		}

		switch c.Name {
		case PIIFilterName:
			filters = append(filters, NewPIIFilter(c.Mode))
		case LoggingFilterName:
			filters = append(filters, NewLoggingFilter(audit, logger))
		}
	}

	return NewPipeline(filters, func(o *Options) { o.Logger = logger }), nil
}
