package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the configuration and returns a detailed error if
// validation fails.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return describe(err)
	}

	if c.Backend == BackendHCloud && c.HCloud.Token == "" {
		return fmt.Errorf("hcloud backend requires a token (hcloud.token or HCLOUD_TOKEN)")
	}
	if c.Timeouts.FinalizeTimeout != 0 && c.Timeouts.FinalizeTimeout < c.Timeouts.IdleInterval {
		return fmt.Errorf("timeouts.finalize_timeout (%v) is shorter than timeouts.idle_interval (%v)",
			c.Timeouts.FinalizeTimeout, c.Timeouts.IdleInterval)
	}
	if _, err := c.ShapeCatalog(); err != nil {
		return fmt.Errorf("shapes: %w", err)
	}
	return nil
}

// describe flattens validator errors into one message naming every field.
func describe(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := strings.TrimPrefix(fe.Namespace(), "Config.")
		if fe.Param() != "" {
			msgs = append(msgs, fmt.Sprintf("%s: failed %s=%s", field, fe.Tag(), fe.Param()))
			continue
		}
		msgs = append(msgs, fmt.Sprintf("%s: failed %s", field, fe.Tag()))
	}
	return errors.New(strings.Join(msgs, "; "))
}
