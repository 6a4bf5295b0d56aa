package config

// DomainConfig holds configurable business rules and limits
type DomainConfig struct {
	// Ingestion limits
	MaxPeoplePerSubmission int `yaml:"max_people_per_submission"`
	MaxNameLength          int `yaml:"max_name_length"`

	// ConflictRetries bounds how often an ingestion is re-resolved after
	// losing a race on a unique key
	ConflictRetries int `yaml:"conflict_retries"`
}

// DefaultDomainConfig returns the default domain configuration
func DefaultDomainConfig() *DomainConfig {
	return &DomainConfig{
		MaxPeoplePerSubmission: 50,
		MaxNameLength:          100,
		ConflictRetries:        3,
	}
}

// Validate reports the first limit that is out of range
func (c *DomainConfig) Validate() error {
	switch {
	case c.MaxPeoplePerSubmission < 1:
		return errInvalid("MaxPeoplePerSubmission must be positive")
	case c.MaxNameLength < 1:
		return errInvalid("MaxNameLength must be positive")
	case c.ConflictRetries < 0:
		return errInvalid("ConflictRetries cannot be negative")
	}
	return nil
}

type errInvalid string

func (e errInvalid) Error() string { return "domain config: " + string(e) }
