package core

import "strings"

// Environment is the deployment flavour the bot runs under. It only affects
// logging output and defaults; bot behaviour is identical everywhere.
type Environment string

const (
	Development Environment = "development"
	Staging     Environment = "staging"
	Production  Environment = "production"
)

func (e Environment) String() string {
	return string(e)
}

// IsProduction reports whether logs should be machine-readable JSON.
func (e Environment) IsProduction() bool {
	return e == Production || e == Staging
}

// Decode lets envconfig fill an Environment field directly from APP_ENV.
func (e *Environment) Decode(value string) error {
	*e = ParseEnvironment(value)
	return nil
}

// ParseEnvironment maps loose spellings ("prod", "PRODUCTION") onto the known
// environments. Anything unrecognised is treated as development.
func ParseEnvironment(v string) Environment {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "production", "prod":
		return Production
	case "staging", "stage":
		return Staging
	default:
		return Development
	}
}
