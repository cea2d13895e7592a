package limiter

import (
	"fmt"
	"strings"
)

// Domain selects how a limiter's pacing state is shared.
type Domain int

const (
	// DomainShared guards a private ledger usable from any goroutine.
	DomainShared Domain = iota
	// DomainScoped binds a private ledger to a single Scope.
	DomainScoped
	// DomainGlobal paces against the coordinator's process-wide ledger.
	DomainGlobal
)

var domainNames = map[Domain]string{
	DomainShared: "shared",
	DomainScoped: "scoped",
	DomainGlobal: "global",
}

func (d Domain) String() string {
	if name, ok := domainNames[d]; ok {
		return name
	}
	return fmt.Sprintf("domain(%d)", int(d))
}

func (d Domain) valid() bool {
	_, ok := domainNames[d]
	return ok
}

// ParseDomain accepts the canonical names plus the legacy aliases
// "simple", "thread", "event-loop-bound" and "system".
func ParseDomain(s string) (Domain, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "shared", "simple", "thread":
		return DomainShared, nil
	case "scoped", "event-loop-bound", "event_loop_bound", "loop":
		return DomainScoped, nil
	case "global", "system":
		return DomainGlobal, nil
	default:
		return 0, &ConfigurationError{Field: "domain", Value: s, Err: ErrUnknownDomain}
	}
}

func (d Domain) MarshalText() ([]byte, error) {
	if !d.valid() {
		return nil, &ConfigurationError{Field: "domain", Value: int(d), Err: ErrUnknownDomain}
	}
	return []byte(d.String()), nil
}

func (d *Domain) UnmarshalText(text []byte) error {
	parsed, err := ParseDomain(string(text))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
