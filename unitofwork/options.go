package unitofwork

import (
	"fmt"
	"strings"
	"time"
)

// DefaultTimeout is applied when a unit of work starts without an explicit timeout.
const DefaultTimeout = time.Minute

// IsolationLevel is the isolation level requested for the transaction of a unit of work.
// The zero value is unspecified and resolves to IsolationReadUncommitted when the transaction starts.
type IsolationLevel int

const (
	IsolationUnspecified IsolationLevel = iota
	IsolationReadUncommitted
	IsolationReadCommitted
	IsolationRepeatableRead
	IsolationSerializable
	IsolationSnapshot
	IsolationChaos
)

var isolationLevelNames = map[IsolationLevel]string{
	IsolationUnspecified:     "unspecified",
	IsolationReadUncommitted: "read_uncommitted",
	IsolationReadCommitted:   "read_committed",
	IsolationRepeatableRead:  "repeatable_read",
	IsolationSerializable:    "serializable",
	IsolationSnapshot:        "snapshot",
	IsolationChaos:           "chaos",
}

func (l IsolationLevel) String() string {
	if name, ok := isolationLevelNames[l]; ok {
		return name
	}

	return fmt.Sprintf("isolation(%d)", int(l))
}

// ParseIsolationLevel parses names like "read_committed", "ReadCommitted" or "read committed".
// The empty string yields IsolationUnspecified.
func ParseIsolationLevel(s string) (IsolationLevel, error) {
	normalized := normalizeName(s)
	if normalized == "" {
		return IsolationUnspecified, nil
	}

	for level, name := range isolationLevelNames {
		if normalizeName(name) == normalized {
			return level, nil
		}
	}

	return IsolationUnspecified, fmt.Errorf("%w: unknown isolation level %q", ErrInvalidOptions, s)
}

// Scope tells a unit of work how to relate to an ambient unit found in the context.
// The zero value is unspecified and resolves to ScopeRequired.
type Scope int

const (
	ScopeUnspecified Scope = iota
	// ScopeRequired joins the ambient unit of work or starts a new one if there is none.
	ScopeRequired
	// ScopeRequiresNew always starts a new, independent unit of work.
	ScopeRequiresNew
	// ScopeSuppress runs all contexts of the unit on non-transactional connections.
	ScopeSuppress
)

var scopeNames = map[Scope]string{
	ScopeUnspecified: "unspecified",
	ScopeRequired:    "required",
	ScopeRequiresNew: "requires_new",
	ScopeSuppress:    "suppress",
}

func (s Scope) String() string {
	if name, ok := scopeNames[s]; ok {
		return name
	}

	return fmt.Sprintf("scope(%d)", int(s))
}

// ParseScope parses names like "requires_new" or "RequiresNew".
// The empty string yields ScopeUnspecified.
func ParseScope(s string) (Scope, error) {
	normalized := normalizeName(s)
	if normalized == "" {
		return ScopeUnspecified, nil
	}

	for scope, name := range scopeNames {
		if normalizeName(name) == normalized {
			return scope, nil
		}
	}

	return ScopeUnspecified, fmt.Errorf("%w: unknown scope %q", ErrInvalidOptions, s)
}

// AsyncFlow controls whether the ambient unit of work flows into goroutines started through ForAsync.
// The zero value is unspecified and resolves to AsyncFlowEnabled.
type AsyncFlow int

const (
	AsyncFlowUnspecified AsyncFlow = iota
	AsyncFlowEnabled
	AsyncFlowSuppressed
)

var asyncFlowNames = map[AsyncFlow]string{
	AsyncFlowUnspecified: "unspecified",
	AsyncFlowEnabled:     "enabled",
	AsyncFlowSuppressed:  "suppressed",
}

func (f AsyncFlow) String() string {
	if name, ok := asyncFlowNames[f]; ok {
		return name
	}

	return fmt.Sprintf("async_flow(%d)", int(f))
}

// ParseAsyncFlow parses "enabled" or "suppressed".
// The empty string yields AsyncFlowUnspecified.
func ParseAsyncFlow(s string) (AsyncFlow, error) {
	normalized := normalizeName(s)
	if normalized == "" {
		return AsyncFlowUnspecified, nil
	}

	for flow, name := range asyncFlowNames {
		if normalizeName(name) == normalized {
			return flow, nil
		}
	}

	return AsyncFlowUnspecified, fmt.Errorf("%w: unknown async flow %q", ErrInvalidOptions, s)
}

// Options configure a unit of work. Zero fields are filled with defaults when the transaction starts.
type Options struct {
	IsolationLevel IsolationLevel
	Timeout        time.Duration
	Scope          Scope
	AsyncFlow      AsyncFlow
}

// DefaultOptions returns the options a unit of work uses when nothing else is configured.
func DefaultOptions() Options {
	return Options{
		IsolationLevel: IsolationReadUncommitted,
		Timeout:        DefaultTimeout,
		Scope:          ScopeRequired,
		AsyncFlow:      AsyncFlowEnabled,
	}
}

// Validate checks that all fields hold known values and the timeout is not negative.
func (o Options) Validate() error {
	if _, ok := isolationLevelNames[o.IsolationLevel]; !ok {
		return fmt.Errorf("%w: %s", ErrInvalidOptions, o.IsolationLevel)
	}

	if _, ok := scopeNames[o.Scope]; !ok {
		return fmt.Errorf("%w: %s", ErrInvalidOptions, o.Scope)
	}

	if _, ok := asyncFlowNames[o.AsyncFlow]; !ok {
		return fmt.Errorf("%w: %s", ErrInvalidOptions, o.AsyncFlow)
	}

	if o.Timeout < 0 {
		return fmt.Errorf("%w: negative timeout %s", ErrInvalidOptions, o.Timeout)
	}

	return nil
}

// WithDefaults returns a copy of o where every unspecified field is taken from defaults.
func (o Options) WithDefaults(defaults Options) Options {
	if o.IsolationLevel == IsolationUnspecified {
		o.IsolationLevel = defaults.IsolationLevel
	}

	if o.Timeout == 0 {
		o.Timeout = defaults.Timeout
	}

	if o.Scope == ScopeUnspecified {
		o.Scope = defaults.Scope
	}

	if o.AsyncFlow == AsyncFlowUnspecified {
		o.AsyncFlow = defaults.AsyncFlow
	}

	return o
}

func normalizeName(s string) string {
	replacer := strings.NewReplacer("_", "", "-", "", " ", "")
	return strings.ToLower(replacer.Replace(strings.TrimSpace(s)))
}
