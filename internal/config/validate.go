package config

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/robfig/cron/v3"

	"realty-engine/internal/domain"
)

type Validation struct {
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

func (v *Validation) addErr(format string, args ...any) {
	v.Errors = append(v.Errors, fmt.Sprintf(format, args...))
}
func (v *Validation) addWarn(format string, args ...any) {
	v.Warnings = append(v.Warnings, fmt.Sprintf(format, args...))
}
func (v Validation) OK() bool { return len(v.Errors) == 0 }

var structCheck = newStructCheck()

func newStructCheck() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("yaml"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate returns an error wrapping ErrFatalConfig if cfg cannot drive a
// run. Warnings are ignored here; see NormalizeAndValidate.
func Validate(cfg Config) error {
	res := check(cfg)
	if res.OK() {
		return nil
	}
	return fmt.Errorf("%w: config validation failed:\n- %s", domain.ErrFatalConfig, strings.Join(res.Errors, "\n- "))
}

// NormalizeAndValidate returns a normalized copy plus every error and
// warning found in it.
func NormalizeAndValidate(cfg Config) (Config, Validation) {
	out := cfg
	ApplyDefaults(&out)

	locs := make([]domain.LocationConfig, 0, len(out.Search.Locations))
	for _, l := range out.Search.Locations {
		l.Value = strings.TrimSpace(l.Value)
		l.TypeID = strings.TrimSpace(l.TypeID)
		locs = append(locs, l)
	}
	out.Search.Locations = locs

	seen := map[domain.PropertyType]bool{}
	var types []domain.PropertyType
	for _, t := range out.Search.PropertyTypes {
		t = domain.PropertyType(strings.TrimSpace(string(t)))
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	out.Search.PropertyTypes = types
	out.Site.BaseURL = strings.TrimRight(strings.TrimSpace(out.Site.BaseURL), "/")

	return out, check(out)
}

func check(cfg Config) Validation {
	var res Validation

	if err := structCheck.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			for _, fe := range verrs {
				res.addErr("%s fails %q", yamlPath(fe.Namespace()), strings.TrimSuffix(fe.Tag()+"="+fe.Param(), "="))
			}
		} else {
			res.addErr("%v", err)
		}
	}

	if err := cfg.Query().Validate(); err != nil {
		for _, line := range strings.Split(err.Error(), "\n") {
			res.addErr("search: %s", strings.TrimPrefix(line, domain.ErrFatalConfig.Error()+": "))
		}
	}

	if cfg.Schedule.Cron != "" {
		if _, err := cron.ParseStandard(cfg.Schedule.Cron); err != nil {
			res.addErr("schedule.cron: %v", err)
		}
		if cfg.Schedule.IntervalSeconds > 0 {
			res.addWarn("schedule.cron and schedule.interval_seconds both set; cron wins")
		}
	} else if cfg.Schedule.IntervalSeconds > 0 && cfg.Schedule.IntervalSeconds < 300 {
		res.addWarn("schedule.interval_seconds is very low (%d) and may trigger rate limits.", cfg.Schedule.IntervalSeconds)
	}

	if cfg.Store.Driver == "postgres" && strings.TrimSpace(cfg.Store.DSN) == "" {
		res.addErr("store.dsn is required when store.driver=postgres")
	}

	// soft limits
	if cfg.Limits.FetchConcurrency > 8 {
		res.addWarn("limits.fetch_concurrency=%d is high for a single site.", cfg.Limits.FetchConcurrency)
	}
	if cfg.Limits.RequestsPerSecond == 0 {
		res.addWarn("limits.requests_per_second is 0 (unlimited).")
	} else if cfg.Limits.RequestsPerSecond > 5 {
		res.addWarn("limits.requests_per_second=%.1f may get the session throttled.", cfg.Limits.RequestsPerSecond)
	}
	if cfg.Limits.MaxPages == 0 {
		res.addWarn("limits.max_pages is 0; streams page until the site reports no more results.")
	}
	if cfg.Search.PriceMin == nil && cfg.Search.PriceMax == nil {
		res.addWarn("search has no price bounds.")
	}
	if cfg.Retry.MaxRetries == 0 {
		res.addWarn("retry.max_retries is 0; transient failures are not retried.")
	}

	return res
}

// yamlPath trims the root struct name from a validator namespace.
func yamlPath(ns string) string {
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return ns
}
