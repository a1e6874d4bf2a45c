package security

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

var alertCounterScript = redis.NewScript(`
local count = redis.call("INCR", KEYS[1])
if count == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return count
`)

// Rule is the threshold for one kind of security event.
type Rule struct {
	Threshold int64
	Window    time.Duration
}

// DefaultRules alert on repeated failures of the console's sensitive actions.
// Keys are "event|outcome"; event "*" matches any event.
var DefaultRules = map[string]Rule{
	"*|rate_limited":               {Threshold: 20, Window: time.Minute},
	"console.login|fail":           {Threshold: 10, Window: 5 * time.Minute},
	"console.comment.delete|fail":  {Threshold: 5, Window: 5 * time.Minute},
	"console.profile.update|fail":  {Threshold: 10, Window: 5 * time.Minute},
	"console.resource.delete|fail": {Threshold: 10, Window: 5 * time.Minute},
}

// AlertResult contains alert evaluation output.
type AlertResult struct {
	Triggered bool
	Count     int64
	Threshold int64
	Window    time.Duration
}

// AuditAlerter counts security events per client in Redis and reports when a
// rule's threshold is reached.
type AuditAlerter struct {
	redisClient *redis.Client
	prefix      string
	rules       map[string]Rule
	now         func() time.Time
}

// NewAuditAlerter creates an alerter backed by Redis counters. It returns nil
// when addr is empty; a nil alerter observes nothing.
func NewAuditAlerter(addr, password, prefix string) *AuditAlerter {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return nil
	}
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = "adminconsole:alerts"
	}
	return &AuditAlerter{
		redisClient: redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: password,
		}),
		prefix: prefix,
		rules:  DefaultRules,
		now:    time.Now,
	}
}

// Observe records a security event and reports whether its threshold is
// reached.
func (a *AuditAlerter) Observe(ctx context.Context, event, outcome, ip string) (AlertResult, error) {
	result := AlertResult{}
	if a == nil || a.redisClient == nil {
		return result, nil
	}
	rule, ok := a.rule(event, outcome)
	if !ok || rule.Window <= 0 {
		return result, nil
	}
	windowMs := rule.Window.Milliseconds()
	slot := a.now().UTC().UnixMilli() / windowMs
	key := fmt.Sprintf("%s:%s:%s:%s:%d", a.prefix, sanitizeSegment(event), sanitizeSegment(outcome), sanitizeSegment(ip), slot)
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	count, err := alertCounterScript.Run(ctx, a.redisClient, []string{key}, windowMs).Int64()
	if err != nil {
		return result, err
	}
	result.Count = count
	result.Threshold = rule.Threshold
	result.Window = rule.Window
	result.Triggered = count >= rule.Threshold
	return result, nil
}

func (a *AuditAlerter) rule(event, outcome string) (Rule, bool) {
	event = strings.TrimSpace(event)
	outcome = strings.TrimSpace(outcome)
	if r, ok := a.rules[event+"|"+outcome]; ok {
		return r, true
	}
	r, ok := a.rules["*|"+outcome]
	return r, ok
}

// Close releases the Redis connection pool.
func (a *AuditAlerter) Close() error {
	if a == nil || a.redisClient == nil {
		return nil
	}
	return a.redisClient.Close()
}

func sanitizeSegment(in string) string {
	in = strings.TrimSpace(in)
	if in == "" {
		return "unknown"
	}
	replacer := strings.NewReplacer(":", "_", "|", "_", " ", "_")
	return replacer.Replace(in)
}
