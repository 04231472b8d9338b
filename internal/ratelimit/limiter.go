// Package ratelimit provides in-memory rate limiting for join-request
// submissions and sign-up OTP operations.
package ratelimit

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Clock interface for testing time-dependent behavior.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// Config holds rate limit configuration.
type Config struct {
	// Join-request submission limits
	SubmitCooldown     time.Duration // Minimum time between submissions per name (default: 10s)
	SubmitMaxPerHour   int           // Max submissions per name per hour (default: 10)
	SubmitMaxIPPerHour int           // Max submissions per IP per hour (default: 30)

	// OTP limits
	OTPSendCooldown    time.Duration // Minimum time between OTP sends (default: 60s)
	OTPSendMaxPerHour  int           // Max OTP sends per email per hour (default: 5)
	OTPVerifyMax       int           // Max verify attempts before lockout (default: 5)
	OTPVerifyLockout   time.Duration // Lockout duration after max attempts (default: 5m)
	OTPMaxIPPerHour    int           // Max OTP operations per IP per hour (default: 30)

	// Clock for testing (nil uses real time)
	Clock Clock
}

// DefaultConfig returns production-ready defaults.
func DefaultConfig() *Config {
	return &Config{
		SubmitCooldown:     10 * time.Second,
		SubmitMaxPerHour:   10,
		SubmitMaxIPPerHour: 30,
		OTPSendCooldown:    60 * time.Second,
		OTPSendMaxPerHour:  5,
		OTPVerifyMax:       5,
		OTPVerifyLockout:   5 * time.Minute,
		OTPMaxIPPerHour:    30,
	}
}

// LimitResult contains the result of a rate limit check.
type LimitResult struct {
	Allowed    bool
	RetryAfter time.Duration
	Reason     string // For logging
}

// entry tracks request counts and timestamps.
type entry struct {
	count    int
	firstAt  time.Time // First request in window
	lastAt   time.Time // Most recent request (for cooldown)
	lockedAt time.Time // When lockout started (zero if not locked)
}

// Limiter implements multi-layer rate limiting.
type Limiter struct {
	config *Config
	clock  Clock
	mu     sync.RWMutex
	// Keyed by hash of identifier or IP, prefixed by operation
	byID map[string]*entry
	byIP map[string]*entry

	cleanupCtx    context.Context
	cleanupCancel context.CancelFunc
	cleanupOnce   sync.Once
	cleanupWg     sync.WaitGroup
}

// New creates a new rate limiter with the given config.
func New(cfg *Config) *Limiter {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	clock := cfg.Clock
	if clock == nil {
		clock = realClock{}
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Limiter{
		config:        cfg,
		clock:         clock,
		byID:          make(map[string]*entry),
		byIP:          make(map[string]*entry),
		cleanupCtx:    ctx,
		cleanupCancel: cancel,
	}
}

// Close stops the cleanup goroutine and releases resources.
func (l *Limiter) Close() {
	l.cleanupCancel()
	l.cleanupWg.Wait()
}

// CheckSubmit checks if a join-request submission is allowed.
// Does NOT record the attempt - call RecordSubmit after validation succeeds.
func (l *Limiter) CheckSubmit(name, ip string) LimitResult {
	return l.check("submit", name, ip,
		l.config.SubmitCooldown, l.config.SubmitMaxPerHour, l.config.SubmitMaxIPPerHour)
}

// RecordSubmit records a successful submission.
func (l *Limiter) RecordSubmit(name, ip string) {
	l.record("submit", name, ip)
}

// CheckOTPSend checks if an OTP send is allowed.
func (l *Limiter) CheckOTPSend(email, ip string) LimitResult {
	return l.check("otp-send", email, ip,
		l.config.OTPSendCooldown, l.config.OTPSendMaxPerHour, l.config.OTPMaxIPPerHour)
}

// RecordOTPSend records a successful OTP send.
func (l *Limiter) RecordOTPSend(email, ip string) {
	l.record("otp-send", email, ip)
}

// CheckOTPVerify checks if an OTP verify attempt is allowed.
func (l *Limiter) CheckOTPVerify(email, ip string) LimitResult {
	l.startCleanup()
	now := l.clock.Now()
	idKey := hashKey("otp-verify:id:", normalizeIdentifier(email))
	ipKey := hashKey("otp-verify:ip:", ip)

	l.mu.RLock()
	defer l.mu.RUnlock()

	if e := l.byID[idKey]; e != nil {
		if !e.lockedAt.IsZero() {
			elapsed := now.Sub(e.lockedAt)
			if elapsed < l.config.OTPVerifyLockout {
				return LimitResult{
					Allowed:    false,
					RetryAfter: l.config.OTPVerifyLockout - elapsed,
					Reason:     "lockout",
				}
			}
			// Lockout expired - allow this request
		} else if e.count >= l.config.OTPVerifyMax {
			return LimitResult{
				Allowed:    false,
				RetryAfter: l.config.OTPVerifyLockout,
				Reason:     "max_attempts",
			}
		}
	}

	if e := l.byIP[ipKey]; e != nil {
		if now.Sub(e.firstAt) < time.Hour && e.count >= l.config.OTPMaxIPPerHour {
			return LimitResult{
				Allowed:    false,
				RetryAfter: time.Hour - now.Sub(e.firstAt),
				Reason:     "ip_hourly_limit",
			}
		}
	}

	return LimitResult{Allowed: true}
}

// RecordOTPVerify records an OTP verify attempt.
// Returns true if max attempts reached and lockout was triggered.
func (l *Limiter) RecordOTPVerify(email, ip string) (lockedOut bool) {
	now := l.clock.Now()
	idKey := hashKey("otp-verify:id:", normalizeIdentifier(email))
	ipKey := hashKey("otp-verify:ip:", ip)

	l.mu.Lock()
	defer l.mu.Unlock()

	e := l.byID[idKey]
	switch {
	case e == nil:
		l.byID[idKey] = &entry{count: 1, firstAt: now, lastAt: now}
	case !e.lockedAt.IsZero() && now.Sub(e.lockedAt) >= l.config.OTPVerifyLockout:
		// Lockout expired, reset
		l.byID[idKey] = &entry{count: 1, firstAt: now, lastAt: now}
	default:
		e.count++
		e.lastAt = now
		if e.count >= l.config.OTPVerifyMax && e.lockedAt.IsZero() {
			e.lockedAt = now
			lockedOut = true
		}
	}

	bump(l.byIP, ipKey, now)
	return lockedOut
}

// ResetVerifyAttempts clears the verify counter after a successful verification.
func (l *Limiter) ResetVerifyAttempts(email string) {
	idKey := hashKey("otp-verify:id:", normalizeIdentifier(email))
	l.mu.Lock()
	delete(l.byID, idKey)
	l.mu.Unlock()
}

func (l *Limiter) check(op, identifier, ip string, cooldown time.Duration, maxPerHour, maxIPPerHour int) LimitResult {
	l.startCleanup()
	now := l.clock.Now()
	idKey := hashKey(op+":id:", normalizeIdentifier(identifier))
	ipKey := hashKey(op+":ip:", ip)

	l.mu.RLock()
	defer l.mu.RUnlock()

	if e := l.byID[idKey]; e != nil {
		elapsed := now.Sub(e.lastAt)
		if elapsed < cooldown {
			return LimitResult{
				Allowed:    false,
				RetryAfter: cooldown - elapsed,
				Reason:     "cooldown",
			}
		}

		if now.Sub(e.firstAt) < time.Hour && e.count >= maxPerHour {
			return LimitResult{
				Allowed:    false,
				RetryAfter: time.Hour - now.Sub(e.firstAt),
				Reason:     "hourly_limit",
			}
		}
	}

	if e := l.byIP[ipKey]; e != nil {
		if now.Sub(e.firstAt) < time.Hour && e.count >= maxIPPerHour {
			return LimitResult{
				Allowed:    false,
				RetryAfter: time.Hour - now.Sub(e.firstAt),
				Reason:     "ip_hourly_limit",
			}
		}
	}

	return LimitResult{Allowed: true}
}

func (l *Limiter) record(op, identifier, ip string) {
	now := l.clock.Now()
	idKey := hashKey(op+":id:", normalizeIdentifier(identifier))
	ipKey := hashKey(op+":ip:", ip)

	l.mu.Lock()
	defer l.mu.Unlock()

	bump(l.byID, idKey, now)
	bump(l.byIP, ipKey, now)
}

func bump(m map[string]*entry, key string, now time.Time) {
	e := m[key]
	if e == nil || now.Sub(e.firstAt) >= time.Hour {
		m[key] = &entry{count: 1, firstAt: now, lastAt: now}
		return
	}
	e.count++
	e.lastAt = now
}

func hashKey(prefix, value string) string {
	hash := sha256.Sum256([]byte(value))
	return prefix + hex.EncodeToString(hash[:8])
}

// normalizeIdentifier lowercases the identifier to prevent case-based bypass.
func normalizeIdentifier(identifier string) string {
	return strings.ToLower(strings.TrimSpace(identifier))
}

func (l *Limiter) startCleanup() {
	l.cleanupOnce.Do(func() {
		l.cleanupWg.Add(1)
		go func() {
			defer l.cleanupWg.Done()
			ticker := time.NewTicker(5 * time.Minute)
			defer ticker.Stop()
			for {
				select {
				case <-l.cleanupCtx.Done():
					return
				case <-ticker.C:
					l.cleanup()
				}
			}
		}()
	})
}

func (l *Limiter) cleanup() {
	now := l.clock.Now()
	maxAge := l.config.OTPVerifyLockout + time.Hour

	l.mu.Lock()
	defer l.mu.Unlock()

	for k, e := range l.byID {
		if now.Sub(e.lastAt) > maxAge {
			delete(l.byID, k)
		}
	}
	for k, e := range l.byIP {
		if now.Sub(e.lastAt) > time.Hour {
			delete(l.byIP, k)
		}
	}
}

// GetClientIP extracts the client IP from a request.
// When trustProxy is true, uses the rightmost public IP from X-Forwarded-For.
// When trustProxy is false, ignores X-Forwarded-For entirely.
func GetClientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			parts := strings.Split(xff, ",")
			for i := len(parts) - 1; i >= 0; i-- {
				ip := strings.TrimSpace(parts[i])
				if ip != "" && !isPrivateIP(ip) {
					return ip
				}
			}
			return strings.TrimSpace(parts[len(parts)-1])
		}

		if xri := r.Header.Get("X-Real-IP"); xri != "" {
			return strings.TrimSpace(xri)
		}
	}

	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		if parsed := net.ParseIP(r.RemoteAddr); parsed != nil {
			return r.RemoteAddr
		}
		if idx := strings.LastIndex(r.RemoteAddr, ":"); idx != -1 {
			candidate := r.RemoteAddr[:idx]
			if net.ParseIP(candidate) != nil {
				return candidate
			}
		}
		return r.RemoteAddr
	}
	return ip
}

var privateNetworks []*net.IPNet

func init() {
	privateRanges := []string{
		"10.0.0.0/8",
		"172.16.0.0/12",
		"192.168.0.0/16",
		"127.0.0.0/8",
		"::1/128",
		"fc00::/7",
		"fe80::/10",
	}
	for _, cidr := range privateRanges {
		_, network, err := net.ParseCIDR(cidr)
		if err != nil {
			panic("invalid private CIDR: " + cidr)
		}
		privateNetworks = append(privateNetworks, network)
	}
}

func isPrivateIP(ipStr string) bool {
	ip := net.ParseIP(ipStr)
	if ip == nil {
		return false
	}
	if ipv4 := ip.To4(); ipv4 != nil {
		ip = ipv4
	}
	for _, network := range privateNetworks {
		if network.Contains(ip) {
			return true
		}
	}
	return false
}

// SanitizeIdentifier masks an identifier for logging.
func SanitizeIdentifier(identifier string) string {
	identifier = strings.ToLower(strings.TrimSpace(identifier))
	if strings.Contains(identifier, "@") {
		parts := strings.Split(identifier, "@")
		if len(parts[0]) > 2 {
			return parts[0][:2] + "***@" + parts[1]
		}
		return "***@" + parts[1]
	}
	if len(identifier) >= 4 {
		return "***" + identifier[len(identifier)-4:]
	}
	return "***"
}

// LogRateLimitExceeded logs a rate limit event with sanitized identifier.
func LogRateLimitExceeded(limitType, identifier, ip, reason string) {
	log.Warn().
		Str("event", "rate_limit_exceeded").
		Str("type", limitType).
		Str("identifier", SanitizeIdentifier(identifier)).
		Str("ip", ip).
		Str("reason", reason).
		Msg("Rate limit exceeded")
}
