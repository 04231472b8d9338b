package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

// testClock is a controllable clock for deterministic tests.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestLimiter(clock Clock) *Limiter {
	cfg := DefaultConfig()
	cfg.Clock = clock
	return New(cfg)
}

func TestSubmitCooldown(t *testing.T) {
	clock := newTestClock()
	l := newTestLimiter(clock)
	defer l.Close()

	res := l.CheckSubmit("Mehmet", "1.2.3.4")
	if !res.Allowed {
		t.Fatalf("first submission should be allowed, got reason %q", res.Reason)
	}
	l.RecordSubmit("Mehmet", "1.2.3.4")

	res = l.CheckSubmit("Mehmet", "1.2.3.4")
	if res.Allowed {
		t.Fatal("submission during cooldown should be blocked")
	}
	if res.Reason != "cooldown" {
		t.Errorf("expected reason cooldown, got %q", res.Reason)
	}
	if res.RetryAfter <= 0 || res.RetryAfter > 10*time.Second {
		t.Errorf("unexpected RetryAfter %v", res.RetryAfter)
	}

	clock.Advance(11 * time.Second)
	res = l.CheckSubmit("Mehmet", "1.2.3.4")
	if !res.Allowed {
		t.Fatalf("submission after cooldown should be allowed, got reason %q", res.Reason)
	}
}

func TestSubmitCooldownIsCaseInsensitive(t *testing.T) {
	clock := newTestClock()
	l := newTestLimiter(clock)
	defer l.Close()

	l.RecordSubmit("Mehmet", "1.2.3.4")

	res := l.CheckSubmit("MEHMET", "5.6.7.8")
	if res.Allowed {
		t.Fatal("case variation should not bypass the per-name cooldown")
	}
}

func TestSubmitHourlyLimit(t *testing.T) {
	clock := newTestClock()
	l := newTestLimiter(clock)
	defer l.Close()

	for i := 0; i < DefaultConfig().SubmitMaxPerHour; i++ {
		res := l.CheckSubmit("Ayse", "1.2.3.4")
		if !res.Allowed {
			t.Fatalf("submission %d should be allowed, got reason %q", i+1, res.Reason)
		}
		l.RecordSubmit("Ayse", "1.2.3.4")
		clock.Advance(11 * time.Second)
	}

	res := l.CheckSubmit("Ayse", "1.2.3.4")
	if res.Allowed {
		t.Fatal("submission over hourly limit should be blocked")
	}
	if res.Reason != "hourly_limit" {
		t.Errorf("expected reason hourly_limit, got %q", res.Reason)
	}

	clock.Advance(time.Hour)
	res = l.CheckSubmit("Ayse", "1.2.3.4")
	if !res.Allowed {
		t.Fatalf("window should reset after an hour, got reason %q", res.Reason)
	}
}

func TestSubmitIPLimitAcrossNames(t *testing.T) {
	clock := newTestClock()
	cfg := DefaultConfig()
	cfg.SubmitMaxIPPerHour = 3
	cfg.Clock = clock
	l := New(cfg)
	defer l.Close()

	names := []string{"Ali", "Veli", "Deniz"}
	for _, name := range names {
		res := l.CheckSubmit(name, "9.9.9.9")
		if !res.Allowed {
			t.Fatalf("submission for %s should be allowed, got reason %q", name, res.Reason)
		}
		l.RecordSubmit(name, "9.9.9.9")
	}

	res := l.CheckSubmit("Ege", "9.9.9.9")
	if res.Allowed {
		t.Fatal("fourth name from same IP should be blocked")
	}
	if res.Reason != "ip_hourly_limit" {
		t.Errorf("expected reason ip_hourly_limit, got %q", res.Reason)
	}

	// A different IP is unaffected.
	res = l.CheckSubmit("Ege", "8.8.8.8")
	if !res.Allowed {
		t.Fatalf("different IP should be allowed, got reason %q", res.Reason)
	}
}

func TestOTPSendCooldown(t *testing.T) {
	clock := newTestClock()
	l := newTestLimiter(clock)
	defer l.Close()

	res := l.CheckOTPSend("user@example.com", "1.2.3.4")
	if !res.Allowed {
		t.Fatalf("first send should be allowed, got reason %q", res.Reason)
	}
	l.RecordOTPSend("user@example.com", "1.2.3.4")

	res = l.CheckOTPSend("user@example.com", "1.2.3.4")
	if res.Allowed {
		t.Fatal("send during cooldown should be blocked")
	}

	clock.Advance(61 * time.Second)
	res = l.CheckOTPSend("user@example.com", "1.2.3.4")
	if !res.Allowed {
		t.Fatalf("send after cooldown should be allowed, got reason %q", res.Reason)
	}
}

func TestOTPVerifyLockout(t *testing.T) {
	clock := newTestClock()
	l := newTestLimiter(clock)
	defer l.Close()

	var lockedOut bool
	for i := 0; i < DefaultConfig().OTPVerifyMax; i++ {
		res := l.CheckOTPVerify("user@example.com", "1.2.3.4")
		if !res.Allowed {
			t.Fatalf("attempt %d should be allowed, got reason %q", i+1, res.Reason)
		}
		lockedOut = l.RecordOTPVerify("user@example.com", "1.2.3.4")
	}
	if !lockedOut {
		t.Fatal("final attempt should trigger lockout")
	}

	res := l.CheckOTPVerify("user@example.com", "1.2.3.4")
	if res.Allowed {
		t.Fatal("attempt during lockout should be blocked")
	}
	if res.Reason != "lockout" {
		t.Errorf("expected reason lockout, got %q", res.Reason)
	}

	clock.Advance(DefaultConfig().OTPVerifyLockout + time.Second)
	res = l.CheckOTPVerify("user@example.com", "1.2.3.4")
	if !res.Allowed {
		t.Fatalf("attempt after lockout expiry should be allowed, got reason %q", res.Reason)
	}
}

func TestResetVerifyAttempts(t *testing.T) {
	clock := newTestClock()
	l := newTestLimiter(clock)
	defer l.Close()

	for i := 0; i < 3; i++ {
		l.RecordOTPVerify("user@example.com", "1.2.3.4")
	}
	l.ResetVerifyAttempts("user@example.com")

	// Counter is cleared; full budget is available again.
	for i := 0; i < DefaultConfig().OTPVerifyMax-1; i++ {
		res := l.CheckOTPVerify("user@example.com", "1.2.3.4")
		if !res.Allowed {
			t.Fatalf("attempt %d after reset should be allowed, got reason %q", i+1, res.Reason)
		}
		l.RecordOTPVerify("user@example.com", "1.2.3.4")
	}
}

func TestCleanupRemovesStaleEntries(t *testing.T) {
	clock := newTestClock()
	l := newTestLimiter(clock)
	defer l.Close()

	l.RecordSubmit("Mehmet", "1.2.3.4")
	clock.Advance(3 * time.Hour)
	l.cleanup()

	l.mu.RLock()
	idCount, ipCount := len(l.byID), len(l.byIP)
	l.mu.RUnlock()
	if idCount != 0 || ipCount != 0 {
		t.Errorf("stale entries not cleaned: byID=%d byIP=%d", idCount, ipCount)
	}
}

func TestGetClientIP(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		xff        string
		xri        string
		trustProxy bool
		want       string
	}{
		{
			name:       "direct connection",
			remoteAddr: "203.0.113.5:54321",
			want:       "203.0.113.5",
		},
		{
			name:       "xff ignored without trust",
			remoteAddr: "203.0.113.5:54321",
			xff:        "198.51.100.7",
			trustProxy: false,
			want:       "203.0.113.5",
		},
		{
			name:       "xff rightmost public",
			remoteAddr: "10.0.0.1:54321",
			xff:        "198.51.100.7, 10.0.0.2",
			trustProxy: true,
			want:       "198.51.100.7",
		},
		{
			name:       "x-real-ip fallback",
			remoteAddr: "10.0.0.1:54321",
			xri:        "198.51.100.9",
			trustProxy: true,
			want:       "198.51.100.9",
		},
		{
			name:       "ipv6 remote addr",
			remoteAddr: "[2001:db8::1]:54321",
			want:       "2001:db8::1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/", nil)
			r.RemoteAddr = tt.remoteAddr
			if tt.xff != "" {
				r.Header.Set("X-Forwarded-For", tt.xff)
			}
			if tt.xri != "" {
				r.Header.Set("X-Real-IP", tt.xri)
			}
			got := GetClientIP(r, tt.trustProxy)
			if got != tt.want {
				t.Errorf("GetClientIP() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSanitizeIdentifier(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"user@example.com", "us***@example.com"},
		{"ab@example.com", "***@example.com"},
		{"Mehmet", "***hmet"},
		{"ab", "***"},
	}
	for _, tt := range tests {
		if got := SanitizeIdentifier(tt.in); got != tt.want {
			t.Errorf("SanitizeIdentifier(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestConcurrentAccess(t *testing.T) {
	clock := newTestClock()
	l := newTestLimiter(clock)
	defer l.Close()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			name := string(rune('A' + n%5))
			l.CheckSubmit(name, "1.2.3.4")
			l.RecordSubmit(name, "1.2.3.4")
			l.CheckOTPVerify(name+"@example.com", "1.2.3.4")
			l.RecordOTPVerify(name+"@example.com", "1.2.3.4")
		}(i)
	}
	wg.Wait()
}
