package health

import (
	"testing"
	"time"
)

func TestDerivePendingState_Precedence(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name          string
		startedAt     time.Time
		lastHeartbeat time.Time
		timeoutMs     int
		want          RequestState
	}{
		{
			name:          "fresh request is pending",
			startedAt:     base,
			lastHeartbeat: base,
			timeoutMs:     60_000,
			want:          StatePending,
		},
		{
			name:          "slow but not stalled is active",
			startedAt:     base.Add(-90 * time.Second),
			lastHeartbeat: base.Add(-70 * time.Second),
			timeoutMs:     600_000,
			want:          StateActive,
		},
		{
			name:          "quiet beyond 120s is stalled",
			startedAt:     base.Add(-200 * time.Second),
			lastHeartbeat: base.Add(-150 * time.Second),
			timeoutMs:     600_000,
			want:          StateStalled,
		},
		{
			name:          "timeout wins even over a fresh heartbeat",
			startedAt:     base.Add(-10 * time.Second),
			lastHeartbeat: base,
			timeoutMs:     5_000,
			want:          StateTimeout,
		},
		{
			name:          "timeout wins over stalled",
			startedAt:     base.Add(-300 * time.Second),
			lastHeartbeat: base.Add(-200 * time.Second),
			timeoutMs:     100_000,
			want:          StateTimeout,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			now := base
			got := DerivePendingState(now, tc.startedAt, tc.lastHeartbeat, tc.timeoutMs)
			if got != tc.want {
				t.Errorf("DerivePendingState() = %v, want %v", got, tc.want)
			}
		})
	}
}
