package metrics_test

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/zephyrtronium/roarbot/metrics"
)

func TestNew(t *testing.T) {
	m := metrics.New()
	reg := prometheus.NewRegistry()
	if err := reg.Register(m.FrameCount); err != nil {
		t.Fatalf("couldn't register frame count: %v", err)
	}
	for _, c := range m.Collectors()[1:] {
		if err := reg.Register(c); err != nil {
			t.Fatalf("couldn't register collector: %v", err)
		}
	}
	m.FrameCount.Observe(1, "post")
	m.FrameCount.Observe(1, "post")
	m.FrameCount.Observe(1, "auth")
	want := `
# HELP roarbot_stream_frames Number of frames received from the stream by cmd.
# TYPE roarbot_stream_frames counter
roarbot_stream_frames{cmd="auth"} 1
roarbot_stream_frames{cmd="post"} 2
`
	if err := testutil.GatherAndCompare(reg, strings.NewReader(want), "roarbot_stream_frames"); err != nil {
		t.Error(err)
	}
}

func TestCommandCount(t *testing.T) {
	m := metrics.New()
	m.CommandCount.Observe(1, "ping", "ok")
	m.CommandCount.Observe(1, "ping", "error")
	m.CommandCount.Observe(1, "ping", "ok")
	want := `
# HELP roarbot_commands_invocations Number of command invocations by command and outcome.
# TYPE roarbot_commands_invocations counter
roarbot_commands_invocations{command="ping",outcome="error"} 1
roarbot_commands_invocations{command="ping",outcome="ok"} 2
`
	if err := testutil.CollectAndCompare(m.CommandCount, strings.NewReader(want)); err != nil {
		t.Error(err)
	}
}

func TestHandlerLatency(t *testing.T) {
	m := metrics.New()
	m.HandlerLatency.Observe(0.02, "ping")
	if n := testutil.CollectAndCount(m.HandlerLatency); n != 1 {
		t.Errorf("wrong number of series: want 1, got %d", n)
	}
}
