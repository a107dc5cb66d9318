package progress

import (
	"bytes"
	"strings"
	"sync"
	"testing"
)

func TestNewReporterInCI(t *testing.T) {
	t.Setenv("CI", "true")
	if _, ok := NewReporter("Reindexing").(*CIReporter); !ok {
		t.Error("expected CIReporter when CI is set")
	}
}

func TestNewReporterInTerminal(t *testing.T) {
	t.Setenv("CI", "")
	t.Setenv("GITHUB_ACTIONS", "")
	if _, ok := NewReporter("Reindexing").(*TerminalReporter); !ok {
		t.Error("expected TerminalReporter outside CI")
	}
}

func TestFuncStartsOnceAndReports(t *testing.T) {
	var buf bytes.Buffer
	r := &CIReporter{description: "Reindexing", out: &buf}
	fn := Func(r)

	var wg sync.WaitGroup
	for i := 1; i <= 5; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			fn(i, 5, "doc")
		}(i)
	}
	wg.Wait()
	r.Finish()

	out := buf.String()
	if strings.Count(out, "Reindexing: 5 documents") != 1 {
		t.Errorf("Start should run once:\n%s", out)
	}
	if strings.Count(out, "/5] doc") != 5 {
		t.Errorf("expected 5 updates:\n%s", out)
	}
	if !strings.HasSuffix(out, "Reindexing: done\n") {
		t.Errorf("missing finish line:\n%s", out)
	}
}
