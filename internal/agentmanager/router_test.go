package agentmanager

import "testing"

func TestRouteByKeywordCode(t *testing.T) {
	r := NewRouter()
	got := r.Route("please debug this function and fix the algorithm", "", func(string) bool { return false })
	if got != WorkerCode {
		t.Fatalf("expected %s, got %s", WorkerCode, got)
	}
}

func TestRouteByKeywordComputerUse(t *testing.T) {
	r := NewRouter()
	got := r.Route("take a screenshot and click the submit button", "", func(string) bool { return false })
	if got != WorkerComputerUse {
		t.Fatalf("expected %s, got %s", WorkerComputerUse, got)
	}
}

func TestRouteDefaultsToSupervisor(t *testing.T) {
	r := NewRouter()
	got := r.Route("do the thing we discussed yesterday", "", func(string) bool { return false })
	if got != WorkerSupervisor {
		t.Fatalf("expected %s, got %s", WorkerSupervisor, got)
	}
}

func TestRoutePreferredOverridesKeywords(t *testing.T) {
	r := NewRouter()
	exists := func(id string) bool { return id == "custom-worker" }
	got := r.Route("write an article about debugging", "custom-worker", exists)
	if got != "custom-worker" {
		t.Fatalf("expected custom-worker, got %s", got)
	}
}

func TestRoutePreferredIgnoredWhenAbsent(t *testing.T) {
	r := NewRouter()
	got := r.Route("write an article about travel", "nonexistent", func(string) bool { return false })
	if got != WorkerWriter {
		t.Fatalf("expected %s, got %s", WorkerWriter, got)
	}
}

func TestComputerUseKeywordsWinOverVisionOverlap(t *testing.T) {
	r := NewRouter()
	// "screenshot" appears in both the computer-use and vision keyword
	// groups; computer-use is checked first and must win.
	got := r.Route("take a screenshot of the dashboard", "", func(string) bool { return false })
	if got != WorkerComputerUse {
		t.Fatalf("expected %s, got %s", WorkerComputerUse, got)
	}
}
