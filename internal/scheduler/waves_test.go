package scheduler

import (
	"testing"

	"github.com/thunderclaude/orchestrator/internal/plan"
)

func task(id string, deps ...string) plan.Task {
	return plan.Task{ID: id, Prompt: "p", DependsOn: deps}
}

func waveIDs(wave []plan.Task) []string {
	ids := make([]string, len(wave))
	for i, t := range wave {
		ids[i] = t.ID
	}
	return ids
}

func TestResolveWavesIndependentTasksSingleWave(t *testing.T) {
	waves := ResolveWaves([]plan.Task{task("a"), task("b"), task("c")})
	if len(waves) != 1 {
		t.Fatalf("got %d waves, want 1", len(waves))
	}
	if len(waves[0]) != 3 {
		t.Errorf("wave has %d tasks, want 3", len(waves[0]))
	}
}

func TestResolveWavesChain(t *testing.T) {
	waves := ResolveWaves([]plan.Task{task("t3", "t2"), task("t1"), task("t2", "t1")})
	if len(waves) != 3 {
		t.Fatalf("got %d waves, want 3: %v", len(waves), waves)
	}
	for i, want := range []string{"t1", "t2", "t3"} {
		if len(waves[i]) != 1 || waves[i][0].ID != want {
			t.Errorf("wave %d = %v, want [%s]", i, waveIDs(waves[i]), want)
		}
	}
}

func TestResolveWavesDiamond(t *testing.T) {
	waves := ResolveWaves([]plan.Task{
		task("root"),
		task("left", "root"),
		task("right", "root"),
		task("join", "left", "right"),
	})
	if len(waves) != 3 {
		t.Fatalf("got %d waves, want 3", len(waves))
	}
	if len(waves[1]) != 2 {
		t.Errorf("middle wave = %v, want [left right]", waveIDs(waves[1]))
	}
	if waves[2][0].ID != "join" {
		t.Errorf("final wave = %v, want [join]", waveIDs(waves[2]))
	}
}

func TestResolveWavesCycleTerminates(t *testing.T) {
	waves := ResolveWaves([]plan.Task{
		task("a", "b"),
		task("b", "a"),
		task("free"),
	})
	if len(waves) != 2 {
		t.Fatalf("got %d waves, want 2", len(waves))
	}
	if waves[0][0].ID != "free" {
		t.Errorf("first wave = %v, want [free]", waveIDs(waves[0]))
	}
	// The cycle is dumped whole into the final wave.
	if len(waves[1]) != 2 {
		t.Errorf("final wave = %v, want both cycle members", waveIDs(waves[1]))
	}

	total := 0
	for _, w := range waves {
		total += len(w)
	}
	if total != 3 {
		t.Errorf("waves contain %d tasks, want all 3", total)
	}
}

func TestResolveWavesEmpty(t *testing.T) {
	if waves := ResolveWaves(nil); waves != nil {
		t.Errorf("ResolveWaves(nil) = %v, want nil", waves)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		tasks   []plan.Task
		wantErr bool
	}{
		{"linear chain", []plan.Task{task("a"), task("b", "a"), task("c", "b")}, false},
		{"parallel", []plan.Task{task("a"), task("b"), task("c", "a", "b")}, false},
		{"single", []plan.Task{task("a")}, false},
		{"direct cycle", []plan.Task{task("a", "b"), task("b", "a")}, true},
		{"transitive cycle", []plan.Task{task("a", "b"), task("b", "c"), task("c", "a")}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			order, err := Validate(tt.tasks)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && len(order) != len(tt.tasks) {
				t.Errorf("order has %d ids, want %d", len(order), len(tt.tasks))
			}
		})
	}
}

func TestValidateOrderRespectsDependencies(t *testing.T) {
	order, err := Validate([]plan.Task{task("c", "b"), task("a"), task("b", "a")})
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	pos := make(map[string]int, len(order))
	for i, id := range order {
		pos[id] = i
	}
	if !(pos["a"] < pos["b"] && pos["b"] < pos["c"]) {
		t.Errorf("order %v does not respect a < b < c", order)
	}
}
