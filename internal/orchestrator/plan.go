package orchestrator

import (
	"strings"

	"github.com/fyrsmithlabs/researchd/internal/research"
)

// ParsePlan extracts "<executor_type>: <task>" lines for the given types.
// Keys tolerate list bullets, emphasis markers, any case, and spaces in
// place of underscores. Repeated keys append to the task. When no line
// names one of the types, every type gets the whole plan as its task.
func ParsePlan(text string, types []research.ExecutorType) research.Plan {
	known := make(map[string]research.ExecutorType, len(types))
	for _, t := range types {
		known[string(t)] = t
	}

	plan := research.Plan{}
	for _, line := range strings.Split(text, "\n") {
		key, task, ok := strings.Cut(stripBullet(strings.TrimSpace(line)), ":")
		if !ok {
			continue
		}
		t, ok := known[normalizeKey(key)]
		if !ok {
			continue
		}
		task = strings.TrimSpace(strings.Trim(strings.TrimSpace(task), "*`"))
		if task == "" {
			continue
		}
		if prev, seen := plan[t]; seen {
			task = prev + "\n" + task
		}
		plan[t] = task
	}
	if len(plan) > 0 {
		return plan
	}

	whole := strings.TrimSpace(text)
	if whole == "" {
		return plan
	}
	for _, t := range types {
		plan[t] = whole
	}
	return plan
}

func stripBullet(line string) string {
	for _, prefix := range []string{"- ", "* ", "+ "} {
		if strings.HasPrefix(line, prefix) {
			return strings.TrimSpace(line[len(prefix):])
		}
	}
	// "1. " and "1) " numbering.
	i := 0
	for i < len(line) && line[i] >= '0' && line[i] <= '9' {
		i++
	}
	if i > 0 && i+1 < len(line) && (line[i] == '.' || line[i] == ')') && line[i+1] == ' ' {
		return strings.TrimSpace(line[i+2:])
	}
	return line
}

func normalizeKey(key string) string {
	key = strings.Trim(strings.TrimSpace(key), "*`#_ ")
	key = strings.ToLower(key)
	return strings.Join(strings.Fields(key), "_")
}
