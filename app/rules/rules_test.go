package rules

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zebox/registry-mirror/app/store"
)

func TestEvaluateTagFilter_Globs(t *testing.T) {
	ctx := context.Background()
	tags := []string{"13", "14", "14.2", "15", "16"}

	rule := &store.Rule{Kind: store.RuleTagGlobCSV, Patterns: []string{"14*", "15*"}}
	assert.Equal(t, []string{"14", "14.2", "15"}, EvaluateTagFilter(ctx, rule, tags, nil))

	rule = &store.Rule{Kind: store.RuleTagGlobCSV, Patterns: []string{" 14* ", "15*"}}
	assert.Equal(t, []string{"14", "14.2", "15"}, EvaluateTagFilter(ctx, rule, tags, nil),
		"patterns trimmed before matching")

	rule = &store.Rule{Kind: store.RuleTagGlobCSV, Patterns: []string{"nope"}}
	assert.Empty(t, EvaluateTagFilter(ctx, rule, tags, nil))

	assert.Equal(t, tags, EvaluateTagFilter(ctx, nil, tags, nil), "nil tree keeps everything")
}

func TestEvaluateTagFilter_CaseSensitive(t *testing.T) {
	tags := []string{"Latest", "latest"}
	rule := &store.Rule{Kind: store.RuleTagGlobCSV, Patterns: []string{"latest"}}
	assert.Equal(t, []string{"latest"}, EvaluateTagFilter(context.Background(), rule, tags, nil))
}

func TestEvaluateTagFilter_Combinators(t *testing.T) {
	ctx := context.Background()
	tags := []string{"v1", "v1.1", "v2", "v2.1", "v3"}

	v1 := &store.Rule{Kind: store.RuleTagGlobCSV, Patterns: []string{"v1*"}}
	v2 := &store.Rule{Kind: store.RuleTagGlobCSV, Patterns: []string{"v2*"}}
	dotted := &store.Rule{Kind: store.RuleTagGlobCSV, Patterns: []string{"*.*"}}

	or := &store.Rule{Kind: store.RuleOr, Left: v1, Right: v2}
	assert.Equal(t, []string{"v1", "v1.1", "v2", "v2.1"}, EvaluateTagFilter(ctx, or, tags, nil),
		"union preserves candidate order")

	and := &store.Rule{Kind: store.RuleAnd, Left: or, Right: dotted}
	assert.Equal(t, []string{"v1.1", "v2.1"}, EvaluateTagFilter(ctx, and, tags, nil))

	not := &store.Rule{Kind: store.RuleNot, Child: dotted}
	assert.Equal(t, []string{"v1", "v2", "v3"}, EvaluateTagFilter(ctx, not, tags, nil))

	doubleNot := &store.Rule{Kind: store.RuleNot, Child: not}
	assert.Equal(t, []string{"v1.1", "v2.1"}, EvaluateTagFilter(ctx, doubleNot, tags, nil),
		"double negation matches the child")
}

func TestEvaluateTagFilter_OrShortCircuit(t *testing.T) {
	// the severity leaf on the right would exclude everything without a scan context,
	// but an all-matching left side makes the right side unreachable
	tags := []string{"a", "b"}
	rule := &store.Rule{
		Kind:  store.RuleOr,
		Left:  &store.Rule{Kind: store.RuleTagGlobCSV, Patterns: []string{"*"}},
		Right: &store.Rule{Kind: store.RuleAllowedSeverities, Severities: []string{"Low"}},
	}
	assert.Equal(t, tags, EvaluateTagFilter(context.Background(), rule, tags, nil))
}

func TestEvaluateTagFilter_RepoLeavesPassThrough(t *testing.T) {
	ctx := context.Background()
	tags := []string{"1.0", "2.0"}

	rule := &store.Rule{Kind: store.RuleRepoNameList, Names: "alpine,nginx"}
	assert.Equal(t, tags, EvaluateTagFilter(ctx, rule, tags, nil))

	rule = &store.Rule{Kind: store.RuleRepoNameRegex, Regex: "^my-"}
	assert.Equal(t, tags, EvaluateTagFilter(ctx, rule, tags, nil))
}

func TestEvaluateTagFilter_UnknownKind(t *testing.T) {
	tags := []string{"a", "b"}
	rule := &store.Rule{Kind: "some_future_kind"}
	assert.Equal(t, tags, EvaluateTagFilter(context.Background(), rule, tags, nil),
		"unknown kind keeps candidates instead of dropping a whole sync")
}

func TestEvaluateRepoFilter(t *testing.T) {
	repos := []string{"alpine", "nginx", "my-api", "my-worker", "postgres"}

	rule := &store.Rule{Kind: store.RuleRepoNameList, Names: "nginx, alpine ,missing"}
	assert.Equal(t, []string{"alpine", "nginx"}, EvaluateRepoFilter(rule, repos))

	rule = &store.Rule{Kind: store.RuleRepoNameRegex, Regex: "^my-"}
	assert.Equal(t, []string{"my-api", "my-worker"}, EvaluateRepoFilter(rule, repos))

	rule = &store.Rule{Kind: store.RuleNot, Child: &store.Rule{Kind: store.RuleRepoNameRegex, Regex: "^my-"}}
	assert.Equal(t, []string{"alpine", "nginx", "postgres"}, EvaluateRepoFilter(rule, repos))

	rule = &store.Rule{
		Kind:  store.RuleOr,
		Left:  &store.Rule{Kind: store.RuleRepoNameList, Names: "postgres"},
		Right: &store.Rule{Kind: store.RuleRepoNameRegex, Regex: "^my-"},
	}
	assert.Equal(t, []string{"my-api", "my-worker", "postgres"}, EvaluateRepoFilter(rule, repos))

	assert.Equal(t, repos, EvaluateRepoFilter(nil, repos))
}

func TestEvaluateRepoFilter_InvalidRegexExcludesAll(t *testing.T) {
	repos := []string{"alpine", "nginx"}
	rule := &store.Rule{Kind: store.RuleRepoNameRegex, Regex: "([unclosed"}
	assert.Empty(t, EvaluateRepoFilter(rule, repos))
}

func TestEvaluateRepoFilter_TagLeavesPassThrough(t *testing.T) {
	repos := []string{"alpine", "nginx"}
	rule := &store.Rule{Kind: store.RuleTagGlobCSV, Patterns: []string{"nomatch*"}}
	assert.Equal(t, repos, EvaluateRepoFilter(rule, repos))
}

func TestValidate(t *testing.T) {
	tbl := []struct {
		name string
		rule *store.Rule
		ok   bool
	}{
		{"nil tree", nil, true},
		{"globs", &store.Rule{Kind: store.RuleTagGlobCSV, Patterns: []string{"14*", "latest"}}, true},
		{"bad glob", &store.Rule{Kind: store.RuleTagGlobCSV, Patterns: []string{"[unclosed"}}, false},
		{"name list", &store.Rule{Kind: store.RuleRepoNameList, Names: "a,b"}, true},
		{"regex", &store.Rule{Kind: store.RuleRepoNameRegex, Regex: "^prod-"}, true},
		{"bad regex", &store.Rule{Kind: store.RuleRepoNameRegex, Regex: "([bad"}, false},
		{"severities", &store.Rule{Kind: store.RuleAllowedSeverities, Severities: []string{"Low", "Negligible"}}, true},
		{"empty severities", &store.Rule{Kind: store.RuleAllowedSeverities}, false},
		{"and", &store.Rule{Kind: store.RuleAnd,
			Left:  &store.Rule{Kind: store.RuleTagGlobCSV, Patterns: []string{"*"}},
			Right: &store.Rule{Kind: store.RuleRepoNameList, Names: "a"}}, true},
		{"and missing child", &store.Rule{Kind: store.RuleAnd,
			Left: &store.Rule{Kind: store.RuleTagGlobCSV, Patterns: []string{"*"}}}, false},
		{"not", &store.Rule{Kind: store.RuleNot,
			Child: &store.Rule{Kind: store.RuleRepoNameRegex, Regex: "x"}}, true},
		{"not missing child", &store.Rule{Kind: store.RuleNot}, false},
		{"unknown kind", &store.Rule{Kind: "mystery"}, false},
		{"nested bad leaf", &store.Rule{Kind: store.RuleOr,
			Left:  &store.Rule{Kind: store.RuleTagGlobCSV, Patterns: []string{"*"}},
			Right: &store.Rule{Kind: store.RuleRepoNameRegex, Regex: "([bad"}}, false},
	}

	for _, tt := range tbl {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.rule)
			if tt.ok {
				assert.NoError(t, err)
				return
			}
			assert.Error(t, err)
		})
	}
}

func TestDescribe(t *testing.T) {
	assert.Equal(t, "all", Describe(nil))

	rule := &store.Rule{
		Kind: store.RuleAnd,
		Left: &store.Rule{Kind: store.RuleTagGlobCSV, Patterns: []string{"14*", "latest"}},
		Right: &store.Rule{Kind: store.RuleNot,
			Child: &store.Rule{Kind: store.RuleAllowedSeverities, Severities: []string{"Critical"}}},
	}
	assert.Equal(t, "(tags matching [14*, latest] and (not vulnerability severities within [Critical]))",
		Describe(rule))
}

func TestDirectTagReferences(t *testing.T) {
	rule := &store.Rule{
		Kind: store.RuleOr,
		Left: &store.Rule{Kind: store.RuleTagGlobCSV, Patterns: []string{"latest", "14*", " stable "}},
		Right: &store.Rule{Kind: store.RuleAnd,
			Left:  &store.Rule{Kind: store.RuleTagGlobCSV, Patterns: []string{"v1.0"}},
			Right: &store.Rule{Kind: store.RuleRepoNameList, Names: "alpine"}},
	}
	assert.Equal(t, []string{"latest", "stable", "v1.0"}, DirectTagReferences(rule))

	assert.Nil(t, DirectTagReferences(nil))
	assert.Nil(t, DirectTagReferences(&store.Rule{Kind: store.RuleTagGlobCSV, Patterns: []string{"*", "v?"}}))
}

func TestRuleRoundTrip(t *testing.T) {
	rule := &store.Rule{
		Kind:  store.RuleOr,
		Left:  &store.Rule{Kind: store.RuleTagGlobCSV, Patterns: []string{"14*"}},
		Right: &store.Rule{Kind: store.RuleRepoNameRegex, Regex: "^prod-"},
	}

	data, err := store.MarshalRule(rule)
	require.NoError(t, err)

	restored, err := store.UnmarshalRule(data)
	require.NoError(t, err)
	assert.Equal(t, rule, restored)

	empty, err := store.MarshalRule(nil)
	require.NoError(t, err)
	assert.Equal(t, "", empty)

	restored, err = store.UnmarshalRule("")
	require.NoError(t, err)
	assert.Nil(t, restored)
}
