package rules

// Package rules evaluates mirror filter trees. Trees are data-only (see store.Rule),
// all evaluation lives here in a single dispatcher per filter domain: tag filters for
// repo mirror runs and repository-name filters for org discovery. Matching is
// case-sensitive throughout, the order of the candidate list is preserved in results.

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	log "github.com/go-pkgz/lgr"
	"github.com/gobwas/glob"
	"github.com/pkg/errors"
	"github.com/zebox/registry-mirror/app/store"
)

// Validate checks a rule tree for well-formed leaves and complete internal nodes.
// A nil tree is valid and means "no filtering".
func Validate(r *store.Rule) error {
	if r == nil {
		return nil
	}

	switch r.Kind {
	case store.RuleTagGlobCSV:
		for _, p := range r.Patterns {
			if _, err := glob.Compile(strings.TrimSpace(p)); err != nil {
				return errors.Wrapf(err, "invalid glob pattern %q", p)
			}
		}
		return nil

	case store.RuleRepoNameList:
		return nil

	case store.RuleRepoNameRegex:
		if _, err := regexp.Compile(r.Regex); err != nil {
			return errors.Wrapf(err, "invalid repo name regex %q", r.Regex)
		}
		return nil

	case store.RuleAllowedSeverities:
		if len(r.Severities) == 0 {
			return errors.New("severity rule requires at least one severity name")
		}
		return nil

	case store.RuleAnd, store.RuleOr:
		if r.Left == nil || r.Right == nil {
			return errors.Errorf("%s rule requires both children", r.Kind)
		}
		if err := Validate(r.Left); err != nil {
			return err
		}
		return Validate(r.Right)

	case store.RuleNot:
		if r.Child == nil {
			return errors.New("not rule requires a child")
		}
		return Validate(r.Child)
	}
	return errors.Errorf("unknown rule kind %q", r.Kind)
}

// Describe renders a rule tree as a human-readable string for audit events
func Describe(r *store.Rule) string {
	if r == nil {
		return "all"
	}

	switch r.Kind {
	case store.RuleTagGlobCSV:
		return fmt.Sprintf("tags matching [%s]", strings.Join(r.Patterns, ", "))
	case store.RuleRepoNameList:
		return fmt.Sprintf("repositories named [%s]", r.Names)
	case store.RuleRepoNameRegex:
		return fmt.Sprintf("repositories matching /%s/", r.Regex)
	case store.RuleAllowedSeverities:
		return fmt.Sprintf("vulnerability severities within [%s]", strings.Join(r.Severities, ", "))
	case store.RuleAnd:
		return fmt.Sprintf("(%s and %s)", Describe(r.Left), Describe(r.Right))
	case store.RuleOr:
		return fmt.Sprintf("(%s or %s)", Describe(r.Left), Describe(r.Right))
	case store.RuleNot:
		return fmt.Sprintf("(not %s)", Describe(r.Child))
	}
	return string(r.Kind)
}

// EvaluateTagFilter applies a rule tree to a candidate tag list. Repo-name leaves are
// pass-through here, they only constrain org discovery. A nil tree keeps every tag.
func EvaluateTagFilter(ctx context.Context, r *store.Rule, tags []string, sc *SeverityContext) []string {
	if r == nil {
		return tags
	}

	switch r.Kind {
	case store.RuleTagGlobCSV:
		return filterGlobs(r.Patterns, tags)

	case store.RuleRepoNameList, store.RuleRepoNameRegex:
		return tags

	case store.RuleAllowedSeverities:
		return filterBySeverity(ctx, r.Severities, tags, sc)

	case store.RuleAnd:
		left := EvaluateTagFilter(ctx, r.Left, tags, sc)
		right := EvaluateTagFilter(ctx, r.Right, tags, sc)
		return intersect(tags, left, right)

	case store.RuleOr:
		left := EvaluateTagFilter(ctx, r.Left, tags, sc)
		if len(left) == len(tags) {
			// left kept everything, right side can't add more
			return left
		}
		right := EvaluateTagFilter(ctx, r.Right, tags, sc)
		return union(tags, left, right)

	case store.RuleNot:
		return subtract(tags, EvaluateTagFilter(ctx, r.Child, tags, sc))
	}

	log.Printf("[WARN] unknown rule kind %q in tag filter, keeping all candidates", r.Kind)
	return tags
}

// EvaluateRepoFilter applies a rule tree to upstream repository names during org
// discovery. Tag and severity leaves are pass-through here.
func EvaluateRepoFilter(r *store.Rule, repos []string) []string {
	if r == nil {
		return repos
	}

	switch r.Kind {
	case store.RuleRepoNameList:
		return filterNameList(r.Names, repos)

	case store.RuleRepoNameRegex:
		return filterNameRegex(r.Regex, repos)

	case store.RuleTagGlobCSV, store.RuleAllowedSeverities:
		return repos

	case store.RuleAnd:
		return intersect(repos, EvaluateRepoFilter(r.Left, repos), EvaluateRepoFilter(r.Right, repos))

	case store.RuleOr:
		left := EvaluateRepoFilter(r.Left, repos)
		if len(left) == len(repos) {
			return left
		}
		return union(repos, left, EvaluateRepoFilter(r.Right, repos))

	case store.RuleNot:
		return subtract(repos, EvaluateRepoFilter(r.Child, repos))
	}

	log.Printf("[WARN] unknown rule kind %q in repo filter, keeping all candidates", r.Kind)
	return repos
}

// DirectTagReferences collects tag values referenced by exact name, without wildcards.
// Used as an expected-tags hint for abbreviated upstream listing.
func DirectTagReferences(r *store.Rule) []string {
	if r == nil {
		return nil
	}

	var out []string
	switch r.Kind {
	case store.RuleTagGlobCSV:
		for _, p := range r.Patterns {
			p = strings.TrimSpace(p)
			if p != "" && !strings.ContainsAny(p, "*?[{\\") {
				out = append(out, p)
			}
		}
	case store.RuleAnd, store.RuleOr:
		out = append(out, DirectTagReferences(r.Left)...)
		out = append(out, DirectTagReferences(r.Right)...)
	case store.RuleNot:
		out = append(out, DirectTagReferences(r.Child)...)
	}
	return out
}

func filterGlobs(patterns, tags []string) []string {
	globs := make([]glob.Glob, 0, len(patterns))
	for _, p := range patterns {
		g, err := glob.Compile(strings.TrimSpace(p))
		if err != nil {
			log.Printf("[WARN] skip invalid glob pattern %q: %v", p, err)
			continue
		}
		globs = append(globs, g)
	}

	var out []string
	for _, t := range tags {
		for _, g := range globs {
			if g.Match(t) {
				out = append(out, t)
				break
			}
		}
	}
	return out
}

func filterNameList(csv string, repos []string) []string {
	names := map[string]struct{}{}
	for _, n := range strings.Split(csv, ",") {
		if n = strings.TrimSpace(n); n != "" {
			names[n] = struct{}{}
		}
	}

	var out []string
	for _, r := range repos {
		if _, ok := names[r]; ok {
			out = append(out, r)
		}
	}
	return out
}

func filterNameRegex(pattern string, repos []string) []string {
	re, err := regexp.Compile(pattern)
	if err != nil {
		// a broken pattern excludes everything rather than silently passing all
		log.Printf("[WARN] invalid repo name regex %q excludes all candidates: %v", pattern, err)
		return nil
	}

	var out []string
	for _, r := range repos {
		if re.MatchString(r) {
			out = append(out, r)
		}
	}
	return out
}

// set combinators keep the candidate list order

func intersect(candidates, a, b []string) []string {
	inA, inB := asSet(a), asSet(b)
	var out []string
	for _, c := range candidates {
		if _, okA := inA[c]; !okA {
			continue
		}
		if _, okB := inB[c]; okB {
			out = append(out, c)
		}
	}
	return out
}

func union(candidates, a, b []string) []string {
	inA, inB := asSet(a), asSet(b)
	var out []string
	for _, c := range candidates {
		_, okA := inA[c]
		_, okB := inB[c]
		if okA || okB {
			out = append(out, c)
		}
	}
	return out
}

func subtract(candidates, excluded []string) []string {
	ex := asSet(excluded)
	var out []string
	for _, c := range candidates {
		if _, ok := ex[c]; !ok {
			out = append(out, c)
		}
	}
	return out
}

func asSet(values []string) map[string]struct{} {
	s := make(map[string]struct{}, len(values))
	for _, v := range values {
		s[v] = struct{}{}
	}
	return s
}
