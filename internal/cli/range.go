package cli

import (
	"fmt"
	"strconv"
	"strings"
)

// maxRangeSize caps the number of issues in one "a-b" range.
const maxRangeSize = 500

// ParseIssueNumbers expands issue selectors into issue numbers. Each input
// may hold comma-separated numbers ("7") and inclusive ranges ("3-5").
// Duplicates are dropped and first-seen order is kept.
//
//   - ["1-3", "7"] → [1 2 3 7]
//   - ["5,3-4,5"] → [5 3 4]
func ParseIssueNumbers(input []string) ([]int, error) {
	var result []int
	seen := make(map[int]bool)

	for _, item := range input {
		for _, segment := range strings.Split(item, ",") {
			segment = strings.TrimSpace(segment)
			if segment == "" {
				continue
			}

			numbers, err := parseSegment(segment)
			if err != nil {
				return nil, err
			}
			for _, n := range numbers {
				if !seen[n] {
					seen[n] = true
					result = append(result, n)
				}
			}
		}
	}

	return result, nil
}

func parseSegment(segment string) ([]int, error) {
	startStr, endStr, isRange := strings.Cut(segment, "-")
	if !isRange {
		n, err := parseIssueNumber(segment)
		if err != nil {
			return nil, err
		}
		return []int{n}, nil
	}

	start, err := parseIssueNumber(strings.TrimSpace(startStr))
	if err != nil {
		return nil, fmt.Errorf("invalid range %q: %w", segment, err)
	}
	end, err := parseIssueNumber(strings.TrimSpace(endStr))
	if err != nil {
		return nil, fmt.Errorf("invalid range %q: %w", segment, err)
	}
	if start > end {
		return nil, fmt.Errorf("invalid range %q: start (%d) is greater than end (%d)", segment, start, end)
	}
	if end-start+1 > maxRangeSize {
		return nil, fmt.Errorf("invalid range %q: more than %d issues", segment, maxRangeSize)
	}

	numbers := make([]int, 0, end-start+1)
	for i := start; i <= end; i++ {
		numbers = append(numbers, i)
	}
	return numbers, nil
}

func parseIssueNumber(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%q is not a valid issue number", s)
	}
	if n <= 0 {
		return 0, fmt.Errorf("issue number must be positive, got %d", n)
	}
	return n, nil
}

// parseRepoArg splits "owner/repo". A bare "repo" uses defaultOwner.
func parseRepoArg(arg, defaultOwner string) (owner, repo string, err error) {
	arg = strings.TrimSuffix(strings.TrimPrefix(strings.TrimSpace(arg), "github.com/"), ".git")
	owner, repo, found := strings.Cut(arg, "/")
	if !found {
		owner, repo = defaultOwner, arg
	}
	if owner == "" {
		return "", "", fmt.Errorf("repository %q has no owner; use owner/repo or configure github.organization", arg)
	}
	if repo == "" || strings.Contains(repo, "/") {
		return "", "", fmt.Errorf("invalid repository %q: want owner/repo", arg)
	}
	return owner, repo, nil
}
